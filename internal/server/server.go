package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nexuslabs/nexus/internal/engine"
	"github.com/nexuslabs/nexus/internal/store"
)

// Server is the nexus HTTP API server. It is a thin dispatch layer over the
// stores and the ingestion pipeline.
type Server struct {
	db      *store.DB
	people  *store.PersonStore
	creds   *store.CredentialStore
	graph   *store.RelationshipGraph
	tags    *store.TagRecencyCache
	ingest  *engine.Pipeline
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server over the given components.
func New(db *store.DB, people *store.PersonStore, creds *store.CredentialStore,
	graph *store.RelationshipGraph, tags *store.TagRecencyCache,
	ingest *engine.Pipeline, version string) *Server {
	s := &Server{
		db:      db,
		people:  people,
		creds:   creds,
		graph:   graph,
		tags:    tags,
		ingest:  ingest,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/people", s.handleListPeople)
		r.Post("/people", s.handleCreatePerson)
		r.Get("/people/search", s.handleSearchPeople)
		r.Get("/people/{personID}", s.handleGetPerson)
		r.Put("/people/{personID}", s.handleUpdatePerson)
		r.Delete("/people/{personID}", s.handleDeletePerson)
		r.Get("/people/{personID}/recent-tags", s.handleGetRecentTags)
		r.Put("/people/{personID}/recent-tags", s.handleUpdateRecentTags)
		r.Get("/people/{personID}/connections", s.handleListConnections)
		r.Post("/people/{personID}/touch", s.handleTouch)

		r.Post("/login", s.handleLogin)

		r.Post("/connections", s.handleAddConnection)
		r.Put("/connections", s.handleUpdateConnection)
		r.Delete("/connections", s.handleRemoveConnection)
		r.Post("/connections/viewed", s.handleMarkViewed)

		r.Post("/contacts/ingest", s.handleIngest)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the store error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch store.KindOf(err) {
	case store.KindValidation:
		status = http.StatusBadRequest
	case store.KindNotFound:
		status = http.StatusNotFound
	case store.KindConflict:
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]any{"error": err.Error(), "kind": string(store.KindOf(err))})
}
