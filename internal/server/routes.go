package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nexuslabs/nexus/internal/store"
)

func personIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "personID"), 10, 64)
	if err != nil {
		return 0, store.Validationf("invalid person id")
	}
	return id, nil
}

func personJSON(p *store.Person) map[string]any {
	opt := func(s string) any {
		if s == "" {
			return nil
		}
		return s
	}
	return map[string]any{
		"id":                p.ID,
		"first_name":        p.FirstName,
		"last_name":         p.LastName,
		"email":             opt(p.Email),
		"phone_number":      opt(p.PhoneNumber),
		"birthday":          opt(p.Birthday),
		"location":          opt(p.Location),
		"high_school":       opt(p.HighSchool),
		"university":        opt(p.University),
		"uni_major":         opt(p.UniMajor),
		"field_of_interest": opt(p.FieldOfInterest),
		"job_title":         opt(p.JobTitle),
		"current_company":   opt(p.CurrentCompany),
		"gender":            opt(p.Gender),
		"ethnicity":         opt(p.Ethnicity),
		"profile_image_url": opt(p.ProfileImageURL),
		"linkedin_url":      opt(p.LinkedinURL),
		"recent_tags":       p.RecentTags,
		"created_at":        p.CreatedAt,
	}
}

func (s *Server) handleListPeople(w http.ResponseWriter, r *http.Request) {
	// ?email= narrows the listing to the single matching person.
	if email := r.URL.Query().Get("email"); email != "" {
		p, err := s.people.GetByEmail(email)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, []map[string]any{personJSON(p)})
		return
	}

	people, err := s.people.List()
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(people))
	for i := range people {
		out = append(out, personJSON(&people[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSearchPeople(w http.ResponseWriter, r *http.Request) {
	people, err := s.people.Search(r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(people))
	for i := range people {
		out = append(out, personJSON(&people[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreatePerson(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FirstName       string   `json:"first_name"`
		LastName        string   `json:"last_name"`
		Email           string   `json:"email"`
		PhoneNumber     string   `json:"phone_number"`
		Birthday        string   `json:"birthday"`
		Location        string   `json:"location"`
		HighSchool      string   `json:"high_school"`
		University      string   `json:"university"`
		UniMajor        string   `json:"uni_major"`
		FieldOfInterest string   `json:"field_of_interest"`
		JobTitle        string   `json:"job_title"`
		CurrentCompany  string   `json:"current_company"`
		Gender          string   `json:"gender"`
		Ethnicity       string   `json:"ethnicity"`
		ProfileImageURL string   `json:"profile_image_url"`
		LinkedinURL     string   `json:"linkedin_url"`
		RecentTags      []string `json:"recent_tags"`
		Username        string   `json:"username"`
		Secret          string   `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, store.Validationf("invalid json"))
		return
	}

	person := &store.Person{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		PhoneNumber:     req.PhoneNumber,
		Birthday:        req.Birthday,
		Location:        req.Location,
		HighSchool:      req.HighSchool,
		University:      req.University,
		UniMajor:        req.UniMajor,
		FieldOfInterest: req.FieldOfInterest,
		JobTitle:        req.JobTitle,
		CurrentCompany:  req.CurrentCompany,
		Gender:          req.Gender,
		Ethnicity:       req.Ethnicity,
		ProfileImageURL: req.ProfileImageURL,
		LinkedinURL:     req.LinkedinURL,
		RecentTags:      req.RecentTags,
	}
	id, err := s.people.Create(person)
	if err != nil {
		writeError(w, err)
		return
	}

	// Registering with a credential is optional. If the credential is
	// rejected, remove the person again so a failed registration leaves no
	// partial row behind.
	if req.Username != "" {
		if err := s.creds.Add(id, req.Username, req.Secret); err != nil {
			if derr := s.people.Delete(id); derr != nil {
				log.Printf("server: rollback of person %d failed: %v", id, derr)
			}
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, personJSON(person))
}

func (s *Server) handleGetPerson(w http.ResponseWriter, r *http.Request) {
	id, err := personIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := s.people.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, personJSON(p))
}

func (s *Server) handleUpdatePerson(w http.ResponseWriter, r *http.Request) {
	id, err := personIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var fields map[string]string
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, store.Validationf("invalid json"))
		return
	}
	updated, err := s.people.Update(id, fields)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": updated})
}

func (s *Server) handleDeletePerson(w http.ResponseWriter, r *http.Request) {
	id, err := personIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.people.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (s *Server) handleGetRecentTags(w http.ResponseWriter, r *http.Request) {
	id, err := personIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	tags, err := s.tags.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if tags == nil {
		tags = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

func (s *Server) handleUpdateRecentTags(w http.ResponseWriter, r *http.Request) {
	id, err := personIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Tags []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, store.Validationf("invalid json"))
		return
	}
	if err := s.tags.Update(id, req.Tags); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": true})
}

func (s *Server) handleTouch(w http.ResponseWriter, r *http.Request) {
	id, err := personIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.creds.Touch(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"touched": true})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Secret   string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, store.Validationf("invalid json"))
		return
	}
	personID, err := s.creds.Validate(req.Username, req.Secret)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"person_id": personID})
}

type connectionRequest struct {
	OwnerID   int64    `json:"owner_id"`
	ContactID int64    `json:"contact_id"`
	Label     string   `json:"label"`
	Note      string   `json:"note"`
	Tags      []string `json:"tags"`
	WorkingOn string   `json:"working_on"`
}

func (s *Server) handleAddConnection(w http.ResponseWriter, r *http.Request) {
	var req connectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, store.Validationf("invalid json"))
		return
	}
	edge, err := s.graph.AddEdge(req.OwnerID, req.ContactID, req.Label, req.Note, req.Tags, req.WorkingOn)
	if err != nil {
		writeError(w, err)
		return
	}

	// Mirror the ingestion pipeline: tagging a new connection refreshes the
	// owner's recency cache.
	if len(req.Tags) > 0 {
		if err := s.tags.Update(req.OwnerID, req.Tags); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": edge.ID})
}

func (s *Server) handleUpdateConnection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerID   int64     `json:"owner_id"`
		ContactID int64     `json:"contact_id"`
		Label     *string   `json:"label"`
		Note      *string   `json:"note"`
		Tags      *[]string `json:"tags"`
		WorkingOn *string   `json:"working_on"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, store.Validationf("invalid json"))
		return
	}
	update := store.EdgeUpdate{Label: req.Label, Note: req.Note, Tags: req.Tags, WorkingOn: req.WorkingOn}
	if err := s.graph.UpdateEdge(req.OwnerID, req.ContactID, update); err != nil {
		writeError(w, err)
		return
	}
	if req.Tags != nil && len(*req.Tags) > 0 {
		if err := s.tags.Update(req.OwnerID, *req.Tags); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": true})
}

func (s *Server) handleRemoveConnection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerID   int64 `json:"owner_id"`
		ContactID int64 `json:"contact_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, store.Validationf("invalid json"))
		return
	}
	if err := s.graph.RemoveEdge(req.OwnerID, req.ContactID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": true})
}

func (s *Server) handleMarkViewed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerID   int64 `json:"owner_id"`
		ContactID int64 `json:"contact_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, store.Validationf("invalid json"))
		return
	}
	if err := s.graph.MarkViewed(req.OwnerID, req.ContactID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"viewed": true})
}

func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	id, err := personIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	edges, err := s.graph.ListEdgesFor(id)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(edges))
	for i := range edges {
		entry := personJSON(&edges[i].Contact)
		e := edges[i].Edge
		entry["label"] = e.Label
		entry["note"] = e.Note
		entry["tags"] = e.Tags
		entry["working_on"] = e.WorkingOn
		entry["last_viewed"] = e.LastViewed
		entry["edge_created_at"] = e.CreatedAt
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RequesterID int64    `json:"requester_id"`
		Text        string   `json:"text"`
		Tags        []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, store.Validationf("invalid json"))
		return
	}

	result, err := s.ingest.Ingest(r.Context(), req.Text, req.RequesterID, req.Tags)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"person":        personJSON(result.Person),
		"link_degraded": result.LinkDegraded,
	})
}
