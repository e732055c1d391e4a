package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nexuslabs/nexus/internal/config"
	"github.com/nexuslabs/nexus/internal/engine"
	"github.com/nexuslabs/nexus/internal/llm"
	"github.com/nexuslabs/nexus/internal/server"
	"github.com/nexuslabs/nexus/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func loadConfig() (config.Config, error) {
	// .env is optional; real env vars win either way.
	godotenv.Load()

	path := configPath
	if path == "" {
		path = "nexus.toml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.LLM.Provider = "openai"
		cfg.LLM.APIKey = key
	}
	if url := os.Getenv("OPENAI_BASE_URL"); url != "" {
		cfg.LLM.BaseURL = url
	}
	if path := os.Getenv("NEXUS_DB"); path != "" {
		cfg.Database.Path = path
	}
	return cfg, nil
}

func openStore(cfg config.Config) (*store.DB, error) {
	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	return store.Open(dbPath)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	people := store.NewPersonStore(db, cfg.Tags.Defaults)
	creds := store.NewCredentialStore(db)
	graph := store.NewRelationshipGraph(db)
	tags := store.NewTagRecencyCache(db, cfg.Tags.MaxRecent)

	// Without a completion client the ingestion pipeline still works, in
	// degraded heuristic mode.
	var client llm.Client
	if c, err := llm.NewClient(cfg.LLM); err != nil {
		fmt.Fprintf(os.Stderr, "warning: completion service not configured (%v), ingestion degraded\n", err)
	} else {
		client = c
		fmt.Fprintf(os.Stderr, "  llm: %s (%s)\n", cfg.LLM.Provider, cfg.LLM.Model)
	}
	pipeline := engine.NewPipeline(people, graph, tags, client)

	srv := server.New(db, people, creds, graph, tags, pipeline, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "nexus serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", db.Path)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
