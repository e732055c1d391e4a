package engine

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/nexuslabs/nexus/internal/llm"
	"github.com/nexuslabs/nexus/internal/store"
)

// completionTimeout bounds each completion-service call.
const completionTimeout = 60 * time.Second

// Pipeline turns free-form text about a new acquaintance into a Person, a
// relationship edge from the requester, and a requester tag-cache update.
type Pipeline struct {
	people *store.PersonStore
	graph  *store.RelationshipGraph
	tags   *store.TagRecencyCache
	client llm.Client // nil means the completion service is unconfigured
}

// NewPipeline creates a Pipeline. Pass a nil client to run permanently in
// degraded mode.
func NewPipeline(people *store.PersonStore, graph *store.RelationshipGraph, tags *store.TagRecencyCache, client llm.Client) *Pipeline {
	return &Pipeline{people: people, graph: graph, tags: tags, client: client}
}

// IngestResult is the outcome of a successful ingestion. LinkDegraded is set
// when the person was created but the edge to the requester could not be.
type IngestResult struct {
	Person       *store.Person
	LinkDegraded bool
}

// Ingest runs the full pipeline: validate, extract (primary then heuristic),
// synthesize a label, persist the person and edge, update the requester's
// tag cache. Extraction failure is terminal; edge failure after person
// creation is reported through LinkDegraded, never as an error, because a
// person may legitimately exist with zero relationships.
func (p *Pipeline) Ingest(ctx context.Context, text string, requesterID int64, tags []string) (*IngestResult, error) {
	if len(strings.TrimSpace(text)) < minTextLength {
		return nil, store.Validationf("insufficient text: provide more details about the contact")
	}

	requester, err := p.people.Get(requesterID)
	if err != nil {
		return nil, err
	}

	ext, err := p.extract(ctx, text)
	if err != nil {
		return nil, err
	}

	label := p.label(ctx, requester, text, tags)

	person := ext.toPerson()
	if _, err := p.people.Create(person); err != nil {
		return nil, err
	}

	linkDegraded := false
	if _, err := p.graph.AddEdge(requesterID, person.ID, label, ext.Note, tags, ext.WorkingOn); err != nil {
		// The person stays; the caller can link manually later.
		log.Printf("ingest: edge %d -> %d failed: %v", requesterID, person.ID, err)
		linkDegraded = true
	} else if len(tags) > 0 {
		// The requester's cache, not the new contact's.
		if err := p.tags.Update(requesterID, tags); err != nil {
			log.Printf("ingest: recent tags update for %d failed: %v", requesterID, err)
		}
	}

	return &IngestResult{Person: person, LinkDegraded: linkDegraded}, nil
}

// extract runs the two-stage extraction: the completion service first, then
// the whitespace heuristic on the original text. Both stages report success
// or failure explicitly; service errors are absorbed here, never surfaced.
func (p *Pipeline) extract(ctx context.Context, text string) (*extraction, error) {
	if p.client != nil {
		cctx, cancel := context.WithTimeout(ctx, completionTimeout)
		ext, err := llmExtract(cctx, p.client, text)
		cancel()
		if err == nil {
			return ext, nil
		}
		log.Printf("ingest: extraction degraded to heuristic: %v", err)
	}
	return heuristicExtract(text)
}

func (p *Pipeline) label(ctx context.Context, requester *store.Person, text string, tags []string) string {
	cctx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()
	return generateLabel(cctx, p.client, requester, text, tags)
}
