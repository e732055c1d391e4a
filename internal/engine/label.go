package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode"

	"github.com/nexuslabs/nexus/internal/llm"
	"github.com/nexuslabs/nexus/internal/store"
)

// DefaultLabel is used whenever label synthesis cannot produce a result.
// Label generation never fails the pipeline.
const DefaultLabel = "Contact"

// maxLabelLen caps synthesized relationship labels.
const maxLabelLen = 50

// generateLabel asks the completion service for a relationship label between
// the requester and the new contact. Every failure path returns DefaultLabel.
func generateLabel(ctx context.Context, client llm.Client, requester *store.Person, contactText string, tags []string) string {
	if client == nil || requester == nil {
		return DefaultLabel
	}

	profile := profileText(requester)
	if profile == "" {
		return DefaultLabel
	}

	resp, err := client.Complete(ctx,
		llm.LabelPrompt(profile, contactText, tags),
		"Generate a relationship description")
	if err != nil {
		log.Printf("ingest: label generation failed, using default: %v", err)
		return DefaultLabel
	}

	label := sanitizeLabel(resp.Content)
	if label == "" {
		return DefaultLabel
	}
	return label
}

// sanitizeLabel trims wrapper punctuation, caps the rune count at a word
// boundary, and Title-Cases each word.
func sanitizeLabel(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'.,;:`)
	if s == "" {
		return ""
	}

	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	s = strings.Join(words, " ")

	if runes := []rune(s); len(runes) > maxLabelLen {
		s = string(runes[:maxLabelLen])
		if idx := strings.LastIndex(s, " "); idx > 0 {
			s = s[:idx]
		}
	}
	return s
}

// profileText formats the requester's profile for the label prompt, one
// "field: value" line per populated field.
func profileText(p *store.Person) string {
	fields := []struct {
		key, value string
	}{
		{"name", p.Name()},
		{"location", p.Location},
		{"high_school", p.HighSchool},
		{"university", p.University},
		{"uni_major", p.UniMajor},
		{"job_title", p.JobTitle},
		{"current_company", p.CurrentCompany},
		{"field_of_interest", p.FieldOfInterest},
	}

	var lines []string
	for _, f := range fields {
		if f.value != "" {
			lines = append(lines, fmt.Sprintf("%s: %s", f.key, f.value))
		}
	}
	return strings.Join(lines, "\n")
}
