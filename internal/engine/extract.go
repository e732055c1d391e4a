package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nexuslabs/nexus/internal/llm"
	"github.com/nexuslabs/nexus/internal/store"
)

// minTextLength is the minimum free-text length accepted for ingestion.
const minTextLength = 5

// extraction is the structured result of either extraction stage. Fields the
// text doesn't mention stay empty and persist as NULL.
type extraction struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email"`
	PhoneNumber     string `json:"phone_number"`
	Birthday        string `json:"birthday"`
	Location        string `json:"location"`
	HighSchool      string `json:"high_school"`
	University      string `json:"university"`
	UniMajor        string `json:"uni_major"`
	FieldOfInterest string `json:"field_of_interest"`
	JobTitle        string `json:"job_title"`
	CurrentCompany  string `json:"current_company"`
	Gender          string `json:"gender"`
	Ethnicity       string `json:"ethnicity"`
	ProfileImageURL string `json:"profile_image_url"`
	LinkedinURL     string `json:"linkedin_url"`
	WorkingOn       string `json:"working_on"`
	Note            string `json:"note"`
}

func (e *extraction) toPerson() *store.Person {
	return &store.Person{
		FirstName:       e.FirstName,
		LastName:        e.LastName,
		Email:           e.Email,
		PhoneNumber:     e.PhoneNumber,
		Birthday:        e.Birthday,
		Location:        e.Location,
		HighSchool:      e.HighSchool,
		University:      e.University,
		UniMajor:        e.UniMajor,
		FieldOfInterest: e.FieldOfInterest,
		JobTitle:        e.JobTitle,
		CurrentCompany:  e.CurrentCompany,
		Gender:          e.Gender,
		Ethnicity:       e.Ethnicity,
		ProfileImageURL: e.ProfileImageURL,
		LinkedinURL:     e.LinkedinURL,
	}
}

// heuristicExtract is the degraded extraction path: token 1 is the first
// name, token 2 the last name, and the whole text survives as the note so no
// input is discarded. It never consults the completion service.
func heuristicExtract(text string) (*extraction, error) {
	words := strings.Fields(strings.TrimSpace(text))
	if len(words) < 2 {
		return nil, store.Validationf("at least a first and last name are required")
	}

	ext := &extraction{
		FirstName: words[0],
		LastName:  words[1],
	}
	if len(words) > 2 {
		ext.Note = text
	}
	return ext, nil
}

// llmExtract is the primary path: ask the completion service for a structured
// JSON object and parse it. Any failure is returned for the caller to fall
// back on the heuristic with the original text, never the malformed response.
func llmExtract(ctx context.Context, client llm.Client, text string) (*extraction, error) {
	resp, err := client.Complete(ctx, llm.ExtractionPrompt(), text)
	if err != nil {
		return nil, fmt.Errorf("completion service: %w", err)
	}
	return parseExtraction(resp.Content)
}

// parseExtraction extracts a JSON object from the completion response. The
// response might contain markdown code fences or other wrapper text.
func parseExtraction(content string) (*extraction, error) {
	content = strings.TrimSpace(content)

	// Strip markdown code fences if present
	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		if len(lines) > 2 {
			content = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	var ext extraction
	if err := json.Unmarshal([]byte(content[start:end+1]), &ext); err != nil {
		return nil, fmt.Errorf("unmarshal extraction: %w", err)
	}

	ext.FirstName = strings.TrimSpace(ext.FirstName)
	ext.LastName = strings.TrimSpace(ext.LastName)
	if ext.FirstName == "" || ext.LastName == "" {
		return nil, fmt.Errorf("extraction missing first or last name")
	}
	return &ext, nil
}
