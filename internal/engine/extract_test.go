package engine

import (
	"strings"
	"testing"

	"github.com/nexuslabs/nexus/internal/store"
)

func TestHeuristicExtract(t *testing.T) {
	ext, err := heuristicExtract("Maya Chen met at the Lisbon conference")
	if err != nil {
		t.Fatalf("heuristicExtract: %v", err)
	}
	if ext.FirstName != "Maya" || ext.LastName != "Chen" {
		t.Errorf("name = %q %q, want Maya Chen", ext.FirstName, ext.LastName)
	}
	// Everything survives as the note so no input is lost.
	if ext.Note != "Maya Chen met at the Lisbon conference" {
		t.Errorf("Note = %q, want full text", ext.Note)
	}

	// Exactly two tokens: a bare name carries no extra detail to preserve.
	ext, err = heuristicExtract("Maya Chen")
	if err != nil {
		t.Fatalf("heuristicExtract: %v", err)
	}
	if ext.Note != "" {
		t.Errorf("Note = %q, want empty", ext.Note)
	}

	if _, err := heuristicExtract("Alexander"); store.KindOf(err) != store.KindValidation {
		t.Errorf("single token: kind = %v, want validation", store.KindOf(err))
	}
	if _, err := heuristicExtract("   "); store.KindOf(err) != store.KindValidation {
		t.Errorf("blank: kind = %v, want validation", store.KindOf(err))
	}
}

func TestParseExtraction(t *testing.T) {
	ext, err := parseExtraction(`{"first_name": "Maya", "last_name": "Chen", "university": "IST"}`)
	if err != nil {
		t.Fatalf("parseExtraction: %v", err)
	}
	if ext.FirstName != "Maya" || ext.University != "IST" {
		t.Errorf("ext = %+v", ext)
	}
}

func TestParseExtractionFenced(t *testing.T) {
	content := "```json\n{\"first_name\": \"Maya\", \"last_name\": \"Chen\"}\n```"
	ext, err := parseExtraction(content)
	if err != nil {
		t.Fatalf("parseExtraction: %v", err)
	}
	if ext.FirstName != "Maya" {
		t.Errorf("FirstName = %q, want Maya", ext.FirstName)
	}
}

func TestParseExtractionWrapped(t *testing.T) {
	content := `Here is the contact: {"first_name": "Maya", "last_name": "Chen"} hope that helps`
	ext, err := parseExtraction(content)
	if err != nil {
		t.Fatalf("parseExtraction: %v", err)
	}
	if ext.LastName != "Chen" {
		t.Errorf("LastName = %q, want Chen", ext.LastName)
	}
}

func TestParseExtractionRejects(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"no json", "I could not find a contact in that text"},
		{"invalid json", "{first_name: Maya}"},
		{"missing last name", `{"first_name": "Maya"}`},
		{"whitespace names", `{"first_name": " ", "last_name": " "}`},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseExtraction(tt.content); err == nil {
				t.Errorf("parseExtraction(%q) succeeded, want error", tt.content)
			}
		})
	}
}

func TestExtractionToPerson(t *testing.T) {
	ext := &extraction{
		FirstName: "Maya",
		LastName:  "Chen",
		Location:  "Lisbon",
		Note:      "met at a conference",
		WorkingOn: "robotics startup",
	}
	p := ext.toPerson()
	if p.FirstName != "Maya" || p.Location != "Lisbon" {
		t.Errorf("person = %+v", p)
	}
	// Note and working_on belong to the edge, not the person row.
	if strings.Contains(p.Name(), "conference") {
		t.Error("note leaked into person")
	}
}
