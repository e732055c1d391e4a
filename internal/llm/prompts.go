package llm

import (
	"fmt"
	"strings"
)

// ExtractionFields is the target field set for contact extraction, matching
// the people schema columns a new contact may carry.
var ExtractionFields = []string{
	"first_name", "last_name", "email", "phone_number", "birthday",
	"location", "high_school", "university", "uni_major", "field_of_interest",
	"job_title", "current_company", "gender", "ethnicity",
	"profile_image_url", "linkedin_url",
}

// ExtractionPrompt generates the system prompt for structured contact
// extraction. The free-form text goes in the user message.
func ExtractionPrompt() string {
	return fmt.Sprintf(`Extract structured information from the provided text input.
The text contains details about a person, and you need to extract specific fields to populate a contact database.

The database has the following fields:
%s

ADDITIONALLY, extract a "note" field containing ALL remaining information that doesn't fit the structured fields above, and a "working_on" field if the text says what the person is currently working on.

IMPORTANT GUIDELINES:
1. The input might be a formal paragraph or a shorthand note with brief biographical information.
2. For shorthand notes like "Daniel Tantsyura CMU interested in real estate and entrepreneurship white male":
   - Extract university names even when abbreviated
   - Extract interests even if they're not explicitly labeled
   - Identify demographic information like gender and ethnicity
3. When multiple educational institutions are mentioned, combine them in the university field as a comma-separated list.
4. Parse dates in various formats and standardize to YYYY-MM-DD for the birthday field.
5. If the information for a field is not provided, return null for that field.
6. Only extract first_name and last_name if they're clearly identifiable.
7. Don't guess or make up information that isn't in the text.
8. CRITICAL: the note field MUST preserve every detail from the original text that isn't captured in a structured field (relationship context, personal observations, hobbies, anything). Never discard information from the input.

Return ONLY a valid JSON object with all these fields, no other text.`,
		strings.Join(ExtractionFields, ", "))
}

// LabelPrompt generates the system prompt for synthesizing a relationship
// label from the requester's profile, the contact text, and any tags.
func LabelPrompt(requesterProfile, contactText string, tags []string) string {
	tagsInfo := ""
	if len(tags) > 0 {
		tagsInfo = fmt.Sprintf("Tags associated with this relationship: %s\n", strings.Join(tags, ", "))
	}

	return fmt.Sprintf(`You need to generate a brief, natural-sounding relationship description between two people.

Information about the first person (current user):
%s

Information about the second person (new contact they're adding):
%s

%sBased on this information, describe their relationship in a brief phrase (1-5 words).
Examples: "College Friend", "Work Colleague", "Networking Contact", "Industry Peer", "Former Classmate".

Always capitalize the first letter of each word in your response.

Just respond with the relationship description ONLY - no explanation or additional text.`,
		requesterProfile, contactText, tagsInfo)
}
