package gemini

import (
	_ "embed"

	"google.golang.org/genai"
)

// evaluationSchemaJSON is the validation contract for oracle output. Scout
// fields are mandatory for S, A and B ranks.
//
//go:embed schema.json
var evaluationSchemaJSON string

// ResponseSchema is the structured-output schema sent with every request.
func ResponseSchema() *genai.Schema {
	nullableText := func(description string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: description, Nullable: genai.Ptr(true)}
	}

	return &genai.Schema{
		Type:        genai.TypeObject,
		Description: "Evaluation result of the candidate",
		Properties: map[string]*genai.Schema{
			"level": {
				Type:        genai.TypeString,
				Enum:        []string{"Junior", "Middle", "Unknown"},
				Description: "Candidate level",
			},
			"evaluation": {
				Type:        genai.TypeString,
				Enum:        []string{"S", "A", "B", "C", "D"},
				Description: "Scout evaluation rank",
			},
			"reason": {
				Type:        genai.TypeString,
				Description: "Detailed reason for the evaluation",
			},
			"interestLevel": {
				Type:        genai.TypeString,
				Enum:        []string{"A", "B", "C"},
				Description: "Candidate's interest level in changing jobs",
			},
			"interestReason": {
				Type:        genai.TypeString,
				Description: "Reason for the interest level",
			},
			"strengths": {
				Type:        genai.TypeString,
				Description: "Candidate strengths in one or two sentences",
			},
			"aspirations": {
				Type:        genai.TypeString,
				Description: "What the candidate wants to do next",
			},
			"scoutTitle":   nullableText("Scout message title (required for rank B or higher)"),
			"titleKeyword": nullableText("Keyword shown in brackets before the job title (required for rank B or higher)"),
			"scoutMessage": nullableText("Scout message body (required for rank B or higher)"),
		},
		Required: []string{"level", "evaluation", "reason", "interestLevel", "interestReason"},
		PropertyOrdering: []string{
			"level", "evaluation", "reason", "interestLevel", "interestReason",
			"strengths", "aspirations", "scoutTitle", "titleKeyword", "scoutMessage",
		},
	}
}
