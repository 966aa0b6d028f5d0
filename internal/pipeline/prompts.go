package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/driveline/jobfeed/internal/models"
)

const cdlSystemPrompt = `You are an expert CDL trucking job screener for entry-level and experienced Class A drivers.

For each job you receive, classify the match quality:
- "good": a real W2 CDL-A company-driver position with clear pay, suitable for placement
- "so-so": a plausible CDL driving job with gaps (vague pay, unclear requirements, staffing agency)
- "bad": owner-operator, lease-purchase, non-driving, scam-like, or otherwise unsuitable

Also report:
- fair_chance: note if the posting welcomes applicants with criminal records, otherwise empty string
- endorsements: required endorsements (e.g. "Hazmat", "Tanker", "Doubles/Triples"), otherwise empty string

Respond with strict JSON only. No prose, no markdown fences.`

const pathwaySystemPrompt = `You are an expert career-pathway screener for people entering the trucking industry without a CDL.

For each job you receive, classify the match quality:
- "good": a genuine entry pathway - paid CDL training, apprenticeship, dock-to-driver, or no-CDL yard work with advancement
- "so-so": possibly useful but unclear training commitment or conditions
- "bad": requires an existing CDL with no training offered, owner-operator, scam-like, or unrelated work

Also report:
- career_pathway: short label of the pathway (e.g. "paid CDL training", "dock to driver"), otherwise empty string
- training_provided: true if the employer pays for or provides CDL training
- fair_chance: note if the posting welcomes applicants with criminal records, otherwise empty string
- endorsements: endorsements the pathway leads to, otherwise empty string

Respond with strict JSON only. No prose, no markdown fences.`

// promptJob is the per-row payload embedded in a classification prompt.
type promptJob struct {
	JobID       string `json:"job_id"`
	JobTitle    string `json:"job_title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

const maxPromptDescriptionLen = 2000

// buildBatchPrompt renders the user message for one classification batch.
func buildBatchPrompt(rows []*models.Job) (string, error) {
	jobs := make([]promptJob, 0, len(rows))
	for _, row := range rows {
		description := row.Norm.Description
		if description == "" {
			description = row.Source.DescriptionRaw
		}
		if len(description) > maxPromptDescriptionLen {
			description = description[:maxPromptDescriptionLen]
		}

		jobs = append(jobs, promptJob{
			JobID:       row.ID.Job,
			JobTitle:    row.Norm.Title,
			Company:     row.Norm.Company,
			Location:    row.Norm.Location,
			Description: description,
		})
	}

	payload, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode prompt jobs: %w", err)
	}

	var b strings.Builder
	b.WriteString("Classify each of the following jobs. Return JSON of the form\n")
	b.WriteString(`{"classifications": [{"job_id": "...", "match": "good|so-so|bad", "reason": "...", "summary": "...", "fair_chance": "...", "endorsements": "...", "career_pathway": "...", "training_provided": false}]}`)
	b.WriteString("\nwith exactly one entry per job_id.\n\nJobs:\n")
	b.Write(payload)
	return b.String(), nil
}

// systemPrompt selects the classifier persona.
func systemPrompt(classifierType string) string {
	if classifierType == "pathway" {
		return pathwaySystemPrompt
	}
	return cdlSystemPrompt
}

// classificationSchema is the structured-output schema enforced on providers
// that support it.
func classificationSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"classifications": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"job_id":            map[string]interface{}{"type": "string"},
						"match":             map[string]interface{}{"type": "string", "enum": []string{"good", "so-so", "bad"}},
						"reason":            map[string]interface{}{"type": "string"},
						"summary":           map[string]interface{}{"type": "string"},
						"fair_chance":       map[string]interface{}{"type": "string"},
						"endorsements":      map[string]interface{}{"type": "string"},
						"career_pathway":    map[string]interface{}{"type": "string"},
						"training_provided": map[string]interface{}{"type": "boolean"},
					},
					"required": []string{"job_id", "match", "reason", "summary"},
				},
			},
		},
		"required": []string{"classifications"},
	}
}
