package sources

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/driveline/jobfeed/internal/common"
	"github.com/driveline/jobfeed/internal/models"
)

// IngestOutscraper converts raw Indeed postings into canonical rows with
// id.*, source.*, and sys.* populated. Rows missing both title and company
// are dropped. Pure and deterministic given inputs.
func IngestOutscraper(postings []models.RawPosting, logger arbor.ILogger) []*models.Job {
	rows := make([]*models.Job, 0, len(postings))
	dropped := 0

	for _, posting := range postings {
		title := firstNonEmpty(posting, "title", "job_title")
		company := firstNonEmpty(posting, "company", "company_name")
		if title == "" && company == "" {
			dropped++
			continue
		}

		location := firstNonEmpty(posting, "formattedLocation", "formatted_location", "location")

		job := &models.Job{
			ID: models.Identity{
				Job:    common.JobID(company, location, title),
				Source: models.SourceIndeed,
			},
			Source: models.SourceFields{
				Title:          title,
				Company:        company,
				LocationRaw:    location,
				DescriptionRaw: firstNonEmpty(posting, "snippet", "description", "job_description"),
				URL:            firstNonEmpty(posting, "viewJobLink", "view_job_link", "link", "url"),
				PostedDate:     firstNonEmpty(posting, "pubDate", "formattedRelativeTime", "posted_date"),
				SalaryRaw:      salaryText(posting),
			},
			Sys: models.SysFields{
				IsFreshJob: true,
			},
		}
		rows = append(rows, job)
	}

	if dropped > 0 {
		logger.Debug().Int("dropped", dropped).Msg("Dropped Indeed postings with no title or company")
	}

	return rows
}

// firstNonEmpty returns the first non-empty string field among keys.
func firstNonEmpty(posting models.RawPosting, keys ...string) string {
	for _, key := range keys {
		if v := posting.Str(key); v != "" {
			return v
		}
	}
	return ""
}

// salaryText flattens the provider salary block, which arrives either as a
// plain string or as a nested object with a display text.
func salaryText(posting models.RawPosting) string {
	if v := firstNonEmpty(posting, "salary", "salary_raw"); v != "" {
		return v
	}

	for _, key := range []string{"salarySnippet", "salary_snippet", "detected_extensions"} {
		block, ok := posting[key].(map[string]interface{})
		if !ok {
			continue
		}
		for _, field := range []string{"text", "salary", "display"} {
			if s, ok := block[field].(string); ok && s != "" {
				return s
			}
		}
		if base, ok := block["baseSalary"].(map[string]interface{}); ok {
			if rng, ok := base["range"].(map[string]interface{}); ok {
				min, minOK := rng["min"].(float64)
				max, maxOK := rng["max"].(float64)
				unit, _ := base["unitOfWork"].(string)
				if minOK && maxOK {
					return fmt.Sprintf("$%.2f - $%.2f per %s", min, max, unit)
				}
			}
		}
	}

	return ""
}
