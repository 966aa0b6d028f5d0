package sources

import (
	"github.com/ternarybob/arbor"

	"github.com/driveline/jobfeed/internal/common"
	"github.com/driveline/jobfeed/internal/models"
)

// IngestGoogle converts raw Google Jobs postings into canonical rows.
// The apply URL prefers apply_options[].link, then apply_urls[]. Rows missing
// both title and company are dropped.
func IngestGoogle(postings []models.RawPosting, logger arbor.ILogger) []*models.Job {
	rows := make([]*models.Job, 0, len(postings))
	dropped := 0

	for _, posting := range postings {
		title := firstNonEmpty(posting, "title", "job_title")
		company := firstNonEmpty(posting, "company_name", "company")
		if title == "" && company == "" {
			dropped++
			continue
		}

		location := firstNonEmpty(posting, "location", "formatted_location")

		job := &models.Job{
			ID: models.Identity{
				Job:    common.JobID(company, location, title),
				Source: models.SourceGoogle,
			},
			Source: models.SourceFields{
				Title:          title,
				Company:        company,
				LocationRaw:    location,
				DescriptionRaw: firstNonEmpty(posting, "description", "snippet"),
				URL:            googleApplyURL(posting),
				PostedDate:     googlePostedDate(posting),
				SalaryRaw:      salaryText(posting),
			},
			Sys: models.SysFields{
				IsFreshJob: true,
			},
		}
		rows = append(rows, job)
	}

	if dropped > 0 {
		logger.Debug().Int("dropped", dropped).Msg("Dropped Google postings with no title or company")
	}

	return rows
}

// googleApplyURL picks the first apply_options link, falling back to
// apply_urls, then any share link.
func googleApplyURL(posting models.RawPosting) string {
	if options, ok := posting["apply_options"].([]interface{}); ok {
		for _, opt := range options {
			if optMap, ok := opt.(map[string]interface{}); ok {
				if link, ok := optMap["link"].(string); ok && link != "" {
					return link
				}
			}
		}
	}

	if urls, ok := posting["apply_urls"].([]interface{}); ok {
		for _, u := range urls {
			if s, ok := u.(string); ok && s != "" {
				return s
			}
		}
	}

	return firstNonEmpty(posting, "share_link", "link", "url")
}

func googlePostedDate(posting models.RawPosting) string {
	if ext, ok := posting["detected_extensions"].(map[string]interface{}); ok {
		if posted, ok := ext["posted_at"].(string); ok && posted != "" {
			return posted
		}
	}
	return firstNonEmpty(posting, "posted_at", "posted_date")
}
