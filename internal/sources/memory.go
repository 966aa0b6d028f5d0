package sources

import (
	"github.com/driveline/jobfeed/internal/common"
	"github.com/driveline/jobfeed/internal/models"
)

// IngestMemory converts persistent-store rows into canonical rows that
// already carry their AI fields, so the classifier skips them. The apply URL
// prefers apply_url, then indeed_job_url, then google_job_url.
func IngestMemory(stored []models.StoreJob) []*models.Job {
	rows := make([]*models.Job, 0, len(stored))

	for _, s := range stored {
		if s.JobTitle == "" && s.Company == "" {
			continue
		}

		jobID := s.JobID
		if jobID == "" {
			jobID = common.JobID(s.Company, s.Location, s.JobTitle)
		}

		url := s.ApplyURL
		if url == "" {
			url = s.IndeedJobURL
		}
		if url == "" {
			url = s.GoogleJobURL
		}

		job := &models.Job{
			ID: models.Identity{
				Job:    jobID,
				Source: models.SourceMemory,
			},
			Source: models.SourceFields{
				Title:          s.JobTitle,
				Company:        s.Company,
				LocationRaw:    s.Location,
				DescriptionRaw: s.JobDescription,
				URL:            url,
				SalaryRaw:      s.Salary,
			},
			AI: models.AIFields{
				Match:        models.MatchLevel(s.MatchLevel),
				Reason:       s.MatchReason,
				Summary:      s.Summary,
				FairChance:   s.FairChance,
				Endorsements: s.Endorsements,
				RouteType:    models.RouteType(s.RouteType),
			},
			Meta: models.MetaFields{
				Market:     s.Market,
				Query:      s.SearchQuery,
				TrackedURL: s.TrackedURL,
			},
			Sys: models.SysFields{
				IsFreshJob:           false,
				ClassificationSource: models.ClassSourceMemory,
				CreatedAt:            s.CreatedAt,
				UpdatedAt:            s.UpdatedAt,
				ClassifiedAt:         s.ClassifiedAt,
			},
		}
		rows = append(rows, job)
	}

	return rows
}
