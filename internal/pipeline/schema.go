package pipeline

import (
	"time"

	"github.com/driveline/jobfeed/internal/common"
	"github.com/driveline/jobfeed/internal/models"
)

// EmptyFrame returns a frame with no rows. Every row added later carries the
// full column set by construction; the Job struct is the closed registry.
func EmptyFrame() *models.Frame {
	return models.NewFrame()
}

// EnsureSchema normalizes structural defaults on every row: nil rows are
// dropped, salary currency defaults to USD once a salary is parsed, and the
// route stage gets its initial value. Idempotent.
func EnsureSchema(frame *models.Frame) *models.Frame {
	if frame == nil {
		return EmptyFrame()
	}

	rows := make([]*models.Job, 0, len(frame.Rows))
	for _, row := range frame.Rows {
		if row == nil {
			continue
		}
		if (row.Norm.SalaryMin != nil || row.Norm.SalaryMax != nil) && row.Norm.SalaryCurrency == "" {
			row.Norm.SalaryCurrency = "USD"
		}
		if row.Route.Stage == "" {
			row.Route.Stage = "ingested"
			row.Route.ReadyForAI = !row.Route.Filtered
		}
		rows = append(rows, row)
	}
	frame.Rows = rows
	return frame
}

// Sanctify backfills the fields any frame needs before export or store:
// missing id.job, fallback tracked URL, route.* consistency, and sys.*
// defaults. Idempotent; safe on partially processed frames.
func Sanctify(frame *models.Frame) *models.Frame {
	if frame == nil {
		return EmptyFrame()
	}

	now := time.Now().UTC()
	for _, row := range frame.Rows {
		if row.ID.Job == "" {
			row.ID.Job = common.JobID(row.Source.Company, row.Source.LocationRaw, row.Source.Title)
		}
		if row.Meta.TrackedURL == "" {
			row.Meta.TrackedURL = row.Source.URL
		}

		// route.* consistency
		if row.Route.Filtered && row.Route.FinalStatus == "" {
			reason := row.Route.FilterReason
			if reason == "" {
				reason = "unspecified"
			}
			row.Route.FinalStatus = "filtered: " + reason
		}
		row.Route.ReadyForExport = row.AI.Match.IsQuality() && !row.Route.Filtered

		// sys.* defaults
		if row.Sys.ClassificationSource == "" && row.AI.Match != "" {
			row.Sys.ClassificationSource = models.ClassSourceFreshAI
		}
		if row.Sys.CreatedAt.IsZero() {
			row.Sys.CreatedAt = now
		}
		if row.Sys.UpdatedAt.IsZero() {
			row.Sys.UpdatedAt = now
		}
		if row.Sys.Version == "" {
			row.Sys.Version = common.GetVersion()
		}
	}
	return frame
}

// PrepareForStore projects canonical rows to the persistent-store shape.
// Only rows with a non-empty id.job are projected.
func PrepareForStore(frame *models.Frame) []models.StoreJob {
	if frame == nil {
		return nil
	}

	out := make([]models.StoreJob, 0, len(frame.Rows))
	for _, row := range frame.Rows {
		if row.ID.Job == "" {
			continue
		}

		stored := models.StoreJob{
			JobID:          row.ID.Job,
			JobTitle:       row.Source.Title,
			Company:        row.Source.Company,
			Location:       row.Source.LocationRaw,
			JobDescription: row.Norm.Description,
			MarkdownDesc:   row.Norm.DescriptionMarkdown,
			ApplyURL:       row.Source.URL,
			Salary:         row.Norm.SalaryDisplay,

			MatchLevel:   string(row.AI.Match),
			MatchReason:  row.AI.Reason,
			Summary:      row.AI.Summary,
			FairChance:   row.AI.FairChance,
			Endorsements: row.AI.Endorsements,
			RouteType:    string(row.AI.RouteType),

			Market:               row.Meta.Market,
			SearchQuery:          row.Meta.Query,
			ClassificationSource: row.Sys.ClassificationSource,

			CleanApplyURL: row.Rules.CleanApplyURL,
			TrackedURL:    row.Meta.TrackedURL,
			DuplicateR1:   row.Rules.DuplicateR1,
			DuplicateR2:   row.Rules.DuplicateR2,
			JobIDHash:     row.ID.Job,

			CreatedAt:    row.Sys.CreatedAt,
			UpdatedAt:    row.Sys.UpdatedAt,
			ClassifiedAt: row.Sys.ClassifiedAt,
		}

		if stored.JobDescription == "" {
			stored.JobDescription = row.Source.DescriptionRaw
		}
		if stored.Salary == "" {
			stored.Salary = row.Source.SalaryRaw
		}
		switch row.ID.Source {
		case models.SourceIndeed:
			stored.IndeedJobURL = row.Source.URL
		case models.SourceGoogle:
			stored.GoogleJobURL = row.Source.URL
		}

		out = append(out, stored)
	}
	return out
}
