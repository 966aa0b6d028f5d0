package pipeline

import (
	"github.com/driveline/jobfeed/internal/models"
)

// ViewReadyForAI returns rows the classifier should process: not yet
// classified, not filtered, and not excluded by an earlier stage.
func ViewReadyForAI(frame *models.Frame) []*models.Job {
	return frame.Select(func(row *models.Job) bool {
		return row.AI.Match == "" && !row.Route.Filtered && row.Route.ReadyForAI
	})
}

// ViewExportable returns unfiltered quality rows.
func ViewExportable(frame *models.Frame) []*models.Job {
	return frame.Select(func(row *models.Job) bool {
		return row.AI.Match.IsQuality() && !row.Route.Filtered
	})
}

// ViewFreshQuality returns exportable rows that were scraped this run and
// classified fresh; these are the rows worth persisting in full.
func ViewFreshQuality(frame *models.Frame) []*models.Job {
	return frame.Select(func(row *models.Job) bool {
		return row.Sys.IsFreshJob &&
			row.Sys.ClassificationSource != models.ClassSourceMemory &&
			row.AI.Match.IsQuality() &&
			!row.Route.Filtered
	})
}

// ViewReusedFromMemory returns rows whose AI fields came from the store this
// run; persistence only refreshes their timestamps.
func ViewReusedFromMemory(frame *models.Frame) []*models.Job {
	return frame.Select(func(row *models.Job) bool {
		return row.Sys.ClassificationSource == models.ClassSourceMemory
	})
}
