package pipeline

import (
	"github.com/driveline/jobfeed/internal/models"
)

// MergeStoredAI folds persisted AI fields back into the frame, keyed by
// id.job. Rows that receive fields are marked as memory-classified; rows
// without a store hit are untouched. Returns the ids that were folded in.
func MergeStoredAI(frame *models.Frame, stored []models.StoreJob) []string {
	if frame == nil || len(stored) == 0 {
		return nil
	}

	index := frame.ByJobID()
	merged := make([]string, 0, len(stored))

	for _, s := range stored {
		row, ok := index[s.JobID]
		if !ok {
			continue
		}

		row.AI.Match = models.MatchLevel(s.MatchLevel)
		row.AI.Reason = s.MatchReason
		row.AI.Summary = s.Summary
		row.AI.FairChance = s.FairChance
		row.AI.Endorsements = s.Endorsements
		if s.RouteType != "" {
			row.AI.RouteType = models.RouteType(s.RouteType)
		}

		row.Sys.ClassificationSource = models.ClassSourceMemory
		row.Sys.ClassifiedAt = s.ClassifiedAt

		merged = append(merged, s.JobID)
	}

	return merged
}
