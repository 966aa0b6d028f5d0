package pipeline

import (
	"github.com/ternarybob/arbor"

	"github.com/driveline/jobfeed/internal/models"
)

// Dedup removes duplicate rows while preserving the best representative.
//
// Order and semantics:
//  1. Exact-id: group by id.job, keep last. Memory rows are concatenated
//     before fresh rows, so keep-last means fresh beats memory.
//  2. R1 (company|title|market): keep first, mark the rest filtered.
//  3. R2 (company|location): over unfiltered rows, keep first.
//  4. URL: over unfiltered rows with a canonical URL, prefer indeed over
//     google within a group.
//
// Rows marked filtered here are physically dropped before the frame moves
// on. Each step is independently toggleable.
func Dedup(frame *models.Frame, settings models.FilterSettings, logger arbor.ILogger) *models.Frame {
	if frame == nil || frame.Len() == 0 {
		return frame
	}

	before := frame.Len()

	dedupExactID(frame)
	if settings.R1Dedup {
		markDuplicates(frame, "filtered: R1 collapse", func(row *models.Job) string {
			return row.Rules.DuplicateR1
		})
	}
	if settings.R2Dedup {
		markDuplicates(frame, "filtered: R2 collapse", func(row *models.Job) string {
			return row.Rules.DuplicateR2
		})
	}
	if settings.URLDedup {
		dedupByURL(frame)
	}

	dropFiltered(frame)

	logger.Info().
		Int("before", before).
		Int("after", frame.Len()).
		Msg("Deduplication complete")

	return frame
}

// dedupExactID keeps the last row for each id.job.
func dedupExactID(frame *models.Frame) {
	lastIndex := make(map[string]int, len(frame.Rows))
	for i, row := range frame.Rows {
		if row.ID.Job != "" {
			lastIndex[row.ID.Job] = i
		}
	}

	rows := make([]*models.Job, 0, len(lastIndex))
	for i, row := range frame.Rows {
		if row.ID.Job == "" || lastIndex[row.ID.Job] == i {
			rows = append(rows, row)
		}
	}
	frame.Rows = rows
}

// markDuplicates applies keep-first over unfiltered rows grouped by key.
// Rows with an empty key are never grouped.
func markDuplicates(frame *models.Frame, reason string, keyFn func(*models.Job) string) {
	seen := make(map[string]bool, len(frame.Rows))
	for _, row := range frame.Rows {
		if row.Route.Filtered {
			continue
		}
		key := keyFn(row)
		if key == "" {
			continue
		}
		if seen[key] {
			markFiltered(row, reason)
			continue
		}
		seen[key] = true
	}
}

// dedupByURL groups unfiltered rows by canonical URL, preferring indeed
// rows over google rows within a group.
func dedupByURL(frame *models.Frame) {
	groups := make(map[string][]*models.Job)
	for _, row := range frame.Rows {
		if row.Route.Filtered || row.Rules.CleanApplyURL == "" {
			continue
		}
		groups[row.Rules.CleanApplyURL] = append(groups[row.Rules.CleanApplyURL], row)
	}

	for _, group := range groups {
		if len(group) < 2 {
			continue
		}

		keeper := group[0]
		for _, row := range group[1:] {
			if keeper.ID.Source != models.SourceIndeed && row.ID.Source == models.SourceIndeed {
				keeper = row
			}
		}
		for _, row := range group {
			if row != keeper {
				markFiltered(row, "filtered: URL duplicate")
			}
		}
	}
}

func markFiltered(row *models.Job, reason string) {
	row.Route.Filtered = true
	row.Route.FinalStatus = reason
	row.Route.ReadyForAI = false
}

// dropFiltered physically removes rows marked filtered during dedup.
func dropFiltered(frame *models.Frame) {
	rows := make([]*models.Job, 0, len(frame.Rows))
	for _, row := range frame.Rows {
		if !row.Route.Filtered {
			rows = append(rows, row)
		}
	}
	frame.Rows = rows
}
