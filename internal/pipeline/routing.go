package pipeline

import (
	"github.com/driveline/jobfeed/internal/models"
)

// ApplyRouting computes the final row-level disposition. After this stage
// every row has a non-empty route.final_status beginning with "included",
// "filtered:", or the deferred "passed_all_filters".
func ApplyRouting(frame *models.Frame, routeFilter string) *models.Frame {
	if frame == nil {
		return frame
	}

	for _, row := range frame.Rows {
		status, filtered, reason := disposition(row, routeFilter)
		row.Route.FinalStatus = status
		if filtered {
			row.Route.Filtered = true
			row.Route.FilterReason = reason
		}
		row.Route.ReadyForExport = row.AI.Match.IsQuality() && !row.Route.Filtered
	}

	return frame
}

// disposition applies the routing rules in order.
func disposition(row *models.Job, routeFilter string) (status string, filtered bool, reason string) {
	switch {
	case row.Rules.IsOwnerOp:
		return "filtered: owner operator", true, "owner operator"
	case row.Rules.IsSchoolBus:
		return "filtered: school bus", true, "school bus"
	case row.Rules.IsSpamSource:
		return "filtered: spam source", true, "spam source"
	}

	if row.AI.Match == models.MatchBad {
		return "filtered: AI classified as bad", true, "AI classified as bad"
	}

	if routeFilter == "local" && row.AI.RouteType != models.RouteLocal {
		return "filtered: route filter", true, "route filter"
	}
	if routeFilter == "otr" && row.AI.RouteType != models.RouteOTR {
		return "filtered: route filter", true, "route filter"
	}

	switch row.AI.Match {
	case models.MatchGood:
		return "included: good match", false, ""
	case models.MatchSoSo:
		return "included: so-so match", false, ""
	}

	return "passed_all_filters", false, ""
}

// MarkExported finalizes the status of exportable rows, distinguishing fresh
// rows from memory reuse, and advances the stage.
func MarkExported(rows []*models.Job) {
	for _, row := range rows {
		if row.Sys.IsFreshJob {
			row.Route.FinalStatus = "included"
		} else {
			row.Route.FinalStatus = "included_from_memory"
		}
		row.Route.Stage = "exported"
	}
}
