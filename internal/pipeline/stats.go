package pipeline

import (
	"github.com/driveline/jobfeed/internal/models"
)

// BuildStats fills the counting and economics blocks of a result from the
// final frame. memory_efficiency and fresh_share always sum to 100; an empty
// run scraped nothing and reports full memory efficiency.
func BuildStats(result *models.PipelineResult, frame *models.Frame) {
	result.MatchCounts = make(map[string]int)
	result.RouteCounts = make(map[string]int)
	result.StatusCounts = make(map[string]int)

	memoryRows := 0
	for _, row := range frame.Rows {
		if row.AI.Match != "" {
			result.MatchCounts[string(row.AI.Match)]++
		}
		if row.AI.RouteType != "" {
			result.RouteCounts[string(row.AI.RouteType)]++
		}
		if row.Route.FinalStatus != "" {
			result.StatusCounts[row.Route.FinalStatus]++
		}
		if row.AI.Match.IsQuality() {
			result.QualityJobs++
		}
		if !row.Route.Filtered {
			result.IncludedJobs++
		}
		if row.Sys.ClassificationSource == models.ClassSourceMemory || !row.Sys.IsFreshJob {
			memoryRows++
		}
	}

	result.TotalJobs = frame.Len()

	if result.TotalJobs > 0 {
		result.Cost.MemoryEfficiency = float64(memoryRows) / float64(result.TotalJobs) * 100
	} else {
		result.Cost.MemoryEfficiency = 100
	}
	result.Cost.FreshShare = 100 - result.Cost.MemoryEfficiency

	result.Cost.TotalCost = result.Cost.ClassificationCost
	for _, cost := range result.Cost.SourceCosts {
		result.Cost.TotalCost += cost
	}
	if result.QualityJobs > 0 {
		result.Cost.CostPerQualityJob = result.Cost.TotalCost / float64(result.QualityJobs)
	}
}
