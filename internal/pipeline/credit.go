package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/driveline/jobfeed/internal/common"
	"github.com/driveline/jobfeed/internal/interfaces"
	"github.com/driveline/jobfeed/internal/models"
)

// CreditController decides, before scraping, how much fresh work a run
// should buy. Recent quality rows in the store offset the scrape target.
type CreditController struct {
	store      interfaces.JobStorage
	yieldRate  float64
	window     time.Duration
	costPerJob float64
	logger     arbor.ILogger
}

// NewCreditController creates a credit controller from pipeline config.
func NewCreditController(store interfaces.JobStorage, config *common.PipelineConfig, logger arbor.ILogger) *CreditController {
	yield := config.QualityYieldRate
	if yield <= 0 || yield >= 1 {
		yield = 0.15
	}
	window := time.Duration(config.MemoryWindowHours) * time.Hour
	if window <= 0 {
		window = 96 * time.Hour
	}

	return &CreditController{
		store:      store,
		yieldRate:  yield,
		window:     window,
		costPerJob: config.CostPerIndeedJob,
		logger:     logger,
	}
}

// Decide evaluates memory coverage for the market and returns the scraping
// advisory plus the quality rows already available.
//
// With target N and yield Y:
//   - quality target Q = floor(N*Y), capped at 100 when N >= 1000
//   - A >= Q-1          -> FULL_BYPASS, no scraping
//   - A >= 3            -> SMART_CREDIT, scrape ceil((Q-A)/Y), capped at N
//   - otherwise         -> FULL_SCRAPE
//
// forceMemoryOnly forces FULL_BYPASS with whatever is available, including
// nothing.
func (c *CreditController) Decide(ctx context.Context, target int, market, routeFilter string, forceMemoryOnly bool) (*models.CreditDecision, []models.StoreJob, error) {
	// Never preload more memory rows than the run's target; a bypass frame
	// stays capped at N
	available, err := c.store.Search(ctx, models.StoreQuery{
		Market:      market,
		MatchLevels: []string{string(models.MatchGood), string(models.MatchSoSo)},
		Since:       time.Now().Add(-c.window),
		RouteFilter: routeFilter,
		Limit:       target,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("credit controller store lookup failed: %w", err)
	}

	a := len(available)
	q := int(math.Floor(float64(target) * c.yieldRate))
	if target >= 1000 && q > 100 {
		q = 100
	}

	decision := &models.CreditDecision{
		AvailableQuality: a,
		QualityTarget:    q,
	}

	switch {
	case forceMemoryOnly:
		decision.Type = models.CreditFullBypass
		decision.ScrapeTarget = 0
		decision.EstimatedSavings = float64(target) * c.costPerJob
	case a >= q-1:
		decision.Type = models.CreditFullBypass
		decision.ScrapeTarget = 0
		decision.EstimatedSavings = float64(target) * c.costPerJob
	case a >= 3:
		decision.Type = models.CreditSmartCredit
		reduced := int(math.Ceil(float64(q-a) / c.yieldRate))
		if reduced > target {
			reduced = target
		}
		decision.ScrapeTarget = reduced
		decision.EstimatedSavings = float64(target-reduced) * c.costPerJob
	default:
		decision.Type = models.CreditFullScrape
		decision.ScrapeTarget = target
	}

	c.logger.Info().
		Str("decision", string(decision.Type)).
		Str("market", market).
		Int("available_quality", a).
		Int("quality_target", q).
		Int("scrape_target", decision.ScrapeTarget).
		Float64("estimated_savings", decision.EstimatedSavings).
		Msg("Credit controller decision")

	return decision, available, nil
}
