package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/driveline/jobfeed/internal/common"
	"github.com/driveline/jobfeed/internal/interfaces"
	"github.com/driveline/jobfeed/internal/models"
	"github.com/driveline/jobfeed/internal/sources"
)

// Orchestrator wires the stages into the complete pipeline run:
// credit decision, ingestion, normalization, rules, dedup, classification,
// route derivation, routing, link tracking, and persistence.
type Orchestrator struct {
	config      *common.Config
	storage     interfaces.StorageManager
	scrapers    map[string]interfaces.ScraperClient
	linkTracker interfaces.LinkTracker
	classifier  *Classifier
	credit      *CreditController
	checkpoints *Checkpointer
	validate    *validator.Validate
	logger      arbor.ILogger
}

// NewOrchestrator creates the pipeline orchestrator
func NewOrchestrator(
	config *common.Config,
	storage interfaces.StorageManager,
	scrapers map[string]interfaces.ScraperClient,
	linkTracker interfaces.LinkTracker,
	generator interfaces.Generator,
	logger arbor.ILogger,
) *Orchestrator {
	return &Orchestrator{
		config:      config,
		storage:     storage,
		scrapers:    scrapers,
		linkTracker: linkTracker,
		classifier:  NewClassifier(generator, storage.JobStorage(), &config.Pipeline, logger),
		credit:      NewCreditController(storage.JobStorage(), &config.Pipeline, logger),
		checkpoints: NewCheckpointer(config.Storage.Snapshots.Dir, config.Storage.Snapshots.Enabled, logger),
		validate:    validator.New(),
		logger:      logger,
	}
}

// sourceFetch is one completed scraper call.
type sourceFetch struct {
	source string
	result *models.ScrapeResult
	err    error
}

// RunCompletePipeline executes the full ingestion-to-persistence flow and
// always returns a result; partial failures surface as warnings, total
// failures as status "error".
func (o *Orchestrator) RunCompletePipeline(ctx context.Context, request *models.SearchRequest) *models.PipelineResult {
	started := time.Now()
	result := &models.PipelineResult{
		RunID:  common.NewRunID(),
		Status: "completed",
		Cost: models.CostBlock{
			SourceCosts: make(map[string]float64),
		},
	}

	log := o.logger.WithCorrelationId(result.RunID)
	log.Info().
		Str("location", request.Location).
		Str("mode", request.Mode).
		Str("route_filter", request.RouteFilter).
		Msg("Starting pipeline run")

	if err := o.validate.Struct(request); err != nil {
		return o.fail(result, started, fmt.Errorf("invalid search request: %w", err))
	}

	market := request.MarketLabel()
	target := request.Limit()

	// Credit decision before any scraping
	decision, memoryRows, err := o.decide(ctx, request, target, market)
	if err != nil {
		result.Warn(fmt.Sprintf("credit controller unavailable, scraping full target: %v", err))
		decision = &models.CreditDecision{Type: models.CreditFullScrape, ScrapeTarget: target}
	}
	result.Credit = *decision

	// Ingest: memory rows first, fresh rows appended last so exact-id dedup
	// keeps fresh
	frame := EmptyFrame()
	frame.Append(sources.IngestMemory(memoryRows)...)

	if decision.ScrapeTarget > 0 {
		fresh := o.ingestFresh(ctx, request, decision.ScrapeTarget, result, log)
		frame.Concat(fresh)
	}

	o.applyContext(frame, request, result.RunID, market)
	EnsureSchema(frame)
	o.checkpoints.Write(result.RunID, "ingested", frame)

	if frame.Len() == 0 {
		log.Info().Msg("No rows ingested, finishing empty run")
		result.Frame = frame
		BuildStats(result, frame)
		result.ProcessingTimeSeconds = time.Since(started).Seconds()
		return result
	}

	Normalize(frame)
	o.checkpoints.Write(result.RunID, "normalized", frame)

	ApplyRules(frame, market, request.FilterSettings)
	o.checkpoints.Write(result.RunID, "rules", frame)

	Dedup(frame, request.FilterSettings, log)
	o.checkpoints.Write(result.RunID, "dedup", frame)

	stats, err := o.classifier.Classify(ctx, frame, request.ClassifierType, request.ForceFreshClassification)
	if err != nil {
		result.Warn(fmt.Sprintf("classification degraded: %v", err))
	}
	if stats != nil {
		result.Cost.ClassificationCost = stats.Cost
		if stats.ErrorCount > 0 {
			result.Warn(fmt.Sprintf("%d rows failed classification", stats.ErrorCount))
		}
	}
	o.checkpoints.Write(result.RunID, "classified", frame)

	DeriveRouteType(frame)
	ApplyRouting(frame, request.RouteFilter)
	o.checkpoints.Write(result.RunID, "routed", frame)

	// Export preparation
	exportable := ViewExportable(frame)
	MarkExported(exportable)
	o.trackLinks(ctx, exportable, request)
	Sanctify(frame)
	o.checkpoints.Write(result.RunID, "final", frame)

	// Persistence: fresh rows in full, reused rows timestamp-only
	o.persist(ctx, frame, request, result, log)

	result.Frame = frame
	BuildStats(result, frame)
	result.ProcessingTimeSeconds = time.Since(started).Seconds()

	log.Info().
		Int("total_jobs", result.TotalJobs).
		Int("quality_jobs", result.QualityJobs).
		Float64("total_cost", result.Cost.TotalCost).
		Float64("memory_efficiency", result.Cost.MemoryEfficiency).
		Float64("seconds", result.ProcessingTimeSeconds).
		Msg("Pipeline run complete")

	return result
}

// RunMemoryOnlySearch serves a search purely from the persistent store. An
// empty store yields a completed result with zero rows, never an error.
func (o *Orchestrator) RunMemoryOnlySearch(ctx context.Context, request *models.MemorySearchRequest) *models.PipelineResult {
	started := time.Now()
	result := &models.PipelineResult{
		RunID:  common.NewRunID(),
		Status: "completed",
		Cost: models.CostBlock{
			SourceCosts: make(map[string]float64),
		},
	}

	log := o.logger.WithCorrelationId(result.RunID)

	if err := o.validate.Struct(request); err != nil {
		return o.fail(result, started, fmt.Errorf("invalid memory search request: %w", err))
	}

	market := request.Market
	if market == "" {
		market = request.Location
	}

	levels := request.MatchLevels
	if len(levels) == 0 {
		levels = []string{string(models.MatchGood), string(models.MatchSoSo)}
	}

	query := models.StoreQuery{
		Market:         market,
		MatchLevels:    levels,
		RouteFilter:    request.RouteFilter,
		FairChanceOnly: request.FairChanceOnly,
		Limit:          request.Limit,
	}
	if request.WindowHours > 0 {
		query.Since = time.Now().Add(-time.Duration(request.WindowHours) * time.Hour)
	}

	storeCtx, cancel := context.WithTimeout(ctx, common.ParseDurationOr(o.config.Pipeline.StoreTimeout, 10*time.Second))
	defer cancel()

	stored, err := o.storage.JobStorage().Search(storeCtx, query)
	if err != nil {
		return o.fail(result, started, fmt.Errorf("memory search failed: %w", err))
	}

	frame := EmptyFrame()
	frame.Append(sources.IngestMemory(stored)...)
	for _, row := range frame.Rows {
		row.Sys.RunID = result.RunID
		row.Search.Location = request.Location
		row.Agent = models.AgentFields(request.Agent)
		if row.Meta.Market == "" {
			row.Meta.Market = market
		}
	}
	EnsureSchema(frame)
	Sanctify(frame)

	result.Frame = frame
	BuildStats(result, frame)
	result.ProcessingTimeSeconds = time.Since(started).Seconds()

	log.Info().
		Int("rows", frame.Len()).
		Str("market", market).
		Msg("Memory-only search complete")

	return result
}

// decide consults the credit controller. force_fresh skips the bypass logic
// entirely; force_memory_only forces a bypass with whatever is stored.
func (o *Orchestrator) decide(ctx context.Context, request *models.SearchRequest, target int, market string) (*models.CreditDecision, []models.StoreJob, error) {
	if request.ForceFresh && !request.ForceMemoryOnly {
		return &models.CreditDecision{Type: models.CreditFullScrape, ScrapeTarget: target}, nil, nil
	}

	storeCtx, cancel := context.WithTimeout(ctx, common.ParseDurationOr(o.config.Pipeline.StoreTimeout, 10*time.Second))
	defer cancel()

	decision, available, err := o.credit.Decide(storeCtx, target, market, request.RouteFilter, request.ForceMemoryOnly)
	if err != nil {
		return nil, nil, err
	}

	// FULL_SCRAPE still lets memory rows join the pipeline as usual
	return decision, available, nil
}

// ingestFresh fetches from every enabled source concurrently and converts
// raw postings to canonical rows. The search strategy decides the append
// order, which feeds dedup's keep-first preference.
func (o *Orchestrator) ingestFresh(ctx context.Context, request *models.SearchRequest, target int, result *models.PipelineResult, log arbor.ILogger) *models.Frame {
	enabled := make([]string, 0, len(o.scrapers))
	for _, name := range o.sourceOrder(request.SearchStrategy) {
		if request.SourceEnabled(name) && o.scrapers[name] != nil {
			enabled = append(enabled, name)
		}
	}
	if len(enabled) == 0 {
		result.Warn("no scraping sources enabled")
		return EmptyFrame()
	}

	query := models.ScrapeQuery{
		Terms:        request.SearchTerms,
		Location:     request.Location,
		Radius:       request.Radius,
		Limit:        target,
		NoExperience: request.NoExperience,
	}
	if len(query.Terms) == 0 {
		query.Terms = []string{"CDL driver"}
	}

	timeout := common.ParseDurationOr(o.config.Pipeline.SourceTimeout, 5*time.Minute)

	fetches := make(chan sourceFetch, len(enabled))
	var wg sync.WaitGroup
	for _, name := range enabled {
		wg.Add(1)
		client := o.scrapers[name]
		common.SafeGo(log, "scrape_"+name, func() {
			defer wg.Done()
			sourceCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			res, err := client.FetchJobs(sourceCtx, query)
			fetches <- sourceFetch{source: name, result: res, err: err}
		})
	}
	wg.Wait()
	close(fetches)

	bySource := make(map[string]*models.ScrapeResult, len(enabled))
	for fetch := range fetches {
		if fetch.err != nil {
			log.Warn().Err(fetch.err).Str("source", fetch.source).Msg("Source fetch failed")
			result.Warn(fmt.Sprintf("source %s failed: %v", fetch.source, fetch.err))
			continue
		}
		bySource[fetch.source] = fetch.result
		result.Cost.SourceCosts[fetch.source] += fetch.result.Cost
	}

	// Append in strategy order so downstream keep-first dedup prefers the
	// leading source
	frame := EmptyFrame()
	for _, name := range enabled {
		res, ok := bySource[name]
		if !ok {
			continue
		}
		switch name {
		case models.SourceIndeed:
			frame.Append(sources.IngestOutscraper(res.Postings, log)...)
		case models.SourceGoogle:
			frame.Append(sources.IngestGoogle(res.Postings, log)...)
		}
	}

	log.Info().Int("rows", frame.Len()).Msg("Fresh ingestion complete")
	return frame
}

// sourceOrder returns the source launch order implied by the strategy.
func (o *Orchestrator) sourceOrder(strategy string) []string {
	if strategy == "google_first" {
		return []string{models.SourceGoogle, models.SourceIndeed}
	}
	return []string{models.SourceIndeed, models.SourceGoogle}
}

// applyContext stamps the run, search, and agent context onto every row.
func (o *Orchestrator) applyContext(frame *models.Frame, request *models.SearchRequest, runID, market string) {
	query := ""
	if len(request.SearchTerms) > 0 {
		query = request.SearchTerms[0]
	}

	for _, row := range frame.Rows {
		row.Sys.RunID = runID
		if row.Meta.Market == "" {
			row.Meta.Market = market
		}
		if row.Meta.Query == "" {
			row.Meta.Query = query
		}

		row.Search = models.SearchFields{
			Location:       request.Location,
			Mode:           request.Mode,
			Limit:          request.Limit(),
			RouteFilter:    request.RouteFilter,
			Sources:        request.SearchSources,
			Strategy:       request.SearchStrategy,
			ClassifierType: request.ClassifierType,
			CustomLocation: request.CustomLocation,
		}
		row.Agent = models.AgentFields(request.Agent)
	}
}

// trackLinks generates tracked URLs for exportable rows that lack one.
// Best effort throughout; the tracker returns the original URL on failure.
func (o *Orchestrator) trackLinks(ctx context.Context, rows []*models.Job, request *models.SearchRequest) {
	if o.linkTracker == nil {
		return
	}

	var pending []*models.Job
	for _, row := range rows {
		if row.Source.URL == "" {
			continue
		}
		if row.Meta.TrackedURL == "" || request.ForceLinkGeneration {
			pending = append(pending, row)
		}
	}
	if len(pending) == 0 {
		return
	}

	// Batch per tag set: match level and fair chance vary row by row
	groups := make(map[interfaces.LinkTags][]*models.Job)
	for _, row := range pending {
		tags := interfaces.LinkTags{
			Coach:      request.Agent.CoachUsername,
			Candidate:  request.Agent.UUID,
			Market:     request.MarketLabel(),
			Route:      request.RouteFilter,
			Match:      string(row.AI.Match),
			FairChance: row.AI.FairChance,
		}
		groups[tags] = append(groups[tags], row)
	}

	for tags, rows := range groups {
		targets := make([]string, 0, len(rows))
		for _, row := range rows {
			targets = append(targets, row.Source.URL)
		}

		tracked := o.linkTracker.TrackBatch(ctx, targets, tags)
		for _, row := range rows {
			if url, ok := tracked[row.Source.URL]; ok && url != "" {
				row.Meta.TrackedURL = url
			}
		}
	}
}

// persist upserts fresh exportable rows in full and refreshes timestamps for
// rows reused from memory. Persistence failures degrade to warnings.
func (o *Orchestrator) persist(ctx context.Context, frame *models.Frame, request *models.SearchRequest, result *models.PipelineResult, log arbor.ILogger) {
	storeCtx, cancel := context.WithTimeout(ctx, common.ParseDurationOr(o.config.Pipeline.StoreTimeout, 10*time.Second))
	defer cancel()

	freshRows := ViewFreshQuality(frame)
	if len(freshRows) > 0 {
		freshFrame := &models.Frame{Rows: freshRows}
		stored := PrepareForStore(freshFrame)
		if err := o.storage.JobStorage().Upsert(storeCtx, stored); err != nil {
			log.Warn().Err(err).Int("rows", len(stored)).Msg("Failed to persist fresh rows")
			result.Warn(fmt.Sprintf("persistence failed for %d fresh rows: %v", len(stored), err))
		} else {
			log.Info().Int("rows", len(stored)).Msg("Persisted fresh quality rows")
		}
	}

	reused := ViewReusedFromMemory(frame)
	if len(reused) > 0 {
		ids := make([]string, 0, len(reused))
		for _, row := range reused {
			if row.ID.Job != "" {
				ids = append(ids, row.ID.Job)
			}
		}
		if err := o.storage.JobStorage().RefreshTimestamps(storeCtx, ids); err != nil {
			log.Warn().Err(err).Int("rows", len(ids)).Msg("Failed to refresh reused rows")
			result.Warn(fmt.Sprintf("timestamp refresh failed for %d rows: %v", len(ids), err))
		}
	}
}

func (o *Orchestrator) fail(result *models.PipelineResult, started time.Time, err error) *models.PipelineResult {
	o.logger.Error().Err(err).Str("run_id", result.RunID).Msg("Pipeline run failed")
	result.Status = "error"
	result.Error = err.Error()
	result.Frame = EmptyFrame()
	BuildStats(result, result.Frame)
	o.checkpoints.Write(result.RunID, "error", result.Frame)
	result.ProcessingTimeSeconds = time.Since(started).Seconds()
	return result
}
