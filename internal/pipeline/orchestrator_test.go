package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveline/jobfeed/internal/common"
	"github.com/driveline/jobfeed/internal/interfaces"
	"github.com/driveline/jobfeed/internal/models"
)

type orchestratorFixture struct {
	orchestrator *Orchestrator
	manager      *mockStorageManager
	indeed       *mockScraper
	google       *mockScraper
	generator    *mockGenerator
	tracker      *mockLinkTracker
}

func newOrchestratorFixture() *orchestratorFixture {
	manager := newMockStorageManager()
	indeed := &mockScraper{name: models.SourceIndeed, cost: 1.5}
	google := &mockScraper{name: models.SourceGoogle}
	generator := newMockGenerator()
	tracker := &mockLinkTracker{prefix: "https://links.test/"}

	scrapers := map[string]interfaces.ScraperClient{
		models.SourceIndeed: indeed,
		models.SourceGoogle: google,
	}

	orchestrator := NewOrchestrator(
		testConfig(),
		manager,
		scrapers,
		tracker,
		generator,
		testLogger(),
	)

	return &orchestratorFixture{
		orchestrator: orchestrator,
		manager:      manager,
		indeed:       indeed,
		google:       google,
		generator:    generator,
		tracker:      tracker,
	}
}

func testSearchRequest(mode string) *models.SearchRequest {
	return &models.SearchRequest{
		Location:       "Dallas, TX",
		Market:         "dallas",
		Mode:           mode,
		RouteFilter:    "both",
		SearchStrategy: "balanced",
		ClassifierType: "cdl",
		FilterSettings: models.DefaultFilterSettings(),
	}
}

func indeedPosting(title, company string) models.RawPosting {
	return models.RawPosting{
		"title":             title,
		"company":           company,
		"formattedLocation": "Dallas, TX",
		"snippet":           "Home daily routes with day cab equipment",
		"viewJobLink":       "https://www.indeed.com/viewjob?jk=" + common.JobID(company, "Dallas, TX", title),
	}
}

func TestRunCompletePipeline_FullBypassServesFromMemory(t *testing.T) {
	f := newOrchestratorFixture()
	// test mode targets 10 jobs, so a single quality row clears the bar
	f.manager.job.put(models.StoreJob{
		JobID:      "mem-1",
		JobTitle:   "CDL-A Local Driver",
		Company:    "Acme Trucking",
		Location:   "Dallas, TX",
		Market:     "dallas",
		MatchLevel: string(models.MatchGood),
		RouteType:  string(models.RouteLocal),
		UpdatedAt:  time.Now().Add(-time.Hour),
	})

	result := f.orchestrator.RunCompletePipeline(context.Background(), testSearchRequest("test"))

	require.Equal(t, "completed", result.Status)
	assert.Equal(t, models.CreditFullBypass, result.Credit.Type)
	assert.Equal(t, 0, f.indeed.callCount(), "bypass must not scrape")
	assert.Equal(t, 0, f.google.callCount())
	assert.Equal(t, 0, f.generator.callCount(), "memory rows are already classified")

	require.Equal(t, 1, result.TotalJobs)
	assert.Equal(t, 1, result.QualityJobs)
	assert.InDelta(t, 100.0, result.Cost.MemoryEfficiency, 1e-9)
	assert.Contains(t, f.manager.job.refreshed, "mem-1")
	assert.Empty(t, f.manager.job.upserted)

	row := result.Frame.Rows[0]
	assert.Equal(t, "included_from_memory", row.Route.FinalStatus)
	assert.Equal(t, result.RunID, row.Sys.RunID)
}

func TestRunCompletePipeline_BypassFrameCappedAtTarget(t *testing.T) {
	f := newOrchestratorFixture()
	// test mode targets 10; memory holds far more quality rows than that
	seedQualityJobs(f.manager.job, "dallas", 25)

	result := f.orchestrator.RunCompletePipeline(context.Background(), testSearchRequest("test"))

	require.Equal(t, "completed", result.Status)
	assert.Equal(t, models.CreditFullBypass, result.Credit.Type)
	assert.Equal(t, 10, result.TotalJobs)
	assert.Equal(t, 10, result.Credit.AvailableQuality)
	assert.Equal(t, 0, f.indeed.callCount())
}

func TestRunCompletePipeline_FullScrapeEndToEnd(t *testing.T) {
	f := newOrchestratorFixture()
	// mini mode targets 50; an empty store forces a full scrape
	jobID := common.JobID("Acme Trucking", "Dallas, TX", "CDL-A Local Driver")
	f.indeed.postings = []models.RawPosting{indeedPosting("CDL-A Local Driver", "Acme Trucking")}
	f.generator.responses[jobID] = string(models.MatchGood)

	result := f.orchestrator.RunCompletePipeline(context.Background(), testSearchRequest("mini"))

	require.Equal(t, "completed", result.Status)
	assert.Equal(t, models.CreditFullScrape, result.Credit.Type)
	assert.Equal(t, 50, result.Credit.ScrapeTarget)
	assert.Equal(t, 1, f.indeed.callCount())
	assert.Equal(t, 1, f.generator.callCount())

	require.Equal(t, 1, result.TotalJobs)
	row := result.Frame.Rows[0]
	assert.Equal(t, models.MatchGood, row.AI.Match)
	assert.Equal(t, models.RouteLocal, row.AI.RouteType)
	assert.Equal(t, "included", row.Route.FinalStatus)
	assert.Equal(t, "https://links.test/"+row.Source.URL, row.Meta.TrackedURL)

	require.Len(t, f.manager.job.upserted, 1)
	assert.Equal(t, jobID, f.manager.job.upserted[0].JobID)

	assert.InDelta(t, 1.5, result.Cost.SourceCosts[models.SourceIndeed], 1e-9)
	assert.InDelta(t, 1.5+0.0003, result.Cost.TotalCost, 1e-9)
}

func TestRunCompletePipeline_OwnerOpFilteredEndToEnd(t *testing.T) {
	f := newOrchestratorFixture()
	jobID := common.JobID("Lease Freight", "Dallas, TX", "Owner Operator CDL-A Driver")
	f.indeed.postings = []models.RawPosting{indeedPosting("Owner Operator CDL-A Driver", "Lease Freight")}
	f.generator.responses[jobID] = string(models.MatchGood)

	result := f.orchestrator.RunCompletePipeline(context.Background(), testSearchRequest("mini"))

	require.Equal(t, "completed", result.Status)
	require.Equal(t, 1, result.TotalJobs)

	row := result.Frame.Rows[0]
	assert.True(t, row.Rules.IsOwnerOp)
	assert.True(t, row.Route.Filtered)
	assert.Equal(t, "filtered: owner operator", row.Route.FinalStatus)
	assert.False(t, row.Route.ReadyForExport)

	assert.Equal(t, 0, result.IncludedJobs)
	assert.Equal(t, 1, result.StatusCounts["filtered: owner operator"])
	assert.Empty(t, f.manager.job.upserted, "filtered rows are never persisted")
}

func TestRunCompletePipeline_MixedMemoryAndFreshStats(t *testing.T) {
	f := newOrchestratorFixture()
	// mini mode: quality target 7; three stored rows trigger smart credit
	seedQualityJobs(f.manager.job, "dallas", 3)

	jobID := common.JobID("Acme Trucking", "Dallas, TX", "CDL-A Local Driver")
	f.indeed.postings = []models.RawPosting{indeedPosting("CDL-A Local Driver", "Acme Trucking")}
	f.generator.responses[jobID] = string(models.MatchGood)

	result := f.orchestrator.RunCompletePipeline(context.Background(), testSearchRequest("mini"))

	require.Equal(t, "completed", result.Status)
	assert.Equal(t, models.CreditSmartCredit, result.Credit.Type)
	assert.Equal(t, 27, result.Credit.ScrapeTarget)

	require.Equal(t, 4, result.TotalJobs)
	assert.InDelta(t, 75.0, result.Cost.MemoryEfficiency, 1e-9)
	assert.InDelta(t, 25.0, result.Cost.FreshShare, 1e-9)
	assert.InDelta(t, 100.0, result.Cost.MemoryEfficiency+result.Cost.FreshShare, 1e-9)

	assert.Len(t, f.manager.job.refreshed, 3)
	assert.Len(t, f.manager.job.upserted, 1)
}

func TestRunCompletePipeline_InvalidRequest(t *testing.T) {
	f := newOrchestratorFixture()
	request := testSearchRequest("mini")
	request.Location = ""

	result := f.orchestrator.RunCompletePipeline(context.Background(), request)

	assert.Equal(t, "error", result.Status)
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, 0, result.TotalJobs)
	assert.Equal(t, 0, f.indeed.callCount())
}

func TestRunCompletePipeline_CreditFailureDegradesToFullScrape(t *testing.T) {
	f := newOrchestratorFixture()
	f.manager.job.searchErr = errors.New("store offline")

	jobID := common.JobID("Acme Trucking", "Dallas, TX", "CDL-A Local Driver")
	f.indeed.postings = []models.RawPosting{indeedPosting("CDL-A Local Driver", "Acme Trucking")}
	f.generator.responses[jobID] = string(models.MatchGood)

	result := f.orchestrator.RunCompletePipeline(context.Background(), testSearchRequest("mini"))

	require.Equal(t, "completed", result.Status)
	assert.Equal(t, models.CreditFullScrape, result.Credit.Type)
	assert.Equal(t, 1, f.indeed.callCount())
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "credit controller unavailable")
}

func TestRunCompletePipeline_SourceFailureIsWarning(t *testing.T) {
	f := newOrchestratorFixture()
	f.indeed.err = errors.New("provider 500")

	jobID := common.JobID("Beta Freight", "Dallas, TX", "Local CDL Driver")
	f.google.postings = []models.RawPosting{{
		"title":        "Local CDL Driver",
		"company_name": "Beta Freight",
		"location":     "Dallas, TX",
		"description":  "Home daily routes",
		"share_link":   "https://www.google.com/search?jobid=" + jobID,
	}}
	f.generator.responses[jobID] = string(models.MatchGood)

	result := f.orchestrator.RunCompletePipeline(context.Background(), testSearchRequest("mini"))

	require.Equal(t, "completed", result.Status)
	assert.Equal(t, 1, result.TotalJobs)
	assert.Equal(t, models.SourceGoogle, result.Frame.Rows[0].ID.Source)

	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "source indeed failed")
}

func TestRunCompletePipeline_ForceFreshSkipsCreditController(t *testing.T) {
	f := newOrchestratorFixture()
	// enough memory rows for a bypass, which force_fresh must override
	f.manager.job.put(models.StoreJob{
		JobID:      "mem-1",
		Market:     "dallas",
		MatchLevel: string(models.MatchGood),
		UpdatedAt:  time.Now().Add(-time.Hour),
	})

	jobID := common.JobID("Acme Trucking", "Dallas, TX", "CDL-A Local Driver")
	f.indeed.postings = []models.RawPosting{indeedPosting("CDL-A Local Driver", "Acme Trucking")}
	f.generator.responses[jobID] = string(models.MatchGood)

	request := testSearchRequest("test")
	request.ForceFresh = true

	result := f.orchestrator.RunCompletePipeline(context.Background(), request)

	require.Equal(t, "completed", result.Status)
	assert.Equal(t, models.CreditFullScrape, result.Credit.Type)
	assert.Equal(t, 1, f.indeed.callCount())
}

func TestRunCompletePipeline_EmptyRunCompletes(t *testing.T) {
	f := newOrchestratorFixture()
	// full scrape with no postings from either source
	result := f.orchestrator.RunCompletePipeline(context.Background(), testSearchRequest("mini"))

	assert.Equal(t, "completed", result.Status)
	assert.Equal(t, 0, result.TotalJobs)
	assert.Equal(t, 0, f.generator.callCount())
}

func TestRunMemoryOnlySearch_EmptyStore(t *testing.T) {
	f := newOrchestratorFixture()

	result := f.orchestrator.RunMemoryOnlySearch(context.Background(), &models.MemorySearchRequest{
		Location: "Dallas, TX",
		Market:   "dallas",
	})

	assert.Equal(t, "completed", result.Status)
	assert.Equal(t, 0, result.TotalJobs)
	assert.Empty(t, result.Error)

	// Nothing was scraped, so the cost block reports a fully served-from-memory run
	assert.InDelta(t, 100.0, result.Cost.MemoryEfficiency, 1e-9)
	assert.InDelta(t, 0.0, result.Cost.FreshShare, 1e-9)
}

func TestRunMemoryOnlySearch_ReturnsStoredRows(t *testing.T) {
	f := newOrchestratorFixture()
	seedQualityJobs(f.manager.job, "dallas", 2)

	result := f.orchestrator.RunMemoryOnlySearch(context.Background(), &models.MemorySearchRequest{
		Location: "Dallas, TX",
		Market:   "dallas",
		Agent:    models.AgentContext{Name: "Jordan", CoachUsername: "coach_k"},
	})

	require.Equal(t, "completed", result.Status)
	require.Equal(t, 2, result.TotalJobs)
	assert.Equal(t, 2, result.QualityJobs)

	for _, row := range result.Frame.Rows {
		assert.Equal(t, models.ClassSourceMemory, row.Sys.ClassificationSource)
		assert.False(t, row.Sys.IsFreshJob)
		assert.True(t, row.Route.ReadyForExport)
		assert.Equal(t, result.RunID, row.Sys.RunID)
		assert.Equal(t, "coach_k", row.Agent.CoachUsername)
	}
}

func TestTrackLinks_TagsCarryMatchAndFairChance(t *testing.T) {
	f := newOrchestratorFixture()
	request := testSearchRequest("mini")
	request.Agent = models.AgentContext{UUID: "agent-1", CoachUsername: "coach_k"}

	good := freshJob("", "CDL-A Local Driver", "Acme Trucking", "Dallas, TX")
	good.AI.Match = models.MatchGood
	good.AI.FairChance = "Fair chance employer"
	soso := freshJob("", "CDL-A Regional Driver", "Beta Freight", "Dallas, TX")
	soso.AI.Match = models.MatchSoSo

	f.orchestrator.trackLinks(context.Background(), []*models.Job{good, soso}, request)

	assert.Equal(t, "https://links.test/"+good.Source.URL, good.Meta.TrackedURL)

	goodTags := f.tracker.tagsFor(good.Source.URL)
	assert.Equal(t, "coach_k", goodTags.Coach)
	assert.Equal(t, "agent-1", goodTags.Candidate)
	assert.Equal(t, string(models.MatchGood), goodTags.Match)
	assert.Equal(t, "Fair chance employer", goodTags.FairChance)

	sosoTags := f.tracker.tagsFor(soso.Source.URL)
	assert.Equal(t, string(models.MatchSoSo), sosoTags.Match)
	assert.Empty(t, sosoTags.FairChance)
}

func TestRunCompletePipeline_FailureWritesErrorSnapshot(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.Storage.Snapshots.Enabled = true
	cfg.Storage.Snapshots.Dir = dir

	orchestrator := NewOrchestrator(
		cfg,
		newMockStorageManager(),
		map[string]interfaces.ScraperClient{},
		&mockLinkTracker{},
		newMockGenerator(),
		testLogger(),
	)

	request := testSearchRequest("mini")
	request.Location = ""

	result := orchestrator.RunCompletePipeline(context.Background(), request)

	require.Equal(t, "error", result.Status)
	_, err := os.Stat(filepath.Join(dir, result.RunID+"_error.json"))
	assert.NoError(t, err, "failed runs still leave an error snapshot")
}

func TestRunMemoryOnlySearch_StoreErrorFails(t *testing.T) {
	f := newOrchestratorFixture()
	f.manager.job.searchErr = errors.New("store offline")

	result := f.orchestrator.RunMemoryOnlySearch(context.Background(), &models.MemorySearchRequest{
		Location: "Dallas, TX",
	})

	assert.Equal(t, "error", result.Status)
	assert.Contains(t, result.Error, "memory search failed")
}
