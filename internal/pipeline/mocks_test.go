package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/driveline/jobfeed/internal/common"
	"github.com/driveline/jobfeed/internal/interfaces"
	"github.com/driveline/jobfeed/internal/models"
)

// Mock JobStorage
type mockJobStorage struct {
	mu        sync.Mutex
	jobs      map[string]models.StoreJob
	refreshed []string
	upserted  []models.StoreJob
	searchErr error
}

func newMockJobStorage() *mockJobStorage {
	return &mockJobStorage{jobs: make(map[string]models.StoreJob)}
}

func (m *mockJobStorage) put(job models.StoreJob) {
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = time.Now()
	}
	m.jobs[job.JobID] = job
}

func (m *mockJobStorage) GetByIDs(ctx context.Context, ids []string, window time.Duration) ([]models.StoreJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	since := time.Now().Add(-window)
	var out []models.StoreJob
	for _, id := range ids {
		job, ok := m.jobs[id]
		if !ok {
			continue
		}
		if window > 0 && job.UpdatedAt.Before(since) {
			continue
		}
		out = append(out, job)
	}
	return out, nil
}

func (m *mockJobStorage) Search(ctx context.Context, q models.StoreQuery) ([]models.StoreJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.searchErr != nil {
		return nil, m.searchErr
	}

	var out []models.StoreJob
	for _, job := range m.jobs {
		if q.Market != "" && job.Market != q.Market {
			continue
		}
		if len(q.MatchLevels) > 0 && !containsString(q.MatchLevels, job.MatchLevel) {
			continue
		}
		if !q.Since.IsZero() && job.UpdatedAt.Before(q.Since) {
			continue
		}
		if q.RouteFilter == "local" && job.RouteType != string(models.RouteLocal) {
			continue
		}
		if q.RouteFilter == "otr" && job.RouteType != string(models.RouteOTR) {
			continue
		}
		if q.FairChanceOnly && job.FairChance == "" {
			continue
		}
		out = append(out, job)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

func (m *mockJobStorage) Upsert(ctx context.Context, rows []models.StoreJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range rows {
		m.jobs[row.JobID] = row
		m.upserted = append(m.upserted, row)
	}
	return nil
}

func (m *mockJobStorage) RefreshTimestamps(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		if job, ok := m.jobs[id]; ok {
			job.UpdatedAt = time.Now()
			m.jobs[id] = job
		}
		m.refreshed = append(m.refreshed, id)
	}
	return nil
}

func (m *mockJobStorage) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs), nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Mock KeyValueStorage
type mockKVStorage struct {
	mu     sync.Mutex
	values map[string]string
}

func newMockKVStorage() *mockKVStorage {
	return &mockKVStorage{values: make(map[string]string)}
}

func (m *mockKVStorage) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return "", interfaces.ErrKeyNotFound
}

func (m *mockKVStorage) Set(ctx context.Context, key, value, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *mockKVStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *mockKVStorage) GetAll(ctx context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}

// Mock StorageManager
type mockStorageManager struct {
	job *mockJobStorage
	kv  *mockKVStorage
}

func newMockStorageManager() *mockStorageManager {
	return &mockStorageManager{
		job: newMockJobStorage(),
		kv:  newMockKVStorage(),
	}
}

func (m *mockStorageManager) JobStorage() interfaces.JobStorage           { return m.job }
func (m *mockStorageManager) KeyValueStorage() interfaces.KeyValueStorage { return m.kv }
func (m *mockStorageManager) Close() error                                { return nil }

// Mock Generator with a canned per-job response
type mockGenerator struct {
	mu        sync.Mutex
	calls     int
	responses map[string]string // job_id -> match level
	err       error
	rawText   string // When set, returned verbatim
}

func newMockGenerator() *mockGenerator {
	return &mockGenerator{responses: make(map[string]string)}
}

func (m *mockGenerator) GenerateContent(ctx context.Context, request *interfaces.ContentRequest) (*interfaces.ContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.rawText != "" {
		return &interfaces.ContentResponse{Text: m.rawText, Provider: "mock"}, nil
	}

	// Echo a valid classification for every job id found in the prompt
	prompt := request.Messages[len(request.Messages)-1].Content
	text := `{"classifications": [`
	first := true
	for jobID, match := range m.responses {
		if !promptContains(prompt, jobID) {
			continue
		}
		if !first {
			text += ","
		}
		first = false
		text += fmt.Sprintf(`{"job_id": %q, "match": %q, "reason": "test reason", "summary": "test summary"}`, jobID, match)
	}
	text += `]}`

	return &interfaces.ContentResponse{Text: text, Provider: "mock"}, nil
}

func (m *mockGenerator) HealthCheck(ctx context.Context) error { return nil }
func (m *mockGenerator) Close() error                          { return nil }

func (m *mockGenerator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func promptContains(prompt, jobID string) bool {
	return jobID != "" && strings.Contains(prompt, jobID)
}

// Mock ScraperClient
type mockScraper struct {
	mu       sync.Mutex
	name     string
	postings []models.RawPosting
	cost     float64
	calls    int
	err      error
}

func (m *mockScraper) FetchJobs(ctx context.Context, query models.ScrapeQuery) (*models.ScrapeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &models.ScrapeResult{
		Postings:   m.postings,
		Cost:       m.cost,
		QueryCount: 1,
	}, nil
}

func (m *mockScraper) Name() string { return m.name }

func (m *mockScraper) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Mock LinkTracker
type mockLinkTracker struct {
	mu     sync.Mutex
	prefix string
	tags   map[string]interfaces.LinkTags // target -> tags it was tracked with
}

func (m *mockLinkTracker) TrackURL(ctx context.Context, target string, tags interfaces.LinkTags) string {
	m.mu.Lock()
	if m.tags == nil {
		m.tags = make(map[string]interfaces.LinkTags)
	}
	m.tags[target] = tags
	m.mu.Unlock()

	if m.prefix == "" {
		return target
	}
	return m.prefix + target
}

func (m *mockLinkTracker) tagsFor(target string) interfaces.LinkTags {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tags[target]
}

func (m *mockLinkTracker) TrackBatch(ctx context.Context, targets []string, tags interfaces.LinkTags) map[string]string {
	out := make(map[string]string, len(targets))
	for _, target := range targets {
		out[target] = m.TrackURL(ctx, target, tags)
	}
	return out
}

// Test fixtures

func testPipelineConfig() *common.PipelineConfig {
	cfg := common.DefaultConfig()
	return &cfg.Pipeline
}

func testConfig() *common.Config {
	cfg := common.DefaultConfig()
	cfg.Storage.Snapshots.Enabled = false
	return cfg
}

func freshJob(id, title, company, location string) *models.Job {
	jobID := id
	if jobID == "" {
		jobID = common.JobID(company, location, title)
	}
	return &models.Job{
		ID: models.Identity{Job: jobID, Source: models.SourceIndeed},
		Source: models.SourceFields{
			Title:       title,
			Company:     company,
			LocationRaw: location,
			URL:         "https://www.indeed.com/viewjob?jk=" + jobID,
		},
		Sys: models.SysFields{IsFreshJob: true},
	}
}
