package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/driveline/jobfeed/internal/common"
	"github.com/driveline/jobfeed/internal/interfaces"
	"github.com/driveline/jobfeed/internal/models"
)

// Classifier assigns ai.* fields to unclassified rows, reusing stored
// classifications where the store has a recent hit and batching the rest
// through the LLM.
type Classifier struct {
	generator interfaces.Generator
	store     interfaces.JobStorage
	config    *common.PipelineConfig
	logger    arbor.ILogger
}

// ClassifyStats summarizes one classification pass.
type ClassifyStats struct {
	Candidates  int
	ReusedIDs   []string
	FreshCount  int
	ErrorCount  int
	BatchCount  int
	Cost        float64
}

// classificationResult is one per-job entry of the LLM response.
type classificationResult struct {
	JobID            string `json:"job_id"`
	Match            string `json:"match"`
	Reason           string `json:"reason"`
	Summary          string `json:"summary"`
	FairChance       string `json:"fair_chance"`
	Endorsements     string `json:"endorsements"`
	CareerPathway    string `json:"career_pathway"`
	TrainingProvided bool   `json:"training_provided"`
}

type classificationResponse struct {
	Classifications []classificationResult `json:"classifications"`
}

// NewClassifier creates a classifier
func NewClassifier(generator interfaces.Generator, store interfaces.JobStorage, config *common.PipelineConfig, logger arbor.ILogger) *Classifier {
	return &Classifier{
		generator: generator,
		store:     store,
		config:    config,
		logger:    logger,
	}
}

// Classify runs the memory reuse pre-pass and then the LLM over remaining
// rows. It touches only rows selected by ViewReadyForAI; everything else is
// left exactly as it was.
func (c *Classifier) Classify(ctx context.Context, frame *models.Frame, classifierType string, forceFresh bool) (*ClassifyStats, error) {
	stats := &ClassifyStats{}

	candidates := ViewReadyForAI(frame)
	stats.Candidates = len(candidates)
	if len(candidates) == 0 {
		return stats, nil
	}

	remaining := candidates
	if !forceFresh && c.store != nil {
		reused, err := c.reuseFromStore(ctx, frame, candidates)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Memory reuse pre-pass failed, classifying everything fresh")
		} else {
			stats.ReusedIDs = reused
			remaining = ViewReadyForAI(frame)
		}
	}

	if len(remaining) == 0 {
		return stats, nil
	}

	batches := c.batch(remaining)
	stats.BatchCount = len(batches)

	concurrency := c.config.MaxConcurrentBatches
	if concurrency <= 0 {
		concurrency = 12
	}

	batchTimeout := common.ParseDurationOr(c.config.BatchTimeout, 45*time.Second)

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)
	var mu sync.Mutex

	for i, batch := range batches {
		wg.Add(1)
		sem <- struct{}{}
		go func(index int, rows []*models.Job) {
			defer wg.Done()
			defer func() { <-sem }()

			batchCtx, cancel := context.WithTimeout(ctx, batchTimeout)
			defer cancel()

			fresh, errored := c.classifyBatch(batchCtx, index, rows, classifierType)

			mu.Lock()
			stats.FreshCount += fresh
			stats.ErrorCount += errored
			mu.Unlock()
		}(i, batch)
	}
	wg.Wait()

	stats.Cost = float64(stats.FreshCount) * c.config.CostPerClassification

	c.logger.Info().
		Int("candidates", stats.Candidates).
		Int("reused", len(stats.ReusedIDs)).
		Int("fresh", stats.FreshCount).
		Int("errors", stats.ErrorCount).
		Int("batches", stats.BatchCount).
		Msg("Classification complete")

	return stats, nil
}

// reuseFromStore looks up all candidate ids within the reuse window and
// folds stored AI fields back into the frame.
func (c *Classifier) reuseFromStore(ctx context.Context, frame *models.Frame, candidates []*models.Job) ([]string, error) {
	ids := make([]string, 0, len(candidates))
	for _, row := range candidates {
		ids = append(ids, row.ID.Job)
	}

	window := time.Duration(c.config.ReuseWindowHours) * time.Hour
	if window <= 0 {
		window = 720 * time.Hour
	}

	stored, err := c.store.GetByIDs(ctx, ids, window)
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return nil, nil
	}

	reused := MergeStoredAI(frame, stored)
	c.logger.Info().
		Int("candidates", len(candidates)).
		Int("reused", len(reused)).
		Msg("Reused classifications from memory store")
	return reused, nil
}

// batch splits rows into LLM-call sized groups.
func (c *Classifier) batch(rows []*models.Job) [][]*models.Job {
	size := c.config.BatchSize
	if size <= 0 {
		size = 25
	}

	var batches [][]*models.Job
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		batches = append(batches, rows[start:end])
	}
	return batches
}

// classifyBatch sends one batch to the LLM and merges the results by job_id.
// Any failure marks the whole batch with error rows; a failed batch never
// aborts the stage.
func (c *Classifier) classifyBatch(ctx context.Context, index int, rows []*models.Job, classifierType string) (fresh, errored int) {
	prompt, err := buildBatchPrompt(rows)
	if err != nil {
		c.markBatchError(rows, "prompt build failed")
		return 0, len(rows)
	}

	response, err := c.generator.GenerateContent(ctx, &interfaces.ContentRequest{
		Messages: []interfaces.Message{
			{Role: "user", Content: prompt},
		},
		SystemInstruction: systemPrompt(classifierType),
		OutputSchema:      classificationSchema(),
	})
	if err != nil {
		c.logger.Warn().Err(err).Int("batch", index).Int("rows", len(rows)).Msg("Classification batch failed")
		c.markBatchError(rows, shortCause(err))
		return 0, len(rows)
	}

	results, err := parseClassificationResponse(response.Text)
	if err != nil {
		c.logger.Warn().Err(err).Int("batch", index).Msg("Classification response unparseable")
		c.markBatchError(rows, "unparseable response")
		return 0, len(rows)
	}

	now := time.Now().UTC()
	for _, row := range rows {
		result, ok := results[row.ID.Job]
		if !ok {
			c.markRowError(row, "missing from response")
			errored++
			continue
		}

		row.AI.Match = models.MatchLevel(result.Match)
		row.AI.Reason = result.Reason
		row.AI.Summary = result.Summary
		row.AI.FairChance = result.FairChance
		row.AI.Endorsements = result.Endorsements
		if classifierType == "pathway" {
			row.AI.CareerPathway = result.CareerPathway
			row.AI.TrainingProvided = result.TrainingProvided
		}
		row.Sys.ClassificationSource = models.ClassSourceFreshAI
		row.Sys.ClassifiedAt = now
		fresh++
	}

	return fresh, errored
}

func (c *Classifier) markBatchError(rows []*models.Job, cause string) {
	for _, row := range rows {
		c.markRowError(row, cause)
	}
}

func (c *Classifier) markRowError(row *models.Job, cause string) {
	row.AI.Match = models.MatchError
	row.AI.Reason = "Classification failed: " + cause
	row.AI.Summary = "Job classification encountered an error"
	row.Sys.ClassificationSource = models.ClassSourceFreshAI
}

// parseClassificationResponse parses the strict JSON reply, tolerating
// markdown fences some providers wrap around JSON.
func parseClassificationResponse(text string) (map[string]classificationResult, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var envelope classificationResponse
	if err := json.Unmarshal([]byte(cleaned), &envelope); err != nil {
		return nil, fmt.Errorf("invalid classification JSON: %w", err)
	}
	if len(envelope.Classifications) == 0 {
		return nil, fmt.Errorf("classification JSON contains no entries")
	}

	results := make(map[string]classificationResult, len(envelope.Classifications))
	for _, result := range envelope.Classifications {
		if result.JobID == "" {
			continue
		}
		if !validMatch(result.Match) {
			result.Match = string(models.MatchError)
			result.Reason = "Classification failed: invalid match level"
			result.Summary = "Job classification encountered an error"
		}
		results[result.JobID] = result
	}
	return results, nil
}

func validMatch(match string) bool {
	switch models.MatchLevel(match) {
	case models.MatchGood, models.MatchSoSo, models.MatchBad:
		return true
	}
	return false
}

func shortCause(err error) string {
	msg := err.Error()
	if len(msg) > 80 {
		msg = msg[:80]
	}
	return msg
}
