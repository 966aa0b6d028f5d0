package scrapers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/driveline/jobfeed/internal/common"
	"github.com/driveline/jobfeed/internal/interfaces"
	"github.com/driveline/jobfeed/internal/models"
)

// GoogleJobsClient fetches Google Jobs postings through a SERP-style API.
// Cost is charged per submitted query, one query per search term.
type GoogleJobsClient struct {
	config       *common.ScraperEndpointConfig
	costPerQuery float64
	kvStorage    interfaces.KeyValueStorage
	httpClient   *http.Client
	limiter      *rate.Limiter
	retry        *RetryPolicy
	logger       arbor.ILogger
}

type googleJobsResponse struct {
	JobsResults []json.RawMessage `json:"jobs_results"`
	Error       string            `json:"error"`
}

// NewGoogleJobsClient creates a Google Jobs scraper client
func NewGoogleJobsClient(
	config *common.ScraperEndpointConfig,
	costPerQuery float64,
	kvStorage interfaces.KeyValueStorage,
	logger arbor.ILogger,
) interfaces.ScraperClient {
	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = 1.0
	}

	return &GoogleJobsClient{
		config:       config,
		costPerQuery: costPerQuery,
		kvStorage:    kvStorage,
		httpClient: &http.Client{
			Timeout: common.ParseDurationOr(config.Timeout, 5*time.Minute),
		},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		retry:   NewRetryPolicy(config.MaxRetries),
		logger:  logger,
	}
}

// Name returns the source identifier for postings from this client
func (c *GoogleJobsClient) Name() string {
	return models.SourceGoogle
}

// FetchJobs runs one query per search term, splitting the overall limit
// across terms. A failed term is a warning, not a fetch failure, as long as
// at least one term succeeds.
func (c *GoogleJobsClient) FetchJobs(ctx context.Context, query models.ScrapeQuery) (*models.ScrapeResult, error) {
	if len(query.Terms) == 0 {
		return &models.ScrapeResult{}, nil
	}

	apiKey, err := common.ResolveAPIKey(ctx, c.kvStorage, "google_scraper_api_key", c.config.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Google scraper API key: %w", err)
	}

	perTermLimit := query.Limit / len(query.Terms)
	if perTermLimit < 1 {
		perTermLimit = 1
	}

	result := &models.ScrapeResult{}
	var lastErr error

	for _, term := range query.Terms {
		if query.Limit > 0 && len(result.Postings) >= query.Limit {
			break
		}

		postings, err := c.fetchTerm(ctx, apiKey, term, query.Location, perTermLimit)
		result.QueryCount++
		result.Cost += c.costPerQuery
		if err != nil {
			c.logger.Warn().Err(err).Str("term", term).Msg("Google Jobs query failed")
			lastErr = err
			continue
		}
		result.Postings = append(result.Postings, postings...)
	}

	if len(result.Postings) == 0 && lastErr != nil {
		return nil, fmt.Errorf("all Google Jobs queries failed: %w", lastErr)
	}

	if query.Limit > 0 && len(result.Postings) > query.Limit {
		result.Postings = result.Postings[:query.Limit]
	}

	c.logger.Info().
		Int("postings", len(result.Postings)).
		Int("queries", result.QueryCount).
		Float64("cost", result.Cost).
		Msg("Google Jobs fetch complete")

	return result, nil
}

func (c *GoogleJobsClient) fetchTerm(ctx context.Context, apiKey, term, location string, limit int) ([]models.RawPosting, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("engine", "google_jobs")
	params.Set("q", fmt.Sprintf("%s %s", term, location))
	params.Set("api_key", apiKey)

	requestURL := fmt.Sprintf("%s/search.json?%s", strings.TrimSuffix(c.config.BaseURL, "/"), params.Encode())

	var body []byte
	_, err := c.retry.ExecuteWithRetry(ctx, c.logger, func() (int, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if reqErr != nil {
			return 0, reqErr
		}
		req.Header.Set("Accept", "application/json")

		resp, doErr := c.httpClient.Do(req)
		if doErr != nil {
			return 0, doErr
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return resp.StatusCode, fmt.Errorf("google jobs returned status %d", resp.StatusCode)
		}

		body, reqErr = io.ReadAll(resp.Body)
		return resp.StatusCode, reqErr
	})
	if err != nil {
		return nil, err
	}

	var envelope googleJobsResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse google jobs response: %w", err)
	}
	if envelope.Error != "" {
		return nil, fmt.Errorf("google jobs error: %s", envelope.Error)
	}

	postings := make([]models.RawPosting, 0, len(envelope.JobsResults))
	for _, raw := range envelope.JobsResults {
		var posting models.RawPosting
		if err := json.Unmarshal(raw, &posting); err != nil {
			c.logger.Warn().Err(err).Msg("Skipping malformed Google Jobs posting")
			continue
		}
		postings = append(postings, posting)
		if limit > 0 && len(postings) >= limit {
			break
		}
	}

	return postings, nil
}
