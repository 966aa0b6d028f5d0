package scrapers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/driveline/jobfeed/internal/common"
	"github.com/driveline/jobfeed/internal/interfaces"
	"github.com/driveline/jobfeed/internal/models"
)

// OutscraperClient fetches Indeed postings through the Outscraper-style
// search API. Provider calls are minutes-scale; the HTTP client timeout
// comes from config.
type OutscraperClient struct {
	config     *common.ScraperEndpointConfig
	costPerJob float64
	kvStorage  interfaces.KeyValueStorage
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      *RetryPolicy
	logger     arbor.ILogger
}

// outscraperResponse is the provider envelope: one result list per submitted
// query.
type outscraperResponse struct {
	Status string              `json:"status"`
	Data   [][]json.RawMessage `json:"data"`
}

// NewOutscraperClient creates an Indeed scraper client
func NewOutscraperClient(
	config *common.ScraperEndpointConfig,
	costPerJob float64,
	kvStorage interfaces.KeyValueStorage,
	logger arbor.ILogger,
) interfaces.ScraperClient {
	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = 1.0
	}

	return &OutscraperClient{
		config:     config,
		costPerJob: costPerJob,
		kvStorage:  kvStorage,
		httpClient: &http.Client{
			Timeout: common.ParseDurationOr(config.Timeout, 5*time.Minute),
		},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		retry:   NewRetryPolicy(config.MaxRetries),
		logger:  logger,
	}
}

// Name returns the source identifier for postings from this client
func (c *OutscraperClient) Name() string {
	return models.SourceIndeed
}

// FetchJobs fetches up to query.Limit Indeed postings for the given terms and
// location. Cost is charged per returned posting.
func (c *OutscraperClient) FetchJobs(ctx context.Context, query models.ScrapeQuery) (*models.ScrapeResult, error) {
	if len(query.Terms) == 0 {
		return &models.ScrapeResult{}, nil
	}

	apiKey, err := common.ResolveAPIKey(ctx, c.kvStorage, "outscraper_api_key", c.config.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Outscraper API key: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("query", strings.Join(query.Terms, ","))
	params.Set("location", query.Location)
	params.Set("limit", strconv.Itoa(query.Limit))
	if query.Radius > 0 {
		params.Set("radius", strconv.Itoa(query.Radius))
	}
	if query.NoExperience {
		params.Set("noExperienceRequired", "true")
	}
	params.Set("async", "false")

	requestURL := fmt.Sprintf("%s/indeed-search?%s", strings.TrimSuffix(c.config.BaseURL, "/"), params.Encode())

	c.logger.Info().
		Str("location", query.Location).
		Int("terms", len(query.Terms)).
		Int("limit", query.Limit).
		Msg("Fetching Indeed postings")

	var body []byte
	_, err = c.retry.ExecuteWithRetry(ctx, c.logger, func() (int, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if reqErr != nil {
			return 0, reqErr
		}
		req.Header.Set("X-API-KEY", apiKey)
		req.Header.Set("Accept", "application/json")

		resp, doErr := c.httpClient.Do(req)
		if doErr != nil {
			return 0, doErr
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return resp.StatusCode, fmt.Errorf("outscraper returned status %d", resp.StatusCode)
		}

		body, reqErr = io.ReadAll(resp.Body)
		return resp.StatusCode, reqErr
	})
	if err != nil {
		return nil, fmt.Errorf("outscraper fetch failed: %w", err)
	}

	var envelope outscraperResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse outscraper response: %w", err)
	}

	postings := make([]models.RawPosting, 0)
	for _, queryResults := range envelope.Data {
		for _, raw := range queryResults {
			var posting models.RawPosting
			if err := json.Unmarshal(raw, &posting); err != nil {
				c.logger.Warn().Err(err).Msg("Skipping malformed Indeed posting")
				continue
			}
			postings = append(postings, posting)
		}
	}

	// Respect the requested limit even when the provider over-delivers
	if query.Limit > 0 && len(postings) > query.Limit {
		postings = postings[:query.Limit]
	}

	result := &models.ScrapeResult{
		Postings:   postings,
		Cost:       float64(len(postings)) * c.costPerJob,
		QueryCount: 1,
	}

	c.logger.Info().
		Int("postings", len(postings)).
		Float64("cost", result.Cost).
		Msg("Indeed fetch complete")

	return result, nil
}
