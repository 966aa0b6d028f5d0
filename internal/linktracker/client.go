package linktracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/driveline/jobfeed/internal/common"
	"github.com/driveline/jobfeed/internal/interfaces"
)

// Client shortens apply URLs with attribution tags. Link tracking is best
// effort: every failure path returns the original URL so the pipeline never
// degrades over a shortener outage.
type Client struct {
	config     *common.LinkTrackerConfig
	kvStorage  interfaces.KeyValueStorage
	httpClient *http.Client
	logger     arbor.ILogger
}

type createLinkRequest struct {
	OriginalURL string   `json:"originalURL"`
	Domain      string   `json:"domain"`
	Tags        []string `json:"tags,omitempty"`
}

type createLinkResponse struct {
	ShortURL string `json:"shortURL"`
}

// NewClient creates a link tracker client
func NewClient(config *common.LinkTrackerConfig, kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) interfaces.LinkTracker {
	return &Client{
		config:    config,
		kvStorage: kvStorage,
		httpClient: &http.Client{
			Timeout: common.ParseDurationOr(config.Timeout, 10*time.Second),
		},
		logger: logger,
	}
}

// TrackURL returns the shortened URL for target, or target itself on failure.
func (c *Client) TrackURL(ctx context.Context, target string, tags interfaces.LinkTags) string {
	if target == "" {
		return target
	}

	apiKey, err := common.ResolveAPIKey(ctx, c.kvStorage, "linktracker_api_key", c.config.APIKey)
	if err != nil {
		c.logger.Debug().Err(err).Msg("Link tracker key unavailable, keeping original URL")
		return target
	}

	payload := createLinkRequest{
		OriginalURL: target,
		Domain:      c.config.Domain,
		Tags:        tagList(tags),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to encode link tracker request")
		return target
	}

	requestURL := fmt.Sprintf("%s/links", strings.TrimSuffix(c.config.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(body))
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to build link tracker request")
		return target
	}
	req.Header.Set("Authorization", apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Link tracker request failed, keeping original URL")
		return target
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		io.Copy(io.Discard, resp.Body)
		c.logger.Warn().Int("status", resp.StatusCode).Msg("Link tracker returned error status, keeping original URL")
		return target
	}

	var result createLinkResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil || result.ShortURL == "" {
		c.logger.Warn().Err(err).Msg("Unusable link tracker response, keeping original URL")
		return target
	}

	return result.ShortURL
}

// TrackBatch shortens many URLs, returning results keyed by target.
func (c *Client) TrackBatch(ctx context.Context, targets []string, tags interfaces.LinkTags) map[string]string {
	results := make(map[string]string, len(targets))
	for _, target := range targets {
		if _, done := results[target]; done {
			continue
		}
		results[target] = c.TrackURL(ctx, target, tags)
	}
	return results
}

func tagList(tags interfaces.LinkTags) []string {
	var out []string
	add := func(prefix, value string) {
		if value != "" {
			out = append(out, prefix+":"+value)
		}
	}
	add("coach", tags.Coach)
	add("candidate", tags.Candidate)
	add("market", tags.Market)
	add("route", tags.Route)
	add("match", tags.Match)
	add("fair_chance", tags.FairChance)
	return out
}
