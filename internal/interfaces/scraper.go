package interfaces

import (
	"context"

	"github.com/driveline/jobfeed/internal/models"
)

// ScraperClient fetches raw postings from one external scraping provider.
// Implementations are reentrant and enforce their own rate limits.
type ScraperClient interface {
	// FetchJobs fetches up to query.Limit postings for the given terms and
	// location. Returns the raw payloads plus the provider cost figure.
	FetchJobs(ctx context.Context, query models.ScrapeQuery) (*models.ScrapeResult, error)

	// Name returns the id.source value this provider maps to.
	Name() string
}
