package interfaces

import "context"

// LinkTags carries attribution for a tracked URL.
type LinkTags struct {
	Coach      string
	Candidate  string
	Market     string
	Route      string
	Match      string
	FairChance string
}

// LinkTracker shortens apply URLs with attribution tags. Implementations
// MUST degrade gracefully: on any failure the original URL is returned and
// no error propagates into the pipeline.
type LinkTracker interface {
	// TrackURL returns the shortened URL for target, or target itself on
	// failure.
	TrackURL(ctx context.Context, target string, tags LinkTags) string

	// TrackBatch shortens many URLs, returning results keyed by target.
	TrackBatch(ctx context.Context, targets []string, tags LinkTags) map[string]string
}
