package models

// RawPosting is one unparsed posting from a scraping provider.
type RawPosting map[string]interface{}

// Str returns a string field from the raw payload, empty when absent or
// not a string.
func (p RawPosting) Str(key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

// ScrapeQuery is the provider-agnostic fetch request.
type ScrapeQuery struct {
	Terms        []string
	Location     string
	Radius       int
	Limit        int
	NoExperience bool
}

// ScrapeResult is the provider response plus its cost figure.
type ScrapeResult struct {
	Postings   []RawPosting
	Cost       float64
	QueryCount int
}
