package models

// Search modes and their scrape targets.
var ModeLimits = map[string]int{
	"test":   10,
	"mini":   50,
	"sample": 100,
	"medium": 250,
	"large":  500,
	"full":   1000,
}

// FilterSettings toggles individual business rules and dedup steps.
// The zero value disables everything; use DefaultFilterSettings for the
// production defaults.
type FilterSettings struct {
	OwnerOp          bool `json:"owner_op"`
	SchoolBus        bool `json:"school_bus"`
	SpamFilter       bool `json:"spam_filter"`
	ExperienceFilter bool `json:"experience_filter"`
	R1Dedup          bool `json:"r1_dedup"`
	R2Dedup          bool `json:"r2_dedup"`
	URLDedup         bool `json:"url_dedup"`
}

// DefaultFilterSettings enables every rule and dedup step.
func DefaultFilterSettings() FilterSettings {
	return FilterSettings{
		OwnerOp:          true,
		SchoolBus:        true,
		SpamFilter:       true,
		ExperienceFilter: true,
		R1Dedup:          true,
		R2Dedup:          true,
		URLDedup:         true,
	}
}

// AgentContext is the Free-Agent personalization travelling with a run.
type AgentContext struct {
	UUID          string `json:"uuid"`
	Name          string `json:"name"`
	City          string `json:"city"`
	State         string `json:"state"`
	CoachUsername string `json:"coach_username"`
	CoachName     string `json:"coach_name"`
}

// SearchRequest is the per-invocation pipeline configuration.
type SearchRequest struct {
	Location       string   `json:"location" validate:"required"`
	Market         string   `json:"market"`
	CustomLocation bool     `json:"custom_location"`
	Mode           string   `json:"mode" validate:"oneof=test mini sample medium large full"`
	SearchTerms    []string `json:"search_terms"`
	RouteFilter    string   `json:"route_filter" validate:"oneof=both local otr"`
	SearchSources  []string `json:"search_sources" validate:"dive,oneof=indeed google"`
	SearchStrategy string   `json:"search_strategy" validate:"oneof=balanced indeed_first google_first"`
	ClassifierType string   `json:"classifier_type" validate:"oneof=cdl pathway"`
	Radius         int      `json:"radius"`
	NoExperience   bool     `json:"no_experience"`

	FilterSettings FilterSettings `json:"filter_settings"`
	Agent          AgentContext   `json:"agent"`

	ForceFresh               bool `json:"force_fresh"`
	ForceFreshClassification bool `json:"force_fresh_classification"`
	ForceMemoryOnly          bool `json:"force_memory_only"`
	ForceLinkGeneration      bool `json:"force_link_generation"`
}

// Limit returns the scrape target implied by the mode.
func (r *SearchRequest) Limit() int {
	if limit, ok := ModeLimits[r.Mode]; ok {
		return limit
	}
	return ModeLimits["sample"]
}

// MarketLabel returns the market for dedup keys and reporting. A custom
// location is carried verbatim.
func (r *SearchRequest) MarketLabel() string {
	if r.Market != "" {
		return r.Market
	}
	return r.Location
}

// SourceEnabled reports whether an ingestion adapter is active for the run.
func (r *SearchRequest) SourceEnabled(name string) bool {
	if len(r.SearchSources) == 0 {
		return name == SourceIndeed || name == SourceGoogle
	}
	for _, s := range r.SearchSources {
		if s == name {
			return true
		}
	}
	return false
}

// MemorySearchRequest is the configuration for memory-only searches.
type MemorySearchRequest struct {
	Location       string       `json:"location" validate:"required"`
	Market         string       `json:"market"`
	SearchTerms    []string     `json:"search_terms"`
	Limit          int          `json:"limit"`
	MatchLevels    []string     `json:"match_levels" validate:"dive,oneof=good so-so bad error"`
	RouteFilter    string       `json:"route_filter" validate:"omitempty,oneof=both local otr"`
	FairChanceOnly bool         `json:"fair_chance_only"`
	WindowHours    int          `json:"window_hours"`
	Agent          AgentContext `json:"agent"`
}
