package models

import "time"

// StoreJob is the persistent-store projection of a canonical row.
// Keyed on JobID; badgerhold indexes support the credit controller's
// market/quality lookups and the classifier's reuse pre-pass.
type StoreJob struct {
	JobID          string `badgerhold:"key" json:"job_id"`
	JobTitle       string `json:"job_title"`
	Company        string `json:"company"`
	Location       string `json:"location"`
	JobDescription string `json:"job_description"`
	MarkdownDesc   string `json:"markdown_description"`

	ApplyURL     string `json:"apply_url"`
	IndeedJobURL string `json:"indeed_job_url"`
	GoogleJobURL string `json:"google_job_url"`
	Salary       string `json:"salary"`

	MatchLevel   string `badgerhold:"index" json:"match_level"`
	MatchReason  string `json:"match_reason"`
	Summary      string `json:"summary"`
	FairChance   string `json:"fair_chance"`
	Endorsements string `json:"endorsements"`
	RouteType    string `badgerhold:"index" json:"route_type"`

	Market               string `badgerhold:"index" json:"market"`
	SearchQuery          string `json:"search_query"`
	ClassificationSource string `json:"classification_source"`

	CleanApplyURL string `json:"clean_apply_url"`
	TrackedURL    string `json:"tracked_url"`
	DuplicateR1   string `json:"rules_duplicate_r1"`
	DuplicateR2   string `json:"rules_duplicate_r2"`
	JobIDHash     string `json:"job_id_hash"`

	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `badgerhold:"index" json:"updated_at"`
	ClassifiedAt time.Time `json:"classified_at"`
}

// StoreQuery filters persistent-store searches.
type StoreQuery struct {
	Market         string
	MatchLevels    []string
	Since          time.Time
	RouteFilter    string // "both", "local", "otr"
	FairChanceOnly bool
	Limit          int
}
