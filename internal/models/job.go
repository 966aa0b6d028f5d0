package models

import "time"

// MatchLevel is the LLM quality tier assigned to a posting.
type MatchLevel string

const (
	MatchGood  MatchLevel = "good"
	MatchSoSo  MatchLevel = "so-so"
	MatchBad   MatchLevel = "bad"
	MatchError MatchLevel = "error"
)

// IsQuality reports whether the match level is exportable.
func (m MatchLevel) IsQuality() bool {
	return m == MatchGood || m == MatchSoSo
}

// RouteType is the rule-derived haul category of a posting.
type RouteType string

const (
	RouteLocal   RouteType = "Local"
	RouteOTR     RouteType = "OTR"
	RouteUnknown RouteType = "Unknown"
)

// Classification provenance values carried in sys.classification_source.
const (
	ClassSourceFreshAI = "fresh_ai"
	ClassSourceMemory  = "supabase_memory"
)

// Job source identifiers assigned at ingestion.
const (
	SourceIndeed = "indeed"
	SourceGoogle = "google"
	SourceMemory = "memory"
)

// Identity holds the stable identifiers set at ingestion.
type Identity struct {
	Job    string `json:"job"`    // Deterministic hash of company|location|title
	Source string `json:"source"` // indeed, google, memory
}

// SourceFields holds raw provider fields. Never mutated after ingestion.
type SourceFields struct {
	Title          string `json:"title"`
	Company        string `json:"company"`
	LocationRaw    string `json:"location_raw"`
	DescriptionRaw string `json:"description_raw"`
	URL            string `json:"url"`
	PostedDate     string `json:"posted_date"`
	SalaryRaw      string `json:"salary_raw"`
}

// NormFields holds cleaned and derived fields written by normalization.
type NormFields struct {
	Title               string   `json:"title"`
	Company             string   `json:"company"`
	City                string   `json:"city"`
	State               string   `json:"state"`
	Location            string   `json:"location"`
	Description         string   `json:"description"`
	DescriptionMarkdown string   `json:"description_markdown"`
	SalaryMin           *float64 `json:"salary_min"`
	SalaryMax           *float64 `json:"salary_max"`
	SalaryUnit          string   `json:"salary_unit"` // hour, day, week, month, year
	SalaryCurrency      string   `json:"salary_currency"`
	SalaryDisplay       string   `json:"salary_display"`
}

// RuleFields holds boolean flags and dedup keys written by business rules.
type RuleFields struct {
	IsOwnerOp          bool   `json:"is_owner_op"`
	IsSchoolBus        bool   `json:"is_school_bus"`
	IsSpamSource       bool   `json:"is_spam_source"`
	HasExperienceReq   bool   `json:"has_experience_req"`
	ExperienceYearsMin int    `json:"experience_years_min"`
	DuplicateR1        string `json:"duplicate_r1"` // company|title|market
	DuplicateR2        string `json:"duplicate_r2"` // company|location
	CleanApplyURL      string `json:"clean_apply_url"`
}

// AIFields holds LLM classification outputs.
type AIFields struct {
	Match            MatchLevel `json:"match"`
	Reason           string     `json:"reason"`
	Summary          string     `json:"summary"`
	FairChance       string     `json:"fair_chance"`
	Endorsements     string     `json:"endorsements"`
	RouteType        RouteType  `json:"route_type"`
	CareerPathway    string     `json:"career_pathway"`    // pathway classifier only
	TrainingProvided bool       `json:"training_provided"` // pathway classifier only
}

// RouteFields holds the routing stage status and filtering flags.
type RouteFields struct {
	Filtered       bool   `json:"filtered"`
	FilterReason   string `json:"filter_reason"`
	FinalStatus    string `json:"final_status"`
	ReadyForAI     bool   `json:"ready_for_ai"`
	ReadyForExport bool   `json:"ready_for_export"`
	Stage          string `json:"stage"`
}

// MetaFields holds orchestrator-owned context on every row.
type MetaFields struct {
	Market     string `json:"market"`
	Query      string `json:"query"`
	TrackedURL string `json:"tracked_url"`
}

// SearchFields holds the search context applied to every row in a run.
type SearchFields struct {
	Location       string   `json:"location"`
	Mode           string   `json:"mode"`
	Limit          int      `json:"limit"`
	RouteFilter    string   `json:"route_filter"`
	Sources        []string `json:"sources"`
	Strategy       string   `json:"strategy"`
	ClassifierType string   `json:"classifier_type"`
	CustomLocation bool     `json:"custom_location"`
}

// AgentFields carries Free-Agent personalization context.
type AgentFields struct {
	UUID          string `json:"uuid"`
	Name          string `json:"name"`
	City          string `json:"city"`
	State         string `json:"state"`
	CoachUsername string `json:"coach_username"`
	CoachName     string `json:"coach_name"`
}

// QAFields holds validation flags set by the orchestrator.
type QAFields struct {
	Flags []string `json:"flags"`
	Score float64  `json:"score"`
}

// SysFields holds run provenance written by the orchestrator.
type SysFields struct {
	RunID                string    `json:"run_id"`
	IsFreshJob           bool      `json:"is_fresh_job"`
	ClassificationSource string    `json:"classification_source"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
	ClassifiedAt         time.Time `json:"classified_at"`
	Version              string    `json:"version"`
}

// Job is one row of the canonical frame. Fields are grouped by namespace;
// each pipeline stage writes only to its own group.
type Job struct {
	ID     Identity     `json:"id"`
	Source SourceFields `json:"source"`
	Norm   NormFields   `json:"norm"`
	Rules  RuleFields   `json:"rules"`
	AI     AIFields     `json:"ai"`
	Route  RouteFields  `json:"route"`
	Meta   MetaFields   `json:"meta"`
	Search SearchFields `json:"search"`
	Agent  AgentFields  `json:"agent"`
	QA     QAFields     `json:"qa"`
	Sys    SysFields    `json:"sys"`
}
