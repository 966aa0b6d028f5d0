package models

// Credit controller decisions.
type CreditDecisionType string

const (
	CreditFullBypass  CreditDecisionType = "FULL_BYPASS"
	CreditSmartCredit CreditDecisionType = "SMART_CREDIT"
	CreditFullScrape  CreditDecisionType = "FULL_SCRAPE"
)

// CreditDecision is the advisory emitted before scraping.
type CreditDecision struct {
	Type             CreditDecisionType `json:"type"`
	AvailableQuality int                `json:"available_quality"` // Quality rows in memory within the window
	QualityTarget    int                `json:"quality_target"`    // floor(N * yield), capped at 100 for N >= 1000
	ScrapeTarget     int                `json:"scrape_target"`     // Rows to request fresh
	EstimatedSavings float64            `json:"estimated_savings"`
}

// CostBlock reports run economics.
type CostBlock struct {
	SourceCosts        map[string]float64 `json:"source_costs"`
	ClassificationCost float64            `json:"classification_cost"`
	TotalCost          float64            `json:"total_cost"`
	CostPerQualityJob  float64            `json:"cost_per_quality_job"`
	MemoryEfficiency   float64            `json:"memory_efficiency"` // memory rows / total rows * 100
	FreshShare         float64            `json:"fresh_share"`       // 100 - MemoryEfficiency
}

// PipelineResult is the record returned to downstream exporters.
type PipelineResult struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"` // completed, error
	Error  string `json:"error,omitempty"`

	Frame *Frame `json:"-"`

	TotalJobs    int            `json:"total_jobs"`
	IncludedJobs int            `json:"included_jobs"`
	QualityJobs  int            `json:"quality_jobs"`
	MatchCounts  map[string]int `json:"match_counts"`
	RouteCounts  map[string]int `json:"route_counts"`
	StatusCounts map[string]int `json:"status_counts"`

	Cost   CostBlock      `json:"cost"`
	Credit CreditDecision `json:"credit"`

	ProcessingTimeSeconds float64  `json:"processing_time_seconds"`
	Warnings              []string `json:"warnings,omitempty"`

	// Exporter file pointers, populated only when an exporter was invoked.
	PDFPath  string `json:"pdf_path,omitempty"`
	CSVPath  string `json:"csv_path,omitempty"`
	HTMLPath string `json:"html_path,omitempty"`
}

// Warn appends a non-fatal warning to the result.
func (r *PipelineResult) Warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}
