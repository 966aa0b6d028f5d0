package sources

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/driveline/jobfeed/internal/models"
)

func testLogger() arbor.ILogger {
	return arbor.NewLogger()
}

func TestIngestOutscraper_FieldMapping(t *testing.T) {
	postings := []models.RawPosting{{
		"title":             "CDL-A Local Driver",
		"company":           "Acme Trucking",
		"formattedLocation": "Dallas, TX",
		"snippet":           "Home daily, great benefits",
		"viewJobLink":       "https://www.indeed.com/viewjob?jk=abc123",
		"pubDate":           "2026-08-20",
		"salary":            "$25 - $30 an hour",
	}}

	rows := IngestOutscraper(postings, testLogger())

	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, models.SourceIndeed, row.ID.Source)
	assert.NotEmpty(t, row.ID.Job)
	assert.Equal(t, "CDL-A Local Driver", row.Source.Title)
	assert.Equal(t, "Acme Trucking", row.Source.Company)
	assert.Equal(t, "Dallas, TX", row.Source.LocationRaw)
	assert.Equal(t, "Home daily, great benefits", row.Source.DescriptionRaw)
	assert.Equal(t, "https://www.indeed.com/viewjob?jk=abc123", row.Source.URL)
	assert.Equal(t, "2026-08-20", row.Source.PostedDate)
	assert.Equal(t, "$25 - $30 an hour", row.Source.SalaryRaw)
	assert.True(t, row.Sys.IsFreshJob)
}

func TestIngestOutscraper_SnakeCaseFallbacks(t *testing.T) {
	postings := []models.RawPosting{{
		"job_title":          "CDL Driver",
		"company_name":       "Beta Freight",
		"formatted_location": "Houston, TX",
		"link":               "https://example.com/job",
	}}

	rows := IngestOutscraper(postings, testLogger())

	require.Len(t, rows, 1)
	assert.Equal(t, "CDL Driver", rows[0].Source.Title)
	assert.Equal(t, "Beta Freight", rows[0].Source.Company)
	assert.Equal(t, "Houston, TX", rows[0].Source.LocationRaw)
	assert.Equal(t, "https://example.com/job", rows[0].Source.URL)
}

func TestIngestOutscraper_DropsEmptyRows(t *testing.T) {
	postings := []models.RawPosting{
		{"snippet": "no identity at all"},
		{"title": "CDL Driver"},
		{"company": "Acme"},
	}

	rows := IngestOutscraper(postings, testLogger())

	// Only rows with a title or a company survive
	assert.Len(t, rows, 2)
}

func TestIngestOutscraper_NestedSalarySnippet(t *testing.T) {
	postings := []models.RawPosting{{
		"title": "CDL Driver",
		"salarySnippet": map[string]interface{}{
			"text": "$1,500 a week",
		},
	}}

	rows := IngestOutscraper(postings, testLogger())

	require.Len(t, rows, 1)
	assert.Equal(t, "$1,500 a week", rows[0].Source.SalaryRaw)
}

func TestIngestOutscraper_DeterministicIDs(t *testing.T) {
	posting := models.RawPosting{
		"title":             "CDL Driver",
		"company":           "Acme",
		"formattedLocation": "Dallas, TX",
	}

	first := IngestOutscraper([]models.RawPosting{posting}, testLogger())
	second := IngestOutscraper([]models.RawPosting{posting}, testLogger())

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID.Job, second[0].ID.Job)
}

func TestIngestGoogle_ApplyURLPreference(t *testing.T) {
	tests := []struct {
		name     string
		posting  models.RawPosting
		expected string
	}{
		{
			name: "apply_options first",
			posting: models.RawPosting{
				"title": "CDL Driver",
				"apply_options": []interface{}{
					map[string]interface{}{"title": "Indeed", "link": "https://indeed.com/apply/1"},
				},
				"apply_urls": []interface{}{"https://other.com/apply"},
				"share_link": "https://google.com/share",
			},
			expected: "https://indeed.com/apply/1",
		},
		{
			name: "apply_urls fallback",
			posting: models.RawPosting{
				"title":      "CDL Driver",
				"apply_urls": []interface{}{"https://other.com/apply"},
				"share_link": "https://google.com/share",
			},
			expected: "https://other.com/apply",
		},
		{
			name: "share link last",
			posting: models.RawPosting{
				"title":      "CDL Driver",
				"share_link": "https://google.com/share",
			},
			expected: "https://google.com/share",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := IngestGoogle([]models.RawPosting{tt.posting}, testLogger())
			require.Len(t, rows, 1)
			assert.Equal(t, tt.expected, rows[0].Source.URL)
		})
	}
}

func TestIngestGoogle_PostedDateFromExtensions(t *testing.T) {
	postings := []models.RawPosting{{
		"title":        "CDL Driver",
		"company_name": "Acme",
		"detected_extensions": map[string]interface{}{
			"posted_at": "3 days ago",
		},
	}}

	rows := IngestGoogle(postings, testLogger())

	require.Len(t, rows, 1)
	assert.Equal(t, models.SourceGoogle, rows[0].ID.Source)
	assert.Equal(t, "3 days ago", rows[0].Source.PostedDate)
}

func TestIngestMemory_CarriesAIFields(t *testing.T) {
	classified := time.Now().Add(-24 * time.Hour)
	stored := []models.StoreJob{{
		JobID:        "mem-1",
		JobTitle:     "CDL-A Local Driver",
		Company:      "Acme Trucking",
		Location:     "Dallas, TX",
		ApplyURL:     "https://example.com/apply",
		IndeedJobURL: "https://indeed.com/viewjob?jk=abc",
		MatchLevel:   string(models.MatchGood),
		MatchReason:  "local home daily",
		Summary:      "Solid local position",
		RouteType:    string(models.RouteLocal),
		Market:       "dallas",
		TrackedURL:   "https://links.test/abc",
		ClassifiedAt: classified,
	}}

	rows := IngestMemory(stored)

	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "mem-1", row.ID.Job)
	assert.Equal(t, models.SourceMemory, row.ID.Source)
	assert.Equal(t, "https://example.com/apply", row.Source.URL, "apply_url wins over indeed_job_url")
	assert.Equal(t, models.MatchGood, row.AI.Match)
	assert.Equal(t, models.RouteLocal, row.AI.RouteType)
	assert.Equal(t, "dallas", row.Meta.Market)
	assert.Equal(t, "https://links.test/abc", row.Meta.TrackedURL)
	assert.Equal(t, models.ClassSourceMemory, row.Sys.ClassificationSource)
	assert.False(t, row.Sys.IsFreshJob)
	assert.Equal(t, classified, row.Sys.ClassifiedAt)
}

func TestIngestMemory_URLFallbackOrder(t *testing.T) {
	stored := []models.StoreJob{
		{JobID: "a", JobTitle: "Driver", IndeedJobURL: "https://indeed.com/a", GoogleJobURL: "https://google.com/a"},
		{JobID: "b", JobTitle: "Driver", GoogleJobURL: "https://google.com/b"},
	}

	rows := IngestMemory(stored)

	require.Len(t, rows, 2)
	assert.Equal(t, "https://indeed.com/a", rows[0].Source.URL)
	assert.Equal(t, "https://google.com/b", rows[1].Source.URL)
}

func TestIngestMemory_SkipsEmptyRows(t *testing.T) {
	stored := []models.StoreJob{{JobID: "ghost"}}

	assert.Empty(t, IngestMemory(stored))
}
