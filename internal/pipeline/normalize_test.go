package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveline/jobfeed/internal/models"
)

func TestNormalize_LocationParsing(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		city     string
		state    string
		location string
	}{
		{"city comma state", "Dallas, TX", "Dallas", "TX", "Dallas, TX"},
		{"lowercase state", "Fort Worth, tx", "Fort Worth", "TX", "Fort Worth, TX"},
		{"with zip", "Austin, TX 78701", "Austin", "TX", "Austin, TX"},
		{"free text", "Greater Houston Area", "Greater Houston Area", "", "Greater Houston Area"},
		{"empty", "", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := models.NewFrame()
			frame.Append(&models.Job{Source: models.SourceFields{LocationRaw: tt.raw}})
			Normalize(frame)

			row := frame.Rows[0]
			assert.Equal(t, tt.city, row.Norm.City)
			assert.Equal(t, tt.state, row.Norm.State)
			assert.Equal(t, tt.location, row.Norm.Location)
		})
	}
}

func TestNormalize_HTMLStripping(t *testing.T) {
	frame := models.NewFrame()
	frame.Append(&models.Job{Source: models.SourceFields{
		DescriptionRaw: "<div><p>Drive  a   truck.</p><ul><li>Home daily</li></ul></div>",
	}})
	Normalize(frame)

	row := frame.Rows[0]
	assert.Equal(t, "Drive a truck. Home daily", row.Norm.Description)
	assert.NotContains(t, row.Norm.Description, "<")
	assert.Contains(t, row.Norm.DescriptionMarkdown, "Home daily")
}

func TestNormalize_SourceNeverMutated(t *testing.T) {
	raw := "<p>Original &amp; untouched</p>"
	frame := models.NewFrame()
	frame.Append(&models.Job{Source: models.SourceFields{DescriptionRaw: raw, Title: "  CDL  Driver  "}})
	Normalize(frame)

	assert.Equal(t, raw, frame.Rows[0].Source.DescriptionRaw)
	assert.Equal(t, "  CDL  Driver  ", frame.Rows[0].Source.Title)
	assert.Equal(t, "CDL Driver", frame.Rows[0].Norm.Title)
}

func TestNormalize_SalaryParsing(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		min  float64
		max  float64
		unit string
	}{
		{"hourly range", "$25.50 - $32.00 per hour", 25.50, 32.00, "hour"},
		{"yearly with commas", "$85,000 a year", 85000, 85000, "year"},
		{"weekly range", "$1,200 - $1,600 per week", 1200, 1600, "week"},
		{"single hourly", "$22/hr", 22, 22, "hour"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := models.NewFrame()
			frame.Append(&models.Job{Source: models.SourceFields{SalaryRaw: tt.raw}})
			Normalize(frame)

			row := frame.Rows[0]
			require.NotNil(t, row.Norm.SalaryMin)
			require.NotNil(t, row.Norm.SalaryMax)
			assert.Equal(t, tt.min, *row.Norm.SalaryMin)
			assert.Equal(t, tt.max, *row.Norm.SalaryMax)
			assert.Equal(t, tt.unit, row.Norm.SalaryUnit)
			assert.Equal(t, "USD", row.Norm.SalaryCurrency)
			assert.NotEmpty(t, row.Norm.SalaryDisplay)
		})
	}
}

func TestNormalize_UnparseableSalaryLeftNull(t *testing.T) {
	frame := models.NewFrame()
	frame.Append(&models.Job{Source: models.SourceFields{SalaryRaw: "competitive pay"}})
	Normalize(frame)

	row := frame.Rows[0]
	assert.Nil(t, row.Norm.SalaryMin)
	assert.Nil(t, row.Norm.SalaryMax)
	assert.Empty(t, row.Norm.SalaryUnit)
	assert.Empty(t, row.Norm.SalaryDisplay)
}

func TestNormalize_Idempotent(t *testing.T) {
	frame := models.NewFrame()
	frame.Append(&models.Job{Source: models.SourceFields{
		Title:          "CDL-A  Driver",
		Company:        "Acme   Trucking",
		LocationRaw:    "Dallas, TX",
		DescriptionRaw: "<p>Home daily. $25 per hour.</p>",
		SalaryRaw:      "$25 - $30 per hour",
	}})

	Normalize(frame)
	first := *frame.Rows[0]

	Normalize(frame)
	second := *frame.Rows[0]

	assert.Equal(t, first.Norm.Title, second.Norm.Title)
	assert.Equal(t, first.Norm.Description, second.Norm.Description)
	assert.Equal(t, first.Norm.Location, second.Norm.Location)
	assert.Equal(t, *first.Norm.SalaryMin, *second.Norm.SalaryMin)
	assert.Equal(t, first.Norm.SalaryDisplay, second.Norm.SalaryDisplay)
}
