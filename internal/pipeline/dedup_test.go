package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/driveline/jobfeed/internal/models"
)

func testLogger() arbor.ILogger {
	return arbor.NewLogger()
}

func TestDedup_ExactIDKeepsLast(t *testing.T) {
	// Memory row appended first, fresh row last: keep-last prefers fresh
	memory := freshJob("same-id", "CDL Driver", "Acme", "Dallas, TX")
	memory.ID.Source = models.SourceMemory
	memory.Sys.IsFreshJob = false

	fresh := freshJob("same-id", "CDL Driver", "Acme", "Dallas, TX")

	frame := models.NewFrame()
	frame.Append(memory, fresh)

	Dedup(frame, models.DefaultFilterSettings(), testLogger())

	require.Equal(t, 1, frame.Len())
	assert.True(t, frame.Rows[0].Sys.IsFreshJob)
	assert.Equal(t, models.SourceIndeed, frame.Rows[0].ID.Source)
}

func TestDedup_R1KeepsFirst(t *testing.T) {
	a := freshJob("id-a", "CDL Driver", "Acme", "Dallas, TX")
	b := freshJob("id-b", "CDL Driver", "Acme", "Fort Worth, TX")
	a.Rules.DuplicateR1 = "acme|cdl driver|dallas"
	b.Rules.DuplicateR1 = "acme|cdl driver|dallas"

	frame := models.NewFrame()
	frame.Append(a, b)

	Dedup(frame, models.DefaultFilterSettings(), testLogger())

	require.Equal(t, 1, frame.Len())
	assert.Equal(t, "id-a", frame.Rows[0].ID.Job)
}

func TestDedup_R2OnlyOverUnfilteredRows(t *testing.T) {
	a := freshJob("id-a", "CDL Driver", "Acme", "Dallas, TX")
	b := freshJob("id-b", "Night Driver", "Acme", "Dallas, TX")
	c := freshJob("id-c", "Day Driver", "Acme", "Dallas, TX")
	for _, row := range []*models.Job{a, b, c} {
		row.Rules.DuplicateR2 = "acme|dallas, tx"
	}
	// distinct R1 keys so only R2 collapses
	a.Rules.DuplicateR1 = "r1-a"
	b.Rules.DuplicateR1 = "r1-b"
	c.Rules.DuplicateR1 = "r1-c"

	frame := models.NewFrame()
	frame.Append(a, b, c)

	Dedup(frame, models.DefaultFilterSettings(), testLogger())

	require.Equal(t, 1, frame.Len())
	assert.Equal(t, "id-a", frame.Rows[0].ID.Job)
}

func TestDedup_URLPrefersIndeed(t *testing.T) {
	google := freshJob("id-g", "CDL Driver G", "Beta", "Austin, TX")
	google.ID.Source = models.SourceGoogle
	indeed := freshJob("id-i", "CDL Driver I", "Gamma", "Austin, TX")
	google.Rules.CleanApplyURL = "indeed_xyz"
	indeed.Rules.CleanApplyURL = "indeed_xyz"
	google.Rules.DuplicateR1 = "r1-g"
	indeed.Rules.DuplicateR1 = "r1-i"
	google.Rules.DuplicateR2 = "r2-g"
	indeed.Rules.DuplicateR2 = "r2-i"

	frame := models.NewFrame()
	frame.Append(google, indeed)

	Dedup(frame, models.DefaultFilterSettings(), testLogger())

	require.Equal(t, 1, frame.Len())
	assert.Equal(t, models.SourceIndeed, frame.Rows[0].ID.Source)
}

func TestDedup_FilteredRowsPhysicallyDropped(t *testing.T) {
	a := freshJob("id-a", "CDL Driver", "Acme", "Dallas, TX")
	b := freshJob("id-b", "CDL Driver", "Acme", "Dallas, TX")
	a.Rules.DuplicateR1 = "same"
	b.Rules.DuplicateR1 = "same"

	frame := models.NewFrame()
	frame.Append(a, b)

	Dedup(frame, models.DefaultFilterSettings(), testLogger())

	assert.Equal(t, 1, frame.Len())
	for _, row := range frame.Rows {
		assert.False(t, row.Route.Filtered)
	}
}

func TestDedup_StepsIndividuallyDisabled(t *testing.T) {
	a := freshJob("id-a", "CDL Driver", "Acme", "Dallas, TX")
	b := freshJob("id-b", "CDL Driver", "Acme", "Dallas, TX")
	a.Rules.DuplicateR1 = "same"
	b.Rules.DuplicateR1 = "same"
	a.Rules.DuplicateR2 = "same2"
	b.Rules.DuplicateR2 = "same2"

	frame := models.NewFrame()
	frame.Append(a, b)

	settings := models.DefaultFilterSettings()
	settings.R1Dedup = false
	settings.R2Dedup = false
	settings.URLDedup = false

	Dedup(frame, settings, testLogger())

	assert.Equal(t, 2, frame.Len())
}

func TestDedup_DistinctJobsSurvive(t *testing.T) {
	a := freshJob("", "CDL-A OTR Driver", "Acme", "Dallas, TX")
	b := freshJob("", "CDL-A Local Driver", "Beta Freight", "Houston, TX")
	a.Rules.DuplicateR1 = "acme|cdl-a otr driver|dallas"
	b.Rules.DuplicateR1 = "beta freight|cdl-a local driver|houston"
	a.Rules.DuplicateR2 = "acme|dallas, tx"
	b.Rules.DuplicateR2 = "beta freight|houston, tx"
	a.Rules.CleanApplyURL = "indeed_aaa"
	b.Rules.CleanApplyURL = "indeed_bbb"

	frame := models.NewFrame()
	frame.Append(a, b)

	Dedup(frame, models.DefaultFilterSettings(), testLogger())

	assert.Equal(t, 2, frame.Len())
}
