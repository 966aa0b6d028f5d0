package pipeline

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/driveline/jobfeed/internal/common"
	"github.com/driveline/jobfeed/internal/models"
)

var (
	ownerOpRegex = regexp.MustCompile(`(?i)\b(owner[\s-]?operator|owner[\s-]?op|lease[\s-]?purchase|lease[\s-]?to[\s-]?own|own\s+truck|your\s+own\s+truck|1099\s+hotshot|hotshot\s+1099)\b`)

	schoolBusRegex = regexp.MustCompile(`(?i)\b(school\s+bus|pupil\s+transport\w*|student\s+transport\w*|\bISD\b|school\s+district)\b`)

	spamHostMarkers = []string{
		"jobs2careers",
		"talroo",
		"jobcase",
		"lensa.com",
		"workfountain",
	}
	spamTextRegex = regexp.MustCompile(`(?i)(work\s+from\s+home\s+opportunity|no\s+experience\s+necessary.{0,40}weekly\s+pay\s+guaranteed|earn\s+up\s+to\s+\$\d+.{0,20}per\s+day\s+from\s+home)`)

	experienceRegex = regexp.MustCompile(`(?i)(\d+)\s*\+?\s*(?:years?|yrs?)(?:\s+of)?\s+(?:\w+\s+){0,3}experience`)
)

// ApplyRules sets the rules.* flags and dedup keys on every row. Each flag
// is independently toggleable; no rows are removed here.
func ApplyRules(frame *models.Frame, market string, settings models.FilterSettings) *models.Frame {
	if frame == nil {
		return frame
	}

	for _, row := range frame.Rows {
		haystack := row.Norm.Title + " " + row.Norm.Description

		if settings.OwnerOp {
			row.Rules.IsOwnerOp = ownerOpRegex.MatchString(haystack)
		}
		if settings.SchoolBus {
			row.Rules.IsSchoolBus = schoolBusRegex.MatchString(haystack)
		}
		if settings.SpamFilter {
			row.Rules.IsSpamSource = isSpamSource(row.Source.URL, row.Norm.Description)
		}
		if settings.ExperienceFilter {
			years, found := parseExperienceYears(haystack)
			row.Rules.HasExperienceReq = found
			row.Rules.ExperienceYearsMin = years
		}

		if row.Meta.Market == "" {
			row.Meta.Market = market
		}

		row.Rules.DuplicateR1 = strings.ToLower(row.Norm.Company) + "|" + strings.ToLower(row.Norm.Title) + "|" + row.Meta.Market
		row.Rules.DuplicateR2 = strings.ToLower(row.Norm.Company) + "|" + strings.ToLower(row.Norm.Location)
		row.Rules.CleanApplyURL = common.CanonicalURL(row.Source.URL)
	}

	return frame
}

// isSpamSource checks the URL host and description against known spam
// markers.
func isSpamSource(rawURL, description string) bool {
	host := strings.ToLower(rawURL)
	for _, marker := range spamHostMarkers {
		if strings.Contains(host, marker) {
			return true
		}
	}
	return spamTextRegex.MatchString(description)
}

// parseExperienceYears detects "N years experience" patterns, returning the
// smallest stated minimum.
func parseExperienceYears(text string) (int, bool) {
	matches := experienceRegex.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return 0, false
	}

	min := 0
	for _, m := range matches {
		years, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if min == 0 || years < min {
			min = years
		}
	}
	return min, min > 0
}
