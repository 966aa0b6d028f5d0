package pipeline

import (
	"regexp"
	"strings"

	"github.com/driveline/jobfeed/internal/models"
)

var (
	otrTitleRegex  = regexp.MustCompile(`(?i)\b(otr|over[\s-]the[\s-]road)\b`)
	yardRegex      = regexp.MustCompile(`(?i)\b(yard\s+(driver|hostler|jockey|spotter)|hostler|spotter\s+driver)\b`)
	localTitleRegex = regexp.MustCompile(`(?i)\b(local|airport|shuttle)\b`)

	hourlyPayRegex  = regexp.MustCompile(`(?i)\$\s*\d+(?:\.\d+)?\s*(?:-\s*\$?\s*\d+(?:\.\d+)?\s*)?(?:per\s+hour|/\s*(?:hr|hour)|an\s+hour|hourly)`)
	perMilePayRegex = regexp.MustCompile(`(?i)(?:\$\s*\d*\.\d+\s*(?:per\s+mile|/\s*mile|cpm)|\d+\s*cpm|\$\s*\d{3,4}\s*(?:-\s*\$?\s*\d{3,4}\s*)?(?:per\s+week|/\s*week|weekly))`)

	teamDriverRegex = regexp.MustCompile(`(?i)\b(team\s+driv\w+|lower\s*48|home\s+every\s+\d+\s+days?)\b`)

	otrKeywordRegex = regexp.MustCompile(`(?i)\b(long[\s-]haul|cross[\s-]country|48\s+states|regional\s+otr|weeks?\s+out|14\s+days\s+out|drop\s+and\s+hook\s+otr|coast[\s-]to[\s-]coast)\b`)

	localKeywordRegex = regexp.MustCompile(`(?i)\b(home\s+daily|home\s+every\s+(?:day|night)|daily\s+home\s+time|city\s+driver|delivery\s+driver|route\s+driver|dedicated\s+local|day\s+cab|no\s+overnight)\b`)

	// Carriers that run OTR-only fleets.
	otrCarriers = []string{
		"werner",
		"swift transportation",
		"c.r. england",
		"cr england",
		"prime inc",
		"schneider national",
		"covenant transport",
		"western express",
		"stevens transport",
		"u.s. xpress",
		"us xpress",
	}
)

// DeriveRouteType sets ai.route_type for every row using rules only, no LLM.
// The classifier may refine it later; rows that already carry a route type
// from memory keep it.
func DeriveRouteType(frame *models.Frame) *models.Frame {
	if frame == nil {
		return frame
	}

	for _, row := range frame.Rows {
		if row.AI.RouteType != "" && row.AI.RouteType != models.RouteUnknown {
			continue
		}
		row.AI.RouteType = classifyRoute(row.Norm.Title, row.Norm.Description, row.Norm.Company)
	}
	return frame
}

// classifyRoute applies the rule ladder. Ties resolve to Unknown.
func classifyRoute(title, description, company string) models.RouteType {
	text := title + " " + description

	// 1. Explicit OTR in the title wins
	if otrTitleRegex.MatchString(title) {
		return models.RouteOTR
	}

	// 2. Yard work is local by definition
	if yardRegex.MatchString(text) {
		return models.RouteLocal
	}

	// 3. "Local" in title (OTR already excluded), airport, shuttle
	if localTitleRegex.MatchString(title) {
		return models.RouteLocal
	}

	hasOTRSignal := otrTitleRegex.MatchString(text) || otrKeywordRegex.MatchString(text)
	hasLocalSignal := localKeywordRegex.MatchString(text)

	// 4. Pay-pattern signal
	if hourlyPayRegex.MatchString(text) && !hasOTRSignal {
		return models.RouteLocal
	}
	if perMilePayRegex.MatchString(text) && !hasLocalSignal {
		return models.RouteOTR
	}

	// 5. Team driving, lower-48, home-every-N-days, known OTR carriers
	if teamDriverRegex.MatchString(text) || isOTRCarrier(company) {
		return models.RouteOTR
	}

	// 6. OTR keywords with no local counter-signal
	if hasOTRSignal && !hasLocalSignal {
		return models.RouteOTR
	}

	// 7. Local keywords
	if hasLocalSignal && !hasOTRSignal {
		return models.RouteLocal
	}

	// 8. No signal or conflicting signals
	return models.RouteUnknown
}

func isOTRCarrier(company string) bool {
	c := strings.ToLower(company)
	if c == "" {
		return false
	}
	for _, carrier := range otrCarriers {
		if strings.Contains(c, carrier) {
			return true
		}
	}
	return false
}
