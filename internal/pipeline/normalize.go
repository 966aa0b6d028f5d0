package pipeline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/driveline/jobfeed/internal/models"
)

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	punctNoiseRegex = regexp.MustCompile(`[*#_~\x60]+`)

	// $25.50 - $32 per hour / $0.55/mile / $85,000 a year
	salaryRangeRegex  = regexp.MustCompile(`\$\s*([\d,]+(?:\.\d+)?)\s*(?:-|–|to)\s*\$?\s*([\d,]+(?:\.\d+)?)`)
	salarySingleRegex = regexp.MustCompile(`\$\s*([\d,]+(?:\.\d+)?)`)
	salaryUnitRegex   = regexp.MustCompile(`(?i)(?:per\s+|/\s*|an?\s+)(hour|hr|day|week|wk|month|mo|year|yr|annum|mile)`)

	cityStateRegex = regexp.MustCompile(`^\s*([^,]+?)\s*,\s*([A-Za-z]{2})(?:\s+\d{5})?\s*$`)
)

// Normalize produces the norm.* fields used by rules, dedup, and the
// classifier prompt. It never mutates source.* and is idempotent: running it
// twice yields the same frame.
func Normalize(frame *models.Frame) *models.Frame {
	if frame == nil {
		return frame
	}

	converter := md.NewConverter("", true, nil)

	for _, row := range frame.Rows {
		row.Norm.Title = cleanText(row.Source.Title)
		row.Norm.Company = cleanText(row.Source.Company)

		city, state := parseLocation(row.Source.LocationRaw)
		row.Norm.City = city
		row.Norm.State = state
		if state != "" {
			row.Norm.Location = city + ", " + state
		} else {
			row.Norm.Location = city
		}

		row.Norm.Description = stripHTML(row.Source.DescriptionRaw)
		row.Norm.DescriptionMarkdown = toMarkdown(converter, row.Source.DescriptionRaw)

		min, max, unit := parseSalary(row.Source.SalaryRaw)
		row.Norm.SalaryMin = min
		row.Norm.SalaryMax = max
		row.Norm.SalaryUnit = unit
		if min != nil || max != nil {
			row.Norm.SalaryCurrency = "USD"
			row.Norm.SalaryDisplay = salaryDisplay(min, max, unit)
		} else {
			row.Norm.SalaryCurrency = ""
			row.Norm.SalaryDisplay = ""
		}
	}

	return frame
}

// cleanText trims, collapses whitespace, and strips punctuation noise.
// Casing is preserved.
func cleanText(s string) string {
	s = punctNoiseRegex.ReplaceAllString(s, " ")
	s = whitespaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// stripHTML removes markup from a raw description and normalizes whitespace.
// Non-HTML input passes through with whitespace normalization only.
func stripHTML(raw string) string {
	if raw == "" {
		return ""
	}

	text := raw
	if strings.Contains(raw, "<") {
		// Pad tags so adjacent block elements don't run together in the
		// extracted text
		padded := strings.ReplaceAll(raw, "<", " <")
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(padded))
		if err == nil {
			text = doc.Text()
		}
	}

	text = whitespaceRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// toMarkdown renders a raw HTML description as markdown for downstream
// exporters. Plain text passes through untouched.
func toMarkdown(converter *md.Converter, raw string) string {
	if raw == "" || !strings.Contains(raw, "<") {
		return strings.TrimSpace(raw)
	}

	converted, err := converter.ConvertString(raw)
	if err != nil || strings.TrimSpace(converted) == "" {
		return stripHTML(raw)
	}
	return strings.TrimSpace(converted)
}

// parseLocation splits "City, ST" into components. Free text without a
// two-letter state keeps the whole string as city and leaves state empty.
func parseLocation(raw string) (city, state string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}

	if m := cityStateRegex.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1]), strings.ToUpper(m[2])
	}
	return cleanText(raw), ""
}

// parseSalary extracts min, max, and unit from the raw provider salary block.
// Unparseable input leaves everything nil.
func parseSalary(raw string) (min, max *float64, unit string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil, ""
	}

	unit = parseSalaryUnit(raw)

	if m := salaryRangeRegex.FindStringSubmatch(raw); m != nil {
		lo := parseMoney(m[1])
		hi := parseMoney(m[2])
		if lo != nil && hi != nil {
			if unit == "" {
				unit = inferSalaryUnit(*hi)
			}
			return lo, hi, unit
		}
	}

	if m := salarySingleRegex.FindStringSubmatch(raw); m != nil {
		v := parseMoney(m[1])
		if v != nil {
			if unit == "" {
				unit = inferSalaryUnit(*v)
			}
			return v, v, unit
		}
	}

	return nil, nil, ""
}

func parseSalaryUnit(raw string) string {
	m := salaryUnitRegex.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	switch strings.ToLower(m[1]) {
	case "hour", "hr":
		return "hour"
	case "day":
		return "day"
	case "week", "wk":
		return "week"
	case "month", "mo":
		return "month"
	case "year", "yr", "annum":
		return "year"
	default:
		return ""
	}
}

// inferSalaryUnit guesses the pay period from magnitude when the text names
// none.
func inferSalaryUnit(amount float64) string {
	switch {
	case amount < 200:
		return "hour"
	case amount < 10000:
		return "week"
	default:
		return "year"
	}
}

func parseMoney(s string) *float64 {
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func salaryDisplay(min, max *float64, unit string) string {
	format := func(v float64) string {
		if v == float64(int64(v)) {
			return fmt.Sprintf("$%s", humanInt(int64(v)))
		}
		return fmt.Sprintf("$%.2f", v)
	}

	var display string
	switch {
	case min != nil && max != nil && *min != *max:
		display = format(*min) + " - " + format(*max)
	case min != nil:
		display = format(*min)
	case max != nil:
		display = format(*max)
	default:
		return ""
	}

	if unit != "" {
		display += " per " + unit
	}
	return display
}

// humanInt renders 85000 as "85,000".
func humanInt(v int64) string {
	s := strconv.FormatInt(v, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	offset := len(s) % 3
	if offset > 0 {
		b.WriteString(s[:offset])
	}
	for i := offset; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
