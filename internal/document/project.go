package document

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"buchhaltung/internal/numfmt"
)

var (
	// "<Project> · Leistungszeitraum: <range> · Leistungsort: <location>"
	compactProjectLine = regexp.MustCompile(`(?m)^(.+?)\s*·\s*Leistungszeitraum:\s*([^·\n]+?)\s*·\s*Leistungsort:\s*([^\n]+?)\s*$`)

	// 19.-26.5.25: shared month and year
	compactRange = regexp.MustCompile(`^(\d{1,2})\.\s*-\s*(\d{1,2})\.(\d{1,2})\.(\d{2}|\d{4})$`)

	// 19.05.2025-26.05.2025
	fullRange = regexp.MustCompile(`^(\d{1,2}\.\d{1,2}\.\d{2,4})\s*-\s*(\d{1,2}\.\d{1,2}\.\d{2,4})$`)
)

type projectInfo struct {
	name     string
	start    *time.Time
	end      *time.Time
	location string
}

// parseCompactProject reads the one-line project summary. It must run before
// the per-field patterns, which cannot segment this line.
func parseCompactProject(text string) (projectInfo, bool) {
	m := compactProjectLine.FindStringSubmatch(text)
	if m == nil {
		return projectInfo{}, false
	}
	info := projectInfo{
		name:     strings.TrimSpace(m[1]),
		location: strings.TrimSpace(m[3]),
	}
	if start, end, ok := parseDateRange(m[2]); ok {
		info.start, info.end = &start, &end
	}
	return info, true
}

// parseDateRange accepts "19.-26.5.25" and "DD.MM.YYYY-DD.MM.YYYY". A single
// date is a one-day range.
func parseDateRange(s string) (time.Time, time.Time, bool) {
	s = strings.TrimSpace(s)

	if m := compactRange.FindStringSubmatch(s); m != nil {
		startDay, _ := strconv.Atoi(m[1])
		endDay, _ := strconv.Atoi(m[2])
		month, _ := strconv.Atoi(m[3])
		year, _ := strconv.Atoi(m[4])
		if year < 100 {
			year += 2000
		}
		start, err := numfmt.Date(year, month, startDay)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		end, err := numfmt.Date(year, month, endDay)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		return start, end, true
	}

	if m := fullRange.FindStringSubmatch(s); m != nil {
		start, err := numfmt.ParseDate(m[1])
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		end, err := numfmt.ParseDate(m[2])
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		return start, end, true
	}

	if d, err := numfmt.ParseDate(s); err == nil {
		return d, d, true
	}
	return time.Time{}, time.Time{}, false
}
