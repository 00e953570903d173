package statement

import (
	"regexp"
	"strings"

	"buchhaltung/internal/numfmt"
)

// genericLine is a full date anywhere on the line and a trailing amount.
var genericLine = regexp.MustCompile(`(\d{2}\.\d{2}\.\d{4}|\d{2}/\d{2}/\d{4}).*?([+-]?\s?(?:\d{1,3}(?:\.\d{3})+|\d+),\d{2})\s*(EUR|€)?$`)

// genericFormat is the fallback for statements from unknown banks.
type genericFormat struct{}

func (g *genericFormat) Name() string { return "generic" }

func (g *genericFormat) Detect(string) bool { return true }

func (g *genericFormat) Parse(lines []string) []ParsedTransaction {
	var out []ParsedTransaction
	for _, line := range lines {
		m := genericLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		date, err := numfmt.ParseDate(m[1])
		if err != nil {
			continue
		}
		amount, err := numfmt.ParseAmount(strings.ReplaceAll(m[2], " ", ""))
		if err != nil {
			continue
		}
		out = append(out, ParsedTransaction{
			Date:        date,
			RawDate:     date.Format("2006-01-02"),
			Description: line,
			Amount:      amount,
			Currency:    normalizeCurrency(m[3]),
			RawData:     line,
		})
	}
	return out
}
