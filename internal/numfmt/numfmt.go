// Package numfmt converts German-formatted amounts and dates to canonical values.
package numfmt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	dotThousands = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)
	shortDate    = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{2})$`)
)

// dateFormats are tried in order by ParseDate
var dateFormats = []string{
	"02.01.2006", // DD.MM.YYYY
	"2.1.2006",   // D.M.YYYY
	"02/01/2006", // DD/MM/YYYY
	"2/1/2006",   // D/M/YYYY
	"2006-01-02", // ISO format
}

// ParseAmount parses a German amount ("1.234,56", "-8.456,00", "+ 12,00 EUR").
// A comma is the decimal separator and dots group thousands.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}

	negative := false
	switch {
	case strings.HasPrefix(cleaned, "-"):
		negative = true
		cleaned = cleaned[1:]
	case strings.HasPrefix(cleaned, "+"):
		cleaned = cleaned[1:]
	}

	cleaned = strings.ReplaceAll(cleaned, "€", "")
	cleaned = strings.ReplaceAll(cleaned, "EUR", "")
	cleaned = strings.ReplaceAll(cleaned, "\u00a0", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")

	// trailing sign as printed by some banks: "45,99-"
	if strings.HasSuffix(cleaned, "-") {
		negative = !negative
		cleaned = strings.TrimSuffix(cleaned, "-")
	}

	switch {
	case strings.Contains(cleaned, ","):
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	case dotThousands.MatchString(cleaned):
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unable to parse amount: %s (cleaned: %s)", s, cleaned)
	}
	if negative {
		amount = amount.Neg()
	}
	return amount, nil
}

// FormatAmount renders an amount the German way with two decimals, "-1.234,56".
func FormatAmount(d decimal.Decimal) string {
	fixed := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if d.Round(2).IsNegative() {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	b.WriteByte(',')
	b.WriteString(frac)
	return b.String()
}

// ParseShortDate parses "DD.MM.YY". Two-digit years always mean 20YY.
func ParseShortDate(s string) (time.Time, error) {
	m := shortDate.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return time.Time{}, fmt.Errorf("unable to parse short date: %s", s)
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	return build(2000+year, month, day, s)
}

// ParseDate accepts the common German and ISO layouts, including DD.MM.YY.
func ParseDate(s string) (time.Time, error) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return time.Time{}, fmt.Errorf("empty date string")
	}
	if shortDate.MatchString(cleaned) {
		return ParseShortDate(cleaned)
	}
	for _, format := range dateFormats {
		if date, err := time.Parse(format, cleaned); err == nil {
			return date, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", s)
}

// Date builds a UTC calendar date, rejecting impossible days like 31.02.
func Date(year, month, day int) (time.Time, error) {
	return build(year, month, day, fmt.Sprintf("%02d.%02d.%d", day, month, year))
}

func build(year, month, day int, raw string) (time.Time, error) {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, fmt.Errorf("invalid calendar date: %s", raw)
	}
	return t, nil
}

// DaysBetween returns the absolute number of calendar days between a and b.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	days := int(da.Sub(db).Hours() / 24)
	if days < 0 {
		return -days
	}
	return days
}

// Round2 rounds to cents.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
