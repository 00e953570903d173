package document

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"buchhaltung/internal/numfmt"
	"buchhaltung/pkg/models"
)

const itemAmount = `(-?(?:\d{1,3}(?:\.\d{3})+|\d+),\d{2})\s*(?:€|EUR)?`

var (
	// description, quantity, unit price, total
	fullItemLine = regexp.MustCompile(`^(.*[A-Za-zÄÖÜäöüß].*?)\s+(\d+(?:,\d+)?)\s*(?:x|Stk\.?|Stück|Std\.?|Stunden|h|Tage?|pauschal|psch\.?)?\s+` + itemAmount + `\s+` + itemAmount + `$`)

	// description and a single price
	priceItemLine = regexp.MustCompile(`^(.*[A-Za-zÄÖÜäöüß].*?)\s+` + itemAmount + `$`)

	fourDigits = regexp.MustCompile(`\d{4}`)

	summaryLine = regexp.MustCompile(`(?i)\b(?:zwischensumme|summe|gesamt\w*|netto\w*|brutto\w*|mwst|ust|umsatzsteuer|mehrwertsteuer|subtotal|total|zahlbar|fällig\w*|iban|bic|leistungszeitraum|rechnungsbetrag|endbetrag|angebotssumme|skonto)\b`)
)

// extractLineItems reads positions line by line. The four-number pattern is
// tried first; the single-price pattern skips lines with a four-digit number
// so dates and years are not read as prices.
func extractLineItems(lines []string) []models.LineItem {
	var items []models.LineItem
	for _, line := range lines {
		if summaryLine.MatchString(line) {
			continue
		}

		if m := fullItemLine.FindStringSubmatch(line); m != nil {
			qty, errQ := numfmt.ParseAmount(m[2])
			unit, errU := numfmt.ParseAmount(m[3])
			total, errT := numfmt.ParseAmount(m[4])
			if errQ == nil && errU == nil && errT == nil {
				items = append(items, models.LineItem{
					Description: strings.TrimSpace(m[1]),
					Quantity:    qty,
					UnitPrice:   unit,
					Total:       total,
				})
				continue
			}
		}

		if fourDigits.MatchString(line) {
			continue
		}
		if m := priceItemLine.FindStringSubmatch(line); m != nil {
			price, err := numfmt.ParseAmount(m[2])
			if err != nil {
				continue
			}
			items = append(items, models.LineItem{
				Description: strings.TrimSpace(m[1]),
				Quantity:    decimal.NewFromInt(1),
				UnitPrice:   price,
				Total:       price,
			})
		}
	}
	return items
}

func sumItems(items []models.LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Total)
	}
	return sum
}
