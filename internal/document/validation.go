package document

import (
	"fmt"
	"slices"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"buchhaltung/internal/logger"
	"buchhaltung/internal/numfmt"
	"buchhaltung/internal/tax"
)

// amountTolerance is the largest subtotal + VAT vs. total gap accepted silently.
var amountTolerance = decimal.RequireFromString("0.02")

// AmountCheck cross-checks and completes document totals
type AmountCheck struct {
	log zerolog.Logger
}

// NewAmountCheck creates a new amount check
func NewAmountCheck() *AmountCheck {
	return &AmountCheck{
		log: logger.WithComponent("amount-check"),
	}
}

// CheckAmounts warns when subtotal + VAT disagrees with the total and derives
// whatever is missing so that total = subtotal + VAT. Extracted values are
// never overwritten. The returned warnings are also added to doc.Warnings,
// once each, so checking a document again does not repeat them.
func (ac *AmountCheck) CheckAmounts(doc *ParsedDocument) []string {
	var warnings []string

	if doc.Subtotal == nil && len(doc.Items) > 0 {
		sum := sumItems(doc.Items)
		doc.Subtotal = &sum
		warnings = append(warnings, "Subtotal calculated from line items")
	}

	sub, vat, total := doc.Subtotal, doc.VATAmount, doc.Total

	switch {
	case sub != nil && vat != nil && total != nil:
		calculated := sub.Add(*vat)
		if diff := calculated.Sub(*total).Abs(); diff.GreaterThan(amountTolerance) {
			warnings = append(warnings, fmt.Sprintf("Amount calculation error: Subtotal(%s) + VAT(%s) = %s, but Total=%s (difference: %s)",
				numfmt.FormatAmount(*sub),
				numfmt.FormatAmount(*vat),
				numfmt.FormatAmount(calculated),
				numfmt.FormatAmount(*total),
				numfmt.FormatAmount(diff)))

			ac.log.Warn().
				Str("subtotal", sub.String()).
				Str("vat", vat.String()).
				Str("total", total.String()).
				Str("difference", diff.String()).
				Msg("Amount calculation discrepancy detected")
		}

	case sub != nil && vat != nil:
		t := sub.Add(*vat)
		doc.Total = &t
		warnings = append(warnings, "Total calculated from Subtotal + VAT")

	case total != nil && vat != nil:
		s := total.Sub(*vat)
		doc.Subtotal = &s
		warnings = append(warnings, "Subtotal calculated from Total - VAT")

	case total != nil && sub != nil:
		v := total.Sub(*sub)
		doc.VATAmount = &v
		warnings = append(warnings, "VAT amount calculated from Total - Subtotal")

	case sub != nil:
		v := tax.VATOnNet(*sub, doc.VATRate)
		t := sub.Add(v)
		doc.VATAmount, doc.Total = &v, &t
		warnings = append(warnings, "VAT and Total calculated from Subtotal and VAT rate")

	case total != nil:
		b := tax.Split(*total, doc.VATRate)
		doc.Subtotal, doc.VATAmount = &b.Net, &b.VAT
		warnings = append(warnings, "Subtotal and VAT calculated from Total and VAT rate")
	}

	if len(warnings) > 0 {
		ac.log.Debug().Strs("warnings", warnings).Msg("Amount check completed")
	}
	for _, w := range warnings {
		if !slices.Contains(doc.Warnings, w) {
			doc.Warnings = append(doc.Warnings, w)
		}
	}
	return warnings
}
