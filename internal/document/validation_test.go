package document

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buchhaltung/pkg/models"
)

func amt(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestCheckAmounts(t *testing.T) {
	tests := []struct {
		name            string
		doc             ParsedDocument
		sub, vat, total string
		warning         string
	}{
		{"consistent", ParsedDocument{Subtotal: amt("100"), VATAmount: amt("19"), Total: amt("119")}, "100", "19", "119", ""},
		{"within tolerance", ParsedDocument{Subtotal: amt("100"), VATAmount: amt("19"), Total: amt("119.02")}, "100", "19", "119.02", ""},
		{"mismatch keeps extracted values", ParsedDocument{Subtotal: amt("100"), VATAmount: amt("19"), Total: amt("120")}, "100", "19", "120", "Amount calculation error"},
		{"total derived", ParsedDocument{Subtotal: amt("250"), VATAmount: amt("47.50")}, "250", "47.50", "297.50", "Total calculated"},
		{"subtotal derived", ParsedDocument{VATAmount: amt("7"), Total: amt("107")}, "100", "7", "107", "Subtotal calculated"},
		{"vat derived", ParsedDocument{Subtotal: amt("100"), Total: amt("107")}, "100", "7", "107", "VAT amount calculated"},
		{"vat and total from rate", ParsedDocument{Subtotal: amt("1000"), VATRate: dec("7")}, "1000", "70", "1070", "VAT and Total calculated"},
		{"split from total", ParsedDocument{Total: amt("119"), VATRate: dec("19")}, "100", "19", "119", "Subtotal and VAT calculated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := tt.doc
			warnings := NewAmountCheck().CheckAmounts(&doc)

			assertAmount(t, tt.sub, doc.Subtotal)
			assertAmount(t, tt.vat, doc.VATAmount)
			assertAmount(t, tt.total, doc.Total)

			if tt.warning == "" {
				assert.Empty(t, warnings)
				return
			}
			require.Len(t, warnings, 1)
			assert.Contains(t, warnings[0], tt.warning)
			assert.Equal(t, warnings, doc.Warnings)
		})
	}
}

func TestCheckAmountsMismatchMessageUsesGermanFormat(t *testing.T) {
	doc := ParsedDocument{Subtotal: amt("1960"), VATAmount: amt("372.40"), Total: amt("2232.40")}

	warnings := NewAmountCheck().CheckAmounts(&doc)

	require.Len(t, warnings, 1)
	assert.Equal(t, "Amount calculation error: Subtotal(1.960,00) + VAT(372,40) = 2.332,40, but Total=2.232,40 (difference: 100,00)", warnings[0])
}

func TestCheckAmountsTwiceKeepsOneWarning(t *testing.T) {
	doc := ParsedDocument{Subtotal: amt("1960"), VATAmount: amt("372.40"), Total: amt("2232.40")}
	check := NewAmountCheck()

	check.CheckAmounts(&doc)
	again := check.CheckAmounts(&doc)

	assert.Len(t, again, 1)
	require.Len(t, doc.Warnings, 1)
	assert.Contains(t, doc.Warnings[0], "Amount calculation error")
}

func TestCheckAmountsSumsItems(t *testing.T) {
	doc := ParsedDocument{
		VATRate: dec("19"),
		Items: []models.LineItem{
			{Description: "Workshop", Quantity: dec("1"), UnitPrice: dec("600"), Total: dec("600")},
			{Description: "Reisekosten", Quantity: dec("1"), UnitPrice: dec("150"), Total: dec("150")},
		},
	}

	warnings := NewAmountCheck().CheckAmounts(&doc)

	assertAmount(t, "750", doc.Subtotal)
	assertAmount(t, "142.50", doc.VATAmount)
	assertAmount(t, "892.50", doc.Total)
	assert.Len(t, warnings, 2)
}

func TestCheckAmountsNothingToDo(t *testing.T) {
	doc := ParsedDocument{VATRate: DefaultVATRate}

	assert.Empty(t, NewAmountCheck().CheckAmounts(&doc))
	assert.Nil(t, doc.Total)
}
