package document

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"buchhaltung/internal/numfmt"
	"buchhaltung/pkg/models"
)

// FromExtractedFields builds a ParsedDocument from the key/value map returned
// by an AI extractor. Unknown keys are ignored and unparsable values are left
// empty, the same as a regex miss.
func FromExtractedFields(fields map[string]any) ParsedDocument {
	doc := ParsedDocument{
		Type:    KindUnknown,
		VATRate: DefaultVATRate,
	}

	switch strings.ToLower(str(fields, "type", "document_type")) {
	case "invoice", "rechnung":
		doc.Type = KindInvoice
	case "quote", "angebot", "offer":
		doc.Type = KindQuote
	}

	doc.Number = str(fields, "number", "invoice_number", "quote_number")
	doc.IssueDate = date(fields, "issue_date", "date")
	doc.DueDate = date(fields, "due_date")
	doc.ValidUntil = date(fields, "valid_until")

	doc.Customer = ParsedCustomer{
		Name:      str(fields, "customer_name", "customer"),
		Email:     strings.ToLower(str(fields, "customer_email")),
		Street:    str(fields, "customer_street"),
		Zip:       str(fields, "customer_zip"),
		City:      str(fields, "customer_city"),
		TaxNumber: str(fields, "customer_tax_number"),
	}

	doc.ProjectName = str(fields, "project_name")
	doc.ServiceLocation = str(fields, "service_location")
	doc.ServicePeriodStart = date(fields, "service_period_start")
	doc.ServicePeriodEnd = date(fields, "service_period_end")

	doc.Subtotal = amount(fields, "subtotal", "net_amount")
	doc.VATAmount = amount(fields, "vat_amount")
	doc.Total = amount(fields, "total", "gross_amount")
	if rate := amount(fields, "vat_rate"); rate != nil {
		doc.VATRate = *rate
	}
	doc.Notes = str(fields, "notes", "description")

	if raw, ok := fields["items"].([]any); ok {
		for _, r := range raw {
			m, ok := r.(map[string]any)
			if !ok {
				continue
			}
			item := models.LineItem{
				Description: str(m, "description"),
				Quantity:    decimal.NewFromInt(1),
			}
			if q := amount(m, "quantity"); q != nil {
				item.Quantity = *q
			}
			if p := amount(m, "unit_price", "price"); p != nil {
				item.UnitPrice = *p
			}
			if t := amount(m, "total"); t != nil {
				item.Total = *t
			} else {
				item.Total = item.UnitPrice.Mul(item.Quantity).Round(2)
			}
			if item.Description != "" {
				doc.Items = append(doc.Items, item)
			}
		}
	}

	return doc
}

func str(fields map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := fields[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return fmt.Sprintf("%v", v)
		}
	}
	return ""
}

func date(fields map[string]any, keys ...string) *time.Time {
	s := str(fields, keys...)
	if s == "" {
		return nil
	}
	d, err := numfmt.ParseDate(s)
	if err != nil {
		return nil
	}
	return &d
}

// amount accepts JSON numbers, dotted decimals and German formatted strings.
func amount(fields map[string]any, keys ...string) *decimal.Decimal {
	for _, k := range keys {
		switch v := fields[k].(type) {
		case float64:
			d := decimal.NewFromFloat(v)
			return &d
		case string:
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if !strings.Contains(v, ",") {
				if d, err := decimal.NewFromString(v); err == nil {
					return &d
				}
			}
			if d, err := numfmt.ParseAmount(v); err == nil {
				return &d
			}
		}
	}
	return nil
}
