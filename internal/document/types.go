// Package document reads German invoices and quotes from extracted text,
// resolves their customers and stores them.
package document

import (
	"time"

	"github.com/shopspring/decimal"

	"buchhaltung/pkg/models"
)

// Kind is the classified document type.
type Kind string

const (
	KindInvoice Kind = "invoice"
	KindQuote   Kind = "quote"
	KindUnknown Kind = "unknown"
)

// DefaultVATRate applies when a document states no rate.
var DefaultVATRate = decimal.NewFromInt(19)

// ParsedCustomer holds the customer fields found in a document. Empty means not found.
type ParsedCustomer struct {
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Street    string `json:"street,omitempty"`
	Zip       string `json:"zip,omitempty"`
	City      string `json:"city,omitempty"`
	TaxNumber string `json:"tax_number,omitempty"`
}

// ParsedDocument is the structured result of parsing an invoice or quote.
// Nil and empty fields are pattern misses, not errors.
type ParsedDocument struct {
	Type       Kind       `json:"type"`
	Number     string     `json:"number,omitempty"`
	IssueDate  *time.Time `json:"issue_date,omitempty"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`

	Customer   ParsedCustomer `json:"customer"`
	CustomerID *uint          `json:"customer_id,omitempty"`

	ProjectName        string     `json:"project_name,omitempty"`
	ServicePeriodStart *time.Time `json:"service_period_start,omitempty"`
	ServicePeriodEnd   *time.Time `json:"service_period_end,omitempty"`
	ServiceLocation    string     `json:"service_location,omitempty"`

	Items     []models.LineItem `json:"items"`
	Subtotal  *decimal.Decimal  `json:"subtotal,omitempty"`
	VATRate   decimal.Decimal   `json:"vat_rate"`
	VATAmount *decimal.Decimal  `json:"vat_amount,omitempty"`
	Total     *decimal.Decimal  `json:"total,omitempty"`
	Notes     string            `json:"notes,omitempty"`

	PaperlessDocumentID *int     `json:"paperless_document_id,omitempty"`
	Warnings            []string `json:"warnings,omitempty"`
}

// IsProject reports whether project details were found. A single service
// date (start equals end) is an ordinary invoice detail, not a project.
func (d *ParsedDocument) IsProject() bool {
	if d.ProjectName != "" || d.ServiceLocation != "" {
		return true
	}
	return d.ServicePeriodStart != nil && d.ServicePeriodEnd != nil &&
		d.ServicePeriodEnd.After(*d.ServicePeriodStart)
}

// ImportResult is the outcome of ImportDocument. Error is set instead of the
// other fields when the import failed.
type ImportResult struct {
	Success  bool   `json:"success"`
	ID       uint   `json:"id,omitempty"`
	Number   string `json:"number,omitempty"`
	Customer string `json:"customer,omitempty"`
	Error    string `json:"error,omitempty"`
}
