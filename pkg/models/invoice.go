package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Invoice kinds
const (
	InvoiceTypeGeneral = "general"
	InvoiceTypeProject = "project"
)

// LineItem is one position on an invoice or quote
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}

// Billing holds the fields invoices and quotes share
type Billing struct {
	CustomerID          uint                          `gorm:"index" json:"customer_id"`
	Type                string                        `gorm:"size:16;default:general" json:"type"`
	ProjectName         *string                       `json:"project_name,omitempty"`
	ServicePeriodStart  *time.Time                    `json:"service_period_start,omitempty"`
	ServicePeriodEnd    *time.Time                    `json:"service_period_end,omitempty"`
	ServiceLocation     *string                       `json:"service_location,omitempty"`
	IssueDate           time.Time                     `json:"issue_date"`
	Items               datatypes.JSONSlice[LineItem] `json:"items"`
	Subtotal            decimal.Decimal               `gorm:"type:decimal(12,2)" json:"subtotal"`
	VATRate             decimal.Decimal               `gorm:"column:vat_rate;type:decimal(5,2)" json:"vat_rate"`
	VATAmount           decimal.Decimal               `gorm:"column:vat_amount;type:decimal(12,2)" json:"vat_amount"`
	Total               decimal.Decimal               `gorm:"type:decimal(12,2);index" json:"total"`
	Notes               *string                       `gorm:"type:text" json:"notes,omitempty"`
	PaperlessDocumentID *int                          `json:"paperless_document_id,omitempty"`
}

// Invoice is an outgoing invoice (Rechnung)
type Invoice struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	InvoiceNumber string    `gorm:"size:32;uniqueIndex" json:"invoice_number"`
	Customer      Customer  `gorm:"foreignKey:CustomerID" json:"customer"`
	DueDate       time.Time `json:"due_date"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Billing `gorm:"embedded"`
}

// Quote is an offer (Angebot)
type Quote struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	QuoteNumber string    `gorm:"size:32;uniqueIndex" json:"quote_number"`
	Customer    Customer  `gorm:"foreignKey:CustomerID" json:"customer"`
	ValidUntil  time.Time `json:"valid_until"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Billing `gorm:"embedded"`
}

// Customer is matched by name; suffix normalization never touches the stored name
type Customer struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"index" json:"name"`
	Email     string    `gorm:"index" json:"email,omitempty"`
	Street    string    `json:"street,omitempty"`
	Zip       string    `json:"zip,omitempty"`
	City      string    `json:"city,omitempty"`
	TaxNumber string    `json:"tax_number,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
