package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BankTransaction is one booked line of a bank statement. Amount is signed:
// positive is income, negative is expense.
type BankTransaction struct {
	ID                         uint                `gorm:"primaryKey" json:"id"`
	TransactionDate            time.Time           `gorm:"index" json:"transaction_date"`
	Correspondent              string              `json:"correspondent"`
	Title                      string              `json:"title"`
	Description                string              `gorm:"type:text" json:"description"`
	Type                       string              `gorm:"size:64;index" json:"type"`
	Amount                     decimal.Decimal     `gorm:"type:decimal(12,2);index" json:"amount"`
	Currency                   string              `gorm:"size:3;default:EUR" json:"currency"`
	NetAmount                  decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"net_amount"`
	VATRate                    decimal.NullDecimal `gorm:"column:vat_rate;type:decimal(5,2)" json:"vat_rate"`
	VATAmount                  decimal.NullDecimal `gorm:"column:vat_amount;type:decimal(12,2)" json:"vat_amount"`
	Category                   *string             `json:"category,omitempty"`
	IsBusinessExpense          bool                `json:"is_business_expense"`
	IsValidated                bool                `gorm:"index" json:"is_validated"`
	Notes                      *string             `gorm:"type:text" json:"notes,omitempty"`
	RawData                    *string             `gorm:"type:text" json:"raw_data,omitempty"`
	InvoiceID                  *uint               `gorm:"index" json:"invoice_id,omitempty"`
	MatchedPaperlessDocumentID *int                `gorm:"index" json:"matched_paperless_document_id,omitempty"`
	PaperlessDocumentTitle     *string             `json:"paperless_document_title,omitempty"`
	ImportBatchID              string              `gorm:"size:36;index" json:"import_batch_id,omitempty"`
	CreatedAt                  time.Time           `json:"created_at"`
	UpdatedAt                  time.Time           `json:"updated_at"`
}

// IsIncoming returns true if this is an incoming transaction (positive amount)
func (bt *BankTransaction) IsIncoming() bool {
	return bt.Amount.IsPositive()
}

// AppendNote adds an audit line to the notes, keeping earlier content.
func (bt *BankTransaction) AppendNote(note string) {
	if bt.Notes == nil || *bt.Notes == "" {
		bt.Notes = &note
		return
	}
	joined := *bt.Notes + " | " + note
	bt.Notes = &joined
}
