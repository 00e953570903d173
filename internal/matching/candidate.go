package matching

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Source tells where a candidate comes from.
type Source string

const (
	SourceLocal     Source = "local"
	SourcePaperless Source = "paperless"
)

// Candidate is one ranked match suggestion for a transaction. It is not persisted.
type Candidate struct {
	Source      Source `json:"type"`
	ReferenceID int    `json:"reference_id"`
	Score       int    `json:"score"`

	// local invoices
	InvoiceNumber string           `json:"invoice_number,omitempty"`
	Customer      string           `json:"customer,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`

	// archive documents
	Title         string `json:"title,omitempty"`
	Correspondent string `json:"correspondent,omitempty"`
	URL           string `json:"url,omitempty"`

	Date *time.Time `json:"date,omitempty"`
}

// IsLocal reports whether the candidate is an invoice from the database.
func (c Candidate) IsLocal() bool {
	return c.Source == SourceLocal
}

// DisplayName is the customer for invoices and the title for archive documents.
func (c Candidate) DisplayName() string {
	if c.IsLocal() {
		return c.Customer
	}
	return c.Title
}

// Rank sorts candidates by descending score. Ties keep their input order, so
// local candidates listed first stay ahead of archive documents.
func Rank(candidates []Candidate) []Candidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

// ShouldAutoLink reports whether the best candidate of a ranked list may be
// linked without confirmation.
func ShouldAutoLink(ranked []Candidate) bool {
	if len(ranked) == 0 {
		return false
	}
	best := ranked[0]
	return best.IsLocal() && best.Score >= AutoLinkThreshold
}
