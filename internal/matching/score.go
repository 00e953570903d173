// Package matching scores bank transactions against invoices and archived
// documents. All functions are pure; the reconciliation package supplies the
// candidates.
package matching

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"buchhaltung/internal/numfmt"
	"buchhaltung/pkg/models"
)

// Policy thresholds.
const (
	// MinArchiveScore is the highest score an archive document can have and
	// still be discarded.
	MinArchiveScore = 30

	// AutoLinkThreshold is the lowest score of a local candidate that is
	// linked without confirmation.
	AutoLinkThreshold = 80
)

// DayWindow bounds the issue date of local invoice candidates around the
// transaction date.
const DayWindow = 30

// AmountWindow bounds the invoice total of local candidates around the
// transaction amount.
var AmountWindow = decimal.NewFromInt(1)

var (
	exactAmount = decimal.RequireFromString("0.01")
	nearAmount  = decimal.NewFromInt(1)
	closeAmount = decimal.NewFromInt(5)
)

var invoiceTitleWords = []string{"rechnung", "invoice"}

// AmountScore scores the absolute difference between transaction and invoice
// total. Only the tightest tier applies.
func AmountScore(diff decimal.Decimal) int {
	diff = diff.Abs()
	switch {
	case diff.LessThan(exactAmount):
		return 50
	case diff.LessThanOrEqual(nearAmount):
		return 30
	case diff.LessThanOrEqual(closeAmount):
		return 15
	default:
		return 0
	}
}

// DateScore scores the day distance between a transaction and an invoice.
func DateScore(days int) int {
	if days < 0 {
		days = -days
	}
	switch {
	case days <= 3:
		return 30
	case days <= 7:
		return 20
	case days <= 14:
		return 10
	case days <= 30:
		return 5
	default:
		return 0
	}
}

// archiveDateScore is DateScore without the three-day tier.
func archiveDateScore(days int) int {
	if days < 0 {
		days = -days
	}
	switch {
	case days <= 7:
		return 20
	case days <= 14:
		return 10
	case days <= 30:
		return 5
	default:
		return 0
	}
}

// ScoreInvoice rates a local invoice as a match for tx, at most 100.
func ScoreInvoice(tx models.BankTransaction, inv models.Invoice) int {
	score := AmountScore(tx.Amount.Sub(inv.Total))
	score += DateScore(numfmt.DaysBetween(tx.TransactionDate, inv.IssueDate))

	name := strings.ToLower(strings.TrimSpace(inv.Customer.Name))
	if name != "" && strings.Contains(strings.ToLower(tx.Description), name) {
		score += 20
	}
	return score
}

// ScoreArchiveDocument rates an archived document by word overlap with the
// transaction description, an invoice-like title and the creation date.
func ScoreArchiveDocument(description string, txDate time.Time, title string, created *time.Time) int {
	score := 5 * commonWords(description, title)

	if TitleLooksLikeInvoice(title) {
		score += 10
	}
	if created != nil && !created.IsZero() {
		score += archiveDateScore(numfmt.DaysBetween(txDate, *created))
	}
	return score
}

// TitleLooksLikeInvoice reports whether an archive title names an invoice.
func TitleLooksLikeInvoice(title string) bool {
	lower := strings.ToLower(title)
	for _, w := range invoiceTitleWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// AdmitArchiveScore reports whether an archive candidate is kept at all.
func AdmitArchiveScore(score int) bool {
	return score > MinArchiveScore
}

// commonWords counts distinct lowercase words present in both strings.
func commonWords(a, b string) int {
	inB := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(b)) {
		inB[w] = true
	}
	seen := make(map[string]bool)
	n := 0
	for _, w := range strings.Fields(strings.ToLower(a)) {
		if inB[w] && !seen[w] {
			seen[w] = true
			n++
		}
	}
	return n
}
