// Package reconciliation matches bank transactions against local invoices and
// archived documents, applies links and drives the interactive matching
// wizard.
package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"buchhaltung/internal/logger"
	"buchhaltung/internal/matching"
	"buchhaltung/internal/numfmt"
	"buchhaltung/internal/paperless"
	"buchhaltung/pkg/models"
)

// TransactionStore reads and updates bank transactions.
type TransactionStore interface {
	TransactionByID(ctx context.Context, id uint) (*models.BankTransaction, error)
	// UnvalidatedIncome lists positive, unvalidated transactions without an
	// invoice, newest first.
	UnvalidatedIncome(ctx context.Context, limit int) ([]models.BankTransaction, error)
	SaveTransaction(ctx context.Context, tx *models.BankTransaction) error
}

// InvoiceStore reads invoices with their customer.
type InvoiceStore interface {
	InvoiceByID(ctx context.Context, id uint) (*models.Invoice, error)
	// InvoicesNear lists invoices whose total is within amountWindow of amount
	// and whose issue date is within days of date.
	InvoicesNear(ctx context.Context, amount decimal.Decimal, date time.Time, amountWindow decimal.Decimal, days int) ([]models.Invoice, error)
}

// Archive is the document archive queried for external candidates.
type Archive interface {
	Enabled() bool
	Search(ctx context.Context, query string, f paperless.SearchFilters) []paperless.Document
	CorrespondentNames(ctx context.Context) map[int]string
	DocumentURL(id int) string
}

// BatchSummary counts one auto-link run.
type BatchSummary struct {
	Processed    int `json:"processed"`
	MatchesFound int `json:"matches_found"`
	AutoLinked   int `json:"auto_linked"`
}

// Engine finds and applies matches. The archive is optional.
type Engine struct {
	transactions TransactionStore
	invoices     InvoiceStore
	archive      Archive
	log          zerolog.Logger
}

// NewEngine creates a reconciliation engine. archive may be nil.
func NewEngine(transactions TransactionStore, invoices InvoiceStore, archive Archive) *Engine {
	return &Engine{
		transactions: transactions,
		invoices:     invoices,
		archive:      archive,
		log:          logger.WithComponent("reconciliation"),
	}
}

// Transaction loads one transaction.
func (e *Engine) Transaction(ctx context.Context, id uint) (*models.BankTransaction, error) {
	const op = "Transaction"

	tx, err := e.transactions.TransactionByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: transaction %d: %w", op, id, err)
	}
	return tx, nil
}

// FindMatchingInvoices returns local and archive candidates for an incoming
// transaction, best first. Expenses and zero amounts have no candidates.
// Store or archive failures only remove that source.
func (e *Engine) FindMatchingInvoices(ctx context.Context, tx models.BankTransaction) []matching.Candidate {
	if !tx.IsIncoming() {
		return nil
	}

	candidates := e.localCandidates(ctx, tx)
	candidates = append(candidates, e.archiveCandidates(ctx, tx)...)
	ranked := matching.Rank(candidates)

	e.log.Debug().
		Uint("transaction_id", tx.ID).
		Int("candidates", len(ranked)).
		Msg("Match candidates ranked")
	return ranked
}

func (e *Engine) localCandidates(ctx context.Context, tx models.BankTransaction) []matching.Candidate {
	invoices, err := e.invoices.InvoicesNear(ctx, tx.Amount, tx.TransactionDate, matching.AmountWindow, matching.DayWindow)
	if err != nil {
		e.log.Error().Err(err).Uint("transaction_id", tx.ID).Msg("Failed to load invoice candidates")
		return nil
	}

	var out []matching.Candidate
	for _, inv := range invoices {
		if !withinWindow(tx, inv) {
			continue
		}
		total := inv.Total
		issued := inv.IssueDate
		out = append(out, matching.Candidate{
			Source:        matching.SourceLocal,
			ReferenceID:   int(inv.ID),
			Score:         matching.ScoreInvoice(tx, inv),
			InvoiceNumber: inv.InvoiceNumber,
			Customer:      inv.Customer.Name,
			Amount:        &total,
			Date:          &issued,
		})
	}
	return out
}

// withinWindow re-checks the store query bounds so that candidates never
// depend on how a database compares dates or decimals.
func withinWindow(tx models.BankTransaction, inv models.Invoice) bool {
	if tx.Amount.Sub(inv.Total).Abs().GreaterThan(matching.AmountWindow) {
		return false
	}
	return numfmt.DaysBetween(tx.TransactionDate, inv.IssueDate) <= matching.DayWindow
}

func (e *Engine) archiveCandidates(ctx context.Context, tx models.BankTransaction) []matching.Candidate {
	if e.archive == nil || !e.archive.Enabled() {
		return nil
	}
	terms := matching.SearchTerms(tx.Description)
	if len(terms) == 0 {
		return nil
	}

	var out []matching.Candidate
	var names map[int]string
	seen := make(map[int]bool)

	for _, term := range terms {
		for _, doc := range e.archive.Search(ctx, term, paperless.SearchFilters{}) {
			if seen[doc.ID] {
				continue
			}
			seen[doc.ID] = true

			if !matching.TitleLooksLikeInvoice(doc.Title) {
				continue
			}
			created := doc.CreatedAt()
			score := matching.ScoreArchiveDocument(tx.Description, tx.TransactionDate, doc.Title, created)
			if !matching.AdmitArchiveScore(score) {
				continue
			}

			c := matching.Candidate{
				Source:      matching.SourcePaperless,
				ReferenceID: doc.ID,
				Score:       score,
				Title:       doc.Title,
				URL:         e.archive.DocumentURL(doc.ID),
				Date:        created,
			}
			if doc.Correspondent != nil {
				if names == nil {
					names = e.archive.CorrespondentNames(ctx)
				}
				c.Correspondent = names[*doc.Correspondent]
			}
			out = append(out, c)
		}
	}

	e.log.Debug().
		Uint("transaction_id", tx.ID).
		Strs("terms", terms).
		Int("documents", len(seen)).
		Int("admitted", len(out)).
		Msg("Archive candidates scored")
	return out
}

// LinkTransactionToInvoice marks the transaction as paid by the invoice and
// records it in the notes.
func (e *Engine) LinkTransactionToInvoice(ctx context.Context, txID, invoiceID uint) bool {
	tx, err := e.transactions.TransactionByID(ctx, txID)
	if err != nil {
		e.log.Error().Err(err).Uint("transaction_id", txID).Msg("Cannot link: transaction not found")
		return false
	}
	inv, err := e.invoices.InvoiceByID(ctx, invoiceID)
	if err != nil {
		e.log.Error().Err(err).Uint("invoice_id", invoiceID).Msg("Cannot link: invoice not found")
		return false
	}

	tx.InvoiceID = &inv.ID
	tx.IsValidated = true
	tx.AppendNote("Verknüpft mit Rechnung " + inv.InvoiceNumber)

	if err := e.transactions.SaveTransaction(ctx, tx); err != nil {
		e.log.Error().Err(err).Uint("transaction_id", txID).Uint("invoice_id", invoiceID).Msg("Failed to save invoice link")
		return false
	}

	e.log.Info().
		Uint("transaction_id", txID).
		Str("invoice_number", inv.InvoiceNumber).
		Msg("Transaction linked to invoice")
	return true
}

// LinkTransactionToDocument marks the transaction as documented by an
// archived document.
func (e *Engine) LinkTransactionToDocument(ctx context.Context, txID uint, documentID int, title string) bool {
	tx, err := e.transactions.TransactionByID(ctx, txID)
	if err != nil {
		e.log.Error().Err(err).Uint("transaction_id", txID).Msg("Cannot link: transaction not found")
		return false
	}

	tx.MatchedPaperlessDocumentID = &documentID
	tx.PaperlessDocumentTitle = &title
	tx.IsValidated = true
	tx.AppendNote("Verknüpft mit Paperless-Dokument " + title)

	if err := e.transactions.SaveTransaction(ctx, tx); err != nil {
		e.log.Error().Err(err).Uint("transaction_id", txID).Int("document_id", documentID).Msg("Failed to save document link")
		return false
	}

	e.log.Info().
		Uint("transaction_id", txID).
		Int("document_id", documentID).
		Str("title", title).
		Msg("Transaction linked to archive document")
	return true
}

// FindMatchesForUnvalidatedTransactions runs the matcher over up to limit open
// incoming transactions and links those whose best candidate is a local
// invoice scoring at least the auto-link threshold.
func (e *Engine) FindMatchesForUnvalidatedTransactions(ctx context.Context, limit int) BatchSummary {
	var summary BatchSummary

	txs, err := e.transactions.UnvalidatedIncome(ctx, limit)
	if err != nil {
		e.log.Error().Err(err).Int("limit", limit).Msg("Failed to load unvalidated transactions")
		return summary
	}

	for _, tx := range txs {
		if ctx.Err() != nil {
			e.log.Warn().Int("processed", summary.Processed).Msg("Auto-link run interrupted")
			break
		}
		summary.Processed++

		ranked := e.FindMatchingInvoices(ctx, tx)
		if len(ranked) == 0 {
			continue
		}
		summary.MatchesFound++

		if !matching.ShouldAutoLink(ranked) {
			e.log.Debug().
				Uint("transaction_id", tx.ID).
				Int("best_score", ranked[0].Score).
				Str("best_type", string(ranked[0].Source)).
				Msg("Left for manual review")
			continue
		}
		if e.LinkTransactionToInvoice(ctx, tx.ID, uint(ranked[0].ReferenceID)) {
			summary.AutoLinked++
		}
	}

	e.log.Info().
		Int("processed", summary.Processed).
		Int("matches_found", summary.MatchesFound).
		Int("auto_linked", summary.AutoLinked).
		Msg("Auto-link run completed")
	return summary
}
