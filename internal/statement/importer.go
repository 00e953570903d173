package statement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"buchhaltung/internal/logger"
	"buchhaltung/internal/tax"
	"buchhaltung/pkg/models"
)

// dedupPrefix is how many leading characters of a description must reappear
// in an existing transaction for it to count as a duplicate.
const dedupPrefix = 50

// ErrNoTransactions is returned when a source yields nothing to import.
var ErrNoTransactions = errors.New("no transactions found")

// TransactionStore is the persistence the importer needs.
type TransactionStore interface {
	FindByAmount(ctx context.Context, amount decimal.Decimal) ([]models.BankTransaction, error)
	Create(ctx context.Context, tx *models.BankTransaction) error
}

// ImportSummary reports what an import run did.
type ImportSummary struct {
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
	Errors   int    `json:"errors"`
	Unmapped int    `json:"unmapped"`
	Total    int    `json:"total"`
	BatchID  string `json:"batch_id"`
}

// Importer persists parsed transactions.
type Importer struct {
	store TransactionStore
	log   zerolog.Logger
}

// NewImporter creates an importer on top of a transaction store.
func NewImporter(store TransactionStore) *Importer {
	return &Importer{
		store: store,
		log:   logger.WithComponent("statement-import"),
	}
}

// ImportTransactions stores each record, skipping duplicates when asked.
// A failing record is counted in Errors and the batch continues.
func (im *Importer) ImportTransactions(ctx context.Context, records []ParsedTransaction, skipDuplicates bool) ImportSummary {
	summary := ImportSummary{
		Total:   len(records),
		BatchID: uuid.NewString(),
	}

	for i, rec := range records {
		log := im.log.With().Int("record", i).Str("date", rec.RawDate).Str("amount", rec.Amount.String()).Logger()

		tx, err := im.build(rec, summary.BatchID)
		if err != nil {
			summary.Errors++
			log.Warn().Err(err).Msg("Rejecting transaction")
			continue
		}

		if skipDuplicates {
			dup, err := im.isDuplicate(ctx, tx)
			if err != nil {
				summary.Errors++
				log.Error().Err(err).Msg("Duplicate check failed")
				continue
			}
			if dup {
				summary.Skipped++
				log.Debug().Msg("Skipping duplicate transaction")
				continue
			}
		}

		if err := im.store.Create(ctx, tx); err != nil {
			summary.Errors++
			log.Error().Err(err).Msg("Failed to store transaction")
			continue
		}
		summary.Imported++
		if unmappedType(rec) != "" {
			summary.Unmapped++
		}
	}

	im.log.Info().
		Str("batch_id", summary.BatchID).
		Int("total", summary.Total).
		Int("imported", summary.Imported).
		Int("skipped", summary.Skipped).
		Int("errors", summary.Errors).
		Msg("Transaction import finished")

	return summary
}

func (im *Importer) build(rec ParsedTransaction, batchID string) (*models.BankTransaction, error) {
	const op = "build"

	if rec.Date.IsZero() {
		return nil, fmt.Errorf("%s: transaction has no date", op)
	}

	typ := rec.Type
	printed := unmappedType(rec)
	if typ == "" || printed != "" {
		typ = tax.TypeUncategorized
	}
	breakdown, err := tax.ForType(rec.Amount, typ)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	description := Description(rec)
	tx := &models.BankTransaction{
		TransactionDate:   rec.Date,
		Correspondent:     rec.Correspondent,
		Title:             rec.Title,
		Description:       description,
		Type:              typ,
		Amount:            rec.Amount,
		Currency:          normalizeCurrency(rec.Currency),
		NetAmount:         decimal.NewNullDecimal(breakdown.Net),
		VATRate:           decimal.NewNullDecimal(breakdown.Rate),
		VATAmount:         decimal.NewNullDecimal(breakdown.VAT),
		Category:          GuessCategory(description),
		IsBusinessExpense: IsBusinessExpense(rec.Amount, description),
		ImportBatchID:     batchID,
	}
	if rec.RawData != "" {
		raw := rec.RawData
		tx.RawData = &raw
	}
	if printed != "" {
		tx.AppendNote("Unbekannter Typ: " + printed)
	}
	return tx, nil
}

// unmappedType returns the printed type that has no VAT mapping, if any.
// Such records are stored as uncategorized so categorize can pick them up.
func unmappedType(rec ParsedTransaction) string {
	switch {
	case rec.Type == "":
		return rec.RawType
	case tax.IsKnown(rec.Type):
		return ""
	default:
		return rec.Type
	}
}

func (im *Importer) isDuplicate(ctx context.Context, tx *models.BankTransaction) (bool, error) {
	existing, err := im.store.FindByAmount(ctx, tx.Amount)
	if err != nil {
		return false, err
	}
	prefix := descriptionPrefix(tx.Description)
	for _, e := range existing {
		if !sameDay(e.TransactionDate, tx.TransactionDate) {
			continue
		}
		if strings.Contains(e.Description, prefix) {
			return true, nil
		}
	}
	return false, nil
}

// Description is the text stored and matched for a parsed transaction.
func Description(rec ParsedTransaction) string {
	if rec.Description != "" {
		return rec.Description
	}
	parts := make([]string, 0, 2)
	for _, p := range []string{rec.Correspondent, rec.Title} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

func descriptionPrefix(s string) string {
	r := []rune(s)
	if len(r) > dedupPrefix {
		r = r[:dedupPrefix]
	}
	return string(r)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
