// Package categorize asks a language model for the tax type of transactions
// the statement import could not classify.
package categorize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"buchhaltung/internal/ai"
	"buchhaltung/internal/logger"
	"buchhaltung/internal/tax"
	"buchhaltung/pkg/models"
)

var (
	// ErrUnknownType is returned when the model answers with a type outside
	// the VAT table.
	ErrUnknownType = errors.New("suggested type is not a known transaction type")

	// ErrWrongDirection is returned when an income type is suggested for an
	// expense or the other way round.
	ErrWrongDirection = errors.New("suggested type does not fit the payment direction")
)

// Store loads and saves transactions.
type Store interface {
	UncategorizedTransactions(ctx context.Context, limit int) ([]models.BankTransaction, error)
	SaveTransaction(ctx context.Context, tx *models.BankTransaction) error
}

// Suggestion is the model's answer for one transaction.
type Suggestion struct {
	Type              string `json:"typ"`
	Category          string `json:"kategorie"`
	IsBusinessExpense bool   `json:"geschaeftlich"`
	Reason            string `json:"begruendung"`
}

// Summary counts the outcome of a categorization run.
type Summary struct {
	Processed   int `json:"processed"`
	Categorized int `json:"categorized"`
	Rejected    int `json:"rejected"`
	Failed      int `json:"failed"`
}

// Service suggests and applies transaction types.
type Service struct {
	provider ai.Provider
	store    Store
	log      zerolog.Logger
}

// NewService creates a categorizer.
func NewService(provider ai.Provider, store Store) *Service {
	return &Service{
		provider: provider,
		store:    store,
		log:      logger.WithComponent("categorize"),
	}
}

// Suggest asks the model for a type and validates the answer.
func (s *Service) Suggest(ctx context.Context, tx models.BankTransaction) (*Suggestion, error) {
	const op = "Suggest"

	txJSON, err := json.MarshalIndent(map[string]any{
		"datum":        tx.TransactionDate.Format("02.01.2006"),
		"betrag":       tx.Amount.StringFixed(2),
		"empfaenger":   tx.Correspondent,
		"beschreibung": tx.Description,
		"zahlungsart":  tx.Title,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%s: failed to marshal transaction JSON: %w", op, err)
	}

	s.log.Debug().Uint("transaction_id", tx.ID).Msg("Requesting type suggestion")

	var suggestion Suggestion
	if err := ai.CompleteJSON(ctx, s.provider, systemPrompt, buildPrompt(string(txJSON), tx.IsIncoming()), &suggestion); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	suggestion.Type = strings.TrimSpace(suggestion.Type)
	suggestion.Category = strings.TrimSpace(suggestion.Category)

	if err := validateSuggestion(&suggestion, tx.Amount); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &suggestion, nil
}

const systemPrompt = `Du bist ein Experte für deutsche Einnahmen-Überschuss-Rechnung und ordnest Banktransaktionen einer Steuerkategorie zu.

WICHTIGE REGELN:
- Verwende ausschließlich einen Typ aus der vorgegebenen Liste, exakt so geschrieben
- "Einkommen ..." nur für Zahlungseingänge, "Geschäftsausgabe ..." und "Bewirtung" nur für Ausgaben
- "Privat" für alles ohne betrieblichen Bezug

CRITICAL: Antworte AUSSCHLIESSLICH mit gültigem JSON. Kein Text vor oder nach dem JSON.`

func buildPrompt(txJSON string, incoming bool) string {
	var prompt strings.Builder

	prompt.WriteString("Ordne folgende Banktransaktion einem Typ zu.\n\n")
	prompt.WriteString("Transaktion (JSON):\n")
	prompt.WriteString(txJSON)
	prompt.WriteString("\n\n")

	if incoming {
		prompt.WriteString("Dies ist ein ZAHLUNGSEINGANG.\n")
	} else {
		prompt.WriteString("Dies ist eine AUSGABE.\n")
	}

	prompt.WriteString("\nErlaubte Typen:\n")
	for _, typ := range tax.Types() {
		if typ == tax.TypeUncategorized {
			continue
		}
		prompt.WriteString("- " + typ + "\n")
	}

	prompt.WriteString("\nGib folgende Informationen als JSON zurück:\n")
	prompt.WriteString("{\n")
	prompt.WriteString(`  "typ": "einer der erlaubten Typen",` + "\n")
	prompt.WriteString(`  "kategorie": "kurze Kategorie, z.B. Software & Cloud",` + "\n")
	prompt.WriteString(`  "geschaeftlich": true,` + "\n")
	prompt.WriteString(`  "begruendung": "Warum wurde dieser Typ gewählt"` + "\n")
	prompt.WriteString("}\n")

	return prompt.String()
}

func validateSuggestion(s *Suggestion, amount decimal.Decimal) error {
	if s.Type == "" || s.Type == tax.TypeUncategorized || !tax.IsKnown(s.Type) {
		return fmt.Errorf("%w: %q", ErrUnknownType, s.Type)
	}
	if !fitsDirection(s.Type, amount) {
		return fmt.Errorf("%w: %q for %s", ErrWrongDirection, s.Type, amount.StringFixed(2))
	}
	return nil
}

func fitsDirection(typ string, amount decimal.Decimal) bool {
	switch {
	case strings.HasPrefix(typ, "Einkommen"):
		return amount.IsPositive()
	case strings.HasPrefix(typ, "Geschäftsausgabe"), typ == tax.TypeEntertainment:
		return amount.IsNegative()
	default:
		return true
	}
}

// Apply sets the suggested type on tx and recomputes its net and VAT amounts.
func Apply(tx *models.BankTransaction, s Suggestion) error {
	breakdown, err := tax.ForType(tx.Amount, s.Type)
	if err != nil {
		return err
	}

	tx.Type = s.Type
	tx.NetAmount = decimal.NewNullDecimal(breakdown.Net)
	tx.VATRate = decimal.NewNullDecimal(breakdown.Rate)
	tx.VATAmount = decimal.NewNullDecimal(breakdown.VAT)
	tx.IsBusinessExpense = s.IsBusinessExpense && tx.Amount.IsNegative()
	if s.Category != "" && tx.Category == nil {
		category := s.Category
		tx.Category = &category
	}
	tx.AppendNote("Typ vorgeschlagen: " + s.Type)
	return nil
}

// CategorizeUncategorized suggests types for up to limit uncategorized
// transactions and saves the accepted ones. Rejected answers leave the
// transaction untouched.
func (s *Service) CategorizeUncategorized(ctx context.Context, limit int) (Summary, error) {
	const op = "CategorizeUncategorized"

	txs, err := s.store.UncategorizedTransactions(ctx, limit)
	if err != nil {
		return Summary{}, fmt.Errorf("%s: failed to load transactions: %w", op, err)
	}

	var summary Summary
	for i := range txs {
		if ctx.Err() != nil {
			break
		}
		tx := &txs[i]
		summary.Processed++

		suggestion, err := s.Suggest(ctx, *tx)
		switch {
		case errors.Is(err, ErrUnknownType), errors.Is(err, ErrWrongDirection), errors.Is(err, ai.ErrInvalidJSON):
			s.log.Warn().Err(err).Uint("transaction_id", tx.ID).Msg("Type suggestion rejected")
			summary.Rejected++
			continue
		case err != nil:
			s.log.Error().Err(err).Uint("transaction_id", tx.ID).Msg("Type suggestion failed")
			summary.Failed++
			continue
		}

		if err := Apply(tx, *suggestion); err != nil {
			s.log.Error().Err(err).Uint("transaction_id", tx.ID).Msg("Failed to apply type")
			summary.Failed++
			continue
		}
		if err := s.store.SaveTransaction(ctx, tx); err != nil {
			s.log.Error().Err(err).Uint("transaction_id", tx.ID).Msg("Failed to save categorized transaction")
			summary.Failed++
			continue
		}

		s.log.Info().
			Uint("transaction_id", tx.ID).
			Str("type", tx.Type).
			Str("reason", suggestion.Reason).
			Msg("Transaction categorized")
		summary.Categorized++
	}

	return summary, nil
}
