package reconciliation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"buchhaltung/internal/ai"
	"buchhaltung/internal/logger"
	"buchhaltung/internal/matching"
	"buchhaltung/pkg/models"
)

// Recommendation is the model's opinion on which candidate fits. It never
// changes candidate scores.
type Recommendation struct {
	Matched        bool    `json:"matched"`
	CandidateIndex int     `json:"candidate_index"`
	Confidence     float64 `json:"confidence"`
	Reason         string  `json:"reason"`
}

// Ranker asks a language model to pick the best candidate.
type Ranker struct {
	provider ai.Provider
	log      zerolog.Logger
}

// NewRanker creates a ranker on top of a configured provider.
func NewRanker(provider ai.Provider) *Ranker {
	return &Ranker{
		provider: provider,
		log:      logger.WithComponent("reconciliation-ai"),
	}
}

const rankingPrompt = `Prüfe ob einer dieser Kandidaten zur Banktransaktion passt:

TRANSAKTION:
%s

KANDIDATEN (Index beginnt bei 0):
%s

Analysiere folgende Kriterien:
1. Stimmt der Betrag überein (mit kleiner Toleranz für Rundungsfehler)?
2. Passt das Datum zusammen (Rechnung vor oder am Tag der Zahlung)?
3. Stimmt der Zahlende mit dem Kunden oder Korrespondenten überein?
4. Gibt der Verwendungszweck Hinweise auf die Rechnungsnummer?

Antworte nur mit JSON im folgenden Format:
{
  "matched": true/false,
  "candidate_index": 0,
  "confidence": 0.95,
  "reason": "Betrag und Kunde stimmen überein"
}

Wenn kein Kandidat passt, setze "matched": false und "candidate_index": -1.`

// Recommend returns a recommendation for the candidates. An answer that is not
// valid JSON or points outside the list counts as "no match".
func (r *Ranker) Recommend(ctx context.Context, tx models.BankTransaction, candidates []matching.Candidate) (*Recommendation, error) {
	const op = "Recommend"

	if len(candidates) == 0 {
		return &Recommendation{CandidateIndex: -1}, nil
	}

	txJSON, err := json.MarshalIndent(map[string]any{
		"datum":           tx.TransactionDate.Format("02.01.2006"),
		"betrag":          tx.Amount.StringFixed(2),
		"absender":        tx.Correspondent,
		"beschreibung":    tx.Description,
		"verwendung":      tx.Title,
		"transaktionstyp": tx.Type,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%s: failed to marshal transaction JSON: %w", op, err)
	}
	candidatesJSON, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%s: failed to marshal candidates JSON: %w", op, err)
	}

	var rec Recommendation
	prompt := fmt.Sprintf(rankingPrompt, txJSON, candidatesJSON)
	if err := ai.CompleteJSON(ctx, r.provider, "Du bist Buchhalter und ordnest Zahlungseingänge Rechnungen zu.", prompt, &rec); err != nil {
		if errors.Is(err, ai.ErrInvalidJSON) {
			r.log.Warn().Err(err).Uint("transaction_id", tx.ID).Msg("Failed to parse ranking response as JSON")
			return &Recommendation{CandidateIndex: -1}, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if rec.Matched && (rec.CandidateIndex < 0 || rec.CandidateIndex >= len(candidates)) {
		r.log.Warn().Int("candidate_index", rec.CandidateIndex).Int("candidates", len(candidates)).Msg("Recommendation points outside the candidate list")
		rec.Matched = false
	}
	if !rec.Matched {
		rec.CandidateIndex = -1
	}

	r.log.Debug().
		Uint("transaction_id", tx.ID).
		Bool("matched", rec.Matched).
		Int("candidate_index", rec.CandidateIndex).
		Float64("confidence", rec.Confidence).
		Str("reason", rec.Reason).
		Msg("Received ranking recommendation")
	return &rec, nil
}
