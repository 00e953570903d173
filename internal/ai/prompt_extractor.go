package ai

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"buchhaltung/internal/config"
	"buchhaltung/internal/logger"
)

// FieldExtractor returns the fields of an invoice or quote PDF as a flat
// key/value map. Keys follow the document package's names (invoice_number,
// customer_name, subtotal, vat_amount, total, items ...).
type FieldExtractor interface {
	ExtractFields(ctx context.Context, pdf []byte) (map[string]any, error)
}

// TextSource reads the text of a PDF.
type TextSource interface {
	FromBytes(ctx context.Context, data []byte) (string, error)
}

// maxPromptText keeps long documents within the model context.
const maxPromptText = 12000

const extractionSystemPrompt = `Du liest Rechnungen und Angebote eines deutschen Freiberuflers und gibst die Felder als JSON zurück.

Antworte NUR mit einem JSON-Objekt ohne Kommentare. Verwende null für fehlende Werte.
- Datumsangaben im Format YYYY-MM-DD
- Beträge als Zahl mit Punkt als Dezimaltrenner (z.B. 2332.40)
- "type" ist "invoice" für Rechnungen und "quote" für Angebote`

const extractionPrompt = `Extrahiere diese Felder:
{
  "type": "invoice oder quote",
  "number": "Rechnungs- oder Angebotsnummer",
  "issue_date": "YYYY-MM-DD",
  "due_date": "YYYY-MM-DD",
  "valid_until": "YYYY-MM-DD",
  "customer_name": "Name des Kunden (Rechnungsempfänger)",
  "customer_email": "E-Mail des Kunden",
  "customer_street": "Straße und Hausnummer",
  "customer_zip": "PLZ",
  "customer_city": "Ort",
  "customer_tax_number": "USt-IdNr. oder Steuernummer",
  "project_name": "Projekt",
  "service_period_start": "YYYY-MM-DD",
  "service_period_end": "YYYY-MM-DD",
  "service_location": "Leistungsort",
  "subtotal": 0.0,
  "vat_rate": 19,
  "vat_amount": 0.0,
  "total": 0.0,
  "items": [{"description": "", "quantity": 1, "unit_price": 0.0, "total": 0.0}]
}

Dokumenttext:
%s`

// PromptExtractor reads the PDF text and lets the language model fill a
// fixed field template.
type PromptExtractor struct {
	provider Provider
	text     TextSource
	log      zerolog.Logger
}

// NewPromptExtractor creates an extractor on top of a provider.
func NewPromptExtractor(provider Provider, text TextSource) *PromptExtractor {
	return &PromptExtractor{
		provider: provider,
		text:     text,
		log:      logger.WithComponent("prompt-extractor"),
	}
}

// ExtractFields implements FieldExtractor.
func (e *PromptExtractor) ExtractFields(ctx context.Context, pdf []byte) (map[string]any, error) {
	const op = "ExtractFields"

	text, err := e.text.FromBytes(ctx, pdf)
	if err != nil {
		return nil, WrapExtractionError(op, err, "failed to read document text")
	}
	if runes := []rune(text); len(runes) > maxPromptText {
		text = string(runes[:maxPromptText])
	}

	var raw map[string]any
	if err := CompleteJSON(ctx, e.provider, extractionSystemPrompt, fmt.Sprintf(extractionPrompt, text), &raw); err != nil {
		return nil, &ExtractionError{Op: op, Err: err, Backend: e.provider.Name()}
	}

	fields := dropEmpty(raw)
	if len(fields) == 0 {
		return nil, &ExtractionError{Op: op, Err: ErrNoFields, Backend: e.provider.Name()}
	}

	e.log.Info().Int("fields", len(fields)).Str("provider", e.provider.Name()).Msg("Fields extracted")
	return fields, nil
}

// dropEmpty removes null and blank values so callers can test for presence.
func dropEmpty(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			if val == "" {
				continue
			}
		case []any:
			if len(val) == 0 {
				continue
			}
		}
		out[k] = v
	}
	return out
}

// NewFieldExtractor builds the extractor named by cfg.AI.Extractor. The prompt
// extractor needs a provider; pass nil when none is configured.
func NewFieldExtractor(ctx context.Context, cfg *config.Config, provider Provider, text TextSource) (FieldExtractor, error) {
	switch cfg.AI.Extractor {
	case "documentai":
		return NewDocumentAIExtractor(ctx, cfg.Google)
	default:
		if provider == nil {
			return nil, ErrDisabled
		}
		return NewPromptExtractor(provider, text), nil
	}
}
