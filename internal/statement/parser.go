package statement

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"buchhaltung/internal/logger"
)

// ParsedTransaction is one transaction read from a statement, before import.
type ParsedTransaction struct {
	Date          time.Time       `json:"date_iso"`
	RawDate       string          `json:"date"`
	Correspondent string          `json:"correspondent"`
	Title         string          `json:"title"`
	Type          string          `json:"type"`
	Description   string          `json:"description,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	RawData       string          `json:"raw_data"`

	// RawType is a type line the statement printed that has no VAT mapping.
	RawType string `json:"raw_type,omitempty"`
}

// TextExtractor pulls plain text out of a PDF.
type TextExtractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// bankFormat is one statement layout. Detect must be cheap; Parse never fails,
// it skips what it cannot read.
type bankFormat interface {
	Name() string
	Detect(text string) bool
	Parse(lines []string) []ParsedTransaction
}

// Parser turns statement text into transactions.
type Parser struct {
	formats  []bankFormat
	fallback bankFormat
	pdf      TextExtractor
	log      zerolog.Logger
}

// NewParser creates a statement parser. pdf may be nil when only text input is used.
func NewParser(pdf TextExtractor) *Parser {
	log := logger.WithComponent("statement-parser")
	return &Parser{
		formats:  []bankFormat{&kontistFormat{log: log}},
		fallback: &genericFormat{},
		pdf:      pdf,
		log:      log,
	}
}

// Parse detects the issuing bank and walks the text with the matching layout,
// falling back to a generic date and amount scan.
func (p *Parser) Parse(text string) []ParsedTransaction {
	lines := splitLines(text)
	if len(lines) == 0 {
		p.log.Error().Msg("Statement text is empty")
		return nil
	}

	format := p.fallback
	for _, f := range p.formats {
		if f.Detect(text) {
			format = f
			break
		}
	}

	transactions := format.Parse(lines)
	p.log.Info().
		Str("format", format.Name()).
		Int("lines", len(lines)).
		Int("transactions", len(transactions)).
		Msg("Statement parsed")
	return transactions
}

// ParseFile reads a .txt or .pdf statement. Missing files, unreadable PDFs and
// empty text give an empty result and an error log entry.
func (p *Parser) ParseFile(ctx context.Context, path string) []ParsedTransaction {
	text, err := p.readFile(ctx, path)
	if err != nil {
		p.log.Error().Err(err).Str("file", path).Msg("Failed to read statement")
		return nil
	}
	return p.Parse(text)
}

func (p *Parser) readFile(ctx context.Context, path string) (string, error) {
	const op = "readFile"

	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		if p.pdf == nil {
			return "", fmt.Errorf("%s: no PDF text extractor configured", op)
		}
		text, err := p.pdf.ExtractText(ctx, path)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		return text, nil
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		return string(data), nil
	}
}

func splitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func normalizeCurrency(code string) string {
	switch code {
	case "", "€", "EUR":
		return "EUR"
	default:
		return code
	}
}
