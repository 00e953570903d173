// Package pdftext reads the text of statement and invoice PDFs. The embedded
// text layer is used when it carries enough content; scans fall back to OCR.
package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"

	"buchhaltung/internal/logger"
	"buchhaltung/internal/ocr"
)

// minTextChars is the number of non-space characters below which a text layer
// is treated as missing.
const minTextChars = 20

// ErrNoText is returned when neither the text layer nor OCR produced text.
var ErrNoText = errors.New("no text could be extracted from the document")

// Extractor implements text extraction for the statement and document parsers.
type Extractor struct {
	ocr ocr.Recognizer
	log zerolog.Logger
}

// New creates an extractor. rec may be nil, then scanned PDFs yield ErrNoText.
func New(rec ocr.Recognizer) *Extractor {
	return &Extractor{
		ocr: rec,
		log: logger.WithComponent("pdftext"),
	}
}

// ExtractText reads a file. Text files are returned as they are.
func (e *Extractor) ExtractText(ctx context.Context, path string) (string, error) {
	const op = "ExtractText"

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".txt") {
		return string(data), nil
	}

	text, err := e.FromBytes(ctx, data)
	if err != nil {
		return "", fmt.Errorf("%s: %s: %w", op, filepath.Base(path), err)
	}
	return text, nil
}

// FromBytes extracts the text of an in-memory PDF.
func (e *Extractor) FromBytes(ctx context.Context, data []byte) (string, error) {
	const op = "FromBytes"

	if err := ocr.CheckPDF(data); err != nil {
		return "", err
	}

	text, err := textLayer(data)
	if err != nil {
		e.log.Warn().Err(err).Msg("Failed to read PDF text layer")
	}
	if hasEnoughText(text) {
		e.log.Debug().Int("chars", len(text)).Msg("Using PDF text layer")
		return text, nil
	}

	if e.ocr == nil {
		return "", ErrNoText
	}

	e.log.Info().Msg("PDF has no usable text layer, running OCR")
	res, err := e.ocr.Recognize(ctx, data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if !hasEnoughText(res.Text) {
		return "", ErrNoText
	}
	return res.Text, nil
}

// textLayer rebuilds lines from the text rows of each page. The pdf library
// panics on some malformed files.
func textLayer(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader crashed: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		var lines []string
		for _, row := range rows {
			parts := make([]string, 0, len(row.Content))
			for _, word := range row.Content {
				parts = append(parts, word.S)
			}
			if line := strings.TrimSpace(strings.Join(parts, " ")); line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return strings.Join(pages, "\n\n"), nil
}

func hasEnoughText(text string) bool {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
			if n >= minTextChars {
				return true
			}
		}
	}
	return false
}
