// Package ocr recognizes text in scanned PDFs with Google Cloud Vision.
//
// Vision limits synchronous file annotation to 20MB and the first five
// pages. Statements and invoices of a freelancer practice fit easily; longer
// documents are read up to page five.
package ocr

import (
	"context"
	"time"
)

// Recognizer turns a scanned PDF into plain text.
type Recognizer interface {
	// Recognize returns the text of all pages in reading order.
	Recognize(ctx context.Context, pdf []byte) (*Result, error)
}

// Result is the outcome of one OCR run.
type Result struct {
	Text          string        `json:"text"`
	PageCount     int           `json:"page_count"`
	Confidence    float32       `json:"confidence"`
	LanguageCodes []string      `json:"language_codes,omitempty"`
	Duration      time.Duration `json:"duration"`
}

// CheckPDF validates size and header before a document is sent anywhere.
func CheckPDF(data []byte) error {
	const op = "CheckPDF"

	if len(data) > MaxFileSizeBytes {
		return WrapOCRError(op, ErrPDFTooLarge, "")
	}
	if len(data) < 4 || string(data[:4]) != "%PDF" {
		return WrapOCRError(op, ErrInvalidPDF, "missing PDF header")
	}
	return nil
}
