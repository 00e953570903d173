package ocr

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rs/zerolog"

	"buchhaltung/internal/config"
	"buchhaltung/internal/logger"
)

// MaxFileSizeBytes is the maximum file size for synchronous processing (20MB)
const MaxFileSizeBytes = 20 * 1024 * 1024

// GoogleVision implements Recognizer with the Vision document text detection.
type GoogleVision struct {
	client *vision.ImageAnnotatorClient
	log    zerolog.Logger
}

// NewGoogleVision creates a Vision client with the configured credentials.
func NewGoogleVision(ctx context.Context, cfg config.GoogleConfig) (*GoogleVision, error) {
	const op = "NewGoogleVision"

	client, err := vision.NewImageAnnotatorClient(ctx, cfg.ClientOptions()...)
	if err != nil {
		if !cfg.HasCredentials() {
			return nil, WrapOCRError(op, ErrMissingCredentials, err.Error())
		}
		return nil, WrapOCRError(op, err, "failed to create Vision client")
	}

	return &GoogleVision{
		client: client,
		log:    logger.WithComponent("ocr"),
	}, nil
}

// Recognize sends the PDF inline and joins the page texts.
func (g *GoogleVision) Recognize(ctx context.Context, pdf []byte) (*Result, error) {
	const op = "Recognize"
	start := time.Now()

	if err := CheckPDF(pdf); err != nil {
		return nil, err
	}

	resp, err := g.client.BatchAnnotateFiles(ctx, &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{{
			InputConfig: &visionpb.InputConfig{
				Content:  pdf,
				MimeType: "application/pdf",
			},
			Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
		}},
	})
	if err != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return nil, WrapOCRError(op, ErrOCRFailed, "no response from Vision API")
	}

	fileResp := resp.Responses[0]
	if fileResp.Error != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API error: %s", fileResp.Error.Message))
	}

	result, err := collectPages(fileResp.Responses)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to process Vision API response")
	}
	result.Duration = time.Since(start)

	g.log.Info().
		Int("pages", result.PageCount).
		Int("chars", len(result.Text)).
		Float32("confidence", result.Confidence).
		Dur("duration", result.Duration).
		Msg("OCR completed")

	return result, nil
}

// collectPages joins page texts with a blank line and averages the page
// confidences.
func collectPages(pages []*visionpb.AnnotateImageResponse) (*Result, error) {
	var text strings.Builder
	var confidenceSum float32
	var confidenceCount int
	languages := make(map[string]bool)

	for i, page := range pages {
		if page.Error != nil {
			return nil, fmt.Errorf("error processing page %d: %s", i+1, page.Error.Message)
		}
		annotation := page.FullTextAnnotation
		if annotation == nil {
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n\n")
		}
		text.WriteString(annotation.Text)

		for _, p := range annotation.Pages {
			if p.Confidence > 0 {
				confidenceSum += p.Confidence
				confidenceCount++
			}
			if p.Property == nil {
				continue
			}
			for _, lang := range p.Property.DetectedLanguages {
				if lang.LanguageCode != "" {
					languages[lang.LanguageCode] = true
				}
			}
		}
	}

	if strings.TrimSpace(text.String()) == "" {
		return nil, ErrEmptyDocument
	}

	result := &Result{
		Text:      text.String(),
		PageCount: len(pages),
	}
	if confidenceCount > 0 {
		result.Confidence = confidenceSum / float32(confidenceCount)
	}
	for lang := range languages {
		result.LanguageCodes = append(result.LanguageCodes, lang)
	}
	sort.Strings(result.LanguageCodes)
	return result, nil
}

// Close closes the underlying Vision client.
func (g *GoogleVision) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
