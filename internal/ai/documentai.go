package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"buchhaltung/internal/config"
	"buchhaltung/internal/logger"
	"buchhaltung/internal/ocr"
)

const documentAITimeout = 60 * time.Second

// entityFields maps invoice parser entity types to extracted field keys.
var entityFields = map[string]string{
	"invoice_id":       "number",
	"invoice_date":     "issue_date",
	"due_date":         "due_date",
	"receiver_name":    "customer_name",
	"receiver_email":   "customer_email",
	"receiver_tax_id":  "customer_tax_number",
	"net_amount":       "subtotal",
	"total_tax_amount": "vat_amount",
	"total_amount":     "total",
	"service_date":     "service_period_start",
	"ship_to_address":  "service_location",
}

var lineItemFields = map[string]string{
	"line_item/description": "description",
	"line_item/quantity":    "quantity",
	"line_item/unit_price":  "unit_price",
	"line_item/amount":      "total",
}

// DocumentAIExtractor implements FieldExtractor with a Document AI invoice
// parser processor.
type DocumentAIExtractor struct {
	client        *documentai.DocumentProcessorClient
	processorName string
	processorID   string
	log           zerolog.Logger
}

// NewDocumentAIExtractor connects to the regional Document AI endpoint.
func NewDocumentAIExtractor(ctx context.Context, cfg config.GoogleConfig) (*DocumentAIExtractor, error) {
	const op = "NewDocumentAIExtractor"

	if cfg.ProjectID == "" || cfg.ProcessorID == "" {
		return nil, WrapExtractionError(op, ErrInvalidConfiguration, "GOOGLE_CLOUD_PROJECT and DOCUMENT_AI_PROCESSOR_ID are required")
	}
	location := cfg.Location
	if location == "" {
		location = "us"
	}

	opts := cfg.ClientOptions()
	if location != "us" {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-documentai.googleapis.com:443", location)))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, WrapExtractionError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", location))
	}

	return &DocumentAIExtractor{
		client:        client,
		processorName: processorName(cfg.ProjectID, location, cfg.ProcessorID, cfg.ProcessorVersion),
		processorID:   cfg.ProcessorID,
		log:           logger.WithComponent("document-ai"),
	}, nil
}

func processorName(project, location, processor, version string) string {
	name := fmt.Sprintf("projects/%s/locations/%s/processors/%s", project, location, processor)
	if version != "" {
		name += "/processorVersions/" + version
	}
	return name
}

// ExtractFields implements FieldExtractor.
func (e *DocumentAIExtractor) ExtractFields(ctx context.Context, pdf []byte) (map[string]any, error) {
	const op = "ExtractFields"

	if err := ocr.CheckPDF(pdf); err != nil {
		return nil, WrapExtractionError(op, err, fmt.Sprintf("file size: %d bytes", len(pdf)))
	}

	processCtx, cancel := context.WithTimeout(ctx, documentAITimeout)
	defer cancel()

	resp, err := e.client.ProcessDocument(processCtx, &documentaipb.ProcessRequest{
		Name: e.processorName,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  pdf,
				MimeType: "application/pdf",
			},
		},
	})
	if err != nil {
		return nil, e.handleProcessingError(op, err)
	}
	if resp.Document == nil {
		return nil, WrapExtractionError(op, ErrProcessingFailed, "no document in response")
	}

	fields := entitiesToFields(resp.Document.Entities)
	if len(fields) == 0 {
		return nil, &ExtractionError{Op: op, Err: ErrNoFields, Backend: e.processorID}
	}

	e.log.Info().
		Int("entities", len(resp.Document.Entities)).
		Int("fields", len(fields)).
		Msg("Document AI extraction completed")
	return fields, nil
}

// handleProcessingError converts Document AI errors to extraction errors.
func (e *DocumentAIExtractor) handleProcessingError(op string, err error) error {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated:
		return WrapExtractionError(op, ErrInvalidCredentials, "insufficient permissions for Document AI")
	case codes.ResourceExhausted:
		return WrapExtractionError(op, ErrQuotaExceeded, "Document AI API quota exceeded")
	case codes.NotFound:
		return WrapExtractionError(op, ErrProcessorNotFound, fmt.Sprintf("processor not found: %s", e.processorID))
	case codes.InvalidArgument:
		return WrapExtractionError(op, ocr.ErrInvalidPDF, "document format not supported or corrupted")
	case codes.DeadlineExceeded:
		return WrapExtractionError(op, context.DeadlineExceeded, "processing timeout")
	case codes.Canceled:
		return WrapExtractionError(op, context.Canceled, "processing was canceled")
	default:
		return WrapExtractionError(op, ErrProcessingFailed, fmt.Sprintf("Document AI error: %v", err))
	}
}

// entitiesToFields flattens parser entities. The first entity of a type wins;
// line items become a list under "items".
func entitiesToFields(entities []*documentaipb.Document_Entity) map[string]any {
	fields := map[string]any{}
	var items []any

	for _, entity := range entities {
		if entity.Type == "line_item" {
			item := map[string]any{}
			for _, prop := range entity.Properties {
				if key, ok := lineItemFields[prop.Type]; ok {
					if v := entityValue(prop); v != "" {
						item[key] = v
					}
				}
			}
			if _, ok := item["description"]; ok {
				items = append(items, item)
			}
			continue
		}

		key, ok := entityFields[entity.Type]
		if !ok {
			continue
		}
		if _, seen := fields[key]; seen {
			continue
		}
		if v := entityValue(entity); v != "" {
			fields[key] = v
		}
	}

	if len(fields) > 0 || len(items) > 0 {
		fields["type"] = "invoice"
	}
	if len(items) > 0 {
		fields["items"] = items
	}
	return fields
}

// entityValue prefers the normalized date or money value over the mention
// text, which is returned as printed for the German parsers.
func entityValue(entity *documentaipb.Document_Entity) string {
	if nv := entity.NormalizedValue; nv != nil {
		if d := nv.GetDateValue(); d != nil && d.Year > 0 {
			return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
		}
		if m := nv.GetMoneyValue(); m != nil {
			return decimal.New(m.Units, 0).Add(decimal.New(int64(m.Nanos), -9)).StringFixed(2)
		}
	}
	return strings.TrimSpace(entity.MentionText)
}

// Close closes the underlying Document AI client.
func (e *DocumentAIExtractor) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
