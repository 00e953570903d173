package document

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"buchhaltung/internal/logger"
	"buchhaltung/pkg/models"
)

// Number prefixes, followed by the year and a four-digit sequence.
const (
	InvoicePrefix = "RE"
	QuotePrefix   = "AN"
)

const (
	invoiceDueDays   = 14
	quoteValidDays   = 30
	maxSequenceValue = 9999
)

// BillingStore persists invoices and quotes.
type BillingStore interface {
	// LatestInvoiceNumber returns the highest invoice number starting with
	// prefix, or "" when there is none.
	LatestInvoiceNumber(ctx context.Context, prefix string) (string, error)
	LatestQuoteNumber(ctx context.Context, prefix string) (string, error)
	CreateInvoice(ctx context.Context, inv *models.Invoice) error
	CreateQuote(ctx context.Context, q *models.Quote) error
}

// Service parses documents, resolves customers and imports invoices and quotes.
type Service struct {
	parser    *Parser
	amounts   *AmountCheck
	customers CustomerStore
	billing   BillingStore
	log       zerolog.Logger
	now       func() time.Time
}

// NewService creates a document service.
func NewService(customers CustomerStore, billing BillingStore) *Service {
	return &Service{
		parser:    NewParser(),
		amounts:   NewAmountCheck(),
		customers: customers,
		billing:   billing,
		log:       logger.WithComponent("document"),
		now:       time.Now,
	}
}

// Parse parses text, cross-checks the amounts and resolves the customer.
func (s *Service) Parse(ctx context.Context, text string) ParsedDocument {
	doc := s.parser.Parse(text)
	s.amounts.CheckAmounts(&doc)
	s.ResolveCustomer(ctx, &doc)
	return doc
}

// ParseFields is Parse for the key/value map of an AI extractor.
func (s *Service) ParseFields(ctx context.Context, fields map[string]any) ParsedDocument {
	doc := FromExtractedFields(fields)
	s.amounts.CheckAmounts(&doc)
	s.ResolveCustomer(ctx, &doc)
	return doc
}

// ImportDocument stores a parsed document as an invoice or quote. It never
// returns an error; failures are reported in ImportResult.Error.
func (s *Service) ImportDocument(ctx context.Context, doc ParsedDocument, kind Kind) ImportResult {
	res, err := s.importDocument(ctx, doc, kind)
	if err != nil {
		s.log.Error().Err(err).Str("kind", string(kind)).Str("number", doc.Number).Msg("Document import failed")
		return ImportResult{Error: err.Error()}
	}
	s.log.Info().
		Str("kind", string(kind)).
		Uint("id", res.ID).
		Str("number", res.Number).
		Str("customer", res.Customer).
		Msg("Document imported")
	return res
}

func (s *Service) importDocument(ctx context.Context, doc ParsedDocument, kind Kind) (ImportResult, error) {
	if kind != KindInvoice && kind != KindQuote {
		return ImportResult{}, WrapImportError("importDocument", fmt.Errorf("%w: %q", ErrUnsupportedKind, kind), "")
	}

	customer, err := s.customerFor(ctx, doc)
	if err != nil {
		return ImportResult{}, WrapImportError("resolveCustomer", err, doc.Number)
	}

	s.amounts.CheckAmounts(&doc)

	issue := s.now()
	if doc.IssueDate != nil {
		issue = *doc.IssueDate
	}

	billing := models.Billing{
		CustomerID:          customer.ID,
		Type:                models.InvoiceTypeGeneral,
		ServicePeriodStart:  doc.ServicePeriodStart,
		ServicePeriodEnd:    doc.ServicePeriodEnd,
		IssueDate:           issue,
		Items:               doc.Items,
		VATRate:             doc.VATRate,
		PaperlessDocumentID: doc.PaperlessDocumentID,
	}
	if doc.IsProject() {
		billing.Type = models.InvoiceTypeProject
	}
	if doc.ProjectName != "" {
		billing.ProjectName = &doc.ProjectName
	}
	if doc.ServiceLocation != "" {
		billing.ServiceLocation = &doc.ServiceLocation
	}
	if doc.Notes != "" {
		billing.Notes = &doc.Notes
	}
	if doc.Subtotal != nil {
		billing.Subtotal = *doc.Subtotal
	}
	if doc.VATAmount != nil {
		billing.VATAmount = *doc.VATAmount
	}
	if doc.Total != nil {
		billing.Total = *doc.Total
	}

	result := ImportResult{Success: true, Customer: customer.Name}

	switch kind {
	case KindInvoice:
		number, err := s.numberFor(ctx, doc.Number, InvoicePrefix, issue, s.billing.LatestInvoiceNumber)
		if err != nil {
			return ImportResult{}, WrapImportError("nextNumber", err, "")
		}
		due := issue.AddDate(0, 0, invoiceDueDays)
		if doc.DueDate != nil {
			due = *doc.DueDate
		}
		inv := &models.Invoice{InvoiceNumber: number, DueDate: due, Billing: billing}
		if err := s.billing.CreateInvoice(ctx, inv); err != nil {
			return ImportResult{}, WrapImportError("createInvoice", err, number)
		}
		result.ID, result.Number = inv.ID, number

	case KindQuote:
		number, err := s.numberFor(ctx, doc.Number, QuotePrefix, issue, s.billing.LatestQuoteNumber)
		if err != nil {
			return ImportResult{}, WrapImportError("nextNumber", err, "")
		}
		valid := issue.AddDate(0, 0, quoteValidDays)
		if doc.ValidUntil != nil {
			valid = *doc.ValidUntil
		}
		q := &models.Quote{QuoteNumber: number, ValidUntil: valid, Billing: billing}
		if err := s.billing.CreateQuote(ctx, q); err != nil {
			return ImportResult{}, WrapImportError("createQuote", err, number)
		}
		result.ID, result.Number = q.ID, number
	}

	return result, nil
}

// customerFor reuses a resolved or matching customer, or creates one from the
// non-empty extracted fields.
func (s *Service) customerFor(ctx context.Context, doc ParsedDocument) (*models.Customer, error) {
	if doc.CustomerID != nil {
		c, err := s.customers.CustomerByID(ctx, *doc.CustomerID)
		if err != nil {
			return nil, err
		}
		if c != nil {
			return c, nil
		}
	}

	found, err := s.FindExistingCustomer(ctx, doc.Customer)
	if err != nil {
		return nil, err
	}
	if found != nil {
		return found, nil
	}

	if strings.TrimSpace(doc.Customer.Name) == "" {
		return nil, ErrMissingCustomer
	}
	c := &models.Customer{
		Name:      strings.TrimSpace(doc.Customer.Name),
		Email:     doc.Customer.Email,
		Street:    doc.Customer.Street,
		Zip:       doc.Customer.Zip,
		City:      doc.Customer.City,
		TaxNumber: doc.Customer.TaxNumber,
	}
	if err := s.customers.CreateCustomer(ctx, c); err != nil {
		return nil, err
	}
	s.log.Info().Uint("customer_id", c.ID).Str("name", c.Name).Msg("Customer created")
	return c, nil
}

// numberFor keeps an extracted number or continues the yearly sequence,
// e.g. RE-2025-0007 after RE-2025-0006.
func (s *Service) numberFor(ctx context.Context, extracted, prefix string, issue time.Time, latest func(context.Context, string) (string, error)) (string, error) {
	if extracted != "" {
		return extracted, nil
	}

	yearPrefix := fmt.Sprintf("%s-%d-", prefix, issue.Year())
	last, err := latest(ctx, yearPrefix)
	if err != nil {
		return "", err
	}

	next := 1
	if last != "" {
		seq, err := strconv.Atoi(strings.TrimPrefix(last, yearPrefix))
		if err != nil {
			return "", fmt.Errorf("%w: unexpected number %q", ErrNumberExhausted, last)
		}
		next = seq + 1
	}
	if next > maxSequenceValue {
		return "", fmt.Errorf("%w: %s reached %d", ErrNumberExhausted, yearPrefix, maxSequenceValue)
	}
	return fmt.Sprintf("%s%04d", yearPrefix, next), nil
}
