package document

import (
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"buchhaltung/internal/logger"
	"buchhaltung/internal/numfmt"
)

// Parser extracts invoice and quote fields from plain text.
type Parser struct {
	log zerolog.Logger
}

// NewParser creates a document parser.
func NewParser() *Parser {
	return &Parser{log: logger.WithComponent("document-parser")}
}

// Classify looks for invoice keywords first, then quote keywords.
func Classify(text string) Kind {
	lower := strings.ToLower(text)
	for _, kw := range invoiceKeywords {
		if strings.Contains(lower, kw) {
			return KindInvoice
		}
	}
	for _, kw := range quoteKeywords {
		if strings.Contains(lower, kw) {
			return KindQuote
		}
	}
	return KindUnknown
}

// Parse classifies the text and extracts every field it can find. Fields
// without a match stay empty.
func (p *Parser) Parse(text string) ParsedDocument {
	lines := normalizeLines(text)
	body := strings.Join(lines, "\n")

	doc := ParsedDocument{
		Type:    Classify(body),
		VATRate: DefaultVATRate,
	}
	if body == "" {
		p.log.Error().Err(ErrEmptyText).Msg("Nothing to parse")
		return doc
	}

	switch doc.Type {
	case KindQuote:
		doc.Number = firstString(body, quoteNumberMatchers)
		doc.ValidUntil = firstDate(body, validUntilMatchers)
	default:
		doc.Number = firstString(body, invoiceNumberMatchers)
		doc.DueDate = firstDate(body, dueDateMatchers)
	}
	doc.IssueDate = firstDate(body, issueDateMatchers)

	doc.Customer = ParsedCustomer{
		Name:      firstString(body, customerNameMatchers),
		Email:     strings.ToLower(firstString(body, customerEmailMatchers)),
		Street:    firstString(body, streetMatchers),
		TaxNumber: strings.ReplaceAll(firstString(body, taxNumberMatchers), " ", ""),
	}
	if g := firstOf(body, zipCityMatchers); len(g) == 2 {
		doc.Customer.Zip = strings.TrimSpace(g[0])
		doc.Customer.City = strings.TrimSpace(g[1])
	}

	p.extractProject(body, &doc)

	doc.Items = extractLineItems(lines)
	doc.Subtotal = firstAmount(body, subtotalMatchers)
	doc.VATAmount = firstAmount(body, vatAmountMatchers)
	doc.Total = firstAmount(body, totalMatchers)
	if rate := firstAmount(body, vatRateMatchers); rate != nil {
		doc.VATRate = *rate
	}

	p.log.Debug().
		Str("type", string(doc.Type)).
		Str("number", doc.Number).
		Str("customer", doc.Customer.Name).
		Int("items", len(doc.Items)).
		Msg("Document parsed")

	return doc
}

func (p *Parser) extractProject(body string, doc *ParsedDocument) {
	if info, ok := parseCompactProject(body); ok {
		doc.ProjectName = info.name
		doc.ServicePeriodStart = info.start
		doc.ServicePeriodEnd = info.end
		doc.ServiceLocation = info.location
		return
	}

	doc.ProjectName = firstString(body, projectNameMatchers)
	doc.ServiceLocation = firstString(body, serviceLocationMatchers)
	if period := firstString(body, servicePeriodMatchers); period != "" {
		if start, end, ok := parseDateRange(period); ok {
			doc.ServicePeriodStart, doc.ServicePeriodEnd = &start, &end
		}
	}
}

func normalizeLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func firstDate(text string, ms []matcher) *time.Time {
	s := firstString(text, ms)
	if s == "" {
		return nil
	}
	d, err := numfmt.ParseDate(s)
	if err != nil {
		return nil
	}
	return &d
}

func firstAmount(text string, ms []matcher) *decimal.Decimal {
	s := firstString(text, ms)
	if s == "" {
		return nil
	}
	d, err := numfmt.ParseAmount(s)
	if err != nil {
		return nil
	}
	return &d
}
