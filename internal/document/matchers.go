package document

import (
	"regexp"
	"strings"
)

// matcher returns the capture groups of its first match, or nil.
type matcher func(text string) []string

func rx(pattern string) matcher {
	re := regexp.MustCompile(pattern)
	return func(text string) []string {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return nil
		}
		return m[1:]
	}
}

// group narrows a multi-group matcher to one capture group.
func group(m matcher, i int) matcher {
	return func(text string) []string {
		g := m(text)
		if g == nil || i >= len(g) || strings.TrimSpace(g[i]) == "" {
			return nil
		}
		return g[i : i+1]
	}
}

// firstOf tries the matchers in order; the first one that matches wins.
func firstOf(text string, ms []matcher) []string {
	for _, m := range ms {
		if g := m(text); g != nil {
			return g
		}
	}
	return nil
}

func firstString(text string, ms []matcher) string {
	g := firstOf(text, ms)
	if len(g) == 0 {
		return ""
	}
	return strings.TrimSpace(g[0])
}

const (
	datePattern   = `(\d{1,2}\.\d{1,2}\.\d{2,4})`
	amountPattern = `(-?(?:\d{1,3}(?:\.\d{3})+|\d+),\d{2})`
	currencyOpt   = `(?:EUR|€)?\s*`
	numberToken   = `([A-Z0-9][A-Z0-9\-/]*\d[A-Z0-9\-/]*)`
)

var (
	invoiceKeywords = []string{"rechnungsnummer", "rechnungsdatum", "rechnung", "invoice"}
	quoteKeywords   = []string{"angebotsnummer", "angebot", "kostenvoranschlag", "quote", "offer"}
)

// Matcher lists are ordered from the most to the least specific label.
var (
	invoiceNumberMatchers = []matcher{
		rx(`(?i)Rechnungs?\s*-?\s*(?:nummer|nr\.?)\s*[:#]?\s*` + numberToken),
		rx(`(?i)Invoice\s*(?:No\.?|Number|#)\s*[:#]?\s*` + numberToken),
		rx(`(?i)\bNr\.?\s*[:#]?\s*` + numberToken),
	}

	quoteNumberMatchers = []matcher{
		rx(`(?i)Angebots?\s*-?\s*(?:nummer|nr\.?)\s*[:#]?\s*` + numberToken),
		rx(`(?i)(?:Quote|Offer)\s*(?:No\.?|Number|#)\s*[:#]?\s*` + numberToken),
		rx(`(?i)\bNr\.?\s*[:#]?\s*` + numberToken),
	}

	issueDateMatchers = []matcher{
		rx(`(?i)Rechnungsdatum\s*:?\s*` + datePattern),
		rx(`(?i)Angebotsdatum\s*:?\s*` + datePattern),
		rx(`(?i)\bDatum\s*:?\s*` + datePattern),
		rx(`(?i)\bDate\s*:?\s*` + datePattern),
		rx(`\b(\d{1,2}\.\d{1,2}\.\d{4})\b`),
	}

	dueDateMatchers = []matcher{
		rx(`(?i)Fälligkeitsdatum\s*:?\s*` + datePattern),
		rx(`(?i)(?:Fällig|Zahlbar)\s*(?:am|bis(?:\s+zum)?)?\s*:?\s*` + datePattern),
		rx(`(?i)Due\s*(?:Date)?\s*:?\s*` + datePattern),
	}

	validUntilMatchers = []matcher{
		rx(`(?i)Gültig\s*bis(?:\s+zum)?\s*:?\s*` + datePattern),
		rx(`(?i)Bindefrist\s*:?\s*` + datePattern),
		rx(`(?i)Valid\s*until\s*:?\s*` + datePattern),
	}

	// name, street, zip, city of a postal address block
	addressBlock = rx(`(?m)^([A-Za-zÄÖÜäöü][^\n\d·|]{1,60})\n([^\n·|]*[A-Za-zäöüß.]\s+\d+\s*[a-zA-Z]?)\n(\d{5})\s+([^\n\d]+)$`)

	customerNameMatchers = []matcher{
		rx(`(?im)^(?:Kunde|Kundin|Auftraggeber(?:in)?|Rechnungsempfänger(?:in)?|Empfänger(?:in)?)\s*:\s*(.+)$`),
		rx(`(?im)^(?:An|To|Bill\s*to)\s*:\s*(.+)$`),
		group(addressBlock, 0),
	}

	customerEmailMatchers = []matcher{
		rx(`(?im)^(?:Kunden-?\s*E-?Mail|E-?Mail\s+Kunde)\s*:\s*([\w.+-]+@[\w-]+(?:\.[\w-]+)+)`),
		rx(`(?im)^E-?Mail\s*:\s*([\w.+-]+@[\w-]+(?:\.[\w-]+)+)\s*$`),
	}

	streetMatchers = []matcher{
		rx(`(?im)^(?:Straße|Strasse|Anschrift)\s*:\s*(.+)$`),
		group(addressBlock, 1),
		rx(`(?im)^([A-Za-zÄÖÜäöüß .-]+(?:straße|strasse|str\.|weg|allee|platz|gasse|ring|damm)\s*\d+\s*[a-z]?)\s*$`),
	}

	zipCityMatchers = []matcher{
		func(text string) []string {
			g := addressBlock(text)
			if g == nil {
				return nil
			}
			return g[2:4]
		},
		rx(`(?m)^(\d{5})\s+([A-Za-zÄÖÜäöüß][A-Za-zÄÖÜäöüß .()/-]+)$`),
	}

	taxNumberMatchers = []matcher{
		rx(`(?i)USt-?Id(?:Nr)?\.?\s*(?:Kunde)?\s*:?\s*([A-Z]{2}\s?\d{8,12})`),
		rx(`(?i)(?:Steuernummer|St\.?-?Nr\.?)\s*:?\s*(\d{2,3}/\d{3,4}/\d{4,5})`),
	}

	subtotalMatchers = []matcher{
		rx(`(?i)(?:Zwischensumme|Nettobetrag|Summe\s*netto|Gesamt\s*netto|Nettosumme|Netto|Subtotal)\s*:?\s*` + currencyOpt + amountPattern),
	}

	vatAmountMatchers = []matcher{
		rx(`(?i)\b(?:MwSt\.?|USt\.?|Umsatzsteuer|Mehrwertsteuer|VAT)\s*(?:\(?\s*\d{1,2}(?:,\d+)?\s*%\s*\)?)?\s*:?\s*` + currencyOpt + amountPattern),
		rx(`(?i)\d{1,2}(?:,\d+)?\s*%\s*(?:MwSt\.?|USt\.?|Umsatzsteuer|Mehrwertsteuer|VAT)\s*:?\s*` + currencyOpt + amountPattern),
	}

	vatRateMatchers = []matcher{
		rx(`(?i)(\d{1,2}(?:,\d{1,2})?)\s*%\s*(?:MwSt|USt|Umsatzsteuer|Mehrwertsteuer|VAT)`),
		rx(`(?i)\b(?:MwSt\.?|USt\.?|Umsatzsteuer|Mehrwertsteuer|VAT)\s*\(?\s*(\d{1,2}(?:,\d{1,2})?)\s*%`),
	}

	totalMatchers = []matcher{
		rx(`(?i)(?:Gesamtbetrag|Rechnungsbetrag|Endbetrag|Gesamtsumme|Angebotssumme|Bruttobetrag|Summe\s*brutto|Gesamt\s*brutto|\bTotal)\s*:?\s*` + currencyOpt + amountPattern),
		rx(`(?i)\bGesamt\s*:?\s*` + currencyOpt + amountPattern),
		rx(`(?i)\bSumme\s*:?\s*` + currencyOpt + amountPattern),
	}

	projectNameMatchers = []matcher{
		rx(`(?im)^(?:Projekt|Project)\s*:\s*(.+)$`),
	}

	servicePeriodMatchers = []matcher{
		rx(`(?im)Leistungszeitraum\s*:?\s*([\d. -]+\d)`),
		rx(`(?im)Leistungsdatum\s*:?\s*` + datePattern),
	}

	serviceLocationMatchers = []matcher{
		rx(`(?im)Leistungsort\s*:?\s*(.+)$`),
	}
)
