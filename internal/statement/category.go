package statement

import (
	"strings"

	"github.com/shopspring/decimal"
)

type categoryRule struct {
	category string
	keywords []string
}

// categoryRules is ordered; the first rule with a matching keyword wins.
var categoryRules = []categoryRule{
	{"Software & Cloud", []string{"github", "jetbrains", "adobe", "microsoft", "google cloud", "aws", "amazon web services", "hetzner", "digitalocean", "netlify", "vercel", "openai", "anthropic", "atlassian", "notion", "slack"}},
	{"Telekommunikation", []string{"telekom", "vodafone", "o2 ", "1&1", "congstar", "ionos"}},
	{"Reisekosten", []string{"deutsche bahn", "db vertrieb", "db fernverkehr", "lufthansa", "eurowings", "flixbus", "hotel", "booking.com", "airbnb", "uber", "taxi"}},
	{"Kraftstoff", []string{"tankstelle", "aral", "shell", "esso", "jet tank"}},
	{"Bewirtung", []string{"restaurant", "gaststätte", "café", "cafe", "lieferando", "bistro"}},
	{"Büromaterial", []string{"amazon", "staples", "viking", "otto office", "büro"}},
	{"Versicherung", []string{"versicherung", "allianz", "axa", "hdi", "hiscox"}},
	{"Steuern", []string{"finanzamt", "steuer"}},
	{"Miete", []string{"miete", "coworking", "wework"}},
	{"Bankgebühren", []string{"kontoführung", "kontogebühr", "entgelt", "gebühr"}},
	{"Kundenzahlung", []string{"rechnung", "invoice", "re-"}},
}

var businessKeywords = []string{
	"software", "hosting", "server", "domain", "cloud", "lizenz", "license",
	"github", "jetbrains", "adobe", "microsoft", "hetzner", "aws",
	"telekom", "vodafone", "büro", "office", "coworking",
	"steuerberater", "fortbildung", "fachliteratur", "seminar", "konferenz",
	"bahn", "hotel", "rechnung",
}

// GuessCategory returns the first category whose keyword occurs in the
// description, or nil.
func GuessCategory(description string) *string {
	lower := strings.ToLower(description)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				category := rule.category
				return &category
			}
		}
	}
	return nil
}

// IsBusinessExpense is true only for outgoing amounts whose description names
// a business keyword.
func IsBusinessExpense(amount decimal.Decimal, description string) bool {
	if !amount.IsNegative() {
		return false
	}
	lower := strings.ToLower(description)
	for _, kw := range businessKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
