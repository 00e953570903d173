package statement

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"buchhaltung/internal/numfmt"
	"buchhaltung/internal/tax"
)

const lookahead = 9

var (
	kontistSignatures = []string{"Kontist", "kontist.com", "Solaris"}

	datePrefix = regexp.MustCompile(`^(\d{2}\.\d{2}\.\d{2})\s+(.*)$`)

	// The sign is mandatory. Unsigned numbers in free text are references.
	// The end of a match must be followed by whitespace or the end of the
	// line; findSigned checks that by index so adjacent amounts still match.
	signedAmount = regexp.MustCompile(`(?:^|\s)([+-])\s?(\d{1,3}(?:\.\d{3})+,\d{2}|\d+,\d{2})(?:\s*(EUR|€))?`)

	typePrefixes = []string{
		"Geschäftsausgabe",
		"Einkommen",
		"Bewirtung",
		"Privat",
		"Nicht kategorisiert",
	}

	paymentMethods = []string{
		"Lastschrift",
		"Kartenzahlung",
		"Echtzeitüberweisung",
		"Überweisung",
	}
)

// kontistFormat walks Kontist statements, where a block starts with a
// "DD.MM.YY <correspondent>" line and the signed amount, type and payment
// method follow either inline or on the next lines.
type kontistFormat struct {
	log zerolog.Logger
}

func (k *kontistFormat) Name() string { return "kontist" }

func (k *kontistFormat) Detect(text string) bool {
	for _, sig := range kontistSignatures {
		if strings.Contains(text, sig) {
			return true
		}
	}
	return false
}

type signedMatch struct {
	start    int
	sign     string
	number   string
	currency string
}

// findSigned returns the last signed amount on the line.
func findSigned(line string) (signedMatch, bool) {
	all := signedAmount.FindAllStringSubmatchIndex(line, -1)
	for i := len(all) - 1; i >= 0; i-- {
		m := all[i]
		match := signedMatch{
			start:  m[0],
			sign:   line[m[2]:m[3]],
			number: line[m[4]:m[5]],
		}
		switch {
		case m[6] >= 0 && endsToken(line, m[1]):
			match.currency = line[m[6]:m[7]]
		case endsToken(line, m[5]):
		default:
			continue
		}
		return match, true
	}
	return signedMatch{}, false
}

func endsToken(line string, i int) bool {
	if i >= len(line) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(line[i:])
	return unicode.IsSpace(r)
}

func hasAnyPrefix(line string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

func (k *kontistFormat) Parse(lines []string) []ParsedTransaction {
	var out []ParsedTransaction

	for i, line := range lines {
		m := datePrefix.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		date, err := numfmt.ParseShortDate(m[1])
		if err != nil {
			k.log.Debug().Str("line", line).Msg("Skipping line with invalid date")
			continue
		}

		tx := ParsedTransaction{
			Date:     date,
			RawDate:  m[1],
			Currency: "EUR",
			RawData:  line,
		}
		rest := m[2]

		found := false
		if sm, ok := findSigned(rest); ok {
			tx.Correspondent = strings.TrimSpace(rest[:sm.start])
			found = k.setAmount(&tx, sm)
		} else {
			tx.Correspondent = strings.TrimSpace(rest)
		}

		for j := i + 1; j < len(lines) && j <= i+lookahead; j++ {
			next := lines[j]
			if datePrefix.MatchString(next) {
				break
			}

			sm, hasAmount := findSigned(next)

			if tx.Type == "" && hasAnyPrefix(next, typePrefixes) {
				typ := strings.TrimSpace(next)
				if hasAmount {
					typ = strings.TrimSpace(next[:sm.start])
				}
				if tax.IsKnown(typ) {
					tx.Type = typ
				} else if tx.RawType == "" {
					tx.RawType = typ
				}
			}
			if !found && hasAmount {
				found = k.setAmount(&tx, sm)
			}
			if tx.Title == "" && hasAnyPrefix(next, paymentMethods) {
				tx.Title = next
			}
		}

		if !found {
			continue
		}
		if tx.Type == "" {
			tx.Type = tax.TypeUncategorized
		}
		out = append(out, tx)
	}

	return out
}

func (k *kontistFormat) setAmount(tx *ParsedTransaction, sm signedMatch) bool {
	amount, err := numfmt.ParseAmount(sm.sign + sm.number)
	if err != nil {
		k.log.Debug().Err(err).Str("amount", sm.number).Msg("Skipping unparsable amount")
		return false
	}
	tx.Amount = amount
	tx.Currency = normalizeCurrency(sm.currency)
	return true
}
