package matching

import (
	"strings"
	"unicode/utf8"
)

const minTermLength = 3

// bankingBoilerplate holds lowercase tokens removed from descriptions before
// archive searches.
var bankingBoilerplate = map[string]bool{
	"sepa":                true,
	"lastschrift":         true,
	"basislastschrift":    true,
	"überweisung":         true,
	"echtzeitüberweisung": true,
	"gutschrift":          true,
	"dauerauftrag":        true,
	"kartenzahlung":       true,
	"direct":              true,
	"debit":               true,
	"transfer":            true,
	"eur":                 true,
}

var termPunctuation = strings.NewReplacer(",", " ", ";", " ", ":", " ", "/", " ", "(", " ", ")", " ")

func isBoilerplate(word string) bool {
	lower := strings.ToLower(word)
	if bankingBoilerplate[lower] {
		return true
	}
	// SEPA-Lastschrift, SEPA-Überweisung ...
	if rest, ok := strings.CutPrefix(lower, "sepa-"); ok {
		return rest == "" || bankingBoilerplate[rest]
	}
	return false
}

// SearchTerms derives archive queries from a transaction description: every
// remaining word of at least three letters, then the whole cleaned description.
func SearchTerms(description string) []string {
	var words []string
	for _, w := range strings.Fields(termPunctuation.Replace(description)) {
		if !isBoilerplate(w) {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return nil
	}

	var terms []string
	seen := make(map[string]bool)
	add := func(t string) {
		key := strings.ToLower(t)
		if seen[key] {
			return
		}
		seen[key] = true
		terms = append(terms, t)
	}

	for _, w := range words {
		w = strings.Trim(w, ".-")
		if utf8.RuneCountInString(w) >= minTermLength {
			add(w)
		}
	}
	add(strings.Join(words, " "))
	return terms
}
