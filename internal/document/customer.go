package document

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"buchhaltung/pkg/models"
)

// minContainedLength guards containment matches against short names like "AG".
const minContainedLength = 5

// CustomerStore is the customer persistence the document service needs.
// Lookups return nil, nil when nothing is found.
type CustomerStore interface {
	CustomerByID(ctx context.Context, id uint) (*models.Customer, error)
	CustomerByEmail(ctx context.Context, email string) (*models.Customer, error)
	CustomerByName(ctx context.Context, name string) (*models.Customer, error)
	// Customers returns all customers in primary-key order.
	Customers(ctx context.Context) ([]models.Customer, error)
	CreateCustomer(ctx context.Context, c *models.Customer) error
}

var legalSuffixes = map[string]bool{
	"gmbh": true, "ag": true, "kg": true, "ohg": true, "gbr": true, "ug": true,
	"mbh": true, "ltd": true, "ltd.": true, "inc": true, "inc.": true,
	"e.k.": true, "e.v.": true, "co.": true, "co": true, "&": true,
}

// NormalizeName lowercases a company name, strips legal-form suffixes and
// collapses whitespace. It is only used for matching.
func NormalizeName(name string) string {
	lower := strings.ToLower(name)
	lower = strings.ReplaceAll(lower, "(haftungsbeschränkt)", " ")
	lower = strings.ReplaceAll(lower, "& co.", " ")

	var kept []string
	for _, token := range strings.Fields(lower) {
		token = strings.TrimRight(token, ",")
		if token == "" || legalSuffixes[token] {
			continue
		}
		kept = append(kept, token)
	}
	return strings.Join(kept, " ")
}

// fuzzyMatch reports whether two normalized names denote the same customer
// and whether the match was exact.
func fuzzyMatch(a, b string) (matched, exact bool) {
	if a == "" || b == "" {
		return false, false
	}
	if a == b {
		return true, true
	}
	if utf8.RuneCountInString(a) <= minContainedLength || utf8.RuneCountInString(b) <= minContainedLength {
		return false, false
	}
	return strings.Contains(a, b) || strings.Contains(b, a), false
}

// FindExistingCustomer tries email, then exact name, then the normalized name.
// Customers are scanned in primary-key order; a normalized-equal name beats an
// earlier containment match.
func (s *Service) FindExistingCustomer(ctx context.Context, c ParsedCustomer) (*models.Customer, error) {
	const op = "FindExistingCustomer"

	if c.Email != "" {
		found, err := s.customers.CustomerByEmail(ctx, c.Email)
		if err != nil {
			return nil, fmt.Errorf("%s: by email: %w", op, err)
		}
		if found != nil {
			return found, nil
		}
	}

	if c.Name == "" {
		return nil, nil
	}

	found, err := s.customers.CustomerByName(ctx, c.Name)
	if err != nil {
		return nil, fmt.Errorf("%s: by name: %w", op, err)
	}
	if found != nil {
		return found, nil
	}

	target := NormalizeName(c.Name)
	if target == "" {
		return nil, nil
	}

	all, err := s.customers.Customers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: list: %w", op, err)
	}

	var contained *models.Customer
	for i := range all {
		matched, exact := fuzzyMatch(target, NormalizeName(all[i].Name))
		if exact {
			return &all[i], nil
		}
		if matched && contained == nil {
			contained = &all[i]
		}
	}
	return contained, nil
}

// ResolveCustomer sets doc.CustomerID when an existing customer matches.
func (s *Service) ResolveCustomer(ctx context.Context, doc *ParsedDocument) {
	found, err := s.FindExistingCustomer(ctx, doc.Customer)
	if err != nil {
		s.log.Warn().Err(err).Str("customer", doc.Customer.Name).Msg("Customer lookup failed")
		return
	}
	if found != nil {
		doc.CustomerID = &found.ID
		s.log.Debug().Uint("customer_id", found.ID).Str("name", found.Name).Msg("Customer resolved")
	}
}
