// Package tax maps German transaction types to VAT rates and splits gross
// amounts into net and VAT.
package tax

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrUnmappedType is returned for a transaction type with no known VAT rate.
var ErrUnmappedType = errors.New("transaction type has no VAT mapping")

// Transaction types as printed on statements and stored on transactions
const (
	TypeExpense19     = "Geschäftsausgabe 19%"
	TypeExpense7      = "Geschäftsausgabe 7%"
	TypeExpense0      = "Geschäftsausgabe 0%"
	TypeIncome19      = "Einkommen 19%"
	TypeIncome7       = "Einkommen 7%"
	TypeIncome0       = "Einkommen 0%"
	TypeEntertainment = "Bewirtung"
	TypePrivate       = "Privat"
	TypeUncategorized = "Nicht kategorisiert"
)

type entry struct {
	name string
	rate int64
}

// table is the single source of truth; order is the display order.
var table = []entry{
	{TypeExpense19, 19},
	{TypeExpense7, 7},
	{TypeExpense0, 0},
	{TypeIncome19, 19},
	{TypeIncome7, 7},
	{TypeIncome0, 0},
	{TypeEntertainment, 19},
	{TypePrivate, 0},
	{TypeUncategorized, 0},
}

var rates = func() map[string]decimal.Decimal {
	m := make(map[string]decimal.Decimal, len(table))
	for _, e := range table {
		m[e.name] = decimal.NewFromInt(e.rate)
	}
	return m
}()

var hundred = decimal.NewFromInt(100)

// Types returns every known transaction type.
func Types() []string {
	out := make([]string, len(table))
	for i, e := range table {
		out[i] = e.name
	}
	return out
}

// IsKnown reports whether typ has a VAT mapping.
func IsKnown(typ string) bool {
	_, ok := rates[typ]
	return ok
}

// Rate returns the VAT percentage for a transaction type.
func Rate(typ string) (decimal.Decimal, error) {
	rate, ok := rates[typ]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnmappedType, typ)
	}
	return rate, nil
}

// Breakdown is a gross amount split into net and VAT. Gross = Net + VAT holds exactly.
type Breakdown struct {
	Gross decimal.Decimal
	Net   decimal.Decimal
	VAT   decimal.Decimal
	Rate  decimal.Decimal
}

// Split derives net and VAT from a gross amount at rate percent. The sign of
// gross carries through to both parts.
func Split(gross, rate decimal.Decimal) Breakdown {
	gross = gross.Round(2)
	net := gross.Div(decimal.NewFromInt(1).Add(rate.Div(hundred))).Round(2)
	return Breakdown{
		Gross: gross,
		Net:   net,
		VAT:   gross.Sub(net),
		Rate:  rate,
	}
}

// ForType splits gross using the rate mapped to typ.
func ForType(gross decimal.Decimal, typ string) (Breakdown, error) {
	rate, err := Rate(typ)
	if err != nil {
		return Breakdown{}, err
	}
	return Split(gross, rate), nil
}

// VATOnNet computes the VAT for a net amount at rate percent, rounded to cents.
func VATOnNet(net, rate decimal.Decimal) decimal.Decimal {
	return net.Mul(rate).Div(hundred).Round(2)
}
