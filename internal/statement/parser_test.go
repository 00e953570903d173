package statement

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const kontistHeader = "Kontist GmbH · Kontoauszug September 2025\nSolaris SE\n"

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestParseKontistInlineAmount(t *testing.T) {
	text := kontistHeader + "01.09.25 Amazon EU -45,99 EUR\nGeschäftsausgabe 19%\n"

	got := NewParser(nil).Parse(text)

	require.Len(t, got, 1)
	tx := got[0]
	assert.Equal(t, time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), tx.Date)
	assert.Equal(t, "01.09.25", tx.RawDate)
	assert.Equal(t, "Amazon EU", tx.Correspondent)
	assert.True(t, tx.Amount.Equal(dec("-45.99")))
	assert.Equal(t, "Geschäftsausgabe 19%", tx.Type)
	assert.Equal(t, "EUR", tx.Currency)
	assert.Equal(t, "01.09.25 Amazon EU -45,99 EUR", tx.RawData)
}

func TestParseKontistIgnoresUnsignedNumbers(t *testing.T) {
	text := kontistHeader + `01.09.25 Hetzner Online
Rechnung 500,00 Kundennummer 1.234,56
-45,99 EUR
Lastschrift`

	got := NewParser(nil).Parse(text)

	require.Len(t, got, 1)
	assert.True(t, got[0].Amount.Equal(dec("-45.99")), "amount %s", got[0].Amount)
	assert.Equal(t, "Hetzner Online", got[0].Correspondent)
	assert.Equal(t, "Lastschrift", got[0].Title)
	assert.Equal(t, "Nicht kategorisiert", got[0].Type)
}

func TestParseKontistSkipsBlockWithoutSignedAmount(t *testing.T) {
	text := kontistHeader + `02.09.25 Stadtwerke
Referenz 120,00
Überweisung
03.09.25 Kunde AG +1.190,00 €
Einkommen 19%
Echtzeitüberweisung`

	got := NewParser(nil).Parse(text)

	require.Len(t, got, 1)
	assert.Equal(t, "Kunde AG", got[0].Correspondent)
	assert.True(t, got[0].Amount.Equal(dec("1190")))
	assert.Equal(t, "Einkommen 19%", got[0].Type)
	assert.Equal(t, "Echtzeitüberweisung", got[0].Title)
}

func TestParseKontistStopsAtNextDateLine(t *testing.T) {
	// the amount belongs to the second block and must not leak into the first
	text := kontistHeader + `04.09.25 Erster Empfänger
Kartenzahlung
05.09.25 Zweiter Empfänger
-10,00 EUR`

	got := NewParser(nil).Parse(text)

	require.Len(t, got, 1)
	assert.Equal(t, "Zweiter Empfänger", got[0].Correspondent)
	assert.True(t, got[0].Amount.Equal(dec("-10")))
}

func TestParseKontistLookaheadWindow(t *testing.T) {
	filler := ""
	for i := 0; i < 9; i++ {
		filler += "Verwendungszweck Zeile\n"
	}

	// nine filler lines exhaust the window
	got := NewParser(nil).Parse(kontistHeader + "06.09.25 Spät\n" + filler + "-1,00 EUR\n")
	assert.Empty(t, got)

	// eight filler lines leave the amount on the ninth line
	got = NewParser(nil).Parse(kontistHeader + "06.09.25 Spät\n" + filler[len("Verwendungszweck Zeile\n"):] + "-1,00 EUR\n")
	require.Len(t, got, 1)
	assert.True(t, got[0].Amount.Equal(dec("-1")))
}

func TestParseKontistFirstPaymentMethodWins(t *testing.T) {
	text := kontistHeader + `07.09.25 GitHub Inc.
Kartenzahlung
Überweisung
-8,40 EUR
Geschäftsausgabe 19%`

	got := NewParser(nil).Parse(text)

	require.Len(t, got, 1)
	assert.Equal(t, "Kartenzahlung", got[0].Title)
	assert.Equal(t, "Geschäftsausgabe 19%", got[0].Type)
}

func TestParseKontistKeepsUnknownTypeLineAsRawType(t *testing.T) {
	text := kontistHeader + `01.09.25 Privat Transfer
Privatentnahme
-100,00 EUR
02.09.25 Druckerei Nord
Geschäftsausgabe 16% -100,00 EUR
03.09.25 Büroshop
Geschäftsausgabe 20%
Geschäftsausgabe 7%
-12,00 EUR`

	got := NewParser(nil).Parse(text)

	require.Len(t, got, 3)
	assert.Equal(t, "Nicht kategorisiert", got[0].Type)
	assert.Equal(t, "Privatentnahme", got[0].RawType)
	assert.True(t, got[0].Amount.Equal(dec("-100")))

	assert.Equal(t, "Nicht kategorisiert", got[1].Type)
	assert.Equal(t, "Geschäftsausgabe 16%", got[1].RawType)
	assert.True(t, got[1].Amount.Equal(dec("-100")))

	assert.Equal(t, "Geschäftsausgabe 7%", got[2].Type)
	assert.Equal(t, "Geschäftsausgabe 20%", got[2].RawType)
}

func TestParseKontistTakesLastSignedAmount(t *testing.T) {
	got := NewParser(nil).Parse(kontistHeader + "01.09.25 Foo -1,00 -2,00 EUR\n")

	require.Len(t, got, 1)
	assert.True(t, got[0].Amount.Equal(dec("-2")), "amount %s", got[0].Amount)
	assert.Equal(t, "Foo -1,00", got[0].Correspondent)
	assert.Equal(t, "EUR", got[0].Currency)
}

func TestFindSignedNeedsTokenEnd(t *testing.T) {
	_, ok := findSigned("Rabatt -5,001 auf alles")
	assert.False(t, ok)

	m, ok := findSigned("Gutschrift +3,50 EURO")
	require.True(t, ok)
	assert.Equal(t, "3,50", m.number)
	assert.Empty(t, m.currency)
}

func TestParseGenericFallback(t *testing.T) {
	text := `Sparkasse Kontoauszug
01.09.2025 Miete September -850,00
15/09/2025 Gutschrift Kunde 1.234,56 EUR
Saldo 2.000,00
30.02.2025 Ungültig -5,00`

	got := NewParser(nil).Parse(text)

	require.Len(t, got, 2)
	assert.Equal(t, time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), got[0].Date)
	assert.Equal(t, "2025-09-01", got[0].RawDate)
	assert.True(t, got[0].Amount.Equal(dec("-850")))
	assert.Equal(t, "01.09.2025 Miete September -850,00", got[0].Description)

	assert.Equal(t, time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC), got[1].Date)
	assert.True(t, got[1].Amount.Equal(dec("1234.56")))
}

func TestParseEmptyText(t *testing.T) {
	assert.Empty(t, NewParser(nil).Parse("  \n\n"))
}

func TestDetectIsCaseSensitive(t *testing.T) {
	k := &kontistFormat{}
	assert.True(t, k.Detect("Ihre Bank: Kontist"))
	assert.True(t, k.Detect("www.kontist.com"))
	assert.False(t, k.Detect("KONTIST"))
	assert.False(t, k.Detect("solaris"))
}

type stubExtractor struct {
	text string
	err  error
}

func (s stubExtractor) ExtractText(context.Context, string) (string, error) {
	return s.text, s.err
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "auszug.txt")
	require.NoError(t, os.WriteFile(txt, []byte(kontistHeader+"01.09.25 Amazon EU -45,99 EUR\n"), 0o600))
	pdf := filepath.Join(dir, "auszug.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.4"), 0o600))

	ctx := context.Background()

	t.Run("text file", func(t *testing.T) {
		assert.Len(t, NewParser(nil).ParseFile(ctx, txt), 1)
	})
	t.Run("missing file", func(t *testing.T) {
		assert.Empty(t, NewParser(nil).ParseFile(ctx, filepath.Join(dir, "nope.txt")))
	})
	t.Run("pdf without extractor", func(t *testing.T) {
		assert.Empty(t, NewParser(nil).ParseFile(ctx, pdf))
	})
	t.Run("pdf via extractor", func(t *testing.T) {
		p := NewParser(stubExtractor{text: "01.09.2025 Miete -850,00"})
		assert.Len(t, p.ParseFile(ctx, pdf), 1)
	})
	t.Run("unreadable pdf", func(t *testing.T) {
		p := NewParser(stubExtractor{err: errors.New("broken xref")})
		assert.Empty(t, p.ParseFile(ctx, pdf))
	})
}
