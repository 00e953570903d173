package statement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buchhaltung/pkg/models"
)

type memStore struct {
	rows      []models.BankTransaction
	failOn    string
	findError error
}

func (m *memStore) FindByAmount(_ context.Context, amount decimal.Decimal) ([]models.BankTransaction, error) {
	if m.findError != nil {
		return nil, m.findError
	}
	var out []models.BankTransaction
	for _, r := range m.rows {
		if r.Amount.Equal(amount) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) Create(_ context.Context, tx *models.BankTransaction) error {
	if m.failOn != "" && tx.Correspondent == m.failOn {
		return errors.New("constraint violation")
	}
	tx.ID = uint(len(m.rows) + 1)
	m.rows = append(m.rows, *tx)
	return nil
}

func amazon() ParsedTransaction {
	return ParsedTransaction{
		Date:          time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		RawDate:       "01.09.25",
		Correspondent: "Amazon EU",
		Type:          "Geschäftsausgabe 19%",
		Amount:        dec("-45.99"),
		Currency:      "EUR",
		RawData:       "01.09.25 Amazon EU -45,99 EUR",
	}
}

func TestImportComputesBreakdown(t *testing.T) {
	store := &memStore{}
	sum := NewImporter(store).ImportTransactions(context.Background(), []ParsedTransaction{amazon()}, true)

	assert.Equal(t, 1, sum.Imported)
	assert.Equal(t, 1, sum.Total)
	assert.NotEmpty(t, sum.BatchID)
	require.Len(t, store.rows, 1)

	tx := store.rows[0]
	assert.Equal(t, "-38.65", tx.NetAmount.Decimal.StringFixed(2))
	assert.Equal(t, "-7.34", tx.VATAmount.Decimal.StringFixed(2))
	assert.Equal(t, "19", tx.VATRate.Decimal.String())
	assert.True(t, tx.NetAmount.Valid)
	assert.Equal(t, "Amazon EU", tx.Description)
	assert.Equal(t, sum.BatchID, tx.ImportBatchID)
	assert.False(t, tx.IsValidated)
	require.NotNil(t, tx.Category)
	assert.Equal(t, "Büromaterial", *tx.Category)
	require.NotNil(t, tx.RawData)
}

func TestImportSkipsDuplicates(t *testing.T) {
	store := &memStore{}
	im := NewImporter(store)
	ctx := context.Background()

	first := im.ImportTransactions(ctx, []ParsedTransaction{amazon()}, true)
	second := im.ImportTransactions(ctx, []ParsedTransaction{amazon()}, true)

	assert.Equal(t, 1, first.Imported)
	assert.Equal(t, 0, second.Imported)
	assert.Equal(t, 1, second.Skipped)
	assert.Len(t, store.rows, 1)
	assert.NotEqual(t, first.BatchID, second.BatchID)
}

func TestImportWithoutDedupStoresTwice(t *testing.T) {
	store := &memStore{}
	sum := NewImporter(store).ImportTransactions(context.Background(), []ParsedTransaction{amazon(), amazon()}, false)

	assert.Equal(t, 2, sum.Imported)
	assert.Equal(t, 0, sum.Skipped)
}

func TestDuplicateNeedsSameDayAndDescriptionPrefix(t *testing.T) {
	long := "SEPA Lastschrift Hetzner Online GmbH Rechnung R0001234567 Kundennummer K123"
	base := ParsedTransaction{
		Date:        time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		Description: long,
		Amount:      dec("-12.50"),
	}

	store := &memStore{}
	im := NewImporter(store)
	ctx := context.Background()
	require.Equal(t, 1, im.ImportTransactions(ctx, []ParsedTransaction{base}, true).Imported)

	otherDay := base
	otherDay.Date = base.Date.AddDate(0, 0, 1)

	otherAmount := base
	otherAmount.Amount = dec("-12.51")

	// same first 50 characters, different tail
	sameHead := base
	sameHead.Description = long[:50] + " abweichender Rest"

	otherHead := base
	otherHead.Description = "Hetzner " + long

	sum := im.ImportTransactions(ctx, []ParsedTransaction{otherDay, otherAmount, sameHead, otherHead}, true)
	assert.Equal(t, 3, sum.Imported)
	assert.Equal(t, 1, sum.Skipped)
}

func TestImportCountsErrorsAndContinues(t *testing.T) {
	noDate := amazon()
	noDate.Date = time.Time{}

	failing := amazon()
	failing.Correspondent = "Kaputt"

	ok := amazon()
	ok.Correspondent = "GitHub Inc."
	ok.Amount = dec("-8.40")

	store := &memStore{failOn: "Kaputt"}
	sum := NewImporter(store).ImportTransactions(context.Background(), []ParsedTransaction{noDate, failing, ok}, true)

	assert.Equal(t, ImportSummary{Imported: 1, Skipped: 0, Errors: 2, Total: 3, BatchID: sum.BatchID}, sum)
	require.Len(t, store.rows, 1)
	assert.Equal(t, "GitHub Inc.", store.rows[0].Correspondent)
}

func TestImportCountsLookupFailures(t *testing.T) {
	store := &memStore{findError: errors.New("connection reset")}
	sum := NewImporter(store).ImportTransactions(context.Background(), []ParsedTransaction{amazon()}, true)

	assert.Equal(t, 1, sum.Errors)
	assert.Equal(t, 0, sum.Imported)
}

func TestImportDefaultsMissingTypeToUncategorized(t *testing.T) {
	rec := amazon()
	rec.Type = ""
	store := &memStore{}
	NewImporter(store).ImportTransactions(context.Background(), []ParsedTransaction{rec}, true)

	require.Len(t, store.rows, 1)
	assert.Equal(t, "Nicht kategorisiert", store.rows[0].Type)
	assert.True(t, store.rows[0].VATAmount.Decimal.IsZero())
	assert.True(t, store.rows[0].NetAmount.Decimal.Equal(dec("-45.99")))
}

func TestImportKeepsUnmappedTypeAsUncategorized(t *testing.T) {
	printed := amazon()
	printed.Type = "Geschäftsausgabe 16%"

	walked := amazon()
	walked.Correspondent = "Privat Transfer"
	walked.Type = ""
	walked.RawType = "Privatentnahme"
	walked.Amount = dec("-100.00")

	store := &memStore{}
	sum := NewImporter(store).ImportTransactions(context.Background(), []ParsedTransaction{printed, walked}, true)

	assert.Equal(t, ImportSummary{Imported: 2, Unmapped: 2, Total: 2, BatchID: sum.BatchID}, sum)
	require.Len(t, store.rows, 2)
	for i, want := range []string{"Geschäftsausgabe 16%", "Privatentnahme"} {
		row := store.rows[i]
		assert.Equal(t, "Nicht kategorisiert", row.Type)
		assert.True(t, row.NetAmount.Decimal.Equal(row.Amount))
		require.NotNil(t, row.Notes)
		assert.Equal(t, "Unbekannter Typ: "+want, *row.Notes)
	}
}

func TestImportKnownTypeWinsOverPrintedVariant(t *testing.T) {
	rec := amazon()
	rec.RawType = "Geschäftsausgabe 16%"

	store := &memStore{}
	sum := NewImporter(store).ImportTransactions(context.Background(), []ParsedTransaction{rec}, true)

	assert.Equal(t, 0, sum.Unmapped)
	require.Len(t, store.rows, 1)
	assert.Equal(t, "Geschäftsausgabe 19%", store.rows[0].Type)
	assert.Nil(t, store.rows[0].Notes)
}

func TestDescriptionFallsBackToCorrespondentAndTitle(t *testing.T) {
	assert.Equal(t, "Amazon EU Kartenzahlung", Description(ParsedTransaction{Correspondent: "Amazon EU", Title: "Kartenzahlung"}))
	assert.Equal(t, "explicit", Description(ParsedTransaction{Correspondent: "x", Description: "explicit"}))
	assert.Equal(t, "", Description(ParsedTransaction{}))
}

func TestGuessCategory(t *testing.T) {
	require.NotNil(t, GuessCategory("GITHUB INC. Kartenzahlung"))
	assert.Equal(t, "Software & Cloud", *GuessCategory("GITHUB INC. Kartenzahlung"))
	// ordered table: AWS is software even though amazon is also listed later
	assert.Equal(t, "Software & Cloud", *GuessCategory("Amazon Web Services EMEA"))
	assert.Equal(t, "Büromaterial", *GuessCategory("Amazon EU S.a.r.l."))
	assert.Nil(t, GuessCategory("Max Mustermann"))
}

func TestIsBusinessExpense(t *testing.T) {
	assert.True(t, IsBusinessExpense(dec("-19.99"), "Hetzner Online Server"))
	assert.False(t, IsBusinessExpense(dec("19.99"), "Hetzner Online Server"))
	assert.False(t, IsBusinessExpense(dec("-19.99"), "Supermarkt"))
	assert.False(t, IsBusinessExpense(decimal.Zero, "hosting"))
}
