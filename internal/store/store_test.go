package store

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"buchhaltung/internal/config"
	"buchhaltung/internal/document"
	"buchhaltung/internal/matching"
	"buchhaltung/internal/reconciliation"
	"buchhaltung/internal/statement"
	"buchhaltung/internal/tax"
	"buchhaltung/pkg/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(t time.Time) *time.Time { return &t }

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := Open(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle"})
	assert.ErrorContains(t, err, `unsupported driver "oracle"`)
}

func TestImportSkipsDuplicates(t *testing.T) {
	repo := NewTransactionRepository(openTestDB(t))
	importer := statement.NewImporter(repo)
	records := []statement.ParsedTransaction{{
		Date:          day(2025, 9, 10),
		Correspondent: "Hetzner Online GmbH",
		Title:         "Lastschrift",
		Type:          tax.TypeExpense19,
		Amount:        dec("-49.90"),
		Currency:      "EUR",
	}}
	ctx := context.Background()

	first := importer.ImportTransactions(ctx, records, true)
	second := importer.ImportTransactions(ctx, records, true)

	assert.Equal(t, 1, first.Imported)
	assert.Equal(t, 0, second.Imported)
	assert.Equal(t, 1, second.Skipped)

	stored, err := repo.FindByAmount(ctx, dec("-49.90"))
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].NetAmount.Decimal.Equal(dec("-41.93")), stored[0].NetAmount.Decimal.String())
	assert.True(t, stored[0].VATAmount.Decimal.Equal(dec("-7.97")), stored[0].VATAmount.Decimal.String())
	assert.Equal(t, first.BatchID, stored[0].ImportBatchID)
}

func TestTransactionQueries(t *testing.T) {
	repo := NewTransactionRepository(openTestDB(t))
	ctx := context.Background()
	linked := uint(1)

	rows := []models.BankTransaction{
		{TransactionDate: day(2025, 6, 10), Amount: dec("500"), Type: tax.TypeIncome19, Description: "a"},
		{TransactionDate: day(2025, 6, 12), Amount: dec("700"), Type: tax.TypeUncategorized, Description: "b"},
		{TransactionDate: day(2025, 6, 11), Amount: dec("-45.99"), Type: tax.TypeUncategorized, Description: "c"},
		{TransactionDate: day(2025, 6, 13), Amount: dec("300"), Type: tax.TypeIncome19, Description: "d", IsValidated: true},
		{TransactionDate: day(2025, 6, 14), Amount: dec("200"), Type: tax.TypeIncome19, Description: "e", InvoiceID: &linked},
	}
	for i := range rows {
		require.NoError(t, repo.Create(ctx, &rows[i]))
	}

	income, err := repo.UnvalidatedIncome(ctx, 10)
	require.NoError(t, err)
	require.Len(t, income, 2)
	assert.Equal(t, "b", income[0].Description)
	assert.Equal(t, "a", income[1].Description)

	limited, err := repo.UnvalidatedIncome(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	open, err := repo.UncategorizedTransactions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "b", open[0].Description)

	got, err := repo.TransactionByID(ctx, rows[0].ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(dec("500")))

	_, err = repo.TransactionByID(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCustomerLookups(t *testing.T) {
	repo := NewCustomerRepository(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.CreateCustomer(ctx, &models.Customer{Name: "Beispiel GmbH", Email: "Buchhaltung@Beispiel.de"}))
	require.NoError(t, repo.CreateCustomer(ctx, &models.Customer{Name: "Nordlicht Media"}))

	byEmail, err := repo.CustomerByEmail(ctx, "buchhaltung@beispiel.de")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, "Beispiel GmbH", byEmail.Name)

	byName, err := repo.CustomerByName(ctx, "Nordlicht Media")
	require.NoError(t, err)
	require.NotNil(t, byName)

	missing, err := repo.CustomerByName(ctx, "Nordlicht")
	require.NoError(t, err)
	assert.Nil(t, missing)

	none, err := repo.CustomerByEmail(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, none)

	all, err := repo.Customers(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Less(t, all[0].ID, all[1].ID)
}

func TestDocumentImportNumbering(t *testing.T) {
	db := openTestDB(t)
	invoices := NewInvoiceRepository(db)
	svc := document.NewService(NewCustomerRepository(db), invoices)
	ctx := context.Background()
	total := dec("2332.40")

	doc := document.ParsedDocument{
		Customer:  document.ParsedCustomer{Name: "Beispiel GmbH"},
		IssueDate: datePtr(day(2025, 9, 29)),
		Items:     []models.LineItem{{Description: "Beratung", Quantity: dec("16"), UnitPrice: dec("122.50"), Total: dec("1960")}},
		VATRate:   document.DefaultVATRate,
		Total:     &total,
	}

	first := svc.ImportDocument(ctx, doc, document.KindInvoice)
	require.True(t, first.Success, first.Error)
	assert.Equal(t, "RE-2025-0001", first.Number)

	second := svc.ImportDocument(ctx, doc, document.KindInvoice)
	require.True(t, second.Success, second.Error)
	assert.Equal(t, "RE-2025-0002", second.Number)

	quote := svc.ImportDocument(ctx, doc, document.KindQuote)
	require.True(t, quote.Success, quote.Error)
	assert.Equal(t, "AN-2025-0001", quote.Number)

	latest, err := invoices.LatestInvoiceNumber(ctx, "RE-2024-")
	require.NoError(t, err)
	assert.Empty(t, latest)

	stored, err := invoices.InvoiceByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "Beispiel GmbH", stored.Customer.Name)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "Beratung", stored.Items[0].Description)
	assert.True(t, stored.Total.Equal(total))

	customers, err := NewCustomerRepository(db).Customers(ctx)
	require.NoError(t, err)
	assert.Len(t, customers, 1)

	_, err = invoices.InvoiceByID(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInvoicesNear(t *testing.T) {
	db := openTestDB(t)
	invoices := NewInvoiceRepository(db)
	ctx := context.Background()

	customer := models.Customer{Name: "Beispiel GmbH"}
	require.NoError(t, NewCustomerRepository(db).CreateCustomer(ctx, &customer))

	add := func(number, total string, issued time.Time) {
		inv := &models.Invoice{InvoiceNumber: number, DueDate: issued.AddDate(0, 0, 14)}
		inv.CustomerID = customer.ID
		inv.Total = dec(total)
		inv.IssueDate = issued
		require.NoError(t, invoices.CreateInvoice(ctx, inv))
	}
	add("RE-2025-0001", "2332.40", day(2025, 9, 29))
	add("RE-2025-0002", "2333.40", day(2025, 9, 20))
	add("RE-2025-0003", "2333.50", day(2025, 9, 29))
	add("RE-2025-0004", "2332.40", day(2025, 7, 1))

	got, err := invoices.InvoicesNear(ctx, dec("2332.40"), day(2025, 10, 2), matching.AmountWindow, matching.DayWindow)
	require.NoError(t, err)

	numbers := make([]string, len(got))
	for i, inv := range got {
		numbers[i] = inv.InvoiceNumber
	}
	assert.Equal(t, []string{"RE-2025-0001", "RE-2025-0002"}, numbers)
	assert.Equal(t, "Beispiel GmbH", got[0].Customer.Name)
}

func TestAutoLinkAgainstDatabase(t *testing.T) {
	db := openTestDB(t)
	txs := NewTransactionRepository(db)
	invoices := NewInvoiceRepository(db)
	ctx := context.Background()

	customer := models.Customer{Name: "Beispiel GmbH"}
	require.NoError(t, NewCustomerRepository(db).CreateCustomer(ctx, &customer))
	inv := &models.Invoice{InvoiceNumber: "RE-2025-0042"}
	inv.CustomerID = customer.ID
	inv.Total = dec("2332.40")
	inv.IssueDate = day(2025, 9, 29)
	require.NoError(t, invoices.CreateInvoice(ctx, inv))

	tx := &models.BankTransaction{
		TransactionDate: day(2025, 10, 2),
		Description:     "Gutschrift BEISPIEL GMBH RE-2025-0042",
		Amount:          dec("2332.40"),
		Type:            tax.TypeIncome19,
	}
	require.NoError(t, txs.Create(ctx, tx))

	engine := reconciliation.NewEngine(txs, invoices, nil)
	summary := engine.FindMatchesForUnvalidatedTransactions(ctx, 10)

	assert.Equal(t, reconciliation.BatchSummary{Processed: 1, MatchesFound: 1, AutoLinked: 1}, summary)

	stored, err := txs.TransactionByID(ctx, tx.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.InvoiceID)
	assert.Equal(t, inv.ID, *stored.InvoiceID)
	assert.True(t, stored.IsValidated)
	assert.Equal(t, "Verknüpft mit Rechnung RE-2025-0042", *stored.Notes)
}
