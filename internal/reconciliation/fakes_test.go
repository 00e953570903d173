package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"buchhaltung/internal/paperless"
	"buchhaltung/pkg/models"
)

var errNotFound = errors.New("record not found")

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func strPtr(s string) *string { return &s }

// fakeStore keeps copies so that only SaveTransaction changes stored rows.
type fakeStore struct {
	mu       sync.Mutex
	txs      map[uint]models.BankTransaction
	invoices map[uint]models.Invoice
	saveErr  error
	nearErr  error
	nearHits int
}

func newFakeStore() *fakeStore {
	return &fakeStore{txs: map[uint]models.BankTransaction{}, invoices: map[uint]models.Invoice{}}
}

func (f *fakeStore) addTx(tx models.BankTransaction) {
	f.txs[tx.ID] = tx
}

func (f *fakeStore) addInvoice(id uint, number, customer, total string, issued time.Time) {
	inv := models.Invoice{ID: id, InvoiceNumber: number, Customer: models.Customer{ID: id, Name: customer}}
	inv.Total = dec(total)
	inv.IssueDate = issued
	f.invoices[id] = inv
}

func (f *fakeStore) tx(id uint) models.BankTransaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.txs[id]
}

func (f *fakeStore) TransactionByID(ctx context.Context, id uint) (*models.BankTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.txs[id]
	if !ok {
		return nil, fmt.Errorf("transaction %d: %w", id, errNotFound)
	}
	return &tx, nil
}

func (f *fakeStore) UnvalidatedIncome(ctx context.Context, limit int) ([]models.BankTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.BankTransaction
	for _, tx := range f.txs {
		if tx.Amount.IsPositive() && !tx.IsValidated && tx.InvoiceID == nil {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransactionDate.After(out[j].TransactionDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) SaveTransaction(ctx context.Context, tx *models.BankTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.txs[tx.ID] = *tx
	return nil
}

func (f *fakeStore) InvoiceByID(ctx context.Context, id uint) (*models.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invoices[id]
	if !ok {
		return nil, fmt.Errorf("invoice %d: %w", id, errNotFound)
	}
	return &inv, nil
}

// InvoicesNear returns every invoice; the engine must apply the windows itself.
func (f *fakeStore) InvoicesNear(ctx context.Context, amount decimal.Decimal, date time.Time, window decimal.Decimal, days int) ([]models.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nearHits++
	if f.nearErr != nil {
		return nil, f.nearErr
	}
	out := make([]models.Invoice, 0, len(f.invoices))
	for _, inv := range f.invoices {
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeArchive struct {
	enabled   bool
	results   map[string][]paperless.Document
	names     map[int]string
	searches  []string
	nameCalls int
}

func (a *fakeArchive) Enabled() bool { return a.enabled }

func (a *fakeArchive) Search(ctx context.Context, query string, f paperless.SearchFilters) []paperless.Document {
	a.searches = append(a.searches, query)
	return a.results[query]
}

func (a *fakeArchive) CorrespondentNames(ctx context.Context) map[int]string {
	a.nameCalls++
	return a.names
}

func (a *fakeArchive) DocumentURL(id int) string {
	return fmt.Sprintf("https://archive.example/documents/%d/details", id)
}

func archiveDoc(id int, title string, created *time.Time, correspondent *int) paperless.Document {
	doc := paperless.Document{ID: id, Title: title, Correspondent: correspondent}
	if created != nil {
		doc.Created = &paperless.Timestamp{Time: *created}
	}
	return doc
}

func timePtr(t time.Time) *time.Time { return &t }

func intPtr(i int) *int { return &i }
