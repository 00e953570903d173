package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"buchhaltung/pkg/models"
)

// InvoiceRepository stores invoices and quotes.
type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// InvoiceByID fetches one invoice with its customer.
func (r *InvoiceRepository) InvoiceByID(ctx context.Context, id uint) (*models.Invoice, error) {
	const op = "InvoiceByID"

	var inv models.Invoice
	if err := r.db.WithContext(ctx).Preload("Customer").First(&inv, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s: invoice %d: %w", op, id, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &inv, nil
}

// InvoicesNear returns invoices whose total lies within amountWindow of amount
// and whose issue date lies within days of date. The date bounds are widened
// by one day so that time-of-day and time zone differences never drop a
// candidate; callers apply the exact window.
func (r *InvoiceRepository) InvoicesNear(ctx context.Context, amount decimal.Decimal, date time.Time, amountWindow decimal.Decimal, days int) ([]models.Invoice, error) {
	span := time.Duration(days+1) * 24 * time.Hour

	var invoices []models.Invoice
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Where("total BETWEEN ? AND ?", amount.Sub(amountWindow), amount.Add(amountWindow)).
		Where("issue_date BETWEEN ? AND ?", date.Add(-span), date.Add(span)).
		Order("id").
		Find(&invoices).Error
	return invoices, err
}

// LatestInvoiceNumber returns the highest invoice number with the prefix, or "".
func (r *InvoiceRepository) LatestInvoiceNumber(ctx context.Context, prefix string) (string, error) {
	return r.latestNumber(ctx, &models.Invoice{}, "invoice_number", prefix)
}

// LatestQuoteNumber returns the highest quote number with the prefix, or "".
func (r *InvoiceRepository) LatestQuoteNumber(ctx context.Context, prefix string) (string, error) {
	return r.latestNumber(ctx, &models.Quote{}, "quote_number", prefix)
}

func (r *InvoiceRepository) latestNumber(ctx context.Context, model any, column, prefix string) (string, error) {
	var numbers []string
	err := r.db.WithContext(ctx).
		Model(model).
		Where(column+" LIKE ?", prefix+"%").
		Order(column+" DESC").
		Limit(1).
		Pluck(column, &numbers).Error
	if err != nil || len(numbers) == 0 {
		return "", err
	}
	return numbers[0], nil
}

// CreateInvoice inserts the invoice. The customer must already exist.
func (r *InvoiceRepository) CreateInvoice(ctx context.Context, inv *models.Invoice) error {
	return r.db.WithContext(ctx).Omit("Customer").Create(inv).Error
}

// CreateQuote inserts the quote. The customer must already exist.
func (r *InvoiceRepository) CreateQuote(ctx context.Context, q *models.Quote) error {
	return r.db.WithContext(ctx).Omit("Customer").Create(q).Error
}
