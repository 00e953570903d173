package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"buchhaltung/internal/tax"
	"buchhaltung/pkg/models"
)

// TransactionRepository stores bank transactions.
type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// FindByAmount returns all transactions with exactly this amount.
func (r *TransactionRepository) FindByAmount(ctx context.Context, amount decimal.Decimal) ([]models.BankTransaction, error) {
	var txs []models.BankTransaction
	err := r.db.WithContext(ctx).Where("amount = ?", amount).Order("id").Find(&txs).Error
	return txs, err
}

func (r *TransactionRepository) Create(ctx context.Context, tx *models.BankTransaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

func (r *TransactionRepository) SaveTransaction(ctx context.Context, tx *models.BankTransaction) error {
	return r.db.WithContext(ctx).Save(tx).Error
}

// TransactionByID fetches one transaction.
func (r *TransactionRepository) TransactionByID(ctx context.Context, id uint) (*models.BankTransaction, error) {
	const op = "TransactionByID"

	var tx models.BankTransaction
	if err := r.db.WithContext(ctx).First(&tx, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s: transaction %d: %w", op, id, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &tx, nil
}

// UnvalidatedIncome returns up to limit incoming transactions that are
// neither validated nor linked, newest first.
func (r *TransactionRepository) UnvalidatedIncome(ctx context.Context, limit int) ([]models.BankTransaction, error) {
	var txs []models.BankTransaction
	err := r.db.WithContext(ctx).
		Where("is_validated = ?", false).
		Where("invoice_id IS NULL AND matched_paperless_document_id IS NULL").
		Where("amount > ?", 0).
		Order("transaction_date DESC, id DESC").
		Limit(limit).
		Find(&txs).Error
	return txs, err
}

// UncategorizedTransactions returns up to limit transactions the import could
// not type, newest first.
func (r *TransactionRepository) UncategorizedTransactions(ctx context.Context, limit int) ([]models.BankTransaction, error) {
	var txs []models.BankTransaction
	err := r.db.WithContext(ctx).
		Where("type = ?", tax.TypeUncategorized).
		Order("transaction_date DESC, id DESC").
		Limit(limit).
		Find(&txs).Error
	return txs, err
}
