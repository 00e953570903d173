package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"buchhaltung/pkg/models"
)

// CustomerRepository stores customers. Lookups return nil, nil when nothing
// matches.
type CustomerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) CustomerByID(ctx context.Context, id uint) (*models.Customer, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

// CustomerByEmail compares case-insensitively.
func (r *CustomerRepository) CustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil
	}
	return r.first(r.db.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(email)))
}

// CustomerByName matches the stored name exactly.
func (r *CustomerRepository) CustomerByName(ctx context.Context, name string) (*models.Customer, error) {
	return r.first(r.db.WithContext(ctx).Where("name = ?", name))
}

func (r *CustomerRepository) Customers(ctx context.Context) ([]models.Customer, error) {
	var customers []models.Customer
	err := r.db.WithContext(ctx).Order("id").Find(&customers).Error
	return customers, err
}

func (r *CustomerRepository) CreateCustomer(ctx context.Context, c *models.Customer) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *CustomerRepository) first(q *gorm.DB) (*models.Customer, error) {
	var c models.Customer
	if err := q.Order("id").First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}
