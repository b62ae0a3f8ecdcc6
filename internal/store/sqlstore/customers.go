package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/store"
	"apotekku/backend/internal/xid"
)

const customerColumns = `id, name, phone, email, address, type, discount_percentage,
	credit_limit, current_balance, active, created_at`

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" {
		customer.ID = xid.New("cus")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO customers (`+customerColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
	`), customer.ID, customer.Name, customer.Phone, customer.Email, customer.Address, customer.Type,
		customer.DiscountPercentage, customer.CreditLimit, customer.CurrentBalance, customer.Active, customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: customer %s already exists", store.ErrInvalidInput, customer.ID)
		}
		return nil, err
	}
	return &customer, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return s.getCustomer(ctx, s.db, id, "")
}

func (s *Store) getCustomer(ctx context.Context, q sqlx.QueryerContext, id string, lock string) (*domain.Customer, error) {
	var c domain.Customer
	err := sqlx.GetContext(ctx, q, &c, s.rebind(`SELECT `+customerColumns+` FROM customers WHERE id = ?`+lock), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound("customer", id)
		}
		return nil, err
	}
	normalizeCustomer(&c)
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context, search string, limit int) ([]domain.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers`
	args := make([]any, 0, 3)
	if strings.TrimSpace(search) != "" {
		query += ` WHERE LOWER(name) LIKE ? OR phone LIKE ?`
		pattern := likePattern(search)
		args = append(args, pattern, pattern)
	}
	query += ` ORDER BY name ASC, id ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	customers := make([]domain.Customer, 0, 32)
	if err := s.db.SelectContext(ctx, &customers, s.rebind(query), args...); err != nil {
		return nil, err
	}
	for i := range customers {
		normalizeCustomer(&customers[i])
	}
	return customers, nil
}

func normalizeCustomer(c *domain.Customer) {
	c.DiscountPercentage = c.DiscountPercentage.Round(2)
	c.CreditLimit = c.CreditLimit.Round(2)
	c.CurrentBalance = c.CurrentBalance.Round(2)
	c.CreatedAt = c.CreatedAt.UTC()
}
