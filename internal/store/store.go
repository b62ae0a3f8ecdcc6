package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"apotekku/backend/internal/domain"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInvalidInput        = errors.New("invalid input")
	ErrDuplicateInvoice    = errors.New("duplicate invoice number")
	ErrCreditLimitExceeded = errors.New("credit limit exceeded")
)

// NotFoundError names the missing entity and wraps ErrNotFound.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

func NotFound(entity string, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// InsufficientStockError reports the shortfall for one sale line in pieces.
type InsufficientStockError struct {
	MedicineName string
	BatchID      string
	Available    int
	Required     int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for %s: available %d, required %d", e.MedicineName, e.Available, e.Required)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

type CatalogStore interface {
	ListMedicines(ctx context.Context, filter domain.MedicineFilter) ([]domain.Medicine, error)
	GetMedicine(ctx context.Context, id string) (*domain.Medicine, error)
	CreateMedicine(ctx context.Context, medicine domain.Medicine) (*domain.Medicine, error)
	UpdateMedicine(ctx context.Context, medicine domain.Medicine) (*domain.Medicine, error)
	ListManufacturers(ctx context.Context) ([]domain.Manufacturer, error)
	GetManufacturer(ctx context.Context, id string) (*domain.Manufacturer, error)
	CreateManufacturer(ctx context.Context, manufacturer domain.Manufacturer) (*domain.Manufacturer, error)
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	GetSupplier(ctx context.Context, id string) (*domain.Supplier, error)
	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
}

type BatchStore interface {
	CreateBatch(ctx context.Context, batch domain.Batch) (*domain.Batch, error)
	GetBatch(ctx context.Context, id string) (*domain.Batch, error)
	ListBatches(ctx context.Context, filter domain.BatchFilter) ([]domain.Batch, error)
}

type CustomerStore interface {
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	ListCustomers(ctx context.Context, search string, limit int) ([]domain.Customer, error)
}

// SaleStore owns the only writes to batch quantities and customer balances.
// CommitSale must apply the whole draft or nothing.
type SaleStore interface {
	CommitSale(ctx context.Context, draft domain.SaleDraft) (*domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error)
}

type ReportStore interface {
	GetInventoryStats(ctx context.Context, today time.Time, nearExpiryDays int) (domain.InventoryStats, error)
	ListLowStock(ctx context.Context, threshold int, limit int) ([]domain.LowStockMedicine, error)
	SumCompletedSales(ctx context.Context, from time.Time, to time.Time) (domain.SalesTotal, error)
}

type AuditStore interface {
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	GetUser(ctx context.Context, username string) (*domain.UserAccount, error)
}

type Repository interface {
	CatalogStore
	BatchStore
	CustomerStore
	SaleStore
	ReportStore
	AuditStore
	UserStore
}

// InvoiceNumber formats the n-th invoice of a day as INV-YYYYMMDD-NNNN.
func InvoiceNumber(day time.Time, n int) string {
	return fmt.Sprintf("INV-%s-%04d", day.UTC().Format("20060102"), n)
}
