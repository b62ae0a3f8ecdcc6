package service

import (
	"context"
	"fmt"
	"strings"

	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/pricing"
)

const (
	BatchStatusInStock    = "in_stock"
	BatchStatusExpired    = "expired"
	BatchStatusNearExpiry = "near_expiry"
)

type BatchQuery struct {
	MedicineID  string
	Status      string
	Consignment *bool
	Limit       int
}

func (s *Service) ListBatches(ctx context.Context, q BatchQuery) ([]domain.Batch, error) {
	filter := domain.BatchFilter{
		Consignment: q.Consignment,
		Limit:       q.Limit,
	}
	if id := strings.TrimSpace(q.MedicineID); id != "" {
		filter.MedicineIDs = []string{id}
	}

	today := domain.DateOf(s.now())
	switch strings.TrimSpace(q.Status) {
	case "":
	case BatchStatusInStock:
		filter.InStockOnly = true
	case BatchStatusExpired:
		yesterday := today.AddDate(0, 0, -1)
		filter.ExpiryTo = &yesterday
		filter.OrderByExpiry = true
	case BatchStatusNearExpiry:
		windowEnd := today.AddDate(0, 0, s.nearExpiryDays)
		filter.ExpiryFrom = &today
		filter.ExpiryTo = &windowEnd
		filter.OrderByExpiry = true
	default:
		return nil, invalid("status must be in_stock, expired or near_expiry")
	}

	return s.repo.ListBatches(ctx, filter)
}

// CreateBatch receives new stock. The batch starts full.
func (s *Service) CreateBatch(ctx context.Context, req domain.BatchCreateRequest) (*domain.Batch, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	batch := domain.Batch{
		BatchNumber:     strings.TrimSpace(req.BatchNumber),
		MedicineID:      strings.TrimSpace(req.MedicineID),
		SupplierID:      strings.TrimSpace(req.SupplierID),
		PurchasePrice:   pricing.Round2(req.PurchasePrice),
		InitialQuantity: req.Quantity,
		CurrentQuantity: req.Quantity,
		IsConsignment:   req.IsConsignment,
		Notes:           strings.TrimSpace(req.Notes),
	}
	if batch.BatchNumber == "" || batch.MedicineID == "" || batch.SupplierID == "" {
		return nil, invalid("batch_number, medicine_id and supplier_id are required")
	}
	if batch.InitialQuantity < 1 {
		return nil, invalid("quantity must be at least 1")
	}
	if batch.PurchasePrice.IsNegative() {
		return nil, invalid("purchase_price must not be negative")
	}

	if strings.TrimSpace(req.ExpiryDate) == "" {
		return nil, invalid("expiry_date is required")
	}
	expiry, err := parseDate(req.ExpiryDate)
	if err != nil {
		return nil, err
	}
	batch.ExpiryDate = expiry

	if strings.TrimSpace(req.ManufactureDate) != "" {
		made, err := parseDate(req.ManufactureDate)
		if err != nil {
			return nil, err
		}
		if made.After(expiry) {
			return nil, invalid("manufacture_date must not be after expiry_date")
		}
		batch.ManufactureDate = &made
	}

	created, err := s.repo.CreateBatch(ctx, batch)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "batch_create", "batch", created.ID,
		fmt.Sprintf("medicine=%s batch_number=%s quantity=%d expiry=%s", created.MedicineID, created.BatchNumber, created.InitialQuantity, created.ExpiryDate.Format("2006-01-02")))
	s.dashboard.Invalidate(ctx, s.now())
	return created, nil
}
