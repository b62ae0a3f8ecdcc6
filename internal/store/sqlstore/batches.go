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

const batchSelect = `
	SELECT b.id, b.batch_number, b.medicine_id, m.name AS medicine_name, b.supplier_id,
		b.manufacture_date, b.expiry_date, b.purchase_price, b.initial_quantity,
		b.current_quantity, b.is_consignment, b.notes, b.created_at
	FROM batches b
	JOIN medicines m ON m.id = b.medicine_id`

func (s *Store) CreateBatch(ctx context.Context, batch domain.Batch) (*domain.Batch, error) {
	if _, err := s.GetMedicine(ctx, batch.MedicineID); err != nil {
		return nil, err
	}
	if _, err := s.GetSupplier(ctx, batch.SupplierID); err != nil {
		return nil, err
	}
	if batch.InitialQuantity < 1 || batch.CurrentQuantity != batch.InitialQuantity {
		return nil, store.ErrInvalidInput
	}
	if batch.ID == "" {
		batch.ID = xid.New("bat")
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO batches (
			id, batch_number, medicine_id, supplier_id, manufacture_date, expiry_date,
			purchase_price, initial_quantity, current_quantity, is_consignment, notes, created_at
		)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
	`), batch.ID, batch.BatchNumber, batch.MedicineID, batch.SupplierID, nullDate(batch.ManufactureDate),
		domain.DateOf(batch.ExpiryDate), batch.PurchasePrice, batch.InitialQuantity, batch.CurrentQuantity,
		batch.IsConsignment, batch.Notes, batch.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: batch %s already exists", store.ErrInvalidInput, batch.ID)
		}
		return nil, err
	}
	return s.GetBatch(ctx, batch.ID)
}

func (s *Store) GetBatch(ctx context.Context, id string) (*domain.Batch, error) {
	var b domain.Batch
	err := s.db.GetContext(ctx, &b, s.rebind(batchSelect+` WHERE b.id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound("batch", id)
		}
		return nil, err
	}
	normalizeBatch(&b)
	return &b, nil
}

func (s *Store) ListBatches(ctx context.Context, filter domain.BatchFilter) ([]domain.Batch, error) {
	clauses := make([]string, 0, 5)
	args := make([]any, 0, 6)
	if len(filter.MedicineIDs) > 0 {
		clauses = append(clauses, "b.medicine_id IN (?)")
		args = append(args, filter.MedicineIDs)
	}
	if filter.InStockOnly {
		clauses = append(clauses, "b.current_quantity > 0")
	}
	if filter.ExpiryFrom != nil {
		clauses = append(clauses, "b.expiry_date >= ?")
		args = append(args, domain.DateOf(*filter.ExpiryFrom))
	}
	if filter.ExpiryTo != nil {
		clauses = append(clauses, "b.expiry_date <= ?")
		args = append(args, domain.DateOf(*filter.ExpiryTo))
	}
	if filter.Consignment != nil {
		clauses = append(clauses, "b.is_consignment = ?")
		args = append(args, *filter.Consignment)
	}

	query := batchSelect
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	if filter.OrderByExpiry {
		query += " ORDER BY b.expiry_date ASC, b.id ASC"
	} else {
		query += " ORDER BY b.created_at DESC, b.id ASC"
	}
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	batches := make([]domain.Batch, 0, 32)
	if err := s.selectIn(ctx, s.db, &batches, query, args...); err != nil {
		return nil, err
	}
	for i := range batches {
		normalizeBatch(&batches[i])
	}
	return batches, nil
}

// lockBatches loads the given batches inside a sale transaction, in ascending
// ID order so concurrent sales acquire row locks in the same sequence.
func (s *Store) lockBatches(ctx context.Context, tx *sqlx.Tx, ids []string) (map[string]domain.Batch, error) {
	rows := make([]domain.Batch, 0, len(ids))
	query := batchSelect + ` WHERE b.id IN (?) ORDER BY b.id ASC`
	if s.dialect == dialectPostgres {
		query += " FOR UPDATE OF b"
	}
	if err := s.selectIn(ctx, tx, &rows, query, ids); err != nil {
		return nil, err
	}
	batches := make(map[string]domain.Batch, len(rows))
	for _, b := range rows {
		normalizeBatch(&b)
		batches[b.ID] = b
	}
	return batches, nil
}

func normalizeBatch(b *domain.Batch) {
	b.ExpiryDate = domain.DateOf(b.ExpiryDate)
	if b.ManufactureDate != nil {
		made := domain.DateOf(*b.ManufactureDate)
		b.ManufactureDate = &made
	}
	b.PurchasePrice = b.PurchasePrice.Round(2)
	b.CreatedAt = b.CreatedAt.UTC()
}
