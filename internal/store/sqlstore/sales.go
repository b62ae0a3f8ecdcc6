package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/store"
	"apotekku/backend/internal/xid"
)

const saleSelect = `
	SELECT s.id, s.invoice_number, COALESCE(s.customer_id, '') AS customer_id,
		COALESCE(c.name, '') AS customer_name, s.operator_username, s.subtotal,
		s.discount_amount, s.tax_amount, s.total_amount, s.paid_amount, s.change_amount,
		s.payment_method, s.status, s.notes, s.created_at
	FROM sales s
	LEFT JOIN customers c ON c.id = s.customer_id`

// CommitSale locks the customer and every referenced batch, plans the sale
// against the locked rows and writes all effects in one transaction.
func (s *Store) CommitSale(ctx context.Context, draft domain.SaleDraft) (*domain.Sale, error) {
	if len(draft.Items) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", store.ErrInvalidInput)
	}
	if draft.ID == "" {
		draft.ID = xid.New("sale")
	}
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = time.Now().UTC()
	}
	draft.CreatedAt = draft.CreatedAt.UTC()

	tx, err := s.beginSale(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var customer *domain.Customer
	if draft.CustomerID != "" {
		customer, err = s.getCustomer(ctx, tx, draft.CustomerID, s.forUpdate())
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	batchIDs, medicineIDs := draftRefs(draft.Items)
	batches, err := s.lockBatches(ctx, tx, batchIDs)
	if err != nil {
		return nil, err
	}
	medicines, err := s.loadMedicines(ctx, tx, medicineIDs)
	if err != nil {
		return nil, err
	}

	plan, err := store.PlanSale(draft, medicines, batches, customer, draft.CreatedAt)
	if err != nil {
		return nil, err
	}

	seq, err := s.nextInvoiceSequence(ctx, tx, draft.CreatedAt)
	if err != nil {
		return nil, err
	}
	invoice := store.InvoiceNumber(draft.CreatedAt, seq)

	for _, batchID := range plan.BatchOrder {
		pieces := plan.Decrements[batchID]
		res, err := tx.ExecContext(ctx, s.rebind(`
			UPDATE batches
			SET current_quantity = current_quantity - ?
			WHERE id = ? AND current_quantity >= ?
		`), pieces, batchID, pieces)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			b := batches[batchID]
			return nil, &store.InsufficientStockError{
				MedicineName: b.MedicineName,
				BatchID:      batchID,
				Available:    b.CurrentQuantity,
				Required:     pieces,
			}
		}
	}

	if customer != nil && plan.BalanceDelta.IsPositive() {
		if _, err := tx.ExecContext(ctx, s.rebind(`
			UPDATE customers
			SET current_balance = current_balance + ?
			WHERE id = ?
		`), plan.BalanceDelta, customer.ID); err != nil {
			return nil, err
		}
	}

	sale := store.NewSale(draft, invoice, plan)
	if customer != nil {
		sale.CustomerName = customer.Name
	}

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO sales (
			id, invoice_number, customer_id, operator_username, subtotal, discount_amount,
			tax_amount, total_amount, paid_amount, change_amount, payment_method, status,
			notes, created_at
		)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`), sale.ID, sale.InvoiceNumber, nullIfEmpty(sale.CustomerID), sale.OperatorUsername, sale.Subtotal,
		sale.DiscountAmount, sale.TaxAmount, sale.TotalAmount, sale.PaidAmount, sale.ChangeAmount,
		sale.PaymentMethod, sale.Status, sale.Notes, sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", store.ErrDuplicateInvoice, sale.InvoiceNumber)
		}
		return nil, err
	}

	for i, item := range sale.Items {
		_, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO sale_items (
				id, sale_id, medicine_id, batch_id, line_no, quantity, unit_type, pieces,
				unit_price, total_price, cost_price
			)
			VALUES (?,?,?,?,?,?,?,?,?,?,?)
		`), item.ID, sale.ID, item.MedicineID, item.BatchID, i+1, item.Quantity, item.UnitType, item.Pieces,
			item.UnitPrice, item.TotalPrice, item.CostPrice)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) nextInvoiceSequence(ctx context.Context, tx *sqlx.Tx, at time.Time) (int, error) {
	var seq int
	err := tx.QueryRowxContext(ctx, s.rebind(`
		INSERT INTO invoice_sequences (day, last_value)
		VALUES (?, 1)
		ON CONFLICT (day) DO UPDATE SET last_value = invoice_sequences.last_value + 1
		RETURNING last_value
	`), at.UTC().Format("20060102")).Scan(&seq)
	return seq, err
}

func (s *Store) loadMedicines(ctx context.Context, tx *sqlx.Tx, ids []string) (map[string]domain.Medicine, error) {
	rows := make([]domain.Medicine, 0, len(ids))
	if err := s.selectIn(ctx, tx, &rows, `SELECT `+medicineColumns+` FROM medicines WHERE id IN (?)`, ids); err != nil {
		return nil, err
	}
	medicines := make(map[string]domain.Medicine, len(rows))
	for _, m := range rows {
		normalizeMedicine(&m)
		medicines[m.ID] = m
	}
	return medicines, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	var sale domain.Sale
	err := s.db.GetContext(ctx, &sale, s.rebind(saleSelect+` WHERE s.id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound("sale", id)
		}
		return nil, err
	}
	normalizeSale(&sale)

	items := make([]domain.SaleItem, 0, 8)
	if err := s.db.SelectContext(ctx, &items, s.rebind(`
		SELECT si.id, si.sale_id, si.medicine_id, m.name AS medicine_name, si.batch_id,
			si.quantity, si.unit_type, si.pieces, si.unit_price, si.total_price, si.cost_price
		FROM sale_items si
		JOIN medicines m ON m.id = si.medicine_id
		WHERE si.sale_id = ?
		ORDER BY si.line_no ASC
	`), id); err != nil {
		return nil, err
	}
	for i := range items {
		items[i].UnitPrice = items[i].UnitPrice.Round(2)
		items[i].TotalPrice = items[i].TotalPrice.Round(2)
		items[i].CostPrice = items[i].CostPrice.Round(2)
	}
	sale.Items = items
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	clauses := make([]string, 0, 4)
	args := make([]any, 0, 5)
	if filter.From != nil {
		clauses = append(clauses, "s.created_at >= ?")
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		clauses = append(clauses, "s.created_at < ?")
		args = append(args, filter.To.UTC())
	}
	if filter.CustomerID != "" {
		clauses = append(clauses, "s.customer_id = ?")
		args = append(args, filter.CustomerID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "s.status = ?")
		args = append(args, filter.Status)
	}

	query := saleSelect
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY s.created_at DESC, s.invoice_number DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	sales := make([]domain.Sale, 0, 32)
	if err := s.db.SelectContext(ctx, &sales, s.rebind(query), args...); err != nil {
		return nil, err
	}
	for i := range sales {
		normalizeSale(&sales[i])
	}
	return sales, nil
}

func (s *Store) SumCompletedSales(ctx context.Context, from time.Time, to time.Time) (domain.SalesTotal, error) {
	total := domain.SalesTotal{Revenue: decimal.Zero}
	err := s.db.QueryRowxContext(ctx, s.rebind(`
		SELECT COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM sales
		WHERE status = ? AND created_at >= ? AND created_at < ?
	`), domain.SaleStatusCompleted, from.UTC(), to.UTC()).Scan(&total.Count, &total.Revenue)
	if err != nil {
		return domain.SalesTotal{}, err
	}
	total.Revenue = total.Revenue.Round(2)
	return total, nil
}

// draftRefs returns the distinct batch and medicine IDs of a draft, sorted.
func draftRefs(items []domain.SaleItemRequest) ([]string, []string) {
	batchSet := make(map[string]struct{}, len(items))
	medicineSet := make(map[string]struct{}, len(items))
	for _, item := range items {
		batchSet[item.BatchID] = struct{}{}
		medicineSet[item.MedicineID] = struct{}{}
	}
	return sortedKeys(batchSet), sortedKeys(medicineSet)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func normalizeSale(sale *domain.Sale) {
	sale.Subtotal = sale.Subtotal.Round(2)
	sale.DiscountAmount = sale.DiscountAmount.Round(2)
	sale.TaxAmount = sale.TaxAmount.Round(2)
	sale.TotalAmount = sale.TotalAmount.Round(2)
	sale.PaidAmount = sale.PaidAmount.Round(2)
	sale.ChangeAmount = sale.ChangeAmount.Round(2)
	sale.CreatedAt = sale.CreatedAt.UTC()
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
