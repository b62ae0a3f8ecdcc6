package sqlstore

import (
	"context"
	"time"

	"apotekku/backend/internal/domain"
)

func (s *Store) GetInventoryStats(ctx context.Context, today time.Time, nearExpiryDays int) (domain.InventoryStats, error) {
	day := domain.DateOf(today)
	windowEnd := day.AddDate(0, 0, nearExpiryDays)

	var stats domain.InventoryStats
	if err := s.db.QueryRowxContext(ctx, `
		SELECT COUNT(*) FROM medicines WHERE active = TRUE
	`).Scan(&stats.ActiveMedicines); err != nil {
		return domain.InventoryStats{}, err
	}
	err := s.db.QueryRowxContext(ctx, s.rebind(`
		SELECT
			COALESCE(SUM(CASE WHEN current_quantity > 0 THEN current_quantity ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN expiry_date < ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN expiry_date >= ? AND expiry_date <= ? THEN 1 ELSE 0 END), 0)
		FROM batches
	`), day, day, windowEnd).Scan(&stats.TotalStock, &stats.ExpiredBatches, &stats.NearExpiryBatches)
	if err != nil {
		return domain.InventoryStats{}, err
	}
	return stats, nil
}

func (s *Store) ListLowStock(ctx context.Context, threshold int, limit int) ([]domain.LowStockMedicine, error) {
	query := `
		SELECT m.id AS medicine_id, m.name, m.form, COALESCE(SUM(b.current_quantity), 0) AS total_stock
		FROM medicines m
		LEFT JOIN batches b ON b.medicine_id = m.id
		WHERE m.active = TRUE
		GROUP BY m.id, m.name, m.form
		HAVING COALESCE(SUM(b.current_quantity), 0) < ?
		ORDER BY total_stock ASC, m.name ASC`
	args := []any{threshold}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	result := make([]domain.LowStockMedicine, 0, 16)
	if err := s.db.SelectContext(ctx, &result, s.rebind(query), args...); err != nil {
		return nil, err
	}
	return result, nil
}
