package sqlstore

import (
	"context"
	"fmt"
	"strings"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS manufacturers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		country TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS suppliers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		contact_person TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS medicines (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		generic_name TEXT NOT NULL DEFAULT '',
		form TEXT NOT NULL DEFAULT '',
		strength TEXT NOT NULL DEFAULT '',
		manufacturer_id TEXT NOT NULL REFERENCES manufacturers(id),
		general_price NUMERIC(14,2) NOT NULL,
		doctor_price NUMERIC(14,2) NOT NULL,
		prescription_price NUMERIC(14,2) NOT NULL,
		units_per_strip INTEGER NOT NULL CHECK (units_per_strip >= 1),
		strips_per_box INTEGER NOT NULL CHECK (strips_per_box >= 1),
		prescription_required TEXT NOT NULL DEFAULT 'no',
		description TEXT NOT NULL DEFAULT '',
		usage_instructions TEXT NOT NULL DEFAULT '',
		side_effects TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_medicines_name ON medicines (name)`,
	`CREATE TABLE IF NOT EXISTS batches (
		id TEXT PRIMARY KEY,
		batch_number TEXT NOT NULL,
		medicine_id TEXT NOT NULL REFERENCES medicines(id),
		supplier_id TEXT NOT NULL REFERENCES suppliers(id),
		manufacture_date DATE,
		expiry_date DATE NOT NULL,
		purchase_price NUMERIC(14,2) NOT NULL,
		initial_quantity INTEGER NOT NULL CHECK (initial_quantity >= 1),
		current_quantity INTEGER NOT NULL CHECK (current_quantity >= 0 AND current_quantity <= initial_quantity),
		is_consignment BOOLEAN NOT NULL DEFAULT FALSE,
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_batches_medicine_expiry ON batches (medicine_id, expiry_date)`,
	`CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT 'general',
		discount_percentage NUMERIC(5,2) NOT NULL DEFAULT 0,
		credit_limit NUMERIC(14,2) NOT NULL DEFAULT 0,
		current_balance NUMERIC(14,2) NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		invoice_number TEXT NOT NULL,
		customer_id TEXT REFERENCES customers(id),
		operator_username TEXT NOT NULL DEFAULT '',
		subtotal NUMERIC(14,2) NOT NULL,
		discount_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
		tax_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
		total_amount NUMERIC(14,2) NOT NULL,
		paid_amount NUMERIC(14,2) NOT NULL,
		change_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
		payment_method TEXT NOT NULL,
		status TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_sales_invoice_number ON sales (invoice_number)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_created_at ON sales (created_at)`,
	`CREATE TABLE IF NOT EXISTS sale_items (
		id TEXT PRIMARY KEY,
		sale_id TEXT NOT NULL REFERENCES sales(id) ON DELETE CASCADE,
		medicine_id TEXT NOT NULL REFERENCES medicines(id),
		batch_id TEXT NOT NULL REFERENCES batches(id),
		line_no INTEGER NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity >= 1),
		unit_type TEXT NOT NULL,
		pieces INTEGER NOT NULL,
		unit_price NUMERIC(14,2) NOT NULL,
		total_price NUMERIC(14,2) NOT NULL,
		cost_price NUMERIC(14,2) NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items (sale_id)`,
	`CREATE TABLE IF NOT EXISTS invoice_sequences (
		day TEXT PRIMARY KEY,
		last_value INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id TEXT PRIMARY KEY,
		actor_username TEXT NOT NULL,
		actor_role TEXT NOT NULL,
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs (created_at)`,
	`CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		password TEXT NOT NULL,
		role TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate creates the tables the store needs. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	// modernc only decodes columns declared DATE, DATETIME or TIMESTAMP.
	replacer := strings.NewReplacer()
	if s.dialect == dialectSQLite {
		replacer = strings.NewReplacer("TIMESTAMPTZ", "TIMESTAMP")
	}
	for i, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, replacer.Replace(stmt)); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}
	return nil
}
