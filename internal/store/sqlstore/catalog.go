package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/store"
	"apotekku/backend/internal/xid"
)

const medicineColumns = `id, name, generic_name, form, strength, manufacturer_id,
	general_price, doctor_price, prescription_price, units_per_strip, strips_per_box,
	prescription_required, description, usage_instructions, side_effects, active,
	created_at, updated_at`

func (s *Store) ListMedicines(ctx context.Context, filter domain.MedicineFilter) ([]domain.Medicine, error) {
	clauses := make([]string, 0, 4)
	args := make([]any, 0, 5)
	if !filter.IncludeInactive {
		clauses = append(clauses, "active = TRUE")
	}
	if filter.Form != "" {
		clauses = append(clauses, "LOWER(form) = ?")
		args = append(args, strings.ToLower(filter.Form))
	}
	if filter.ManufacturerID != "" {
		clauses = append(clauses, "manufacturer_id = ?")
		args = append(args, filter.ManufacturerID)
	}
	if strings.TrimSpace(filter.Search) != "" {
		pattern := likePattern(filter.Search)
		clauses = append(clauses, "(LOWER(name) LIKE ? OR LOWER(generic_name) LIKE ?)")
		args = append(args, pattern, pattern)
	}

	query := `SELECT ` + medicineColumns + ` FROM medicines`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY name ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	medicines := make([]domain.Medicine, 0, 64)
	if err := s.db.SelectContext(ctx, &medicines, s.rebind(query), args...); err != nil {
		return nil, err
	}
	for i := range medicines {
		normalizeMedicine(&medicines[i])
	}
	return medicines, nil
}

func (s *Store) GetMedicine(ctx context.Context, id string) (*domain.Medicine, error) {
	var m domain.Medicine
	err := s.db.GetContext(ctx, &m, s.rebind(`SELECT `+medicineColumns+` FROM medicines WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound("medicine", id)
		}
		return nil, err
	}
	normalizeMedicine(&m)
	return &m, nil
}

func (s *Store) CreateMedicine(ctx context.Context, medicine domain.Medicine) (*domain.Medicine, error) {
	if medicine.Name == "" || medicine.UnitsPerStrip < 1 || medicine.StripsPerBox < 1 {
		return nil, store.ErrInvalidInput
	}
	if _, err := s.GetManufacturer(ctx, medicine.ManufacturerID); err != nil {
		return nil, err
	}
	if medicine.ID == "" {
		medicine.ID = xid.New("med")
	}
	now := time.Now().UTC()
	if medicine.CreatedAt.IsZero() {
		medicine.CreatedAt = now
	}
	medicine.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO medicines (`+medicineColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`), medicine.ID, medicine.Name, medicine.GenericName, medicine.Form, medicine.Strength, medicine.ManufacturerID,
		medicine.GeneralPrice, medicine.DoctorPrice, medicine.PrescriptionPrice, medicine.UnitsPerStrip, medicine.StripsPerBox,
		medicine.PrescriptionRequired, medicine.Description, medicine.UsageInstructions, medicine.SideEffects, medicine.Active,
		medicine.CreatedAt, medicine.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: medicine %s already exists", store.ErrInvalidInput, medicine.ID)
		}
		return nil, err
	}
	return &medicine, nil
}

func (s *Store) UpdateMedicine(ctx context.Context, medicine domain.Medicine) (*domain.Medicine, error) {
	medicine.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE medicines
		SET name = ?, generic_name = ?, form = ?, strength = ?, general_price = ?, doctor_price = ?,
			prescription_price = ?, units_per_strip = ?, strips_per_box = ?, prescription_required = ?,
			description = ?, usage_instructions = ?, side_effects = ?, active = ?, updated_at = ?
		WHERE id = ?
	`), medicine.Name, medicine.GenericName, medicine.Form, medicine.Strength, medicine.GeneralPrice, medicine.DoctorPrice,
		medicine.PrescriptionPrice, medicine.UnitsPerStrip, medicine.StripsPerBox, medicine.PrescriptionRequired,
		medicine.Description, medicine.UsageInstructions, medicine.SideEffects, medicine.Active, medicine.UpdatedAt,
		medicine.ID)
	if err != nil {
		return nil, err
	}
	if err := expectAffected(res, "medicine", medicine.ID); err != nil {
		return nil, err
	}
	return s.GetMedicine(ctx, medicine.ID)
}

func (s *Store) ListManufacturers(ctx context.Context) ([]domain.Manufacturer, error) {
	manufacturers := make([]domain.Manufacturer, 0, 16)
	if err := s.db.SelectContext(ctx, &manufacturers, `
		SELECT id, name, country, active, created_at
		FROM manufacturers
		ORDER BY name ASC
	`); err != nil {
		return nil, err
	}
	for i := range manufacturers {
		manufacturers[i].CreatedAt = manufacturers[i].CreatedAt.UTC()
	}
	return manufacturers, nil
}

func (s *Store) GetManufacturer(ctx context.Context, id string) (*domain.Manufacturer, error) {
	var m domain.Manufacturer
	err := s.db.GetContext(ctx, &m, s.rebind(`
		SELECT id, name, country, active, created_at
		FROM manufacturers
		WHERE id = ?
	`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound("manufacturer", id)
		}
		return nil, err
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}

func (s *Store) CreateManufacturer(ctx context.Context, manufacturer domain.Manufacturer) (*domain.Manufacturer, error) {
	if manufacturer.ID == "" {
		manufacturer.ID = xid.New("mfr")
	}
	if manufacturer.CreatedAt.IsZero() {
		manufacturer.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO manufacturers (id, name, country, active, created_at)
		VALUES (?,?,?,?,?)
	`), manufacturer.ID, manufacturer.Name, manufacturer.Country, manufacturer.Active, manufacturer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: manufacturer %s already exists", store.ErrInvalidInput, manufacturer.ID)
		}
		return nil, err
	}
	return &manufacturer, nil
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	suppliers := make([]domain.Supplier, 0, 16)
	if err := s.db.SelectContext(ctx, &suppliers, `
		SELECT id, name, contact_person, phone, email, address, active, created_at
		FROM suppliers
		ORDER BY name ASC
	`); err != nil {
		return nil, err
	}
	for i := range suppliers {
		suppliers[i].CreatedAt = suppliers[i].CreatedAt.UTC()
	}
	return suppliers, nil
}

func (s *Store) GetSupplier(ctx context.Context, id string) (*domain.Supplier, error) {
	var sup domain.Supplier
	err := s.db.GetContext(ctx, &sup, s.rebind(`
		SELECT id, name, contact_person, phone, email, address, active, created_at
		FROM suppliers
		WHERE id = ?
	`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound("supplier", id)
		}
		return nil, err
	}
	sup.CreatedAt = sup.CreatedAt.UTC()
	return &sup, nil
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO suppliers (id, name, contact_person, phone, email, address, active, created_at)
		VALUES (?,?,?,?,?,?,?,?)
	`), supplier.ID, supplier.Name, supplier.ContactPerson, supplier.Phone, supplier.Email, supplier.Address,
		supplier.Active, supplier.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: supplier %s already exists", store.ErrInvalidInput, supplier.ID)
		}
		return nil, err
	}
	return &supplier, nil
}

func normalizeMedicine(m *domain.Medicine) {
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	m.GeneralPrice = m.GeneralPrice.Round(2)
	m.DoctorPrice = m.DoctorPrice.Round(2)
	m.PrescriptionPrice = m.PrescriptionPrice.Round(2)
}
