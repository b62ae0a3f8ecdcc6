// Package seed fills an empty database: login accounts, a medicine catalog
// imported from CSV, and the demo pharmacy the in-memory store ships with.
package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/store"
)

// Counts reports how many rows were written and how many were skipped
// because they already existed or could not be parsed.
type Counts struct {
	Created int
	Skipped int
}

func (c *Counts) add(other Counts) {
	c.Created += other.Created
	c.Skipped += other.Skipped
}

func (c Counts) String() string {
	return fmt.Sprintf("%d created, %d skipped", c.Created, c.Skipped)
}

// EnsureUser creates an active account with a bcrypt password unless the
// username is taken.
func EnsureUser(ctx context.Context, users store.UserStore, username string, password string, role string) (bool, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if len(username) < 3 || len(password) < 6 {
		return false, fmt.Errorf("%w: username needs 3+ characters and password 6+", store.ErrInvalidInput)
	}
	if role != "admin" && role != "cashier" {
		return false, fmt.Errorf("%w: unknown role %q", store.ErrInvalidInput, role)
	}

	if _, err := users.GetUser(ctx, username); err == nil {
		return false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, err
	}
	if err := users.CreateUser(ctx, domain.UserAccount{
		Username: username,
		Password: string(hash),
		Role:     role,
		Active:   true,
	}); err != nil {
		return false, err
	}
	return true, nil
}

const maxPackRatio = 10000

var medicineHeader = []string{
	"name", "generic_name", "form", "strength", "manufacturer",
	"general_price", "doctor_price", "prescription_price",
	"units_per_strip", "strips_per_box", "prescription_required",
}

// ImportMedicines reads a CSV catalog with a header row. Columns are matched
// by name; only name, manufacturer and general_price are required. Unknown
// manufacturers are created. Bad rows are logged and skipped.
func ImportMedicines(ctx context.Context, r io.Reader, catalog store.CatalogStore) (Counts, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return Counts{}, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"name", "manufacturer", "general_price"} {
		if _, ok := cols[required]; !ok {
			return Counts{}, fmt.Errorf("%w: missing column %q (known: %s)", store.ErrInvalidInput, required, strings.Join(medicineHeader, ","))
		}
	}

	manufacturers, err := manufacturerIndex(ctx, catalog)
	if err != nil {
		return Counts{}, err
	}
	existing, err := catalog.ListMedicines(ctx, domain.MedicineFilter{IncludeInactive: true})
	if err != nil {
		return Counts{}, err
	}
	known := make(map[string]bool, len(existing))
	for _, m := range existing {
		known[strings.ToLower(m.Name)] = true
	}

	var counts Counts
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			log.Printf("[seed] WARN: line %d: %v", line, err)
			counts.Skipped++
			continue
		}

		field := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		medicine, err := parseMedicine(field)
		if err != nil {
			log.Printf("[seed] WARN: line %d: %v", line, err)
			counts.Skipped++
			continue
		}
		if known[strings.ToLower(medicine.Name)] {
			counts.Skipped++
			continue
		}

		mfrName := field("manufacturer")
		mfrID, ok := manufacturers[strings.ToLower(mfrName)]
		if !ok {
			created, err := catalog.CreateManufacturer(ctx, domain.Manufacturer{Name: mfrName, Active: true})
			if err != nil {
				return counts, fmt.Errorf("create manufacturer %s: %w", mfrName, err)
			}
			mfrID = created.ID
			manufacturers[strings.ToLower(mfrName)] = mfrID
		}
		medicine.ManufacturerID = mfrID

		if _, err := catalog.CreateMedicine(ctx, medicine); err != nil {
			if errors.Is(err, store.ErrInvalidInput) {
				log.Printf("[seed] WARN: line %d: %v", line, err)
				counts.Skipped++
				continue
			}
			return counts, fmt.Errorf("line %d: %w", line, err)
		}
		known[strings.ToLower(medicine.Name)] = true
		counts.Created++
	}
	return counts, nil
}

func parseMedicine(field func(string) string) (domain.Medicine, error) {
	m := domain.Medicine{
		Name:                 field("name"),
		GenericName:          field("generic_name"),
		Form:                 field("form"),
		Strength:             field("strength"),
		PrescriptionRequired: strings.ToLower(field("prescription_required")),
		UnitsPerStrip:        1,
		StripsPerBox:         1,
		Active:               true,
	}
	if m.Name == "" {
		return m, errors.New("name is empty")
	}
	if field("manufacturer") == "" {
		return m, errors.New("manufacturer is empty")
	}

	general, err := parsePrice(field("general_price"), decimal.Zero)
	if err != nil || !general.IsPositive() {
		return m, fmt.Errorf("general_price %q is not a positive amount", field("general_price"))
	}
	m.GeneralPrice = general
	if m.DoctorPrice, err = parsePrice(field("doctor_price"), general); err != nil {
		return m, err
	}
	if m.PrescriptionPrice, err = parsePrice(field("prescription_price"), general); err != nil {
		return m, err
	}

	if m.UnitsPerStrip, err = parseRatio(field("units_per_strip")); err != nil {
		return m, err
	}
	if m.StripsPerBox, err = parseRatio(field("strips_per_box")); err != nil {
		return m, err
	}

	switch m.PrescriptionRequired {
	case "":
		m.PrescriptionRequired = domain.PrescriptionNo
	case domain.PrescriptionNo, domain.PrescriptionYes, domain.PrescriptionControlled:
	default:
		return m, fmt.Errorf("prescription_required %q is not no, yes or controlled", m.PrescriptionRequired)
	}
	return m, nil
}

func parsePrice(raw string, fallback decimal.Decimal) (decimal.Decimal, error) {
	if raw == "" {
		return fallback, nil
	}
	val, err := decimal.NewFromString(raw)
	if err != nil || val.IsNegative() {
		return decimal.Zero, fmt.Errorf("price %q is not a non-negative amount", raw)
	}
	return val.Round(2), nil
}

func parseRatio(raw string) (int, error) {
	if raw == "" {
		return 1, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 1 || val > maxPackRatio {
		return 0, fmt.Errorf("pack ratio %q must be a whole number from 1 to %d", raw, maxPackRatio)
	}
	return val, nil
}

func manufacturerIndex(ctx context.Context, catalog store.CatalogStore) (map[string]string, error) {
	list, err := catalog.ListManufacturers(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[string]string, len(list))
	for _, m := range list {
		index[strings.ToLower(m.Name)] = m.ID
	}
	return index, nil
}

// CopyDemo copies catalog, stock, customers and accounts from src into dst,
// keeping IDs. Rows that already exist in dst are skipped, so running it twice
// is harmless. Batches land as fresh receipts of their remaining stock.
func CopyDemo(ctx context.Context, src store.Repository, dst store.Repository) (Counts, error) {
	var total Counts
	steps := []struct {
		name string
		run  func() (Counts, error)
	}{
		{"manufacturers", func() (Counts, error) { return copyManufacturers(ctx, src, dst) }},
		{"suppliers", func() (Counts, error) { return copySuppliers(ctx, src, dst) }},
		{"medicines", func() (Counts, error) { return copyMedicines(ctx, src, dst) }},
		{"batches", func() (Counts, error) { return copyBatches(ctx, src, dst) }},
		{"customers", func() (Counts, error) { return copyCustomers(ctx, src, dst) }},
		{"users", func() (Counts, error) { return copyUsers(ctx, src, dst) }},
	}
	for _, step := range steps {
		counts, err := step.run()
		if err != nil {
			return total, fmt.Errorf("copy %s: %w", step.name, err)
		}
		log.Printf("[seed] %s: %s", step.name, counts)
		total.add(counts)
	}
	return total, nil
}

// tally treats ErrInvalidInput from a create call as "already there".
func tally(counts *Counts, err error) error {
	switch {
	case err == nil:
		counts.Created++
	case errors.Is(err, store.ErrInvalidInput):
		counts.Skipped++
	default:
		return err
	}
	return nil
}

func copyManufacturers(ctx context.Context, src, dst store.Repository) (Counts, error) {
	var counts Counts
	list, err := src.ListManufacturers(ctx)
	if err != nil {
		return counts, err
	}
	for _, m := range list {
		if _, err := dst.GetManufacturer(ctx, m.ID); err == nil {
			counts.Skipped++
			continue
		}
		_, err := dst.CreateManufacturer(ctx, m)
		if err := tally(&counts, err); err != nil {
			return counts, err
		}
	}
	return counts, nil
}

func copySuppliers(ctx context.Context, src, dst store.Repository) (Counts, error) {
	var counts Counts
	list, err := src.ListSuppliers(ctx)
	if err != nil {
		return counts, err
	}
	for _, s := range list {
		if _, err := dst.GetSupplier(ctx, s.ID); err == nil {
			counts.Skipped++
			continue
		}
		_, err := dst.CreateSupplier(ctx, s)
		if err := tally(&counts, err); err != nil {
			return counts, err
		}
	}
	return counts, nil
}

func copyMedicines(ctx context.Context, src, dst store.Repository) (Counts, error) {
	var counts Counts
	list, err := src.ListMedicines(ctx, domain.MedicineFilter{IncludeInactive: true})
	if err != nil {
		return counts, err
	}
	for _, m := range list {
		_, err := dst.CreateMedicine(ctx, m)
		if err := tally(&counts, err); err != nil {
			return counts, err
		}
	}
	return counts, nil
}

func copyBatches(ctx context.Context, src, dst store.Repository) (Counts, error) {
	var counts Counts
	list, err := src.ListBatches(ctx, domain.BatchFilter{})
	if err != nil {
		return counts, err
	}
	for _, b := range list {
		if b.CurrentQuantity < 1 {
			counts.Skipped++
			continue
		}
		b.InitialQuantity = b.CurrentQuantity
		b.MedicineName = ""
		_, err := dst.CreateBatch(ctx, b)
		if err := tally(&counts, err); err != nil {
			return counts, err
		}
	}
	return counts, nil
}

func copyCustomers(ctx context.Context, src, dst store.Repository) (Counts, error) {
	var counts Counts
	list, err := src.ListCustomers(ctx, "", 0)
	if err != nil {
		return counts, err
	}
	for _, c := range list {
		if _, err := dst.GetCustomer(ctx, c.ID); err == nil {
			counts.Skipped++
			continue
		}
		_, err := dst.CreateCustomer(ctx, c)
		if err := tally(&counts, err); err != nil {
			return counts, err
		}
	}
	return counts, nil
}

func copyUsers(ctx context.Context, src, dst store.Repository) (Counts, error) {
	var counts Counts
	list, err := src.ListUsers(ctx)
	if err != nil {
		return counts, err
	}
	for _, u := range list {
		err := dst.CreateUser(ctx, u)
		if err := tally(&counts, err); err != nil {
			return counts, err
		}
	}
	return counts, nil
}
