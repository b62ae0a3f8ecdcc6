package seed

import (
	"context"
	"errors"
	"strings"
	"testing"

	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/store"
	"apotekku/backend/internal/store/memory"
	"apotekku/backend/internal/store/sqlstore"
)

func newSQLite(t *testing.T) *sqlstore.Store {
	t.Helper()
	ctx := context.Background()
	s, err := sqlstore.NewSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

const catalogCSV = `name,generic_name,form,strength,manufacturer,general_price,doctor_price,prescription_price,units_per_strip,strips_per_box,prescription_required
Ibuprofen 400mg,Ibuprofen,tablet,400mg,Kalbe Farma,900,800,850,10,10,no
Loratadine 10mg,Loratadine,tablet,10mg,kalbe farma,1100,,,10,3,
Broken Row,,tablet,,Sanbe Farma,abc,,,10,10,no
Metformin 500mg,Metformin,tablet,500mg,Sanbe Farma,400,350,380,0,10,yes
`

func TestImportMedicinesCreatesRowsAndManufacturers(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()

	counts, err := ImportMedicines(ctx, strings.NewReader(catalogCSV), s)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if counts.Created != 2 || counts.Skipped != 2 {
		t.Fatalf("expected 2 created and 2 skipped, got %+v", counts)
	}

	mfrs, err := s.ListManufacturers(ctx)
	if err != nil {
		t.Fatalf("list manufacturers: %v", err)
	}
	if len(mfrs) != 1 || mfrs[0].Name != "Kalbe Farma" {
		t.Fatalf("expected one case-insensitive manufacturer, got %+v", mfrs)
	}

	meds, err := s.ListMedicines(ctx, domain.MedicineFilter{Search: "loratadine"})
	if err != nil || len(meds) != 1 {
		t.Fatalf("expected loratadine, got %+v (%v)", meds, err)
	}
	lora := meds[0]
	if !lora.DoctorPrice.Equal(lora.GeneralPrice) || !lora.PrescriptionPrice.Equal(lora.GeneralPrice) {
		t.Fatalf("expected missing tiers to fall back to general price, got %+v", lora)
	}
	if lora.StripsPerBox != 3 || lora.PrescriptionRequired != domain.PrescriptionNo {
		t.Fatalf("unexpected loratadine row %+v", lora)
	}

	again, err := ImportMedicines(ctx, strings.NewReader(catalogCSV), s)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if again.Created != 0 {
		t.Fatalf("expected re-import to create nothing, got %+v", again)
	}
}

func TestImportMedicinesRequiresColumns(t *testing.T) {
	s := newSQLite(t)

	_, err := ImportMedicines(context.Background(), strings.NewReader("name,form\nParacetamol,tablet\n"), s)
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected missing columns to be rejected, got %v", err)
	}
}

func TestEnsureUserIsIdempotent(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()

	created, err := EnsureUser(ctx, s, "Owner", "owner-pass", "admin")
	if err != nil || !created {
		t.Fatalf("expected owner to be created, got %v %v", created, err)
	}
	created, err = EnsureUser(ctx, s, "owner", "another-pass", "admin")
	if err != nil || created {
		t.Fatalf("expected existing owner to be left alone, got %v %v", created, err)
	}

	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 1 || !strings.HasPrefix(users[0].Password, "$2") {
		t.Fatalf("expected one hashed account, got %+v", users)
	}

	if _, err := EnsureUser(ctx, s, "clerk", "pass1234", "auditor"); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected unknown role to be rejected, got %v", err)
	}
}

func TestCopyDemoFillsSQLStore(t *testing.T) {
	src := memory.NewSeeded()
	dst := newSQLite(t)
	ctx := context.Background()

	counts, err := CopyDemo(ctx, src, dst)
	if err != nil {
		t.Fatalf("copy demo: %v", err)
	}
	if counts.Created == 0 {
		t.Fatalf("expected rows to be created")
	}

	batch, err := dst.GetBatch(ctx, "bat-paracetamol-b")
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if batch.CurrentQuantity != 120 || batch.InitialQuantity != 120 {
		t.Fatalf("expected remaining stock as a fresh batch, got %+v", batch)
	}

	klinik, err := dst.GetCustomer(ctx, "cus-klinik")
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	original, err := src.GetCustomer(ctx, "cus-klinik")
	if err != nil {
		t.Fatalf("get source customer: %v", err)
	}
	if !klinik.CurrentBalance.Equal(original.CurrentBalance) {
		t.Fatalf("expected balance to be copied, got %s", klinik.CurrentBalance)
	}

	inactive, err := dst.GetMedicine(ctx, "med-ranitidine")
	if err != nil || inactive.Active {
		t.Fatalf("expected inactive medicine to be copied as inactive, got %+v (%v)", inactive, err)
	}

	again, err := CopyDemo(ctx, src, dst)
	if err != nil {
		t.Fatalf("second copy: %v", err)
	}
	if again.Created != 0 {
		t.Fatalf("expected second copy to be a no-op, got %+v", again)
	}
}

func TestImportMedicinesSkipsHugePackRatio(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()

	csv := "name,manufacturer,general_price,units_per_strip,strips_per_box\n" +
		"Giant Pack,Kalbe Farma,500,10,100000\n" +
		"Normal Pack,Kalbe Farma,500,10,10000\n"
	counts, err := ImportMedicines(ctx, strings.NewReader(csv), s)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if counts.Created != 1 || counts.Skipped != 1 {
		t.Fatalf("expected the oversized pack to be skipped, got %+v", counts)
	}
	meds, err := s.ListMedicines(ctx, domain.MedicineFilter{Search: "giant"})
	if err != nil || len(meds) != 0 {
		t.Fatalf("expected no giant pack row, got %+v (%v)", meds, err)
	}
}
