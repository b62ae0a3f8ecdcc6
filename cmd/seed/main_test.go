package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"apotekku/backend/internal/config"
	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/store/sqlstore"
)

func TestRunRequiresDatabase(t *testing.T) {
	if err := run(context.Background(), config.Config{}, options{}); err == nil {
		t.Fatalf("expected an error without a database setting")
	}
}

func TestRunSeedsSQLiteFile(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "apotekku.db")
	csvPath := filepath.Join(dir, "catalog.csv")
	csv := "name,manufacturer,general_price\nVitamin C 500mg,Kimia Farma,300\n"
	if err := os.WriteFile(csvPath, []byte(csv), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	opts := options{
		demo:          true,
		medicinesCSV:  csvPath,
		adminUser:     "owner",
		adminPassword: "owner-pass",
		cashierUser:   "cashier",
	}
	ctx := context.Background()
	if err := run(ctx, config.Config{SQLitePath: dbPath}, opts); err != nil {
		t.Fatalf("run: %v", err)
	}

	db, err := sqlstore.NewSQLite(ctx, dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	meds, err := db.ListMedicines(ctx, domain.MedicineFilter{Search: "vitamin"})
	if err != nil || len(meds) != 1 {
		t.Fatalf("expected imported medicine, got %+v (%v)", meds, err)
	}
	if meds[0].ManufacturerID != "mfr-kimia" {
		t.Fatalf("expected demo manufacturer to be reused, got %s", meds[0].ManufacturerID)
	}

	users, err := db.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	names := map[string]bool{}
	for _, u := range users {
		names[u.Username] = true
	}
	if !names["owner"] || !names["admin"] || !names["cashier"] {
		t.Fatalf("expected demo accounts plus owner, got %+v", names)
	}
}
