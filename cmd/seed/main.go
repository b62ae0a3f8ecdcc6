package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"apotekku/backend/internal/config"
	"apotekku/backend/internal/seed"
	"apotekku/backend/internal/store/memory"
	"apotekku/backend/internal/store/sqlstore"
)

type options struct {
	demo            bool
	medicinesCSV    string
	adminUser       string
	adminPassword   string
	cashierUser     string
	cashierPassword string
}

func main() {
	opts := options{}
	flag.BoolVar(&opts.demo, "demo", false, "copy the demo pharmacy (catalog, stock, customers, accounts)")
	flag.StringVar(&opts.medicinesCSV, "medicines", "", "import a medicine catalog from this CSV file")
	flag.StringVar(&opts.adminUser, "admin-user", "admin", "admin account to create when SEED_ADMIN_PASSWORD is set")
	flag.StringVar(&opts.cashierUser, "cashier-user", "cashier", "cashier account to create when SEED_CASHIER_PASSWORD is set")
	flag.Parse()

	config.LoadDotEnv()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	opts.adminPassword = os.Getenv("SEED_ADMIN_PASSWORD")
	opts.cashierPassword = os.Getenv("SEED_CASHIER_PASSWORD")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := run(ctx, cfg, opts); err != nil {
		log.Fatalf("seed failed: %v", err)
	}
	log.Println("seed finished")
}

func run(ctx context.Context, cfg config.Config, opts options) error {
	db, err := open(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Println("schema up to date")

	if opts.demo {
		counts, err := seed.CopyDemo(ctx, memory.NewSeeded(), db)
		if err != nil {
			return err
		}
		log.Printf("demo data: %s", counts)
	}

	if opts.medicinesCSV != "" {
		file, err := os.Open(opts.medicinesCSV)
		if err != nil {
			return err
		}
		counts, err := seed.ImportMedicines(ctx, file, db)
		_ = file.Close()
		if err != nil {
			return fmt.Errorf("import %s: %w", opts.medicinesCSV, err)
		}
		log.Printf("medicine catalog: %s", counts)
	}

	for _, account := range []struct {
		username string
		password string
		role     string
	}{
		{opts.adminUser, opts.adminPassword, "admin"},
		{opts.cashierUser, opts.cashierPassword, "cashier"},
	} {
		if account.password == "" {
			continue
		}
		created, err := seed.EnsureUser(ctx, db, account.username, account.password, account.role)
		if err != nil {
			return fmt.Errorf("%s account: %w", account.role, err)
		}
		if created {
			log.Printf("created %s account %q", account.role, account.username)
		}
	}
	return nil
}

func open(ctx context.Context, cfg config.Config) (*sqlstore.Store, error) {
	switch {
	case cfg.DatabaseURL != "":
		return sqlstore.NewPostgres(ctx, cfg.DatabaseURL)
	case cfg.SQLitePath != "":
		return sqlstore.NewSQLite(ctx, cfg.SQLitePath)
	default:
		return nil, errors.New("set DATABASE_URL or SQLITE_PATH; the in-memory store seeds itself")
	}
}
