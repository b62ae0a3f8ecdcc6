package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/store"
	"apotekku/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	manufacturers   map[string]domain.Manufacturer
	suppliers       map[string]domain.Supplier
	medicines       map[string]domain.Medicine
	batches         map[string]domain.Batch
	customers       map[string]domain.Customer
	sales           map[string]*domain.Sale
	invoiceIndex    map[string]string
	invoiceCounters map[string]int
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		manufacturers:   make(map[string]domain.Manufacturer),
		suppliers:       make(map[string]domain.Supplier),
		medicines:       make(map[string]domain.Medicine),
		batches:         make(map[string]domain.Batch),
		customers:       make(map[string]domain.Customer),
		sales:           make(map[string]*domain.Sale),
		invoiceIndex:    make(map[string]string),
		invoiceCounters: make(map[string]int),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD and
// fall back to dev defaults with a warning.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func money(raw string) decimal.Decimal {
	return decimal.RequireFromString(raw)
}

// NewSeeded returns a store with a small demo pharmacy. Expiry dates are
// relative to today so the dashboard always has expired and near-expiry rows.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()
	today := domain.DateOf(now)

	for _, m := range []domain.Manufacturer{
		{ID: "mfr-kalbe", Name: "Kalbe Farma", Country: "Indonesia"},
		{ID: "mfr-sanbe", Name: "Sanbe Farma", Country: "Indonesia"},
		{ID: "mfr-kimia", Name: "Kimia Farma", Country: "Indonesia"},
	} {
		m.Active = true
		m.CreatedAt = now
		s.manufacturers[m.ID] = m
	}

	for _, sup := range []domain.Supplier{
		{ID: "sup-apl", Name: "PT Anugrah Pharmindo Lestari", ContactPerson: "Rina", Phone: "021-555-0101"},
		{ID: "sup-enseval", Name: "PT Enseval Putera Megatrading", ContactPerson: "Agus", Phone: "021-555-0202"},
	} {
		sup.Active = true
		sup.CreatedAt = now
		s.suppliers[sup.ID] = sup
	}

	medicines := []domain.Medicine{
		{ID: "med-paracetamol", Name: "Paracetamol 500mg", GenericName: "Paracetamol", Form: "tablet", Strength: "500mg", ManufacturerID: "mfr-kimia", GeneralPrice: money("500"), DoctorPrice: money("450"), PrescriptionPrice: money("475"), UnitsPerStrip: 10, StripsPerBox: 10, PrescriptionRequired: domain.PrescriptionNo, Active: true},
		{ID: "med-amoxicillin", Name: "Amoxicillin 500mg", GenericName: "Amoxicillin", Form: "capsule", Strength: "500mg", ManufacturerID: "mfr-sanbe", GeneralPrice: money("1200"), DoctorPrice: money("1000"), PrescriptionPrice: money("1100"), UnitsPerStrip: 10, StripsPerBox: 10, PrescriptionRequired: domain.PrescriptionYes, Active: true},
		{ID: "med-cetirizine", Name: "Cetirizine 10mg", GenericName: "Cetirizine", Form: "tablet", Strength: "10mg", ManufacturerID: "mfr-kalbe", GeneralPrice: money("800"), DoctorPrice: money("700"), PrescriptionPrice: money("750"), UnitsPerStrip: 10, StripsPerBox: 5, PrescriptionRequired: domain.PrescriptionNo, Active: true},
		{ID: "med-omeprazole", Name: "Omeprazole 20mg", GenericName: "Omeprazole", Form: "capsule", Strength: "20mg", ManufacturerID: "mfr-kalbe", GeneralPrice: money("1500"), DoctorPrice: money("1300"), PrescriptionPrice: money("1400"), UnitsPerStrip: 10, StripsPerBox: 3, PrescriptionRequired: domain.PrescriptionYes, Active: true},
		{ID: "med-obh", Name: "OBH Combi 100ml", GenericName: "Succus Liquiritiae", Form: "syrup", Strength: "100ml", ManufacturerID: "mfr-kalbe", GeneralPrice: money("18000"), DoctorPrice: money("16000"), PrescriptionPrice: money("17000"), UnitsPerStrip: 1, StripsPerBox: 1, PrescriptionRequired: domain.PrescriptionNo, Active: true},
		{ID: "med-ranitidine", Name: "Ranitidine 150mg", GenericName: "Ranitidine", Form: "tablet", Strength: "150mg", ManufacturerID: "mfr-sanbe", GeneralPrice: money("600"), DoctorPrice: money("550"), PrescriptionPrice: money("575"), UnitsPerStrip: 10, StripsPerBox: 10, PrescriptionRequired: domain.PrescriptionNo, Active: false},
	}
	for _, m := range medicines {
		m.CreatedAt = now
		m.UpdatedAt = now
		s.medicines[m.ID] = m
	}

	batches := []domain.Batch{
		{ID: "bat-paracetamol-a", BatchNumber: "PCT-2401", MedicineID: "med-paracetamol", SupplierID: "sup-apl", ExpiryDate: today.AddDate(0, 0, 400), PurchasePrice: money("350"), InitialQuantity: 1000, CurrentQuantity: 1000},
		{ID: "bat-paracetamol-b", BatchNumber: "PCT-2312", MedicineID: "med-paracetamol", SupplierID: "sup-enseval", ExpiryDate: today.AddDate(0, 0, 20), PurchasePrice: money("330"), InitialQuantity: 200, CurrentQuantity: 120},
		{ID: "bat-amoxicillin-a", BatchNumber: "AMX-2402", MedicineID: "med-amoxicillin", SupplierID: "sup-apl", ExpiryDate: today.AddDate(0, 0, 300), PurchasePrice: money("850"), InitialQuantity: 500, CurrentQuantity: 500},
		{ID: "bat-cetirizine-a", BatchNumber: "CTZ-2311", MedicineID: "med-cetirizine", SupplierID: "sup-enseval", ExpiryDate: today.AddDate(0, 0, -10), PurchasePrice: money("500"), InitialQuantity: 100, CurrentQuantity: 40},
		{ID: "bat-cetirizine-b", BatchNumber: "CTZ-2403", MedicineID: "med-cetirizine", SupplierID: "sup-enseval", ExpiryDate: today.AddDate(0, 0, 500), PurchasePrice: money("520"), InitialQuantity: 250, CurrentQuantity: 250},
		{ID: "bat-omeprazole-a", BatchNumber: "OMZ-2401", MedicineID: "med-omeprazole", SupplierID: "sup-apl", ExpiryDate: today.AddDate(0, 0, 200), PurchasePrice: money("1000"), InitialQuantity: 60, CurrentQuantity: 30},
		{ID: "bat-obh-a", BatchNumber: "OBH-2402", MedicineID: "med-obh", SupplierID: "sup-apl", ExpiryDate: today.AddDate(0, 0, 25), PurchasePrice: money("12500"), InitialQuantity: 48, CurrentQuantity: 24, IsConsignment: true},
		{ID: "bat-ranitidine-a", BatchNumber: "RNT-2310", MedicineID: "med-ranitidine", SupplierID: "sup-enseval", ExpiryDate: today.AddDate(0, 0, 100), PurchasePrice: money("400"), InitialQuantity: 100, CurrentQuantity: 10},
	}
	for _, b := range batches {
		b.CreatedAt = now
		s.batches[b.ID] = b
	}

	for _, c := range []domain.Customer{
		{ID: "cus-budi", Name: "Budi Santoso", Phone: "0812-1111-2222", Type: domain.CustomerGeneral, DiscountPercentage: money("0"), CreditLimit: money("500000"), CurrentBalance: money("0")},
		{ID: "cus-dr-sari", Name: "dr. Sari Wulandari", Phone: "0813-3333-4444", Type: domain.CustomerDoctor, DiscountPercentage: money("10"), CreditLimit: money("2000000"), CurrentBalance: money("0")},
		{ID: "cus-klinik", Name: "Klinik Pratama Sehat", Phone: "021-555-0303", Type: domain.CustomerClinic, DiscountPercentage: money("15"), CreditLimit: money("5000000"), CurrentBalance: money("250000")},
	} {
		c.Active = true
		c.CreatedAt = now
		s.customers[c.ID] = c
	}

	s.usersByUsername = seedUsers()
	return s
}

func (s *Store) ListMedicines(_ context.Context, filter domain.MedicineFilter) ([]domain.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	result := make([]domain.Medicine, 0, len(s.medicines))
	for _, m := range s.medicines {
		if !filter.IncludeInactive && !m.Active {
			continue
		}
		if filter.Form != "" && !strings.EqualFold(m.Form, filter.Form) {
			continue
		}
		if filter.ManufacturerID != "" && m.ManufacturerID != filter.ManufacturerID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(m.Name), search) && !strings.Contains(strings.ToLower(m.GenericName), search) {
			continue
		}
		result = append(result, m)
	}
	slices.SortFunc(result, func(a, b domain.Medicine) int {
		return cmpString(a.Name, b.Name)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) GetMedicine(_ context.Context, id string) (*domain.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.medicines[id]
	if !ok {
		return nil, store.NotFound("medicine", id)
	}
	return &m, nil
}

func (s *Store) CreateMedicine(_ context.Context, medicine domain.Medicine) (*domain.Medicine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if medicine.Name == "" || medicine.UnitsPerStrip < 1 || medicine.StripsPerBox < 1 {
		return nil, store.ErrInvalidInput
	}
	if _, ok := s.manufacturers[medicine.ManufacturerID]; !ok {
		return nil, store.NotFound("manufacturer", medicine.ManufacturerID)
	}
	if medicine.ID == "" {
		medicine.ID = xid.New("med")
	}
	if _, exists := s.medicines[medicine.ID]; exists {
		return nil, fmt.Errorf("%w: medicine %s already exists", store.ErrInvalidInput, medicine.ID)
	}
	now := time.Now().UTC()
	if medicine.CreatedAt.IsZero() {
		medicine.CreatedAt = now
	}
	medicine.UpdatedAt = now
	s.medicines[medicine.ID] = medicine
	return &medicine, nil
}

func (s *Store) UpdateMedicine(_ context.Context, medicine domain.Medicine) (*domain.Medicine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.medicines[medicine.ID]
	if !ok {
		return nil, store.NotFound("medicine", medicine.ID)
	}
	medicine.CreatedAt = existing.CreatedAt
	medicine.UpdatedAt = time.Now().UTC()
	s.medicines[medicine.ID] = medicine
	return &medicine, nil
}

func (s *Store) ListManufacturers(_ context.Context) ([]domain.Manufacturer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Manufacturer, 0, len(s.manufacturers))
	for _, m := range s.manufacturers {
		result = append(result, m)
	}
	slices.SortFunc(result, func(a, b domain.Manufacturer) int {
		return cmpString(a.Name, b.Name)
	})
	return result, nil
}

func (s *Store) GetManufacturer(_ context.Context, id string) (*domain.Manufacturer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.manufacturers[id]
	if !ok {
		return nil, store.NotFound("manufacturer", id)
	}
	return &m, nil
}

func (s *Store) CreateManufacturer(_ context.Context, manufacturer domain.Manufacturer) (*domain.Manufacturer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if manufacturer.ID == "" {
		manufacturer.ID = xid.New("mfr")
	}
	if manufacturer.CreatedAt.IsZero() {
		manufacturer.CreatedAt = time.Now().UTC()
	}
	s.manufacturers[manufacturer.ID] = manufacturer
	return &manufacturer, nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Supplier, 0, len(s.suppliers))
	for _, sup := range s.suppliers {
		result = append(result, sup)
	}
	slices.SortFunc(result, func(a, b domain.Supplier) int {
		return cmpString(a.Name, b.Name)
	})
	return result, nil
}

func (s *Store) GetSupplier(_ context.Context, id string) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sup, ok := s.suppliers[id]
	if !ok {
		return nil, store.NotFound("supplier", id)
	}
	return &sup, nil
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}
	s.suppliers[supplier.ID] = supplier
	return &supplier, nil
}

func (s *Store) CreateBatch(_ context.Context, batch domain.Batch) (*domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.medicines[batch.MedicineID]; !ok {
		return nil, store.NotFound("medicine", batch.MedicineID)
	}
	if _, ok := s.suppliers[batch.SupplierID]; !ok {
		return nil, store.NotFound("supplier", batch.SupplierID)
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
	batch.ExpiryDate = domain.DateOf(batch.ExpiryDate)
	s.batches[batch.ID] = cloneBatch(batch)
	return s.batchWithName(batch), nil
}

func (s *Store) GetBatch(_ context.Context, id string) (*domain.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.batches[id]
	if !ok {
		return nil, store.NotFound("batch", id)
	}
	return s.batchWithName(b), nil
}

func (s *Store) ListBatches(_ context.Context, filter domain.BatchFilter) ([]domain.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Batch, 0, len(s.batches))
	for _, b := range s.batches {
		if len(filter.MedicineIDs) > 0 && !slices.Contains(filter.MedicineIDs, b.MedicineID) {
			continue
		}
		if filter.InStockOnly && !b.InStock() {
			continue
		}
		if filter.ExpiryFrom != nil && b.ExpiryDate.Before(domain.DateOf(*filter.ExpiryFrom)) {
			continue
		}
		if filter.ExpiryTo != nil && b.ExpiryDate.After(domain.DateOf(*filter.ExpiryTo)) {
			continue
		}
		if filter.Consignment != nil && b.IsConsignment != *filter.Consignment {
			continue
		}
		result = append(result, *s.batchWithName(b))
	}
	if filter.OrderByExpiry {
		slices.SortFunc(result, func(a, b domain.Batch) int {
			if c := a.ExpiryDate.Compare(b.ExpiryDate); c != 0 {
				return c
			}
			return cmpString(a.ID, b.ID)
		})
	} else {
		slices.SortFunc(result, func(a, b domain.Batch) int {
			if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
				return c
			}
			return cmpString(a.ID, b.ID)
		})
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.ID == "" {
		customer.ID = xid.New("cus")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	s.customers[customer.ID] = customer
	return &customer, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, store.NotFound("customer", id)
	}
	return &c, nil
}

func (s *Store) ListCustomers(_ context.Context, search string, limit int) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search = strings.ToLower(strings.TrimSpace(search))
	result := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		if search != "" && !strings.Contains(strings.ToLower(c.Name), search) && !strings.Contains(c.Phone, search) {
			continue
		}
		result = append(result, c)
	}
	slices.SortFunc(result, func(a, b domain.Customer) int {
		return cmpString(a.Name, b.Name)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// CommitSale plans the whole sale under the write lock and only then mutates
// batches, the customer balance and the invoice counter.
func (s *Store) CommitSale(_ context.Context, draft domain.SaleDraft) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if draft.ID == "" {
		draft.ID = xid.New("sale")
	}
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = time.Now().UTC()
	}

	var customer *domain.Customer
	if draft.CustomerID != "" {
		if c, ok := s.customers[draft.CustomerID]; ok {
			customer = &c
		}
	}

	plan, err := store.PlanSale(draft, s.medicines, s.batches, customer, draft.CreatedAt)
	if err != nil {
		return nil, err
	}

	dayKey := draft.CreatedAt.UTC().Format("20060102")
	next := s.invoiceCounters[dayKey] + 1
	invoice := store.InvoiceNumber(draft.CreatedAt, next)
	if _, taken := s.invoiceIndex[invoice]; taken {
		return nil, fmt.Errorf("%w: %s", store.ErrDuplicateInvoice, invoice)
	}

	s.invoiceCounters[dayKey] = next
	for _, batchID := range plan.BatchOrder {
		b := s.batches[batchID]
		b.CurrentQuantity -= plan.Decrements[batchID]
		s.batches[batchID] = b
	}
	if customer != nil && plan.BalanceDelta.IsPositive() {
		customer.CurrentBalance = customer.CurrentBalance.Add(plan.BalanceDelta)
		s.customers[customer.ID] = *customer
	}

	sale := store.NewSale(draft, invoice, plan)
	if customer != nil {
		sale.CustomerName = customer.Name
	}
	s.sales[sale.ID] = cloneSale(&sale)
	s.invoiceIndex[invoice] = sale.ID

	return cloneSale(&sale), nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, store.NotFound("sale", id)
	}
	return cloneSale(sale), nil
}

func (s *Store) ListSales(_ context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		if filter.From != nil && sale.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !sale.CreatedAt.Before(*filter.To) {
			continue
		}
		if filter.CustomerID != "" && sale.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Status != "" && sale.Status != filter.Status {
			continue
		}
		summary := *sale
		summary.Items = nil
		result = append(result, summary)
	}
	slices.SortFunc(result, func(a, b domain.Sale) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmpString(b.InvoiceNumber, a.InvoiceNumber)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) GetInventoryStats(_ context.Context, today time.Time, nearExpiryDays int) (domain.InventoryStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats domain.InventoryStats
	for _, m := range s.medicines {
		if m.Active {
			stats.ActiveMedicines++
		}
	}
	for _, b := range s.batches {
		if b.InStock() {
			stats.TotalStock += b.CurrentQuantity
		}
		if b.IsExpired(today) {
			stats.ExpiredBatches++
		}
		if b.IsNearExpiry(today, nearExpiryDays) {
			stats.NearExpiryBatches++
		}
	}
	return stats, nil
}

func (s *Store) ListLowStock(_ context.Context, threshold int, limit int) ([]domain.LowStockMedicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := make(map[string]int, len(s.medicines))
	for _, b := range s.batches {
		totals[b.MedicineID] += b.CurrentQuantity
	}

	result := make([]domain.LowStockMedicine, 0, 16)
	for _, m := range s.medicines {
		if !m.Active || totals[m.ID] >= threshold {
			continue
		}
		result = append(result, domain.LowStockMedicine{
			MedicineID: m.ID,
			Name:       m.Name,
			Form:       m.Form,
			TotalStock: totals[m.ID],
		})
	}
	slices.SortFunc(result, func(a, b domain.LowStockMedicine) int {
		if a.TotalStock != b.TotalStock {
			return a.TotalStock - b.TotalStock
		}
		return cmpString(a.Name, b.Name)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) SumCompletedSales(_ context.Context, from time.Time, to time.Time) (domain.SalesTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := domain.SalesTotal{Revenue: decimal.Zero}
	for _, sale := range s.sales {
		if sale.Status != domain.SaleStatusCompleted {
			continue
		}
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		total.Count++
		total.Revenue = total.Revenue.Add(sale.TotalAmount)
	}
	return total, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		entry := s.auditLogs[i]
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[username]; exists {
		return fmt.Errorf("%w: username already exists", store.ErrInvalidInput)
	}
	user.Username = username
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) GetUser(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	username = strings.ToLower(strings.TrimSpace(username))
	user, ok := s.usersByUsername[username]
	if !ok {
		return nil, store.NotFound("user", username)
	}
	return &user, nil
}

// batchWithName must be called with the lock held.
func (s *Store) batchWithName(b domain.Batch) *domain.Batch {
	dup := cloneBatch(b)
	if m, ok := s.medicines[b.MedicineID]; ok {
		dup.MedicineName = m.Name
	}
	return &dup
}

func cmpString(a string, b string) int {
	return strings.Compare(a, b)
}

func cloneBatch(src domain.Batch) domain.Batch {
	dup := src
	if src.ManufactureDate != nil {
		made := src.ManufactureDate.UTC()
		dup.ManufactureDate = &made
	}
	return dup
}

func cloneSale(src *domain.Sale) *domain.Sale {
	if src == nil {
		return nil
	}
	dup := *src
	items := make([]domain.SaleItem, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	return &dup
}
