package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/pricing"
	"apotekku/backend/internal/store"
)

const posLookupLimit = 20

// POSLookup lists active medicines that can be sold right now, each with its
// in-stock, non-expired batches ordered by expiry so the earliest sells first.
func (s *Service) POSLookup(ctx context.Context, search string) ([]domain.POSMedicine, error) {
	medicines, err := s.repo.ListMedicines(ctx, domain.MedicineFilter{Search: strings.TrimSpace(search)})
	if err != nil {
		return nil, err
	}
	if len(medicines) == 0 {
		return []domain.POSMedicine{}, nil
	}

	ids := make([]string, 0, len(medicines))
	for _, m := range medicines {
		ids = append(ids, m.ID)
	}
	today := domain.DateOf(s.now())
	batches, err := s.repo.ListBatches(ctx, domain.BatchFilter{
		MedicineIDs:   ids,
		InStockOnly:   true,
		ExpiryFrom:    &today,
		OrderByExpiry: true,
	})
	if err != nil {
		return nil, err
	}

	byMedicine := make(map[string][]domain.Batch, len(medicines))
	for _, b := range batches {
		byMedicine[b.MedicineID] = append(byMedicine[b.MedicineID], b)
	}

	result := make([]domain.POSMedicine, 0, posLookupLimit)
	for _, m := range medicines {
		stock := byMedicine[m.ID]
		if len(stock) == 0 {
			continue
		}
		result = append(result, domain.POSMedicine{Medicine: m, Batches: stock})
		if len(result) == posLookupLimit {
			break
		}
	}
	return result, nil
}

func (s *Service) ListMedicines(ctx context.Context, filter domain.MedicineFilter) ([]domain.Medicine, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Form = strings.TrimSpace(filter.Form)
	filter.ManufacturerID = strings.TrimSpace(filter.ManufacturerID)
	return s.repo.ListMedicines(ctx, filter)
}

func (s *Service) GetMedicine(ctx context.Context, id string) (domain.MedicineDetail, error) {
	medicine, err := s.repo.GetMedicine(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.MedicineDetail{}, err
	}
	batches, err := s.repo.ListBatches(ctx, domain.BatchFilter{
		MedicineIDs:   []string{medicine.ID},
		OrderByExpiry: true,
	})
	if err != nil {
		return domain.MedicineDetail{}, err
	}

	detail := domain.MedicineDetail{Medicine: *medicine, Batches: batches}
	for _, b := range batches {
		if b.InStock() {
			detail.TotalStock += b.CurrentQuantity
		}
	}
	return detail, nil
}

func (s *Service) CreateMedicine(ctx context.Context, req domain.MedicineCreateRequest) (*domain.Medicine, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	medicine := domain.Medicine{
		Name:                 strings.TrimSpace(req.Name),
		GenericName:          strings.TrimSpace(req.GenericName),
		Form:                 strings.ToLower(strings.TrimSpace(req.Form)),
		Strength:             strings.TrimSpace(req.Strength),
		ManufacturerID:       strings.TrimSpace(req.ManufacturerID),
		GeneralPrice:         pricing.Round2(req.GeneralPrice),
		DoctorPrice:          pricing.Round2(req.DoctorPrice),
		PrescriptionPrice:    pricing.Round2(req.PrescriptionPrice),
		UnitsPerStrip:        req.UnitsPerStrip,
		StripsPerBox:         req.StripsPerBox,
		PrescriptionRequired: strings.TrimSpace(req.PrescriptionRequired),
		Description:          strings.TrimSpace(req.Description),
		UsageInstructions:    strings.TrimSpace(req.UsageInstructions),
		SideEffects:          strings.TrimSpace(req.SideEffects),
		Active:               true,
	}
	if medicine.UnitsPerStrip == 0 {
		medicine.UnitsPerStrip = 1
	}
	if medicine.StripsPerBox == 0 {
		medicine.StripsPerBox = 1
	}
	if medicine.PrescriptionRequired == "" {
		medicine.PrescriptionRequired = domain.PrescriptionNo
	}
	if err := validateMedicine(medicine); err != nil {
		return nil, err
	}

	created, err := s.repo.CreateMedicine(ctx, medicine)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "medicine_create", "medicine", created.ID, fmt.Sprintf("name=%s", created.Name))
	return created, nil
}

func (s *Service) UpdateMedicine(ctx context.Context, id string, req domain.MedicineUpdateRequest) (*domain.Medicine, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetMedicine(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	m := *existing

	if req.Name != nil {
		m.Name = strings.TrimSpace(*req.Name)
	}
	if req.GenericName != nil {
		m.GenericName = strings.TrimSpace(*req.GenericName)
	}
	if req.Form != nil {
		m.Form = strings.ToLower(strings.TrimSpace(*req.Form))
	}
	if req.Strength != nil {
		m.Strength = strings.TrimSpace(*req.Strength)
	}
	if req.GeneralPrice != nil {
		m.GeneralPrice = pricing.Round2(*req.GeneralPrice)
	}
	if req.DoctorPrice != nil {
		m.DoctorPrice = pricing.Round2(*req.DoctorPrice)
	}
	if req.PrescriptionPrice != nil {
		m.PrescriptionPrice = pricing.Round2(*req.PrescriptionPrice)
	}
	if req.UnitsPerStrip != nil {
		m.UnitsPerStrip = *req.UnitsPerStrip
	}
	if req.StripsPerBox != nil {
		m.StripsPerBox = *req.StripsPerBox
	}
	if req.PrescriptionRequired != nil {
		m.PrescriptionRequired = strings.TrimSpace(*req.PrescriptionRequired)
	}
	if req.UsageInstructions != nil {
		m.UsageInstructions = strings.TrimSpace(*req.UsageInstructions)
	}
	if req.SideEffects != nil {
		m.SideEffects = strings.TrimSpace(*req.SideEffects)
	}
	if req.Active != nil {
		m.Active = *req.Active
	}
	if err := validateMedicine(m); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateMedicine(ctx, m)
	if err != nil {
		return nil, err
	}

	action := "medicine_update"
	if existing.Active && !updated.Active {
		action = "medicine_deactivate"
	}
	s.logAudit(ctx, action, "medicine", updated.ID, fmt.Sprintf("name=%s active=%t", updated.Name, updated.Active))
	return updated, nil
}

const maxPackRatio = 10000

func validateMedicine(m domain.Medicine) error {
	if m.Name == "" {
		return invalid("medicine name is required")
	}
	if m.Form == "" {
		return invalid("medicine form is required")
	}
	if m.ManufacturerID == "" {
		return invalid("manufacturer_id is required")
	}
	if m.UnitsPerStrip < 1 || m.StripsPerBox < 1 {
		return invalid("units_per_strip and strips_per_box must be at least 1")
	}
	if m.UnitsPerStrip > maxPackRatio || m.StripsPerBox > maxPackRatio {
		return invalid("units_per_strip and strips_per_box must not exceed %d", maxPackRatio)
	}
	if m.GeneralPrice.IsNegative() || m.DoctorPrice.IsNegative() || m.PrescriptionPrice.IsNegative() {
		return invalid("prices must not be negative")
	}
	switch m.PrescriptionRequired {
	case domain.PrescriptionNo, domain.PrescriptionYes, domain.PrescriptionControlled:
	default:
		return invalid("prescription_required must be no, yes or controlled")
	}
	return nil
}

// PriceQuote resolves the display price for one unit of a medicine.
func (s *Service) PriceQuote(ctx context.Context, medicineID string, customerID string, unitType string, prescription bool) (domain.PriceQuote, error) {
	medicine, err := s.repo.GetMedicine(ctx, strings.TrimSpace(medicineID))
	if err != nil {
		return domain.PriceQuote{}, err
	}

	var customer *domain.Customer
	if id := strings.TrimSpace(customerID); id != "" {
		customer, err = s.repo.GetCustomer(ctx, id)
		if err != nil {
			return domain.PriceQuote{}, err
		}
	}

	unit := strings.TrimSpace(unitType)
	if unit == "" {
		unit = domain.UnitPiece
	}
	tier := pricing.TierFor(customer, prescription)
	price, err := pricing.UnitPrice(*medicine, tier, unit)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}
	pieces, err := pricing.PiecesPerUnit(*medicine, unit)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}

	return domain.PriceQuote{
		MedicineID: medicine.ID,
		Tier:       tier,
		UnitType:   unit,
		BasePrice:  pricing.ResolveBasePrice(*medicine, tier),
		UnitPrice:  pricing.Round2(price),
		Pieces:     pieces,
	}, nil
}

func (s *Service) ListManufacturers(ctx context.Context) ([]domain.Manufacturer, error) {
	return s.repo.ListManufacturers(ctx)
}

func (s *Service) CreateManufacturer(ctx context.Context, req domain.ManufacturerCreateRequest) (*domain.Manufacturer, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalid("manufacturer name is required")
	}

	created, err := s.repo.CreateManufacturer(ctx, domain.Manufacturer{
		Name:    name,
		Country: strings.TrimSpace(req.Country),
		Active:  true,
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "manufacturer_create", "manufacturer", created.ID, fmt.Sprintf("name=%s", created.Name))
	return created, nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (*domain.Supplier, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalid("supplier name is required")
	}

	created, err := s.repo.CreateSupplier(ctx, domain.Supplier{
		Name:          name,
		ContactPerson: strings.TrimSpace(req.ContactPerson),
		Phone:         strings.TrimSpace(req.Phone),
		Email:         strings.TrimSpace(req.Email),
		Address:       strings.TrimSpace(req.Address),
		Active:        true,
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "supplier_create", "supplier", created.ID, fmt.Sprintf("name=%s", created.Name))
	return created, nil
}

func (s *Service) ListCustomers(ctx context.Context, search string, limit int) ([]domain.Customer, error) {
	if limit < 1 {
		limit = 50
	}
	return s.repo.ListCustomers(ctx, strings.TrimSpace(search), limit)
}

func (s *Service) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return s.repo.GetCustomer(ctx, strings.TrimSpace(id))
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (*domain.Customer, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	customer := domain.Customer{
		Name:               strings.TrimSpace(req.Name),
		Phone:              strings.TrimSpace(req.Phone),
		Email:              strings.TrimSpace(req.Email),
		Address:            strings.TrimSpace(req.Address),
		Type:               strings.ToLower(strings.TrimSpace(req.Type)),
		DiscountPercentage: pricing.Round2(req.DiscountPercentage),
		CreditLimit:        pricing.Round2(req.CreditLimit),
		CurrentBalance:     decimal.Zero,
		Active:             true,
	}
	if customer.Type == "" {
		customer.Type = domain.CustomerGeneral
	}
	if customer.Name == "" {
		return nil, invalid("customer name is required")
	}
	switch customer.Type {
	case domain.CustomerGeneral, domain.CustomerDoctor, domain.CustomerClinic:
	default:
		return nil, invalid("customer type must be general, doctor or clinic")
	}
	if customer.DiscountPercentage.IsNegative() || customer.DiscountPercentage.GreaterThan(decimal.NewFromInt(100)) {
		return nil, invalid("discount_percentage must be between 0 and 100")
	}
	if customer.CreditLimit.IsNegative() {
		return nil, invalid("credit_limit must not be negative")
	}

	created, err := s.repo.CreateCustomer(ctx, customer)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "customer_create", "customer", created.ID, fmt.Sprintf("name=%s type=%s", created.Name, created.Type))
	return created, nil
}
