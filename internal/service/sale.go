package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/events"
	"apotekku/backend/internal/pricing"
	"apotekku/backend/internal/xid"
)

const maxNotesLength = 1000

// SaleOptions carries decisions made outside the request body, such as a
// verified manager override.
type SaleOptions struct {
	AllowOverCreditLimit bool
}

func (s *Service) CommitSale(ctx context.Context, req domain.SaleRequest, opts SaleOptions) (domain.SaleResponse, error) {
	if err := validateSaleShape(req); err != nil {
		return domain.SaleResponse{}, err
	}

	change := decimal.Zero
	if req.ChangeAmount != nil {
		change = *req.ChangeAmount
	} else if req.PaidAmount.GreaterThan(req.TotalAmount) {
		change = req.PaidAmount.Sub(req.TotalAmount)
	}

	if s.priceValidation == PriceValidationVerify {
		if err := s.verifyPrices(ctx, req, change); err != nil {
			return domain.SaleResponse{}, err
		}
	}

	operator := "system"
	if actor, ok := ActorFromContext(ctx); ok {
		operator = actor.Username
	}

	draft := domain.SaleDraft{
		ID:                   xid.New("sale"),
		CustomerID:           strings.TrimSpace(req.CustomerID),
		OperatorUsername:     operator,
		Subtotal:             req.Subtotal,
		DiscountAmount:       req.DiscountAmount,
		TaxAmount:            req.TaxAmount,
		TotalAmount:          req.TotalAmount,
		PaidAmount:           req.PaidAmount,
		ChangeAmount:         change,
		PaymentMethod:        req.PaymentMethod,
		Notes:                strings.TrimSpace(req.Notes),
		AllowOverCreditLimit: opts.AllowOverCreditLimit,
		CreatedAt:            s.now(),
		Items:                req.Items,
	}

	sale, err := s.repo.CommitSale(ctx, draft)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	s.afterSale(ctx, *sale, opts)

	return domain.SaleResponse{
		Success:       true,
		SaleID:        sale.ID,
		InvoiceNumber: sale.InvoiceNumber,
		Message:       "Sale completed successfully",
	}, nil
}

// afterSale runs the post-commit side effects. None of them can undo the sale.
func (s *Service) afterSale(ctx context.Context, sale domain.Sale, opts SaleOptions) {
	detail := fmt.Sprintf("invoice=%s total=%s payment=%s items=%d", sale.InvoiceNumber, sale.TotalAmount.StringFixed(2), sale.PaymentMethod, len(sale.Items))
	if opts.AllowOverCreditLimit {
		detail += " credit_override=true"
	}
	s.logAudit(ctx, "sale_commit", "sale", sale.ID, detail)

	if err := s.publisher.PublishSale(ctx, events.FromSale(sale)); err != nil {
		log.Printf("[service] WARN: failed to publish %s for sale %s: %v", events.SaleCompleted, sale.ID, err)
	}

	s.dashboard.Invalidate(ctx, sale.CreatedAt)
}

// MaxLineQuantity caps a single sale line, whatever its unit.
const MaxLineQuantity = 100000

func validateSaleShape(req domain.SaleRequest) error {
	if len(req.Items) == 0 {
		return invalid("at least one item is required")
	}

	for i, item := range req.Items {
		if strings.TrimSpace(item.MedicineID) == "" || strings.TrimSpace(item.BatchID) == "" {
			return invalid("item %d: medicine_id and batch_id are required", i+1)
		}
		if item.Quantity < 1 {
			return invalid("item %d: quantity must be at least 1", i+1)
		}
		if item.Quantity > MaxLineQuantity {
			return invalid("item %d: quantity must not exceed %d", i+1, MaxLineQuantity)
		}
		if !pricing.IsValidUnit(item.UnitType) {
			return invalid("item %d: unit_type must be piece, strip or box", i+1)
		}
		if item.UnitPrice.IsNegative() || item.TotalPrice.IsNegative() {
			return invalid("item %d: prices must not be negative", i+1)
		}
	}

	for name, amount := range map[string]decimal.Decimal{
		"subtotal":        req.Subtotal,
		"discount_amount": req.DiscountAmount,
		"tax_amount":      req.TaxAmount,
		"total_amount":    req.TotalAmount,
		"paid_amount":     req.PaidAmount,
	} {
		if amount.IsNegative() {
			return invalid("%s must not be negative", name)
		}
	}
	if req.ChangeAmount != nil && req.ChangeAmount.IsNegative() {
		return invalid("change_amount must not be negative")
	}

	switch req.PaymentMethod {
	case domain.PaymentCash, domain.PaymentCard, domain.PaymentCredit, domain.PaymentBankTransfer:
	default:
		return invalid("payment_method must be cash, card, credit or bank_transfer")
	}

	if len([]rune(req.Notes)) > maxNotesLength {
		return invalid("notes must be at most %d characters", maxNotesLength)
	}
	if req.PriceContext != "" && req.PriceContext != domain.PriceContextPrescription {
		return invalid("price_context must be empty or prescription")
	}
	return nil
}

// verifyPrices recomputes every amount the client sent from catalog prices.
// The store still rechecks stock, activity and expiry under its own locks.
func (s *Service) verifyPrices(ctx context.Context, req domain.SaleRequest, change decimal.Decimal) error {
	var customer *domain.Customer
	if id := strings.TrimSpace(req.CustomerID); id != "" {
		c, err := s.repo.GetCustomer(ctx, id)
		if err != nil {
			return err
		}
		customer = c
	}
	tier := pricing.TierFor(customer, req.PriceContext == domain.PriceContextPrescription)

	medicines := make(map[string]domain.Medicine, len(req.Items))
	subtotal := decimal.Zero
	for i, item := range req.Items {
		medicine, ok := medicines[item.MedicineID]
		if !ok {
			m, err := s.repo.GetMedicine(ctx, item.MedicineID)
			if err != nil {
				return err
			}
			medicine = *m
			medicines[medicine.ID] = medicine
		}

		expected, err := pricing.UnitPrice(medicine, tier, item.UnitType)
		if err != nil {
			return invalid("item %d: %v", i+1, err)
		}
		if !pricing.Round2(item.UnitPrice).Equal(pricing.Round2(expected)) {
			return invalid("item %d: unit_price %s does not match %s price %s for %s per %s",
				i+1, item.UnitPrice.StringFixed(2), tier, expected.StringFixed(2), medicine.Name, item.UnitType)
		}

		lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		if !pricing.Round2(item.TotalPrice).Equal(pricing.Round2(lineTotal)) {
			return invalid("item %d: total_price must be %s", i+1, lineTotal.StringFixed(2))
		}
		subtotal = subtotal.Add(lineTotal)
	}

	if !pricing.Round2(req.Subtotal).Equal(pricing.Round2(subtotal)) {
		return invalid("subtotal must be %s", subtotal.StringFixed(2))
	}

	total := subtotal.Sub(req.DiscountAmount).Add(req.TaxAmount)
	if total.IsNegative() {
		return invalid("discount_amount exceeds subtotal")
	}
	if !pricing.Round2(req.TotalAmount).Equal(pricing.Round2(total)) {
		return invalid("total_amount must be %s", total.StringFixed(2))
	}

	if req.PaymentMethod != domain.PaymentCredit && req.PaidAmount.LessThan(req.TotalAmount) {
		return invalid("paid_amount %s does not cover total %s", req.PaidAmount.StringFixed(2), req.TotalAmount.StringFixed(2))
	}
	if req.PaymentMethod == domain.PaymentCredit && req.PaidAmount.LessThan(req.TotalAmount) && customer == nil {
		return invalid("credit sales with an outstanding amount require a customer")
	}

	expectedChange := decimal.Max(req.PaidAmount.Sub(req.TotalAmount), decimal.Zero)
	if !pricing.Round2(change).Equal(pricing.Round2(expectedChange)) {
		return invalid("change_amount must be %s", expectedChange.StringFixed(2))
	}
	return nil
}

func (s *Service) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	return s.repo.GetSale(ctx, strings.TrimSpace(id))
}

type SaleQuery struct {
	FromDate   string
	ToDate     string
	CustomerID string
	Status     string
	Limit      int
}

// ListSales treats to_date as inclusive.
func (s *Service) ListSales(ctx context.Context, q SaleQuery) ([]domain.Sale, error) {
	filter := domain.SaleFilter{
		CustomerID: strings.TrimSpace(q.CustomerID),
		Status:     strings.TrimSpace(q.Status),
		Limit:      q.Limit,
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}
	switch filter.Status {
	case "", domain.SaleStatusCompleted, domain.SaleStatusPending, domain.SaleStatusCancelled:
	default:
		return nil, invalid("unknown sale status %q", filter.Status)
	}

	if strings.TrimSpace(q.FromDate) != "" {
		from, err := parseDate(q.FromDate)
		if err != nil {
			return nil, err
		}
		filter.From = &from
	}
	if strings.TrimSpace(q.ToDate) != "" {
		to, err := parseDate(q.ToDate)
		if err != nil {
			return nil, err
		}
		end := to.Add(24 * time.Hour)
		filter.To = &end
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, invalid("from_date must not be after to_date")
	}

	return s.repo.ListSales(ctx, filter)
}
