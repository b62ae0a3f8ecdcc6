package store

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/pricing"
	"apotekku/backend/internal/xid"
)

// SalePlan is the full set of effects of a sale, computed against locked
// state before anything is written.
type SalePlan struct {
	Items        []domain.SaleItem
	Decrements   map[string]int
	BatchOrder   []string
	BalanceDelta decimal.Decimal
}

// PlanSale walks the draft lines in submission order against the loaded
// medicines, batches and customer. Demand on a batch is cumulative across
// lines. Nothing is mutated.
func PlanSale(draft domain.SaleDraft, medicines map[string]domain.Medicine, batches map[string]domain.Batch, customer *domain.Customer, today time.Time) (*SalePlan, error) {
	if len(draft.Items) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", ErrInvalidInput)
	}
	if draft.CustomerID != "" && customer == nil {
		return nil, NotFound("customer", draft.CustomerID)
	}

	plan := &SalePlan{
		Items:        make([]domain.SaleItem, 0, len(draft.Items)),
		Decrements:   make(map[string]int, len(draft.Items)),
		BatchOrder:   make([]string, 0, len(draft.Items)),
		BalanceDelta: decimal.Zero,
	}

	for i, line := range draft.Items {
		medicine, ok := medicines[line.MedicineID]
		if !ok {
			return nil, NotFound("medicine", line.MedicineID)
		}
		batch, ok := batches[line.BatchID]
		if !ok {
			return nil, NotFound("batch", line.BatchID)
		}
		if batch.MedicineID != medicine.ID {
			return nil, fmt.Errorf("%w: item %d: batch %s does not belong to %s", ErrInvalidInput, i+1, batch.ID, medicine.Name)
		}
		if !medicine.Active {
			return nil, fmt.Errorf("%w: item %d: %s is inactive", ErrInvalidInput, i+1, medicine.Name)
		}
		if batch.IsExpired(today) {
			return nil, fmt.Errorf("%w: item %d: batch %s of %s expired on %s", ErrInvalidInput, i+1, batch.BatchNumber, medicine.Name, batch.ExpiryDate.Format("2006-01-02"))
		}

		pieces, err := pricing.PiecesFor(medicine, line.Quantity, line.UnitType)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", ErrInvalidInput, i+1, err)
		}

		already := plan.Decrements[batch.ID]
		available := batch.CurrentQuantity - already
		if available < pieces {
			return nil, &InsufficientStockError{
				MedicineName: medicine.Name,
				BatchID:      batch.ID,
				Available:    available,
				Required:     pieces,
			}
		}
		if already == 0 {
			plan.BatchOrder = append(plan.BatchOrder, batch.ID)
		}
		plan.Decrements[batch.ID] = already + pieces

		plan.Items = append(plan.Items, domain.SaleItem{
			ID:           xid.New("item"),
			SaleID:       draft.ID,
			MedicineID:   medicine.ID,
			MedicineName: medicine.Name,
			BatchID:      batch.ID,
			Quantity:     line.Quantity,
			UnitType:     line.UnitType,
			Pieces:       pieces,
			UnitPrice:    pricing.Round2(line.UnitPrice),
			TotalPrice:   pricing.Round2(line.TotalPrice),
			CostPrice:    pricing.Round2(batch.PurchasePrice),
		})
	}

	if draft.PaymentMethod == domain.PaymentCredit && customer != nil {
		owed := draft.TotalAmount.Sub(draft.PaidAmount)
		if owed.IsPositive() {
			plan.BalanceDelta = pricing.Round2(owed)
		}
		next := customer.CurrentBalance.Add(plan.BalanceDelta)
		if customer.CreditLimit.IsPositive() && next.GreaterThan(customer.CreditLimit) && !draft.AllowOverCreditLimit {
			return nil, fmt.Errorf("%w: %s would owe %s against a limit of %s", ErrCreditLimitExceeded, customer.Name, next.StringFixed(2), customer.CreditLimit.StringFixed(2))
		}
	}

	return plan, nil
}

// NewSale builds the persisted sale record from a draft and its plan.
func NewSale(draft domain.SaleDraft, invoiceNumber string, plan *SalePlan) domain.Sale {
	return domain.Sale{
		ID:               draft.ID,
		InvoiceNumber:    invoiceNumber,
		CustomerID:       draft.CustomerID,
		OperatorUsername: draft.OperatorUsername,
		Subtotal:         pricing.Round2(draft.Subtotal),
		DiscountAmount:   pricing.Round2(draft.DiscountAmount),
		TaxAmount:        pricing.Round2(draft.TaxAmount),
		TotalAmount:      pricing.Round2(draft.TotalAmount),
		PaidAmount:       pricing.Round2(draft.PaidAmount),
		ChangeAmount:     pricing.Round2(draft.ChangeAmount),
		PaymentMethod:    draft.PaymentMethod,
		Status:           domain.SaleStatusCompleted,
		Notes:            draft.Notes,
		CreatedAt:        draft.CreatedAt,
		Items:            plan.Items,
	}
}
