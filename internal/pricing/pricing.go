// Package pricing resolves medicine prices per customer tier and converts
// sale quantities into pieces. Everything here is pure.
package pricing

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"apotekku/backend/internal/domain"
)

const (
	TierGeneral      = "general"
	TierDoctor       = "doctor"
	TierPrescription = "prescription"
)

// MaxPieces bounds any piece count so it fits the INTEGER stock columns.
const MaxPieces = math.MaxInt32

var (
	ErrUnknownUnit      = errors.New("unknown unit type")
	ErrInvalidQuantity  = errors.New("quantity must be at least 1")
	ErrQuantityTooLarge = errors.New("quantity is too large")
	ErrInvalidPackaging = errors.New("packaging ratio is too large")
)

// TierFor picks the price tier. Doctor and clinic customers always get the
// doctor price; the prescription context applies to everyone else.
func TierFor(customer *domain.Customer, prescription bool) string {
	if customer != nil {
		switch strings.ToLower(customer.Type) {
		case domain.CustomerDoctor, domain.CustomerClinic:
			return TierDoctor
		}
	}
	if prescription {
		return TierPrescription
	}
	return TierGeneral
}

func ResolveBasePrice(medicine domain.Medicine, tier string) decimal.Decimal {
	switch tier {
	case TierDoctor:
		return medicine.DoctorPrice
	case TierPrescription:
		return medicine.PrescriptionPrice
	default:
		return medicine.GeneralPrice
	}
}

// PiecesPerUnit returns how many pieces one unit of the given granularity holds.
func PiecesPerUnit(medicine domain.Medicine, unit string) (int, error) {
	perStrip := max(medicine.UnitsPerStrip, 1)
	perBox := max(medicine.StripsPerBox, 1)

	switch unit {
	case domain.UnitPiece:
		return 1, nil
	case domain.UnitStrip:
		if perStrip > MaxPieces {
			return 0, ErrInvalidPackaging
		}
		return perStrip, nil
	case domain.UnitBox:
		if perStrip > MaxPieces/perBox {
			return 0, ErrInvalidPackaging
		}
		return perStrip * perBox, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, unit)
	}
}

func UnitPrice(medicine domain.Medicine, tier string, unit string) (decimal.Decimal, error) {
	factor, err := PiecesPerUnit(medicine, unit)
	if err != nil {
		return decimal.Zero, err
	}
	return ResolveBasePrice(medicine, tier).Mul(decimal.NewFromInt(int64(factor))), nil
}

func PiecesFor(medicine domain.Medicine, quantity int, unit string) (int, error) {
	if quantity < 1 {
		return 0, ErrInvalidQuantity
	}
	factor, err := PiecesPerUnit(medicine, unit)
	if err != nil {
		return 0, err
	}
	if quantity > MaxPieces/factor {
		return 0, fmt.Errorf("%w: %d %s", ErrQuantityTooLarge, quantity, unit)
	}
	return quantity * factor, nil
}

func IsValidUnit(unit string) bool {
	switch unit {
	case domain.UnitPiece, domain.UnitStrip, domain.UnitBox:
		return true
	default:
		return false
	}
}

// Round2 normalizes money to two decimal places.
func Round2(value decimal.Decimal) decimal.Decimal {
	return value.Round(2)
}
