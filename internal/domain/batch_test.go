package domain

import (
	"testing"
	"time"
)

func TestBatchNearExpiryBoundary(t *testing.T) {
	today := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

	cases := []struct {
		name       string
		expiry     time.Time
		nearExpiry bool
		expired    bool
	}{
		{"yesterday", today.AddDate(0, 0, -1), false, true},
		{"today", today, true, false},
		{"plus 30 days", today.AddDate(0, 0, 30), true, false},
		{"plus 31 days", today.AddDate(0, 0, 31), false, false},
	}

	for _, tc := range cases {
		b := Batch{ExpiryDate: DateOf(tc.expiry), CurrentQuantity: 1}
		if got := b.IsNearExpiry(today, DefaultNearExpiryDays); got != tc.nearExpiry {
			t.Fatalf("%s: expected near-expiry %t, got %t", tc.name, tc.nearExpiry, got)
		}
		if got := b.IsExpired(today); got != tc.expired {
			t.Fatalf("%s: expected expired %t, got %t", tc.name, tc.expired, got)
		}
	}
}

func TestBatchInStock(t *testing.T) {
	if (Batch{CurrentQuantity: 0}).InStock() {
		t.Fatalf("expected empty batch to be out of stock")
	}
	if !(Batch{CurrentQuantity: 3}).InStock() {
		t.Fatalf("expected batch with quantity to be in stock")
	}
}
