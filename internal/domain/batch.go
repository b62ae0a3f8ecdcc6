package domain

import "time"

// DefaultNearExpiryDays is the lookahead window for near-expiry batches.
const DefaultNearExpiryDays = 30

// DateOf truncates t to midnight UTC.
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func (b Batch) InStock() bool {
	return b.CurrentQuantity > 0
}

func (b Batch) IsExpired(today time.Time) bool {
	return DateOf(b.ExpiryDate).Before(DateOf(today))
}

// IsNearExpiry reports today <= expiry <= today+windowDays.
func (b Batch) IsNearExpiry(today time.Time, windowDays int) bool {
	day := DateOf(today)
	expiry := DateOf(b.ExpiryDate)
	if expiry.Before(day) {
		return false
	}
	return !expiry.After(day.AddDate(0, 0, windowDays))
}
