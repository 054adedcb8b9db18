package storage

import (
	"strings"
	"time"
)

// RateEntry is one fetched rate table: 1 unit of Base buys Rates[code] units
// of code.
type RateEntry struct {
	Base      string             `json:"base"`
	Rates     map[string]float64 `json:"rates"`
	FetchedAt time.Time          `json:"fetchedAt"`
	TTL       time.Duration      `json:"ttl"`
	FetchedBy string             `json:"fetchedBy,omitempty"`
}

// NewRateEntry copies rates so later changes by the caller do not leak into
// the cached table.
func NewRateEntry(base string, rates map[string]float64, fetchedAt time.Time, ttl time.Duration) *RateEntry {
	cp := make(map[string]float64, len(rates))
	for code, rate := range rates {
		cp[code] = rate
	}
	return &RateEntry{
		Base:      NormalizeBase(base),
		Rates:     cp,
		FetchedAt: fetchedAt.UTC(),
		TTL:       ttl,
	}
}

// ValidAt reports whether the entry is still fresh at now.
func (e *RateEntry) ValidAt(now time.Time) bool {
	if e == nil || e.TTL <= 0 {
		return false
	}
	return now.Sub(e.FetchedAt) < e.TTL
}

// ExpiresAt is the first instant at which the entry is no longer valid.
func (e *RateEntry) ExpiresAt() time.Time {
	return e.FetchedAt.Add(e.TTL)
}

// Rate looks up the rate for a target currency code.
func (e *RateEntry) Rate(code string) (float64, bool) {
	rate, ok := e.Rates[code]
	return rate, ok
}

func NormalizeBase(base string) string {
	return strings.ToUpper(strings.TrimSpace(base))
}
