package service

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ConversionRequest is the configuration a Converter assembles before Run.
type ConversionRequest struct {
	BaseCurrency     string
	TargetCurrencies []string
	Amount           float64
}

// NewConversionRequest returns a request with the given defaults. A
// non-positive default amount falls back to 1 without an error.
func NewConversionRequest(base string, defaultAmount float64) *ConversionRequest {
	if !validAmount(defaultAmount) {
		defaultAmount = DefaultAmount
	}
	return &ConversionRequest{
		BaseCurrency: normalizeCurrency(base),
		Amount:       defaultAmount,
	}
}

func (r *ConversionRequest) SetBase(base string) {
	r.BaseCurrency = normalizeCurrency(base)
}

func (r *ConversionRequest) SetTargets(targets []string) {
	r.TargetCurrencies = normalizeTargets(targets)
}

// SetAmount leaves the current amount untouched when v is rejected.
func (r *ConversionRequest) SetAmount(v float64) error {
	if !validAmount(v) {
		return fmt.Errorf("%w: got %v", ErrInvalidAmount, v)
	}
	r.Amount = v
	return nil
}

// SetAmountString accepts the textual forms a caller may receive from a form
// or query string, e.g. "100", "12.50", "1e3".
func (r *ConversionRequest) SetAmountString(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("%w: %q is not numeric", ErrInvalidAmount, s)
	}
	if !d.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrInvalidAmount, s)
	}
	return r.SetAmount(d.InexactFloat64())
}

// Snapshot copies the request so a later setter call cannot change a run in
// progress.
func (r *ConversionRequest) Snapshot() ConversionRequest {
	targets := make([]string, len(r.TargetCurrencies))
	copy(targets, r.TargetCurrencies)
	return ConversionRequest{
		BaseCurrency:     r.BaseCurrency,
		TargetCurrencies: targets,
		Amount:           r.Amount,
	}
}

func (r ConversionRequest) validate() error {
	if r.BaseCurrency == "" || len(r.TargetCurrencies) == 0 {
		return ErrConfiguration
	}
	return nil
}
