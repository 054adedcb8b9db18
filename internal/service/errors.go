package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAmount is returned synchronously by the amount setters.
	ErrInvalidAmount = errors.New("amount must be a positive number")

	// ErrConfiguration means Run was called without a base currency or targets.
	ErrConfiguration = errors.New("base currency and target currencies must be set before calling run")
)

// RateUnavailableError names the first target the rate table has no entry for.
type RateUnavailableError struct {
	Currency string
}

func (e *RateUnavailableError) Error() string {
	return fmt.Sprintf("currency conversion rate for %s not available", e.Currency)
}

// ValueOutOfRangeError names a target whose converted amount overflowed.
type ValueOutOfRangeError struct {
	Currency string
}

func (e *ValueOutOfRangeError) Error() string {
	return fmt.Sprintf("converted amount for %s is out of range", e.Currency)
}

// FetchError wraps any failure of the remote rate fetch.
type FetchError struct {
	Base string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("unable to fetch exchange rates for %s: %v", e.Base, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
