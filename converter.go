// Package converter converts an amount from a base currency into one or more
// target currencies using exchangerate-api.com rates, caching each fetched
// rate table per base currency for a short time.
//
//	c, err := converter.New()
//	...
//	res := c.From("usd").To("ngn", "gbp").Run(ctx)
package converter

import (
	"context"
	"time"

	"github.com/omerorhan/currency-converter/internal/service"
	"github.com/omerorhan/currency-converter/internal/storage"
)

// Converter is a fluent conversion builder. Setters return the same
// Converter, so one instance must not be mutated from several goroutines.
// Converters may however share a RateCache freely.
type Converter struct {
	service *service.ConversionService
	req     *service.ConversionRequest
}

// New creates a converter. Without WithRateCache or WithRedisConfig all
// converters in the process share one in-memory cache.
func New(options ...Option) (*Converter, error) {
	svc, err := service.NewConversionService(options...)
	if err != nil {
		return nil, err
	}

	return &Converter{
		service: svc,
		req:     svc.NewRequest(),
	}, nil
}

// From sets the base currency.
func (c *Converter) From(base string) *Converter {
	c.req.SetBase(base)
	return c
}

// BaseCurrency is From under the name used by the construction option.
func (c *Converter) BaseCurrency(code string) *Converter {
	return c.From(code)
}

// To replaces the target currency list.
func (c *Converter) To(targets ...string) *Converter {
	c.req.SetTargets(targets)
	return c
}

// Amount sets the amount to convert. It returns ErrInvalidAmount, leaving the
// previous amount in place, when v is not a finite positive number.
func (c *Converter) Amount(v float64) (*Converter, error) {
	if err := c.req.SetAmount(v); err != nil {
		return c, err
	}
	return c, nil
}

// DefaultAmount is Amount under the name used by the construction option.
// Unlike WithDefaultAmount it rejects invalid values.
func (c *Converter) DefaultAmount(v float64) (*Converter, error) {
	return c.Amount(v)
}

// AmountString is Amount for textual input such as "250" or "12.75".
func (c *Converter) AmountString(s string) (*Converter, error) {
	if err := c.req.SetAmountString(s); err != nil {
		return c, err
	}
	return c, nil
}

// Expiry changes how long rates stay valid for this converter. Cached tables
// older than ttl are refetched on the next Run.
func (c *Converter) Expiry(ttl time.Duration) *Converter {
	c.service.SetTTL(ttl)
	return c
}

// Request returns a copy of the current configuration.
func (c *Converter) Request() Request {
	return c.req.Snapshot()
}

// Run performs the conversion. Failures are reported through the result's
// status and message, never as a panic or error.
func (c *Converter) Run(ctx context.Context) *Result {
	return c.service.Convert(ctx, c.req.Snapshot())
}

// RunJSON performs the conversion and serializes the result.
func (c *Converter) RunJSON(ctx context.Context) string {
	return c.Run(ctx).JSON()
}

// Execute returns *Result for Structured and a JSON string for Serialized.
// Unknown formats are treated as Structured.
func (c *Converter) Execute(ctx context.Context, format OutputFormat) any {
	res := c.Run(ctx)
	if format == Serialized {
		return res.JSON()
	}
	return res
}

// Close releases a cache the converter opened itself (WithRedisConfig).
func (c *Converter) Close() error {
	return c.service.Close()
}

// Options (re-exported for convenience)
type Option = service.ServiceOption

var (
	WithBaseCurrency   = service.WithBaseCurrency
	WithDefaultAmount  = service.WithDefaultAmount
	WithTTL            = service.WithTTL
	WithApiUrlPrefix   = service.WithApiUrlPrefix
	WithUserAgent      = service.WithUserAgent
	WithHTTPTimeout    = service.WithHTTPTimeout
	WithConnectTimeout = service.WithConnectTimeout
	WithRedisConfig    = service.WithRedisConfig
	WithRateCache      = service.WithRateCache
	WithFetcher        = service.WithFetcher
	WithLogger         = service.WithLogger
	WithLogging        = service.WithLogging
	WithClock          = service.WithClock
)

// Re-export common types for convenience
type (
	Request              = service.ConversionRequest
	Result               = service.ConversionResult
	Status               = service.Status
	OutputFormat         = service.OutputFormat
	RatesFetcher         = service.RatesFetcher
	RatesFetcherFunc     = service.RatesFetcherFunc
	RateCache            = storage.RateCache
	RateEntry            = storage.RateEntry
	RateUnavailableError = service.RateUnavailableError
	ValueOutOfRangeError = service.ValueOutOfRangeError
	FetchError           = service.FetchError
)

const (
	MinFreeCacheSize = storage.MinFreeCacheSize

	StatusSuccess = service.StatusSuccess
	StatusError   = service.StatusError
	Structured    = service.Structured
	Serialized    = service.Serialized
)

var (
	ErrInvalidAmount     = service.ErrInvalidAmount
	ErrConfiguration     = service.ErrConfiguration
	ErrFreeCacheTooSmall = storage.ErrFreeCacheTooSmall

	NewMemoryCache  = storage.NewMemoryCache
	NewFreeCache    = storage.NewFreeCache
	NewRedisCache   = storage.NewRedisCache
	NewHTTPFetcher  = service.NewHTTPFetcher
	WithMemoryClock = storage.WithMemoryClock
)
