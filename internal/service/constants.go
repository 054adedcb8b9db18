package service

import (
	"time"

	"github.com/omerorhan/currency-converter/internal/storage"
)

const (
	DefaultBaseCurrency = "USD"
	DefaultAmount       = 1.0
	DefaultApiUrlPrefix = "https://api.exchangerate-api.com/v4/latest/"
	DefaultUserAgent    = "CurrencyConverter/1.0"

	DefaultHTTPTimeout    = 10 * time.Second
	DefaultConnectTimeout = 5 * time.Second
	DefaultTTL            = storage.DefaultTTL
)

// Status discriminates a ConversionResult.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// OutputFormat selects what Execute returns.
type OutputFormat string

const (
	Structured OutputFormat = "structured"
	Serialized OutputFormat = "serialized"
)

type RateEntry = storage.RateEntry
type RateCache = storage.RateCache
