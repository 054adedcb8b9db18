package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/omerorhan/currency-converter/internal/storage"
)

var (
	// sharedCache backs every service that is not given a cache of its own,
	// so converters in one process see each other's rates.
	sharedCache = storage.NewMemoryCache()

	// flights holds one singleflight group per cache instance, released
	// when the last service using that cache is closed.
	flights = &flightRegistry{groups: make(map[storage.RateCache]*flightRef)}

	// instanceID tags the entries this process fetches.
	instanceID = uuid.NewString()
)

type flightRef struct {
	group *singleflight.Group
	refs  int
}

// flightRegistry reference-counts singleflight groups by cache. Caches are
// expected to be pointer types.
type flightRegistry struct {
	mu     sync.Mutex
	groups map[storage.RateCache]*flightRef
}

func (r *flightRegistry) acquire(cache storage.RateCache) *singleflight.Group {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.groups[cache]
	if !ok {
		ref = &flightRef{group: new(singleflight.Group)}
		r.groups[cache] = ref
	}
	ref.refs++
	return ref.group
}

func (r *flightRegistry) release(cache storage.RateCache) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.groups[cache]
	if !ok {
		return
	}
	if ref.refs--; ref.refs <= 0 {
		delete(r.groups, cache)
	}
}

func (r *flightRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.groups)
}

// ConversionService resolves rate tables through a RateCache and turns
// ConversionRequests into ConversionResults.
type ConversionService struct {
	cache     storage.RateCache
	ownsCache bool
	closed    bool
	fetcher   RatesFetcher
	flight    *singleflight.Group
	locker    storage.Locker
	opts      *ServiceOptions
	lg        *zap.Logger
}

// ServiceOptions provides configuration for the conversion service
type ServiceOptions struct {
	BaseCurrency   string        `json:"baseCurrency"`
	DefaultAmount  float64       `json:"defaultAmount"`
	TTL            time.Duration `json:"ttl"`
	ApiUrlPrefix   string        `json:"apiUrlPrefix"`
	UserAgent      string        `json:"userAgent"`
	HTTPTimeout    time.Duration `json:"httpTimeout"`
	ConnectTimeout time.Duration `json:"connectTimeout"`
	RedisAddr      string        `json:"redisAddr"`
	EnableLogging  bool          `json:"enableLogging"`

	Cache   storage.RateCache `json:"-"`
	Fetcher RatesFetcher      `json:"-"`
	Logger  *zap.Logger       `json:"-"`
	Now     func() time.Time  `json:"-"`
}

// DefaultServiceOptions returns sensible default options
func DefaultServiceOptions() *ServiceOptions {
	return &ServiceOptions{
		BaseCurrency:   DefaultBaseCurrency,
		DefaultAmount:  DefaultAmount,
		TTL:            DefaultTTL,
		ApiUrlPrefix:   DefaultApiUrlPrefix,
		UserAgent:      DefaultUserAgent,
		HTTPTimeout:    DefaultHTTPTimeout,
		ConnectTimeout: DefaultConnectTimeout,
		EnableLogging:  true,
		Now:            time.Now,
	}
}

// ServiceOption is a function that configures service options
type ServiceOption func(*ServiceOptions)

// WithBaseCurrency sets the base currency a new converter starts with
func WithBaseCurrency(code string) ServiceOption {
	return func(opts *ServiceOptions) {
		opts.BaseCurrency = code
	}
}

// WithDefaultAmount sets the starting amount. Non-positive values are
// ignored and 1 is used.
func WithDefaultAmount(amount float64) ServiceOption {
	return func(opts *ServiceOptions) {
		opts.DefaultAmount = amount
	}
}

// WithTTL sets how long fetched rates stay valid
func WithTTL(ttl time.Duration) ServiceOption {
	return func(opts *ServiceOptions) {
		opts.TTL = ttl
	}
}

// WithApiUrlPrefix sets the URL the base currency code is appended to
func WithApiUrlPrefix(prefix string) ServiceOption {
	return func(opts *ServiceOptions) {
		opts.ApiUrlPrefix = prefix
	}
}

func WithUserAgent(ua string) ServiceOption {
	return func(opts *ServiceOptions) {
		opts.UserAgent = ua
	}
}

func WithHTTPTimeout(timeout time.Duration) ServiceOption {
	return func(opts *ServiceOptions) {
		opts.HTTPTimeout = timeout
	}
}

func WithConnectTimeout(timeout time.Duration) ServiceOption {
	return func(opts *ServiceOptions) {
		opts.ConnectTimeout = timeout
	}
}

// WithRedisConfig stores rates in Redis, shared by every process using addr
// (tcp://[:password@]host:port/db). Ignored when WithRateCache is also given.
func WithRedisConfig(addr string) ServiceOption {
	return func(opts *ServiceOptions) {
		opts.RedisAddr = addr
	}
}

// WithRateCache sets the cache explicitly; the caller keeps ownership.
func WithRateCache(cache storage.RateCache) ServiceOption {
	return func(opts *ServiceOptions) {
		opts.Cache = cache
	}
}

// WithFetcher replaces the HTTP fetcher
func WithFetcher(fetcher RatesFetcher) ServiceOption {
	return func(opts *ServiceOptions) {
		opts.Fetcher = fetcher
	}
}

func WithLogger(lg *zap.Logger) ServiceOption {
	return func(opts *ServiceOptions) {
		opts.Logger = lg
	}
}

// WithLogging enables/disables logging
func WithLogging(enabled bool) ServiceOption {
	return func(opts *ServiceOptions) {
		opts.EnableLogging = enabled
	}
}

// WithClock sets the clock used to stamp fetched entries
func WithClock(now func() time.Time) ServiceOption {
	return func(opts *ServiceOptions) {
		opts.Now = now
	}
}

// NewConversionService creates a new conversion service
func NewConversionService(options ...ServiceOption) (*ConversionService, error) {
	opts := DefaultServiceOptions()

	// Apply options
	for _, option := range options {
		option(opts)
	}

	lg := opts.Logger
	if lg == nil {
		lg = zap.L()
	}
	if !opts.EnableLogging {
		lg = zap.NewNop()
	}
	lg = lg.With(zap.String("component", "converter"))

	if opts.Now == nil {
		opts.Now = time.Now
	}

	cache := opts.Cache
	ownsCache := false
	if cache == nil && opts.RedisAddr != "" {
		redisCache, err := storage.NewRedisCache(opts.RedisAddr, storage.WithRedisLogger(lg))
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis cache: %w", err)
		}
		cache = redisCache
		ownsCache = true
	}
	if cache == nil {
		cache = sharedCache
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = NewHTTPFetcher(opts.ApiUrlPrefix, opts.UserAgent, opts.HTTPTimeout, opts.ConnectTimeout)
	}

	var locker storage.Locker
	if lp, ok := cache.(storage.LockProvider); ok {
		locker = lp.Locker()
	}

	return &ConversionService{
		cache:     cache,
		ownsCache: ownsCache,
		fetcher:   fetcher,
		flight:    flights.acquire(cache),
		locker:    locker,
		opts:      opts,
		lg:        lg,
	}, nil
}

// Options exposes the effective configuration.
func (s *ConversionService) Options() ServiceOptions {
	return *s.opts
}

// SetTTL changes the validity window. It applies to new entries and, on
// read, to entries already cached: an entry is used only while it is younger
// than both its stored TTL and the current one.
func (s *ConversionService) SetTTL(ttl time.Duration) {
	s.opts.TTL = ttl
}

// NewRequest returns a request seeded with the configured defaults.
func (s *ConversionService) NewRequest() *ConversionRequest {
	return NewConversionRequest(s.opts.BaseCurrency, s.opts.DefaultAmount)
}

// Convert never returns an error: every failure becomes an error result.
func (s *ConversionService) Convert(ctx context.Context, req ConversionRequest) *ConversionResult {
	if err := req.validate(); err != nil {
		return errorResult(err)
	}

	entry, err := s.ResolveRates(ctx, req.BaseCurrency)
	if err != nil {
		s.lg.Warn("conversion failed", zap.String("base", req.BaseCurrency), zap.Error(err))
		return errorResult(err)
	}

	values, err := convertAmounts(entry, req)
	if err != nil {
		return errorResult(err)
	}
	return successResult(values)
}

// ResolveRates returns a valid rate table for base, fetching it when the
// cache has none. Concurrent misses for the same base share one fetch.
func (s *ConversionService) ResolveRates(ctx context.Context, base string) (*RateEntry, error) {
	base = normalizeCurrency(base)

	if entry := s.cached(ctx, base); entry != nil {
		s.lg.Debug("rates cache hit", zap.String("base", base), zap.Time("fetchedAt", entry.FetchedAt))
		return entry, nil
	}

	// the shared fetch must outlive any single caller; the HTTP timeout
	// still bounds it
	ch := s.flight.DoChan(base, func() (any, error) {
		return s.loadRates(context.WithoutCancel(ctx), base)
	})

	select {
	case <-ctx.Done():
		return nil, &FetchError{Base: base, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.lg.Debug("joined in-flight rates fetch", zap.String("base", base))
		}
		return res.Val.(*RateEntry), nil
	}
}

func (s *ConversionService) cached(ctx context.Context, base string) *RateEntry {
	entry, err := s.cache.Get(ctx, base)
	if err != nil {
		// a broken cache degrades to fetching every time
		s.lg.Warn("failed to read rates cache", zap.String("base", base), zap.Error(err))
		return nil
	}
	if entry != nil && s.opts.Now().Sub(entry.FetchedAt) >= s.opts.TTL {
		// stored under a longer TTL than the one now configured
		return nil
	}
	return entry
}

func (s *ConversionService) loadRates(ctx context.Context, base string) (*RateEntry, error) {
	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, base)
		if err != nil {
			s.lg.Warn("failed to acquire rates lock, fetching anyway", zap.String("base", base), zap.Error(err))
		} else {
			defer func() {
				if err := unlock(context.WithoutCancel(ctx)); err != nil {
					s.lg.Warn("failed to release rates lock", zap.String("base", base), zap.Error(err))
				}
			}()
		}
	}

	// another caller may have filled the cache while we waited
	if entry := s.cached(ctx, base); entry != nil {
		return entry, nil
	}

	s.lg.Info("fetching exchange rates", zap.String("base", base))
	rates, err := s.fetcher.FetchRates(ctx, base)
	if err != nil {
		return nil, &FetchError{Base: base, Err: err}
	}

	entry := storage.NewRateEntry(base, rates, s.opts.Now(), s.opts.TTL)
	entry.FetchedBy = instanceID

	if err := s.cache.Put(ctx, entry); err != nil {
		// keep going, the fetched rates are still good for this run
		s.lg.Warn("failed to store rates in cache", zap.String("base", base), zap.Error(err))
	} else {
		s.lg.Info("stored exchange rates",
			zap.String("base", base),
			zap.Int("count", len(entry.Rates)),
			zap.Duration("ttl", entry.TTL))
	}
	return entry, nil
}

// Close releases the service's share of the cache and closes the cache when
// the service created it. Closing twice is a no-op.
func (s *ConversionService) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	flights.release(s.cache)

	if !s.ownsCache {
		return nil
	}
	return s.cache.Close()
}
