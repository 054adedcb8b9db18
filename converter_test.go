package converter

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConverter(t *testing.T, rates map[string]float64, options ...Option) (*Converter, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	fetcher := RatesFetcherFunc(func(ctx context.Context, base string) (map[string]float64, error) {
		calls.Add(1)
		if rates == nil {
			return nil, errors.New("service unavailable")
		}
		return rates, nil
	})

	opts := append([]Option{
		WithRateCache(NewMemoryCache()),
		WithFetcher(fetcher),
		WithLogging(false),
	}, options...)
	c, err := New(opts...)
	require.NoError(t, err)
	return c, &calls
}

func TestConverter_EndToEnd(t *testing.T) {
	c, _ := newTestConverter(t, map[string]float64{"NGN": 1550.2, "GBP": 0.79, "CAD": 1.35})

	_, err := c.From("USD").To("NGN", "GBP", "CAD").Amount(100)
	require.NoError(t, err)

	res := c.Run(context.Background())
	require.Equal(t, StatusSuccess, res.Status, res.Message)
	assert.InDelta(t, 155020, res.Values["NGN"], 1e-9)
	assert.InDelta(t, 79, res.Values["GBP"], 1e-9)
	assert.InDelta(t, 135, res.Values["CAD"], 1e-9)
}

func TestConverter_MissingTargetVoidsResult(t *testing.T) {
	c, _ := newTestConverter(t, map[string]float64{"NGN": 1500, "GBP": 0.8})

	res := c.From("usd").To("ngn", "gbp", "zzz").Run(context.Background())
	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Message, "ZZZ")
	assert.Nil(t, res.Values)
}

func TestConverter_AmountValidation(t *testing.T) {
	c, _ := newTestConverter(t, map[string]float64{"EUR": 0.5})

	_, err := c.Amount(40)
	require.NoError(t, err)

	for _, bad := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := c.Amount(bad)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}
	_, err = c.AmountString("forty")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	assert.Equal(t, 40.0, c.Request().Amount)

	res := c.To("EUR").Run(context.Background())
	require.True(t, res.OK(), res.Message)
	assert.Equal(t, 20.0, res.Values["EUR"])
}

func TestConverter_AmountString(t *testing.T) {
	c, _ := newTestConverter(t, map[string]float64{"EUR": 0.5})

	_, err := c.AmountString("12.5")
	require.NoError(t, err)

	res := c.To("eur").Run(context.Background())
	require.True(t, res.OK(), res.Message)
	assert.Equal(t, 6.25, res.Values["EUR"])
}

func TestConverter_ConfigurationErrors(t *testing.T) {
	t.Run("no targets", func(t *testing.T) {
		c, calls := newTestConverter(t, map[string]float64{"EUR": 0.5})

		res := c.Run(context.Background())
		assert.Equal(t, StatusError, res.Status)
		assert.Equal(t, ErrConfiguration.Error(), res.Message)
		assert.Equal(t, int32(0), calls.Load())
	})

	t.Run("empty base", func(t *testing.T) {
		c, _ := newTestConverter(t, map[string]float64{"EUR": 0.5})

		res := c.From("").To("EUR").Run(context.Background())
		assert.Equal(t, StatusError, res.Status)
		assert.Equal(t, ErrConfiguration.Error(), res.Message)
	})

	t.Run("only blank targets", func(t *testing.T) {
		c, _ := newTestConverter(t, map[string]float64{"EUR": 0.5})

		res := c.To(" ", "").Run(context.Background())
		assert.Equal(t, StatusError, res.Status)
	})
}

func TestConverter_FetchErrorIsAResult(t *testing.T) {
	c, _ := newTestConverter(t, nil)

	res := c.To("EUR").Run(context.Background())
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, "unable to fetch exchange rates for USD: service unavailable", res.Message)
}

func TestConverter_Defaults(t *testing.T) {
	c, _ := newTestConverter(t, map[string]float64{"USD": 1.1}, WithBaseCurrency("eur"), WithDefaultAmount(-5))

	req := c.Request()
	assert.Equal(t, "EUR", req.BaseCurrency)
	assert.Equal(t, 1.0, req.Amount)

	c2, _ := newTestConverter(t, map[string]float64{"USD": 1.1}, WithDefaultAmount(250))
	assert.Equal(t, "USD", c2.Request().BaseCurrency)
	assert.Equal(t, 250.0, c2.Request().Amount)
}

func TestConverter_CacheBehaviour(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	var calls atomic.Int32
	fetcher := RatesFetcherFunc(func(ctx context.Context, base string) (map[string]float64, error) {
		calls.Add(1)
		return map[string]float64{"EUR": 0.9}, nil
	})
	c, err := New(
		WithRateCache(NewMemoryCache(WithMemoryClock(clock))),
		WithFetcher(fetcher),
		WithClock(clock),
		WithTTL(300*time.Second),
		WithLogging(false),
	)
	require.NoError(t, err)
	c.To("EUR")

	assert.True(t, c.Run(context.Background()).OK())
	now = now.Add(4 * time.Minute)
	assert.True(t, c.Run(context.Background()).OK())
	assert.Equal(t, int32(1), calls.Load())

	now = now.Add(2 * time.Minute)
	assert.True(t, c.Run(context.Background()).OK())
	assert.Equal(t, int32(2), calls.Load())

	// a shorter expiry also applies to the table already cached
	c.Expiry(time.Minute)
	now = now.Add(2 * time.Minute)
	assert.True(t, c.Run(context.Background()).OK())
	assert.Equal(t, int32(3), calls.Load())
	now = now.Add(30 * time.Second)
	assert.True(t, c.Run(context.Background()).OK())
	assert.Equal(t, int32(3), calls.Load())
	now = now.Add(30 * time.Second)
	assert.True(t, c.Run(context.Background()).OK())
	assert.Equal(t, int32(4), calls.Load())
}

func TestConverter_SharedCache(t *testing.T) {
	cache := NewMemoryCache()
	var calls atomic.Int32
	fetcher := RatesFetcherFunc(func(ctx context.Context, base string) (map[string]float64, error) {
		calls.Add(1)
		return map[string]float64{"GBP": 0.8, "EUR": 0.9}, nil
	})

	a, err := New(WithRateCache(cache), WithFetcher(fetcher), WithLogging(false))
	require.NoError(t, err)
	b, err := New(WithRateCache(cache), WithFetcher(fetcher), WithLogging(false))
	require.NoError(t, err)

	assert.True(t, a.To("GBP").Run(context.Background()).OK())
	assert.True(t, b.To("EUR").Run(context.Background()).OK())
	assert.Equal(t, int32(1), calls.Load())
}

func TestConverter_ExecuteFormats(t *testing.T) {
	c, _ := newTestConverter(t, map[string]float64{"NGN": 1550.2, "GBP": 0.79})
	_, err := c.To("NGN", "GBP").Amount(3.3)
	require.NoError(t, err)

	structured, ok := c.Execute(context.Background(), Structured).(*Result)
	require.True(t, ok)
	require.True(t, structured.OK())

	serialized, ok := c.Execute(context.Background(), Serialized).(string)
	require.True(t, ok)

	var decoded Result
	require.NoError(t, json.Unmarshal([]byte(serialized), &decoded))
	assert.Equal(t, StatusSuccess, decoded.Status)
	assert.Equal(t, structured.Values, decoded.Values)
	assert.Equal(t, serialized, c.RunJSON(context.Background()))
}

func TestConverter_RunJSONError(t *testing.T) {
	c, _ := newTestConverter(t, map[string]float64{"NGN": 1})

	out := c.To("PHP").RunJSON(context.Background())
	assert.JSONEq(t, `{"status":"error","message":"currency conversion rate for PHP not available"}`, out)
}

func TestConverter_HTTP(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/v4/latest/GBP", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"base":"GBP","rates":{"GBP":1,"USD":1.27,"EUR":1.17}}`))
	}))
	defer srv.Close()

	c, err := New(
		WithRateCache(NewMemoryCache()),
		WithApiUrlPrefix(srv.URL+"/v4/latest/"),
		WithHTTPTimeout(2*time.Second),
		WithConnectTimeout(time.Second),
		WithUserAgent("converter-test"),
		WithLogging(false),
	)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.From("gbp").To("usd", "eur").Amount(10)
	require.NoError(t, err)

	res := c.Run(context.Background())
	require.True(t, res.OK(), res.Message)
	assert.InDelta(t, 12.7, res.Values["USD"], 1e-9)
	assert.InDelta(t, 11.7, res.Values["EUR"], 1e-9)

	c.Run(context.Background())
	assert.Equal(t, int32(1), hits.Load())
}

func TestConverter_ChainableAliases(t *testing.T) {
	c, _ := newTestConverter(t, map[string]float64{"USD": 1.1})

	_, err := c.BaseCurrency("eur").To("usd").DefaultAmount(10)
	require.NoError(t, err)
	assert.Equal(t, "EUR", c.Request().BaseCurrency)

	_, err = c.DefaultAmount(0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Equal(t, 10.0, c.Request().Amount)

	res := c.Run(context.Background())
	require.True(t, res.OK(), res.Message)
	assert.InDelta(t, 11, res.Values["USD"], 1e-9)
}

func TestConverter_OverflowSameInEveryFormat(t *testing.T) {
	c, _ := newTestConverter(t, map[string]float64{"VES": 1e10})
	_, err := c.To("VES").Amount(math.MaxFloat64)
	require.NoError(t, err)

	structured := c.Execute(context.Background(), Structured).(*Result)
	assert.Equal(t, StatusError, structured.Status)

	var decoded Result
	require.NoError(t, json.Unmarshal([]byte(c.RunJSON(context.Background())), &decoded))
	assert.Equal(t, StatusError, decoded.Status)
	assert.Equal(t, structured.Message, decoded.Message)
}
