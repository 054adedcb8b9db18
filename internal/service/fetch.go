package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// RatesFetcher retrieves the full rate table for a base currency.
type RatesFetcher interface {
	FetchRates(ctx context.Context, base string) (map[string]float64, error)
}

// RatesFetcherFunc adapts a plain function to RatesFetcher.
type RatesFetcherFunc func(ctx context.Context, base string) (map[string]float64, error)

func (f RatesFetcherFunc) FetchRates(ctx context.Context, base string) (map[string]float64, error) {
	return f(ctx, base)
}

// ratesEnvelope is the part of the exchangerate-api v4 response we use.
// Example: {"base":"USD","date":"2024-05-01","time_last_updated":1714521601,"rates":{"USD":1,"EUR":0.93}}
type ratesEnvelope struct {
	Base  string              `json:"base"`
	Date  string              `json:"date"`
	Rates *map[string]float64 `json:"rates"`
}

var errMissingRates = errors.New("response has no rates field")

type httpFetcher struct {
	client    *http.Client
	urlPrefix string
	userAgent string
}

// NewHTTPFetcher fetches GET <urlPrefix><BASE>. timeout bounds the whole
// exchange, connectTimeout only the TCP dial.
func NewHTTPFetcher(urlPrefix, userAgent string, timeout, connectTimeout time.Duration) RatesFetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext

	return &httpFetcher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		urlPrefix: urlPrefix,
		userAgent: userAgent,
	}
}

func (f *httpFetcher) FetchRates(ctx context.Context, base string) (map[string]float64, error) {
	url := f.urlPrefix + base
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API request failed with HTTP status code: %d", resp.StatusCode)
	}

	var env ratesEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("failed to parse API response: %w", err)
	}
	if env.Rates == nil {
		return nil, errMissingRates
	}
	return *env.Rates, nil
}
