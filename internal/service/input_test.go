package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConversionRequest_DefaultAmount(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
		want   float64
	}{
		{"positive kept", 25, 25},
		{"zero falls back", 0, 1},
		{"negative falls back", -3, 1},
		{"nan falls back", math.NaN(), 1},
		{"inf falls back", math.Inf(1), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewConversionRequest("eur", tt.amount)
			assert.Equal(t, tt.want, r.Amount)
			assert.Equal(t, "EUR", r.BaseCurrency)
		})
	}
}

func TestConversionRequest_SetAmount(t *testing.T) {
	tests := []struct {
		name    string
		value   float64
		wantErr bool
	}{
		{"positive", 100, false},
		{"fraction", 0.01, false},
		{"zero", 0, true},
		{"negative", -5, true},
		{"nan", math.NaN(), true},
		{"positive infinity", math.Inf(1), true},
		{"negative infinity", math.Inf(-1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewConversionRequest("USD", 7)
			err := r.SetAmount(tt.value)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				assert.Equal(t, 7.0, r.Amount, "amount must be left unchanged")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.value, r.Amount)
		})
	}
}

func TestConversionRequest_SetAmountString(t *testing.T) {
	tests := []struct {
		input   string
		want    float64
		wantErr bool
	}{
		{input: "100", want: 100},
		{input: "12.75", want: 12.75},
		{input: "1e3", want: 1000},
		{input: "0", wantErr: true},
		{input: "-1", wantErr: true},
		{input: "abc", wantErr: true},
		{input: "", wantErr: true},
		{input: "10 USD", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			r := NewConversionRequest("USD", 3)
			err := r.SetAmountString(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				assert.Equal(t, 3.0, r.Amount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Amount)
		})
	}
}

func TestConversionRequest_SetTargets(t *testing.T) {
	r := NewConversionRequest("USD", 1)

	r.SetTargets([]string{"ngn", " gbp ", "", "NGN"})
	assert.Equal(t, []string{"NGN", "GBP", "NGN"}, r.TargetCurrencies)

	r.SetTargets([]string{"cad"})
	assert.Equal(t, []string{"CAD"}, r.TargetCurrencies, "targets are replaced, not appended")

	r.SetTargets(nil)
	assert.Empty(t, r.TargetCurrencies)
}

func TestConversionRequest_Snapshot(t *testing.T) {
	r := NewConversionRequest("USD", 1)
	r.SetTargets([]string{"EUR"})

	snap := r.Snapshot()
	r.SetTargets([]string{"GBP"})
	r.SetBase("CAD")

	assert.Equal(t, "USD", snap.BaseCurrency)
	assert.Equal(t, []string{"EUR"}, snap.TargetCurrencies)
}
