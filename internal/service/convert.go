package service

import "math"

// convertAmounts multiplies the amount by each target's rate, in target
// order. The first target missing from the table, or whose product is not a
// finite number, voids the whole conversion.
func convertAmounts(entry *RateEntry, req ConversionRequest) (map[string]float64, error) {
	values := make(map[string]float64, len(req.TargetCurrencies))
	for _, code := range req.TargetCurrencies {
		rate, ok := entry.Rate(code)
		if !ok {
			return nil, &RateUnavailableError{Currency: code}
		}
		v := req.Amount * rate
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return nil, &ValueOutOfRangeError{Currency: code}
		}
		values[code] = v
	}
	return values, nil
}
