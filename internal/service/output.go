package service

import (
	"encoding/json"
)

// ConversionResult is what Run hands back. Consumers branch on Status:
// Values is only set on success and Message only on error.
type ConversionResult struct {
	Status  Status             `json:"status"`
	Values  map[string]float64 `json:"values,omitempty"`
	Message string             `json:"message,omitempty"`
}

func successResult(values map[string]float64) *ConversionResult {
	return &ConversionResult{Status: StatusSuccess, Values: values}
}

func errorResult(err error) *ConversionResult {
	return &ConversionResult{Status: StatusError, Message: err.Error()}
}

func (r *ConversionResult) OK() bool {
	return r.Status == StatusSuccess
}

// MarshalJSON always emits "values" on success, even when empty, and never
// emits it on error.
func (r ConversionResult) MarshalJSON() ([]byte, error) {
	if r.Status == StatusSuccess {
		values := r.Values
		if values == nil {
			values = map[string]float64{}
		}
		return json.Marshal(struct {
			Status Status             `json:"status"`
			Values map[string]float64 `json:"values"`
		}{r.Status, values})
	}
	return json.Marshal(struct {
		Status  Status `json:"status"`
		Message string `json:"message"`
	}{r.Status, r.Message})
}

// JSON serializes the result. Encoding a map of finite floats cannot fail;
// a non-finite value is reported as an error result instead.
func (r *ConversionResult) JSON() string {
	data, err := json.Marshal(r)
	if err != nil {
		data, _ = json.Marshal(errorResult(err))
	}
	return string(data)
}
