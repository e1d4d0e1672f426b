package compliance

import "limits/internal/core"

// WireError is the {code, message} record the API returns for every
// rejection reason.
type WireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Format renders one violation for the wire.
func Format(v core.Violation) WireError {
	return WireError{Code: v.Code, Message: v.Message}
}

// FormatAll renders a batch of violations, preserving order. It always
// returns a non-nil slice so the JSON encoding of a clean result is [] and
// not null. Duplicate codes are passed through untouched; each tier and each
// classifier branch contributes at most one violation per call, so dedup is
// not this layer's problem.
func FormatAll(vs []core.Violation) []WireError {
	out := make([]WireError, 0, len(vs))
	for _, v := range vs {
		out = append(out, Format(v))
	}
	return out
}
