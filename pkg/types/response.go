// Package types defines the JSON envelopes every API response uses.
package types

// SuccessEnvelope wraps successful response payloads under a "data" key so
// clients can distinguish them from error bodies by shape alone.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the client-facing error body: a stable machine code, a public
// message, and optional structured details (field-level validation errors).
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps an APIError for non-2xx responses.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
