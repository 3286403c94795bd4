package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Details   any    `json:"details,omitempty"`
}

// ErrorEnvelope carries an error and, for notices such as an existing
// invoice, the resource the caller should use instead.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
	Data  any      `json:"data,omitempty"`
}
