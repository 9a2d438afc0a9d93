package types

// Envelope is the success body of every API response. The server writes
// Envelope[any]; sessionclient reads Envelope[json.RawMessage] so it can
// decode the payload strictly in a second pass.
type Envelope[T any] struct {
	Data T `json:"data"`
}

// APIError is the error body shared by the API and its clients.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
