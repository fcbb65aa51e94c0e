package dto

// ErrorResponse is the body of every 4xx/5xx HTTP reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
