// Package http serves the JSON API.
//
// This file implements the builder used by every handler to write JSON
// bodies, and the single mapping from error kinds to status codes.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	payload, err := json.Marshal(b.body)
	if err != nil {
		slog.Error("Failed to encode response body", log.FieldComponent, log.ComponentHTTP, "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}` + "\n"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(payload, '\n'))
}

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// MessageBody acknowledges an operation that returns no entity.
type MessageBody struct {
	Message string `json:"message"`
}

// badRequestError marks input that could not be decoded at all.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	var bad *badRequestError
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse builds the response for err. Internal failures are reported
// without their cause.
func ErrorResponse(err error) *JSONResponseBuilder {
	status := statusFor(err)
	body := ErrorBody{Error: err.Error()}

	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		body = ErrorBody{Error: verr.Err.Error(), Field: verr.Field}
	case errors.Is(err, core.ErrNotFound):
		body.Error = "not found"
	case errors.Is(err, core.ErrConflict):
		body.Error = "resource was modified concurrently, retry"
	case status == http.StatusInternalServerError:
		body.Error = "internal server error"
	}
	return NewJSONResponse().Status(status).Body(body)
}
