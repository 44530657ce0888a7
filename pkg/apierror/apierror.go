// Package apierror defines the JSON error envelope shared by the gateway and
// the backend API:
//
//	{"error": {"code": "UPSTREAM_UNAVAILABLE", "message": "...", "details": {}}}
package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Well known error codes.
const (
	CodeBadRequest          = "BAD_REQUEST"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeNotFound            = "NOT_FOUND"
	CodeConflict            = "CONFLICT"
	CodeValidation          = "VALIDATION_ERROR"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInternal            = "INTERNAL_ERROR"
	CodeUpstreamError       = "UPSTREAM_ERROR"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeServiceUnavailable  = "SERVICE_UNAVAILABLE"
	CodeHTTPError           = "HTTP_ERROR"
)

var statusToCode = map[int]string{
	http.StatusBadRequest:          CodeBadRequest,
	http.StatusUnauthorized:        CodeUnauthorized,
	http.StatusForbidden:           CodeForbidden,
	http.StatusNotFound:            CodeNotFound,
	http.StatusConflict:            CodeConflict,
	http.StatusUnprocessableEntity: CodeValidation,
	http.StatusTooManyRequests:     CodeRateLimited,
	http.StatusInternalServerError: CodeInternal,
	http.StatusBadGateway:          CodeUpstreamError,
	http.StatusServiceUnavailable:  CodeServiceUnavailable,
}

// Envelope is the top level error document.
type Envelope struct {
	Error Body `json:"error"`
}

// Body carries the code, a display-ready message and optional details.
// Details is always serialized, as an empty object when unset.
type Body struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

// New builds an Envelope with empty details.
func New(code, message string) Envelope {
	return Envelope{Error: Body{Code: code, Message: message, Details: map[string]any{}}}
}

// CodeForStatus maps an HTTP status to its error code.
func CodeForStatus(status int) string {
	if code, ok := statusToCode[status]; ok {
		return code
	}
	return CodeHTTPError
}

// Write encodes the envelope as the body of a net/http response.
func Write(w http.ResponseWriter, status int, env Envelope) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(env)
}

// Decode reads an envelope from r. It fails if the document does not look
// like an envelope.
func Decode(r io.Reader) (Envelope, error) {
	var env Envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return Envelope{}, fmt.Errorf("decoding error envelope: %w", err)
	}
	if env.Error.Code == "" && env.Error.Message == "" {
		return Envelope{}, errors.New("decoding error envelope: missing error body")
	}
	if env.Error.Details == nil {
		env.Error.Details = map[string]any{}
	}
	return env, nil
}
