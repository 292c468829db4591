// Package httputil maps domain errors onto HTTP responses so handlers never
// hand-roll status codes.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "safeharbor/pkg/domain-errors"
)

// statusFor maps each domain error code to its HTTP status.
var statusFor = map[dErrors.Code]int{
	dErrors.CodeUnauthorized:         http.StatusForbidden,
	dErrors.CodeNotFound:             http.StatusNotFound,
	dErrors.CodeInvalidInput:         http.StatusBadRequest,
	dErrors.CodeResourceUnavailable:  http.StatusConflict,
	dErrors.CodeAlreadyExists:        http.StatusConflict,
	dErrors.CodeExpired:              http.StatusGone,
	dErrors.CodeInsufficientCapacity: http.StatusConflict,
	dErrors.CodePrivacyViolation:     http.StatusForbidden,
	dErrors.CodeInternal:             http.StatusInternalServerError,
}

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteError renders a domain error as JSON. Internal errors omit the
// description so infrastructure details never leak to clients.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status, ok := statusFor[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	body := errorBody{Error: string(code)}
	var de *dErrors.Error
	if code != dErrors.CodeInternal && errors.As(err, &de) {
		body.ErrorDescription = de.Message()
	}

	WriteJSON(w, status, body)
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
