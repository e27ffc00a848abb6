package web

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"efakture/internal/app"
	"efakture/internal/backend"
	"efakture/internal/core"
)

type errorResponse struct {
	Error     string            `json:"error"`
	Code      string            `json:"code"`
	RequestID string            `json:"request_id,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	writeStatusJSON(w, status, errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	})
}

// writeValidationError writes a 422 with the field map of errs.
func writeValidationError(w http.ResponseWriter, r *http.Request, errs core.ValidationErrors) {
	writeStatusJSON(w, http.StatusUnprocessableEntity, errorResponse{
		Error:     "validation failed",
		Code:      "VALIDATION_FAILED",
		RequestID: requestIDFromContext(r.Context()),
		Fields:    errs.Fields(),
	})
}

// writeServiceError maps an ApplicationService error to a JSON error response.
// A 401 also clears the session cookie.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs core.ValidationErrors
	if errors.As(err, &verrs) {
		writeValidationError(w, r, verrs)
		return
	}

	status := app.StatusOf(err)
	code := "BACKEND_ERROR"
	switch status {
	case http.StatusBadRequest:
		code = "BAD_REQUEST"
	case http.StatusUnauthorized:
		code = "UNAUTHORIZED"
		h.clearSessionCookie(w)
	case http.StatusForbidden:
		code = "FORBIDDEN"
	case http.StatusNotFound:
		code = "NOT_FOUND"
	case http.StatusConflict:
		code = "CONFLICT"
	case http.StatusNotImplemented:
		code = "NOT_IMPLEMENTED"
	case http.StatusBadGateway:
		var apiErr *backend.APIError
		if !errors.As(err, &apiErr) {
			code = "BACKEND_UNAVAILABLE"
		}
		log.Printf("backend error [%s]: %v", requestIDFromContext(r.Context()), err)
	}
	writeError(w, r, app.Message(err), code, status)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeStatusJSON(w, http.StatusOK, v)
}

func writeStatusJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
