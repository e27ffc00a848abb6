package app

import (
	"errors"
	"fmt"
	"net/http"

	"efakture/internal/backend"
	"efakture/internal/core"
)

var (
	// ErrUnauthorized means the backend no longer accepts the session.
	ErrUnauthorized = errors.New("session expired, please sign in again")

	// ErrForbidden is returned for operations the user's role does not allow.
	ErrForbidden = errors.New("not allowed for this account")

	// ErrAIUnavailable is returned by SuggestDraft when no assistant is configured.
	ErrAIUnavailable = errors.New("draft assistant is not configured")
)

// StatusOf maps an error from the service to the HTTP status an adapter
// should report. Backend 403/404/409 pass through; other backend failures
// become 502.
func StatusOf(err error) int {
	var (
		apiErr *backend.APIError
		verrs  core.ValidationErrors
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &verrs):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrAIUnavailable):
		return http.StatusNotImplemented
	case errors.As(err, &apiErr):
		switch apiErr.Status {
		case http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict:
			return apiErr.Status
		case http.StatusUnauthorized:
			return http.StatusUnauthorized
		}
		return http.StatusBadGateway
	}
	return http.StatusBadGateway
}

// Message returns the user-facing text for err: the backend's own message for
// API errors, the sentinel text otherwise.
func Message(err error) string {
	var (
		apiErr *backend.APIError
		verrs  core.ValidationErrors
	)
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if errors.As(err, &verrs) {
		return verrs.Error()
	}
	for _, s := range []error{ErrUnauthorized, ErrForbidden, ErrAIUnavailable} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return fmt.Sprintf("backend unavailable: %v", err)
}
