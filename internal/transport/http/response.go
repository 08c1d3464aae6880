package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"pyquest-gamification/internal/domain"
)

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func success(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func failure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Error: msg})
}

// statusFor maps domain errors onto HTTP statuses. Unknown errors are 500 and
// their text is not exposed.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotAuthenticated):
		return http.StatusUnauthorized, "not authenticated"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrAlreadySubmitted),
		errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrWrongChallengeKind):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrExecutorUnavailable):
		return http.StatusInternalServerError, "code execution unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

type badRequestError string

func (e badRequestError) Error() string { return string(e) }
func (e badRequestError) Unwrap() error { return domain.ErrInvalidArgument }

func badRequest(msg string) error { return badRequestError(msg) }

// intParam parses an optional positive integer query parameter capped at max.
func intParam(r *http.Request, name string, fallback, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, badRequest(name + " must be a positive integer")
	}
	if n > max {
		n = max
	}
	return n, nil
}

func boolParam(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}
