// Package respond holds the request decoding and response helpers shared by
// the API handlers.
package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/spendtrack/internal/category"
	"github.com/MrJamesThe3rd/spendtrack/internal/importer"
	"github.com/MrJamesThe3rd/spendtrack/internal/money"
	"github.com/MrJamesThe3rd/spendtrack/internal/rules"
	"github.com/MrJamesThe3rd/spendtrack/internal/transaction"
)

// MaxBodyBytes bounds JSON request bodies.
const MaxBodyBytes = 1 << 20

// ErrBadRequest marks errors caused by a malformed request.
var ErrBadRequest = errors.New("bad request")

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Error writes err with the status its kind maps to. Unknown errors are
// logged and reported as a bare 500.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := Status(err)

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		http.Error(w, "internal error", status)

		return
	}

	http.Error(w, err.Error(), status)
}

// Status maps domain errors to HTTP status codes.
func Status(err error) int {
	switch {
	case errors.Is(err, transaction.ErrNotFound),
		errors.Is(err, category.ErrNotFound),
		errors.Is(err, rules.ErrNoMatch):
		return http.StatusNotFound
	case errors.Is(err, category.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrBadRequest),
		transaction.IsValidation(err),
		errors.Is(err, category.ErrInvalidName),
		errors.Is(err, category.ErrInvalidColor),
		errors.Is(err, rules.ErrEmptyPattern),
		errors.Is(err, rules.ErrUnknownCategory),
		errors.Is(err, importer.ErrUnrecognized),
		errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, money.ErrTooPrecise),
		errors.Is(err, money.ErrOutOfRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Decode reads a JSON body into v and validates its struct tags.
func Decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decoding body: %w", ErrBadRequest, err)
	}

	return Validate(v)
}

// PathID parses the {name} URL parameter as a UUID.
func PathID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid id", ErrBadRequest)
	}

	return id, nil
}

// QueryDate parses an optional YYYY-MM-DD query parameter.
func QueryDate(r *http.Request, name string) (*time.Time, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}

	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be YYYY-MM-DD", ErrBadRequest, name)
	}

	return &t, nil
}

// QueryInt parses an optional integer query parameter, returning 0 when absent.
func QueryInt(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrBadRequest, name)
	}

	return n, nil
}

// QueryUUID parses an optional UUID query parameter.
func QueryUUID(r *http.Request, name string) (*uuid.UUID, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}

	id, err := uuid.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a UUID", ErrBadRequest, name)
	}

	return &id, nil
}
