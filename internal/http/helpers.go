package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"cashflow/internal/core"
	"cashflow/internal/log"

	"github.com/go-chi/chi/v5"
)

// errBadRequest marks malformed requests: bad JSON, path ids or query values.
var errBadRequest = errors.New("bad request")

type errorBody struct {
	Error string `json:"error"`
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case core.IsInputError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError logs server-side failures and answers with {"error": ...}.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	msg := err.Error()
	ctx := r.Context()

	if status >= http.StatusInternalServerError {
		errType := log.ErrorTypeInternal
		switch status {
		case http.StatusBadGateway:
			errType = log.ErrorTypeUpstream
		case http.StatusGatewayTimeout:
			errType = log.ErrorTypeTimeout
		}
		log.NewStructuredLogger(log.FromContext(ctx)).
			LogError(ctx, "Request failed", err, op, log.NewFields().WithErrorType(errType))
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
	}
	writeJSON(w, status, errorBody{Error: msg})
}

// decodeJSON reads a single JSON document, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		// Value errors (bad amount, date or enum) are input violations.
		if core.IsInputError(err) {
			return err
		}
		return badRequest("invalid JSON body: %v", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return badRequest("request body must contain a single JSON document")
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid %s %q", name, raw)
	}
	return id, nil
}

// dateRange parses the optional inclusive from/to query bounds.
func dateRange(r *http.Request) (from, to *core.Date, err error) {
	parse := func(key string) (*core.Date, error) {
		raw := strings.TrimSpace(r.URL.Query().Get(key))
		if raw == "" {
			return nil, nil
		}
		d, err := core.ParseDate(raw)
		if err != nil {
			return nil, badRequest("invalid %s date %q", key, raw)
		}
		return &d, nil
	}

	if from, err = parse("from"); err != nil {
		return nil, nil, err
	}
	if to, err = parse("to"); err != nil {
		return nil, nil, err
	}
	if from != nil && to != nil && to.Before(from.Time) {
		return nil, nil, badRequest("to %s is before from %s", to.Key(), from.Key())
	}
	return from, to, nil
}

func queryBool(r *http.Request, key string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, badRequest("invalid %s %q", key, raw)
	}
	return v, nil
}

func queryLimit(r *http.Request, def, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, badRequest("invalid limit %q", raw)
	}
	return min(n, max), nil
}

// orEmpty keeps empty collections encoding as [] rather than null.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
