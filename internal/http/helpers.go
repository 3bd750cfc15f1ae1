package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"finanlito/internal/core"
	"finanlito/internal/kanban"
	applog "finanlito/internal/log"
	"finanlito/internal/ports"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// bearerToken extracts the credential of an "Authorization: Bearer" header.
func bearerToken(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

// parseYear reads the "year" query parameter, defaulting to now's year.
func parseYear(r *http.Request, now time.Time) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get("year"))
	if v == "" {
		return now.Year(), nil
	}
	y, err := strconv.Atoi(v)
	if err != nil || y < 1 || y > 9999 {
		return 0, badRequest("invalid year %q", v)
	}
	return y, nil
}

// parsePeriod reads "year" and "month", defaulting to now's month.
func parsePeriod(r *http.Request, now time.Time) (core.Period, error) {
	year, err := parseYear(r, now)
	if err != nil {
		return core.Period{}, err
	}
	p := core.Period{Year: year, Month: now.Month()}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return core.Period{}, badRequest("invalid month %q", v)
		}
		p.Month = time.Month(m)
	}
	if !p.Valid() {
		return core.Period{}, badRequest("invalid month %d", p.Month)
	}
	return p, nil
}

// parseDate accepts YYYY-MM-DD in the server's location or RFC 3339.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(time.DateOnly, s, time.Local); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, badRequest("invalid date %q", s)
	}
	return t, nil
}

// sanitizeInput removes control characters except tab and newlines, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps engine and backend errors to a status and a message that
// does not leak backend details.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classify(err)
	logger := applog.FromContext(r.Context())
	if status >= 500 {
		logger.LogError(r.Context(), "Request failed", err, r.Method+" "+r.URL.Path, nil)
	} else {
		logger.WarnContext(r.Context(), "Request rejected", applog.FieldError, err.Error(), applog.FieldStatusCode, status)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ports.ErrUnauthorized):
		return http.StatusUnauthorized, "missing or invalid bearer token"
	case errors.Is(err, kanban.ErrDuplicateInstallment):
		return http.StatusConflict, "this installment is already scheduled in that month"
	case errors.Is(err, kanban.ErrNotFound):
		return http.StatusNotFound, "transaction not found"
	case errors.Is(err, errBadRequest),
		errors.Is(err, kanban.ErrInvalidStatus),
		errors.Is(err, kanban.ErrInvalidInstallments),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidType),
		errors.Is(err, core.ErrInvalidStatus),
		errors.Is(err, core.ErrEmptyTitle),
		errors.Is(err, core.ErrZeroDate),
		errors.Is(err, core.ErrReplicatedAt):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, kanban.ErrOperationFailed):
		return http.StatusBadGateway, "could not complete operation, the board was reloaded"
	case errors.Is(err, ports.ErrNotFound):
		return http.StatusNotFound, "transaction not found"
	case errors.Is(err, kanban.ErrNotLoaded):
		return http.StatusServiceUnavailable, "board not loaded"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
