package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"bizreview/internal/core"
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 64 << 10

// requestError is a malformed request, as opposed to a rejected value.
type requestError struct {
	status int
	field  string
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(field, format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, field: field, msg: fmt.Sprintf(format, args...)}
}

type (
	categorizeRequest struct {
		BillLineID string `json:"billLineId"`
		Category   string `json:"category"`
	}

	distributionRequest struct {
		GroupKey string `json:"groupKey"`
		Category string `json:"category"`
		Months   int    `json:"months"`
	}

	labourRequest struct {
		Tabs      map[string]float64            `json:"tabs"`
		Roles     map[string]map[string]float64 `json:"roles"`
		Deduction *decimal.Decimal              `json:"deduction"`
	}

	fixedCostsRequest struct {
		Tabs  map[string]float64 `json:"tabs"`
		Month string             `json:"month,omitempty"`
	}
)

// decodeJSON reads exactly one JSON object into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return &requestError{status: http.StatusUnsupportedMediaType, msg: "content type must be application/json"}
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return &requestError{status: http.StatusRequestEntityTooLarge, msg: "request body too large"}
		case errors.Is(err, io.EOF):
			return badRequest("", "request body is empty")
		default:
			return badRequest("", "invalid JSON: %v", err)
		}
	}
	if dec.More() {
		return badRequest("", "request body must hold a single JSON object")
	}
	return nil
}

// parseOffset reads a period offset; empty means 0.
func parseOffset(v string) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest("offset", "offset must be an integer")
	}
	return n, nil
}

// parseMonth reads a YYYY-MM value; empty yields def.
func parseMonth(field, v string, def core.MonthKey) (core.MonthKey, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return def, nil
	}
	m, err := core.ParseMonthKey(v)
	if err != nil {
		return core.MonthKey{}, core.NewValidationError(field, v, core.ErrInvalidMonthKey)
	}
	return m, nil
}
