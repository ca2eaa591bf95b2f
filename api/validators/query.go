package validators

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/ptm-finance-backend/internal/dues"
	pkgerrors "github.com/angelmondragon/ptm-finance-backend/pkg/errors"
	"github.com/angelmondragon/ptm-finance-backend/pkg/pagination"
)

func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s must be a number!", key)).WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s must be between %d and %d!", key, min, max)).WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// ParseQueryLimit reads ?limit within 1..pagination.MaxLimit.
func ParseQueryLimit(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return pagination.DefaultLimit, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "Limit must be a number!").WithDetails(map[string]any{"field": "limit"})
	}
	if value < 1 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "Limit must be at least 1!").WithDetails(map[string]any{"field": "limit"})
	}
	if value > pagination.MaxLimit {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("Limit must not be greater than %d!", pagination.MaxLimit)).WithDetails(map[string]any{"field": "limit"})
	}
	return value, nil
}

// ParseQueryCursor reads an optional positive ?cursor.
func ParseQueryCursor(r *http.Request) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("cursor"))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Cursor must be a positive number!").WithDetails(map[string]any{"field": "cursor"})
	}
	return &value, nil
}

// ParsePeriodYear validates a period year from a query or form value.
func ParsePeriodYear(raw string, required bool, defaultVal int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if required {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "Period year is required!").WithDetails(map[string]any{"field": "period_year"})
		}
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "Period year must be a number!").WithDetails(map[string]any{"field": "period_year"})
	}
	if value < dues.MinPeriodYear {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("Period year must be at least %d!", dues.MinPeriodYear)).WithDetails(map[string]any{"field": "period_year"})
	}
	if value > dues.MaxPeriodYear {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("Period year must be at most %d!", dues.MaxPeriodYear)).WithDetails(map[string]any{"field": "period_year"})
	}
	return value, nil
}

// ParsePathID reads a positive integer route parameter.
func ParsePathID(r *http.Request, key string) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "ID must be a number!").WithDetails(map[string]any{"field": key})
	}
	if value <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "ID must be a positive number!").WithDetails(map[string]any{"field": key})
	}
	return value, nil
}
