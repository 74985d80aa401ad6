package validators

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
)

func invalidField(field, reason string, extra map[string]any) error {
	details := map[string]any{"field": field}
	for k, v := range extra {
		details[k] = v
	}
	return pkgerrors.New(pkgerrors.CodeValidation, field+" "+reason).WithDetails(details)
}

// ParseQueryInt reads an optional integer query parameter bounded by [lo, hi].
func ParseQueryInt(r *http.Request, key string, fallback, lo, hi int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidField(key, "must be an integer", nil)
	}
	if n < lo || n > hi {
		return 0, invalidField(key, "out of range", map[string]any{"min": lo, "max": hi})
	}
	return n, nil
}

// ParseQueryFloat reads a required finite float query parameter.
func ParseQueryFloat(r *http.Request, key string) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, invalidField(key, "is required", nil)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, invalidField(key, "must be a number", nil)
	}
	return f, nil
}

// ParseUUIDParam reads a chi path parameter; the nil UUID is rejected.
func ParseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, key)))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, invalidField(key, "must be a uuid", nil)
	}
	return id, nil
}
