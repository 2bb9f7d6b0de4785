package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/campus-metrics/obe-attainment/internal/outcome"
)

// writeError maps engine error kinds onto HTTP statuses. Validation failures
// block the write; concurrency aborts tell the caller to retry.
func writeError(w http.ResponseWriter, err error) {
	var (
		overflow *outcome.WeightOverflowError
		rng      *outcome.RangeError
	)
	switch {
	case errors.As(err, &overflow):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":         "weight_overflow",
			"sibling_set":   overflow.Set.String(),
			"current_total": overflow.Current,
			"proposed":      overflow.Proposed,
		})
	case errors.As(err, &rng):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "out_of_range",
			"detail": rng.Error(),
		})
	case errors.Is(err, outcome.ErrConcurrentModification):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": "concurrent_modification",
			"retry": true,
		})
	case errors.Is(err, outcome.ErrMissingDependency):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": "missing_dependency",
		})
	case errors.Is(err, outcome.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
