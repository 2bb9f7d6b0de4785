package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/campus-metrics/obe-attainment/internal/outcome"
)

// PUT /techniques/{id}
func PutTechniqueHandler(store outcome.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var t outcome.AssessmentTechnique
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		t.ID = strings.TrimSpace(chi.URLParam(r, "id"))
		if t.ID == "" || t.CourseOutcomeID == "" {
			http.Error(w, "id and course_outcome_id required", http.StatusBadRequest)
			return
		}
		if err := store.PutAssessmentTechnique(r.Context(), t); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

// DELETE /techniques/{id}
func DeleteTechniqueHandler(store outcome.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		if err := store.DeleteAssessmentTechnique(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// PUT /sub-outcomes/{id}
func PutSubOutcomeHandler(store outcome.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var so outcome.SubOutcome
		if err := json.NewDecoder(r.Body).Decode(&so); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		so.ID = strings.TrimSpace(chi.URLParam(r, "id"))
		if so.ID == "" || so.CourseOutcomeID == "" {
			http.Error(w, "id and course_outcome_id required", http.StatusBadRequest)
			return
		}
		if err := store.PutSubOutcome(r.Context(), so); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, so)
	}
}

// PUT /mappings/{id}
func PutMappingHandler(store outcome.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var m outcome.OutcomeMapping
		if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		m.ID = strings.TrimSpace(chi.URLParam(r, "id"))
		if m.ID == "" || m.SourceID == "" || m.TargetID == "" {
			http.Error(w, "id, source_id and target_id required", http.StatusBadRequest)
			return
		}
		if err := store.PutOutcomeMapping(r.Context(), m); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

// DELETE /mappings/{id}
func DeleteMappingHandler(store outcome.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		if err := store.DeleteOutcomeMapping(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type validateWeightReq struct {
	Kind     outcome.SiblingKind `json:"kind"`
	ParentID string              `json:"parent_id"`
	TargetID string              `json:"target_id,omitempty"`
	Weight   float64             `json:"weight"`
	Exclude  string              `json:"exclude_id,omitempty"`
}

// POST /weights/validate — pre-flight check for write collaborators. The
// authoritative check still runs inside the write's own transaction.
func ValidateWeightHandler(engine *outcome.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req validateWeightReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		set := outcome.SiblingSet{Kind: req.Kind, ParentID: req.ParentID, TargetID: req.TargetID}
		if err := engine.ValidateWeight(r.Context(), set, req.Weight, req.Exclude); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}
