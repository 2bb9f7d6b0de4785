package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/campus-metrics/obe-attainment/internal/outcome"
)

// POST /scores — grade-entry collaborators land raw scores here; the engine
// recomputes the affected (student, course, term) when configured to.
func PutRawScoreHandler(engine *outcome.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var s outcome.RawScore
		if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		if s.StudentID == "" || s.SourceID == "" || s.Term == "" {
			http.Error(w, "student_id, source_id and term required", http.StatusBadRequest)
			return
		}
		if s.SourceKind == "" {
			s.SourceKind = outcome.SourceTechnique
		}
		res, err := engine.RecordScore(r.Context(), s)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"score": s, "recompute": res})
	}
}

type recomputeReq struct {
	StudentID string `json:"student_id"`
	CourseID  string `json:"course_id,omitempty"`
	Term      string `json:"term,omitempty"`
}

// POST /recompute
func RecomputeHandler(engine *outcome.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req recomputeReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		if req.StudentID == "" {
			http.Error(w, "student_id required", http.StatusBadRequest)
			return
		}
		res, err := engine.Recompute(r.Context(), req.StudentID, req.CourseID, req.Term)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// POST /students/{studentID}/recompute
func RecomputeStudentHandler(engine *outcome.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID := strings.TrimSpace(chi.URLParam(r, "studentID"))
		if studentID == "" {
			http.Error(w, "studentID required", http.StatusBadRequest)
			return
		}
		res, err := engine.RecomputeForStudent(r.Context(), studentID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// POST /courses/{courseID}/recompute — all enrolled students, one
// transaction each.
func RecomputeCourseHandler(engine *outcome.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := strings.TrimSpace(chi.URLParam(r, "courseID"))
		if courseID == "" {
			http.Error(w, "courseID required", http.StatusBadRequest)
			return
		}
		results, err := engine.RecomputeForCourse(r.Context(), courseID)
		if err != nil && len(results) == 0 {
			writeError(w, err)
			return
		}
		status := http.StatusOK
		if err != nil {
			status = http.StatusMultiStatus
		}
		writeJSON(w, status, results)
	}
}
