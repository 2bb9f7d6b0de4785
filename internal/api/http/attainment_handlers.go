package http

import (
	"math"
	"net/http"

	"github.com/campus-metrics/obe-attainment/internal/outcome"
)

type attainmentRow struct {
	outcome.Attainment
	Display *float64 `json:"display,omitempty"` // value rounded for presentation
}

// GET /attainment?student_id=&course_id=&program_id=&term=&level=
// Read-only: serves the latest committed values, never triggers a recompute.
// Rounding to two decimals happens here and only here.
func GetAttainmentHandler(store outcome.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := outcome.AttainmentFilter{
			StudentID: q.Get("student_id"),
			CourseID:  q.Get("course_id"),
			ProgramID: q.Get("program_id"),
			Term:      q.Get("term"),
			Level:     outcome.Level(q.Get("level")),
		}
		if f.StudentID == "" && f.CourseID == "" && f.ProgramID == "" {
			http.Error(w, "one of student_id, course_id, program_id required", http.StatusBadRequest)
			return
		}
		rows, err := store.GetAttainment(r.Context(), f)
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]attainmentRow, 0, len(rows))
		for _, a := range rows {
			row := attainmentRow{Attainment: a}
			if a.Value != nil {
				d := math.Round(*a.Value*100) / 100
				row.Display = &d
			}
			out = append(out, row)
		}
		writeJSON(w, http.StatusOK, out)
	}
}
