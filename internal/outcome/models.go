package outcome

// Level identifies one tier of the attainment hierarchy. Computed scores are
// keyed by level so the same entity-id namespace can never collide across
// tiers.
type Level string

const (
	LevelCourseOutcome   Level = "course_outcome"
	LevelProgramOutcome  Level = "program_outcome"
	LevelGraduateProfile Level = "graduate_profile"
)

// NodeRef names one node in the hierarchy.
type NodeRef struct {
	Level Level  `json:"level"`
	ID    string `json:"id"`
}

type Program struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Course struct {
	ID          string `json:"id"`
	ProgramID   string `json:"program_id"`
	Term        string `json:"term"`
	Name        string `json:"name"`
	CreditHours int    `json:"credit_hours"` // positive; rollup weighting factor
}

// CourseOutcome is a course-scoped learning objective ("CPMK").
type CourseOutcome struct {
	ID       string `json:"id"`
	CourseID string `json:"course_id"`
	Code     string `json:"code,omitempty"`
	Name     string `json:"name"`
}

// ProgramOutcome is a program-scoped learning objective ("CPL"), fed by
// course outcomes across courses.
type ProgramOutcome struct {
	ID        string `json:"id"`
	ProgramID string `json:"program_id"`
	Code      string `json:"code,omitempty"`
	Name      string `json:"name"`
}

// GraduateProfile is the top of the hierarchy: a competency the program
// certifies, fed by program outcomes.
type GraduateProfile struct {
	ID        string `json:"id"`
	ProgramID string `json:"program_id"`
	Code      string `json:"code,omitempty"`
	Name      string `json:"name"`
}

// AssessmentTechnique is a graded activity (exam, assignment, ...) whose
// weight says how much it contributes to its course outcome.
type AssessmentTechnique struct {
	ID              string  `json:"id"`
	CourseOutcomeID string  `json:"course_outcome_id"`
	Name            string  `json:"name"`
	Weight          float64 `json:"weight"` // percentage, 0-100
	RubricRef       string  `json:"rubric_ref,omitempty"`
}

// SubOutcome is an alternative finer-grained breakdown under a course
// outcome, with the same weight invariant as techniques.
type SubOutcome struct {
	ID              string  `json:"id"`
	CourseOutcomeID string  `json:"course_outcome_id"`
	Name            string  `json:"name"`
	Weight          float64 `json:"weight"`
}

// MappingKind selects which two tiers an OutcomeMapping connects.
type MappingKind string

const (
	MappingCourseToProgram  MappingKind = "co_po"
	MappingProgramToProfile MappingKind = "po_gp"
)

// OutcomeMapping connects a node to its parent tier with a contribution
// weight percentage.
type OutcomeMapping struct {
	ID       string      `json:"id"`
	Kind     MappingKind `json:"kind"`
	SourceID string      `json:"source_id"`
	TargetID string      `json:"target_id"`
	Weight   float64     `json:"weight"` // percentage, 0-100
}

type EnrollmentStatus string

const (
	EnrollmentActive EnrollmentStatus = "active"
	EnrollmentLeft   EnrollmentStatus = "left"
)

// Enrollment registers a student in a course for one term.
type Enrollment struct {
	StudentID string           `json:"student_id"`
	CourseID  string           `json:"course_id"`
	Term      string           `json:"term"`
	Status    EnrollmentStatus `json:"status"`
}

// CourseTaken is one (course, enrollment term) pair for a student. A retaken
// course appears once per term taken.
type CourseTaken struct {
	CourseID    string
	ProgramID   string
	Term        string
	CreditHours int
}

// ScoreSourceKind distinguishes the two leaf record types a raw score can
// reference.
type ScoreSourceKind string

const (
	SourceTechnique  ScoreSourceKind = "technique"
	SourceSubOutcome ScoreSourceKind = "sub_outcome"
)

// RawScore is the leaf input: one 0-100 value per (student, technique or
// sub-outcome, term).
type RawScore struct {
	StudentID  string          `json:"student_id"`
	SourceKind ScoreSourceKind `json:"source_kind"`
	SourceID   string          `json:"source_id"`
	Term       string          `json:"term"`
	Value      float64         `json:"value"`
}

// ComputedScore is a derived value, always reproducible from leaf data. Only
// the recompute orchestrator writes these rows.
type ComputedScore struct {
	Level      Level   `json:"level"`
	EntityID   string  `json:"entity_id"`
	StudentID  string  `json:"student_id"`
	Term       string  `json:"term"`
	Value      float64 `json:"value"`
	ComputedAt int64   `json:"computed_at"` // unix millis, staleness audit
}

// Key returns the identity of the row independent of value/timestamp.
func (c ComputedScore) Key() ScoreKey {
	return ScoreKey{Level: c.Level, EntityID: c.EntityID, StudentID: c.StudentID, Term: c.Term}
}

// ScoreKey is the primary key of a computed score row. Used for the
// optimistic-concurrency read set.
type ScoreKey struct {
	Level     Level
	EntityID  string
	StudentID string
	Term      string
}

// WeightedInput is one resolved child input at a level: its contribution
// weight and the child value, nil when not yet assessed. A nil value is
// excluded from both numerator and denominator of the weighted average;
// treating it as zero would penalize students with incomplete records.
type WeightedInput struct {
	NodeID string
	Weight float64  // percentage, 0-100
	Value  *float64 // nil = missing
}

// CourseContribution is one resolved course-outcome input to a program
// outcome: credit hours times contribution weight forms the weight basis.
type CourseContribution struct {
	CourseID        string
	CourseOutcomeID string
	Term            string
	CreditHours     int
	Weight          float64  // CO->PO contribution weight, 0-100
	Score           *float64 // course-outcome computed score, nil = missing
}
