package outcome

import "context"

// Store is the engine's view of the relational collaborator. Hierarchy and
// weight writes validate their invariants inside their own transaction;
// computed scores are only ever written through a RecomputeTx.
type Store interface {
	WeightReader

	// Hierarchy records. Upserts; numeric ranges are enforced, never clamped.
	PutProgram(ctx context.Context, p Program) error
	PutCourse(ctx context.Context, c Course) error
	PutCourseOutcome(ctx context.Context, co CourseOutcome) error
	PutProgramOutcome(ctx context.Context, po ProgramOutcome) error
	PutGraduateProfile(ctx context.Context, gp GraduateProfile) error
	PutEnrollment(ctx context.Context, e Enrollment) error

	// Weight records. Each write runs the weight validator in the same
	// transaction as the insert/update.
	PutAssessmentTechnique(ctx context.Context, t AssessmentTechnique) error
	DeleteAssessmentTechnique(ctx context.Context, id string) error
	PutSubOutcome(ctx context.Context, so SubOutcome) error
	DeleteSubOutcome(ctx context.Context, id string) error
	PutOutcomeMapping(ctx context.Context, m OutcomeMapping) error
	DeleteOutcomeMapping(ctx context.Context, id string) error

	// Leaf scores.
	PutRawScore(ctx context.Context, s RawScore) error
	ScoreSourceCourse(ctx context.Context, kind ScoreSourceKind, sourceID string) (string, error)

	// Read side (attainment query service).
	GetAttainment(ctx context.Context, f AttainmentFilter) ([]Attainment, error)
	EnrolledStudents(ctx context.Context, courseID string) ([]string, error)

	// Begin opens the transaction one recompute request runs in.
	Begin(ctx context.Context) (RecomputeTx, error)
}

// RecomputeTx is the transactional surface of one recompute request. Reads
// see the transaction's own computed-score writes; reads of rows the
// transaction did not write are tracked and re-checked at Commit, which
// returns ErrConcurrentModification if any changed since they were read.
type RecomputeTx interface {
	// Scope resolution.
	CourseByID(ctx context.Context, id string) (Course, error)
	CourseOutcomes(ctx context.Context, courseID string) ([]CourseOutcome, error)
	EnrolledCourses(ctx context.Context, studentID, term string) ([]CourseTaken, error)
	ProgramOutcomesForCourses(ctx context.Context, courseIDs []string) ([]string, error)
	ProfilesForProgramOutcomes(ctx context.Context, poIDs []string) ([]string, error)

	// Input resolution, one method per hierarchy level. Missing values
	// stay nil, never zero.
	ResolveCourseOutcomeInputs(ctx context.Context, studentID, courseOutcomeID, term string) ([]WeightedInput, error)
	ResolveProgramOutcomeInputs(ctx context.Context, studentID, programOutcomeID string) ([]CourseContribution, error)
	ResolveGraduateProfileInputs(ctx context.Context, studentID, profileID string) ([]WeightedInput, error)

	PutComputedScore(ctx context.Context, cs ComputedScore) error

	Commit(ctx context.Context) error
	Rollback() error
}

// AttainmentStatus flags whether a node has a committed value.
type AttainmentStatus string

const (
	StatusComputed       AttainmentStatus = "computed"
	StatusNotYetAssessed AttainmentStatus = "not-yet-assessed"
)

// Attainment is one row served by the query service. Value is nil exactly
// when Status is not-yet-assessed; it never defaults to zero.
type Attainment struct {
	Level      Level            `json:"level"`
	EntityID   string           `json:"entity_id"`
	EntityCode string           `json:"entity_code,omitempty"`
	StudentID  string           `json:"student_id"`
	Term       string           `json:"term,omitempty"`
	Status     AttainmentStatus `json:"status"`
	Value      *float64         `json:"value,omitempty"`
	ComputedAt int64            `json:"computed_at,omitempty"`
}

// AttainmentFilter narrows a read. Exactly one of StudentID/CourseID/
// ProgramID selects the cohort; Term and Level narrow further. Empty Term
// means all terms.
type AttainmentFilter struct {
	StudentID string
	CourseID  string
	ProgramID string
	Term      string
	Level     Level
}
