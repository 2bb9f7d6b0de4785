package outcome

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// coverageEpsilon absorbs float drift in declared-weight sums: decimal
// weights like 33.3+33.3+33.4 must count as full coverage.
const coverageEpsilon = 1e-9

// Phase is the recompute state machine. Terminal phases are PhaseCommitted
// and PhaseAborted; PhaseAborted is reachable from every other phase.
type Phase string

const (
	PhasePending         Phase = "pending"
	PhaseResolvingInputs Phase = "resolving_inputs"
	PhaseComputing       Phase = "computing"
	PhasePersisting      Phase = "persisting"
	PhaseCommitted       Phase = "committed"
	PhaseAborted         Phase = "aborted"
)

// Scope selects what one recompute request covers. StudentID is required;
// CourseID narrows to one course, Term to one term.
type Scope struct {
	StudentID string `json:"student_id"`
	CourseID  string `json:"course_id,omitempty"`
	Term      string `json:"term,omitempty"`
}

// Skip reasons for nodes that produced no computed score.
const (
	SkipMissingDependency = "missing-dependency" // no child weight records exist
	SkipNotYetAssessed    = "not-yet-assessed"   // children exist, all values missing
	SkipPartialCoverage   = "partial-coverage"   // full-coverage policy: weights don't reach 100
)

type SkippedNode struct {
	Node   NodeRef `json:"node"`
	Reason string  `json:"reason"`
}

// Result reports one recompute request. Written holds every computed score
// persisted by the request's transaction; on abort nothing was persisted.
type Result struct {
	RequestID string          `json:"request_id"`
	Scope     Scope           `json:"scope"`
	Phase     Phase           `json:"phase"`
	Written   []ComputedScore `json:"written"`
	Skipped   []SkippedNode   `json:"skipped,omitempty"`
	Err       error           `json:"-"`
}

// Auditor records terminal recompute outcomes. Advisory: failures never fail
// the recompute itself.
type Auditor interface {
	RecordRecompute(ctx context.Context, res *Result) error
}

// Engine drives weight validation and recomputation over a Store.
type Engine struct {
	store Store
	audit Auditor

	requireFullCoverage bool
	recomputeOnWrite    bool

	now func() int64
}

type Option func(*Engine)

// WithFullCoverage requires technique weights to sum to exactly 100 before a
// course outcome is gradable.
func WithFullCoverage(b bool) Option { return func(e *Engine) { e.requireFullCoverage = b } }

// WithRecomputeOnWrite makes RecordScore synchronously recompute the affected
// (student, course, term).
func WithRecomputeOnWrite(b bool) Option { return func(e *Engine) { e.recomputeOnWrite = b } }

func WithAuditor(a Auditor) Option { return func(e *Engine) { e.audit = a } }

func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:            store,
		recomputeOnWrite: true,
		now:              func() int64 { return time.Now().UnixMilli() },
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// ValidateWeight is the standalone validator contract for write collaborators
// that pre-flight a weight edit outside the store's own checked writes.
func (e *Engine) ValidateWeight(ctx context.Context, set SiblingSet, proposed float64, excludeID string) error {
	return ValidateWeight(ctx, e.store, set, proposed, excludeID)
}

// RecordScore persists a leaf raw score and, when enabled, synchronously
// recomputes the affected (student, course, term).
func (e *Engine) RecordScore(ctx context.Context, s RawScore) (*Result, error) {
	if err := e.store.PutRawScore(ctx, s); err != nil {
		return nil, err
	}
	if !e.recomputeOnWrite {
		return nil, nil
	}
	courseID, err := e.store.ScoreSourceCourse(ctx, s.SourceKind, s.SourceID)
	if err != nil {
		return nil, err
	}
	return e.Recompute(ctx, s.StudentID, courseID, s.Term)
}

// Recompute runs one request for (student, course, term). CourseID and term
// may be empty to widen the scope.
func (e *Engine) Recompute(ctx context.Context, studentID, courseID, term string) (*Result, error) {
	return e.run(ctx, Scope{StudentID: studentID, CourseID: courseID, Term: term})
}

// RecomputeForStudent recomputes every course the student has taken, across
// all terms, then the dependent program outcomes and graduate profiles.
func (e *Engine) RecomputeForStudent(ctx context.Context, studentID string) (*Result, error) {
	return e.run(ctx, Scope{StudentID: studentID})
}

// RecomputeForCourse recomputes one course for every enrolled student. Each
// student runs in its own transaction; one student's abort does not roll the
// others back.
func (e *Engine) RecomputeForCourse(ctx context.Context, courseID string) ([]*Result, error) {
	students, err := e.store.EnrolledStudents(ctx, courseID)
	if err != nil {
		return nil, err
	}
	sort.Strings(students)
	var (
		results []*Result
		errs    []error
	)
	for _, sid := range students {
		res, err := e.run(ctx, Scope{StudentID: sid, CourseID: courseID})
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return results, errors.Join(errs...)
}

// run executes the state machine for one request. Level ordering is strict:
// all course outcomes first, then program outcomes, then graduate profiles —
// each level resolves against the previous level's writes within the same
// transaction. Everything persists atomically at Commit.
func (e *Engine) run(ctx context.Context, scope Scope) (*Result, error) {
	res := &Result{RequestID: uuid.NewString(), Scope: scope, Phase: PhasePending}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return e.abort(ctx, res, nil, err)
	}

	res.Phase = PhaseResolvingInputs
	courses, err := e.scopeCourses(ctx, tx, scope)
	if err != nil {
		return e.abort(ctx, res, tx, err)
	}
	if len(courses) == 0 {
		return e.abort(ctx, res, tx, ErrMissingDependency)
	}

	res.Phase = PhaseComputing

	// Level 1: course outcomes, per (course, term) pair.
	courseIDs := make([]string, 0, len(courses))
	latestTerm := ""
	for _, c := range courses {
		courseIDs = append(courseIDs, c.CourseID)
		if c.Term > latestTerm {
			latestTerm = c.Term
		}
	}
	sort.Strings(courseIDs)

	for _, c := range courses {
		if err := ctx.Err(); err != nil {
			return e.abort(ctx, res, tx, err)
		}
		cos, err := tx.CourseOutcomes(ctx, c.CourseID)
		if err != nil {
			return e.abort(ctx, res, tx, err)
		}
		sort.Slice(cos, func(i, j int) bool { return cos[i].ID < cos[j].ID })
		for _, co := range cos {
			node := NodeRef{Level: LevelCourseOutcome, ID: co.ID}
			inputs, err := tx.ResolveCourseOutcomeInputs(ctx, scope.StudentID, co.ID, c.Term)
			if err != nil {
				return e.abort(ctx, res, tx, err)
			}
			if len(inputs) == 0 {
				res.Skipped = append(res.Skipped, SkippedNode{Node: node, Reason: SkipMissingDependency})
				continue
			}
			if e.requireFullCoverage && math.Abs(CoverageTotal(inputs)-100) > coverageEpsilon {
				res.Skipped = append(res.Skipped, SkippedNode{Node: node, Reason: SkipPartialCoverage})
				continue
			}
			v, ok := CourseOutcomeScore(inputs)
			if !ok {
				res.Skipped = append(res.Skipped, SkippedNode{Node: node, Reason: SkipNotYetAssessed})
				continue
			}
			cs := ComputedScore{Level: LevelCourseOutcome, EntityID: co.ID, StudentID: scope.StudentID, Term: c.Term, Value: v, ComputedAt: e.now()}
			if err := tx.PutComputedScore(ctx, cs); err != nil {
				return e.abort(ctx, res, tx, err)
			}
			res.Written = append(res.Written, cs)
		}
	}

	// Aggregate rows (program outcome, graduate profile) are keyed by the
	// student's latest enrolled term across all enrollments, not by the
	// scope's term: a narrow recompute for an earlier-term course must
	// refresh the same row a full pass writes, never file a second one.
	aggTerm := latestTerm
	enrolled, err := tx.EnrolledCourses(ctx, scope.StudentID, "")
	if err != nil {
		return e.abort(ctx, res, tx, err)
	}
	for _, c := range enrolled {
		if c.Term > aggTerm {
			aggTerm = c.Term
		}
	}

	// Level 2: program outcomes fed by any affected course.
	poIDs, err := tx.ProgramOutcomesForCourses(ctx, courseIDs)
	if err != nil {
		return e.abort(ctx, res, tx, err)
	}
	sort.Strings(poIDs)
	for _, poID := range poIDs {
		if err := ctx.Err(); err != nil {
			return e.abort(ctx, res, tx, err)
		}
		node := NodeRef{Level: LevelProgramOutcome, ID: poID}
		contribs, err := tx.ResolveProgramOutcomeInputs(ctx, scope.StudentID, poID)
		if err != nil {
			return e.abort(ctx, res, tx, err)
		}
		v, ok := ProgramOutcomeAttainment(contribs)
		if !ok {
			res.Skipped = append(res.Skipped, SkippedNode{Node: node, Reason: SkipNotYetAssessed})
			continue
		}
		cs := ComputedScore{Level: LevelProgramOutcome, EntityID: poID, StudentID: scope.StudentID, Term: aggTerm, Value: v, ComputedAt: e.now()}
		if err := tx.PutComputedScore(ctx, cs); err != nil {
			return e.abort(ctx, res, tx, err)
		}
		res.Written = append(res.Written, cs)
	}

	// Level 3: graduate profiles fed by any affected program outcome.
	gpIDs, err := tx.ProfilesForProgramOutcomes(ctx, poIDs)
	if err != nil {
		return e.abort(ctx, res, tx, err)
	}
	sort.Strings(gpIDs)
	for _, gpID := range gpIDs {
		if err := ctx.Err(); err != nil {
			return e.abort(ctx, res, tx, err)
		}
		node := NodeRef{Level: LevelGraduateProfile, ID: gpID}
		inputs, err := tx.ResolveGraduateProfileInputs(ctx, scope.StudentID, gpID)
		if err != nil {
			return e.abort(ctx, res, tx, err)
		}
		v, ok := GraduateProfileAttainment(inputs)
		if !ok {
			res.Skipped = append(res.Skipped, SkippedNode{Node: node, Reason: SkipNotYetAssessed})
			continue
		}
		cs := ComputedScore{Level: LevelGraduateProfile, EntityID: gpID, StudentID: scope.StudentID, Term: aggTerm, Value: v, ComputedAt: e.now()}
		if err := tx.PutComputedScore(ctx, cs); err != nil {
			return e.abort(ctx, res, tx, err)
		}
		res.Written = append(res.Written, cs)
	}

	// Last cancellation point: once persisting starts, the request runs to
	// commit or full rollback.
	if err := ctx.Err(); err != nil {
		return e.abort(ctx, res, tx, err)
	}
	res.Phase = PhasePersisting
	if err := tx.Commit(ctx); err != nil {
		return e.abort(ctx, res, nil, err)
	}
	res.Phase = PhaseCommitted
	e.recordAudit(ctx, res)
	return res, nil
}

// scopeCourses resolves the (course, term) pairs a request covers.
func (e *Engine) scopeCourses(ctx context.Context, tx RecomputeTx, scope Scope) ([]CourseTaken, error) {
	if scope.CourseID != "" {
		c, err := tx.CourseByID(ctx, scope.CourseID)
		if err != nil {
			return nil, err
		}
		term := scope.Term
		if term == "" {
			term = c.Term
		}
		return []CourseTaken{{CourseID: c.ID, ProgramID: c.ProgramID, Term: term, CreditHours: c.CreditHours}}, nil
	}
	return tx.EnrolledCourses(ctx, scope.StudentID, scope.Term)
}

func (e *Engine) abort(ctx context.Context, res *Result, tx RecomputeTx, err error) (*Result, error) {
	if tx != nil {
		_ = tx.Rollback()
	}
	res.Phase = PhaseAborted
	res.Written = nil
	res.Err = err
	e.recordAudit(ctx, res)
	return res, err
}

func (e *Engine) recordAudit(ctx context.Context, res *Result) {
	if e.audit == nil {
		return
	}
	_ = e.audit.RecordRecompute(ctx, res)
}
