package outcome

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SQLStore implements Store over database/sql ("sqlite" or "postgres"; both
// dialects accept the $n placeholders used here).
type SQLStore struct {
	db     *sql.DB
	driver string
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

/* ---------------- weight validator reads ---------------- */

func (s *SQLStore) SumSiblingWeights(ctx context.Context, set SiblingSet, excludeID string) (float64, error) {
	return sumSiblings(ctx, s.db, set, excludeID)
}

func sumSiblings(ctx context.Context, q querier, set SiblingSet, excludeID string) (float64, error) {
	var (
		query string
		args  []any
	)
	switch set.Kind {
	case SiblingTechniques:
		query = `SELECT COALESCE(SUM(weight),0) FROM assessment_techniques WHERE course_outcome_id=$1 AND id<>$2`
		args = []any{set.ParentID, excludeID}
	case SiblingSubOutcomes:
		query = `SELECT COALESCE(SUM(weight),0) FROM sub_outcomes WHERE course_outcome_id=$1 AND id<>$2`
		args = []any{set.ParentID, excludeID}
	case SiblingCourseToProgram:
		query = `SELECT COALESCE(SUM(m.weight),0)
			 FROM outcome_mappings m
			 JOIN course_outcomes co ON co.id = m.source_id
			 WHERE m.kind='co_po' AND co.course_id=$1 AND m.target_id=$2 AND m.id<>$3`
		args = []any{set.ParentID, set.TargetID, excludeID}
	case SiblingProgramToProfile:
		query = `SELECT COALESCE(SUM(weight),0) FROM outcome_mappings WHERE kind='po_gp' AND target_id=$1 AND id<>$2`
		args = []any{set.ParentID, excludeID}
	default:
		return 0, fmt.Errorf("unknown sibling kind: %s", set.Kind)
	}
	var total float64
	if err := q.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, storeErr("sum sibling weights", err)
	}
	return total, nil
}

// weightReaderFunc adapts a closure to WeightReader so the validator can run
// against the write's own transaction.
type weightReaderFunc func(ctx context.Context, set SiblingSet, excludeID string) (float64, error)

func (f weightReaderFunc) SumSiblingWeights(ctx context.Context, set SiblingSet, excludeID string) (float64, error) {
	return f(ctx, set, excludeID)
}

/* ---------------- hierarchy writes ---------------- */

func (s *SQLStore) PutProgram(ctx context.Context, p Program) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO programs (id,name) VALUES ($1,$2)
		 ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name`, p.ID, p.Name)
	return storeErr("put program", err)
}

func (s *SQLStore) PutCourse(ctx context.Context, c Course) error {
	if c.CreditHours <= 0 {
		return &RangeError{Field: "credit_hours", Value: float64(c.CreditHours), Min: 1, Max: 99}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO courses (id,program_id,term,name,credit_hours) VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (id) DO UPDATE SET program_id=EXCLUDED.program_id, term=EXCLUDED.term,
		   name=EXCLUDED.name, credit_hours=EXCLUDED.credit_hours`,
		c.ID, c.ProgramID, c.Term, c.Name, c.CreditHours)
	return storeErr("put course", err)
}

func (s *SQLStore) PutCourseOutcome(ctx context.Context, co CourseOutcome) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO course_outcomes (id,course_id,code,name) VALUES ($1,$2,$3,$4)
		 ON CONFLICT (id) DO UPDATE SET course_id=EXCLUDED.course_id, code=EXCLUDED.code, name=EXCLUDED.name`,
		co.ID, co.CourseID, co.Code, co.Name)
	return storeErr("put course outcome", err)
}

func (s *SQLStore) PutProgramOutcome(ctx context.Context, po ProgramOutcome) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO program_outcomes (id,program_id,code,name) VALUES ($1,$2,$3,$4)
		 ON CONFLICT (id) DO UPDATE SET program_id=EXCLUDED.program_id, code=EXCLUDED.code, name=EXCLUDED.name`,
		po.ID, po.ProgramID, po.Code, po.Name)
	return storeErr("put program outcome", err)
}

func (s *SQLStore) PutGraduateProfile(ctx context.Context, gp GraduateProfile) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO graduate_profiles (id,program_id,code,name) VALUES ($1,$2,$3,$4)
		 ON CONFLICT (id) DO UPDATE SET program_id=EXCLUDED.program_id, code=EXCLUDED.code, name=EXCLUDED.name`,
		gp.ID, gp.ProgramID, gp.Code, gp.Name)
	return storeErr("put graduate profile", err)
}

func (s *SQLStore) PutEnrollment(ctx context.Context, e Enrollment) error {
	if e.Status == "" {
		e.Status = EnrollmentActive
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO enrollments (student_id,course_id,term,status) VALUES ($1,$2,$3,$4)
		 ON CONFLICT (student_id,course_id,term) DO UPDATE SET status=EXCLUDED.status`,
		e.StudentID, e.CourseID, e.Term, e.Status)
	return storeErr("put enrollment", err)
}

/* ---------------- weight-checked writes ---------------- */

// PutAssessmentTechnique validates the sibling weight sum and writes the
// record in one transaction, so concurrent edits of one sibling set cannot
// both slip under 100%.
func (s *SQLStore) PutAssessmentTechnique(ctx context.Context, t AssessmentTechnique) error {
	return s.checkedWrite(ctx,
		SiblingSet{Kind: SiblingTechniques, ParentID: t.CourseOutcomeID}, t.Weight, t.ID,
		`INSERT INTO assessment_techniques (id,course_outcome_id,name,weight,rubric_ref) VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (id) DO UPDATE SET course_outcome_id=EXCLUDED.course_outcome_id, name=EXCLUDED.name,
		   weight=EXCLUDED.weight, rubric_ref=EXCLUDED.rubric_ref`,
		t.ID, t.CourseOutcomeID, t.Name, t.Weight, t.RubricRef)
}

func (s *SQLStore) PutSubOutcome(ctx context.Context, so SubOutcome) error {
	return s.checkedWrite(ctx,
		SiblingSet{Kind: SiblingSubOutcomes, ParentID: so.CourseOutcomeID}, so.Weight, so.ID,
		`INSERT INTO sub_outcomes (id,course_outcome_id,name,weight) VALUES ($1,$2,$3,$4)
		 ON CONFLICT (id) DO UPDATE SET course_outcome_id=EXCLUDED.course_outcome_id, name=EXCLUDED.name,
		   weight=EXCLUDED.weight`,
		so.ID, so.CourseOutcomeID, so.Name, so.Weight)
}

func (s *SQLStore) PutOutcomeMapping(ctx context.Context, m OutcomeMapping) error {
	var set SiblingSet
	switch m.Kind {
	case MappingCourseToProgram:
		var courseID string
		err := s.db.QueryRowContext(ctx,
			`SELECT course_id FROM course_outcomes WHERE id=$1`, m.SourceID).Scan(&courseID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("course outcome %s: %w", m.SourceID, ErrNotFound)
		}
		if err != nil {
			return storeErr("lookup mapping course", err)
		}
		set = SiblingSet{Kind: SiblingCourseToProgram, ParentID: courseID, TargetID: m.TargetID}
	case MappingProgramToProfile:
		set = SiblingSet{Kind: SiblingProgramToProfile, ParentID: m.TargetID}
	default:
		return fmt.Errorf("unknown mapping kind: %s", m.Kind)
	}
	return s.checkedWrite(ctx, set, m.Weight, m.ID,
		`INSERT INTO outcome_mappings (id,kind,source_id,target_id,weight) VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (id) DO UPDATE SET kind=EXCLUDED.kind, source_id=EXCLUDED.source_id,
		   target_id=EXCLUDED.target_id, weight=EXCLUDED.weight`,
		m.ID, m.Kind, m.SourceID, m.TargetID, m.Weight)
}

func (s *SQLStore) checkedWrite(ctx context.Context, set SiblingSet, weight float64, recordID, stmt string, args ...any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin", err)
	}
	defer tx.Rollback()

	reader := weightReaderFunc(func(ctx context.Context, set SiblingSet, excludeID string) (float64, error) {
		return sumSiblings(ctx, tx, set, excludeID)
	})
	if err := ValidateWeight(ctx, reader, set, weight, recordID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
		return storeErr("write weight record", err)
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit weight record", err)
	}
	return nil
}

// DeleteAssessmentTechnique refuses to delete a technique that raw scores
// still reference.
func (s *SQLStore) DeleteAssessmentTechnique(ctx context.Context, id string) error {
	return s.deleteScoreSource(ctx, `assessment_techniques`, SourceTechnique, id)
}

func (s *SQLStore) DeleteSubOutcome(ctx context.Context, id string) error {
	return s.deleteScoreSource(ctx, `sub_outcomes`, SourceSubOutcome, id)
}

func (s *SQLStore) deleteScoreSource(ctx context.Context, table string, kind ScoreSourceKind, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin", err)
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM raw_scores WHERE source_kind=$1 AND source_id=$2`, kind, id).Scan(&n); err != nil {
		return storeErr("count scores", err)
	}
	if n > 0 {
		return fmt.Errorf("%s %s has %d raw scores; delete them first", kind, id, n)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE id=$1`, id)
	if err != nil {
		return storeErr("delete", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return storeErr("commit delete", tx.Commit())
}

func (s *SQLStore) DeleteOutcomeMapping(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM outcome_mappings WHERE id=$1`, id)
	if err != nil {
		return storeErr("delete mapping", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("mapping %s: %w", id, ErrNotFound)
	}
	return nil
}

/* ---------------- leaf scores ---------------- */

func (s *SQLStore) PutRawScore(ctx context.Context, sc RawScore) error {
	if sc.Value < 0 || sc.Value > 100 {
		return &RangeError{Field: "score", Value: sc.Value, Min: 0, Max: 100}
	}
	if _, err := s.ScoreSourceCourse(ctx, sc.SourceKind, sc.SourceID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO raw_scores (student_id,source_kind,source_id,term,value,updated_at) VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (student_id,source_kind,source_id,term) DO UPDATE SET value=EXCLUDED.value, updated_at=EXCLUDED.updated_at`,
		sc.StudentID, sc.SourceKind, sc.SourceID, sc.Term, sc.Value, time.Now().UnixMilli())
	return storeErr("put raw score", err)
}

// ScoreSourceCourse resolves which course a raw score's technique or
// sub-outcome belongs to.
func (s *SQLStore) ScoreSourceCourse(ctx context.Context, kind ScoreSourceKind, sourceID string) (string, error) {
	var table string
	switch kind {
	case SourceTechnique:
		table = `assessment_techniques`
	case SourceSubOutcome:
		table = `sub_outcomes`
	default:
		return "", fmt.Errorf("unknown score source kind: %s", kind)
	}
	var courseID string
	err := s.db.QueryRowContext(ctx,
		`SELECT co.course_id FROM `+table+` t JOIN course_outcomes co ON co.id = t.course_outcome_id WHERE t.id=$1`,
		sourceID).Scan(&courseID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s %s: %w", kind, sourceID, ErrNotFound)
	}
	if err != nil {
		return "", storeErr("score source course", err)
	}
	return courseID, nil
}

/* ---------------- read side ---------------- */

func (s *SQLStore) EnrolledStudents(ctx context.Context, courseID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT student_id FROM enrollments WHERE course_id=$1 AND status=$2 ORDER BY student_id`,
		courseID, EnrollmentActive)
	if err != nil {
		return nil, storeErr("enrolled students", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var sid string
		if err := rows.Scan(&sid); err != nil {
			return nil, storeErr("enrolled students", err)
		}
		out = append(out, sid)
	}
	return out, rows.Err()
}

// GetAttainment serves committed computed scores. Nodes in scope with no
// committed value come back with StatusNotYetAssessed and a nil value, never
// zero. It never triggers recomputation.
func (s *SQLStore) GetAttainment(ctx context.Context, f AttainmentFilter) ([]Attainment, error) {
	var out []Attainment
	levels := []Level{LevelCourseOutcome, LevelProgramOutcome, LevelGraduateProfile}
	if f.Level != "" {
		levels = []Level{f.Level}
	}
	for _, lvl := range levels {
		rows, err := s.attainmentRows(ctx, lvl, f)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func (s *SQLStore) attainmentRows(ctx context.Context, lvl Level, f AttainmentFilter) ([]Attainment, error) {
	var query string
	switch lvl {
	case LevelCourseOutcome:
		query = `
			SELECT co.id, co.code, e.student_id, e.term, cs.value, cs.computed_at
			FROM enrollments e
			JOIN courses c ON c.id = e.course_id
			JOIN course_outcomes co ON co.course_id = c.id
			LEFT JOIN computed_scores cs ON cs.level='course_outcome' AND cs.entity_id = co.id
			  AND cs.student_id = e.student_id AND cs.term = e.term
			WHERE ($1='' OR e.student_id=$1) AND ($2='' OR c.id=$2)
			  AND ($3='' OR c.program_id=$3) AND ($4='' OR e.term=$4)
			ORDER BY co.id, e.student_id, e.term`
	case LevelProgramOutcome:
		query = `
			SELECT po.id, po.code, st.student_id, cs.term, cs.value, cs.computed_at
			FROM program_outcomes po
			JOIN (SELECT DISTINCT e.student_id, c.program_id
			      FROM enrollments e JOIN courses c ON c.id = e.course_id
			      WHERE ($1='' OR e.student_id=$1) AND ($2='' OR c.id=$2) AND ($3='' OR c.program_id=$3)) st
			  ON st.program_id = po.program_id
			LEFT JOIN computed_scores cs ON cs.level='program_outcome' AND cs.entity_id = po.id
			  AND cs.student_id = st.student_id AND ($4='' OR cs.term=$4)
			ORDER BY po.id, st.student_id, cs.term`
	case LevelGraduateProfile:
		query = `
			SELECT gp.id, gp.code, st.student_id, cs.term, cs.value, cs.computed_at
			FROM graduate_profiles gp
			JOIN (SELECT DISTINCT e.student_id, c.program_id
			      FROM enrollments e JOIN courses c ON c.id = e.course_id
			      WHERE ($1='' OR e.student_id=$1) AND ($2='' OR c.id=$2) AND ($3='' OR c.program_id=$3)) st
			  ON st.program_id = gp.program_id
			LEFT JOIN computed_scores cs ON cs.level='graduate_profile' AND cs.entity_id = gp.id
			  AND cs.student_id = st.student_id AND ($4='' OR cs.term=$4)
			ORDER BY gp.id, st.student_id, cs.term`
	default:
		return nil, fmt.Errorf("unknown level: %s", lvl)
	}

	rows, err := s.db.QueryContext(ctx, query, f.StudentID, f.CourseID, f.ProgramID, f.Term)
	if err != nil {
		return nil, storeErr("attainment query", err)
	}
	defer rows.Close()

	var out []Attainment
	for rows.Next() {
		var (
			a          Attainment
			term       sql.NullString
			value      sql.NullFloat64
			computedAt sql.NullInt64
		)
		if err := rows.Scan(&a.EntityID, &a.EntityCode, &a.StudentID, &term, &value, &computedAt); err != nil {
			return nil, storeErr("attainment scan", err)
		}
		a.Level = lvl
		a.Term = term.String
		if value.Valid {
			v := value.Float64
			a.Value = &v
			a.Status = StatusComputed
			a.ComputedAt = computedAt.Int64
		} else {
			a.Status = StatusNotYetAssessed
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

/* ---------------- recompute transaction ---------------- */

type scoreVersion struct {
	exists     bool
	value      float64
	computedAt int64
}

type sqlRecomputeTx struct {
	db      *sql.DB
	tx      *sql.Tx
	readSet map[ScoreKey]scoreVersion
	written map[ScoreKey]bool
	done    bool
}

func (s *SQLStore) Begin(ctx context.Context) (RecomputeTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr("begin recompute", err)
	}
	return &sqlRecomputeTx{
		db:      s.db,
		tx:      tx,
		readSet: map[ScoreKey]scoreVersion{},
		written: map[ScoreKey]bool{},
	}, nil
}

func (t *sqlRecomputeTx) noteRead(key ScoreKey, v scoreVersion) {
	if t.written[key] {
		return
	}
	if _, ok := t.readSet[key]; !ok {
		t.readSet[key] = v
	}
}

func (t *sqlRecomputeTx) CourseByID(ctx context.Context, id string) (Course, error) {
	var c Course
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, program_id, term, name, credit_hours FROM courses WHERE id=$1`, id).
		Scan(&c.ID, &c.ProgramID, &c.Term, &c.Name, &c.CreditHours)
	if errors.Is(err, sql.ErrNoRows) {
		return Course{}, fmt.Errorf("course %s: %w", id, ErrNotFound)
	}
	return c, storeErr("course by id", err)
}

func (t *sqlRecomputeTx) CourseOutcomes(ctx context.Context, courseID string) ([]CourseOutcome, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT id, course_id, code, name FROM course_outcomes WHERE course_id=$1 ORDER BY id`, courseID)
	if err != nil {
		return nil, storeErr("course outcomes", err)
	}
	defer rows.Close()
	var out []CourseOutcome
	for rows.Next() {
		var co CourseOutcome
		if err := rows.Scan(&co.ID, &co.CourseID, &co.Code, &co.Name); err != nil {
			return nil, storeErr("course outcomes", err)
		}
		out = append(out, co)
	}
	return out, rows.Err()
}

func (t *sqlRecomputeTx) EnrolledCourses(ctx context.Context, studentID, term string) ([]CourseTaken, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT c.id, c.program_id, e.term, c.credit_hours
		 FROM enrollments e JOIN courses c ON c.id = e.course_id
		 WHERE e.student_id=$1 AND e.status=$2 AND ($3='' OR e.term=$3)
		 ORDER BY c.id, e.term`, studentID, EnrollmentActive, term)
	if err != nil {
		return nil, storeErr("enrolled courses", err)
	}
	defer rows.Close()
	var out []CourseTaken
	for rows.Next() {
		var ct CourseTaken
		if err := rows.Scan(&ct.CourseID, &ct.ProgramID, &ct.Term, &ct.CreditHours); err != nil {
			return nil, storeErr("enrolled courses", err)
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

func (t *sqlRecomputeTx) ProgramOutcomesForCourses(ctx context.Context, courseIDs []string) ([]string, error) {
	if len(courseIDs) == 0 {
		return nil, nil
	}
	ph, args := placeholders(courseIDs, 1)
	rows, err := t.tx.QueryContext(ctx,
		`SELECT DISTINCT m.target_id
		 FROM outcome_mappings m JOIN course_outcomes co ON co.id = m.source_id
		 WHERE m.kind='co_po' AND co.course_id IN (`+ph+`)`, args...)
	if err != nil {
		return nil, storeErr("program outcomes for courses", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

func (t *sqlRecomputeTx) ProfilesForProgramOutcomes(ctx context.Context, poIDs []string) ([]string, error) {
	if len(poIDs) == 0 {
		return nil, nil
	}
	ph, args := placeholders(poIDs, 1)
	rows, err := t.tx.QueryContext(ctx,
		`SELECT DISTINCT target_id FROM outcome_mappings WHERE kind='po_gp' AND source_id IN (`+ph+`)`, args...)
	if err != nil {
		return nil, storeErr("profiles for program outcomes", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// ResolveCourseOutcomeInputs prefers assessment techniques; a course outcome
// broken down only into sub-outcomes resolves from those instead.
func (t *sqlRecomputeTx) ResolveCourseOutcomeInputs(ctx context.Context, studentID, courseOutcomeID, term string) ([]WeightedInput, error) {
	inputs, err := t.leafInputs(ctx, `assessment_techniques`, SourceTechnique, studentID, courseOutcomeID, term)
	if err != nil || len(inputs) > 0 {
		return inputs, err
	}
	return t.leafInputs(ctx, `sub_outcomes`, SourceSubOutcome, studentID, courseOutcomeID, term)
}

func (t *sqlRecomputeTx) leafInputs(ctx context.Context, table string, kind ScoreSourceKind, studentID, courseOutcomeID, term string) ([]WeightedInput, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT w.id, w.weight, r.value
		 FROM `+table+` w
		 LEFT JOIN raw_scores r ON r.source_kind=$1 AND r.source_id = w.id AND r.student_id=$2 AND r.term=$3
		 WHERE w.course_outcome_id=$4
		 ORDER BY w.id`, kind, studentID, term, courseOutcomeID)
	if err != nil {
		return nil, storeErr("resolve leaf inputs", err)
	}
	defer rows.Close()
	var out []WeightedInput
	for rows.Next() {
		var (
			in    WeightedInput
			value sql.NullFloat64
		)
		if err := rows.Scan(&in.NodeID, &in.Weight, &value); err != nil {
			return nil, storeErr("resolve leaf inputs", err)
		}
		if value.Valid {
			v := value.Float64
			in.Value = &v
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// ResolveProgramOutcomeInputs gathers, per CO->PO mapping, the credit hours,
// contribution weight and the student's course-outcome score. A course taken
// in several terms contributes its latest non-missing attempt.
func (t *sqlRecomputeTx) ResolveProgramOutcomeInputs(ctx context.Context, studentID, programOutcomeID string) ([]CourseContribution, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT co.id, c.id, c.credit_hours, m.weight, e.term, cs.value, cs.computed_at
		 FROM outcome_mappings m
		 JOIN course_outcomes co ON co.id = m.source_id
		 JOIN courses c ON c.id = co.course_id
		 JOIN enrollments e ON e.course_id = c.id AND e.student_id=$1 AND e.status=$2
		 LEFT JOIN computed_scores cs ON cs.level='course_outcome' AND cs.entity_id = co.id
		   AND cs.student_id=$1 AND cs.term = e.term
		 WHERE m.kind='co_po' AND m.target_id=$3
		 ORDER BY co.id, e.term`, studentID, EnrollmentActive, programOutcomeID)
	if err != nil {
		return nil, storeErr("resolve program outcome inputs", err)
	}
	defer rows.Close()

	// One contribution per mapping source; later terms win when assessed.
	byOutcome := map[string]*CourseContribution{}
	var order []string
	for rows.Next() {
		var (
			coID, courseID, term string
			credits              int
			weight               float64
			value                sql.NullFloat64
			computedAt           sql.NullInt64
		)
		if err := rows.Scan(&coID, &courseID, &credits, &weight, &term, &value, &computedAt); err != nil {
			return nil, storeErr("resolve program outcome inputs", err)
		}
		key := ScoreKey{Level: LevelCourseOutcome, EntityID: coID, StudentID: studentID, Term: term}
		t.noteRead(key, scoreVersion{exists: value.Valid, value: value.Float64, computedAt: computedAt.Int64})

		cur, ok := byOutcome[coID]
		if !ok {
			cur = &CourseContribution{CourseID: courseID, CourseOutcomeID: coID, Term: term, CreditHours: credits, Weight: weight}
			byOutcome[coID] = cur
			order = append(order, coID)
		}
		if value.Valid && (cur.Score == nil || term >= cur.Term) {
			v := value.Float64
			cur.Score = &v
			cur.Term = term
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("resolve program outcome inputs", err)
	}
	out := make([]CourseContribution, 0, len(order))
	for _, id := range order {
		out = append(out, *byOutcome[id])
	}
	return out, nil
}

// ResolveGraduateProfileInputs reads, per PO->GP mapping, the student's
// freshest program-outcome attainment. Recency of computation decides, not
// term order, so a value staged earlier in this transaction beats any
// committed row left over from a previous pass.
func (t *sqlRecomputeTx) ResolveGraduateProfileInputs(ctx context.Context, studentID, profileID string) ([]WeightedInput, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT m.source_id, m.weight, cs.term, cs.value, cs.computed_at
		 FROM outcome_mappings m
		 LEFT JOIN computed_scores cs ON cs.level='program_outcome' AND cs.entity_id = m.source_id
		   AND cs.student_id=$1
		 WHERE m.kind='po_gp' AND m.target_id=$2
		 ORDER BY m.source_id, cs.computed_at, cs.term`, studentID, profileID)
	if err != nil {
		return nil, storeErr("resolve graduate profile inputs", err)
	}
	defer rows.Close()

	byOutcome := map[string]*WeightedInput{}
	var order []string
	for rows.Next() {
		var (
			poID       string
			weight     float64
			term       sql.NullString
			value      sql.NullFloat64
			computedAt sql.NullInt64
		)
		if err := rows.Scan(&poID, &weight, &term, &value, &computedAt); err != nil {
			return nil, storeErr("resolve graduate profile inputs", err)
		}
		if term.Valid {
			key := ScoreKey{Level: LevelProgramOutcome, EntityID: poID, StudentID: studentID, Term: term.String}
			t.noteRead(key, scoreVersion{exists: value.Valid, value: value.Float64, computedAt: computedAt.Int64})
		}
		cur, ok := byOutcome[poID]
		if !ok {
			cur = &WeightedInput{NodeID: poID, Weight: weight}
			byOutcome[poID] = cur
			order = append(order, poID)
		}
		if value.Valid {
			v := value.Float64
			cur.Value = &v // rows arrive computed_at-ascending; the freshest wins
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("resolve graduate profile inputs", err)
	}
	out := make([]WeightedInput, 0, len(order))
	for _, id := range order {
		out = append(out, *byOutcome[id])
	}
	return out, nil
}

func (t *sqlRecomputeTx) PutComputedScore(ctx context.Context, cs ComputedScore) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO computed_scores (level,entity_id,student_id,term,value,computed_at) VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (level,entity_id,student_id,term) DO UPDATE SET value=EXCLUDED.value, computed_at=EXCLUDED.computed_at`,
		cs.Level, cs.EntityID, cs.StudentID, cs.Term, cs.Value, cs.ComputedAt)
	if err != nil {
		return storeErr("put computed score", err)
	}
	t.written[cs.Key()] = true
	return nil
}

// Commit re-reads every externally-read computed score against the latest
// committed state and aborts with ErrConcurrentModification if any changed
// since the transaction first read it.
func (t *sqlRecomputeTx) Commit(ctx context.Context) error {
	if t.done {
		return errors.New("recompute tx already finished")
	}
	for key, seen := range t.readSet {
		if t.written[key] {
			continue
		}
		var cur scoreVersion
		err := t.db.QueryRowContext(ctx,
			`SELECT value, computed_at FROM computed_scores WHERE level=$1 AND entity_id=$2 AND student_id=$3 AND term=$4`,
			key.Level, key.EntityID, key.StudentID, key.Term).Scan(&cur.value, &cur.computedAt)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			cur.exists = false
		case err != nil:
			_ = t.tx.Rollback()
			t.done = true
			return storeErr("commit verify", err)
		default:
			cur.exists = true
		}
		if cur != seen {
			_ = t.tx.Rollback()
			t.done = true
			return ErrConcurrentModification
		}
	}
	t.done = true
	return storeErr("commit recompute", t.tx.Commit())
}

func (t *sqlRecomputeTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback()
}

/* ---------------- helpers ---------------- */

func placeholders(vals []string, start int) (string, []any) {
	ph := make([]string, len(vals))
	args := make([]any, len(vals))
	for i, v := range vals {
		ph[i] = fmt.Sprintf("$%d", start+i)
		args[i] = v
	}
	return strings.Join(ph, ","), args
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, storeErr("scan", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
