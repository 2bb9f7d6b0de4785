package outcome

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type rawScoreKey struct {
	StudentID  string
	SourceKind ScoreSourceKind
	SourceID   string
	Term       string
}

type versionedScore struct {
	ComputedScore
	version int64
}

// memStore is an in-memory Store for tests and offline runs. Computed-score
// rows carry a store-wide version counter so the optimistic-concurrency
// check works the same way as against SQL.
type memStore struct {
	mu sync.RWMutex

	programs        map[string]Program
	courses         map[string]Course
	courseOutcomes  map[string]CourseOutcome
	programOutcomes map[string]ProgramOutcome
	profiles        map[string]GraduateProfile
	techniques      map[string]AssessmentTechnique
	subOutcomes     map[string]SubOutcome
	mappings        map[string]OutcomeMapping
	enrollments     map[string]Enrollment
	rawScores       map[rawScoreKey]RawScore
	computed        map[ScoreKey]versionedScore

	versionSeq int64
}

func NewInMemoryStore() Store {
	return &memStore{
		programs:        map[string]Program{},
		courses:         map[string]Course{},
		courseOutcomes:  map[string]CourseOutcome{},
		programOutcomes: map[string]ProgramOutcome{},
		profiles:        map[string]GraduateProfile{},
		techniques:      map[string]AssessmentTechnique{},
		subOutcomes:     map[string]SubOutcome{},
		mappings:        map[string]OutcomeMapping{},
		enrollments:     map[string]Enrollment{},
		rawScores:       map[rawScoreKey]RawScore{},
		computed:        map[ScoreKey]versionedScore{},
	}
}

func enrollKey(e Enrollment) string { return e.StudentID + "|" + e.CourseID + "|" + e.Term }

/* ---------------- weight validator reads ---------------- */

func (m *memStore) SumSiblingWeights(_ context.Context, set SiblingSet, excludeID string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sumSiblingsLocked(set, excludeID)
}

func (m *memStore) sumSiblingsLocked(set SiblingSet, excludeID string) (float64, error) {
	var total float64
	switch set.Kind {
	case SiblingTechniques:
		for _, t := range m.techniques {
			if t.CourseOutcomeID == set.ParentID && t.ID != excludeID {
				total += t.Weight
			}
		}
	case SiblingSubOutcomes:
		for _, so := range m.subOutcomes {
			if so.CourseOutcomeID == set.ParentID && so.ID != excludeID {
				total += so.Weight
			}
		}
	case SiblingCourseToProgram:
		for _, mp := range m.mappings {
			if mp.Kind != MappingCourseToProgram || mp.ID == excludeID || mp.TargetID != set.TargetID {
				continue
			}
			if co, ok := m.courseOutcomes[mp.SourceID]; ok && co.CourseID == set.ParentID {
				total += mp.Weight
			}
		}
	case SiblingProgramToProfile:
		for _, mp := range m.mappings {
			if mp.Kind == MappingProgramToProfile && mp.TargetID == set.ParentID && mp.ID != excludeID {
				total += mp.Weight
			}
		}
	default:
		return 0, fmt.Errorf("unknown sibling kind: %s", set.Kind)
	}
	return total, nil
}

/* ---------------- hierarchy writes ---------------- */

func (m *memStore) PutProgram(_ context.Context, p Program) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.programs[p.ID] = p
	return nil
}

func (m *memStore) PutCourse(_ context.Context, c Course) error {
	if c.CreditHours <= 0 {
		return &RangeError{Field: "credit_hours", Value: float64(c.CreditHours), Min: 1, Max: 99}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.courses[c.ID] = c
	return nil
}

func (m *memStore) PutCourseOutcome(_ context.Context, co CourseOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.courseOutcomes[co.ID] = co
	return nil
}

func (m *memStore) PutProgramOutcome(_ context.Context, po ProgramOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.programOutcomes[po.ID] = po
	return nil
}

func (m *memStore) PutGraduateProfile(_ context.Context, gp GraduateProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[gp.ID] = gp
	return nil
}

func (m *memStore) PutEnrollment(_ context.Context, e Enrollment) error {
	if e.Status == "" {
		e.Status = EnrollmentActive
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enrollments[enrollKey(e)] = e
	return nil
}

/* ---------------- weight-checked writes ---------------- */

func (m *memStore) PutAssessmentTechnique(ctx context.Context, t AssessmentTechnique) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := SiblingSet{Kind: SiblingTechniques, ParentID: t.CourseOutcomeID}
	if err := m.validateLocked(ctx, set, t.Weight, t.ID); err != nil {
		return err
	}
	m.techniques[t.ID] = t
	return nil
}

func (m *memStore) PutSubOutcome(ctx context.Context, so SubOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := SiblingSet{Kind: SiblingSubOutcomes, ParentID: so.CourseOutcomeID}
	if err := m.validateLocked(ctx, set, so.Weight, so.ID); err != nil {
		return err
	}
	m.subOutcomes[so.ID] = so
	return nil
}

func (m *memStore) PutOutcomeMapping(ctx context.Context, mp OutcomeMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var set SiblingSet
	switch mp.Kind {
	case MappingCourseToProgram:
		co, ok := m.courseOutcomes[mp.SourceID]
		if !ok {
			return fmt.Errorf("course outcome %s: %w", mp.SourceID, ErrNotFound)
		}
		set = SiblingSet{Kind: SiblingCourseToProgram, ParentID: co.CourseID, TargetID: mp.TargetID}
	case MappingProgramToProfile:
		set = SiblingSet{Kind: SiblingProgramToProfile, ParentID: mp.TargetID}
	default:
		return fmt.Errorf("unknown mapping kind: %s", mp.Kind)
	}
	if err := m.validateLocked(ctx, set, mp.Weight, mp.ID); err != nil {
		return err
	}
	m.mappings[mp.ID] = mp
	return nil
}

// validateLocked runs the weight validator under the store lock, the memory
// analogue of validate-inside-the-write-transaction.
func (m *memStore) validateLocked(ctx context.Context, set SiblingSet, weight float64, excludeID string) error {
	reader := weightReaderFunc(func(_ context.Context, set SiblingSet, excludeID string) (float64, error) {
		return m.sumSiblingsLocked(set, excludeID)
	})
	return ValidateWeight(ctx, reader, set, weight, excludeID)
}

func (m *memStore) DeleteAssessmentTechnique(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.techniques[id]; !ok {
		return fmt.Errorf("technique %s: %w", id, ErrNotFound)
	}
	if n := m.scoreCountLocked(SourceTechnique, id); n > 0 {
		return fmt.Errorf("technique %s has %d raw scores; delete them first", id, n)
	}
	delete(m.techniques, id)
	return nil
}

func (m *memStore) DeleteSubOutcome(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subOutcomes[id]; !ok {
		return fmt.Errorf("sub_outcome %s: %w", id, ErrNotFound)
	}
	if n := m.scoreCountLocked(SourceSubOutcome, id); n > 0 {
		return fmt.Errorf("sub_outcome %s has %d raw scores; delete them first", id, n)
	}
	delete(m.subOutcomes, id)
	return nil
}

func (m *memStore) scoreCountLocked(kind ScoreSourceKind, id string) int {
	n := 0
	for k := range m.rawScores {
		if k.SourceKind == kind && k.SourceID == id {
			n++
		}
	}
	return n
}

func (m *memStore) DeleteOutcomeMapping(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.mappings[id]; !ok {
		return fmt.Errorf("mapping %s: %w", id, ErrNotFound)
	}
	delete(m.mappings, id)
	return nil
}

/* ---------------- leaf scores ---------------- */

func (m *memStore) PutRawScore(ctx context.Context, s RawScore) error {
	if s.Value < 0 || s.Value > 100 {
		return &RangeError{Field: "score", Value: s.Value, Min: 0, Max: 100}
	}
	if _, err := m.ScoreSourceCourse(ctx, s.SourceKind, s.SourceID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rawScores[rawScoreKey{s.StudentID, s.SourceKind, s.SourceID, s.Term}] = s
	return nil
}

func (m *memStore) ScoreSourceCourse(_ context.Context, kind ScoreSourceKind, sourceID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var coID string
	switch kind {
	case SourceTechnique:
		t, ok := m.techniques[sourceID]
		if !ok {
			return "", fmt.Errorf("technique %s: %w", sourceID, ErrNotFound)
		}
		coID = t.CourseOutcomeID
	case SourceSubOutcome:
		so, ok := m.subOutcomes[sourceID]
		if !ok {
			return "", fmt.Errorf("sub_outcome %s: %w", sourceID, ErrNotFound)
		}
		coID = so.CourseOutcomeID
	default:
		return "", fmt.Errorf("unknown score source kind: %s", kind)
	}
	co, ok := m.courseOutcomes[coID]
	if !ok {
		return "", fmt.Errorf("course outcome %s: %w", coID, ErrNotFound)
	}
	return co.CourseID, nil
}

/* ---------------- read side ---------------- */

func (m *memStore) EnrolledStudents(_ context.Context, courseID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := map[string]bool{}
	var out []string
	for _, e := range m.enrollments {
		if e.CourseID == courseID && e.Status == EnrollmentActive && !seen[e.StudentID] {
			seen[e.StudentID] = true
			out = append(out, e.StudentID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memStore) GetAttainment(_ context.Context, f AttainmentFilter) ([]Attainment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Attainment
	want := func(lvl Level) bool { return f.Level == "" || f.Level == lvl }

	if want(LevelCourseOutcome) {
		for _, e := range m.enrollments {
			c, ok := m.courses[e.CourseID]
			if !ok || !m.matchCohortLocked(f, e.StudentID, c) {
				continue
			}
			if f.Term != "" && e.Term != f.Term {
				continue
			}
			for _, co := range m.courseOutcomes {
				if co.CourseID != c.ID {
					continue
				}
				out = append(out, m.attainmentRowLocked(LevelCourseOutcome, co.ID, co.Code, e.StudentID, e.Term))
			}
		}
	}
	if want(LevelProgramOutcome) {
		for _, sid := range m.cohortStudentsLocked(f) {
			for _, po := range m.programOutcomes {
				if f.ProgramID != "" && po.ProgramID != f.ProgramID {
					continue
				}
				out = append(out, m.aggregateRowsLocked(LevelProgramOutcome, po.ID, po.Code, sid, f.Term)...)
			}
		}
	}
	if want(LevelGraduateProfile) {
		for _, sid := range m.cohortStudentsLocked(f) {
			for _, gp := range m.profiles {
				if f.ProgramID != "" && gp.ProgramID != f.ProgramID {
					continue
				}
				out = append(out, m.aggregateRowsLocked(LevelGraduateProfile, gp.ID, gp.Code, sid, f.Term)...)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		if a.EntityID != b.EntityID {
			return a.EntityID < b.EntityID
		}
		if a.StudentID != b.StudentID {
			return a.StudentID < b.StudentID
		}
		return a.Term < b.Term
	})
	return out, nil
}

func (m *memStore) matchCohortLocked(f AttainmentFilter, studentID string, c Course) bool {
	if f.StudentID != "" && studentID != f.StudentID {
		return false
	}
	if f.CourseID != "" && c.ID != f.CourseID {
		return false
	}
	if f.ProgramID != "" && c.ProgramID != f.ProgramID {
		return false
	}
	return true
}

func (m *memStore) cohortStudentsLocked(f AttainmentFilter) []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range m.enrollments {
		c, ok := m.courses[e.CourseID]
		if !ok || !m.matchCohortLocked(f, e.StudentID, c) {
			continue
		}
		if !seen[e.StudentID] {
			seen[e.StudentID] = true
			out = append(out, e.StudentID)
		}
	}
	sort.Strings(out)
	return out
}

func (m *memStore) attainmentRowLocked(lvl Level, entityID, code, studentID, term string) Attainment {
	a := Attainment{Level: lvl, EntityID: entityID, EntityCode: code, StudentID: studentID, Term: term, Status: StatusNotYetAssessed}
	if vs, ok := m.computed[ScoreKey{Level: lvl, EntityID: entityID, StudentID: studentID, Term: term}]; ok {
		v := vs.Value
		a.Value = &v
		a.Status = StatusComputed
		a.ComputedAt = vs.ComputedAt
	}
	return a
}

// aggregateRowsLocked returns all computed terms for an aggregate-level node,
// or a single not-yet-assessed row when none exist.
func (m *memStore) aggregateRowsLocked(lvl Level, entityID, code, studentID, term string) []Attainment {
	var out []Attainment
	for key, vs := range m.computed {
		if key.Level != lvl || key.EntityID != entityID || key.StudentID != studentID {
			continue
		}
		if term != "" && key.Term != term {
			continue
		}
		v := vs.Value
		out = append(out, Attainment{
			Level: lvl, EntityID: entityID, EntityCode: code, StudentID: studentID,
			Term: key.Term, Status: StatusComputed, Value: &v, ComputedAt: vs.ComputedAt,
		})
	}
	if len(out) == 0 {
		out = append(out, Attainment{Level: lvl, EntityID: entityID, EntityCode: code, StudentID: studentID, Status: StatusNotYetAssessed})
	}
	return out
}

/* ---------------- recompute transaction ---------------- */

type memRecomputeTx struct {
	store   *memStore
	staged  map[ScoreKey]ComputedScore
	readSet map[ScoreKey]int64 // version seen at read; 0 = absent
	done    bool
}

func (m *memStore) Begin(_ context.Context) (RecomputeTx, error) {
	return &memRecomputeTx{
		store:   m,
		staged:  map[ScoreKey]ComputedScore{},
		readSet: map[ScoreKey]int64{},
	}, nil
}

// readComputed reads through the tx overlay; reads that fall through to the
// shared store are tracked for the commit-time version check.
func (t *memRecomputeTx) readComputed(key ScoreKey) (ComputedScore, bool) {
	if cs, ok := t.staged[key]; ok {
		return cs, true
	}
	t.store.mu.RLock()
	vs, ok := t.store.computed[key]
	t.store.mu.RUnlock()
	if _, seen := t.readSet[key]; !seen {
		if ok {
			t.readSet[key] = vs.version
		} else {
			t.readSet[key] = 0
		}
	}
	return vs.ComputedScore, ok
}

func (t *memRecomputeTx) CourseByID(_ context.Context, id string) (Course, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	c, ok := t.store.courses[id]
	if !ok {
		return Course{}, fmt.Errorf("course %s: %w", id, ErrNotFound)
	}
	return c, nil
}

func (t *memRecomputeTx) CourseOutcomes(_ context.Context, courseID string) ([]CourseOutcome, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	var out []CourseOutcome
	for _, co := range t.store.courseOutcomes {
		if co.CourseID == courseID {
			out = append(out, co)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memRecomputeTx) EnrolledCourses(_ context.Context, studentID, term string) ([]CourseTaken, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	var out []CourseTaken
	for _, e := range t.store.enrollments {
		if e.StudentID != studentID || e.Status != EnrollmentActive {
			continue
		}
		if term != "" && e.Term != term {
			continue
		}
		c, ok := t.store.courses[e.CourseID]
		if !ok {
			continue
		}
		out = append(out, CourseTaken{CourseID: c.ID, ProgramID: c.ProgramID, Term: e.Term, CreditHours: c.CreditHours})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CourseID != out[j].CourseID {
			return out[i].CourseID < out[j].CourseID
		}
		return out[i].Term < out[j].Term
	})
	return out, nil
}

func (t *memRecomputeTx) ProgramOutcomesForCourses(_ context.Context, courseIDs []string) ([]string, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	in := map[string]bool{}
	for _, id := range courseIDs {
		in[id] = true
	}
	seen := map[string]bool{}
	var out []string
	for _, mp := range t.store.mappings {
		if mp.Kind != MappingCourseToProgram || seen[mp.TargetID] {
			continue
		}
		if co, ok := t.store.courseOutcomes[mp.SourceID]; ok && in[co.CourseID] {
			seen[mp.TargetID] = true
			out = append(out, mp.TargetID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (t *memRecomputeTx) ProfilesForProgramOutcomes(_ context.Context, poIDs []string) ([]string, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	in := map[string]bool{}
	for _, id := range poIDs {
		in[id] = true
	}
	seen := map[string]bool{}
	var out []string
	for _, mp := range t.store.mappings {
		if mp.Kind == MappingProgramToProfile && in[mp.SourceID] && !seen[mp.TargetID] {
			seen[mp.TargetID] = true
			out = append(out, mp.TargetID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (t *memRecomputeTx) ResolveCourseOutcomeInputs(_ context.Context, studentID, courseOutcomeID, term string) ([]WeightedInput, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	var out []WeightedInput
	for _, tech := range t.store.techniques {
		if tech.CourseOutcomeID != courseOutcomeID {
			continue
		}
		in := WeightedInput{NodeID: tech.ID, Weight: tech.Weight}
		if rs, ok := t.store.rawScores[rawScoreKey{studentID, SourceTechnique, tech.ID, term}]; ok {
			v := rs.Value
			in.Value = &v
		}
		out = append(out, in)
	}
	if len(out) == 0 {
		for _, so := range t.store.subOutcomes {
			if so.CourseOutcomeID != courseOutcomeID {
				continue
			}
			in := WeightedInput{NodeID: so.ID, Weight: so.Weight}
			if rs, ok := t.store.rawScores[rawScoreKey{studentID, SourceSubOutcome, so.ID, term}]; ok {
				v := rs.Value
				in.Value = &v
			}
			out = append(out, in)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out, nil
}

func (t *memRecomputeTx) ResolveProgramOutcomeInputs(ctx context.Context, studentID, programOutcomeID string) ([]CourseContribution, error) {
	taken, err := t.EnrolledCourses(ctx, studentID, "")
	if err != nil {
		return nil, err
	}
	termsByCourse := map[string][]string{}
	creditsByCourse := map[string]int{}
	for _, ct := range taken {
		termsByCourse[ct.CourseID] = append(termsByCourse[ct.CourseID], ct.Term)
		creditsByCourse[ct.CourseID] = ct.CreditHours
	}

	t.store.mu.RLock()
	type mapped struct {
		coID     string
		courseID string
		weight   float64
	}
	var ms []mapped
	for _, mp := range t.store.mappings {
		if mp.Kind != MappingCourseToProgram || mp.TargetID != programOutcomeID {
			continue
		}
		co, ok := t.store.courseOutcomes[mp.SourceID]
		if !ok {
			continue
		}
		if _, enrolled := termsByCourse[co.CourseID]; !enrolled {
			continue
		}
		ms = append(ms, mapped{coID: co.ID, courseID: co.CourseID, weight: mp.Weight})
	}
	t.store.mu.RUnlock()
	sort.Slice(ms, func(i, j int) bool { return ms[i].coID < ms[j].coID })

	var out []CourseContribution
	for _, mp := range ms {
		contrib := CourseContribution{
			CourseID:        mp.courseID,
			CourseOutcomeID: mp.coID,
			CreditHours:     creditsByCourse[mp.courseID],
			Weight:          mp.weight,
		}
		terms := append([]string(nil), termsByCourse[mp.courseID]...)
		sort.Strings(terms)
		for _, term := range terms { // later terms win when assessed
			if contrib.Term == "" {
				contrib.Term = term
			}
			key := ScoreKey{Level: LevelCourseOutcome, EntityID: mp.coID, StudentID: studentID, Term: term}
			if cs, ok := t.readComputed(key); ok {
				v := cs.Value
				contrib.Score = &v
				contrib.Term = term
			}
		}
		out = append(out, contrib)
	}
	return out, nil
}

func (t *memRecomputeTx) ResolveGraduateProfileInputs(_ context.Context, studentID, profileID string) ([]WeightedInput, error) {
	t.store.mu.RLock()
	var poWeights []OutcomeMapping
	for _, mp := range t.store.mappings {
		if mp.Kind == MappingProgramToProfile && mp.TargetID == profileID {
			poWeights = append(poWeights, mp)
		}
	}
	// collect candidate terms per program outcome from both committed rows
	// and this tx's staged writes
	termsByPO := map[string][]string{}
	for key := range t.store.computed {
		if key.Level == LevelProgramOutcome && key.StudentID == studentID {
			termsByPO[key.EntityID] = append(termsByPO[key.EntityID], key.Term)
		}
	}
	t.store.mu.RUnlock()
	for key := range t.staged {
		if key.Level == LevelProgramOutcome && key.StudentID == studentID {
			termsByPO[key.EntityID] = append(termsByPO[key.EntityID], key.Term)
		}
	}
	sort.Slice(poWeights, func(i, j int) bool { return poWeights[i].SourceID < poWeights[j].SourceID })

	var out []WeightedInput
	for _, mp := range poWeights {
		in := WeightedInput{NodeID: mp.SourceID, Weight: mp.Weight}
		terms := append([]string(nil), termsByPO[mp.SourceID]...)
		sort.Strings(terms)
		var bestAt int64 = -1
		for _, term := range terms { // freshest computation wins, term order is irrelevant
			key := ScoreKey{Level: LevelProgramOutcome, EntityID: mp.SourceID, StudentID: studentID, Term: term}
			if cs, ok := t.readComputed(key); ok && cs.ComputedAt >= bestAt {
				v := cs.Value
				in.Value = &v
				bestAt = cs.ComputedAt
			}
		}
		out = append(out, in)
	}
	return out, nil
}

func (t *memRecomputeTx) PutComputedScore(_ context.Context, cs ComputedScore) error {
	t.staged[cs.Key()] = cs
	return nil
}

// Commit verifies that every computed score read from outside the overlay is
// still at the version it was read at, then applies the staged writes.
func (t *memRecomputeTx) Commit(_ context.Context) error {
	if t.done {
		return fmt.Errorf("recompute tx already finished")
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.done = true

	for key, seen := range t.readSet {
		if _, overwritten := t.staged[key]; overwritten {
			continue
		}
		cur := int64(0)
		if vs, ok := t.store.computed[key]; ok {
			cur = vs.version
		}
		if cur != seen {
			return ErrConcurrentModification
		}
	}
	for key, cs := range t.staged {
		t.store.versionSeq++
		t.store.computed[key] = versionedScore{ComputedScore: cs, version: t.store.versionSeq}
	}
	return nil
}

func (t *memRecomputeTx) Rollback() error {
	t.done = true
	t.staged = map[ScoreKey]ComputedScore{}
	return nil
}
