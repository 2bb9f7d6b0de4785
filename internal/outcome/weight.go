package outcome

import (
	"context"
	"fmt"
)

// SiblingKind identifies which family of weight records shares a 100% budget.
type SiblingKind string

const (
	// SiblingTechniques: assessment techniques under one course outcome.
	SiblingTechniques SiblingKind = "techniques"
	// SiblingSubOutcomes: sub-outcomes under one course outcome. Checked
	// independently of techniques.
	SiblingSubOutcomes SiblingKind = "sub_outcomes"
	// SiblingCourseToProgram: CO->PO mappings from the course outcomes of one
	// course into one program outcome. The per-course incoming total for the
	// target must stay within 100%.
	SiblingCourseToProgram SiblingKind = "course_po"
	// SiblingProgramToProfile: PO->GP mappings into one graduate profile.
	SiblingProgramToProfile SiblingKind = "po_profile"
)

// SiblingSet groups the weight records that must jointly respect the
// 100% invariant.
type SiblingSet struct {
	Kind     SiblingKind
	ParentID string // course outcome id, course id, or graduate profile id
	TargetID string // program outcome id, only for SiblingCourseToProgram
}

func (s SiblingSet) String() string {
	if s.TargetID != "" {
		return fmt.Sprintf("%s[%s->%s]", s.Kind, s.ParentID, s.TargetID)
	}
	return fmt.Sprintf("%s[%s]", s.Kind, s.ParentID)
}

// WeightReader is the single read the validator needs: the committed sum of
// sibling weights, excluding the record being replaced on edits. Stores run
// it inside the same transaction as the weight write so two concurrent edits
// of one sibling set cannot both pass.
type WeightReader interface {
	SumSiblingWeights(ctx context.Context, set SiblingSet, excludeID string) (float64, error)
}

// ValidateWeight checks that writing proposed into the sibling set keeps the
// set's total at or below 100%. Equality is allowed. Pure read plus
// comparison: the caller aborts its transaction on failure.
func ValidateWeight(ctx context.Context, r WeightReader, set SiblingSet, proposed float64, excludeID string) error {
	if proposed < 0 || proposed > 100 {
		return &RangeError{Field: "weight", Value: proposed, Min: 0, Max: 100}
	}
	current, err := r.SumSiblingWeights(ctx, set, excludeID)
	if err != nil {
		return err
	}
	if current+proposed > 100 {
		return &WeightOverflowError{Set: set, Current: current, Proposed: proposed}
	}
	return nil
}
