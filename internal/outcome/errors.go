package outcome

import (
	"errors"
	"fmt"
)

var (
	// ErrConcurrentModification reports an optimistic-concurrency abort: a
	// computed score this recompute depended on changed between the start of
	// its transaction and commit. Callers should retry.
	ErrConcurrentModification = errors.New("concurrent modification of input scores")

	// ErrMissingDependency reports a recompute target whose required child
	// records do not exist yet. It is surfaced per node, never fatal to the
	// whole pass.
	ErrMissingDependency = errors.New("missing dependency")

	ErrNotFound = errors.New("not found")
)

// WeightOverflowError rejects a weight write that would push its sibling set
// past 100%. The proposed weight is never clamped.
type WeightOverflowError struct {
	Set      SiblingSet
	Current  float64 // sum of sibling weights, excluding the record being edited
	Proposed float64
}

func (e *WeightOverflowError) Error() string {
	return fmt.Sprintf("weight overflow: %s already at %.2f%%, proposed %.2f%% exceeds 100%%",
		e.Set, e.Current, e.Proposed)
}

// RangeError rejects a value outside its declared numeric range at write
// time.
type RangeError struct {
	Field string
	Value float64
	Min   float64
	Max   float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s %.2f out of range [%.0f, %.0f]", e.Field, e.Value, e.Min, e.Max)
}

// StoreError wraps an infrastructure failure from the relational store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
