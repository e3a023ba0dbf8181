package models

import "time"

// IterationStatus classifies one step of the repair loop.
type IterationStatus string

const (
	// IterationInitial is the snapshot taken before any fix attempt.
	IterationInitial IterationStatus = "initial"
	// IterationImproved means the candidate has fewer errors than its predecessor.
	IterationImproved IterationStatus = "improved"
	// IterationNoChange means the error count did not move.
	IterationNoChange IterationStatus = "no_change"
	// IterationRegressed means the candidate has more errors.
	IterationRegressed IterationStatus = "regressed"
	// IterationParseError means no usable specification came back.
	IterationParseError IterationStatus = "parse_error"
)

// Valid returns true if the status is a known value.
func (s IterationStatus) Valid() bool {
	switch s {
	case IterationInitial, IterationImproved, IterationNoChange, IterationRegressed, IterationParseError:
		return true
	default:
		return false
	}
}

// StatusForReduction classifies an error reduction (previous - current).
func StatusForReduction(reduction int) IterationStatus {
	switch {
	case reduction > 0:
		return IterationImproved
	case reduction == 0:
		return IterationNoChange
	default:
		return IterationRegressed
	}
}

// RepairIteration is one entry of a repair run's audit trail. Entries are
// created once and never modified afterwards.
type RepairIteration struct {
	// Iteration is 0 for the initial state, 1..N for fix attempts.
	Iteration int `json:"iteration"`
	// ErrorCount is the number of errors at this point.
	ErrorCount int `json:"errorCount"`
	// WarningCount is the number of warnings at this point.
	WarningCount int `json:"warningCount"`
	// ErrorReduction is previous minus current error count. Absent for the
	// initial snapshot and for parse errors.
	ErrorReduction *int `json:"errorReduction,omitempty"`
	// Status classifies the step.
	Status IterationStatus `json:"status"`
	// Timestamp is when the step was recorded.
	Timestamp time.Time `json:"timestamp"`
	// Detail explains parse or proposer failures.
	Detail string `json:"detail,omitempty"`
	// Degraded is true when the semantic layer gave no result for this step.
	Degraded bool `json:"degraded,omitempty"`
	// Spec is a private copy of the specification measured at this step.
	Spec *Specification `json:"spec,omitempty"`
}
