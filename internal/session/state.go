package session

import "class-importer/internal/common"

//go:generate go tool stringer -type=State -trimprefix=State -output=state_string.go

// State is a step of the import state machine.
type State int

const (
	StateIdle State = iota
	StateVerifying
	StateBuilding
	StateMaterializing
	StateCommitted
	StateRolledBack
)

// Outcome is the terminal result reported to the caller.
type Outcome int

const (
	// OutcomeApplied - at least one class was committed.
	OutcomeApplied Outcome = iota
	// OutcomeNoClasses - the description parsed but nothing was applicable.
	OutcomeNoClasses
	// OutcomeAborted - the caller declined a hash mismatch or cancelled.
	OutcomeAborted
	// OutcomeFailed - input, structural, or database failure.
	OutcomeFailed
	// OutcomeRefused - no analyzed program is open.
	OutcomeRefused
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeNoClasses:
		return "no_classes"
	case OutcomeAborted:
		return "aborted"
	case OutcomeFailed:
		return "failed"
	case OutcomeRefused:
		return "refused"
	default:
		return common.UnknownStr
	}
}
