package reminder

import "errors"

var (
	// ErrNotFound reports an unknown reminder identity.
	ErrNotFound = errors.New("reminder not found")
	// ErrOrderingConflict reports a ledger mutation that would place an
	// entry before the most recent one.
	ErrOrderingConflict = errors.New("history entry older than previously recorded entry")
	// ErrEmptyLedger reports an undo with nothing to undo.
	ErrEmptyLedger = errors.New("history is empty")
	// ErrInvalidConfiguration reports a reminder configuration the
	// engine cannot evaluate.
	ErrInvalidConfiguration = errors.New("invalid reminder configuration")
	// ErrClockSkew reports an evaluation instant earlier than the most
	// recent ledger entry by more than the tolerance.
	ErrClockSkew = errors.New("clock earlier than recorded history")
)
