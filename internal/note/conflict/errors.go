package conflict

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrNotFound        = errors.New("note not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrPersistence     = errors.New("persistence failure")
	ErrCancelled       = errors.New("operation cancelled")
)

// Operation names the engine call that failed.
type Operation string

const (
	OpCheck        Operation = "check_for_conflicts"
	OpCheckedWrite Operation = "update_with_conflict_check"
	OpForcedWrite  Operation = "force_update"
)

// Error is returned for not-found, persistence and cancellation failures.
type Error struct {
	Op     Operation
	NoteID string
	Kind   error
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Op, e.NoteID, e.Kind)
	if e.Err != nil && e.Err != e.Kind {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == e.Kind }

// VersionConflictError reports a checked update whose expected version is
// not the stored one. Report is nil when the loss was detected by the store's
// compare-and-swap rather than by the detector.
type VersionConflictError struct {
	NoteID   string
	Expected uint64
	Actual   uint64
	Report   *ConflictReport
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("note %s: version conflict (expected %d, actual %d)", e.NoteID, e.Expected, e.Actual)
}

func (e *VersionConflictError) Is(target error) bool { return target == ErrVersionConflict }

// AsVersionConflict unwraps err into a *VersionConflictError when it is one.
func AsVersionConflict(err error) (*VersionConflictError, bool) {
	var vc *VersionConflictError
	if errors.As(err, &vc) {
		return vc, true
	}
	return nil, false
}

// IsRetryable reports whether resubmitting the same call may succeed.
// Version conflicts are not retryable: the caller has to reload first.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistence)
}

func newError(op Operation, id string, kind, cause error) *Error {
	return &Error{Op: op, NoteID: id, Kind: kind, Err: cause}
}
