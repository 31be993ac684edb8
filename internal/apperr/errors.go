// Package apperr defines the error kinds surfaced by the mark store.
//
// Every operation returns either a bare sentinel or an *Error carrying a
// message that is safe to show to the user verbatim. Both forms match the
// sentinel through errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

// Validation errors.
var (
	ErrInvalidName     = errors.New("invalid mark name")
	ErrDuplicateName   = errors.New("mark already exists")
	ErrInvalidMarkData = errors.New("invalid mark data")
)

// Lookup errors.
var (
	ErrNotFound     = errors.New("mark not found")
	ErrInvalidIndex = errors.New("invalid mark index")
	ErrNoMarks      = errors.New("no marks in current project")
)

// Resource errors.
var (
	ErrNoFile       = errors.New("no file to mark")
	ErrUnreadable   = errors.New("file is not readable")
	ErrStaleFile    = errors.New("file no longer exists")
	ErrLimitReached = errors.New("mark limit reached")
)

// Persistence and transfer errors.
var (
	ErrLoadFailed      = errors.New("failed to load marks")
	ErrSaveFailed      = errors.New("failed to save marks")
	ErrInvalidFormat   = errors.New("invalid marks file format")
	ErrNothingToExport = errors.New("no marks to export")
)

// Error is a kinded error with a user-facing message.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

// New returns an *Error of the given kind with a formatted message.
func New(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap returns an *Error of the given kind that also wraps cause.
func Wrap(kind error, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

// Is reports whether target is the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the sentinel kind of err, or nil when err carries none.
// The outermost *Error decides when kinds are nested.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) && e.Kind != nil {
		return e.Kind
	}
	for _, k := range []error{
		ErrInvalidName, ErrDuplicateName, ErrInvalidMarkData,
		ErrNotFound, ErrInvalidIndex, ErrNoMarks,
		ErrNoFile, ErrUnreadable, ErrStaleFile, ErrLimitReached,
		ErrLoadFailed, ErrSaveFailed, ErrInvalidFormat, ErrNothingToExport,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
