package git

import (
	"errors"
	"fmt"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage"
)

// ErrorKind classifies failures so transports can map them onto their own
// status codes without inspecting messages.
type ErrorKind int

const (
	Generic ErrorKind = iota
	NotFound
	Invalid
	Conflict
)

func (k ErrorKind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case Invalid:
		return "invalid"
	case Conflict:
		return "conflict"
	default:
		return "generic"
	}
}

// Sentinels for errors.Is checks against an *Error of the matching kind.
var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid")
	ErrConflict = errors.New("conflict")
)

// Error is the error type returned by every repository operation.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	if e.Msg == "" {
		return e.Err.Error()
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == NotFound
	case ErrInvalid:
		return e.Kind == Invalid
	case ErrConflict:
		return e.Kind == Conflict
	}
	return false
}

// KindOf reports the kind of the first *Error in err's chain, Generic otherwise.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Generic
}

func newError(kind ErrorKind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func notFoundf(format string, args ...any) error { return newError(NotFound, format, args...) }
func invalidf(format string, args ...any) error  { return newError(Invalid, format, args...) }
func conflictf(format string, args ...any) error { return newError(Conflict, format, args...) }

// wrapf attaches context to err, classifying go-git failures on the way.
// Errors that already carry a kind keep it.
func wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	var e *Error
	if errors.As(err, &e) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return &Error{Kind: classify(err), Msg: msg, Err: err}
}

func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound),
		errors.Is(err, plumbing.ErrObjectNotFound),
		errors.Is(err, object.ErrParentNotFound),
		errors.Is(err, object.ErrFileNotFound),
		errors.Is(err, gogit.ErrRepositoryNotExists):
		return NotFound
	case errors.Is(err, plumbing.ErrInvalidType),
		errors.Is(err, gogit.ErrIsBareRepository):
		return Invalid
	case errors.Is(err, gogit.ErrUnstagedChanges),
		errors.Is(err, storage.ErrReferenceHasChanged),
		errors.Is(err, gogit.ErrRepositoryAlreadyExists):
		return Conflict
	}
	return Generic
}
