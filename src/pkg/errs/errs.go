package errs

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrAlreadyExists        = errors.New("already exists")
	ErrForbidden            = errors.New("forbidden")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrSchemaConflict       = errors.New("schema conflict")
	ErrSchemaMismatch       = errors.New("schema mismatch")
	ErrIllegalArgument      = errors.New("illegal argument")
)

// NotFoundError reports a lookup of an unknown entity. Kind names what was
// looked up ("namespace", "graph", "token", ...).
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

func NotFound(kind, name string) error {
	return &NotFoundError{Kind: kind, Name: name}
}

type AlreadyExistsError struct {
	Kind string
	Name string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Kind, e.Name)
}

func (e *AlreadyExistsError) Unwrap() error {
	return ErrAlreadyExists
}

func AlreadyExists(kind, name string) error {
	return &AlreadyExistsError{Kind: kind, Name: name}
}

// ForbiddenError is returned for operations that are never allowed on the
// target. Cause is optional and is matched by errors.Is as well.
type ForbiddenError struct {
	Op     string
	Target string
	Cause  error
}

func (e *ForbiddenError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s on %q is forbidden: %v", e.Op, e.Target, e.Cause)
	}

	return fmt.Sprintf("%s on %q is forbidden", e.Op, e.Target)
}

func (e *ForbiddenError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrForbidden, e.Cause}
	}

	return []error{ErrForbidden}
}

func Forbidden(op, target string) error {
	return &ForbiddenError{Op: op, Target: target}
}

func Unsupported(op, target string) error {
	return &ForbiddenError{Op: op, Target: target, Cause: ErrUnsupportedOperation}
}

type IllegalArgumentError struct {
	Argument string
	Reason   string
}

func (e *IllegalArgumentError) Error() string {
	return fmt.Sprintf("illegal argument %s: %s", e.Argument, e.Reason)
}

func (e *IllegalArgumentError) Unwrap() error {
	return ErrIllegalArgument
}

func IllegalArgument(argument, reason string) error {
	return &IllegalArgumentError{Argument: argument, Reason: reason}
}
