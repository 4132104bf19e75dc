// Package xerrors implements the fatal error taxonomy from section 7 of the
// specification. Every kind except AbortEvent is a terminal condition: the
// process driver logs it and exits non-zero. AbortEvent is deliberately not
// part of this taxonomy; see processor.AbortEvent.
package xerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is the closed set of fatal error categories the driver recognizes.
type Kind string

const (
	Config               Kind = "config"
	NoOutputFile          Kind = "no_output_file"
	BadName               Kind = "bad_name"
	BadType               Kind = "bad_type"
	Repeat                Kind = "repeat"
	NotFound              Kind = "not_found"
	Ambiguous             Kind = "ambiguous"
	ConditionUnavailable  Kind = "condition_unavailable"
	EndOfColumn           Kind = "end_of_column"
	LibLoad               Kind = "lib_load"
	FatalProcessor        Kind = "fatal_processor"
)

// Error is the single concrete error type every fire component raises for a
// fatal condition. Kind lets the driver branch on category without string
// matching; the wrapped cause carries a stack trace courtesy of pkg/errors.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an *Error of the given kind from a message, attaching a stack
// trace at the call site.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, cause: errors.Errorf(format, args...)}
}

// Wrap attaches kind, msg and a stack trace taken at the call site to an
// existing error.
func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, cause: errors.Wrap(cause, msg)}
}

// Is reports whether err is an *Error of the given kind, unwrapping as
// needed.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// ProcessorName is returned by FatalProcessor errors so the driver can log
// which processor instance raised it, per spec.md section 4.F fatal_error.
func ProcessorName(err error) (string, bool) {
	var pe *processorError
	if !errors.As(err, &pe) {
		return "", false
	}
	return pe.name, true
}

type processorError struct {
	err  *Error
	name string
}

func (pe *processorError) Error() string { return pe.err.Error() }

// Unwrap returns the wrapped *Error itself (not its cause), so errors.As
// and Is can recover the FatalProcessor kind from a processorError.
func (pe *processorError) Unwrap() error { return pe.err }

// NewFatalProcessor builds a FatalProcessor error carrying the raising
// processor's configured instance name, per section 4.F fatal_error(msg).
func NewFatalProcessor(processorName, msg string) error {
	return &processorError{
		err:  New(FatalProcessor, "%s", msg),
		name: processorName,
	}
}
