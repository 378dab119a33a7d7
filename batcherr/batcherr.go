// Package batcherr defines the error taxonomy shared by every core
// subsystem: validation, state, transient-resource, internal, and protocol
// errors, following spec section 7 of the PBS-style batch protocol this
// server implements. Each Error carries its underlying cause and exposes it
// through Unwrap, so errors.Is/errors.As keep working through repository and
// handler layers.
package batcherr

import (
	"errors"
	"fmt"
)

// Kind identifies which of the five error taxonomies an error belongs to.
type Kind int

const (
	KindValidation Kind = iota
	KindState
	KindTransient
	KindInternal
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindTransient:
		return "transient"
	case KindInternal:
		return "internal"
	case KindProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// Error is a classified batch-protocol error carrying a stable code (the
// PBSE_* analog named in spec.md), a kind, and an optional wrapped cause.
type Error struct {
	Kind  Kind
	Code  string
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %v", e.Msg, e.Code, e.Cause)
	}
	return fmt.Sprintf("%s (%s)", e.Msg, e.Code)
}

func (e *Error) Unwrap() error { return e.Cause }

func new(kind Kind, code, msg string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg, Cause: cause}
}

// Validation wraps a referential-integrity, access, or range error. No
// state change may have occurred before returning one of these.
func Validation(code, msg string, cause error) *Error { return new(KindValidation, code, msg, cause) }

// State wraps an operation rejected because the target entity is not in a
// legal state for it (e.g. rerun of a non-running job).
func State(code, msg string, cause error) *Error { return new(KindState, code, msg, cause) }

// Transient wraps a DB/peer/MoM unavailability that the caller may retry.
func Transient(code, msg string, cause error) *Error { return new(KindTransient, code, msg, cause) }

// Internal wraps a detected invariant violation. Callers that see this
// should consider whether a panic-stop of persistence is warranted.
func Internal(code, msg string, cause error) *Error { return new(KindInternal, code, msg, cause) }

// Protocol wraps malformed wire input or an unknown command; the
// connection that produced it should be closed by the caller.
func Protocol(code, msg string, cause error) *Error { return new(KindProtocol, code, msg, cause) }

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind == kind
	}
	return false
}

// Well-known codes, named after the PBSE_* family in spec.md section 4.1/6.
const (
	CodeBadAttrVal    = "PBSE_BADATVAL"
	CodeBadRange      = "PBSE_BADRANGE"
	CodeUnknownResc   = "PBSE_UNKRESC"
	CodePerm          = "PBSE_PERM"
	CodeBadState      = "PBSE_BADSTATE"
	CodeIndirectHop   = "PBSE_INDIRECTHOP"
	CodeUnknownNode   = "PBSE_UNKNODE"
	CodeUnknownJob    = "PBSE_UNKJOBID"
	CodeUnknownResv   = "PBSE_UNKRESVID"
	CodeInternal      = "PBSE_INTERNAL"
	CodeSysBusy       = "PBSE_SYSTEM"
	CodeDupINCR       = "PBSE_DUPRSCUPD"
	CodeProtocol      = "PBSE_PROTOCOL"
	CodeTimedOut      = "PBSE_TIMEOUT"
	CodeSchedDown     = "PBSE_SCHEDDOWN"
	CodeAlterInCycle  = "PBSE_ALTERINCYCLE"
)
