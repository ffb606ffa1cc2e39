package dispatch

import (
	"errors"
	"fmt"
)

// Kind classifies why a dispatch request ended without a reserved unit.
type Kind string

const (
	KindInvalidRequest          Kind = "InvalidRequest"
	KindNoCapableUnitAvailable  Kind = "NoCapableUnitAvailable"
	KindNoLocatedCandidate      Kind = "NoLocatedCandidate"
	KindRoutingUnavailable      Kind = "RoutingUnavailable"
	KindAllCandidatesConflicted Kind = "AllCandidatesConflicted"
	// KindReservationConflict is retried inside the coordinator and never
	// returned by Dispatch.
	KindReservationConflict Kind = "ReservationConflict"
)

// Error is a typed dispatch failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind so callers can compare against
// the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidRequest          = &Error{Kind: KindInvalidRequest}
	ErrNoCapableUnitAvailable  = &Error{Kind: KindNoCapableUnitAvailable}
	ErrNoLocatedCandidate      = &Error{Kind: KindNoLocatedCandidate}
	ErrRoutingUnavailable      = &Error{Kind: KindRoutingUnavailable}
	ErrAllCandidatesConflicted = &Error{Kind: KindAllCandidatesConflicted}
	ErrReservationConflict     = &Error{Kind: KindReservationConflict}
)

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the dispatch kind carried by err, or "" when err is not a
// dispatch error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
