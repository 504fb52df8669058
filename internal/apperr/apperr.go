// Package apperr defines the error kinds every wallet operation resolves to.
package apperr

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindInsufficientFunds   Kind = "insufficient_funds"
	KindInvalidState        Kind = "invalid_state"
	KindRolloverPending     Kind = "rollover_pending"
	KindValidation          Kind = "validation_error"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindInternal            Kind = "internal"
)

// Error carries a kind and, for funds and rollover errors, the exact
// shortfall or remaining requirement.
type Error struct {
	Kind   Kind
	Msg    string
	Amount decimal.Decimal
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg != "" {
		return e.Msg + ": " + e.Err.Error()
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind whose message is empty or equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

var (
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrInsufficientFunds   = &Error{Kind: KindInsufficientFunds}
	ErrInvalidState        = &Error{Kind: KindInvalidState}
	ErrRolloverPending     = &Error{Kind: KindRolloverPending}
	ErrValidation          = &Error{Kind: KindValidation}
	ErrUpstreamUnavailable = &Error{Kind: KindUpstreamUnavailable}
)

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func InvalidState(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Msg: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// InsufficientFunds reports how much is missing to cover the request.
func InsufficientFunds(shortfall decimal.Decimal, format string, args ...any) *Error {
	return &Error{Kind: KindInsufficientFunds, Msg: fmt.Sprintf(format, args...), Amount: shortfall}
}

// RolloverPending reports the wager volume still required.
func RolloverPending(remaining decimal.Decimal) *Error {
	return &Error{
		Kind:   KindRolloverPending,
		Msg:    fmt.Sprintf("rollover must be completed before withdrawing, %s left to wager", remaining.StringFixed(2)),
		Amount: remaining,
	}
}

func Upstream(err error, msg string) *Error {
	return &Error{Kind: KindUpstreamUnavailable, Msg: msg, Err: err}
}

// KindOf returns the kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// AmountOf returns the amount attached to the first *Error in the chain.
func AmountOf(err error) decimal.Decimal {
	var e *Error
	if errors.As(err, &e) {
		return e.Amount
	}
	return decimal.Zero
}
