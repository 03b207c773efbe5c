// Package errors defines the typed error kinds used across the calculation
// engine so callers can branch on failure class without matching message text.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an engine failure.
type Kind string

const (
	KindValidation            Kind = "VALIDATION"
	KindMissingMarketData     Kind = "MARKET_DATA_MISSING"
	KindMarketDataUnavailable Kind = "MARKET_DATA_UNAVAILABLE"
	KindCalculation           Kind = "CALCULATION"
	KindSettlement            Kind = "SETTLEMENT"
	KindStageTransition       Kind = "STAGE_TRANSITION"
	KindNotFound              Kind = "NOT_FOUND"
	KindConflict              Kind = "CONFLICT"
	KindCancelled             Kind = "CANCELLED"
	KindInternal              Kind = "INTERNAL"
)

// Error carries a Kind plus the identifiers a caller needs to report the
// failure (request id, contract id) without parsing the message.
type Error struct {
	Kind       Kind
	Msg        string
	ContractID string
	RequestID  string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two engine errors by Kind so errors.Is works with sentinel
// instances such as E(KindNotFound, "").
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// E builds a new engine error.
func E(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// WithContract tags the error with the contract it failed for.
func (e *Error) WithContract(contractID string) *Error {
	e.ContractID = contractID
	return e
}

// WithRequest tags the error with the owning request id.
func (e *Error) WithRequest(requestID string) *Error {
	e.RequestID = requestID
	return e
}

// KindOf extracts the Kind from any error chain, defaulting to KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error kind to the status code used by the REST binding.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindMissingMarketData, KindMarketDataUnavailable:
		return http.StatusFailedDependency
	case KindCancelled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
