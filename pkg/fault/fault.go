/*
Package fault contains the error taxonomy shared by all hello-world client
components. Every failure is fatal for the run, kinds only differ in what they
tell the operator.
*/
package fault

import (
	"errors"
	"fmt"
)

// Error kinds, use errors.Is to check an error against them.
var (
	// ErrConfig is returned for bad or missing local configuration.
	ErrConfig = errors.New("configuration error")
	// ErrFile is returned when a key pair file can't be read or parsed.
	ErrFile = errors.New("file error")
	// ErrConnectivity is returned when the cluster can't be reached or validated.
	ErrConnectivity = errors.New("connectivity error")
	// ErrConfirmationTimeout is returned when an airdrop or a transaction is
	// not confirmed in time.
	ErrConfirmationTimeout = errors.New("confirmation timeout")
	// ErrTransaction is returned when the cluster rejects a transaction.
	ErrTransaction = errors.New("transaction error")
	// ErrMissingAccount is returned when an expected on-chain account is absent.
	ErrMissingAccount = errors.New("missing account")
)

// Error is a structured error with kind, operator-facing context and an
// optional underlying cause.
type Error struct {
	Kind    error
	Context string
	Err     error
}

// New creates an Error of the given kind. cause may be nil.
func New(kind error, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Context: fmt.Sprintf(format, args...),
		Err:     cause,
	}
}

// Config creates ErrConfig-kind Error.
func Config(cause error, format string, args ...any) *Error {
	return New(ErrConfig, cause, format, args...)
}

// File creates ErrFile-kind Error.
func File(cause error, format string, args ...any) *Error {
	return New(ErrFile, cause, format, args...)
}

// Connectivity creates ErrConnectivity-kind Error.
func Connectivity(cause error, format string, args ...any) *Error {
	return New(ErrConnectivity, cause, format, args...)
}

// ConfirmationTimeout creates ErrConfirmationTimeout-kind Error.
func ConfirmationTimeout(cause error, format string, args ...any) *Error {
	return New(ErrConfirmationTimeout, cause, format, args...)
}

// Transaction creates ErrTransaction-kind Error, reason is the cluster-reported
// rejection reason.
func Transaction(reason string, cause error, format string, args ...any) *Error {
	e := New(ErrTransaction, cause, format, args...)
	if reason != "" {
		e.Context += ": " + reason
	}
	return e
}

// MissingAccount creates ErrMissingAccount-kind Error.
func MissingAccount(format string, args ...any) *Error {
	return New(ErrMissingAccount, nil, format, args...)
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Context != "" {
		msg += ": " + e.Context
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns both the kind and the cause, so that errors.Is matches
// either of them.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the kind of the first Error found in err's chain or nil.
func KindOf(err error) error {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return nil
}
