// Package apperr holds the error taxonomy shared by the pipeline and its remote clients.
package apperr

import (
	"errors"
	"fmt"
)

// UserError is a rejected request the user can fix (missing upload, bad extension, no book).
type UserError struct {
	Message string
}

func (e *UserError) Error() string { return e.Message }

// RemoteServiceError is a non-success answer from a remote service.
type RemoteServiceError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e *RemoteServiceError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Service, e.Message)
	}
	return fmt.Sprintf("%s api error %d: %s", e.Service, e.StatusCode, e.Message)
}

// TransientIOError is a network or disk failure. It is not retried either.
// Network is set when the failure happened on the way to a remote service.
type TransientIOError struct {
	Op      string
	Err     error
	Network bool
}

func (e *TransientIOError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *TransientIOError) Unwrap() error { return e.Err }

// User returns a *UserError with the given message.
func User(msg string) error {
	return &UserError{Message: msg}
}

// Remote returns a *RemoteServiceError.
func Remote(service string, status int, msg string) error {
	return &RemoteServiceError{Service: service, StatusCode: status, Message: msg}
}

// Transient wraps err as a *TransientIOError. A nil err yields nil.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientIOError{Op: op, Err: err}
}

// Network wraps err as a *TransientIOError raised while talking to a remote service.
func Network(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientIOError{Op: op, Err: err, Network: true}
}

// UserMessage returns the user-facing message when err is a UserError.
func UserMessage(err error) (string, bool) {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Message, true
	}
	return "", false
}

// IsRemote reports whether err came from a remote service or the network in between.
func IsRemote(err error) bool {
	var re *RemoteServiceError
	if errors.As(err, &re) {
		return true
	}
	var te *TransientIOError
	return errors.As(err, &te) && te.Network
}
