// Package errs defines the error taxonomy shared by every stage of the
// transaction lifecycle. Errors are never recovered internally; callers match
// them with errors.Is against the sentinels below.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a lifecycle error
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindTransport
	KindSubmission
	KindSigning
	KindTimeout
	KindAssertion
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "CONFIGURATION"
	case KindTransport:
		return "TRANSPORT"
	case KindSubmission:
		return "SUBMISSION_FAILED"
	case KindSigning:
		return "SIGNING"
	case KindTimeout:
		return "TIMEOUT"
	case KindAssertion:
		return "ASSERTION"
	default:
		return "UNKNOWN"
	}
}

var (
	ErrConfiguration = errors.New("configuration error")
	ErrTransport     = errors.New("transport error")
	// ErrSubmissionFailed is a transport error where the node answered and
	// rejected the payload (stale nonce, underpriced, insufficient funds).
	ErrSubmissionFailed = errors.New("submission failed")
	ErrSigning          = errors.New("signing error")
	ErrTimeout          = errors.New("timeout")
	ErrAssertion        = errors.New("assertion failed")
)

func (k Kind) sentinel() error {
	switch k {
	case KindConfiguration:
		return ErrConfiguration
	case KindTransport:
		return ErrTransport
	case KindSubmission:
		return ErrSubmissionFailed
	case KindSigning:
		return ErrSigning
	case KindTimeout:
		return ErrTimeout
	case KindAssertion:
		return ErrAssertion
	default:
		return nil
	}
}

// Error carries the failing operation alongside its classification
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	label := e.Kind.String()
	if s := e.Kind.sentinel(); s != nil {
		label = s.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", label, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, label, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel of this error's kind. A
// submission failure also matches ErrTransport.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if target == e.Kind.sentinel() {
		return true
	}
	return e.Kind == KindSubmission && target == ErrTransport
}

// New wraps err with the given kind and operation name
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Configuration reports missing or malformed configuration
func Configuration(op, format string, args ...any) error {
	return &Error{Kind: KindConfiguration, Op: op, Err: fmt.Errorf(format, args...)}
}

// Transport wraps a network or RPC failure
func Transport(op string, err error) error {
	return New(KindTransport, op, err)
}

// Submission wraps a node rejection of a raw transaction
func Submission(op string, err error) error {
	return New(KindSubmission, op, err)
}

// Signing wraps a key or payload failure during signing
func Signing(op string, err error) error {
	return New(KindSigning, op, err)
}

// Timeout reports a deadline that elapsed while waiting
func Timeout(op, format string, args ...any) error {
	return &Error{Kind: KindTimeout, Op: op, Err: fmt.Errorf(format, args...)}
}

// Assertion reports an observed value that does not match the expectation
func Assertion(check string, expected, actual any) error {
	return &Error{
		Kind: KindAssertion,
		Op:   check,
		Err:  fmt.Errorf("expected %v, got %v", expected, actual),
	}
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
