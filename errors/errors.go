package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorClass tells a caller how to react to an error
type ErrorClass int

const (
	ErrorTransient ErrorClass = iota
	ErrorInvalid
	ErrorFatal
)

func (c ErrorClass) String() string {
	switch c {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	}
	return "unknown"
}

var (
	ErrClosed         = errors.New("channel closed")
	ErrAlreadyStarted = errors.New("already started")
	ErrNotStarted     = errors.New("not started")

	ErrConnectionLost    = errors.New("connection lost")
	ErrConnectionTimeout = errors.New("connection timeout")
	ErrHandshakeFailed   = errors.New("handshake failed")
	ErrWriteFailed       = errors.New("write failed")

	ErrInvalidData = errors.New("invalid data format")
	ErrMissingType = errors.New("missing message type")
	ErrUnknownType = errors.New("unknown message type")

	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")

	ErrRetriesExhausted = errors.New("maximum reconnect attempts exceeded")
)

// Sentinels that classify an unwrapped error by identity
var (
	transientSentinels = []error{
		ErrConnectionTimeout, ErrConnectionLost, ErrHandshakeFailed, ErrWriteFailed,
		context.DeadlineExceeded,
	}
	invalidSentinels = []error{
		ErrInvalidData, ErrMissingType, ErrUnknownType, ErrInvalidConfig, ErrMissingConfig,
	}
	fatalSentinels = []error{ErrRetriesExhausted, ErrClosed}
)

// Network stacks rarely return typed errors, so transient detection falls
// back to these lower-case substrings.
var transientHints = []string{
	"timeout", "connection", "network", "temporary", "unavailable",
	"reset by peer", "broken pipe", "eof",
}

// ClassifiedError carries an explicit class plus where it was raised
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

func (e *ClassifiedError) Error() string {
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

// explicitClass reports the class of the outermost ClassifiedError in err's chain
func explicitClass(err error) (ErrorClass, bool) {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class, true
	}
	return 0, false
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// IsTransient reports whether err is worth retrying
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if class, ok := explicitClass(err); ok {
		return class == ErrorTransient
	}
	if isAny(err, transientSentinels) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range transientHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

// IsFatal reports whether err ends the current session
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if class, ok := explicitClass(err); ok {
		return class == ErrorFatal
	}
	return isAny(err, fatalSentinels)
}

// IsInvalid reports whether err stems from bad input or configuration
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}
	if class, ok := explicitClass(err); ok {
		return class == ErrorInvalid
	}
	return isAny(err, invalidSentinels)
}

// Classify returns the class of err. Explicit classification wins; anything
// unrecognised is transient so the reconnect policy decides.
func Classify(err error) ErrorClass {
	if class, ok := explicitClass(err); ok {
		return class
	}
	switch {
	case IsFatal(err):
		return ErrorFatal
	case IsInvalid(err):
		return ErrorInvalid
	}
	return ErrorTransient
}

// Wrap annotates err as "component.method: action failed: err"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

func wrapAs(class ErrorClass, err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return &ClassifiedError{
		Class:     class,
		Err:       wrapped,
		Message:   wrapped.Error(),
		Component: component,
		Operation: method,
	}
}

func WrapTransient(err error, component, method, action string) error {
	return wrapAs(ErrorTransient, err, component, method, action)
}

func WrapInvalid(err error, component, method, action string) error {
	return wrapAs(ErrorInvalid, err, component, method, action)
}

func WrapFatal(err error, component, method, action string) error {
	return wrapAs(ErrorFatal, err, component, method, action)
}

// Describe returns the user-facing text for err. Only descriptions cross the
// public channel contract.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRetriesExhausted):
		return "Connection failed repeatedly. Reconnect to try again."
	case errors.Is(err, ErrConnectionTimeout), errors.Is(err, context.DeadlineExceeded):
		return "Connection timed out: " + err.Error()
	}
	return "Connection error: " + err.Error()
}
