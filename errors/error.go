// Package errors is the error taxonomy shared by the message-passing
// runtime: CleanError and RemoteError are the two kinds a handler
// failure can cross the wire as (spec.md section 7); Error/ErrorCode is
// the categorized, loggable error type used for the runtime's own
// ambient failures (protocol construction, handler registration, and
// so on), grounded on the same category+code shape the teacher uses for
// its own internal errors.
package errors

import (
	"fmt"

	"github.com/oasislabs/protorpc/log"
)

// CleanError is a user-facing expected failure. Its message is preserved
// verbatim across the wire: a handler raising CleanError("X") causes the
// sender to receive a CleanError with exactly that message.
type CleanError struct {
	Message string
}

// Error is the implementation of go's error interface for CleanError.
func (e CleanError) Error() string {
	return e.Message
}

// Log implementation of log.Loggable.
func (e CleanError) Log(fields log.Fields) {
	fields.Add("err", e.Message)
	fields.Add("errKind", "clean")
}

// RemoteError wraps any handler failure that is not a CleanError. It
// carries the remote message and, when the protocol is configured with
// TrustedSender, the remote stack trace.
type RemoteError struct {
	Message  string
	Trace    string
	HasTrace bool
}

// Error is the implementation of go's error interface for RemoteError.
func (e RemoteError) Error() string {
	if !e.HasTrace || len(e.Trace) == 0 {
		return e.Message
	}

	return fmt.Sprintf("%s\n%s", e.Message, e.Trace)
}

// Log implementation of log.Loggable.
func (e RemoteError) Log(fields log.Fields) {
	fields.Add("err", e.Message)
	fields.Add("errKind", "runtime")
	if e.HasTrace {
		fields.Add("trace", e.Trace)
	}
}

// Category groups the runtime's ambient (non-wire) errors by cause.
type Category string

const (
	// ProtocolError refers to failures building or interpreting a
	// Protocol: bad ids, unrepresentable response types.
	ProtocolError Category = "ProtocolError"

	// HandlerError refers to failures registering or validating a
	// MessageReceiver's handler table.
	HandlerError Category = "HandlerError"

	// TransportError refers to failures propagated unchanged from a
	// caller-supplied transport function.
	TransportError Category = "TransportError"

	// MetricsError refers to failures in the ambient metrics-reporting
	// machinery (e.g. pushing to a Prometheus push gateway).
	MetricsError Category = "MetricsError"
)

// ErrorCode holds the necessary information to uniquely identify one of
// the runtime's ambient errors.
type ErrorCode struct {
	category Category
	code     int
	desc     string
}

// Category getter for category.
func (e ErrorCode) Category() Category {
	return e.category
}

// Code getter for code.
func (e ErrorCode) Code() int {
	return e.code
}

// Desc getter for desc.
func (e ErrorCode) Desc() string {
	return e.desc
}

var (
	ErrProtocolIDNegative = ErrorCode{
		category: ProtocolError,
		code:     1000,
		desc:     "message or response id must be non-negative",
	}

	ErrProtocolIDDuplicate = ErrorCode{
		category: ProtocolError,
		code:     1001,
		desc:     "message or response id is duplicated",
	}

	ErrProtocolUnrepresentableResponse = ErrorCode{
		category: ProtocolError,
		code:     1002,
		desc:     "message declares a response type absent from the protocol",
	}

	ErrHandlerAlreadyRegistered = ErrorCode{
		category: HandlerError,
		code:     2000,
		desc:     "a handler is already registered for this message type",
	}

	ErrHandlerResponseMismatch = ErrorCode{
		category: HandlerError,
		code:     2001,
		desc:     "handler response types do not match the protocol's declared set",
	}

	ErrHandlerTableIncomplete = ErrorCode{
		category: HandlerError,
		code:     2002,
		desc:     "receiver validation found a message type with no registered handler",
	}

	ErrMetricsPushFailed = ErrorCode{
		category: MetricsError,
		code:     3000,
		desc:     "failed to push metrics to the configured push gateway",
	}
)

// Error is the runtime's ambient, categorized error. It is distinct from
// CleanError/RemoteError: those two travel across the wire, this one
// never does.
type Error struct {
	cause     error
	errorCode ErrorCode
}

// New creates a new instance of Error.
func New(errorCode ErrorCode, cause error) Error {
	return Error{cause: cause, errorCode: errorCode}
}

// Error is the implementation of go's error interface for Error.
func (e Error) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("[%d] %s: %s", e.errorCode.Code(), e.errorCode.Category(), e.errorCode.Desc())
	}

	return fmt.Sprintf("[%d] %s: %s (%s)", e.errorCode.Code(), e.errorCode.Category(), e.errorCode.Desc(), e.cause)
}

// Log implementation of log.Loggable.
func (e Error) Log(fields log.Fields) {
	fields.Add("err", e.errorCode.Desc())
	fields.Add("errorCode", e.errorCode.Code())
	fields.Add("category", string(e.errorCode.Category()))

	if e.cause != nil {
		fields.Add("cause", e.cause.Error())
	}
}

// Cause returns the underlying error, if any.
func (e Error) Cause() error {
	return e.cause
}

// ErrorCode returns the structured code identifying this error.
func (e Error) ErrorCode() ErrorCode {
	return e.errorCode
}
