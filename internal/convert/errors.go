package convert

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies why a conversion did not complete.
type Kind int

// Rejections are client-correctable; failures are not.
const (
	KindInternal Kind = iota
	KindUnsupportedType
	KindUnsupportedTarget
	KindMissingTarget
	KindPayloadTooLarge
	KindQuotaExceeded
	KindDurationExceeded
	KindConversionFailed
)

var kindNames = map[Kind]string{
	KindInternal:          "Internal",
	KindUnsupportedType:   "UnsupportedType",
	KindUnsupportedTarget: "UnsupportedTarget",
	KindMissingTarget:     "MissingTarget",
	KindPayloadTooLarge:   "PayloadTooLarge",
	KindQuotaExceeded:     "QuotaExceeded",
	KindDurationExceeded:  "DurationExceeded",
	KindConversionFailed:  "ConversionFailed",
}

var kindCodes = map[Kind]string{
	KindInternal:          "INTERNAL",
	KindUnsupportedType:   "UNSUPPORTED_TYPE",
	KindUnsupportedTarget: "UNSUPPORTED_TARGET",
	KindMissingTarget:     "MISSING_TARGET",
	KindPayloadTooLarge:   "PAYLOAD_TOO_LARGE",
	KindQuotaExceeded:     "QUOTA_EXCEEDED",
	KindDurationExceeded:  "DURATION_EXCEEDED",
	KindConversionFailed:  "CONVERSION_FAILED",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Code returns the machine-readable error code.
func (k Kind) Code() string {
	if code, ok := kindCodes[k]; ok {
		return code
	}
	return kindCodes[KindInternal]
}

// Rejected reports whether the kind is a client-correctable rejection.
func (k Kind) Rejected() bool {
	return k != KindInternal && k != KindConversionFailed
}

// StatusClass is the coarse HTTP status family of an error.
type StatusClass string

const (
	ClientError StatusClass = "client-error"
	ServerError StatusClass = "server-error"
)

// StatusClass returns the status family for the kind.
func (k Kind) StatusClass() StatusClass {
	if k.Rejected() {
		return ClientError
	}
	return ServerError
}

// HTTPStatus returns the response status code for the kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindQuotaExceeded:
		return http.StatusTooManyRequests
	case KindConversionFailed, KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// Error is the single error type returned by the pipeline. Message is safe to
// show to the caller; Err carries the internal cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusClass returns the status family of the error.
func (e *Error) StatusClass() StatusClass {
	return e.Kind.StatusClass()
}

// KindOf returns the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func newError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// Outcome is the terminal state of a job.
type Outcome string

const (
	Delivered Outcome = "delivered"
	Rejected  Outcome = "rejected"
	Failed    Outcome = "failed"
)

// OutcomeOf maps the error returned by Convert to a terminal state.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return Delivered
	}
	if KindOf(err).Rejected() {
		return Rejected
	}
	return Failed
}
