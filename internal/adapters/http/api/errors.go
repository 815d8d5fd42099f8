package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest       = errors.New("bad request")
	ErrNotFound         = errors.New("not found")
	ErrTooLarge         = errors.New("upload too large")
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrAnalysisFailed   = errors.New("analysis failed")
	ErrBackpressure     = errors.New("backpressure")
	ErrUnavailable      = errors.New("service unavailable")
	ErrInternal         = errors.New("internal error")
)

// kindError tags an underlying error with the operation and an API kind so
// that both errors.Is(err, kind) and errors.Is(err, cause) hold.
type kindError struct {
	op    string
	kind  error
	cause error
}

func (e *kindError) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("%s: %v", e.op, e.kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.op, e.kind, e.cause)
}

func (e *kindError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.cause}
}

// WrapKind tags cause with kind for operation op.
func WrapKind(op string, kind, cause error) error {
	return &kindError{op: op, kind: kind, cause: cause}
}

// NewKind returns a bare kind error for operation op.
func NewKind(op string, kind error) error {
	return &kindError{op: op, kind: kind}
}
