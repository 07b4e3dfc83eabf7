package memerr

import (
	"errors"
	"fmt"
)

// Kind is the closed set of failure categories surfaced by the memory
// subsystem. Only the outermost boundary (CLI or HTTP handler) turns a Kind
// into an exit code or status; inner layers branch on it with KindOf.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidArgument
	KindEmbeddingUnavailable
	KindStoreUnavailable
	KindStoreQueryError
	KindStoreProtocolError
	KindNotFound
	KindFeatureUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindEmbeddingUnavailable:
		return "embedding_unavailable"
	case KindStoreUnavailable:
		return "store_unavailable"
	case KindStoreQueryError:
		return "store_query_error"
	case KindStoreProtocolError:
		return "store_protocol_error"
	case KindNotFound:
		return "not_found"
	case KindFeatureUnavailable:
		return "feature_unavailable"
	default:
		return "unknown"
	}
}

// Error carries a Kind alongside a human-readable message and an optional
// wrapped cause.
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

// New creates an Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error wrapping a lower-level cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the Kind of err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
