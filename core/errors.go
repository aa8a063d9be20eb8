package core

import "fmt"

// ErrorKind is the closed error taxonomy surfaced to callers of the core
// engine. New categories require a versioned extension of this type; callers
// should treat an unrecognised kind as InternalError.
type ErrorKind uint8

const (
	ErrParse ErrorKind = iota
	ErrType
	ErrLinearity
	ErrCapability
	ErrResourceState
	ErrLock
	ErrDomain
	ErrSerialization
	ErrInternal
)

func (k ErrorKind) String() string {
	switch k {
	case ErrParse:
		return "ParseError"
	case ErrType:
		return "TypeError"
	case ErrLinearity:
		return "LinearityError"
	case ErrCapability:
		return "CapabilityError"
	case ErrResourceState:
		return "ResourceStateError"
	case ErrLock:
		return "LockError"
	case ErrDomain:
		return "DomainError"
	case ErrSerialization:
		return "SerializationError"
	default:
		return "InternalError"
	}
}

// SourceLocation pins an error to a position in the original source text.
type SourceLocation struct {
	Line   int
	Column int
}

// CausalityError is the structured error type returned by every core
// operation. It always carries a Kind and a human-readable Message, and
// optionally a SourceLocation (parse/type errors) or an EntityID (runtime
// errors against a specific resource, capability or effect).
type CausalityError struct {
	Kind     ErrorKind
	Message  string
	Location *SourceLocation
	Entity   *EntityID
	cause    error
}

func (e *CausalityError) Error() string {
	if e.Location != nil {
		return fmt.Sprintf("%s: %s (at %d:%d)", e.Kind, e.Message, e.Location.Line, e.Location.Column)
	}
	if e.Entity != nil {
		return fmt.Sprintf("%s: %s (entity %s)", e.Kind, e.Message, e.Entity.String())
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CausalityError) Unwrap() error { return e.cause }

// NewError builds a CausalityError with no location or entity attached.
func NewError(kind ErrorKind, format string, args ...any) *CausalityError {
	return &CausalityError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewErrorAt builds a CausalityError pinned to a source location.
func NewErrorAt(kind ErrorKind, loc SourceLocation, format string, args ...any) *CausalityError {
	return &CausalityError{Kind: kind, Message: fmt.Sprintf(format, args...), Location: &loc}
}

// NewErrorFor builds a CausalityError pinned to an entity id.
func NewErrorFor(kind ErrorKind, id EntityID, format string, args ...any) *CausalityError {
	return &CausalityError{Kind: kind, Message: fmt.Sprintf(format, args...), Entity: &id}
}

// Wrapf wraps err with additional context, preserving its kind when err is
// itself a *CausalityError, otherwise classifying it as InternalError.
func Wrapf(err error, format string, args ...any) *CausalityError {
	msg := fmt.Sprintf(format, args...)
	if ce, ok := err.(*CausalityError); ok {
		return &CausalityError{Kind: ce.Kind, Message: msg + ": " + ce.Message, Location: ce.Location, Entity: ce.Entity, cause: err}
	}
	return &CausalityError{Kind: ErrInternal, Message: msg + ": " + err.Error(), cause: err}
}

// IsKind reports whether err is a *CausalityError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	ce, ok := err.(*CausalityError)
	return ok && ce.Kind == kind
}
