package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in a call the error occurred
type Phase string

const (
	PhaseBuild    Phase = "build"     // argument cache construction
	PhaseFromHost Phase = "from_host" // host value to native
	PhaseToHost   Phase = "to_host"   // native value to host
	PhaseInvoke   Phase = "invoke"    // call orchestration
	PhaseCallback Phase = "callback"  // native to host callback dispatch
	PhaseNative   Phase = "native"    // address space operations
)

// Kind categorizes the error
type Kind string

const (
	KindTypeMismatch      Kind = "type_mismatch"
	KindOutOfRange        Kind = "out_of_range"
	KindOverflow          Kind = "overflow"
	KindUnsupported       Kind = "unsupported"
	KindAllocation        Kind = "allocation"
	KindOutOfBounds       Kind = "out_of_bounds"
	KindInternal          Kind = "internal"
	KindArity             Kind = "arity"
	KindInvalidEnum       Kind = "invalid_enum"
	KindNilPointer        Kind = "nil_pointer"
	KindInvalidUTF8       Kind = "invalid_utf8"
	KindInvalidValue      Kind = "invalid_value"
	KindMultipleCallbacks Kind = "multiple_callbacks"
	KindNativeError       Kind = "native_error"
	KindNotFound          Kind = "not_found"
	KindRegistration      Kind = "registration"
)

// Class is the host-visible exception class an error surfaces as.
type Class string

const (
	ClassTypeError           Class = "TypeError"
	ClassValueError          Class = "ValueError"
	ClassOverflowError       Class = "OverflowError"
	ClassNotImplementedError Class = "NotImplementedError"
	ClassRuntimeError        Class = "RuntimeError"
	ClassGError              Class = "GError"
)

// Class maps the kind onto the host exception taxonomy.
func (k Kind) Class() Class {
	switch k {
	case KindTypeMismatch, KindArity, KindNilPointer:
		return ClassTypeError
	case KindOutOfRange, KindInvalidEnum, KindInvalidUTF8, KindInvalidValue:
		return ClassValueError
	case KindOverflow:
		return ClassOverflowError
	case KindUnsupported:
		return ClassNotImplementedError
	case KindNativeError:
		return ClassGError
	default:
		return ClassRuntimeError
	}
}

// Error is the structured error type used throughout the module
type Error struct {
	Value      any
	Cause      error
	Phase      Phase
	Kind       Kind
	HostType   string
	NativeType string
	Detail     string
	Path       []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.HostType != "" || e.NativeType != "" {
		b.WriteString(": ")
		if e.HostType != "" && e.NativeType != "" {
			b.WriteString("host type ")
			b.WriteString(e.HostType)
			b.WriteString(", native type ")
			b.WriteString(e.NativeType)
		} else if e.HostType != "" {
			b.WriteString("host type ")
			b.WriteString(e.HostType)
		} else {
			b.WriteString("native type ")
			b.WriteString(e.NativeType)
		}
	}

	if e.Detail != "" {
		if e.HostType != "" || e.NativeType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Class returns the host exception class for this error
func (e *Error) Class() Class {
	return e.Kind.Class()
}

// WithPath returns a copy of e with prefix prepended to its path.
func (e *Error) WithPath(prefix ...string) *Error {
	if len(prefix) == 0 {
		return e
	}
	c := *e
	c.Path = append(append(make([]string, 0, len(prefix)+len(e.Path)), prefix...), e.Path...)
	return &c
}

// ClassOf returns the exception class of err, RuntimeError for foreign errors.
func ClassOf(err error) Class {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Class()
	}
	return ClassRuntimeError
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the argument path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// HostType sets the host type name
func (b *Builder) HostType(t string) *Builder {
	b.err.HostType = t
	return b
}

// NativeType sets the native type name
func (b *Builder) NativeType(t string) *Builder {
	b.err.NativeType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, hostType, nativeType string) *Error {
	return &Error{
		Phase:      phase,
		Kind:       KindTypeMismatch,
		Path:       path,
		HostType:   hostType,
		NativeType: nativeType,
	}
}

// OutOfRange creates a range error carrying the legal bounds
func OutOfRange(phase Phase, path []string, value any, nativeType string, lo, hi any) *Error {
	return &Error{
		Phase:      phase,
		Kind:       KindOutOfRange,
		Path:       path,
		NativeType: nativeType,
		Detail:     fmt.Sprintf("%v not in range %v to %v", value, lo, hi),
		Value:      value,
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, nativeType string) *Error {
	return &Error{
		Phase:      phase,
		Kind:       KindOverflow,
		Path:       path,
		NativeType: nativeType,
		Detail:     fmt.Sprintf("value %v overflows %s", value, nativeType),
		Value:      value,
	}
}

// InvalidEnum creates an invalid enum value error
func InvalidEnum(phase Phase, path []string, value any, enumType string) *Error {
	return &Error{
		Phase:      phase,
		Kind:       KindInvalidEnum,
		Path:       path,
		NativeType: enumType,
		Detail:     fmt.Sprintf("invalid enum value %v for %s", value, enumType),
		Value:      value,
	}
}

// InvalidUTF8 creates an invalid UTF-8 error
func InvalidUTF8(phase Phase, path []string, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidUTF8,
		Path:   path,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// InvalidValue creates an error for a value of the right type but wrong shape
func InvalidValue(phase Phase, path []string, value any, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidValue,
		Path:   path,
		Detail: detail,
		Value:  value,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
	}
}

// OutOfBounds creates an address space bounds error
func OutOfBounds(phase Phase, offset, length uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("access at %#x of %d bytes out of bounds", offset, length),
		Value:  offset,
	}
}

// NilPointer creates a null pointer error
func NilPointer(phase Phase, path []string, nativeType string) *Error {
	return &Error{
		Phase:      phase,
		Kind:       KindNilPointer,
		Path:       path,
		NativeType: nativeType,
		Detail:     "null pointer",
	}
}

// Arity creates an argument count error for a callable
func Arity(callable string, required, declared, given int) *Error {
	qualifier, n := "exactly", declared
	switch {
	case required == declared:
	case given < required:
		qualifier, n = "at least", required
	default:
		qualifier = "at most"
	}
	noun := "arguments"
	if n == 1 {
		noun = "argument"
	}
	return &Error{
		Phase:  PhaseInvoke,
		Kind:   KindArity,
		Detail: fmt.Sprintf("%s() takes %s %d %s (%d given)", callable, qualifier, n, noun, given),
		Value:  given,
	}
}

// Internal creates an error for states that indicate a malformed descriptor
func Internal(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInternal,
		Path:   path,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Registration creates a metadata registration error
func Registration(what, name string, cause error) *Error {
	return &Error{
		Phase:  PhaseBuild,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s %q", what, name),
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
