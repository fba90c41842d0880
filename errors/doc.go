// Package errors provides structured error types for nativecall.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). Each Kind maps to the exception class the host sees through
// Kind.Class: TypeError, ValueError, OverflowError, NotImplementedError,
// RuntimeError or GError.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseFromHost, errors.KindTypeMismatch).
//		Path("sum", "values", "[2]").
//		HostType("string").
//		NativeType("gint32").
//		Detail("expected an integer").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.OutOfRange(errors.PhaseFromHost, path, 200, "gint8", -128, 127)
//	err := errors.Arity("Demo.sum", 2, 2, 3)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
