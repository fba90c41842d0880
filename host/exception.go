package host

import (
	stderrors "errors"
	"fmt"

	"github.com/wippyai/nativecall/errors"
)

// Exception is the host-visible form of every failure raised by a call.
type Exception struct {
	Cause   error
	Class   errors.Class
	Message string
	// Domain and Code are set for native errors.
	Domain string
	Code   int32
}

func (e *Exception) Error() string {
	if e.Class == errors.ClassGError {
		return fmt.Sprintf("%s: %s (%s, %d)", e.Class, e.Message, e.Domain, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

func (e *Exception) Unwrap() error {
	return e.Cause
}

// NewGError returns a native error exception.
func NewGError(domain string, code int32, message string) *Exception {
	return &Exception{Class: errors.ClassGError, Domain: domain, Code: code, Message: message}
}

// Raise returns an exception of the given class.
func Raise(class errors.Class, format string, args ...any) *Exception {
	return &Exception{Class: class, Message: fmt.Sprintf(format, args...)}
}

// FromError converts err into an exception, keeping existing exceptions.
func FromError(err error) *Exception {
	if err == nil {
		return nil
	}
	var exc *Exception
	if stderrors.As(err, &exc) {
		return exc
	}
	var e *errors.Error
	if stderrors.As(err, &e) {
		return &Exception{Class: e.Class(), Message: e.Error(), Cause: err}
	}
	return &Exception{Class: errors.ClassRuntimeError, Message: err.Error(), Cause: err}
}
