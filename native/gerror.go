package native

import (
	"sync"

	"github.com/wippyai/nativecall"
)

// GError layout: {domain quark u32, code i32, message u32}.
const (
	GErrorSize = 12

	gerrDomainOff  = 0
	gerrCodeOff    = 4
	gerrMessageOff = 8
)

var quarks = struct {
	byName map[string]uint32
	names  []string
	mu     sync.Mutex
}{byName: make(map[string]uint32)}

// Quark interns name and returns its non-zero id.
func Quark(name string) uint32 {
	quarks.mu.Lock()
	defer quarks.mu.Unlock()
	if q, ok := quarks.byName[name]; ok {
		return q
	}
	quarks.names = append(quarks.names, name)
	q := uint32(len(quarks.names))
	quarks.byName[name] = q
	return q
}

// QuarkName returns the string interned as q.
func QuarkName(q uint32) (string, bool) {
	quarks.mu.Lock()
	defer quarks.mu.Unlock()
	if q == 0 || int(q) > len(quarks.names) {
		return "", false
	}
	return quarks.names[q-1], true
}

// ErrorInfo is the decoded content of a native GError.
type ErrorInfo struct {
	Domain  string
	Message string
	Code    int32
}

// NewError allocates a GError with a copy of message.
func NewError(s nativecall.Space, domain string, code int32, message string) (uint32, error) {
	msg, err := NewCString(s, message)
	if err != nil {
		return 0, err
	}
	ptr, err := AllocZeroed(s, GErrorSize, 4)
	if err != nil {
		FreeCString(s, msg)
		return 0, err
	}
	for _, w := range []struct{ off, v uint32 }{
		{gerrDomainOff, Quark(domain)},
		{gerrCodeOff, uint32(code)},
		{gerrMessageOff, msg},
	} {
		if err := s.WriteU32(ptr+w.off, w.v); err != nil {
			FreeCString(s, msg)
			s.Free(ptr, GErrorSize, 4)
			return 0, err
		}
	}
	return ptr, nil
}

// ReadError decodes the GError at ptr.
func ReadError(mem nativecall.Memory, ptr uint32) (ErrorInfo, error) {
	q, err := mem.ReadU32(ptr + gerrDomainOff)
	if err != nil {
		return ErrorInfo{}, err
	}
	code, err := mem.ReadU32(ptr + gerrCodeOff)
	if err != nil {
		return ErrorInfo{}, err
	}
	msgPtr, err := mem.ReadU32(ptr + gerrMessageOff)
	if err != nil {
		return ErrorInfo{}, err
	}
	var msg string
	if msgPtr != 0 {
		if msg, err = ReadCString(mem, msgPtr); err != nil {
			return ErrorInfo{}, err
		}
	}
	domain, _ := QuarkName(q)
	return ErrorInfo{Domain: domain, Code: int32(code), Message: msg}, nil
}

// FreeError releases a GError and its message.
func FreeError(s nativecall.Space, ptr uint32) {
	if ptr == 0 {
		return
	}
	if msgPtr, err := s.ReadU32(ptr + gerrMessageOff); err == nil {
		FreeCString(s, msgPtr)
	}
	s.Free(ptr, GErrorSize, 4)
}
