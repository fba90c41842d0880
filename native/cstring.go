package native

import (
	"github.com/wippyai/nativecall"
	"github.com/wippyai/nativecall/errors"
)

// MaxStringSize bounds NUL scans over native memory.
const MaxStringSize = 1 << 30

// NewCString copies s into a fresh NUL-terminated buffer.
func NewCString(s nativecall.Space, str string) (uint32, error) {
	size := uint32(len(str)) + 1
	ptr, err := s.Alloc(size, 1)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, size)
	copy(buf, str)
	if err := s.Write(ptr, buf); err != nil {
		s.Free(ptr, size, 1)
		return 0, err
	}
	return ptr, nil
}

// StrLen returns the length of the NUL-terminated string at ptr.
func StrLen(mem nativecall.Memory, ptr uint32) (uint32, error) {
	if ptr == 0 {
		return 0, errors.NilPointer(errors.PhaseNative, nil, "utf8")
	}
	var n uint32
	for n < MaxStringSize {
		b, err := mem.ReadU8(ptr + n)
		if err != nil {
			return 0, err
		}
		if b == 0 {
			return n, nil
		}
		n++
	}
	return 0, errors.Internal(errors.PhaseNative, nil, "unterminated string")
}

// ReadCString copies the NUL-terminated string at ptr.
func ReadCString(mem nativecall.Memory, ptr uint32) (string, error) {
	n, err := StrLen(mem, ptr)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	data, err := mem.Read(ptr, n)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FreeCString releases a string allocated by NewCString or by native code.
func FreeCString(s nativecall.Space, ptr uint32) {
	if ptr == 0 {
		return
	}
	n, err := StrLen(s, ptr)
	if err != nil {
		return
	}
	s.Free(ptr, n+1, 1)
}
