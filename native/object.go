package native

import (
	"github.com/wippyai/nativecall"
	"github.com/wippyai/nativecall/errors"
	"github.com/wippyai/nativecall/typeinfo"
)

// Instance header layout: {refcount u32, gtype u32, size u32}.
const (
	instRefOff   = 0
	instGTypeOff = 4
	instSizeOff  = 8
)

// NewInstance allocates a zeroed object instance of size bytes (header
// included) with a reference count of one.
func NewInstance(s nativecall.Space, gtype, size uint32) (uint32, error) {
	if size < typeinfo.InstanceHeaderSize {
		size = typeinfo.InstanceHeaderSize
	}
	ptr, err := AllocZeroed(s, size, 8)
	if err != nil {
		return 0, err
	}
	for _, w := range []struct{ off, v uint32 }{
		{instRefOff, 1},
		{instGTypeOff, gtype},
		{instSizeOff, size},
	} {
		if err := s.WriteU32(ptr+w.off, w.v); err != nil {
			s.Free(ptr, size, 8)
			return 0, err
		}
	}
	return ptr, nil
}

// Ref increments the reference count.
func Ref(mem nativecall.Memory, ptr uint32) error {
	if ptr == 0 {
		return errors.NilPointer(errors.PhaseNative, nil, "object")
	}
	n, err := mem.ReadU32(ptr + instRefOff)
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Internal(errors.PhaseNative, nil, "ref of finalized instance")
	}
	return mem.WriteU32(ptr+instRefOff, n+1)
}

// Unref decrements the reference count and frees the instance at zero.
func Unref(s nativecall.Space, ptr uint32) (bool, error) {
	if ptr == 0 {
		return false, errors.NilPointer(errors.PhaseNative, nil, "object")
	}
	n, err := s.ReadU32(ptr + instRefOff)
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, errors.Internal(errors.PhaseNative, nil, "unref of finalized instance")
	}
	n--
	if err := s.WriteU32(ptr+instRefOff, n); err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	size, err := s.ReadU32(ptr + instSizeOff)
	if err != nil {
		return false, err
	}
	s.Free(ptr, size, 8)
	return true, nil
}

// RefCount returns the current reference count.
func RefCount(mem nativecall.Memory, ptr uint32) (uint32, error) {
	return mem.ReadU32(ptr + instRefOff)
}

// InstanceGType returns the runtime type of the instance.
func InstanceGType(mem nativecall.Memory, ptr uint32) (uint32, error) {
	return mem.ReadU32(ptr + instGTypeOff)
}
