package native

import (
	"github.com/wippyai/nativecall"
	"github.com/wippyai/nativecall/errors"
)

// GArray header layout: {data u32, len u32, elem_size u32}.
const (
	GArrayHeaderSize = 12

	garrayDataOff     = 0
	garrayLenOff      = 4
	garrayElemSizeOff = 8
)

// NewGArray allocates a header and a zeroed data block for n elements.
func NewGArray(s nativecall.Space, elemSize, align, n uint32) (hdr, data uint32, err error) {
	size, ok := mulU32(elemSize, n)
	if !ok {
		return 0, 0, errors.AllocationFailed(errors.PhaseNative, elemSize, align)
	}
	hdr, err = AllocZeroed(s, GArrayHeaderSize, 4)
	if err != nil {
		return 0, 0, err
	}
	if size > 0 {
		data, err = AllocZeroed(s, size, align)
		if err != nil {
			s.Free(hdr, GArrayHeaderSize, 4)
			return 0, 0, err
		}
	}
	for _, w := range []struct{ off, v uint32 }{
		{garrayDataOff, data},
		{garrayLenOff, n},
		{garrayElemSizeOff, elemSize},
	} {
		if err := s.WriteU32(hdr+w.off, w.v); err != nil {
			FreeGArray(s, hdr, align, true)
			return 0, 0, err
		}
	}
	return hdr, data, nil
}

// ReadGArray returns the header fields.
func ReadGArray(mem nativecall.Memory, hdr uint32) (data, length, elemSize uint32, err error) {
	if data, err = mem.ReadU32(hdr + garrayDataOff); err != nil {
		return 0, 0, 0, err
	}
	if length, err = mem.ReadU32(hdr + garrayLenOff); err != nil {
		return 0, 0, 0, err
	}
	if elemSize, err = mem.ReadU32(hdr + garrayElemSizeOff); err != nil {
		return 0, 0, 0, err
	}
	return data, length, elemSize, nil
}

// FreeGArray releases the header and, when freeData is set, the data block.
func FreeGArray(s nativecall.Space, hdr, align uint32, freeData bool) {
	if hdr == 0 {
		return
	}
	if freeData {
		if data, n, elemSize, err := ReadGArray(s, hdr); err == nil && data != 0 {
			s.Free(data, n*elemSize, align)
		}
	}
	s.Free(hdr, GArrayHeaderSize, 4)
}

func mulU32(a, b uint32) (uint32, bool) {
	p := uint64(a) * uint64(b)
	if p > 1<<32-1 {
		return 0, false
	}
	return uint32(p), true
}

// MulSize multiplies an element size by a count, reporting overflow.
func MulSize(elemSize, n uint32) (uint32, bool) {
	return mulU32(elemSize, n)
}
