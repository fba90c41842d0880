package native

import (
	"fmt"

	"github.com/wippyai/nativecall"
)

// Store writes the low size bytes of v at addr.
func Store(mem nativecall.Memory, addr, size uint32, v nativecall.Value) error {
	switch size {
	case 0:
		return nil
	case 1:
		return mem.WriteU8(addr, v.Uint8())
	case 2:
		return mem.WriteU16(addr, v.Uint16())
	case 4:
		return mem.WriteU32(addr, v.Uint32())
	case 8:
		return mem.WriteU64(addr, v.Uint64())
	default:
		return fmt.Errorf("native: unsupported slot size %d", size)
	}
}

// Load reads a size-byte slot at addr, zero-extended.
func Load(mem nativecall.Memory, addr, size uint32) (nativecall.Value, error) {
	switch size {
	case 0:
		return 0, nil
	case 1:
		v, err := mem.ReadU8(addr)
		return nativecall.Value(v), err
	case 2:
		v, err := mem.ReadU16(addr)
		return nativecall.Value(v), err
	case 4:
		v, err := mem.ReadU32(addr)
		return nativecall.Value(v), err
	case 8:
		v, err := mem.ReadU64(addr)
		return nativecall.Value(v), err
	default:
		return 0, fmt.Errorf("native: unsupported slot size %d", size)
	}
}

// Zero clears size bytes at addr.
func Zero(mem nativecall.Memory, addr, size uint32) error {
	if size == 0 {
		return nil
	}
	return mem.Write(addr, make([]byte, size))
}

// Copy duplicates size bytes from src to dst.
func Copy(mem nativecall.Memory, dst, src, size uint32) error {
	if size == 0 {
		return nil
	}
	data, err := mem.Read(src, size)
	if err != nil {
		return err
	}
	return mem.Write(dst, data)
}

// AllocZeroed allocates size bytes and clears them.
func AllocZeroed(s nativecall.Space, size, align uint32) (uint32, error) {
	ptr, err := s.Alloc(size, align)
	if err != nil {
		return 0, err
	}
	if err := Zero(s, ptr, size); err != nil {
		s.Free(ptr, size, align)
		return 0, err
	}
	return ptr, nil
}
