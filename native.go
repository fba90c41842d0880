package nativecall

import (
	"context"
	"math"
)

// Memory is a 32-bit addressed, little-endian native address space.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer provides the current size of the address space in bytes.
type MemorySizer interface {
	Size() uint32
}

// Allocator allocates memory in the native address space.
// Address 0 is never returned; it is the null pointer.
type Allocator interface {
	Alloc(size, align uint32) (uint32, error)
	Free(ptr, size, align uint32)
}

// Function is a native entry point. wazero's api.Function satisfies it.
// Parameters and results use the wazero encoding: 32-bit and smaller values
// occupy the low bits, floats are carried as their IEEE-754 bit pattern.
type Function interface {
	Call(ctx context.Context, params ...uint64) ([]uint64, error)
}

// FunctionTable maps native function pointers to callable entries.
// Pointers handed out by Install are non-zero and stable until Uninstall.
type FunctionTable interface {
	Install(fn Function) (uint32, error)
	Function(addr uint32) (Function, bool)
	Uninstall(addr uint32)
}

// Space is everything marshaling needs from a native library: its memory,
// its allocator, its exported symbols and its function pointer table.
type Space interface {
	Memory
	Allocator
	FunctionTable
	Symbol(name string) (Function, bool)
}

// NativeFunc is the Go form of a native function defined in a Space.
type NativeFunc func(ctx context.Context, s Space, args []uint64) ([]uint64, error)

// Value is one native frame slot.
type Value uint64

func Int8Value(v int8) Value       { return Value(uint32(int32(v))) }
func Uint8Value(v uint8) Value     { return Value(v) }
func Int16Value(v int16) Value     { return Value(uint32(int32(v))) }
func Uint16Value(v uint16) Value   { return Value(v) }
func Int32Value(v int32) Value     { return Value(uint32(v)) }
func Uint32Value(v uint32) Value   { return Value(v) }
func Int64Value(v int64) Value     { return Value(uint64(v)) }
func Uint64Value(v uint64) Value   { return Value(v) }
func Float32Value(v float32) Value { return Value(math.Float32bits(v)) }
func Float64Value(v float64) Value { return Value(math.Float64bits(v)) }
func PtrValue(p uint32) Value      { return Value(p) }

func BoolValue(b bool) Value {
	if b {
		return 1
	}
	return 0
}

func (v Value) Int8() int8       { return int8(v) }
func (v Value) Uint8() uint8     { return uint8(v) }
func (v Value) Int16() int16     { return int16(v) }
func (v Value) Uint16() uint16   { return uint16(v) }
func (v Value) Int32() int32     { return int32(v) }
func (v Value) Uint32() uint32   { return uint32(v) }
func (v Value) Int64() int64     { return int64(v) }
func (v Value) Uint64() uint64   { return uint64(v) }
func (v Value) Float32() float32 { return math.Float32frombits(uint32(v)) }
func (v Value) Float64() float64 { return math.Float64frombits(uint64(v)) }
func (v Value) Ptr() uint32      { return uint32(v) }
func (v Value) Bool() bool       { return uint32(v) != 0 }
