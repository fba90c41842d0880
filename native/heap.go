package native

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/wippyai/nativecall"
	"github.com/wippyai/nativecall/errors"
)

// Config configures a Heap.
type Config struct {
	// InitialSize is the initial backing size in bytes.
	InitialSize uint32
	// MaxSize bounds growth; allocations beyond it fail.
	MaxSize uint32
}

// DefaultConfig returns the default heap configuration.
func DefaultConfig() *Config {
	return &Config{
		InitialSize: 64 << 10,
		MaxSize:     64 << 20,
	}
}

// Heap is an in-process native address space: a growable byte arena with a
// first-fit allocator, a symbol table of Go-defined native functions and a
// function pointer table.
type Heap struct {
	*FreeList
	*FuncTable

	symbols map[string]nativecall.Function
	mem     []byte
	max     uint32
	mu      sync.RWMutex
	symMu   sync.RWMutex
}

var _ nativecall.Space = (*Heap)(nil)

// NewHeap creates a heap. A nil config uses DefaultConfig.
func NewHeap(cfg *Config) *Heap {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	initial := cfg.InitialSize
	if initial < 64 {
		initial = 64
	}
	h := &Heap{
		FuncTable: NewFuncTable(),
		symbols:   make(map[string]nativecall.Function),
		mem:       make([]byte, initial),
		max:       cfg.MaxSize,
	}
	if h.max != 0 && h.max < initial {
		h.max = initial
	}
	h.FreeList = NewFreeList(8, initial, h.growTo)
	return h
}

func (h *Heap) growTo(need uint32) (uint32, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	size := uint32(len(h.mem))
	for size < need {
		next := size * 2
		if next < size {
			next = need
		}
		size = next
	}
	if h.max != 0 && size > h.max {
		if need > h.max {
			return 0, false
		}
		size = h.max
	}
	grown := make([]byte, size)
	copy(grown, h.mem)
	h.mem = grown
	return size, true
}

// Size returns the current backing size.
func (h *Heap) Size() uint32 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return uint32(len(h.mem))
}

func (h *Heap) bounds(offset, length uint32) bool {
	end := uint64(offset) + uint64(length)
	return offset != 0 && end <= uint64(len(h.mem))
}

// Read copies length bytes starting at offset.
func (h *Heap) Read(offset uint32, length uint32) ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.bounds(offset, length) {
		return nil, errors.OutOfBounds(errors.PhaseNative, offset, length)
	}
	out := make([]byte, length)
	copy(out, h.mem[offset:offset+length])
	return out, nil
}

// Write copies data to offset.
func (h *Heap) Write(offset uint32, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.bounds(offset, uint32(len(data))) {
		return errors.OutOfBounds(errors.PhaseNative, offset, uint32(len(data)))
	}
	copy(h.mem[offset:], data)
	return nil
}

func (h *Heap) ReadU8(offset uint32) (uint8, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.bounds(offset, 1) {
		return 0, errors.OutOfBounds(errors.PhaseNative, offset, 1)
	}
	return h.mem[offset], nil
}

func (h *Heap) ReadU16(offset uint32) (uint16, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.bounds(offset, 2) {
		return 0, errors.OutOfBounds(errors.PhaseNative, offset, 2)
	}
	return binary.LittleEndian.Uint16(h.mem[offset:]), nil
}

func (h *Heap) ReadU32(offset uint32) (uint32, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.bounds(offset, 4) {
		return 0, errors.OutOfBounds(errors.PhaseNative, offset, 4)
	}
	return binary.LittleEndian.Uint32(h.mem[offset:]), nil
}

func (h *Heap) ReadU64(offset uint32) (uint64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.bounds(offset, 8) {
		return 0, errors.OutOfBounds(errors.PhaseNative, offset, 8)
	}
	return binary.LittleEndian.Uint64(h.mem[offset:]), nil
}

func (h *Heap) WriteU8(offset uint32, value uint8) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.bounds(offset, 1) {
		return errors.OutOfBounds(errors.PhaseNative, offset, 1)
	}
	h.mem[offset] = value
	return nil
}

func (h *Heap) WriteU16(offset uint32, value uint16) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.bounds(offset, 2) {
		return errors.OutOfBounds(errors.PhaseNative, offset, 2)
	}
	binary.LittleEndian.PutUint16(h.mem[offset:], value)
	return nil
}

func (h *Heap) WriteU32(offset uint32, value uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.bounds(offset, 4) {
		return errors.OutOfBounds(errors.PhaseNative, offset, 4)
	}
	binary.LittleEndian.PutUint32(h.mem[offset:], value)
	return nil
}

func (h *Heap) WriteU64(offset uint32, value uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.bounds(offset, 8) {
		return errors.OutOfBounds(errors.PhaseNative, offset, 8)
	}
	binary.LittleEndian.PutUint64(h.mem[offset:], value)
	return nil
}

// Define exports fn under name.
func (h *Heap) Define(name string, fn nativecall.NativeFunc) {
	h.symMu.Lock()
	defer h.symMu.Unlock()
	h.symbols[name] = &boundFunc{space: h, fn: fn}
}

// Symbol resolves an exported native function.
func (h *Heap) Symbol(name string) (nativecall.Function, bool) {
	h.symMu.RLock()
	defer h.symMu.RUnlock()
	fn, ok := h.symbols[name]
	return fn, ok
}

// boundFunc binds a NativeFunc to the space it runs against.
type boundFunc struct {
	space nativecall.Space
	fn    nativecall.NativeFunc
}

func (b *boundFunc) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	return b.fn(ctx, b.space, params)
}

// Bind adapts fn into a Function running against s, for installing Go
// functions in a function pointer table.
func Bind(s nativecall.Space, fn nativecall.NativeFunc) nativecall.Function {
	return &boundFunc{space: s, fn: fn}
}
