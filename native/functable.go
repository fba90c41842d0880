package native

import (
	"fmt"
	"sync"

	"github.com/wippyai/nativecall"
)

// FuncPtrBase is the first address handed out for function pointers. Data
// and function pointers never overlap.
const FuncPtrBase uint32 = 0xF000_0000

// FuncTable maps function pointers to Functions, reusing freed slots.
type FuncTable struct {
	entries  []nativecall.Function
	freeList []uint32
	mu       sync.RWMutex
}

// NewFuncTable creates an empty table.
func NewFuncTable() *FuncTable {
	return &FuncTable{}
}

// Install assigns a function pointer to fn.
func (t *FuncTable) Install(fn nativecall.Function) (uint32, error) {
	if fn == nil {
		return 0, fmt.Errorf("functable: nil function")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if n := len(t.freeList); n > 0 {
		idx := t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		t.entries[idx] = fn
		return FuncPtrBase + idx, nil
	}

	idx := uint32(len(t.entries))
	if idx >= ^FuncPtrBase {
		return 0, fmt.Errorf("functable: table full")
	}
	t.entries = append(t.entries, fn)
	return FuncPtrBase + idx, nil
}

// Function resolves a function pointer.
func (t *FuncTable) Function(addr uint32) (nativecall.Function, bool) {
	if addr < FuncPtrBase {
		return nil, false
	}
	idx := addr - FuncPtrBase

	t.mu.RLock()
	defer t.mu.RUnlock()

	if int(idx) >= len(t.entries) || t.entries[idx] == nil {
		return nil, false
	}
	return t.entries[idx], true
}

// Uninstall releases a function pointer. Unknown pointers are ignored.
func (t *FuncTable) Uninstall(addr uint32) {
	if addr < FuncPtrBase {
		return
	}
	idx := addr - FuncPtrBase

	t.mu.Lock()
	defer t.mu.Unlock()

	if int(idx) >= len(t.entries) || t.entries[idx] == nil {
		return
	}
	t.entries[idx] = nil
	t.freeList = append(t.freeList, idx)
}

// Len returns the number of installed functions.
func (t *FuncTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries) - len(t.freeList)
}
