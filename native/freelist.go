package native

import (
	"sort"
	"sync"

	"github.com/wippyai/nativecall/errors"
	"github.com/wippyai/nativecall/typeinfo"
)

// GrowFunc extends the managed range so that it covers at least need bytes.
// It returns the new end of the range.
type GrowFunc func(need uint32) (uint32, bool)

// Stats counts allocator activity.
type Stats struct {
	Allocs    int
	Frees     int
	BadFrees  int
	Live      int
	LiveBytes uint64
}

type span struct {
	addr uint32
	size uint32
}

// FreeList is a first-fit allocator over an address range. Bookkeeping lives
// on the Go side, so the managed memory holds only user data.
type FreeList struct {
	grow  GrowFunc
	live  map[uint32]uint32
	free  []span
	stats Stats
	top   uint32
	end   uint32
	mu    sync.Mutex
}

// NewFreeList manages [base, end). Address 0 must lie outside the range.
func NewFreeList(base, end uint32, grow GrowFunc) *FreeList {
	if base == 0 {
		base = 8
	}
	return &FreeList{
		grow: grow,
		live: make(map[uint32]uint32),
		top:  base,
		end:  end,
	}
}

// Alloc returns a block of at least size bytes aligned to align.
func (f *FreeList) Alloc(size, align uint32) (uint32, error) {
	if size == 0 {
		size = 1
	}
	if align == 0 {
		align = 1
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for i, s := range f.free {
		p := typeinfo.AlignTo(s.addr, align)
		if p+size > s.addr+s.size || p+size < p {
			continue
		}
		f.takeSpan(i, p, size)
		f.record(p, size)
		return p, nil
	}

	p := typeinfo.AlignTo(f.top, align)
	need := p + size
	if need < p {
		return 0, errors.AllocationFailed(errors.PhaseNative, size, align)
	}
	if need > f.end {
		if f.grow == nil {
			return 0, errors.AllocationFailed(errors.PhaseNative, size, align)
		}
		end, ok := f.grow(need)
		if !ok || end < need {
			return 0, errors.AllocationFailed(errors.PhaseNative, size, align)
		}
		f.end = end
	}
	if p > f.top {
		f.insertSpan(span{addr: f.top, size: p - f.top})
	}
	f.top = need
	f.record(p, size)
	return p, nil
}

func (f *FreeList) takeSpan(i int, p, size uint32) {
	s := f.free[i]
	f.free = append(f.free[:i], f.free[i+1:]...)
	if p > s.addr {
		f.insertSpan(span{addr: s.addr, size: p - s.addr})
	}
	if tail := s.addr + s.size - (p + size); tail > 0 {
		f.insertSpan(span{addr: p + size, size: tail})
	}
}

func (f *FreeList) record(p, size uint32) {
	f.live[p] = size
	f.stats.Allocs++
	f.stats.Live++
	f.stats.LiveBytes += uint64(size)
}

// Free releases a block returned by Alloc. Unknown pointers are counted as
// bad frees and otherwise ignored; the size argument is advisory.
func (f *FreeList) Free(ptr, _, _ uint32) {
	if ptr == 0 {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	size, ok := f.live[ptr]
	if !ok {
		f.stats.BadFrees++
		return
	}
	delete(f.live, ptr)
	f.stats.Frees++
	f.stats.Live--
	f.stats.LiveBytes -= uint64(size)

	if ptr+size == f.top {
		f.top = ptr
		f.reclaimTop()
		return
	}
	f.insertSpan(span{addr: ptr, size: size})
}

// reclaimTop folds a free span that now touches the bump pointer back into it.
func (f *FreeList) reclaimTop() {
	for n := len(f.free); n > 0; n = len(f.free) {
		last := f.free[n-1]
		if last.addr+last.size != f.top {
			return
		}
		f.top = last.addr
		f.free = f.free[:n-1]
	}
}

func (f *FreeList) insertSpan(s span) {
	i := sort.Search(len(f.free), func(i int) bool { return f.free[i].addr >= s.addr })
	f.free = append(f.free, span{})
	copy(f.free[i+1:], f.free[i:])
	f.free[i] = s

	// coalesce with neighbours
	if i+1 < len(f.free) && f.free[i].addr+f.free[i].size == f.free[i+1].addr {
		f.free[i].size += f.free[i+1].size
		f.free = append(f.free[:i+1], f.free[i+2:]...)
	}
	if i > 0 && f.free[i-1].addr+f.free[i-1].size == f.free[i].addr {
		f.free[i-1].size += f.free[i].size
		f.free = append(f.free[:i], f.free[i+1:]...)
	}
}

// SizeOf returns the size of a live block.
func (f *FreeList) SizeOf(ptr uint32) (uint32, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	size, ok := f.live[ptr]
	return size, ok
}

// IsLive reports whether ptr is a live allocation.
func (f *FreeList) IsLive(ptr uint32) bool {
	_, ok := f.SizeOf(ptr)
	return ok
}

// Stats returns a snapshot of allocator counters.
func (f *FreeList) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}
