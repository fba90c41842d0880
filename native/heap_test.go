package native

import (
	"context"
	"errors"
	"testing"

	"github.com/wippyai/nativecall"
	nerrors "github.com/wippyai/nativecall/errors"
)

func TestFreeListAllocFree(t *testing.T) {
	f := NewFreeList(8, 1024, nil)

	a, err := f.Alloc(16, 8)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	b, err := f.Alloc(3, 1)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if a == 0 || b == 0 || a == b {
		t.Fatalf("bad pointers %d %d", a, b)
	}
	if a%8 != 0 {
		t.Errorf("a = %d not 8-aligned", a)
	}

	f.Free(a, 16, 8)
	c, err := f.Alloc(8, 8)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if c != a {
		t.Errorf("first fit should reuse freed block: got %d, want %d", c, a)
	}

	st := f.Stats()
	if st.Allocs != 3 || st.Frees != 1 || st.Live != 2 {
		t.Errorf("stats = %+v", st)
	}
}

func TestFreeListBadFree(t *testing.T) {
	f := NewFreeList(8, 1024, nil)
	p, _ := f.Alloc(4, 4)
	f.Free(p, 4, 4)
	f.Free(p, 4, 4)
	f.Free(999, 1, 1)
	f.Free(0, 0, 0)
	if st := f.Stats(); st.BadFrees != 2 || st.Frees != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestFreeListCoalesce(t *testing.T) {
	f := NewFreeList(8, 1024, nil)
	var ptrs []uint32
	for i := 0; i < 4; i++ {
		p, err := f.Alloc(32, 8)
		if err != nil {
			t.Fatal(err)
		}
		ptrs = append(ptrs, p)
	}
	// keep the last block so the top does not move
	f.Free(ptrs[0], 32, 8)
	f.Free(ptrs[2], 32, 8)
	f.Free(ptrs[1], 32, 8)

	big, err := f.Alloc(96, 8)
	if err != nil {
		t.Fatal(err)
	}
	if big != ptrs[0] {
		t.Errorf("coalesced block at %d, want %d", big, ptrs[0])
	}
}

func TestFreeListExhausted(t *testing.T) {
	f := NewFreeList(8, 64, nil)
	_, err := f.Alloc(128, 1)
	if !errors.Is(err, &nerrors.Error{Phase: nerrors.PhaseNative, Kind: nerrors.KindAllocation}) {
		t.Errorf("err = %v, want allocation failure", err)
	}
}

func TestHeapGrow(t *testing.T) {
	h := NewHeap(&Config{InitialSize: 64, MaxSize: 4096})
	p, err := h.Alloc(1000, 8)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if h.Size() < p+1000 {
		t.Errorf("Size() = %d, want >= %d", h.Size(), p+1000)
	}
	if err := h.WriteU32(p+996, 0xdeadbeef); err != nil {
		t.Fatalf("WriteU32: %v", err)
	}
	if _, err := h.Alloc(8192, 8); err == nil {
		t.Error("allocation beyond MaxSize should fail")
	}
}

func TestHeapMemoryAccess(t *testing.T) {
	h := NewHeap(nil)
	p, _ := h.Alloc(16, 8)

	if err := h.WriteU64(p, 0x0102030405060708); err != nil {
		t.Fatal(err)
	}
	if v, _ := h.ReadU8(p); v != 0x08 {
		t.Errorf("little-endian low byte = %#x", v)
	}
	if v, _ := h.ReadU16(p + 6); v != 0x0102 {
		t.Errorf("ReadU16 = %#x", v)
	}
	if _, err := h.ReadU32(0); err == nil {
		t.Error("null read should fail")
	}
	if _, err := h.Read(h.Size()-2, 4); err == nil {
		t.Error("read past end should fail")
	}
}

func TestHeapSymbols(t *testing.T) {
	h := NewHeap(nil)
	h.Define("double_it", func(_ context.Context, _ nativecall.Space, args []uint64) ([]uint64, error) {
		return []uint64{uint64(nativecall.Int32Value(nativecall.Value(args[0]).Int32() * 2))}, nil
	})

	fn, ok := h.Symbol("double_it")
	if !ok {
		t.Fatal("symbol not found")
	}
	out, err := fn.Call(context.Background(), uint64(nativecall.Int32Value(-21)))
	if err != nil {
		t.Fatal(err)
	}
	if got := nativecall.Value(out[0]).Int32(); got != -42 {
		t.Errorf("got %d", got)
	}
	if _, ok := h.Symbol("missing"); ok {
		t.Error("unexpected symbol")
	}
}

func TestFuncTable(t *testing.T) {
	ft := NewFuncTable()
	fn := Bind(NewHeap(nil), func(context.Context, nativecall.Space, []uint64) ([]uint64, error) { return nil, nil })

	a, err := ft.Install(fn)
	if err != nil {
		t.Fatal(err)
	}
	if a < FuncPtrBase {
		t.Errorf("pointer %#x below base", a)
	}
	if _, ok := ft.Function(a); !ok {
		t.Error("installed function not found")
	}
	if _, ok := ft.Function(16); ok {
		t.Error("data pointer should not resolve")
	}

	ft.Uninstall(a)
	if _, ok := ft.Function(a); ok {
		t.Error("uninstalled function still resolves")
	}
	b, _ := ft.Install(fn)
	if b != a {
		t.Errorf("slot not reused: %#x vs %#x", b, a)
	}
	if ft.Len() != 1 {
		t.Errorf("Len() = %d", ft.Len())
	}
	if _, err := ft.Install(nil); err == nil {
		t.Error("nil install should fail")
	}
}
