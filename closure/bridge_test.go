package closure

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/nativecall"
	"github.com/wippyai/nativecall/errors"
	"github.com/wippyai/nativecall/host"
	"github.com/wippyai/nativecall/marshal"
	"github.com/wippyai/nativecall/native"
	"github.com/wippyai/nativecall/typeinfo"
)

type failures struct {
	errs []error
	mu   sync.Mutex
}

func (f *failures) record(_ string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, err)
}

func (f *failures) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.errs)
}

func newBridge(t *testing.T) (*Bridge, *native.Heap, *failures) {
	t.Helper()
	heap := native.NewHeap(nil)
	f := &failures{}
	b := NewBridge(heap, &Config{Registry: marshal.NewRegistry(), OnError: f.record})
	t.Cleanup(func() { _ = b.Close() })
	return b, heap, f
}

func int32T() *typeinfo.TypeDesc { return typeinfo.Basic(typeinfo.TagInt32) }

// visitSig is gboolean (*visit)(gint32 value, gpointer data).
func visitSig() *typeinfo.CallableInfo {
	data := typeinfo.In("data", typeinfo.VoidPointer())
	data.Closure = 1
	return &typeinfo.CallableInfo{
		Namespace: "Test",
		Name:      "Visit",
		Kind:      typeinfo.CallableCallback,
		Args:      []typeinfo.ArgInfo{typeinfo.In("value", int32T()), data},
		Return:    typeinfo.Basic(typeinfo.TagBoolean),
	}
}

func call(t *testing.T, heap *native.Heap, ptr uint32, params ...uint64) []uint64 {
	t.Helper()
	fn, ok := heap.Function(ptr)
	if !ok {
		t.Fatalf("no function at %#x", ptr)
	}
	res, err := fn.Call(context.Background(), params...)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	return res
}

func TestTrampolineCall(t *testing.T) {
	b, heap, f := newBridge(t)

	var got []any
	fn := host.Func(func(_ context.Context, args ...any) (any, error) {
		got = args
		return args[0].(int64) > 5, nil
	})
	tr, err := b.Build(context.Background(), visitSig(), fn, "ctx", typeinfo.ScopeCall)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if tr.Ptr() < native.FuncPtrBase || tr.Data() == 0 {
		t.Fatalf("ptr=%#x data=%d", tr.Ptr(), tr.Data())
	}

	res := call(t, heap, tr.Ptr(), 7, uint64(tr.Data()))
	if diff := cmp.Diff([]uint64{1}, res); diff != "" {
		t.Errorf("results (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{int64(7), "ctx"}, got); diff != "" {
		t.Errorf("host args (-want +got):\n%s", diff)
	}
	if res := call(t, heap, tr.Ptr(), 2, uint64(tr.Data())); res[0] != 0 {
		t.Errorf("visit(2) = %v", res)
	}
	if f.count() != 0 {
		t.Errorf("unexpected failures: %v", f.errs)
	}

	if found, ok := b.Lookup(tr.Data()); !ok || found != tr {
		t.Errorf("Lookup(%d) = %v, %v", tr.Data(), found, ok)
	}
}

func TestTrampolineFailuresAreReported(t *testing.T) {
	tests := []struct {
		name   string
		fn     host.Func
		params []uint64
		substr string
	}{
		{
			name:   "host error",
			fn:     func(context.Context, ...any) (any, error) { return nil, host.Raise(errors.ClassValueError, "bad input") },
			params: []uint64{1, 0},
			substr: "bad input",
		},
		{
			name:   "result not convertible",
			fn:     func(context.Context, ...any) (any, error) { return "yes", nil },
			params: []uint64{1, 0},
			substr: "type_mismatch",
		},
		{
			name:   "wrong native arity",
			fn:     func(context.Context, ...any) (any, error) { return true, nil },
			params: []uint64{1},
			substr: "expects 2 native arguments",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, heap, f := newBridge(t)
			tr, err := b.Build(context.Background(), visitSig(), tt.fn, nil, typeinfo.ScopeNotified)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			res := call(t, heap, tr.Ptr(), tt.params...)
			if diff := cmp.Diff([]uint64{0}, res); diff != "" {
				t.Errorf("results (-want +got):\n%s", diff)
			}
			if f.count() != 1 || !strings.Contains(f.errs[0].Error(), tt.substr) {
				t.Errorf("reported %v, want one failure containing %q", f.errs, tt.substr)
			}
		})
	}
}

func TestScopes(t *testing.T) {
	noop := host.Func(func(context.Context, ...any) (any, error) { return false, nil })

	t.Run("release uninstalls", func(t *testing.T) {
		b, heap, _ := newBridge(t)
		tr, _ := b.Build(context.Background(), visitSig(), noop, nil, typeinfo.ScopeCall)
		tr.Release()
		if _, ok := heap.Function(tr.Ptr()); ok {
			t.Error("function pointer still installed")
		}
		if b.Live() != 0 || !tr.Released() {
			t.Errorf("live=%d released=%v", b.Live(), tr.Released())
		}
		tr.Release()
	})

	t.Run("notified scope released by destroy notify", func(t *testing.T) {
		b, heap, _ := newBridge(t)
		tr, _ := b.Build(context.Background(), visitSig(), noop, nil, typeinfo.ScopeNotified)
		call(t, heap, tr.Ptr(), 1, uint64(tr.Data()))
		if tr.Released() {
			t.Fatal("notified trampoline released by a call")
		}
		destroy, err := b.DestroyNotify()
		if err != nil {
			t.Fatalf("DestroyNotify: %v", err)
		}
		if again, _ := b.DestroyNotify(); again != destroy {
			t.Errorf("destroy notifier not shared: %#x, %#x", destroy, again)
		}
		call(t, heap, destroy, uint64(tr.Data()))
		if !tr.Released() || b.Live() != 0 {
			t.Errorf("released=%v live=%d", tr.Released(), b.Live())
		}
		call(t, heap, destroy, uint64(tr.Data()))
	})

	t.Run("destroy from inside the callback is deferred", func(t *testing.T) {
		b, heap, _ := newBridge(t)
		destroy, _ := b.DestroyNotify()
		var tr *Trampoline
		var releasedInside bool
		fn := host.Func(func(ctx context.Context, _ ...any) (any, error) {
			call(t, heap, destroy, uint64(tr.Data()))
			releasedInside = tr.Released()
			return true, nil
		})
		tr, _ = b.Build(context.Background(), visitSig(), fn, nil, typeinfo.ScopeNotified)
		res := call(t, heap, tr.Ptr(), 1, uint64(tr.Data()))
		if res[0] != 1 {
			t.Errorf("result = %v", res)
		}
		if releasedInside {
			t.Error("trampoline released while running")
		}
		if !tr.Released() {
			t.Error("deferred release did not happen")
		}
	})

	t.Run("async scope queued after firing", func(t *testing.T) {
		b, heap, _ := newBridge(t)
		tr, _ := b.Build(context.Background(), visitSig(), noop, nil, typeinfo.ScopeAsync)
		if b.Pending() != 0 {
			t.Fatal("pending before firing")
		}
		call(t, heap, tr.Ptr(), 1, 0)
		call(t, heap, tr.Ptr(), 1, 0)
		if b.Pending() != 1 || tr.Released() {
			t.Fatalf("pending=%d released=%v", b.Pending(), tr.Released())
		}
		next, _ := b.Build(context.Background(), visitSig(), noop, nil, typeinfo.ScopeCall)
		if b.Pending() != 0 || !tr.Released() {
			t.Errorf("drain: pending=%d released=%v", b.Pending(), tr.Released())
		}
		if next.Released() {
			t.Error("new trampoline released by the drain")
		}
	})

	t.Run("stale release leaves reused handle alone", func(t *testing.T) {
		b, heap, _ := newBridge(t)
		destroy, _ := b.DestroyNotify()
		t1, _ := b.Build(context.Background(), visitSig(), noop, nil, typeinfo.ScopeNotified)
		call(t, heap, destroy, uint64(t1.Data()))

		t2, _ := b.Build(context.Background(), visitSig(), noop, nil, typeinfo.ScopeNotified)
		if t2.Data() != t1.Data() {
			t.Fatalf("handle not reused: %d, %d", t1.Data(), t2.Data())
		}
		t1.Release()
		if t2.Released() || b.Live() != 1 {
			t.Fatalf("released=%v live=%d", t2.Released(), b.Live())
		}
		if _, ok := heap.Function(t2.Ptr()); !ok {
			t.Fatal("live trampoline uninstalled")
		}
		if res := call(t, heap, t2.Ptr(), 1, uint64(t2.Data())); len(res) != 1 {
			t.Errorf("result = %v", res)
		}
	})

	t.Run("noop destroy", func(t *testing.T) {
		b, heap, _ := newBridge(t)
		ptr, err := b.NoopDestroy()
		if err != nil {
			t.Fatalf("NoopDestroy: %v", err)
		}
		call(t, heap, ptr, 12345)
	})

	t.Run("close releases everything", func(t *testing.T) {
		b, _, _ := newBridge(t)
		t1, _ := b.Build(context.Background(), visitSig(), noop, nil, typeinfo.ScopeNotified)
		t2, _ := b.Build(context.Background(), visitSig(), noop, nil, typeinfo.ScopeAsync)
		if err := b.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		if !t1.Released() || !t2.Released() {
			t.Error("Close left trampolines installed")
		}
		if _, err := b.Build(context.Background(), visitSig(), noop, nil, typeinfo.ScopeCall); err == nil {
			t.Error("Build after Close succeeded")
		}
	})
}

func TestOutParameters(t *testing.T) {
	b, heap, f := newBridge(t)
	sig := &typeinfo.CallableInfo{
		Namespace: "Test",
		Name:      "DivMod",
		Args: []typeinfo.ArgInfo{
			typeinfo.In("a", int32T()),
			typeinfo.In("b", int32T()),
			typeinfo.Out("rem", int32T()),
		},
		Return: int32T(),
	}
	fn := host.Func(func(_ context.Context, args ...any) (any, error) {
		a, d := args[0].(int64), args[1].(int64)
		return []any{a / d, a % d}, nil
	})
	tr, err := b.Build(context.Background(), sig, fn, nil, typeinfo.ScopeCall)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	cell, _ := native.AllocZeroed(heap, 4, 4)
	res := call(t, heap, tr.Ptr(), 17, 5, uint64(cell))
	rem, _ := heap.ReadU32(cell)
	if res[0] != 3 || rem != 2 {
		t.Errorf("divmod(17, 5) = %v rem %d", res, rem)
	}

	fnBad := host.Func(func(context.Context, ...any) (any, error) { return 3, nil })
	bad, _ := b.Build(context.Background(), sig, fnBad, nil, typeinfo.ScopeCall)
	call(t, heap, bad.Ptr(), 17, 5, uint64(cell))
	if f.count() != 1 || !strings.Contains(f.errs[0].Error(), "must return 2 values") {
		t.Errorf("failures = %v", f.errs)
	}
}

func TestInOutParameter(t *testing.T) {
	b, heap, _ := newBridge(t)
	sig := &typeinfo.CallableInfo{
		Namespace: "Test",
		Name:      "Bump",
		Args:      []typeinfo.ArgInfo{typeinfo.InOut("counter", int32T())},
	}
	fn := host.Func(func(_ context.Context, args ...any) (any, error) {
		return args[0].(int64) + 1, nil
	})
	tr, _ := b.Build(context.Background(), sig, fn, nil, typeinfo.ScopeCall)
	cell, _ := native.AllocZeroed(heap, 4, 4)
	_ = heap.WriteU32(cell, 41)
	if res := call(t, heap, tr.Ptr(), uint64(cell)); len(res) != 0 {
		t.Errorf("void callback returned %v", res)
	}
	if v, _ := heap.ReadU32(cell); v != 42 {
		t.Errorf("counter = %d, want 42", v)
	}
}

func TestReturnOwnership(t *testing.T) {
	tests := []struct {
		name         string
		transfer     typeinfo.Transfer
		liveBefore   int
		liveReleased int
	}{
		{"borrowed string kept until release", typeinfo.TransferNothing, 1, 0},
		{"owned string belongs to native code", typeinfo.TransferEverything, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, heap, _ := newBridge(t)
			sig := &typeinfo.CallableInfo{
				Namespace:      "Test",
				Name:           "Label",
				Return:         typeinfo.UTF8(),
				ReturnTransfer: tt.transfer,
			}
			fn := host.Func(func(context.Context, ...any) (any, error) { return "label", nil })
			tr, _ := b.Build(context.Background(), sig, fn, nil, typeinfo.ScopeNotified)
			res := call(t, heap, tr.Ptr())
			if s, err := native.ReadCString(heap, uint32(res[0])); err != nil || s != "label" {
				t.Fatalf("returned %q, %v", s, err)
			}
			if n := heap.Stats().Live; n != tt.liveBefore {
				t.Errorf("live before release = %d, want %d", n, tt.liveBefore)
			}
			tr.Release()
			if n := heap.Stats().Live; n != tt.liveReleased {
				t.Errorf("live after release = %d, want %d", n, tt.liveReleased)
			}
		})
	}
}

func TestThrowingCallback(t *testing.T) {
	b, heap, f := newBridge(t)
	sig := &typeinfo.CallableInfo{
		Namespace: "Test",
		Name:      "Check",
		Args:      []typeinfo.ArgInfo{typeinfo.In("x", int32T())},
		Return:    typeinfo.Basic(typeinfo.TagBoolean),
		Throws:    true,
	}
	fn := host.Func(func(_ context.Context, args ...any) (any, error) {
		if args[0].(int64) < 0 {
			return nil, host.NewGError("test-quark", 7, "negative")
		}
		return true, nil
	})
	tr, err := b.Build(context.Background(), sig, fn, nil, typeinfo.ScopeCall)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	loc, _ := native.AllocZeroed(heap, 4, 4)

	if res := call(t, heap, tr.Ptr(), 1, uint64(loc)); res[0] != 1 {
		t.Errorf("check(1) = %v", res)
	}
	res := call(t, heap, tr.Ptr(), uint64(nativecall.Int32Value(-1)), uint64(loc))
	if res[0] != 0 {
		t.Errorf("check(-1) = %v", res)
	}
	ptr, _ := heap.ReadU32(loc)
	info, err := native.ReadError(heap, ptr)
	if err != nil {
		t.Fatalf("ReadError: %v", err)
	}
	if diff := cmp.Diff(native.ErrorInfo{Domain: "test-quark", Code: 7, Message: "negative"}, info); diff != "" {
		t.Errorf("error (-want +got):\n%s", diff)
	}
	if f.count() != 0 {
		t.Errorf("GError reported as failure: %v", f.errs)
	}
}

func TestClosureFactory(t *testing.T) {
	b, heap, _ := newBridge(t)
	c, err := marshal.NewRegistry().Get(visitSig())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	cl, err := b.NewClosure(context.Background(), c, host.Func(func(context.Context, ...any) (any, error) { return true, nil }), nil, false, typeinfo.ScopeCall)
	if err != nil {
		t.Fatalf("NewClosure: %v", err)
	}
	if res := call(t, heap, cl.Ptr(), 1, 0); res[0] != 1 {
		t.Errorf("result = %v", res)
	}
	cl.Release()
	if b.Live() != 0 {
		t.Errorf("live = %d", b.Live())
	}

	if _, err := b.NewClosure(context.Background(), c, nil, nil, false, typeinfo.ScopeCall); err == nil {
		t.Error("nil callable accepted")
	}
}
