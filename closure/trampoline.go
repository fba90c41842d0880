package closure

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/nativecall"
	"github.com/wippyai/nativecall/errors"
	"github.com/wippyai/nativecall/host"
	"github.com/wippyai/nativecall/marshal"
	"github.com/wippyai/nativecall/native"
	"github.com/wippyai/nativecall/resource"
	"github.com/wippyai/nativecall/typeinfo"
)

// kept is a value handed to native code that the trampoline still owns.
type kept struct {
	arg  *marshal.Arg
	data any
	v    nativecall.Value
}

// Trampoline is a host callable installed as a native function. It
// implements nativecall.Function and marshal.Closure.
type Trampoline struct {
	bridge   *Bridge
	sig      *marshal.Callable
	fn       host.Callable
	userData any
	// kept values are released with the trampoline.
	kept []kept

	mu          sync.Mutex
	ptr         uint32
	handle      resource.Handle
	scope       typeinfo.Scope
	hasUserData bool
	fired       bool
	released    bool
}

var (
	_ nativecall.Function = (*Trampoline)(nil)
	_ marshal.Closure     = (*Trampoline)(nil)
	_ resource.Dropper    = (*Trampoline)(nil)
)

// Ptr returns the native function pointer.
func (t *Trampoline) Ptr() uint32 { return t.ptr }

// Data returns the handle native code passes back as user data.
func (t *Trampoline) Data() uint32 { return uint32(t.handle) }

// Scope returns the trampoline's lifetime.
func (t *Trampoline) Scope() typeinfo.Scope { return t.scope }

// Signature returns the callback signature cache.
func (t *Trampoline) Signature() *marshal.Callable { return t.sig }

// Released reports whether the trampoline has been released.
func (t *Trampoline) Released() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.released
}

// Release removes the trampoline from its bridge. A trampoline that is
// running is released when it returns.
func (t *Trampoline) Release() {
	if found, _ := t.bridge.handles.RemoveValue(t.handle, t); !found {
		// Already gone; the handle may belong to a newer trampoline.
		t.Drop()
	}
}

// Drop implements resource.Dropper. It runs once per trampoline.
func (t *Trampoline) Drop() {
	t.mu.Lock()
	if t.released {
		t.mu.Unlock()
		return
	}
	t.released = true
	values := t.kept
	t.kept = nil
	t.mu.Unlock()

	b := t.bridge
	b.space.Uninstall(t.ptr)
	if len(values) > 0 {
		st := t.newState(context.Background())
		for _, k := range values {
			if k.arg.FromHostCleanup != nil {
				k.arg.FromHostCleanup(st, k.arg, k.v, k.data, true)
			}
		}
	}
	Logger().Debug("trampoline released",
		zap.String("callback", t.sig.Name),
		zap.Uint32("ptr", t.ptr),
		zap.Int("kept", len(values)))
}

func (t *Trampoline) newState(ctx context.Context) *marshal.State {
	b := t.bridge
	st := marshal.NewState(ctx, b.space, t.sig)
	st.Repo = b.repo
	st.Registry = b.registry
	st.Closures = b
	return st
}

// Call runs the host callable with native arguments. Failures are reported
// to the bridge and never returned to native code.
func (t *Trampoline) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	b := t.bridge
	if !b.handles.Borrow(t.handle) {
		b.report(t.sig.Name, errors.Internal(errors.PhaseCallback, nil, "trampoline called after release"))
		return t.zeroResults(), nil
	}
	defer b.handles.Return(t.handle)

	results, err := t.invoke(ctx, params)
	if err != nil {
		b.report(t.sig.Name, err)
		results = t.zeroResults()
	}
	if t.scope == typeinfo.ScopeAsync {
		t.mu.Lock()
		first := !t.fired
		t.fired = true
		t.mu.Unlock()
		if first {
			b.enqueue(t)
		}
	}
	return results, nil
}

func (t *Trampoline) zeroResults() []uint64 {
	if t.sig.Return == nil {
		return nil
	}
	return make([]uint64, 1)
}

func (t *Trampoline) invoke(ctx context.Context, params []uint64) ([]uint64, error) {
	sig := t.sig
	if len(params) != sig.NativeCount {
		return nil, errors.Internal(errors.PhaseCallback, nil,
			fmt.Sprintf("%s expects %d native arguments, got %d", sig.Name, sig.NativeCount, len(params)))
	}
	st := t.newState(ctx)
	for i, p := range params {
		st.Values[i] = nativecall.Value(p)
	}
	for _, a := range sig.Args {
		if a.Direction.IsOut() {
			st.Cells[a.NativeIndex] = uint32(params[a.NativeIndex])
		}
	}

	args, err := t.hostArgs(st)
	if err != nil {
		return nil, err
	}
	result, err := t.fn.Call(ctx, args...)
	if err != nil {
		if sig.Error != nil && t.raiseGError(st, err) {
			return t.zeroResults(), nil
		}
		return nil, err
	}
	return t.results(st, result)
}

// hostArgs converts the visible native arguments in declaration order; the
// host user data, if any, comes last.
func (t *Trampoline) hostArgs(st *marshal.State) ([]any, error) {
	var args []any
	for _, a := range t.sig.Args {
		if a.IsUserData || a.Meta == marshal.MetaChild || a.Skip || !a.Direction.IsIn() {
			continue
		}
		v := st.Values[a.NativeIndex]
		if a.Direction == typeinfo.DirectionInOut {
			cell := st.Cells[a.NativeIndex]
			if cell == 0 {
				marshal.ReleaseHostValue(st.Space, args)
				return nil, errors.NilPointer(errors.PhaseCallback, []string{a.Name}, a.Type.String())
			}
			var err error
			if v, err = native.Load(st.Space, cell, a.Type.Size()); err != nil {
				marshal.ReleaseHostValue(st.Space, args)
				return nil, err
			}
		}
		hv, err := a.ToHost(st, a, v)
		if err != nil {
			marshal.ReleaseHostValue(st.Space, args)
			return nil, err
		}
		args = append(args, hv)
	}
	if t.hasUserData {
		args = append(args, t.userData)
	}
	return args, nil
}

// results writes the host result into the return slot and the out cells.
// A result with more than one destination must be a sequence.
func (t *Trampoline) results(st *marshal.State, result any) ([]uint64, error) {
	outs := t.sig.Outs
	res := t.zeroResults()
	var values []any
	switch len(outs) {
	case 0:
		return res, nil
	case 1:
		values = []any{result}
	default:
		seq, ok := host.AsSequence(result)
		if !ok || len(seq) != len(outs) {
			return nil, errors.New(errors.PhaseCallback, errors.KindTypeMismatch).
				HostType(host.TypeName(result)).
				Detail("%s must return %d values", t.sig.Name, len(outs)).
				Build()
		}
		values = seq
	}

	done := make([]kept, 0, len(outs))
	unwind := func() {
		for _, k := range done {
			if k.arg.FromHostCleanup != nil {
				k.arg.FromHostCleanup(st, k.arg, k.v, k.data, false)
			}
		}
	}
	for i, a := range outs {
		v, data, err := a.FromHost(st, a, values[i])
		if err != nil {
			unwind()
			return nil, err
		}
		done = append(done, kept{arg: a, v: v, data: data})
		if a.IsReturn {
			res[0] = uint64(v)
			continue
		}
		if err := storeOut(st, a, v); err != nil {
			unwind()
			return nil, err
		}
	}

	t.mu.Lock()
	for _, k := range done {
		if k.arg.Transfer != typeinfo.TransferEverything || k.arg.CallerAllocates {
			t.kept = append(t.kept, k)
		}
	}
	t.mu.Unlock()
	return res, nil
}

// storeOut writes v to the storage native code passed for an out
// parameter. Caller-allocated structs are copied in place.
func storeOut(st *marshal.State, a *marshal.Arg, v nativecall.Value) error {
	cell := st.Cells[a.NativeIndex]
	if cell == 0 {
		return nil
	}
	if a.CallerAllocates && a.Type.Iface != nil && v.Ptr() != 0 {
		return native.Copy(st.Space, cell, v.Ptr(), a.Type.Iface.Size)
	}
	return native.Store(st.Space, cell, a.Type.Size(), v)
}

// raiseGError stores a host GError exception in the callback's error
// channel. It reports false when err is some other failure or native code
// passed no error location.
func (t *Trampoline) raiseGError(st *marshal.State, err error) bool {
	exc := host.FromError(err)
	if exc.Class != errors.ClassGError {
		return false
	}
	loc := st.Values[t.sig.Error.NativeIndex].Ptr()
	if loc == 0 {
		return false
	}
	ptr, nerr := native.NewError(st.Space, exc.Domain, exc.Code, exc.Message)
	if nerr != nil {
		Logger().Warn("allocating callback error failed", zap.Error(nerr))
		return false
	}
	if werr := st.Space.WriteU32(loc, ptr); werr != nil {
		native.FreeError(st.Space, ptr)
		return false
	}
	return true
}
