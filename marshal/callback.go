package marshal

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/nativecall"
	"github.com/wippyai/nativecall/errors"
	"github.com/wippyai/nativecall/host"
	"github.com/wippyai/nativecall/typeinfo"
)

// Closure is a host function installed in the native function table.
type Closure interface {
	// Ptr is the native function pointer.
	Ptr() uint32
	// Data is the handle passed in the user-data slot.
	Data() uint32
	Release()
}

// ClosureFactory creates the native side of host callbacks.
type ClosureFactory interface {
	NewClosure(ctx context.Context, sig *Callable, fn host.Callable, userData any, hasUserData bool, scope typeinfo.Scope) (Closure, error)
	// DestroyNotify returns the shared destroy-notify function pointer.
	DestroyNotify() (uint32, error)
	// NoopDestroy returns a destroy-notify function that does nothing.
	NoopDestroy() (uint32, error)
}

// AsCallable extracts the function and user data from a host callback value.
func AsCallable(v any) (fn host.Callable, userData any, hasUserData, ok bool) {
	switch x := v.(type) {
	case *host.Callback:
		if x == nil || x.Fn == nil {
			return nil, nil, false, false
		}
		return x.Fn, x.UserData, true, true
	case host.Callable:
		return x, nil, false, true
	case func(context.Context, ...any) (any, error):
		return host.Func(x), nil, false, true
	}
	return nil, nil, false, false
}

// EffectiveScope returns the lifetime of a callback argument. Without a
// declared scope, a callback with a destroy notifier lives until it fires
// and any other lives for the call.
func EffectiveScope(a *Arg) typeinfo.Scope {
	if a.Scope != typeinfo.ScopeNone {
		return a.Scope
	}
	if a.Destroy != nil {
		return typeinfo.ScopeNotified
	}
	return typeinfo.ScopeCall
}

var warnedNoUserData sync.Map

func warnNoUserData(c *Callable) {
	name := "callback"
	if c != nil {
		name = c.Name
	}
	if _, loaded := warnedNoUserData.LoadOrStore(name, struct{}{}); loaded {
		return
	}
	Logger().Warn("callable has a destroy notifier but no user data; callback is never freed",
		zap.String("callable", name))
}

func clearCallbackSlots(st *State, a *Arg) error {
	if a.UserData != nil {
		if err := st.SetSlot(a.UserData, 0); err != nil {
			return err
		}
	}
	if a.Destroy != nil {
		if err := st.SetSlot(a.Destroy, 0); err != nil {
			return err
		}
	}
	return nil
}

func callbackFromHost(st *State, a *Arg, v any) (nativecall.Value, any, error) {
	if v == nil {
		return 0, nil, clearCallbackSlots(st, a)
	}
	fn, userData, hasUserData, ok := AsCallable(v)
	if !ok {
		return 0, nil, errors.TypeMismatch(errors.PhaseFromHost, a.path(), host.TypeName(v), a.typeName())
	}
	if st.Closures == nil {
		return 0, nil, errors.Internal(errors.PhaseFromHost, a.path(), "no callback bridge configured")
	}
	sig, err := st.registry().Get(a.Type.Iface.Signature)
	if err != nil {
		return 0, nil, prefix(err, a.Name)
	}
	cl, err := st.Closures.NewClosure(st.ctx(), sig, fn, userData, hasUserData, EffectiveScope(a))
	if err != nil {
		return 0, nil, prefix(err, a.Name)
	}
	if err := a.setCallbackSlots(st, cl); err != nil {
		cl.Release()
		return 0, nil, prefix(err, a.Name)
	}
	return nativecall.PtrValue(cl.Ptr()), cl, nil
}

func (a *Arg) setCallbackSlots(st *State, cl Closure) error {
	if a.UserData != nil {
		if err := st.SetSlot(a.UserData, nativecall.PtrValue(cl.Data())); err != nil {
			return err
		}
	}
	if a.Destroy == nil {
		return nil
	}
	var (
		fn  uint32
		err error
	)
	if a.UserData == nil {
		warnNoUserData(st.Callable)
		fn, err = st.Closures.NoopDestroy()
	} else {
		fn, err = st.Closures.DestroyNotify()
	}
	if err != nil {
		return err
	}
	return st.SetSlot(a.Destroy, nativecall.PtrValue(fn))
}

// callbackCleanup releases call-scoped closures after the call and every
// closure when the frame is unwound.
func callbackCleanup(_ *State, a *Arg, _ nativecall.Value, data any, called bool) {
	cl, ok := data.(Closure)
	if !ok || cl == nil {
		return
	}
	if !called || EffectiveScope(a) == typeinfo.ScopeCall {
		cl.Release()
	}
}

func callbackToHost(_ *State, a *Arg, _ nativecall.Value) (any, error) {
	return nil, errors.Unsupported(errors.PhaseToHost, "native callback as host value").WithPath(a.path()...)
}
