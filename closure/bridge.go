package closure

import (
	"context"
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

// Config configures a Bridge.
type Config struct {
	// Registry publishes callback signatures. Nil uses marshal.Default().
	Registry *marshal.Registry
	// Repo resolves most-derived classes of objects passed to callbacks.
	Repo typeinfo.Repository
	// OnError receives failures inside trampolines, keyed by the callback
	// signature name.
	OnError func(callable string, err error)
}

// Bridge creates trampolines in one address space and owns their
// lifetimes.
type Bridge struct {
	space    nativecall.Space
	registry *marshal.Registry
	repo     typeinfo.Repository
	onError  func(string, error)
	handles  *resource.Table

	// mu guards the async pending list.
	mu      sync.Mutex
	pending []*Trampoline

	destroyOnce sync.Once
	destroyPtr  uint32
	destroyErr  error
	noopOnce    sync.Once
	noopPtr     uint32
	noopErr     error
}

var _ marshal.ClosureFactory = (*Bridge)(nil)

// NewBridge creates a bridge for s. A nil config uses defaults.
func NewBridge(s nativecall.Space, cfg *Config) *Bridge {
	if cfg == nil {
		cfg = &Config{}
	}
	b := &Bridge{
		space:    s,
		registry: cfg.Registry,
		repo:     cfg.Repo,
		onError:  cfg.OnError,
		handles:  resource.NewTable(),
	}
	if b.registry == nil {
		b.registry = marshal.Default()
	}
	b.handles.Subscribe(resource.ObserverFunc(func(e resource.Event) {
		Logger().Debug("trampoline handle event",
			zap.Uint32("handle", uint32(e.Handle)),
			zap.Stringer("event", e.Type))
	}))
	return b
}

// Space returns the address space trampolines are installed in.
func (b *Bridge) Space() nativecall.Space {
	return b.space
}

// Build wraps fn in a trampoline for the callback signature sig.
func (b *Bridge) Build(ctx context.Context, sig *typeinfo.CallableInfo, fn host.Callable, userData any, scope typeinfo.Scope) (*Trampoline, error) {
	c, err := b.registry.Get(sig)
	if err != nil {
		return nil, err
	}
	return b.newTrampoline(ctx, c, fn, userData, userData != nil, scope)
}

// NewClosure implements marshal.ClosureFactory.
func (b *Bridge) NewClosure(ctx context.Context, sig *marshal.Callable, fn host.Callable, userData any, hasUserData bool, scope typeinfo.Scope) (marshal.Closure, error) {
	t, err := b.newTrampoline(ctx, sig, fn, userData, hasUserData, scope)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (b *Bridge) newTrampoline(_ context.Context, sig *marshal.Callable, fn host.Callable, userData any, hasUserData bool, scope typeinfo.Scope) (*Trampoline, error) {
	if fn == nil {
		return nil, errors.Internal(errors.PhaseCallback, nil, "nil host callable")
	}
	b.drainPending()

	t := &Trampoline{
		bridge:      b,
		sig:         sig,
		fn:          fn,
		userData:    userData,
		hasUserData: hasUserData,
		scope:       scope,
	}
	h, err := b.handles.Insert(t)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseCallback, errors.KindRegistration, err, "register trampoline")
	}
	t.handle = h
	ptr, err := b.space.Install(t)
	if err != nil {
		b.handles.Remove(h)
		return nil, errors.Wrap(errors.PhaseCallback, errors.KindRegistration, err, "install trampoline")
	}
	t.ptr = ptr

	Logger().Debug("trampoline built",
		zap.String("callback", sig.Name),
		zap.Stringer("scope", scope),
		zap.Uint32("ptr", ptr),
		zap.Uint32("handle", uint32(h)))
	return t, nil
}

// drainPending releases async trampolines that have fired.
func (b *Bridge) drainPending() {
	b.mu.Lock()
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()

	for _, t := range pending {
		t.Release()
	}
}

func (b *Bridge) enqueue(t *Trampoline) {
	b.mu.Lock()
	b.pending = append(b.pending, t)
	b.mu.Unlock()
}

// DestroyNotify returns the shared destroy notifier. Native code calls it
// with a trampoline handle to release the trampoline.
func (b *Bridge) DestroyNotify() (uint32, error) {
	b.destroyOnce.Do(func() {
		b.destroyPtr, b.destroyErr = b.space.Install(native.Bind(b.space, b.destroyNotify))
	})
	return b.destroyPtr, b.destroyErr
}

func (b *Bridge) destroyNotify(_ context.Context, _ nativecall.Space, args []uint64) ([]uint64, error) {
	if len(args) == 0 {
		return nil, nil
	}
	h := resource.Handle(uint32(args[0]))
	if _, ok := b.handles.Get(h); !ok {
		Logger().Warn("destroy notify for unknown trampoline", zap.Uint32("handle", uint32(h)))
		return nil, nil
	}
	b.handles.Remove(h)
	return nil, nil
}

// NoopDestroy returns a destroy notifier that ignores its argument.
func (b *Bridge) NoopDestroy() (uint32, error) {
	b.noopOnce.Do(func() {
		b.noopPtr, b.noopErr = b.space.Install(native.Bind(b.space, func(context.Context, nativecall.Space, []uint64) ([]uint64, error) {
			return nil, nil
		}))
	})
	return b.noopPtr, b.noopErr
}

// Lookup returns the trampoline registered under a user-data handle.
func (b *Bridge) Lookup(h uint32) (*Trampoline, bool) {
	v, ok := b.handles.Get(resource.Handle(h))
	if !ok {
		return nil, false
	}
	t, ok := v.(*Trampoline)
	return t, ok
}

// Live returns the number of trampolines not yet released.
func (b *Bridge) Live() int {
	return b.handles.Len()
}

// Pending returns the number of fired async trampolines awaiting release.
func (b *Bridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Close releases every trampoline.
func (b *Bridge) Close() error {
	b.drainPending()
	return b.handles.Close()
}

func (b *Bridge) report(name string, err error) {
	Logger().Error("host callback failed", zap.String("callback", name), zap.Error(err))
	if b.onError != nil {
		b.onError(name, err)
	}
}
