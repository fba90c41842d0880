package invoke

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/nativecall"
	"github.com/wippyai/nativecall/closure"
	"github.com/wippyai/nativecall/errors"
	"github.com/wippyai/nativecall/host"
	"github.com/wippyai/nativecall/marshal"
	"github.com/wippyai/nativecall/typeinfo"
)

// Config configures an Invoker.
type Config struct {
	// Registry publishes callable caches. Nil uses marshal.Default().
	Registry *marshal.Registry
	// Bridge builds callback trampolines. Nil creates a bridge over the
	// invoker's address space.
	Bridge *closure.Bridge
	// Logger overrides the package logger for this invoker.
	Logger *zap.Logger
}

// Invoker calls native functions in one address space.
type Invoker struct {
	space    nativecall.Space
	repo     typeinfo.Repository
	registry *marshal.Registry
	bridge   *closure.Bridge
	log      *zap.Logger
}

// New creates an invoker. A nil config uses defaults.
func New(s nativecall.Space, repo typeinfo.Repository, cfg *Config) *Invoker {
	if cfg == nil {
		cfg = &Config{}
	}
	inv := &Invoker{
		space:    s,
		repo:     repo,
		registry: cfg.Registry,
		bridge:   cfg.Bridge,
		log:      cfg.Logger,
	}
	if inv.registry == nil {
		inv.registry = marshal.Default()
	}
	if inv.bridge == nil {
		inv.bridge = closure.NewBridge(s, &closure.Config{Registry: inv.registry, Repo: repo})
	}
	if inv.log == nil {
		inv.log = Logger()
	}
	return inv
}

// Bridge returns the callback bridge used for callback arguments.
func (inv *Invoker) Bridge() *closure.Bridge {
	return inv.bridge
}

// Space returns the address space calls run against.
func (inv *Invoker) Space() nativecall.Space {
	return inv.space
}

// Invoke resolves a callable by qualified name and calls it.
func (inv *Invoker) Invoke(ctx context.Context, name string, receiver any, args ...any) (any, error) {
	if inv.repo == nil {
		return nil, host.FromError(errors.Internal(errors.PhaseInvoke, nil, "invoker has no repository"))
	}
	info, ok := inv.repo.LookupCallable(name)
	if !ok {
		return nil, host.FromError(errors.NotFound(errors.PhaseInvoke, "callable", name))
	}
	return inv.Call(ctx, info, receiver, args...)
}

// Call invokes the callable described by info. Methods take their
// receiver separately from args; receiver is ignored for other callables.
func (inv *Invoker) Call(ctx context.Context, info *typeinfo.CallableInfo, receiver any, args ...any) (any, error) {
	c, err := inv.registry.Get(info)
	if err != nil {
		return nil, host.FromError(err)
	}
	out, err := inv.call(ctx, c, receiver, args)
	if err != nil {
		inv.log.Debug("call failed", zap.String("callable", c.Name), zap.Error(err))
		return nil, host.FromError(err)
	}
	return out, nil
}

func (inv *Invoker) call(ctx context.Context, c *marshal.Callable, receiver any, args []any) (any, error) {
	symbol := c.Symbol()
	fn, ok := inv.space.Symbol(symbol)
	if symbol == "" || !ok {
		return nil, errors.NotFound(errors.PhaseInvoke, "symbol", symbol)
	}
	if given := len(args); given < c.Required || given > c.HostCount() {
		return nil, errors.Arity(c.Name, c.Required, c.HostCount(), given)
	}

	st := marshal.NewState(ctx, inv.space, c)
	st.Repo = inv.repo
	st.Registry = inv.registry
	st.Closures = inv.bridge

	f := &frame{st: st, c: c}
	defer f.freeCells()
	if err := f.allocCells(); err != nil {
		return nil, prefix(err, c.Name)
	}
	if err := f.marshalIn(receiver, args); err != nil {
		f.cleanup(false)
		return nil, prefix(err, c.Name)
	}

	params := make([]uint64, len(st.Values))
	for i, v := range st.Values {
		params[i] = uint64(v)
	}
	inv.log.Debug("native call", zap.String("callable", c.Name), zap.String("symbol", symbol), zap.Int("params", len(params)))
	results, err := fn.Call(ctx, params...)
	if err != nil {
		f.cleanup(false)
		return nil, errors.Wrap(errors.PhaseInvoke, errors.KindInternal, err, "native call "+symbol+" failed")
	}

	if exc, err := f.nativeError(); exc != nil || err != nil {
		if exc != nil {
			f.discardOuts(results)
		}
		f.cleanup(true)
		if err != nil {
			return nil, err
		}
		return nil, exc
	}

	out, err := f.collect(results)
	f.cleanup(true)
	if err != nil {
		return nil, prefix(err, c.Name)
	}
	return out, nil
}
