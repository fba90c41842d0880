package marshal

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/wippyai/nativecall/typeinfo"
)

// Registry publishes Callables keyed by their metadata. Concurrent requests
// for the same callable converge on one build; failed builds are not cached.
type Registry struct {
	caches sync.Map // *typeinfo.CallableInfo -> *Callable
	group  singleflight.Group
}

var defaultRegistry = NewRegistry()

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

// Get returns the published Callable for info, building it on first use.
func (r *Registry) Get(info *typeinfo.CallableInfo) (*Callable, error) {
	if info == nil {
		return Build(nil)
	}
	if c, ok := r.caches.Load(info); ok {
		return c.(*Callable), nil
	}
	v, err, shared := r.group.Do(fmt.Sprintf("%p", info), func() (any, error) {
		if c, ok := r.caches.Load(info); ok {
			return c, nil
		}
		c, err := Build(info)
		if err != nil {
			return nil, err
		}
		actual, _ := r.caches.LoadOrStore(info, c)
		return actual, nil
	})
	if err != nil {
		Logger().Debug("callable build failed", zap.String("callable", info.QualifiedName()), zap.Error(err))
		return nil, err
	}
	if shared {
		Logger().Debug("callable build shared", zap.String("callable", info.QualifiedName()))
	}
	return v.(*Callable), nil
}

// Len returns the number of published callables.
func (r *Registry) Len() int {
	n := 0
	r.caches.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
