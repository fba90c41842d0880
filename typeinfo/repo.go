package typeinfo

import (
	"sync"

	"github.com/wippyai/nativecall/errors"
)

// Repository is the metadata store callables and types are resolved from.
type Repository interface {
	LookupCallable(name string) (*CallableInfo, bool)
	LookupInterface(name string) (*InterfaceDesc, bool)
	LookupGType(gtype uint32) (*InterfaceDesc, bool)
}

// Repo is an in-memory Repository keyed by qualified name.
type Repo struct {
	callables map[string]*CallableInfo
	ifaces    map[string]*InterfaceDesc
	gtypes    map[uint32]*InterfaceDesc
	mu        sync.RWMutex
}

// NewRepo creates an empty repository.
func NewRepo() *Repo {
	return &Repo{
		callables: make(map[string]*CallableInfo),
		ifaces:    make(map[string]*InterfaceDesc),
		gtypes:    make(map[uint32]*InterfaceDesc),
	}
}

// AddCallable registers c under its qualified name.
func (r *Repo) AddCallable(c *CallableInfo) error {
	name := c.QualifiedName()
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.callables[name]; exists {
		return errors.Registration("callable", name, nil)
	}
	r.callables[name] = c
	return nil
}

// AddInterface registers d under its qualified name and GType.
func (r *Repo) AddInterface(d *InterfaceDesc) error {
	name := d.QualifiedName()
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ifaces[name]; exists {
		return errors.Registration("interface", name, nil)
	}
	r.ifaces[name] = d
	if d.GType != 0 {
		r.gtypes[d.GType] = d
	}
	return nil
}

// LookupCallable returns the callable registered under name.
func (r *Repo) LookupCallable(name string) (*CallableInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.callables[name]
	return c, ok
}

// LookupInterface returns the interface registered under name.
func (r *Repo) LookupInterface(name string) (*InterfaceDesc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.ifaces[name]
	return d, ok
}

// LookupGType returns the interface registered for gtype.
func (r *Repo) LookupGType(gtype uint32) (*InterfaceDesc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.gtypes[gtype]
	return d, ok
}
