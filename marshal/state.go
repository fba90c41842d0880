package marshal

import (
	"context"

	"github.com/wippyai/nativecall"
	"github.com/wippyai/nativecall/errors"
	"github.com/wippyai/nativecall/native"
	"github.com/wippyai/nativecall/typeinfo"
)

// State is the frame a single call or callback invocation marshals into.
type State struct {
	Ctx      context.Context
	Space    nativecall.Space
	Repo     typeinfo.Repository
	Registry *Registry
	Closures ClosureFactory
	Callable *Callable

	// Values holds one slot per native parameter.
	Values []nativecall.Value
	// Cells holds the address of the storage behind each out and inout
	// parameter, 0 for in parameters.
	Cells []uint32
}

// NewState returns a frame sized for c.
func NewState(ctx context.Context, s nativecall.Space, c *Callable) *State {
	return &State{
		Ctx:      ctx,
		Space:    s,
		Callable: c,
		Registry: Default(),
		Values:   make([]nativecall.Value, c.NativeCount),
		Cells:    make([]uint32, c.NativeCount),
	}
}

// SetSlot stores the value of a child argument: into its cell when the
// child is an out or inout parameter, into the frame otherwise.
func (st *State) SetSlot(a *Arg, v nativecall.Value) error {
	if a.NativeIndex < 0 || a.NativeIndex >= len(st.Values) {
		return errors.Internal(errors.PhaseInvoke, a.path(), "argument has no native slot")
	}
	if a.Direction.IsOut() {
		cell := st.Cells[a.NativeIndex]
		if cell == 0 {
			return errors.NilPointer(errors.PhaseInvoke, a.path(), a.typeName())
		}
		return native.Store(st.Space, cell, a.Type.Size(), v)
	}
	st.Values[a.NativeIndex] = v
	return nil
}

// Slot reads the value of a child argument written by SetSlot or by native
// code.
func (st *State) Slot(a *Arg) (nativecall.Value, error) {
	if a.NativeIndex < 0 || a.NativeIndex >= len(st.Values) {
		return 0, errors.Internal(errors.PhaseInvoke, a.path(), "argument has no native slot")
	}
	if a.Direction.IsOut() {
		cell := st.Cells[a.NativeIndex]
		if cell == 0 {
			return 0, errors.NilPointer(errors.PhaseInvoke, a.path(), a.typeName())
		}
		return native.Load(st.Space, cell, a.Type.Size())
	}
	return st.Values[a.NativeIndex], nil
}

func (st *State) ctx() context.Context {
	if st.Ctx == nil {
		return context.Background()
	}
	return st.Ctx
}

func (st *State) registry() *Registry {
	if st.Registry == nil {
		return Default()
	}
	return st.Registry
}
