package invoke

import (
	stderrors "errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/nativecall"
	"github.com/wippyai/nativecall/errors"
	"github.com/wippyai/nativecall/host"
	"github.com/wippyai/nativecall/marshal"
	"github.com/wippyai/nativecall/native"
	"github.com/wippyai/nativecall/typeinfo"
)

// slotSize is the size of an out cell for anything not caller-allocated.
const slotSize = 8

type cell struct {
	ptr   uint32
	size  uint32
	align uint32
}

// converted is an input value awaiting cleanup.
type converted struct {
	arg  *marshal.Arg
	data any
	v    nativecall.Value
}

// frame is the bookkeeping of one call.
type frame struct {
	st        *marshal.State
	c         *marshal.Callable
	cells     []cell
	converted []converted
	errCell   uint32
}

func (f *frame) alloc(size, align uint32) (uint32, error) {
	ptr, err := native.AllocZeroed(f.st.Space, size, align)
	if err != nil {
		return 0, err
	}
	f.cells = append(f.cells, cell{ptr: ptr, size: size, align: align})
	return ptr, nil
}

// allocCells provides storage for every out and inout parameter, including
// hidden ones, and for the error channel.
func (f *frame) allocCells() error {
	for _, a := range f.c.Args {
		if !a.Direction.IsOut() {
			continue
		}
		size, align, err := cellSize(a)
		if err != nil {
			return err
		}
		ptr, err := f.alloc(size, align)
		if err != nil {
			return err
		}
		f.st.Cells[a.NativeIndex] = ptr
		f.st.Values[a.NativeIndex] = nativecall.PtrValue(ptr)
	}
	if e := f.c.Error; e != nil {
		ptr, err := f.alloc(typeinfo.PointerSize, typeinfo.PointerSize)
		if err != nil {
			return err
		}
		f.errCell = ptr
		f.st.Values[e.NativeIndex] = nativecall.PtrValue(ptr)
	}
	return nil
}

func cellSize(a *marshal.Arg) (size, align uint32, err error) {
	if !a.CallerAllocates {
		return slotSize, slotSize, nil
	}
	t := a.Type
	switch {
	case t.Tag == typeinfo.TagInterface && t.Iface != nil && t.Iface.Size > 0:
		align = t.Iface.Align
		if align == 0 {
			align = 1
		}
		return t.Iface.Size, align, nil
	case t.Tag == typeinfo.TagArray && a.Length == marshal.LengthFixed:
		size, ok := native.MulSize(a.ElemSize, uint32(a.FixedSize))
		if !ok {
			return 0, 0, errors.AllocationFailed(errors.PhaseInvoke, a.ElemSize, a.ElemAlign)
		}
		return size, a.ElemAlign, nil
	}
	return 0, 0, errors.Unsupported(errors.PhaseInvoke,
		fmt.Sprintf("caller-allocated %s without a known size", t)).WithPath(a.Name)
}

func (f *frame) push(a *marshal.Arg, v nativecall.Value, data any) {
	f.converted = append(f.converted, converted{arg: a, v: v, data: data})
}

// marshalIn converts the receiver and the host arguments. Children are
// filled in by their parents; hidden parameters keep a zero value.
func (f *frame) marshalIn(receiver any, args []any) error {
	st, c := f.st, f.c
	if inst := c.Instance; inst != nil {
		if receiver == nil {
			return errors.New(errors.PhaseInvoke, errors.KindTypeMismatch).
				Path(inst.Name).
				NativeType(inst.Type.String()).
				Detail("%s requires a receiver", c.Name).
				Build()
		}
		v, data, err := inst.FromHost(st, inst, receiver)
		if err != nil {
			return err
		}
		st.Values[inst.NativeIndex] = v
		f.push(inst, v, data)
	}

	for _, a := range c.Args {
		if a.Meta == marshal.MetaChild || a.Skip || !a.Direction.IsIn() {
			continue
		}
		var hv any
		switch {
		case a.HostIndex >= 0 && a.HostIndex < len(args):
			hv = args[a.HostIndex]
		case a.HasDefault && a.Default != nil:
			hv = a.Default
		default:
			continue
		}
		v, data, err := a.FromHost(st, a, hv)
		if err != nil {
			return err
		}
		f.push(a, v, data)
		if a.Direction == typeinfo.DirectionInOut {
			if err := native.Store(st.Space, st.Cells[a.NativeIndex], a.Type.Size(), v); err != nil {
				return err
			}
			continue
		}
		st.Values[a.NativeIndex] = v
	}
	return nil
}

// cleanup releases converted inputs, last first.
func (f *frame) cleanup(called bool) {
	for i := len(f.converted) - 1; i >= 0; i-- {
		cv := f.converted[i]
		if cv.arg.FromHostCleanup != nil {
			cv.arg.FromHostCleanup(f.st, cv.arg, cv.v, cv.data, called)
		}
	}
	f.converted = nil
}

func (f *frame) freeCells() {
	for _, c := range f.cells {
		f.st.Space.Free(c.ptr, c.size, c.align)
	}
	f.cells = nil
}

// nativeError converts an error reported through the error channel.
func (f *frame) nativeError() (*host.Exception, error) {
	if f.errCell == 0 {
		return nil, nil
	}
	ptr, err := f.st.Space.ReadU32(f.errCell)
	if err != nil || ptr == 0 {
		return nil, err
	}
	e := f.c.Error
	v, err := e.ToHost(f.st, e, nativecall.PtrValue(ptr))
	if err != nil {
		return nil, err
	}
	exc, ok := v.(*host.Exception)
	if !ok {
		return nil, errors.Internal(errors.PhaseInvoke, []string{e.Name}, "error channel did not produce an exception")
	}
	return exc, nil
}

// discardOuts releases owned values a callee returned alongside an error.
// Inout cells are left alone: they may still hold the caller's input.
func (f *frame) discardOuts(results []uint64) {
	st := f.st
	for _, a := range f.c.Outs {
		if a.Transfer == typeinfo.TransferNothing || a.CallerAllocates {
			continue
		}
		var v nativecall.Value
		switch {
		case a.IsReturn:
			if len(results) == 0 {
				continue
			}
			v = nativecall.Value(results[0])
		case a.Direction == typeinfo.DirectionOut:
			var err error
			if v, err = native.Load(st.Space, st.Cells[a.NativeIndex], a.Type.Size()); err != nil {
				continue
			}
		default:
			continue
		}
		if v == 0 {
			continue
		}
		hv, err := a.ToHost(st, a, v)
		if err != nil {
			Logger().Warn("releasing out value after native error failed",
				zap.String("callable", f.c.Name), zap.String("arg", a.Name), zap.Error(err))
			continue
		}
		marshal.ReleaseHostValue(st.Space, hv)
	}
}

// collect converts the return value and out parameters.
func (f *frame) collect(results []uint64) (any, error) {
	st := f.st
	var outs []any
	for _, a := range f.c.Outs {
		var (
			v   nativecall.Value
			err error
		)
		switch {
		case a.IsReturn:
			if len(results) == 0 {
				marshal.ReleaseHostValue(st.Space, outs)
				return nil, errors.Internal(errors.PhaseInvoke, []string{a.Name}, "native function returned no value")
			}
			v = nativecall.Value(results[0])
		case a.CallerAllocates:
			v = nativecall.PtrValue(st.Cells[a.NativeIndex])
		default:
			v, err = native.Load(st.Space, st.Cells[a.NativeIndex], a.Type.Size())
		}
		var hv any
		if err == nil {
			hv, err = a.ToHost(st, a, v)
		}
		if err != nil {
			marshal.ReleaseHostValue(st.Space, outs)
			return nil, err
		}
		outs = append(outs, hv)
	}
	switch len(outs) {
	case 0:
		return nil, nil
	case 1:
		return outs[0], nil
	}
	return outs, nil
}

func prefix(err error, parts ...string) error {
	var e *errors.Error
	if !stderrors.As(err, &e) {
		return err
	}
	return e.WithPath(parts...)
}
