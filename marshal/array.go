package marshal

import (
	"fmt"
	"math"

	"github.com/wippyai/nativecall"
	"github.com/wippyai/nativecall/errors"
	"github.com/wippyai/nativecall/host"
	"github.com/wippyai/nativecall/native"
	"github.com/wippyai/nativecall/typeinfo"
)

// maxScan bounds the search for an array's zero terminator.
const maxScan = 1 << 24

type itemData struct {
	data any
	v    nativecall.Value
}

type arrayData struct {
	items []itemData
	data  uint32
	hdr   uint32
	count uint32
}

// bindArray resolves the length mode. A linked length argument wins over a
// fixed size, which wins over a zero terminator; GArrays fall back to the
// length in their header.
func (b *builder) bindArray(a *Arg) error {
	t := a.Type
	switch t.ArrayType {
	case typeinfo.ArrayPtrArray, typeinfo.ArrayByteArray:
		return errors.Unsupported(errors.PhaseBuild, fmt.Sprintf("%s marshaling", t.ArrayType)).WithPath(a.path()...)
	}
	elem, err := b.sub(a, t.Elem)
	if err != nil {
		return err
	}
	a.Elem = elem
	a.ElemSize = elem.Type.Size()
	a.ElemAlign = elem.Type.Align()
	if a.ElemSize == 0 {
		return errors.Internal(errors.PhaseBuild, a.path(), "array of void")
	}
	a.FixedSize, _ = t.ArrayFixedSize()
	a.ZeroTerminated = t.IsZeroTerminated() && t.ArrayType == typeinfo.ArrayC

	_, linked := t.ArrayLengthIndex()
	switch {
	case linked:
		a.Length = LengthArg
	case a.FixedSize > 0:
		a.Length = LengthFixed
	case a.ZeroTerminated:
		a.Length = LengthZeroTerminated
	case t.ArrayType == typeinfo.ArrayGArray:
		a.Length = LengthHeader
	default:
		return errors.Internal(errors.PhaseBuild, a.path(), "C array has no length argument, fixed size or terminator")
	}
	a.FromHost, a.ToHost, a.FromHostCleanup = arrayFromHost, arrayToHost, arrayCleanup
	return nil
}

func (a *Arg) isGArray() bool {
	return a.Type.ArrayType == typeinfo.ArrayGArray
}

func (a *Arg) setLength(st *State, n int) error {
	if a.LengthArg == nil {
		return nil
	}
	l := a.LengthArg
	v, err := checkRange(l, l.Type.Tag, hostInt{n: int64(n)}, n)
	if err != nil {
		return err
	}
	return st.SetSlot(l, v)
}

func hostItems(a *Arg, v any) ([]any, error) {
	if items, ok := host.AsSequence(v); ok {
		return items, nil
	}
	if s, ok := v.(string); ok {
		switch a.Elem.Type.Tag {
		case typeinfo.TagUint8:
			items := make([]any, len(s))
			for i := 0; i < len(s); i++ {
				items[i] = s[i]
			}
			return items, nil
		case typeinfo.TagInt8:
			items := make([]any, len(s))
			for i := 0; i < len(s); i++ {
				items[i] = int8(s[i])
			}
			return items, nil
		}
	}
	return nil, errors.TypeMismatch(errors.PhaseFromHost, a.path(), host.TypeName(v), a.typeName())
}

func arrayFromHost(st *State, a *Arg, v any) (nativecall.Value, any, error) {
	if v == nil {
		return 0, nil, a.setLength(st, 0)
	}
	items, err := hostItems(a, v)
	if err != nil {
		return 0, nil, err
	}
	n := len(items)
	if a.Length == LengthFixed && n != a.FixedSize {
		return 0, nil, errors.InvalidValue(errors.PhaseFromHost, a.path(), n,
			fmt.Sprintf("expected %d items, got %d", a.FixedSize, n))
	}
	if n == 0 && !a.isGArray() && !a.ZeroTerminated {
		return 0, nil, a.setLength(st, 0)
	}

	count := uint32(n)
	if a.ZeroTerminated {
		count++
	}
	size, ok := native.MulSize(a.ElemSize, count)
	if !ok {
		return 0, nil, errors.AllocationFailed(errors.PhaseFromHost, a.ElemSize, a.ElemAlign).WithPath(a.path()...)
	}
	d := &arrayData{count: count, items: make([]itemData, 0, n)}
	if a.isGArray() {
		d.hdr, d.data, err = native.NewGArray(st.Space, a.ElemSize, a.ElemAlign, count)
	} else {
		d.data, err = native.AllocZeroed(st.Space, size, a.ElemAlign)
	}
	if err != nil {
		return 0, nil, prefix(err, a.Name)
	}

	for i, item := range items {
		if err := a.storeItem(st, d, d.data+uint32(i)*a.ElemSize, item); err != nil {
			a.releaseArray(st, d, false)
			return 0, nil, prefix(err, a.Name, fmt.Sprintf("[%d]", i))
		}
	}
	if err := a.setLength(st, n); err != nil {
		a.releaseArray(st, d, false)
		return 0, nil, err
	}
	if d.hdr != 0 {
		return nativecall.PtrValue(d.hdr), d, nil
	}
	return nativecall.PtrValue(d.data), d, nil
}

func (a *Arg) storeItem(st *State, d *arrayData, addr uint32, item any) error {
	if a.Elem.Type.IsInlineAggregate() {
		info := a.Elem.Type.Iface
		b, ok := item.(*host.Boxed)
		if !ok || b.Info != info {
			return errors.TypeMismatch(errors.PhaseFromHost, nil, host.TypeName(item), info.QualifiedName())
		}
		if b.Ptr == 0 {
			return errors.NilPointer(errors.PhaseFromHost, nil, info.QualifiedName())
		}
		return native.Copy(st.Space, addr, b.Ptr, a.ElemSize)
	}
	ev, ed, err := a.Elem.FromHost(st, a.Elem, item)
	if err != nil {
		return err
	}
	if err := native.Store(st.Space, addr, a.ElemSize, ev); err != nil {
		a.Elem.cleanup(st, ev, ed, false)
		return err
	}
	d.items = append(d.items, itemData{v: ev, data: ed})
	return nil
}

func (a *Arg) releaseArray(st *State, d *arrayData, called bool) {
	for _, it := range d.items {
		a.Elem.cleanup(st, it.v, it.data, called)
	}
	if called && a.Transfer != typeinfo.TransferNothing {
		return
	}
	if d.hdr != 0 {
		native.FreeGArray(st.Space, d.hdr, a.ElemAlign, true)
		return
	}
	if d.data != 0 {
		st.Space.Free(d.data, a.ElemSize*d.count, a.ElemAlign)
	}
}

func arrayCleanup(st *State, a *Arg, _ nativecall.Value, data any, called bool) {
	if d, ok := data.(*arrayData); ok && d != nil {
		a.releaseArray(st, d, called)
	}
}

// extent returns the first element address and the element count of the
// array at ptr.
func (a *Arg) extent(st *State, ptr uint32) (data, n uint32, err error) {
	data = ptr
	var hdrLen uint32
	if a.isGArray() {
		if data, hdrLen, _, err = native.ReadGArray(st.Space, ptr); err != nil {
			return 0, 0, err
		}
	}
	switch a.Length {
	case LengthArg:
		lv, err := st.Slot(a.LengthArg)
		if err != nil {
			return 0, 0, err
		}
		l := intOf(a.LengthArg.Type.Tag, lv)
		if l < 0 || l > math.MaxUint32 {
			return 0, 0, errors.InvalidValue(errors.PhaseToHost, a.path(), l, "invalid array length")
		}
		return data, uint32(l), nil
	case LengthFixed:
		return data, uint32(a.FixedSize), nil
	case LengthZeroTerminated:
		n, err := a.scanTerminator(st, data)
		return data, n, err
	case LengthHeader:
		return data, hdrLen, nil
	}
	return 0, 0, errors.Internal(errors.PhaseToHost, a.path(), "array length mode not set")
}

func (a *Arg) scanTerminator(st *State, data uint32) (uint32, error) {
	if data == 0 {
		return 0, nil
	}
	for i := uint32(0); i < maxScan; i++ {
		b, err := st.Space.Read(data+i*a.ElemSize, a.ElemSize)
		if err != nil {
			return 0, err
		}
		if allZero(b) {
			return i, nil
		}
	}
	return 0, errors.Internal(errors.PhaseToHost, a.path(), "array terminator not found")
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

func arrayToHost(st *State, a *Arg, v nativecall.Value) (any, error) {
	ptr := v.Ptr()
	if ptr == 0 {
		if a.MayBeNull {
			return nil, nil
		}
		return []any{}, nil
	}
	data, n, err := a.extent(st, ptr)
	if err != nil {
		return nil, prefix(err, a.Name)
	}
	out := make([]any, 0, n)
	for i := uint32(0); i < n; i++ {
		var item any
		item, err = a.loadItem(st, data+i*a.ElemSize)
		if err != nil {
			err = prefix(err, a.Name, fmt.Sprintf("[%d]", i))
			break
		}
		out = append(out, item)
	}
	if a.Transfer != typeinfo.TransferNothing && !a.CallerAllocates {
		if a.isGArray() {
			native.FreeGArray(st.Space, ptr, a.ElemAlign, true)
		} else {
			count := n
			if a.ZeroTerminated {
				count++
			}
			st.Space.Free(data, a.ElemSize*count, a.ElemAlign)
		}
	}
	if err != nil {
		ReleaseHostValue(st.Space, out)
		return nil, err
	}
	return out, nil
}

func (a *Arg) loadItem(st *State, addr uint32) (any, error) {
	if a.Elem.Type.IsInlineAggregate() {
		b, err := host.NewBoxed(st.Space, a.Elem.Type.Iface)
		if err != nil {
			return nil, err
		}
		if err := native.Copy(st.Space, b.Ptr, addr, a.ElemSize); err != nil {
			b.Release(st.Space)
			return nil, err
		}
		return b, nil
	}
	ev, err := native.Load(st.Space, addr, a.ElemSize)
	if err != nil {
		return nil, err
	}
	return a.Elem.ToHost(st, a.Elem, ev)
}

// ReleaseHostValue drops the native resources held by owned wrappers in v,
// descending into sequences and mappings.
func ReleaseHostValue(s nativecall.Space, v any) {
	switch x := v.(type) {
	case *host.Boxed:
		x.Release(s)
	case *host.Instance:
		_ = x.Release(s)
	case []any:
		for _, item := range x {
			ReleaseHostValue(s, item)
		}
	case map[any]any:
		for k, item := range x {
			ReleaseHostValue(s, k)
			ReleaseHostValue(s, item)
		}
	}
}
