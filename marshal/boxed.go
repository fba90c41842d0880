package marshal

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/nativecall"
	"github.com/wippyai/nativecall/errors"
	"github.com/wippyai/nativecall/host"
	"github.com/wippyai/nativecall/native"
	"github.com/wippyai/nativecall/typeinfo"
)

type fieldData struct {
	arg  *Arg
	data any
	v    nativecall.Value
}

type boxedData struct {
	fields []fieldData
	ptr    uint32
	size   uint32
	align  uint32
	// owned blocks were allocated by the marshaler.
	owned bool
}

func blockAlign(info *typeinfo.InterfaceDesc) uint32 {
	if info.Align == 0 {
		return 1
	}
	return info.Align
}

func boxedFromHost(st *State, a *Arg, v any) (nativecall.Value, any, error) {
	info := a.Type.Iface
	switch x := v.(type) {
	case nil:
		return 0, nil, nil
	case *host.Boxed:
		if x.Info == info {
			return passBoxed(st, a, x)
		}
	}
	if info.Kind == typeinfo.KindUnion {
		return unionFromHost(st, a, v)
	}
	if pairs, ok := host.AsMapping(v); ok {
		return structFromMapping(st, a, pairs)
	}
	return 0, nil, errors.TypeMismatch(errors.PhaseFromHost, a.path(), host.TypeName(v), a.typeName())
}

// passBoxed hands a wrapped block to native code: by address, or as a fresh
// copy when ownership moves to the callee.
func passBoxed(st *State, a *Arg, b *host.Boxed) (nativecall.Value, any, error) {
	info := a.Type.Iface
	if b.Ptr == 0 {
		return 0, nil, errors.NilPointer(errors.PhaseFromHost, a.path(), a.typeName())
	}
	if a.Transfer != typeinfo.TransferEverything || info.Size == 0 {
		return nativecall.PtrValue(b.Ptr), nil, nil
	}
	align := blockAlign(info)
	ptr, err := st.Space.Alloc(info.Size, align)
	if err != nil {
		return 0, nil, prefix(err, a.Name)
	}
	if err := native.Copy(st.Space, ptr, b.Ptr, info.Size); err != nil {
		st.Space.Free(ptr, info.Size, align)
		return 0, nil, prefix(err, a.Name)
	}
	return nativecall.PtrValue(ptr), &boxedData{ptr: ptr, size: info.Size, align: align, owned: true}, nil
}

func newBlock(st *State, info *typeinfo.InterfaceDesc) (*boxedData, error) {
	align := blockAlign(info)
	ptr, err := native.AllocZeroed(st.Space, info.Size, align)
	if err != nil {
		return nil, err
	}
	return &boxedData{ptr: ptr, size: info.Size, align: align, owned: true}, nil
}

func structFromMapping(st *State, a *Arg, pairs []host.Pair) (nativecall.Value, any, error) {
	info := a.Type.Iface
	d, err := newBlock(st, info)
	if err != nil {
		return 0, nil, prefix(err, a.Name)
	}
	fail := func(err error) (nativecall.Value, any, error) {
		releaseBoxed(st, a, d, false)
		return 0, nil, prefix(err, a.Name)
	}
	for _, p := range pairs {
		name, ok := p.Key.(string)
		if !ok {
			return fail(errors.TypeMismatch(errors.PhaseFromHost, nil, host.TypeName(p.Key), "field name"))
		}
		idx, ok := info.FieldIndex(name)
		if !ok {
			return fail(errors.InvalidValue(errors.PhaseFromHost, nil, name,
				fmt.Sprintf("%s has no field %q", info.QualifiedName(), name)))
		}
		fa := a.Members.Args[idx]
		if fa == nil {
			return fail(errors.Unsupported(errors.PhaseFromHost,
				fmt.Sprintf("setting field %q of %s", name, info.QualifiedName())))
		}
		if err := storeField(st, d, fa, d.ptr+info.Fields[idx].Offset, p.Value); err != nil {
			return fail(err)
		}
	}
	return nativecall.PtrValue(d.ptr), d, nil
}

// storeField marshals v into the field at addr. On success the field's
// cleanup data is recorded in d; on failure nothing is left allocated.
func storeField(st *State, d *boxedData, fa *Arg, addr uint32, v any) error {
	fv, fd, err := fa.FromHost(st, fa, v)
	if err != nil {
		return prefix(err, fa.Name)
	}
	if fa.Type.IsInlineAggregate() {
		if fv.Ptr() == 0 {
			return nil
		}
		if err := native.Copy(st.Space, addr, fv.Ptr(), fa.Type.Size()); err != nil {
			fa.cleanup(st, fv, fd, false)
			return prefix(err, fa.Name)
		}
		// A nested block built from a mapping hands its own fields to the
		// outer block; only its storage is released here.
		if nd, ok := fd.(*boxedData); ok && nd != nil {
			d.fields = append(d.fields, nd.fields...)
			if nd.owned {
				st.Space.Free(nd.ptr, nd.size, nd.align)
			}
		}
		return nil
	}
	if err := native.Store(st.Space, addr, fa.Type.Size(), fv); err != nil {
		fa.cleanup(st, fv, fd, false)
		return prefix(err, fa.Name)
	}
	d.fields = append(d.fields, fieldData{arg: fa, data: fd, v: fv})
	return nil
}

// unionFromHost tries each member in declaration order and keeps the first
// one that accepts v. Discriminated unions record the member index.
func unionFromHost(st *State, a *Arg, v any) (nativecall.Value, any, error) {
	info := a.Type.Iface
	d, err := newBlock(st, info)
	if err != nil {
		return 0, nil, prefix(err, a.Name)
	}
	for i, fa := range a.Members.Args {
		if fa == nil {
			continue
		}
		if err := storeField(st, d, fa, d.ptr+info.Fields[i].Offset, v); err != nil {
			Logger().Debug("union member rejected value",
				zap.String("union", info.QualifiedName()),
				zap.String("member", fa.Name),
				zap.Error(err))
			continue
		}
		if info.Discriminated {
			tag := info.DiscriminatorTag
			if err := native.Store(st.Space, d.ptr+info.DiscriminatorOffset, tag.Size(), intValue(tag, int64(i))); err != nil {
				releaseBoxed(st, a, d, false)
				return 0, nil, prefix(err, a.Name)
			}
		}
		return nativecall.PtrValue(d.ptr), d, nil
	}
	st.Space.Free(d.ptr, d.size, d.align)
	return 0, nil, errors.New(errors.PhaseFromHost, errors.KindTypeMismatch).
		Path(a.path()...).
		HostType(host.TypeName(v)).
		NativeType(a.typeName()).
		Detail("no member of the union accepts the value").
		Build()
}

func releaseBoxed(st *State, a *Arg, d *boxedData, called bool) {
	for _, f := range d.fields {
		f.arg.cleanup(st, f.v, f.data, called)
	}
	if d.owned && (!called || a.Transfer == typeinfo.TransferNothing) {
		st.Space.Free(d.ptr, d.size, d.align)
	}
}

func boxedCleanup(st *State, a *Arg, _ nativecall.Value, data any, called bool) {
	if d, ok := data.(*boxedData); ok && d != nil {
		releaseBoxed(st, a, d, called)
	}
}

// boxedToHost wraps native struct memory. Memory the callee keeps, and
// caller-allocated storage, is copied into a block the wrapper owns.
func boxedToHost(st *State, a *Arg, v nativecall.Value) (any, error) {
	ptr := v.Ptr()
	if ptr == 0 {
		return nil, nil
	}
	info := a.Type.Iface
	if info.Size == 0 {
		return &host.Boxed{Info: info, Ptr: ptr, Owned: a.Transfer == typeinfo.TransferEverything}, nil
	}
	if a.Transfer == typeinfo.TransferEverything && !a.CallerAllocates {
		return &host.Boxed{Info: info, Ptr: ptr, Owned: true}, nil
	}
	b, err := host.NewBoxed(st.Space, info)
	if err != nil {
		return nil, prefix(err, a.Name)
	}
	if err := native.Copy(st.Space, b.Ptr, ptr, info.Size); err != nil {
		b.Release(st.Space)
		return nil, prefix(err, a.Name)
	}
	return b, nil
}
