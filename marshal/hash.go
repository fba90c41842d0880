package marshal

import (
	"fmt"
	"reflect"

	"github.com/wippyai/nativecall"
	"github.com/wippyai/nativecall/errors"
	"github.com/wippyai/nativecall/host"
	"github.com/wippyai/nativecall/native"
	"github.com/wippyai/nativecall/typeinfo"
)

type hashData struct {
	keys   []itemData
	values []itemData
	table  uint32
}

func (b *builder) bindHash(a *Arg) error {
	key, err := b.sub(a, a.Type.Key)
	if err != nil {
		return err
	}
	value, err := b.sub(a, a.Type.Value)
	if err != nil {
		return err
	}
	if key.Type.IsInlineAggregate() || value.Type.IsInlineAggregate() {
		return errors.Unsupported(errors.PhaseBuild, "hash table of structs by value").WithPath(a.path()...)
	}
	a.Key, a.Value = key, value
	a.FromHost, a.ToHost, a.FromHostCleanup = hashFromHost, hashToHost, hashCleanup
	return nil
}

func (a *Arg) stringKeys() bool {
	switch a.Key.Type.Tag {
	case typeinfo.TagUTF8, typeinfo.TagFilename:
		return true
	}
	return false
}

func hashFromHost(st *State, a *Arg, v any) (nativecall.Value, any, error) {
	if v == nil {
		return 0, nil, nil
	}
	pairs, ok := host.AsMapping(v)
	if !ok {
		return 0, nil, errors.TypeMismatch(errors.PhaseFromHost, a.path(), host.TypeName(v), a.typeName())
	}
	table, err := native.NewHashTable(st.Space)
	if err != nil {
		return 0, nil, prefix(err, a.Name)
	}
	d := &hashData{table: table}
	for _, p := range pairs {
		at := fmt.Sprintf("[%v]", p.Key)
		kv, kd, err := a.Key.FromHost(st, a.Key, p.Key)
		if err != nil {
			a.releaseHash(st, d, false)
			return 0, nil, prefix(err, a.Name, at)
		}
		d.keys = append(d.keys, itemData{v: kv, data: kd})
		vv, vd, err := a.Value.FromHost(st, a.Value, p.Value)
		if err != nil {
			a.releaseHash(st, d, false)
			return 0, nil, prefix(err, a.Name, at)
		}
		d.values = append(d.values, itemData{v: vv, data: vd})
		if _, _, err := native.HashInsert(st.Space, table, kv.Uint64(), vv.Uint64(), a.stringKeys()); err != nil {
			a.releaseHash(st, d, false)
			return 0, nil, prefix(err, a.Name, at)
		}
	}
	return nativecall.PtrValue(table), d, nil
}

func (a *Arg) releaseHash(st *State, d *hashData, called bool) {
	for _, it := range d.keys {
		a.Key.cleanup(st, it.v, it.data, called)
	}
	for _, it := range d.values {
		a.Value.cleanup(st, it.v, it.data, called)
	}
	if !called || a.Transfer == typeinfo.TransferNothing {
		native.FreeHashTable(st.Space, d.table)
	}
}

func hashCleanup(st *State, a *Arg, _ nativecall.Value, data any, called bool) {
	if d, ok := data.(*hashData); ok && d != nil {
		a.releaseHash(st, d, called)
	}
}

func hashToHost(st *State, a *Arg, v nativecall.Value) (any, error) {
	table := v.Ptr()
	if table == 0 {
		if a.MayBeNull {
			return nil, nil
		}
		return map[any]any{}, nil
	}
	entries, err := native.HashEntries(st.Space, table)
	if err != nil {
		return nil, prefix(err, a.Name)
	}
	out := make(map[any]any, len(entries))
	fail := func(err error) (any, error) {
		ReleaseHostValue(st.Space, out)
		if a.Transfer != typeinfo.TransferNothing {
			native.FreeHashTable(st.Space, table)
		}
		return nil, err
	}
	for _, e := range entries {
		k, err := a.Key.ToHost(st, a.Key, nativecall.Value(e.Key))
		if err != nil {
			return fail(prefix(err, a.Name))
		}
		if k != nil && !reflect.TypeOf(k).Comparable() {
			ReleaseHostValue(st.Space, k)
			return fail(errors.TypeMismatch(errors.PhaseToHost, a.path(), host.TypeName(k), "hashable key"))
		}
		val, err := a.Value.ToHost(st, a.Value, nativecall.Value(e.Value))
		if err != nil {
			ReleaseHostValue(st.Space, k)
			return fail(prefix(err, a.Name, fmt.Sprintf("[%v]", k)))
		}
		out[k] = val
	}
	if a.Transfer != typeinfo.TransferNothing {
		native.FreeHashTable(st.Space, table)
	}
	return out, nil
}
