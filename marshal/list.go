package marshal

import (
	"fmt"

	"github.com/wippyai/nativecall"
	"github.com/wippyai/nativecall/errors"
	"github.com/wippyai/nativecall/host"
	"github.com/wippyai/nativecall/native"
	"github.com/wippyai/nativecall/typeinfo"
)

type listData struct {
	items []itemData
	head  uint32
}

func (b *builder) bindList(a *Arg) error {
	elem, err := b.sub(a, a.Type.Elem)
	if err != nil {
		return err
	}
	if elem.Type.IsInlineAggregate() {
		return errors.Unsupported(errors.PhaseBuild, "list of structs by value").WithPath(a.path()...)
	}
	a.Elem = elem
	a.FromHost, a.ToHost, a.FromHostCleanup = listFromHost, listToHost, listCleanup
	return nil
}

func listFromHost(st *State, a *Arg, v any) (nativecall.Value, any, error) {
	if v == nil {
		return 0, nil, nil
	}
	items, ok := host.AsSequence(v)
	if !ok {
		return 0, nil, errors.TypeMismatch(errors.PhaseFromHost, a.path(), host.TypeName(v), a.typeName())
	}
	if len(items) == 0 {
		return 0, nil, nil
	}
	d := &listData{items: make([]itemData, 0, len(items))}
	words := make([]uint64, len(items))
	for i, item := range items {
		ev, ed, err := a.Elem.FromHost(st, a.Elem, item)
		if err != nil {
			a.releaseList(st, d, false)
			return 0, nil, prefix(err, a.Name, fmt.Sprintf("[%d]", i))
		}
		d.items = append(d.items, itemData{v: ev, data: ed})
		words[i] = ev.Uint64()
	}
	head, err := native.BuildList(st.Space, words, a.Type.Tag == typeinfo.TagGList)
	if err != nil {
		a.releaseList(st, d, false)
		return 0, nil, prefix(err, a.Name)
	}
	d.head = head
	return nativecall.PtrValue(head), d, nil
}

func (a *Arg) releaseList(st *State, d *listData, called bool) {
	for _, it := range d.items {
		a.Elem.cleanup(st, it.v, it.data, called)
	}
	if !called || a.Transfer == typeinfo.TransferNothing {
		native.FreeListNodes(st.Space, d.head)
	}
}

func listCleanup(st *State, a *Arg, _ nativecall.Value, data any, called bool) {
	if d, ok := data.(*listData); ok && d != nil {
		a.releaseList(st, d, called)
	}
}

func listToHost(st *State, a *Arg, v nativecall.Value) (any, error) {
	head := v.Ptr()
	words, err := native.ListValues(st.Space, head)
	if err != nil {
		return nil, prefix(err, a.Name)
	}
	out := make([]any, 0, len(words))
	for i, w := range words {
		item, err := a.Elem.ToHost(st, a.Elem, nativecall.Value(w))
		if err != nil {
			ReleaseHostValue(st.Space, out)
			if a.Transfer != typeinfo.TransferNothing {
				native.FreeListNodes(st.Space, head)
			}
			return nil, prefix(err, a.Name, fmt.Sprintf("[%d]", i))
		}
		out = append(out, item)
	}
	if a.Transfer != typeinfo.TransferNothing {
		native.FreeListNodes(st.Space, head)
	}
	return out, nil
}
