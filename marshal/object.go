package marshal

import (
	"go.uber.org/zap"

	"github.com/wippyai/nativecall"
	"github.com/wippyai/nativecall/errors"
	"github.com/wippyai/nativecall/host"
	"github.com/wippyai/nativecall/native"
	"github.com/wippyai/nativecall/typeinfo"
)

// objectRef records a reference taken on behalf of the callee.
type objectRef struct {
	ptr uint32
}

func objectFromHost(st *State, a *Arg, v any) (nativecall.Value, any, error) {
	if v == nil {
		return 0, nil, nil
	}
	inst, ok := v.(*host.Instance)
	if !ok || !inst.IsA(a.Type.Iface) {
		return 0, nil, errors.TypeMismatch(errors.PhaseFromHost, a.path(), host.TypeName(v), a.typeName())
	}
	if inst.Ptr == 0 {
		return 0, nil, errors.NilPointer(errors.PhaseFromHost, a.path(), a.typeName())
	}
	if a.Transfer != typeinfo.TransferEverything {
		return nativecall.PtrValue(inst.Ptr), nil, nil
	}
	if err := native.Ref(st.Space, inst.Ptr); err != nil {
		return 0, nil, prefix(err, a.Name)
	}
	return nativecall.PtrValue(inst.Ptr), &objectRef{ptr: inst.Ptr}, nil
}

func objectCleanup(st *State, _ *Arg, _ nativecall.Value, data any, called bool) {
	if r, ok := data.(*objectRef); ok && r != nil && !called {
		if _, err := native.Unref(st.Space, r.ptr); err != nil {
			Logger().Warn("unref on unwind failed", zap.Uint32("ptr", r.ptr), zap.Error(err))
		}
	}
}

// objectToHost wraps an instance as its most-derived known class. The
// wrapper always holds one reference: adopted under full transfer, taken
// otherwise.
func objectToHost(st *State, a *Arg, v nativecall.Value) (any, error) {
	ptr := v.Ptr()
	if ptr == 0 {
		return nil, nil
	}
	info := a.Type.Iface
	if st.Repo != nil {
		if gt, err := native.InstanceGType(st.Space, ptr); err == nil {
			if d, ok := st.Repo.LookupGType(gt); ok && d.IsA(info) {
				info = d
			}
		}
	}
	if a.Transfer == typeinfo.TransferNothing {
		if err := native.Ref(st.Space, ptr); err != nil {
			return nil, prefix(err, a.Name)
		}
	}
	return &host.Instance{Info: info, Ptr: ptr, Owned: true}, nil
}
