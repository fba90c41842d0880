package marshal

import (
	"math"

	"github.com/wippyai/nativecall"
	"github.com/wippyai/nativecall/errors"
	"github.com/wippyai/nativecall/host"
	"github.com/wippyai/nativecall/typeinfo"
)

// enumFromHost accepts a declared member value, or any value that fits the
// storage for flags; zero is always a valid flags value.
func enumFromHost(_ *State, a *Arg, v any) (nativecall.Value, any, error) {
	info := a.Type.Iface
	if e, ok := v.(host.Enum); ok && e.Info != nil && e.Info != info {
		return 0, nil, errors.TypeMismatch(errors.PhaseFromHost, a.path(), host.TypeName(v), a.typeName())
	}
	if _, ok := v.(bool); ok || v == nil {
		return 0, nil, errors.TypeMismatch(errors.PhaseFromHost, a.path(), host.TypeName(v), a.typeName())
	}
	h, err := toHostInt(a, v)
	if err != nil {
		return 0, nil, err
	}
	if info.Kind == typeinfo.KindEnum {
		n := h.n
		if h.unsigned {
			if h.u > math.MaxInt64 {
				return 0, nil, errors.InvalidEnum(errors.PhaseFromHost, a.path(), v, info.QualifiedName())
			}
			n = int64(h.u)
		}
		if !info.HasMember(n) {
			return 0, nil, errors.InvalidEnum(errors.PhaseFromHost, a.path(), v, info.QualifiedName())
		}
	}
	nv, err := checkRange(a, info.Storage(), h, v)
	return nv, nil, err
}

func enumToHost(_ *State, a *Arg, v nativecall.Value) (any, error) {
	info := a.Type.Iface
	return host.Enum{Info: info, Value: intOf(info.Storage(), v)}, nil
}
