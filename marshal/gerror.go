package marshal

import (
	"github.com/wippyai/nativecall"
	"github.com/wippyai/nativecall/errors"
	"github.com/wippyai/nativecall/host"
	"github.com/wippyai/nativecall/native"
	"github.com/wippyai/nativecall/typeinfo"
)

// gerrorFromHost only accepts nil; native errors are never built from host
// values passed as arguments.
func gerrorFromHost(_ *State, a *Arg, v any) (nativecall.Value, any, error) {
	if v != nil {
		return 0, nil, errors.TypeMismatch(errors.PhaseFromHost, a.path(), host.TypeName(v), a.typeName())
	}
	return 0, nil, nil
}

func gerrorToHost(st *State, a *Arg, v nativecall.Value) (any, error) {
	ptr := v.Ptr()
	if ptr == 0 {
		return nil, nil
	}
	info, err := native.ReadError(st.Space, ptr)
	if a.Transfer == typeinfo.TransferEverything {
		native.FreeError(st.Space, ptr)
	}
	if err != nil {
		return nil, prefix(err, a.Name)
	}
	return host.NewGError(info.Domain, info.Code, info.Message), nil
}
