package marshal

import (
	"strings"
	"unicode/utf8"

	"github.com/wippyai/nativecall"
	"github.com/wippyai/nativecall/errors"
	"github.com/wippyai/nativecall/host"
	"github.com/wippyai/nativecall/native"
	"github.com/wippyai/nativecall/typeinfo"
)

func stringFromHost(st *State, a *Arg, v any) (nativecall.Value, any, error) {
	var s string
	switch x := v.(type) {
	case nil:
		return 0, nil, nil
	case string:
		s = x
	case []byte:
		if a.Type.Tag != typeinfo.TagFilename {
			return 0, nil, errors.TypeMismatch(errors.PhaseFromHost, a.path(), "[]byte", a.typeName())
		}
		s = string(x)
	default:
		return 0, nil, errors.TypeMismatch(errors.PhaseFromHost, a.path(), host.TypeName(v), a.typeName())
	}
	if a.Type.Tag == typeinfo.TagUTF8 && !utf8.ValidString(s) {
		return 0, nil, errors.InvalidUTF8(errors.PhaseFromHost, a.path(), []byte(s))
	}
	if strings.IndexByte(s, 0) >= 0 {
		return 0, nil, errors.InvalidValue(errors.PhaseFromHost, a.path(), s, "embedded null byte")
	}
	ptr, err := native.NewCString(st.Space, s)
	if err != nil {
		return 0, nil, prefix(err, a.Name)
	}
	return nativecall.PtrValue(ptr), nil, nil
}

func stringCleanup(st *State, a *Arg, v nativecall.Value, _ any, called bool) {
	if !called || a.Transfer == typeinfo.TransferNothing {
		native.FreeCString(st.Space, v.Ptr())
	}
}

func stringToHost(st *State, a *Arg, v nativecall.Value) (any, error) {
	ptr := v.Ptr()
	if ptr == 0 {
		return nil, nil
	}
	s, err := native.ReadCString(st.Space, ptr)
	if a.Transfer == typeinfo.TransferEverything {
		native.FreeCString(st.Space, ptr)
	}
	if err != nil {
		return nil, prefix(err, a.Name)
	}
	if a.Type.Tag == typeinfo.TagUTF8 && !utf8.ValidString(s) {
		return nil, errors.InvalidUTF8(errors.PhaseToHost, a.path(), []byte(s))
	}
	return s, nil
}
