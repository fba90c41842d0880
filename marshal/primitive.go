package marshal

import (
	"math"
	"unicode/utf8"

	"github.com/wippyai/nativecall"
	"github.com/wippyai/nativecall/errors"
	"github.com/wippyai/nativecall/host"
	"github.com/wippyai/nativecall/typeinfo"
)

type intRange struct {
	lo int64
	hi uint64
}

var intRanges = map[typeinfo.Tag]intRange{
	typeinfo.TagInt8:   {math.MinInt8, math.MaxInt8},
	typeinfo.TagUint8:  {0, math.MaxUint8},
	typeinfo.TagInt16:  {math.MinInt16, math.MaxInt16},
	typeinfo.TagUint16: {0, math.MaxUint16},
	typeinfo.TagInt32:  {math.MinInt32, math.MaxInt32},
	typeinfo.TagUint32: {0, math.MaxUint32},
	typeinfo.TagInt64:  {math.MinInt64, math.MaxInt64},
	typeinfo.TagUint64: {0, math.MaxUint64},
	typeinfo.TagGType:  {0, math.MaxUint32},
}

// hostInt is a host integer that fits in 64 bits, signed or not.
type hostInt struct {
	n        int64
	u        uint64
	unsigned bool
}

// toHostInt accepts every Go integer kind and integral floats. NaN,
// infinities and magnitudes beyond 64 bits overflow; fractions and
// booleans are type errors.
func toHostInt(a *Arg, v any) (hostInt, error) {
	switch x := v.(type) {
	case int:
		return hostInt{n: int64(x)}, nil
	case int8:
		return hostInt{n: int64(x)}, nil
	case int16:
		return hostInt{n: int64(x)}, nil
	case int32:
		return hostInt{n: int64(x)}, nil
	case int64:
		return hostInt{n: x}, nil
	case uint:
		return hostInt{u: uint64(x), unsigned: true}, nil
	case uint8:
		return hostInt{u: uint64(x), unsigned: true}, nil
	case uint16:
		return hostInt{u: uint64(x), unsigned: true}, nil
	case uint32:
		return hostInt{u: uint64(x), unsigned: true}, nil
	case uint64:
		return hostInt{u: x, unsigned: true}, nil
	case uintptr:
		return hostInt{u: uint64(x), unsigned: true}, nil
	case host.Enum:
		return hostInt{n: x.Value}, nil
	case float32:
		return floatToHostInt(a, float64(x))
	case float64:
		return floatToHostInt(a, x)
	}
	return hostInt{}, errors.TypeMismatch(errors.PhaseFromHost, a.path(), host.TypeName(v), a.typeName())
}

func floatToHostInt(a *Arg, f float64) (hostInt, error) {
	switch {
	case math.IsNaN(f) || math.IsInf(f, 0):
		return hostInt{}, errors.Overflow(errors.PhaseFromHost, a.path(), f, a.typeName())
	case f != math.Trunc(f):
		return hostInt{}, errors.New(errors.PhaseFromHost, errors.KindTypeMismatch).
			Path(a.path()...).
			HostType("float64").
			NativeType(a.typeName()).
			Value(f).
			Detail("%v is not an integer", f).
			Build()
	case f >= 0x1p64 || f < -0x1p63:
		return hostInt{}, errors.Overflow(errors.PhaseFromHost, a.path(), f, a.typeName())
	case f >= 0x1p63:
		return hostInt{u: uint64(f), unsigned: true}, nil
	}
	return hostInt{n: int64(f)}, nil
}

// checkRange fits h into tag, returning the native value.
func checkRange(a *Arg, tag typeinfo.Tag, h hostInt, v any) (nativecall.Value, error) {
	r, ok := intRanges[tag]
	if !ok {
		return 0, errors.Internal(errors.PhaseFromHost, a.path(), "not an integer tag: "+tag.String())
	}
	rangeErr := func() error {
		return errors.OutOfRange(errors.PhaseFromHost, a.path(), v, tag.String(), r.lo, r.hi)
	}
	if tag.IsSigned() {
		n := h.n
		if h.unsigned {
			if h.u > r.hi {
				return 0, rangeErr()
			}
			n = int64(h.u)
		}
		if n < r.lo || (n > 0 && uint64(n) > r.hi) {
			return 0, rangeErr()
		}
		return intValue(tag, n), nil
	}
	u := h.u
	if !h.unsigned {
		if h.n < 0 {
			return 0, rangeErr()
		}
		u = uint64(h.n)
	}
	if u > r.hi {
		return 0, rangeErr()
	}
	return nativecall.Uint64Value(u), nil
}

// intValue encodes n in the slot format of tag.
func intValue(tag typeinfo.Tag, n int64) nativecall.Value {
	switch tag {
	case typeinfo.TagInt8:
		return nativecall.Int8Value(int8(n))
	case typeinfo.TagUint8:
		return nativecall.Uint8Value(uint8(n))
	case typeinfo.TagInt16:
		return nativecall.Int16Value(int16(n))
	case typeinfo.TagUint16:
		return nativecall.Uint16Value(uint16(n))
	case typeinfo.TagInt32:
		return nativecall.Int32Value(int32(n))
	case typeinfo.TagUint32, typeinfo.TagGType:
		return nativecall.Uint32Value(uint32(n))
	}
	return nativecall.Int64Value(n)
}

// intOf decodes a slot of an integer tag, sign-extending signed tags.
func intOf(tag typeinfo.Tag, v nativecall.Value) int64 {
	switch tag {
	case typeinfo.TagInt8:
		return int64(v.Int8())
	case typeinfo.TagUint8:
		return int64(v.Uint8())
	case typeinfo.TagInt16:
		return int64(v.Int16())
	case typeinfo.TagUint16:
		return int64(v.Uint16())
	case typeinfo.TagInt32:
		return int64(v.Int32())
	case typeinfo.TagUint32, typeinfo.TagGType:
		return int64(v.Uint32())
	}
	return v.Int64()
}

func integerFromHost(_ *State, a *Arg, v any) (nativecall.Value, any, error) {
	if _, ok := v.(bool); ok {
		return 0, nil, errors.TypeMismatch(errors.PhaseFromHost, a.path(), "bool", a.typeName())
	}
	h, err := toHostInt(a, v)
	if err != nil {
		return 0, nil, err
	}
	nv, err := checkRange(a, a.Type.Tag, h, v)
	return nv, nil, err
}

func integerToHost(_ *State, a *Arg, v nativecall.Value) (any, error) {
	if a.Type.Tag == typeinfo.TagUint64 {
		return v.Uint64(), nil
	}
	return intOf(a.Type.Tag, v), nil
}

func toFloat(a *Arg, v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case bool:
		return 0, errors.TypeMismatch(errors.PhaseFromHost, a.path(), "bool", a.typeName())
	}
	h, err := toHostInt(a, v)
	if err != nil {
		return 0, err
	}
	if h.unsigned {
		return float64(h.u), nil
	}
	return float64(h.n), nil
}

func floatFromHost(_ *State, a *Arg, v any) (nativecall.Value, any, error) {
	f, err := toFloat(a, v)
	if err != nil {
		return 0, nil, err
	}
	if a.Type.Tag == typeinfo.TagDouble {
		return nativecall.Float64Value(f), nil, nil
	}
	if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
		return 0, nil, errors.Overflow(errors.PhaseFromHost, a.path(), f, a.typeName())
	}
	return nativecall.Float32Value(float32(f)), nil, nil
}

func floatToHost(_ *State, a *Arg, v nativecall.Value) (any, error) {
	if a.Type.Tag == typeinfo.TagDouble {
		return v.Float64(), nil
	}
	return float64(v.Float32()), nil
}

func booleanFromHost(_ *State, a *Arg, v any) (nativecall.Value, any, error) {
	if b, ok := v.(bool); ok {
		return nativecall.BoolValue(b), nil, nil
	}
	h, err := toHostInt(a, v)
	if err != nil {
		return 0, nil, err
	}
	return nativecall.BoolValue(h.n != 0 || h.u != 0), nil, nil
}

func booleanToHost(_ *State, _ *Arg, v nativecall.Value) (any, error) {
	return v.Bool(), nil
}

func gtypeFromHost(_ *State, a *Arg, v any) (nativecall.Value, any, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil, nil
	case *typeinfo.InterfaceDesc:
		return nativecall.Uint32Value(x.GType), nil, nil
	case bool:
		return 0, nil, errors.TypeMismatch(errors.PhaseFromHost, a.path(), "bool", a.typeName())
	}
	h, err := toHostInt(a, v)
	if err != nil {
		return 0, nil, err
	}
	nv, err := checkRange(a, typeinfo.TagGType, h, v)
	return nv, nil, err
}

func gtypeToHost(_ *State, _ *Arg, v nativecall.Value) (any, error) {
	return int64(v.Uint32()), nil
}

func unicharFromHost(_ *State, a *Arg, v any) (nativecall.Value, any, error) {
	if s, ok := v.(string); ok {
		switch utf8.RuneCountInString(s) {
		case 0:
			return 0, nil, nil
		case 1:
			r, _ := utf8.DecodeRuneInString(s)
			if r == utf8.RuneError {
				return 0, nil, errors.InvalidUTF8(errors.PhaseFromHost, a.path(), []byte(s))
			}
			return nativecall.Uint32Value(uint32(r)), nil, nil
		}
		return 0, nil, errors.InvalidValue(errors.PhaseFromHost, a.path(), s, "expected a single character")
	}
	if _, ok := v.(bool); ok {
		return 0, nil, errors.TypeMismatch(errors.PhaseFromHost, a.path(), "bool", a.typeName())
	}
	h, err := toHostInt(a, v)
	if err != nil {
		return 0, nil, err
	}
	if h.unsigned || h.n < 0 || h.n > utf8.MaxRune {
		return 0, nil, errors.OutOfRange(errors.PhaseFromHost, a.path(), v, a.typeName(), 0, utf8.MaxRune)
	}
	return nativecall.Uint32Value(uint32(h.n)), nil, nil
}

func unicharToHost(_ *State, a *Arg, v nativecall.Value) (any, error) {
	r := rune(v.Uint32())
	if r == 0 {
		return "", nil
	}
	if !utf8.ValidRune(r) {
		return nil, errors.OutOfRange(errors.PhaseToHost, a.path(), v.Uint32(), a.typeName(), 0, utf8.MaxRune)
	}
	return string(r), nil
}

// pointerFromHost passes opaque pointers through. Wrapped native values
// contribute their address.
func pointerFromHost(_ *State, a *Arg, v any) (nativecall.Value, any, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil, nil
	case host.Pointer:
		return nativecall.PtrValue(uint32(x)), nil, nil
	case *host.Boxed:
		return nativecall.PtrValue(x.Ptr), nil, nil
	case *host.Instance:
		return nativecall.PtrValue(x.Ptr), nil, nil
	case bool:
		return 0, nil, errors.TypeMismatch(errors.PhaseFromHost, a.path(), "bool", a.typeName())
	}
	h, err := toHostInt(a, v)
	if err != nil {
		return 0, nil, err
	}
	nv, err := checkRange(a, typeinfo.TagUint32, h, v)
	return nv, nil, err
}

func pointerToHost(_ *State, _ *Arg, v nativecall.Value) (any, error) {
	if v.Ptr() == 0 {
		return nil, nil
	}
	return host.Pointer(v.Ptr()), nil
}

func voidFromHost(_ *State, _ *Arg, _ any) (nativecall.Value, any, error) {
	return 0, nil, nil
}

func voidToHost(_ *State, _ *Arg, _ nativecall.Value) (any, error) {
	return nil, nil
}
