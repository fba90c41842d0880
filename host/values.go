package host

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/wippyai/nativecall"
	"github.com/wippyai/nativecall/native"
	"github.com/wippyai/nativecall/typeinfo"
)

// Pointer is an opaque native address passed through untouched.
type Pointer uint32

// Boxed wraps native struct, boxed and union memory.
type Boxed struct {
	Info *typeinfo.InterfaceDesc
	Ptr  uint32
	// Owned wrappers are responsible for releasing Ptr.
	Owned bool
}

// NewBoxed allocates zeroed storage for info and returns an owning wrapper.
func NewBoxed(s nativecall.Space, info *typeinfo.InterfaceDesc) (*Boxed, error) {
	ptr, err := native.AllocZeroed(s, info.Size, alignOf(info))
	if err != nil {
		return nil, err
	}
	return &Boxed{Info: info, Ptr: ptr, Owned: true}, nil
}

// Release frees owned storage. It is safe to call more than once.
func (b *Boxed) Release(s nativecall.Space) {
	if b == nil || !b.Owned || b.Ptr == 0 {
		return
	}
	s.Free(b.Ptr, b.Info.Size, alignOf(b.Info))
	b.Ptr = 0
	b.Owned = false
}

func (b *Boxed) String() string {
	return fmt.Sprintf("<%s at %#x>", b.Info.QualifiedName(), b.Ptr)
}

func alignOf(info *typeinfo.InterfaceDesc) uint32 {
	if info.Align == 0 {
		return 1
	}
	return info.Align
}

// Instance wraps a reference-counted native object.
type Instance struct {
	Info *typeinfo.InterfaceDesc
	Ptr  uint32
	// Owned wrappers hold one reference.
	Owned bool
}

// IsA reports whether the instance's class is or derives from d.
func (i *Instance) IsA(d *typeinfo.InterfaceDesc) bool {
	return i.Info.IsA(d)
}

// Release drops the wrapper's reference. It is safe to call more than once.
func (i *Instance) Release(s nativecall.Space) error {
	if i == nil || !i.Owned || i.Ptr == 0 {
		return nil
	}
	_, err := native.Unref(s, i.Ptr)
	i.Owned = false
	i.Ptr = 0
	return err
}

func (i *Instance) String() string {
	return fmt.Sprintf("<%s object at %#x>", i.Info.QualifiedName(), i.Ptr)
}

// Enum is an enum or flags value.
type Enum struct {
	Info  *typeinfo.InterfaceDesc
	Value int64
}

func (e Enum) String() string {
	if e.Info == nil {
		return fmt.Sprint(e.Value)
	}
	if e.Info.Kind == typeinfo.KindFlags {
		if e.Value == 0 {
			return "0"
		}
		var names []string
		rest := e.Value
		for _, m := range e.Info.Members {
			if m.Value != 0 && e.Value&m.Value == m.Value {
				names = append(names, m.Name)
				rest &^= m.Value
			}
		}
		if rest != 0 {
			names = append(names, fmt.Sprintf("%#x", rest))
		}
		return strings.Join(names, "|")
	}
	for _, m := range e.Info.Members {
		if m.Value == e.Value {
			return m.Name
		}
	}
	return fmt.Sprint(e.Value)
}

// Callable is a host function native code can call back into.
type Callable interface {
	Call(ctx context.Context, args ...any) (any, error)
}

// Func adapts an ordinary function to Callable.
type Func func(ctx context.Context, args ...any) (any, error)

func (f Func) Call(ctx context.Context, args ...any) (any, error) {
	return f(ctx, args...)
}

// Callback pairs a callable with user data passed back on each invocation
// in place of the native user-data parameter.
type Callback struct {
	Fn       Callable
	UserData any
}

// Pair is one entry of a host mapping.
type Pair struct {
	Key   any
	Value any
}

// AsSequence returns the elements of any slice or array value. Strings are
// not sequences.
func AsSequence(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case nil, string:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	}
	return nil, false
}

// AsMapping returns the entries of any map value, ordered by the printed
// form of their keys.
func AsMapping(v any) ([]Pair, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		return nil, false
	}
	out := make([]Pair, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out = append(out, Pair{Key: iter.Key().Interface(), Value: iter.Value().Interface()})
	}
	sort.Slice(out, func(i, j int) bool {
		return fmt.Sprint(out[i].Key) < fmt.Sprint(out[j].Key)
	})
	return out, true
}

// TypeName names the dynamic type of a host value for error messages.
func TypeName(v any) string {
	switch t := v.(type) {
	case nil:
		return "nil"
	case *Boxed:
		return t.Info.QualifiedName()
	case *Instance:
		return t.Info.QualifiedName()
	case Enum:
		if t.Info != nil {
			return t.Info.QualifiedName()
		}
	}
	return reflect.TypeOf(v).String()
}
