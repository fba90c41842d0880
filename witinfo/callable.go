package witinfo

import (
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/nativecall/errors"
	"github.com/wippyai/nativecall/typeinfo"
)

// Param is a named function parameter.
type Param struct {
	Type wit.Type
	Name string
}

// Func declares a WIT function implemented by a native symbol.
type Func struct {
	// Resource makes the function a method; Params then exclude self.
	Resource *wit.TypeDef
	// Result is nil for functions without a result.
	Result wit.Type
	Name   string
	// Symbol defaults to the snake_case name, prefixed with the resource
	// name for methods.
	Symbol string
	Params []Param
}

// Callable converts f into callable metadata. List parameters become a
// C array followed by a hidden guint32 length parameter; a result<T, E>
// result becomes T plus the error channel.
func (c *Converter) Callable(f Func) (*typeinfo.CallableInfo, error) {
	info := &typeinfo.CallableInfo{
		Namespace: c.ns,
		Name:      identName(f.Name),
		Symbol:    f.Symbol,
		Kind:      typeinfo.CallableFunction,
	}
	if f.Resource != nil {
		d, err := c.iface(f.Resource)
		if err != nil {
			return nil, err
		}
		if d.Kind != typeinfo.KindObject {
			return nil, errors.TypeMismatch(errors.PhaseBuild, []string{info.Name}, "resource", d.Kind.String())
		}
		info.Kind = typeinfo.CallableMethod
		info.Container = d
	}
	if info.Symbol == "" {
		info.Symbol = info.Name
		if info.Container != nil {
			info.Symbol = resourceSymbol(f.Resource, info.Container) + "_" + info.Name
		}
	}

	for _, p := range f.Params {
		if err := c.param(info, p); err != nil {
			return nil, prefixed(err, info.Name)
		}
	}
	if err := c.result(info, f.Result); err != nil {
		return nil, prefixed(err, info.Name)
	}
	return info, nil
}

func (c *Converter) param(info *typeinfo.CallableInfo, p Param) error {
	name := identName(p.Name)
	if td, ok := p.Type.(*wit.TypeDef); ok {
		if l, ok := td.Kind.(*wit.List); ok {
			elem, err := c.convert(l.Type, true)
			if err != nil {
				return prefixed(err, name)
			}
			lenIdx := len(info.Args) + 1
			info.Args = append(info.Args,
				typeinfo.In(name, typeinfo.Array(elem.desc, typeinfo.WithLength(lenIdx))),
				typeinfo.In(name+"_len", typeinfo.Basic(typeinfo.TagUint32)),
			)
			return nil
		}
	}

	cv, err := c.convert(p.Type, false)
	if err != nil {
		return prefixed(err, name)
	}
	arg := typeinfo.In(name, cv.desc)
	if cv.nullable {
		arg = arg.Nullable()
	}
	if cv.owned {
		arg = arg.WithTransfer(typeinfo.TransferEverything)
	}
	info.Args = append(info.Args, arg)
	return nil
}

// result fills the return. Results are owned by the caller.
func (c *Converter) result(info *typeinfo.CallableInfo, t wit.Type) error {
	if t == nil {
		return nil
	}
	if td, ok := t.(*wit.TypeDef); ok {
		if r, ok := td.Kind.(*wit.Result); ok {
			info.Throws = true
			t = r.OK
			if t == nil {
				return nil
			}
		}
	}
	cv, err := c.convert(t, false)
	if err != nil {
		return prefixed(err, "return")
	}
	if cv.desc.IsInlineAggregate() {
		return errors.Unsupported(errors.PhaseBuild, "aggregate result by value")
	}
	info.Return = cv.desc
	info.ReturnMayBeNull = cv.nullable
	info.ReturnTransfer = typeinfo.TransferEverything
	return nil
}

// Register converts every function and adds it to the repository.
func (c *Converter) Register(funcs ...Func) error {
	if c.repo == nil {
		return errors.Internal(errors.PhaseBuild, nil, "converter has no repository")
	}
	for _, f := range funcs {
		info, err := c.Callable(f)
		if err != nil {
			return err
		}
		if err := c.repo.AddCallable(info); err != nil {
			return err
		}
	}
	return nil
}

func resourceSymbol(td *wit.TypeDef, d *typeinfo.InterfaceDesc) string {
	if td.Name != nil && *td.Name != "" {
		return identName(*td.Name)
	}
	return strings.ToLower(d.Name)
}
