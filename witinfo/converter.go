package witinfo

import (
	"fmt"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/nativecall/errors"
	"github.com/wippyai/nativecall/typeinfo"
)

// maxFlags is the number of flags a guint32 flags type holds.
const maxFlags = 32

// Converter maps WIT types onto typeinfo descriptors in one namespace.
type Converter struct {
	repo   *typeinfo.Repo
	ifaces map[*wit.TypeDef]*typeinfo.InterfaceDesc
	ns     string
	anon   int
}

// NewConverter creates a converter registering into repo. A nil repo keeps
// the descriptors unregistered.
func NewConverter(ns string, repo *typeinfo.Repo) *Converter {
	return &Converter{
		repo:   repo,
		ifaces: make(map[*wit.TypeDef]*typeinfo.InterfaceDesc),
		ns:     ns,
	}
}

// Namespace returns the namespace descriptors are declared in.
func (c *Converter) Namespace() string {
	return c.ns
}

// conv is a converted type plus the argument properties WIT encodes in the
// type itself.
type conv struct {
	desc     *typeinfo.TypeDesc
	nullable bool
	// owned is set for own<T> handles.
	owned bool
}

// Type converts a WIT type in value position, as used by record fields and
// list elements. Options and handles lose their argument properties here;
// use Callable for parameters.
func (c *Converter) Type(t wit.Type) (*typeinfo.TypeDesc, error) {
	cv, err := c.convert(t, true)
	if err != nil {
		return nil, err
	}
	return cv.desc, nil
}

// Primitive converts a primitive WIT type name such as "u32" or "string".
func Primitive(name string) (*typeinfo.TypeDesc, error) {
	t, err := wit.ParseType(name)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseBuild, errors.KindInvalidValue, err, "parse WIT type "+name)
	}
	if _, ok := t.(*wit.TypeDef); ok {
		return nil, errors.Unsupported(errors.PhaseBuild, "WIT type "+name+" is not primitive")
	}
	return NewConverter("", nil).Type(t)
}

// convert maps t. Nested aggregates are embedded by value when inline is
// set and passed by pointer otherwise.
func (c *Converter) convert(t wit.Type, inline bool) (conv, error) {
	switch t := t.(type) {
	case wit.Bool:
		return basic(typeinfo.TagBoolean), nil
	case wit.S8:
		return basic(typeinfo.TagInt8), nil
	case wit.U8:
		return basic(typeinfo.TagUint8), nil
	case wit.S16:
		return basic(typeinfo.TagInt16), nil
	case wit.U16:
		return basic(typeinfo.TagUint16), nil
	case wit.S32:
		return basic(typeinfo.TagInt32), nil
	case wit.U32:
		return basic(typeinfo.TagUint32), nil
	case wit.S64:
		return basic(typeinfo.TagInt64), nil
	case wit.U64:
		return basic(typeinfo.TagUint64), nil
	case wit.F32:
		return basic(typeinfo.TagFloat), nil
	case wit.F64:
		return basic(typeinfo.TagDouble), nil
	case wit.Char:
		return basic(typeinfo.TagUnichar), nil
	case wit.String:
		return conv{desc: typeinfo.UTF8()}, nil
	case *wit.TypeDef:
		return c.convertTypeDef(t, inline)
	case nil:
		return conv{desc: typeinfo.Basic(typeinfo.TagVoid)}, nil
	}
	return conv{}, errors.Unsupported(errors.PhaseBuild, fmt.Sprintf("WIT type %T", t))
}

func basic(tag typeinfo.Tag) conv {
	return conv{desc: typeinfo.Basic(tag)}
}

func (c *Converter) convertTypeDef(td *wit.TypeDef, inline bool) (conv, error) {
	switch kind := td.Kind.(type) {
	case *wit.Record, *wit.Tuple, *wit.Variant:
		d, err := c.iface(td)
		if err != nil {
			return conv{}, err
		}
		if inline {
			return conv{desc: typeinfo.Inline(d)}, nil
		}
		return conv{desc: typeinfo.Interface(d)}, nil

	case *wit.Enum, *wit.Flags, *wit.Resource:
		d, err := c.iface(td)
		if err != nil {
			return conv{}, err
		}
		return conv{desc: typeinfo.Interface(d)}, nil

	case *wit.List:
		elem, err := c.convert(kind.Type, true)
		if err != nil {
			return conv{}, prefixed(err, "list")
		}
		return conv{desc: typeinfo.Array(elem.desc, typeinfo.WithArrayType(typeinfo.ArrayGArray))}, nil

	case *wit.Option:
		inner, err := c.convert(kind.Type, false)
		if err != nil {
			return conv{}, prefixed(err, "option")
		}
		if !inner.desc.Pointer {
			return conv{}, errors.Unsupported(errors.PhaseBuild,
				fmt.Sprintf("option of by-value type %s", inner.desc))
		}
		inner.nullable = true
		return inner, nil

	case *wit.Own:
		cv, err := c.handle(kind.Type)
		cv.owned = true
		return cv, err

	case *wit.Borrow:
		return c.handle(kind.Type)

	case *wit.Result:
		return conv{}, errors.Unsupported(errors.PhaseBuild, "result outside a function result")

	case wit.Type:
		// Alias of another type.
		return c.convert(kind, inline)
	}
	return conv{}, errors.Unsupported(errors.PhaseBuild, fmt.Sprintf("WIT type definition %T", td.Kind))
}

func (c *Converter) handle(resource *wit.TypeDef) (conv, error) {
	if resource == nil {
		return conv{}, errors.Internal(errors.PhaseBuild, nil, "handle without a resource")
	}
	d, err := c.iface(resource)
	if err != nil {
		return conv{}, err
	}
	return conv{desc: typeinfo.Interface(d)}, nil
}

// iface returns the descriptor for a named or anonymous aggregate, building
// it on first use. The descriptor is cached before its fields are converted
// so recursive references resolve to it.
func (c *Converter) iface(td *wit.TypeDef) (*typeinfo.InterfaceDesc, error) {
	if d, ok := c.ifaces[td]; ok {
		return d, nil
	}
	name := c.nameOf(td)

	var (
		d   *typeinfo.InterfaceDesc
		err error
	)
	switch kind := td.Kind.(type) {
	case *wit.Record:
		d = &typeinfo.InterfaceDesc{Namespace: c.ns, Name: name, Kind: typeinfo.KindStruct}
		c.ifaces[td] = d
		fields := make([]typeinfo.Field, len(kind.Fields))
		for i, f := range kind.Fields {
			fields[i], err = c.field(f.Name, f.Type)
			if err != nil {
				break
			}
		}
		if err == nil {
			d.SetFields(fields...)
		}

	case *wit.Tuple:
		d = &typeinfo.InterfaceDesc{Namespace: c.ns, Name: name, Kind: typeinfo.KindStruct}
		c.ifaces[td] = d
		fields := make([]typeinfo.Field, len(kind.Types))
		for i, ft := range kind.Types {
			fields[i], err = c.field(fmt.Sprintf("f%d", i), ft)
			if err != nil {
				break
			}
		}
		if err == nil {
			d.SetFields(fields...)
		}

	case *wit.Variant:
		d = typeinfo.NewDiscriminatedUnion(c.ns, name, discriminant(len(kind.Cases)))
		c.ifaces[td] = d
		fields := make([]typeinfo.Field, len(kind.Cases))
		for i, vc := range kind.Cases {
			if vc.Type == nil {
				fields[i] = typeinfo.Field{Name: identName(vc.Name), Type: typeinfo.Basic(typeinfo.TagVoid)}
				continue
			}
			fields[i], err = c.field(vc.Name, vc.Type)
			if err != nil {
				break
			}
		}
		if err == nil {
			d.SetFields(fields...)
		}

	case *wit.Enum:
		members := make([]typeinfo.Member, len(kind.Cases))
		for i, ec := range kind.Cases {
			members[i] = typeinfo.Member{Name: identName(ec.Name), Value: int64(i)}
		}
		d = typeinfo.NewEnum(c.ns, name, discriminant(len(kind.Cases)), members...)

	case *wit.Flags:
		if len(kind.Flags) > maxFlags {
			return nil, errors.Unsupported(errors.PhaseBuild,
				fmt.Sprintf("flags %s with %d members", name, len(kind.Flags)))
		}
		members := make([]typeinfo.Member, len(kind.Flags))
		for i, f := range kind.Flags {
			members[i] = typeinfo.Member{Name: identName(f.Name), Value: int64(1) << i}
		}
		d = typeinfo.NewFlags(c.ns, name, members...)

	case *wit.Resource:
		d = typeinfo.NewObject(c.ns, name, nil)

	default:
		return nil, errors.Internal(errors.PhaseBuild, []string{name}, fmt.Sprintf("%T is not an aggregate", td.Kind))
	}
	if err != nil {
		delete(c.ifaces, td)
		return nil, prefixed(err, name)
	}
	c.ifaces[td] = d
	if err := c.register(td, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (c *Converter) field(name string, t wit.Type) (typeinfo.Field, error) {
	cv, err := c.convert(t, true)
	if err != nil {
		return typeinfo.Field{}, prefixed(err, identName(name))
	}
	return typeinfo.Field{Name: identName(name), Type: cv.desc}, nil
}

// register adds named descriptors to the repository. Anonymous ones stay
// private to the types that use them.
func (c *Converter) register(td *wit.TypeDef, d *typeinfo.InterfaceDesc) error {
	if c.repo == nil || td.Name == nil {
		return nil
	}
	if existing, ok := c.repo.LookupInterface(d.QualifiedName()); ok {
		if existing == d {
			return nil
		}
		return errors.Registration("interface", d.QualifiedName(), fmt.Errorf("already declared"))
	}
	return c.repo.AddInterface(d)
}

func (c *Converter) nameOf(td *wit.TypeDef) string {
	if td.Name != nil && *td.Name != "" {
		return typeName(*td.Name)
	}
	c.anon++
	return fmt.Sprintf("Anon%d", c.anon)
}

// discriminant returns the smallest integer type indexing n cases.
func discriminant(n int) typeinfo.Tag {
	switch {
	case n <= 1<<8:
		return typeinfo.TagUint8
	case n <= 1<<16:
		return typeinfo.TagUint16
	}
	return typeinfo.TagUint32
}

func prefixed(err error, parts ...string) error {
	if e, ok := err.(*errors.Error); ok {
		return e.WithPath(parts...)
	}
	return err
}
