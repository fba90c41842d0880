package marshal

import (
	stderrors "errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/nativecall/errors"
	"github.com/wippyai/nativecall/typeinfo"
)

type linkKind uint8

const (
	linkLength linkKind = iota
	linkUserData
	linkDestroy
)

// returnIndex stands for the return value as a link parent.
const returnIndex = -1

type link struct {
	parent int
	child  int
	kind   linkKind
}

type fieldKey struct {
	info     *typeinfo.InterfaceDesc
	transfer typeinfo.Transfer
}

type builder struct {
	info *typeinfo.CallableInfo
	// fields is the visited set of struct and union caches; a struct that
	// refers to itself reuses the set under construction.
	fields map[fieldKey]*FieldSet
}

// Build constructs the marshaling cache of info. Callers normally go
// through a Registry so every callable is built once.
func Build(info *typeinfo.CallableInfo) (*Callable, error) {
	if info == nil {
		return nil, errors.Internal(errors.PhaseBuild, nil, "nil callable")
	}
	b := &builder{info: info, fields: make(map[fieldKey]*FieldSet)}
	c, err := b.build()
	if err != nil {
		return nil, prefix(err, info.QualifiedName())
	}
	return c, nil
}

func (b *builder) build() (*Callable, error) {
	info := b.info
	c := &Callable{Info: info, Name: info.QualifiedName(), Kind: info.Kind}

	offset := 0
	if info.HasInstance() {
		inst := &Arg{
			Name:        "self",
			Type:        typeinfo.Interface(info.Container),
			Direction:   typeinfo.DirectionIn,
			Transfer:    typeinfo.TransferNothing,
			HostIndex:   -1,
			NativeIndex: 0,
		}
		if err := b.bind(inst); err != nil {
			return nil, err
		}
		c.Instance = inst
		offset = 1
	}

	links, err := b.scanLinks()
	if err != nil {
		return nil, err
	}

	c.Args = make([]*Arg, len(info.Args))
	for i := range info.Args {
		a, err := b.newArg(&info.Args[i], i)
		if err != nil {
			return nil, err
		}
		a.NativeIndex = i + offset
		c.Args[i] = a
	}
	c.NativeCount = len(info.Args) + offset

	if !info.Return.IsVoid() {
		ret := &Arg{
			Name:        "return",
			Type:        info.Return,
			Direction:   typeinfo.DirectionOut,
			Transfer:    info.ReturnTransfer,
			MayBeNull:   info.ReturnMayBeNull,
			Skip:        info.SkipReturn,
			IsReturn:    true,
			HostIndex:   -1,
			NativeIndex: -1,
		}
		if ret.Type.IsInlineAggregate() {
			return nil, errors.Unsupported(errors.PhaseBuild, "struct returned by value").WithPath("return")
		}
		if err := b.bind(ret); err != nil {
			return nil, err
		}
		c.Return = ret
	}

	if info.Throws {
		c.Error = &Arg{
			Name:        "error",
			Type:        typeinfo.ErrorType(),
			Direction:   typeinfo.DirectionOut,
			Transfer:    typeinfo.TransferEverything,
			HostIndex:   -1,
			NativeIndex: c.NativeCount,
		}
		if err := b.bind(c.Error); err != nil {
			return nil, err
		}
		c.NativeCount++
	}

	for _, l := range links {
		if err := applyLink(c, l); err != nil {
			return nil, err
		}
	}
	for _, a := range c.Args {
		if a.Length == LengthArg && a.LengthArg == nil {
			return nil, errors.Internal(errors.PhaseBuild, a.path(), "array length argument not linked")
		}
	}
	if c.Return != nil && c.Return.Length == LengthArg && c.Return.LengthArg == nil {
		return nil, errors.Internal(errors.PhaseBuild, c.Return.path(), "array length argument not linked")
	}

	b.assignHostIndices(c)
	b.collectOuts(c)

	Logger().Debug("callable built",
		zap.String("callable", c.Name),
		zap.Int("host_args", len(c.HostArgs)),
		zap.Int("required", c.Required),
		zap.Int("native_args", c.NativeCount))
	return c, nil
}

// scanLinks finds every argument whose value is derived from another one
// before any host position is assigned.
func (b *builder) scanLinks() ([]link, error) {
	info := b.info
	n := len(info.Args)
	var links []link
	childOf := make(map[int]link)
	callback := -1

	add := func(l link) error {
		if l.child < 0 || l.child >= n {
			return errors.Internal(errors.PhaseBuild, nil, fmt.Sprintf("link to argument %d out of range", l.child))
		}
		name := info.Args[l.child].Name
		if l.child == l.parent {
			return errors.Internal(errors.PhaseBuild, []string{name}, "argument linked to itself")
		}
		if prev, ok := childOf[l.child]; ok {
			// Two arrays may share one length argument.
			if prev.kind == linkLength && l.kind == linkLength {
				links = append(links, l)
				return nil
			}
			return errors.New(errors.PhaseBuild, errors.KindMultipleCallbacks).
				Path(name).
				Detail("argument is claimed by more than one parent").
				Build()
		}
		childOf[l.child] = l
		links = append(links, l)
		return nil
	}

	for i := range info.Args {
		ai := &info.Args[i]
		if ai.Type == nil {
			return nil, errors.Internal(errors.PhaseBuild, []string{ai.Name}, "argument has no type")
		}
		if ai.Type.Tag == typeinfo.TagArray {
			if idx, ok := ai.Type.ArrayLengthIndex(); ok {
				if idx >= n {
					return nil, errors.Internal(errors.PhaseBuild, []string{ai.Name}, fmt.Sprintf("length argument %d out of range", idx))
				}
				if err := add(link{parent: i, child: idx, kind: linkLength}); err != nil {
					return nil, err
				}
			}
		}
		if !ai.Type.IsCallback() || (ai.Closure < 0 && ai.Destroy < 0) {
			continue
		}
		if callback >= 0 {
			return nil, errors.New(errors.PhaseBuild, errors.KindMultipleCallbacks).
				Path(ai.Name).
				Detail("multiple callbacks not supported").
				Build()
		}
		callback = i
		if ai.Closure >= 0 {
			if err := add(link{parent: i, child: ai.Closure, kind: linkUserData}); err != nil {
				return nil, err
			}
		}
		if ai.Destroy >= 0 {
			if err := add(link{parent: i, child: ai.Destroy, kind: linkDestroy}); err != nil {
				return nil, err
			}
		}
	}

	if ret := info.Return; ret != nil && ret.Tag == typeinfo.TagArray {
		if idx, ok := ret.ArrayLengthIndex(); ok {
			if idx >= n {
				return nil, errors.Internal(errors.PhaseBuild, []string{"return"}, fmt.Sprintf("length argument %d out of range", idx))
			}
			if err := add(link{parent: returnIndex, child: idx, kind: linkLength}); err != nil {
				return nil, err
			}
		}
	}
	return links, nil
}

func applyLink(c *Callable, l link) error {
	parent := c.Return
	if l.parent != returnIndex {
		parent = c.Args[l.parent]
	}
	child := c.Args[l.child]
	if parent == nil {
		return errors.Internal(errors.PhaseBuild, child.path(), "link from void return")
	}
	switch l.kind {
	case linkLength:
		if !child.Type.Tag.IsInteger() {
			return errors.Internal(errors.PhaseBuild, child.path(),
				fmt.Sprintf("array length argument has type %s", child.Type))
		}
		parent.LengthArg = child
	case linkUserData:
		parent.UserData = child
	case linkDestroy:
		parent.Destroy = child
	}
	parent.Meta = MetaParent
	if child.Parent == nil {
		child.Parent = parent
	}
	child.Meta = MetaChild
	return nil
}

func (b *builder) newArg(ai *typeinfo.ArgInfo, idx int) (*Arg, error) {
	a := &Arg{
		Name:            ai.Name,
		Type:            ai.Type,
		Default:         ai.Default,
		HostIndex:       -1,
		Direction:       ai.Direction,
		Transfer:        ai.Transfer,
		Scope:           ai.Scope,
		MayBeNull:       ai.MayBeNull,
		CallerAllocates: ai.CallerAllocates,
		HasDefault:      ai.HasDefault,
		Skip:            ai.Skip,
	}
	if ai.Type.IsCallback() && ai.MayBeNull && !ai.HasDefault {
		a.HasDefault = true
		a.Default = nil
	}
	if ai.Closure == idx && !ai.Type.IsCallback() {
		a.IsUserData = true
		a.Meta = MetaChild
	}
	if a.Type.IsInlineAggregate() {
		return nil, errors.Unsupported(errors.PhaseBuild, "struct passed by value").WithPath(a.Name)
	}
	if err := b.bind(a); err != nil {
		return nil, err
	}
	return a, nil
}

// assignHostIndices numbers the host-visible parameters and computes how
// many of them are required. Defaults only count at the tail: a defaulted
// parameter followed by a required one is itself required.
func (b *builder) assignHostIndices(c *Callable) {
	for _, a := range c.Args {
		if a.Meta == MetaChild || a.Skip || !a.Direction.IsIn() {
			continue
		}
		a.HostIndex = len(c.HostArgs)
		c.HostArgs = append(c.HostArgs, a)
	}
	c.Required = len(c.HostArgs)
	for i := len(c.HostArgs) - 1; i >= 0; i-- {
		if !c.HostArgs[i].HasDefault {
			break
		}
		c.Required = i
	}
	for _, a := range c.HostArgs[:c.Required] {
		a.HasDefault = false
		a.Default = nil
	}
}

func (b *builder) collectOuts(c *Callable) {
	if c.Return != nil && !c.Return.Skip {
		c.Outs = append(c.Outs, c.Return)
	}
	for _, a := range c.Args {
		if a.Direction.IsOut() && a.Meta != MetaChild && !a.Skip {
			c.Outs = append(c.Outs, a)
		}
	}
}

// sub returns the cache of a container item.
func (b *builder) sub(parent *Arg, t *typeinfo.TypeDesc) (*Arg, error) {
	if t == nil {
		return nil, errors.Internal(errors.PhaseBuild, parent.path(), "container has no item type")
	}
	a := &Arg{
		Type:        t,
		Direction:   parent.Direction,
		Transfer:    itemTransfer(parent.Transfer),
		HostIndex:   -1,
		NativeIndex: -1,
		MayBeNull:   true,
	}
	if err := b.bind(a); err != nil {
		return nil, prefix(err, parent.Name)
	}
	return a, nil
}

// fieldSet returns the field caches of a struct or union. Fields whose
// type cannot be marshaled from a mapping are left nil.
func (b *builder) fieldSet(info *typeinfo.InterfaceDesc, transfer typeinfo.Transfer) *FieldSet {
	key := fieldKey{info: info, transfer: transfer}
	if fs, ok := b.fields[key]; ok {
		return fs
	}
	fs := &FieldSet{Info: info, Args: make([]*Arg, len(info.Fields))}
	b.fields[key] = fs
	for i, f := range info.Fields {
		if f.Type == nil || f.Type.IsCallback() {
			continue
		}
		fa := &Arg{
			Name:        f.Name,
			Type:        f.Type,
			Direction:   typeinfo.DirectionIn,
			Transfer:    transfer,
			HostIndex:   -1,
			NativeIndex: -1,
			MayBeNull:   true,
		}
		if f.Type.IsInlineAggregate() {
			fa.Transfer = typeinfo.TransferNothing
		}
		if err := b.bind(fa); err != nil {
			Logger().Debug("field not marshalable",
				zap.String("type", info.QualifiedName()),
				zap.String("field", f.Name),
				zap.Error(err))
			continue
		}
		fs.Args[i] = fa
	}
	return fs
}

// bind selects the marshalers for a's type tag.
func (b *builder) bind(a *Arg) error {
	t := a.Type
	switch t.Tag {
	case typeinfo.TagVoid:
		if t.Pointer {
			a.FromHost, a.ToHost = pointerFromHost, pointerToHost
		} else {
			a.FromHost, a.ToHost = voidFromHost, voidToHost
		}
	case typeinfo.TagBoolean:
		a.FromHost, a.ToHost = booleanFromHost, booleanToHost
	case typeinfo.TagInt8, typeinfo.TagUint8, typeinfo.TagInt16, typeinfo.TagUint16,
		typeinfo.TagInt32, typeinfo.TagUint32, typeinfo.TagInt64, typeinfo.TagUint64:
		a.FromHost, a.ToHost = integerFromHost, integerToHost
	case typeinfo.TagFloat, typeinfo.TagDouble:
		a.FromHost, a.ToHost = floatFromHost, floatToHost
	case typeinfo.TagGType:
		a.FromHost, a.ToHost = gtypeFromHost, gtypeToHost
	case typeinfo.TagUnichar:
		a.FromHost, a.ToHost = unicharFromHost, unicharToHost
	case typeinfo.TagUTF8, typeinfo.TagFilename:
		a.FromHost, a.ToHost, a.FromHostCleanup = stringFromHost, stringToHost, stringCleanup
	case typeinfo.TagArray:
		return b.bindArray(a)
	case typeinfo.TagGList, typeinfo.TagGSList:
		return b.bindList(a)
	case typeinfo.TagGHash:
		return b.bindHash(a)
	case typeinfo.TagError:
		a.FromHost, a.ToHost = gerrorFromHost, gerrorToHost
	case typeinfo.TagInterface:
		return b.bindInterface(a)
	default:
		return errors.Unsupported(errors.PhaseBuild, fmt.Sprintf("type tag %s", t.Tag)).WithPath(a.path()...)
	}
	return nil
}

func (b *builder) bindInterface(a *Arg) error {
	info := a.Type.Iface
	if info == nil {
		return errors.Internal(errors.PhaseBuild, a.path(), "interface type without descriptor")
	}
	switch info.Kind {
	case typeinfo.KindEnum, typeinfo.KindFlags:
		a.FromHost, a.ToHost = enumFromHost, enumToHost
	case typeinfo.KindStruct, typeinfo.KindBoxed, typeinfo.KindUnion:
		a.FromHost, a.ToHost, a.FromHostCleanup = boxedFromHost, boxedToHost, boxedCleanup
		a.Members = b.fieldSet(info, itemTransfer(a.Transfer))
	case typeinfo.KindObject, typeinfo.KindInterface:
		a.FromHost, a.ToHost, a.FromHostCleanup = objectFromHost, objectToHost, objectCleanup
	case typeinfo.KindCallback:
		if info.Signature == nil {
			return errors.Internal(errors.PhaseBuild, a.path(), "callback type without signature")
		}
		a.FromHost, a.ToHost, a.FromHostCleanup = callbackFromHost, callbackToHost, callbackCleanup
	default:
		return errors.Unsupported(errors.PhaseBuild, fmt.Sprintf("interface kind %s", info.Kind)).WithPath(a.path()...)
	}
	return nil
}

// prefix prepends path elements to a structured error.
func prefix(err error, parts ...string) error {
	var e *errors.Error
	if !stderrors.As(err, &e) {
		return err
	}
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return e.WithPath(kept...)
}
