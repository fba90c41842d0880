package typeinfo

import (
	"sync/atomic"
)

// InterfaceKind categorizes an interface descriptor.
type InterfaceKind uint8

const (
	KindEnum InterfaceKind = iota
	KindFlags
	KindStruct
	KindBoxed
	KindUnion
	KindObject
	KindInterface
	KindCallback
)

var interfaceKindNames = [...]string{
	KindEnum:      "enum",
	KindFlags:     "flags",
	KindStruct:    "struct",
	KindBoxed:     "boxed",
	KindUnion:     "union",
	KindObject:    "object",
	KindInterface: "interface",
	KindCallback:  "callback",
}

func (k InterfaceKind) String() string {
	if int(k) < len(interfaceKindNames) {
		return interfaceKindNames[k]
	}
	return "unknown"
}

// InstanceHeaderSize is the size of the native object instance header
// {refcount u32, gtype u32, size u32}; instance fields follow it.
const InstanceHeaderSize = 12

// Field is a struct or union member.
type Field struct {
	Name   string
	Type   *TypeDesc
	Offset uint32
}

// Member is a named enum or flags value.
type Member struct {
	Name  string
	Value int64
}

// InterfaceDesc describes a named composite type. Descriptors are shared by
// pointer, so struct graphs may refer back to themselves.
type InterfaceDesc struct {
	Parent     *InterfaceDesc
	Signature  *CallableInfo
	Namespace  string
	Name       string
	Fields     []Field
	Members    []Member
	Interfaces []*InterfaceDesc

	GType uint32
	Size  uint32
	Align uint32
	Kind  InterfaceKind

	// StorageTag is the integer type enums and flags are stored as.
	StorageTag Tag

	// Discriminated unions store the index of the active field at
	// DiscriminatorOffset, encoded as DiscriminatorTag.
	Discriminated       bool
	DiscriminatorTag    Tag
	DiscriminatorOffset uint32
}

var nextGType atomic.Uint32

func init() {
	nextGType.Store(0x100)
}

func newGType() uint32 {
	return nextGType.Add(1)
}

// QualifiedName returns "Namespace.Name".
func (d *InterfaceDesc) QualifiedName() string {
	if d.Namespace == "" {
		return d.Name
	}
	return d.Namespace + "." + d.Name
}

// EnumMembers returns the members of an enum or flags type.
func (d *InterfaceDesc) EnumMembers() []Member {
	return d.Members
}

// HasMember reports whether v is a declared member value.
func (d *InterfaceDesc) HasMember(v int64) bool {
	for _, m := range d.Members {
		if m.Value == v {
			return true
		}
	}
	return false
}

func (d *InterfaceDesc) storage() Tag {
	if d.StorageTag == TagVoid {
		if d.Kind == KindFlags {
			return TagUint32
		}
		return TagInt32
	}
	return d.StorageTag
}

// Storage returns the integer tag enum and flags values are stored as.
func (d *InterfaceDesc) Storage() Tag {
	return d.storage()
}

// IsA reports whether d is other or derives from or implements it.
func (d *InterfaceDesc) IsA(other *InterfaceDesc) bool {
	for cur := d; cur != nil; cur = cur.Parent {
		if cur == other {
			return true
		}
		for _, iface := range cur.Interfaces {
			if iface == other {
				return true
			}
		}
	}
	return false
}

// SetFields replaces the fields and recomputes the layout.
func (d *InterfaceDesc) SetFields(fields ...Field) *InterfaceDesc {
	d.Fields = fields
	switch d.Kind {
	case KindUnion:
		d.layoutUnion()
	case KindObject:
		d.layoutStruct(InstanceHeaderSize)
	default:
		d.layoutStruct(0)
	}
	return d
}

func (d *InterfaceDesc) layoutStruct(base uint32) {
	maxAlign := uint32(1)
	if base > 0 {
		maxAlign = PointerSize
	}
	offset := base
	for i := range d.Fields {
		ft := d.Fields[i].Type
		align := ft.Align()
		offset = AlignTo(offset, align)
		d.Fields[i].Offset = offset
		if align > maxAlign {
			maxAlign = align
		}
		offset += ft.Size()
	}
	d.Align = maxAlign
	d.Size = AlignTo(offset, maxAlign)
}

func (d *InterfaceDesc) layoutUnion() {
	maxAlign := uint32(1)
	maxSize := uint32(0)
	for _, f := range d.Fields {
		if a := f.Type.Align(); a > maxAlign {
			maxAlign = a
		}
		if s := f.Type.Size(); s > maxSize {
			maxSize = s
		}
	}
	payload := uint32(0)
	if d.Discriminated {
		ds := d.DiscriminatorTag.Size()
		if ds > maxAlign {
			maxAlign = ds
		}
		d.DiscriminatorOffset = 0
		payload = AlignTo(ds, maxAlign)
	}
	for i := range d.Fields {
		d.Fields[i].Offset = payload
	}
	d.Align = maxAlign
	d.Size = AlignTo(payload+maxSize, maxAlign)
}

// FieldIndex returns the position of the named field.
func (d *InterfaceDesc) FieldIndex(name string) (int, bool) {
	for i, f := range d.Fields {
		if f.Name == name {
			return i, true
		}
	}
	return NoIndex, false
}

// AlignTo rounds offset up to a multiple of align.
func AlignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

// NewEnum declares an enum stored as storage (gint32 when TagVoid).
func NewEnum(ns, name string, storage Tag, members ...Member) *InterfaceDesc {
	return &InterfaceDesc{Namespace: ns, Name: name, Kind: KindEnum, StorageTag: storage, Members: members, GType: newGType()}
}

// NewFlags declares a bit-flags type stored as guint32.
func NewFlags(ns, name string, members ...Member) *InterfaceDesc {
	return &InterfaceDesc{Namespace: ns, Name: name, Kind: KindFlags, StorageTag: TagUint32, Members: members, GType: newGType()}
}

// NewStruct declares a plain struct and lays out its fields.
func NewStruct(ns, name string, fields ...Field) *InterfaceDesc {
	d := &InterfaceDesc{Namespace: ns, Name: name, Kind: KindStruct}
	return d.SetFields(fields...)
}

// NewBoxed declares a boxed (registered, copyable) struct.
func NewBoxed(ns, name string, fields ...Field) *InterfaceDesc {
	d := &InterfaceDesc{Namespace: ns, Name: name, Kind: KindBoxed, GType: newGType()}
	return d.SetFields(fields...)
}

// NewUnion declares an untagged union; all fields share offset 0.
func NewUnion(ns, name string, fields ...Field) *InterfaceDesc {
	d := &InterfaceDesc{Namespace: ns, Name: name, Kind: KindUnion, GType: newGType()}
	return d.SetFields(fields...)
}

// NewDiscriminatedUnion declares a union whose active field index is stored
// as disc at offset 0, ahead of the payload.
func NewDiscriminatedUnion(ns, name string, disc Tag, fields ...Field) *InterfaceDesc {
	d := &InterfaceDesc{
		Namespace:        ns,
		Name:             name,
		Kind:             KindUnion,
		GType:            newGType(),
		Discriminated:    true,
		DiscriminatorTag: disc,
	}
	return d.SetFields(fields...)
}

// NewObject declares a reference-counted class deriving from parent.
func NewObject(ns, name string, parent *InterfaceDesc, fields ...Field) *InterfaceDesc {
	d := &InterfaceDesc{Namespace: ns, Name: name, Kind: KindObject, Parent: parent, GType: newGType()}
	return d.SetFields(fields...)
}

// NewInterface declares an interface type objects may implement.
func NewInterface(ns, name string) *InterfaceDesc {
	return &InterfaceDesc{Namespace: ns, Name: name, Kind: KindInterface, GType: newGType(), Size: PointerSize, Align: PointerSize}
}

// NewCallback declares a callback type with the given signature.
func NewCallback(ns, name string, sig *CallableInfo) *InterfaceDesc {
	if sig.Kind != CallableCallback {
		sig.Kind = CallableCallback
	}
	if sig.Namespace == "" {
		sig.Namespace = ns
	}
	if sig.Name == "" {
		sig.Name = name
	}
	return &InterfaceDesc{Namespace: ns, Name: name, Kind: KindCallback, Signature: sig, Size: PointerSize, Align: PointerSize}
}
