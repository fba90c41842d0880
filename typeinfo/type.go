package typeinfo

import (
	"fmt"
)

// ArrayType selects the native container shape of an array.
type ArrayType uint8

const (
	ArrayC ArrayType = iota
	ArrayGArray
	ArrayPtrArray
	ArrayByteArray
)

var arrayTypeNames = [...]string{
	ArrayC:         "c",
	ArrayGArray:    "GArray",
	ArrayPtrArray:  "GPtrArray",
	ArrayByteArray: "GByteArray",
}

func (a ArrayType) String() string {
	if int(a) < len(arrayTypeNames) {
		return arrayTypeNames[a]
	}
	return "unknown"
}

// NoIndex marks an absent argument link.
const NoIndex = -1

// TypeDesc describes one native type. Descriptors are immutable once built
// and shared by pointer.
type TypeDesc struct {
	Elem  *TypeDesc // array, GList and GSList elements
	Key   *TypeDesc // GHashTable keys
	Value *TypeDesc // GHashTable values
	Iface *InterfaceDesc

	Tag       Tag
	Pointer   bool
	ArrayType ArrayType

	// FixedSize is the element count of a fixed-size C array, 0 when unset.
	FixedSize int
	// LengthIndex is the declared position of the argument that carries the
	// array length, NoIndex when unset.
	LengthIndex    int
	ZeroTerminated bool
}

// Basic returns a descriptor for a scalar tag.
func Basic(tag Tag) *TypeDesc {
	return &TypeDesc{Tag: tag, LengthIndex: NoIndex}
}

// VoidPointer returns the opaque gpointer descriptor.
func VoidPointer() *TypeDesc {
	return &TypeDesc{Tag: TagVoid, Pointer: true, LengthIndex: NoIndex}
}

// UTF8 returns a NUL-terminated UTF-8 string descriptor.
func UTF8() *TypeDesc {
	return &TypeDesc{Tag: TagUTF8, Pointer: true, LengthIndex: NoIndex}
}

// Filename returns a NUL-terminated file name descriptor.
func Filename() *TypeDesc {
	return &TypeDesc{Tag: TagFilename, Pointer: true, LengthIndex: NoIndex}
}

// ArrayOption configures an array descriptor.
type ArrayOption func(*TypeDesc)

// WithLength links the array to the argument at idx that carries its length.
func WithLength(idx int) ArrayOption {
	return func(t *TypeDesc) { t.LengthIndex = idx }
}

// WithFixedSize declares a fixed element count.
func WithFixedSize(n int) ArrayOption {
	return func(t *TypeDesc) { t.FixedSize = n }
}

// ZeroTerminated declares a zero-element terminator.
func ZeroTerminated() ArrayOption {
	return func(t *TypeDesc) { t.ZeroTerminated = true }
}

// WithArrayType selects the native container shape.
func WithArrayType(at ArrayType) ArrayOption {
	return func(t *TypeDesc) { t.ArrayType = at }
}

// Array returns an array descriptor over elem.
func Array(elem *TypeDesc, opts ...ArrayOption) *TypeDesc {
	t := &TypeDesc{Tag: TagArray, Pointer: true, Elem: elem, LengthIndex: NoIndex}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// List returns a doubly linked list descriptor.
func List(elem *TypeDesc) *TypeDesc {
	return &TypeDesc{Tag: TagGList, Pointer: true, Elem: elem, LengthIndex: NoIndex}
}

// SList returns a singly linked list descriptor.
func SList(elem *TypeDesc) *TypeDesc {
	return &TypeDesc{Tag: TagGSList, Pointer: true, Elem: elem, LengthIndex: NoIndex}
}

// Hash returns a hash table descriptor.
func Hash(key, value *TypeDesc) *TypeDesc {
	return &TypeDesc{Tag: TagGHash, Pointer: true, Key: key, Value: value, LengthIndex: NoIndex}
}

// ErrorType returns the GError descriptor.
func ErrorType() *TypeDesc {
	return &TypeDesc{Tag: TagError, Pointer: true, LengthIndex: NoIndex}
}

// Interface returns a descriptor referring to d. Enums and flags are passed
// by value, every other interface kind by pointer.
func Interface(d *InterfaceDesc) *TypeDesc {
	ptr := d.Kind != KindEnum && d.Kind != KindFlags
	return &TypeDesc{Tag: TagInterface, Pointer: ptr, Iface: d, LengthIndex: NoIndex}
}

// Inline returns a descriptor embedding the struct or union d by value, as
// used for struct fields and C arrays of structs.
func Inline(d *InterfaceDesc) *TypeDesc {
	return &TypeDesc{Tag: TagInterface, Iface: d, LengthIndex: NoIndex}
}

// ArrayFixedSize returns the fixed element count, if any.
func (t *TypeDesc) ArrayFixedSize() (int, bool) {
	return t.FixedSize, t.FixedSize > 0
}

// ArrayLengthIndex returns the linked length argument index, if any.
func (t *TypeDesc) ArrayLengthIndex() (int, bool) {
	return t.LengthIndex, t.LengthIndex >= 0
}

// IsZeroTerminated reports whether the array ends with a zero element.
func (t *TypeDesc) IsZeroTerminated() bool {
	return t.ZeroTerminated
}

// ResolveInterface returns the interface descriptor, nil for other tags.
func (t *TypeDesc) ResolveInterface() *InterfaceDesc {
	if t.Tag != TagInterface {
		return nil
	}
	return t.Iface
}

// IsVoid reports whether t is a plain void (no value).
func (t *TypeDesc) IsVoid() bool {
	return t == nil || (t.Tag == TagVoid && !t.Pointer)
}

// IsCallback reports whether t refers to a callback interface.
func (t *TypeDesc) IsCallback() bool {
	return t != nil && t.Tag == TagInterface && t.Iface != nil && t.Iface.Kind == KindCallback
}

// IsInlineAggregate reports whether t embeds a struct or union by value.
func (t *TypeDesc) IsInlineAggregate() bool {
	if t.Tag != TagInterface || t.Pointer || t.Iface == nil {
		return false
	}
	switch t.Iface.Kind {
	case KindStruct, KindBoxed, KindUnion:
		return true
	}
	return false
}

// Size returns the storage size of a value of t in native memory.
func (t *TypeDesc) Size() uint32 {
	if t.Pointer {
		return PointerSize
	}
	if t.Tag == TagInterface && t.Iface != nil {
		switch t.Iface.Kind {
		case KindEnum, KindFlags:
			return t.Iface.storage().Size()
		case KindStruct, KindBoxed, KindUnion:
			return t.Iface.Size
		}
		return PointerSize
	}
	return t.Tag.Size()
}

// Align returns the storage alignment of t.
func (t *TypeDesc) Align() uint32 {
	if t.IsInlineAggregate() {
		if t.Iface.Align == 0 {
			return 1
		}
		return t.Iface.Align
	}
	if s := t.Size(); s > 0 {
		return s
	}
	return 1
}

func (t *TypeDesc) String() string {
	if t == nil {
		return "void"
	}
	switch t.Tag {
	case TagVoid:
		if t.Pointer {
			return "gpointer"
		}
		return "void"
	case TagArray:
		if t.ArrayType != ArrayC {
			return fmt.Sprintf("%s<%s>", t.ArrayType, t.Elem)
		}
		if n, ok := t.ArrayFixedSize(); ok {
			return fmt.Sprintf("%s[%d]", t.Elem, n)
		}
		return fmt.Sprintf("%s[]", t.Elem)
	case TagGList, TagGSList:
		return fmt.Sprintf("%s<%s>", t.Tag, t.Elem)
	case TagGHash:
		return fmt.Sprintf("%s<%s,%s>", t.Tag, t.Key, t.Value)
	case TagInterface:
		if t.Iface != nil {
			return t.Iface.QualifiedName()
		}
	}
	return t.Tag.String()
}
