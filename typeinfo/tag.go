package typeinfo

// Tag is the closed set of native type tags.
type Tag uint8

const (
	TagVoid Tag = iota
	TagBoolean
	TagInt8
	TagUint8
	TagInt16
	TagUint16
	TagInt32
	TagUint32
	TagInt64
	TagUint64
	TagFloat
	TagDouble
	TagGType
	TagUTF8
	TagFilename
	TagArray
	TagInterface
	TagGList
	TagGSList
	TagGHash
	TagError
	TagUnichar
)

var tagNames = [...]string{
	TagVoid:      "void",
	TagBoolean:   "gboolean",
	TagInt8:      "gint8",
	TagUint8:     "guint8",
	TagInt16:     "gint16",
	TagUint16:    "guint16",
	TagInt32:     "gint32",
	TagUint32:    "guint32",
	TagInt64:     "gint64",
	TagUint64:    "guint64",
	TagFloat:     "gfloat",
	TagDouble:    "gdouble",
	TagGType:     "GType",
	TagUTF8:      "utf8",
	TagFilename:  "filename",
	TagArray:     "array",
	TagInterface: "interface",
	TagGList:     "GList",
	TagGSList:    "GSList",
	TagGHash:     "GHashTable",
	TagError:     "GError",
	TagUnichar:   "gunichar",
}

func (t Tag) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return "unknown"
}

// IsBasic reports whether values of the tag live directly in a frame slot.
func (t Tag) IsBasic() bool {
	return t <= TagGType || t == TagUnichar
}

// IsInteger reports whether the tag is an integral number type.
func (t Tag) IsInteger() bool {
	return t >= TagInt8 && t <= TagUint64
}

// IsSigned reports whether the integer tag is signed.
func (t Tag) IsSigned() bool {
	switch t {
	case TagInt8, TagInt16, TagInt32, TagInt64:
		return true
	}
	return false
}

// Size returns the storage size of a value of the tag in native memory.
// Pointer-backed tags are one 32-bit address.
func (t Tag) Size() uint32 {
	switch t {
	case TagVoid:
		return 0
	case TagInt8, TagUint8:
		return 1
	case TagInt16, TagUint16:
		return 2
	case TagInt64, TagUint64, TagDouble:
		return 8
	default:
		return PointerSize
	}
}

// PointerSize is the width of a native address.
const PointerSize = 4
