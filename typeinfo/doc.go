// Package typeinfo holds the introspection metadata marshaling is driven by.
//
// A TypeDesc names one native type by Tag plus its parameters (element,
// key and value types, array shape and length source). InterfaceDesc
// describes named composites: enums, flags, structs, boxed types, unions,
// objects, interfaces and callback signatures. CallableInfo lists a
// callable's parameters with their direction, ownership transfer and links
// between parameters.
//
// Descriptors are immutable once registered and shared by pointer. Struct
// layouts are computed when fields are set:
//
//	point := typeinfo.NewStruct("Demo", "Point",
//		typeinfo.Field{Name: "x", Type: typeinfo.Basic(typeinfo.TagInt32)},
//		typeinfo.Field{Name: "y", Type: typeinfo.Basic(typeinfo.TagInt32)},
//	)
//
// Repo is an in-memory Repository suitable for hand-built metadata and for
// descriptors produced by the witinfo package.
package typeinfo
