// Package host defines the host object model values marshaling produces and
// consumes.
//
// Scalars use plain Go values: nil, bool, int64 (uint64 for unsigned 64-bit
// results), float64 and string. Sequences are []any, mappings map[any]any.
// Native memory is wrapped as Boxed (structs, boxed types, unions) or
// Instance (reference-counted objects); enum and flags values are Enum.
// Host functions handed to native code implement Callable.
//
// Every failure surfaced to callers is an *Exception whose Class names the
// host exception kind.
package host
