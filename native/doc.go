// Package native provides native address space building blocks.
//
// Heap is an in-process address space backed by a growable byte arena.
// FreeList and FuncTable are the allocator and function pointer table it is
// assembled from; the engine package reuses both over wazero linear memory.
//
// The remaining helpers read and write the native data layouts marshaling
// targets: NUL-terminated strings, GList/GSList nodes, hash tables, GArray
// headers, reference-counted object instances and GError records. All
// layouts are little-endian with 32-bit pointers.
package native
