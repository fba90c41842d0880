// Package wasm encodes the small core modules the engine synthesizes.
//
// A shim module imports every native function from the host module, defines
// the linear memory and re-exports both under their own names:
//
//	b := wasm.NewShimBuilder("native_host")
//	b.AddFunc("demo_sum", []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32})
//	b.SetMemory("memory", 1, 256)
//	bin := b.Build()
//
// This package is internal to the engine and should not be used directly.
package wasm
