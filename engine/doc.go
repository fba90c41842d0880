// Package engine hosts native libraries in a wazero runtime.
//
// A Library is a nativecall.Space whose memory is a wasm linear memory and
// whose functions are Go host functions reached through wasm exports:
//
//	lib := engine.New(ctx, &engine.Config{Name: "demo", MemoryLimitPages: 256})
//	defer lib.Close(ctx)
//
//	i32 := api.ValueTypeI32
//	lib.Define("demo_add", []api.ValueType{i32, i32}, []api.ValueType{i32}, addImpl)
//	if err := lib.Instantiate(ctx); err != nil {
//	    return err
//	}
//	inv := invoke.New(lib, repo, nil)
//
// # Module Layout
//
// Instantiate builds two modules:
//
//	<name>_host   host module with one Go function per Define
//	<name>        shim module: imports every host function, defines the
//	              linear memory and exports "memory" plus each function
//
// Natives receive the Library itself as their Space, so they read and write
// the same memory the marshaler does.
//
// # Memory
//
// Allocation is managed on the Go side by a first-fit free list that grows
// the linear memory a page at a time, up to MemoryLimitPages. Function
// pointers come from a separate table starting at native.FuncPtrBase, which
// lies above the largest permitted memory.
package engine
