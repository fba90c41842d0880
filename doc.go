// Package nativecall marshals dynamic host values across a native calling
// convention described by introspection metadata.
//
// Given a callable's metadata (argument types, directions, ownership transfer
// and inter-argument links), the library converts host values into a native
// call frame, invokes the native function, converts results back and releases
// every native allocation it created, including on partial failure. Host
// functions can also be handed to native code as callbacks.
//
// # Architecture Overview
//
//	nativecall/          Root package with Memory, Allocator, Space and Value
//	├── typeinfo/        Type, interface and callable metadata, in-memory repository
//	├── witinfo/         Metadata built from WIT declarations
//	├── native/          In-process address space, allocator and native data layouts
//	├── engine/          wazero-hosted address space for native libraries
//	├── host/            Host object model values (boxed, instances, enums, callables)
//	├── marshal/         Argument caches and per-tag marshalers
//	├── closure/         Callback trampolines and their lifetimes
//	├── invoke/          Call orchestration, cleanup and output assembly
//	└── errors/          Structured error types mapped onto host exception classes
//
// # Quick Start
//
//	heap := native.NewHeap(nil)
//	heap.Define("demo_sum", sumImpl)
//
//	repo := typeinfo.NewRepo()
//	repo.AddCallable(&typeinfo.CallableInfo{
//	    Namespace: "Demo",
//	    Name:      "sum",
//	    Symbol:    "demo_sum",
//	    Args: []typeinfo.ArgInfo{
//	        typeinfo.In("base", typeinfo.Basic(typeinfo.TagInt32)),
//	        typeinfo.In("values", typeinfo.Array(typeinfo.Basic(typeinfo.TagInt32), typeinfo.WithLength(2))),
//	        typeinfo.In("n", typeinfo.Basic(typeinfo.TagInt32)),
//	    },
//	    Return: typeinfo.Basic(typeinfo.TagInt32),
//	})
//
//	inv := invoke.New(heap, repo, nil)
//	result, err := inv.Invoke(ctx, "Demo.sum", nil, 10, []any{1, 2, 3})
//	fmt.Println(result) // 16
//
// # Thread Safety
//
// Argument caches are immutable once published and are shared across
// goroutines. Invocation is synchronous; the address space implementations
// serialize their own state.
package nativecall
