// Package invoke calls native functions with host arguments.
//
// An Invoker ties together an address space, a metadata repository, the
// marshaling registry and a callback bridge:
//
//	inv := invoke.New(heap, repo, nil)
//	result, err := inv.Invoke(ctx, "Demo.sum", nil, 10, []any{1, 2, 3})
//
// A call proceeds in a fixed order. The callable's cache is fetched from
// the registry and the argument count is checked against it. Storage for
// out and inout parameters is allocated, then the receiver and every host
// argument are converted in declaration order; a failure here releases
// everything converted so far, last first. The native function is called,
// its error channel checked, and the return value and out parameters are
// converted back. Finally every input is released according to its
// transfer mode and the out storage is freed.
//
// Results are returned as nil when the callable produces nothing, as the
// value itself when it produces one, and as a []any (return value first,
// then out parameters in declaration order) otherwise. Every error is a
// *host.Exception.
package invoke
