// Package closure builds native trampolines for host callables.
//
// A Bridge installs a Trampoline in an address space's function table and
// registers it in a handle table. Native code receives the function
// pointer and, in the callback's user-data slot, the handle. When native
// code calls the pointer, the trampoline converts the native arguments to
// host values using the callback signature, calls the host function and
// writes the results back into the native frame.
//
// # Lifetimes
//
// Each trampoline has a scope:
//
//	call      released after the native call it was passed to returns
//	notified  released when native code calls the destroy notifier with
//	          the trampoline's handle
//	async     queued for release after it fires once; the queue is drained
//	          the next time the bridge builds a trampoline
//
// A trampoline never frees itself while it runs: the handle is borrowed
// for the duration of each invocation, so a destroy notification arriving
// from inside the callback is deferred until the callback returns.
//
// # Failures
//
// Native code cannot receive a host exception. An error returned by the
// host function, or raised while converting its arguments or results, is
// logged and passed to Config.OnError, and native code receives zero
// results. Signatures with an error channel are the exception: a host
// GError exception is written into the channel instead.
package closure
