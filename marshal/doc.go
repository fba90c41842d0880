// Package marshal converts values between the host object model and native
// call frames.
//
// Each declared parameter of a callable becomes an Arg whose FromHost, ToHost
// and FromHostCleanup functions are selected once, when the Callable is
// built, from the parameter's type tag. Composite types carry sub-args for
// their elements, keys and values, and arguments that derive from others
// (array lengths, callback user data and destroy notifiers) are linked to
// their parent and hidden from the host.
//
// Callables are built through a Registry, which publishes each one exactly
// once and shares it across goroutines:
//
//	c, err := marshal.Default().Get(info)
//
// Ownership follows the declared transfer. FromHostCleanup runs after the
// native call (called=true) or while unwinding a partially marshaled frame
// (called=false); ToHost applies ownership of returned memory itself.
package marshal
