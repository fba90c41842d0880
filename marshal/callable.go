package marshal

import (
	"github.com/wippyai/nativecall/typeinfo"
)

// Callable is the published marshaling cache of one callable. It is never
// mutated after Build returns.
type Callable struct {
	Info *typeinfo.CallableInfo

	// Instance is the receiver of methods and vfuncs, native slot 0.
	Instance *Arg
	// Return is nil for void callables.
	Return *Arg
	// Error is the trailing error-channel slot of throwing callables.
	Error *Arg

	Name string
	// Args are the declared parameters in declaration order.
	Args []*Arg
	// HostArgs are the parameters the host supplies, in host order.
	HostArgs []*Arg
	// Outs are the values handed back to the host: the return value unless
	// skipped, then out and inout parameters in declaration order.
	Outs []*Arg

	NativeCount int
	Required    int
	Kind        typeinfo.CallableKind
}

// HostCount returns the number of host-visible parameters.
func (c *Callable) HostCount() int {
	return len(c.HostArgs)
}

// Symbol returns the native entry point name.
func (c *Callable) Symbol() string {
	return c.Info.Symbol
}

// UserDataArg returns the user-data slot of a callback signature.
func (c *Callable) UserDataArg() *Arg {
	for _, a := range c.Args {
		if a.IsUserData {
			return a
		}
	}
	return nil
}

// Callback returns the callback-typed parameter that owns user data or a
// destroy notifier, if any.
func (c *Callable) Callback() *Arg {
	for _, a := range c.Args {
		if a.UserData != nil || a.Destroy != nil {
			return a
		}
	}
	return nil
}
