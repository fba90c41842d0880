package typeinfo

// Transfer is the ownership handed across the call boundary.
type Transfer uint8

const (
	TransferNothing Transfer = iota
	TransferContainer
	TransferEverything
)

var transferNames = [...]string{
	TransferNothing:    "none",
	TransferContainer:  "container",
	TransferEverything: "full",
}

func (t Transfer) String() string {
	if int(t) < len(transferNames) {
		return transferNames[t]
	}
	return "unknown"
}

// Direction is the data flow of an argument.
type Direction uint8

const (
	DirectionIn Direction = iota
	DirectionOut
	DirectionInOut
)

var directionNames = [...]string{
	DirectionIn:    "in",
	DirectionOut:   "out",
	DirectionInOut: "inout",
}

func (d Direction) String() string {
	if int(d) < len(directionNames) {
		return directionNames[d]
	}
	return "unknown"
}

// IsIn reports whether the host supplies a value.
func (d Direction) IsIn() bool { return d == DirectionIn || d == DirectionInOut }

// IsOut reports whether the native side produces a value.
func (d Direction) IsOut() bool { return d == DirectionOut || d == DirectionInOut }

// Scope is the lifetime of a callback handed to native code.
type Scope uint8

const (
	ScopeNone Scope = iota
	ScopeCall
	ScopeAsync
	ScopeNotified
)

var scopeNames = [...]string{
	ScopeNone:     "none",
	ScopeCall:     "call",
	ScopeAsync:    "async",
	ScopeNotified: "notified",
}

func (s Scope) String() string {
	if int(s) < len(scopeNames) {
		return scopeNames[s]
	}
	return "unknown"
}

// CallableKind distinguishes how a callable is bound.
type CallableKind uint8

const (
	CallableFunction CallableKind = iota
	CallableMethod
	CallableConstructor
	CallableVFunc
	CallableCallback
)

var callableKindNames = [...]string{
	CallableFunction:    "function",
	CallableMethod:      "method",
	CallableConstructor: "constructor",
	CallableVFunc:       "vfunc",
	CallableCallback:    "callback",
}

func (k CallableKind) String() string {
	if int(k) < len(callableKindNames) {
		return callableKindNames[k]
	}
	return "unknown"
}

// ArgInfo describes one declared parameter.
type ArgInfo struct {
	Default any
	Type    *TypeDesc
	Name    string

	// Closure and Destroy are meaningful on callback-typed arguments: the
	// declared positions of the user-data and destroy-notify parameters,
	// NoIndex when absent.
	Closure int
	Destroy int

	Direction       Direction
	Transfer        Transfer
	Scope           Scope
	CallerAllocates bool
	MayBeNull       bool
	Skip            bool
	HasDefault      bool
}

// In declares an input parameter.
func In(name string, t *TypeDesc) ArgInfo {
	return ArgInfo{Name: name, Type: t, Direction: DirectionIn, Closure: NoIndex, Destroy: NoIndex}
}

// Out declares an output parameter.
func Out(name string, t *TypeDesc) ArgInfo {
	return ArgInfo{Name: name, Type: t, Direction: DirectionOut, Closure: NoIndex, Destroy: NoIndex}
}

// InOut declares a bidirectional parameter.
func InOut(name string, t *TypeDesc) ArgInfo {
	return ArgInfo{Name: name, Type: t, Direction: DirectionInOut, Closure: NoIndex, Destroy: NoIndex}
}

// WithTransfer returns a copy with the given ownership transfer.
func (a ArgInfo) WithTransfer(t Transfer) ArgInfo {
	a.Transfer = t
	return a
}

// Nullable returns a copy that accepts null.
func (a ArgInfo) Nullable() ArgInfo {
	a.MayBeNull = true
	return a
}

// WithDefault returns a copy with a default used when the host omits it.
func (a ArgInfo) WithDefault(v any) ArgInfo {
	a.Default = v
	a.HasDefault = true
	return a
}

// CallerAllocated returns a copy whose out storage is provided by the caller.
func (a ArgInfo) CallerAllocated() ArgInfo {
	a.CallerAllocates = true
	return a
}

// Skipped returns a copy hidden from the host.
func (a ArgInfo) Skipped() ArgInfo {
	a.Skip = true
	return a
}

// WithCallbackLinks returns a copy wired to its user-data and destroy-notify
// positions and lifetime scope.
func (a ArgInfo) WithCallbackLinks(scope Scope, closure, destroy int) ArgInfo {
	a.Scope = scope
	a.Closure = closure
	a.Destroy = destroy
	return a
}

// CallableInfo describes a function, method, constructor, vfunc or callback.
type CallableInfo struct {
	Container       *InterfaceDesc
	Return          *TypeDesc
	Namespace       string
	Name            string
	Symbol          string
	Args            []ArgInfo
	Kind            CallableKind
	ReturnTransfer  Transfer
	ReturnMayBeNull bool
	SkipReturn      bool
	Throws          bool
}

// QualifiedName returns "Namespace.Container.Name" or "Namespace.Name".
func (c *CallableInfo) QualifiedName() string {
	name := c.Name
	if c.Container != nil {
		name = c.Container.Name + "." + name
	}
	if c.Namespace != "" {
		name = c.Namespace + "." + name
	}
	return name
}

// HasInstance reports whether the callable takes a receiver as its first
// native parameter.
func (c *CallableInfo) HasInstance() bool {
	return (c.Kind == CallableMethod || c.Kind == CallableVFunc) && c.Container != nil
}
