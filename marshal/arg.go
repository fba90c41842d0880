package marshal

import (
	"github.com/wippyai/nativecall"
	"github.com/wippyai/nativecall/typeinfo"
)

// Meta is an argument's role relative to the other arguments.
type Meta uint8

const (
	MetaNone   Meta = iota
	MetaParent      // computes the value of one or more children
	MetaChild       // derived from a parent, never seen by the host
)

// LengthMode is how an array learns its element count.
type LengthMode uint8

const (
	LengthNone LengthMode = iota
	LengthArg
	LengthFixed
	LengthZeroTerminated
	LengthHeader
)

func (m LengthMode) String() string {
	switch m {
	case LengthArg:
		return "arg"
	case LengthFixed:
		return "fixed"
	case LengthZeroTerminated:
		return "zero-terminated"
	case LengthHeader:
		return "header"
	}
	return "none"
}

// FromHostFunc converts a host value into a native value. The returned data
// is handed back to FromHostCleanup.
type FromHostFunc func(st *State, a *Arg, v any) (nativecall.Value, any, error)

// ToHostFunc converts a native value into a host value and applies the
// argument's ownership transfer to the native memory it read.
type ToHostFunc func(st *State, a *Arg, v nativecall.Value) (any, error)

// CleanupFunc releases what FromHost allocated. called reports whether the
// native function ran; when it did not, everything is released.
type CleanupFunc func(st *State, a *Arg, v nativecall.Value, data any, called bool)

// Arg is the marshaling cache of one parameter, return value, element, key,
// value or struct field.
type Arg struct {
	Type    *typeinfo.TypeDesc
	Default any

	FromHost        FromHostFunc
	ToHost          ToHostFunc
	FromHostCleanup CleanupFunc

	// Sub-args of containers.
	Elem  *Arg
	Key   *Arg
	Value *Arg
	// Members holds struct and union field caches, shared between every
	// arg of the same interface within a build.
	Members *FieldSet

	// Links. LengthArg is the child carrying an array's length, UserData
	// and Destroy are a callback's children, Parent is set on children.
	LengthArg *Arg
	UserData  *Arg
	Destroy   *Arg
	Parent    *Arg

	Name        string
	HostIndex   int
	NativeIndex int

	ElemSize  uint32
	ElemAlign uint32
	FixedSize int

	Meta      Meta
	Length    LengthMode
	Direction typeinfo.Direction
	Transfer  typeinfo.Transfer
	Scope     typeinfo.Scope

	MayBeNull       bool
	CallerAllocates bool
	HasDefault      bool
	ZeroTerminated  bool
	Skip            bool
	IsReturn        bool
	// IsUserData marks the user-data slot of a callback signature, which the
	// trampoline fills with the host user data.
	IsUserData bool
}

// FieldSet holds the field caches of one struct or union.
type FieldSet struct {
	Info *typeinfo.InterfaceDesc
	Args []*Arg
}

// IsHostVisible reports whether the host supplies this argument.
func (a *Arg) IsHostVisible() bool {
	return a.HostIndex >= 0
}

func (a *Arg) path() []string {
	if a.Name == "" {
		return nil
	}
	return []string{a.Name}
}

func (a *Arg) typeName() string {
	return a.Type.String()
}

func (a *Arg) cleanup(st *State, v nativecall.Value, data any, called bool) {
	if a.FromHostCleanup != nil {
		a.FromHostCleanup(st, a, v, data, called)
	}
}

// itemTransfer is the transfer applied to the items of a container.
func itemTransfer(t typeinfo.Transfer) typeinfo.Transfer {
	if t == typeinfo.TransferEverything {
		return typeinfo.TransferEverything
	}
	return typeinfo.TransferNothing
}
