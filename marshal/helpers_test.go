package marshal

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/wippyai/nativecall/errors"
	"github.com/wippyai/nativecall/native"
	"github.com/wippyai/nativecall/typeinfo"
)

func buildOne(t *testing.T, ai typeinfo.ArgInfo) (*Callable, *Arg) {
	t.Helper()
	c, err := Build(&typeinfo.CallableInfo{Namespace: "Test", Name: "f", Args: []typeinfo.ArgInfo{ai}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return c, c.Args[0]
}

func mustBuild(t *testing.T, info *typeinfo.CallableInfo) *Callable {
	t.Helper()
	c, err := Build(info)
	if err != nil {
		t.Fatalf("Build(%s): %v", info.QualifiedName(), err)
	}
	return c
}

func newState(c *Callable) (*State, *native.Heap) {
	heap := native.NewHeap(nil)
	return NewState(context.Background(), heap, c), heap
}

func classOf(err error) errors.Class {
	if err == nil {
		return ""
	}
	return errors.ClassOf(err)
}

func kindOf(err error) errors.Kind {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func live(h *native.Heap) int {
	return h.Stats().Live
}

func asError(err error, target **errors.Error) bool {
	return stderrors.As(err, target)
}
