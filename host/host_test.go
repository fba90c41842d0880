package host

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	nerrors "github.com/wippyai/nativecall/errors"
	"github.com/wippyai/nativecall/native"
	"github.com/wippyai/nativecall/typeinfo"
)

func TestEnumString(t *testing.T) {
	mode := typeinfo.NewEnum("Demo", "Mode", typeinfo.TagVoid,
		typeinfo.Member{Name: "off", Value: 0},
		typeinfo.Member{Name: "on", Value: 1},
	)
	opts := typeinfo.NewFlags("Demo", "Opts",
		typeinfo.Member{Name: "read", Value: 1},
		typeinfo.Member{Name: "write", Value: 2},
	)

	tests := []struct {
		name string
		e    Enum
		want string
	}{
		{"enum member", Enum{Info: mode, Value: 1}, "on"},
		{"enum unknown", Enum{Info: mode, Value: 9}, "9"},
		{"flags zero", Enum{Info: opts, Value: 0}, "0"},
		{"flags combined", Enum{Info: opts, Value: 3}, "read|write"},
		{"flags extra bits", Enum{Info: opts, Value: 5}, "read|0x4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.e.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAsSequence(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []any
		ok   bool
	}{
		{"any slice", []any{1, "a"}, []any{1, "a"}, true},
		{"typed slice", []int32{1, 2}, []any{int32(1), int32(2)}, true},
		{"array", [2]string{"x", "y"}, []any{"x", "y"}, true},
		{"string", "abc", nil, false},
		{"nil", nil, nil, false},
		{"int", 3, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AsSequence(tt.in)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAsMapping(t *testing.T) {
	got, ok := AsMapping(map[string]int{"b": 2, "a": 1})
	if !ok {
		t.Fatal("map not recognized")
	}
	want := []Pair{{Key: "a", Value: 1}, {Key: "b", Value: 2}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if _, ok := AsMapping([]int{1}); ok {
		t.Error("slice is not a mapping")
	}
}

func TestBoxedRelease(t *testing.T) {
	h := native.NewHeap(nil)
	point := typeinfo.NewStruct("Demo", "Point",
		typeinfo.Field{Name: "x", Type: typeinfo.Basic(typeinfo.TagInt32)},
		typeinfo.Field{Name: "y", Type: typeinfo.Basic(typeinfo.TagInt32)},
	)
	b, err := NewBoxed(h, point)
	if err != nil {
		t.Fatal(err)
	}
	b.Release(h)
	b.Release(h)
	if st := h.Stats(); st.Live != 0 || st.BadFrees != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestInstanceRelease(t *testing.T) {
	h := native.NewHeap(nil)
	widget := typeinfo.NewObject("Demo", "Widget", nil)
	ptr, err := native.NewInstance(h, widget.GType, widget.Size)
	if err != nil {
		t.Fatal(err)
	}
	inst := &Instance{Info: widget, Ptr: ptr, Owned: true}
	if err := inst.Release(h); err != nil {
		t.Fatal(err)
	}
	if err := inst.Release(h); err != nil {
		t.Fatal(err)
	}
	if h.IsLive(ptr) {
		t.Error("instance should be finalized")
	}
}

func TestFromError(t *testing.T) {
	exc := NewGError("demo", 3, "failed")
	if got := FromError(fmt.Errorf("wrap: %w", exc)); got != exc {
		t.Error("existing exception should be returned as-is")
	}

	conv := FromError(nerrors.OutOfRange(nerrors.PhaseFromHost, []string{"v"}, 200, "gint8", -128, 127))
	if conv.Class != nerrors.ClassValueError {
		t.Errorf("Class = %v", conv.Class)
	}
	if !errors.Is(conv, &nerrors.Error{Phase: nerrors.PhaseFromHost, Kind: nerrors.KindOutOfRange}) {
		t.Error("cause chain lost")
	}

	if FromError(errors.New("x")).Class != nerrors.ClassRuntimeError {
		t.Error("foreign errors are RuntimeError")
	}
	if FromError(nil) != nil {
		t.Error("nil error should give nil")
	}
}

func TestFunc(t *testing.T) {
	var c Callable = Func(func(_ context.Context, args ...any) (any, error) {
		return len(args), nil
	})
	got, err := c.Call(context.Background(), 1, 2)
	if err != nil || got != 2 {
		t.Errorf("got %v, %v", got, err)
	}
}
