package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:      PhaseFromHost,
				Kind:       KindTypeMismatch,
				Path:       []string{"sum", "values", "[2]"},
				HostType:   "string",
				NativeType: "gint32",
				Detail:     "cannot convert",
			},
			contains: []string{"[from_host]", "type_mismatch", "sum.values.[2]", "string", "gint32", "cannot convert"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseToHost,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[to_host]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseNative,
				Kind:   KindAllocation,
				Detail: "heap full",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[native]", "allocation", "heap full", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseInvoke,
		Kind:  KindInternal,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseFromHost,
		Kind:  KindTypeMismatch,
		Path:  []string{"foo"},
	}

	if !err.Is(&Error{Phase: PhaseFromHost, Kind: KindTypeMismatch}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseToHost, Kind: KindTypeMismatch}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseFromHost, Kind: KindOutOfRange}) {
		t.Error("Is should not match different kind")
	}

	wrapped := fmt.Errorf("call failed: %w", err)
	if !errors.Is(wrapped, &Error{Phase: PhaseFromHost, Kind: KindTypeMismatch}) {
		t.Error("errors.Is should match through wrapping")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseFromHost, KindTypeMismatch).
		Path("user", "name").
		HostType("string").
		NativeType("guint32").
		Value(42).
		Cause(cause).
		Detail("expected %s, got %s", "int", "string").
		Build()

	if err.Phase != PhaseFromHost {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseFromHost)
	}
	if err.Kind != KindTypeMismatch {
		t.Errorf("Kind = %v, want %v", err.Kind, KindTypeMismatch)
	}
	if len(err.Path) != 2 || err.Path[0] != "user" || err.Path[1] != "name" {
		t.Errorf("Path = %v, want [user name]", err.Path)
	}
	if err.HostType != "string" || err.NativeType != "guint32" {
		t.Errorf("HostType=%v NativeType=%v", err.HostType, err.NativeType)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected int, got string" {
		t.Errorf("Detail = %v", err.Detail)
	}
}

func TestKindClass(t *testing.T) {
	tests := []struct {
		kind Kind
		want Class
	}{
		{KindTypeMismatch, ClassTypeError},
		{KindArity, ClassTypeError},
		{KindNilPointer, ClassTypeError},
		{KindOutOfRange, ClassValueError},
		{KindInvalidEnum, ClassValueError},
		{KindOverflow, ClassOverflowError},
		{KindUnsupported, ClassNotImplementedError},
		{KindNativeError, ClassGError},
		{KindMultipleCallbacks, ClassRuntimeError},
		{KindInternal, ClassRuntimeError},
		{KindAllocation, ClassRuntimeError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := tt.kind.Class(); got != tt.want {
				t.Errorf("Class() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassOf(t *testing.T) {
	if got := ClassOf(errors.New("plain")); got != ClassRuntimeError {
		t.Errorf("ClassOf(plain) = %v", got)
	}
	err := fmt.Errorf("wrapped: %w", Overflow(PhaseFromHost, nil, "inf", "gint32"))
	if got := ClassOf(err); got != ClassOverflowError {
		t.Errorf("ClassOf(wrapped overflow) = %v", got)
	}
}

func TestWithPath(t *testing.T) {
	base := TypeMismatch(PhaseFromHost, []string{"[1]"}, "str", "gint32")
	got := base.WithPath("values")
	if strings.Join(got.Path, ".") != "values.[1]" {
		t.Errorf("Path = %v", got.Path)
	}
	if len(base.Path) != 1 {
		t.Errorf("WithPath mutated receiver: %v", base.Path)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("OutOfRange", func(t *testing.T) {
		err := OutOfRange(PhaseFromHost, []string{"v"}, 200, "gint8", -128, 127)
		if err.Kind != KindOutOfRange {
			t.Errorf("Kind = %v", err.Kind)
		}
		if !strings.Contains(err.Error(), "-128 to 127") {
			t.Errorf("message %q should carry the legal range", err.Error())
		}
	})

	t.Run("Overflow", func(t *testing.T) {
		err := Overflow(PhaseFromHost, []string{"val"}, 1e30, "gint32")
		if err.Kind != KindOverflow || err.Value != 1e30 {
			t.Errorf("Kind=%v Value=%v", err.Kind, err.Value)
		}
	})

	t.Run("AllocationFailed", func(t *testing.T) {
		err := AllocationFailed(PhaseNative, 1024, 8)
		if err.Kind != KindAllocation || !strings.Contains(err.Detail, "1024") {
			t.Errorf("Kind=%v Detail=%v", err.Kind, err.Detail)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		err := Unsupported(PhaseBuild, "pointer arrays")
		if err.Class() != ClassNotImplementedError {
			t.Errorf("Class = %v", err.Class())
		}
	})

	t.Run("InvalidEnum", func(t *testing.T) {
		err := InvalidEnum(PhaseFromHost, []string{"mode"}, 7, "Demo.Mode")
		if err.Kind != KindInvalidEnum {
			t.Errorf("Kind = %v", err.Kind)
		}
	})
}

func TestArity(t *testing.T) {
	tests := []struct {
		name                      string
		required, declared, given int
		want                      string
	}{
		{"exact", 2, 2, 3, "Demo.sum() takes exactly 2 arguments (3 given)"},
		{"exact single", 1, 1, 0, "Demo.sum() takes exactly 1 argument (0 given)"},
		{"too few", 2, 3, 1, "Demo.sum() takes at least 2 arguments (1 given)"},
		{"too many", 1, 3, 4, "Demo.sum() takes at most 3 arguments (4 given)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Arity("Demo.sum", tt.required, tt.declared, tt.given)
			if err.Detail != tt.want {
				t.Errorf("Detail = %q, want %q", err.Detail, tt.want)
			}
			if err.Class() != ClassTypeError {
				t.Errorf("Class = %v", err.Class())
			}
		})
	}
}
