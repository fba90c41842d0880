package typeinfo

import (
	"errors"
	"testing"

	nerrors "github.com/wippyai/nativecall/errors"
)

func TestTagSize(t *testing.T) {
	tests := []struct {
		tag  Tag
		want uint32
	}{
		{TagVoid, 0},
		{TagBoolean, 4},
		{TagInt8, 1},
		{TagUint16, 2},
		{TagInt32, 4},
		{TagUint64, 8},
		{TagFloat, 4},
		{TagDouble, 8},
		{TagUTF8, PointerSize},
		{TagGHash, PointerSize},
		{TagUnichar, 4},
	}
	for _, tt := range tests {
		t.Run(tt.tag.String(), func(t *testing.T) {
			if got := tt.tag.Size(); got != tt.want {
				t.Errorf("Size() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestArrayAccessors(t *testing.T) {
	i32 := Basic(TagInt32)

	plain := Array(i32)
	if _, ok := plain.ArrayFixedSize(); ok {
		t.Error("plain array should not have a fixed size")
	}
	if _, ok := plain.ArrayLengthIndex(); ok {
		t.Error("plain array should not have a length index")
	}

	fixed := Array(i32, WithFixedSize(3))
	if n, ok := fixed.ArrayFixedSize(); !ok || n != 3 {
		t.Errorf("ArrayFixedSize() = %d, %v", n, ok)
	}

	linked := Array(i32, WithLength(0), ZeroTerminated())
	if idx, ok := linked.ArrayLengthIndex(); !ok || idx != 0 {
		t.Errorf("ArrayLengthIndex() = %d, %v", idx, ok)
	}
	if !linked.IsZeroTerminated() {
		t.Error("expected zero terminated")
	}
}

func TestTypeDescString(t *testing.T) {
	point := NewStruct("Demo", "Point")
	tests := []struct {
		desc *TypeDesc
		want string
	}{
		{Basic(TagInt32), "gint32"},
		{VoidPointer(), "gpointer"},
		{Array(UTF8(), WithFixedSize(2)), "utf8[2]"},
		{Array(Basic(TagUint8), WithArrayType(ArrayGArray)), "GArray<guint8>"},
		{List(UTF8()), "GList<utf8>"},
		{Hash(UTF8(), Basic(TagInt32)), "GHashTable<utf8,gint32>"},
		{Interface(point), "Demo.Point"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.desc.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStructLayout(t *testing.T) {
	d := NewStruct("Demo", "Mixed",
		Field{Name: "flag", Type: Basic(TagInt8)},
		Field{Name: "count", Type: Basic(TagInt32)},
		Field{Name: "total", Type: Basic(TagDouble)},
		Field{Name: "tail", Type: Basic(TagUint16)},
	)

	wantOffsets := []uint32{0, 4, 8, 16}
	for i, f := range d.Fields {
		if f.Offset != wantOffsets[i] {
			t.Errorf("field %s offset = %d, want %d", f.Name, f.Offset, wantOffsets[i])
		}
	}
	if d.Size != 24 || d.Align != 8 {
		t.Errorf("Size=%d Align=%d, want 24/8", d.Size, d.Align)
	}
}

func TestSelfReferentialStruct(t *testing.T) {
	node := &InterfaceDesc{Namespace: "Demo", Name: "Node", Kind: KindStruct}
	node.SetFields(
		Field{Name: "value", Type: Basic(TagInt32)},
		Field{Name: "next", Type: Interface(node)},
	)
	if node.Size != 8 {
		t.Errorf("Size = %d, want 8", node.Size)
	}
	if node.Fields[1].Type.Iface != node {
		t.Error("next should refer back to the same descriptor")
	}
}

func TestUnionLayout(t *testing.T) {
	u := NewUnion("Demo", "Number",
		Field{Name: "i", Type: Basic(TagInt32)},
		Field{Name: "d", Type: Basic(TagDouble)},
	)
	if u.Size != 8 || u.Fields[0].Offset != 0 || u.Fields[1].Offset != 0 {
		t.Errorf("Size=%d offsets=%d,%d", u.Size, u.Fields[0].Offset, u.Fields[1].Offset)
	}

	du := NewDiscriminatedUnion("Demo", "Tagged", TagUint32,
		Field{Name: "i", Type: Basic(TagInt32)},
		Field{Name: "d", Type: Basic(TagDouble)},
	)
	if du.Fields[0].Offset != 8 || du.Size != 16 {
		t.Errorf("payload offset=%d Size=%d, want 8/16", du.Fields[0].Offset, du.Size)
	}
}

func TestObjectHierarchy(t *testing.T) {
	iface := NewInterface("Demo", "Drawable")
	base := NewObject("Demo", "Widget", nil)
	base.Interfaces = []*InterfaceDesc{iface}
	button := NewObject("Demo", "Button", base, Field{Name: "clicks", Type: Basic(TagInt32)})

	if !button.IsA(base) || !button.IsA(iface) || !button.IsA(button) {
		t.Error("Button should be a Widget, a Drawable and itself")
	}
	if base.IsA(button) {
		t.Error("Widget should not be a Button")
	}
	if button.Fields[0].Offset != InstanceHeaderSize {
		t.Errorf("first field offset = %d, want %d", button.Fields[0].Offset, InstanceHeaderSize)
	}
	if button.GType == base.GType || button.GType == 0 {
		t.Error("objects should get distinct non-zero GTypes")
	}
}

func TestEnumStorage(t *testing.T) {
	e := NewEnum("Demo", "Mode", TagVoid, Member{"off", 0}, Member{"on", 1})
	if e.Storage() != TagInt32 {
		t.Errorf("Storage() = %v, want gint32", e.Storage())
	}
	if Interface(e).Pointer {
		t.Error("enums are passed by value")
	}
	if !e.HasMember(1) || e.HasMember(2) {
		t.Error("HasMember mismatch")
	}

	small := NewEnum("Demo", "Small", TagUint8, Member{"a", 0})
	if Interface(small).Size() != 1 {
		t.Errorf("Size() = %d, want 1", Interface(small).Size())
	}
}

func TestCallableQualifiedName(t *testing.T) {
	widget := NewObject("Demo", "Widget", nil)
	tests := []struct {
		info *CallableInfo
		want string
	}{
		{&CallableInfo{Namespace: "Demo", Name: "sum"}, "Demo.sum"},
		{&CallableInfo{Namespace: "Demo", Name: "show", Container: widget, Kind: CallableMethod}, "Demo.Widget.show"},
		{&CallableInfo{Name: "bare"}, "bare"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.info.QualifiedName(); got != tt.want {
				t.Errorf("QualifiedName() = %q", got)
			}
		})
	}
}

func TestArgInfoHelpers(t *testing.T) {
	a := In("cb", VoidPointer())
	if a.Closure != NoIndex || a.Destroy != NoIndex {
		t.Errorf("links = %d/%d, want NoIndex", a.Closure, a.Destroy)
	}
	b := a.WithCallbackLinks(ScopeNotified, 2, 3).Nullable().WithDefault(nil)
	if b.Scope != ScopeNotified || b.Closure != 2 || b.Destroy != 3 || !b.MayBeNull || !b.HasDefault {
		t.Errorf("unexpected %+v", b)
	}
	if a.MayBeNull {
		t.Error("helpers must not mutate the receiver")
	}
}

func TestRepo(t *testing.T) {
	r := NewRepo()
	info := &CallableInfo{Namespace: "Demo", Name: "sum"}
	if err := r.AddCallable(info); err != nil {
		t.Fatalf("AddCallable: %v", err)
	}
	err := r.AddCallable(&CallableInfo{Namespace: "Demo", Name: "sum"})
	if !errors.Is(err, &nerrors.Error{Phase: nerrors.PhaseBuild, Kind: nerrors.KindRegistration}) {
		t.Errorf("duplicate AddCallable error = %v", err)
	}
	if got, ok := r.LookupCallable("Demo.sum"); !ok || got != info {
		t.Error("LookupCallable failed")
	}

	obj := NewObject("Demo", "Widget", nil)
	if err := r.AddInterface(obj); err != nil {
		t.Fatalf("AddInterface: %v", err)
	}
	if got, ok := r.LookupGType(obj.GType); !ok || got != obj {
		t.Error("LookupGType failed")
	}
	if _, ok := r.LookupInterface("Demo.Missing"); ok {
		t.Error("unexpected hit")
	}
}
