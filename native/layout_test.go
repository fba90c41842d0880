package native

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCString(t *testing.T) {
	h := NewHeap(nil)
	for _, s := range []string{"", "hello", "héllo wörld"} {
		t.Run(s, func(t *testing.T) {
			p, err := NewCString(h, s)
			if err != nil {
				t.Fatal(err)
			}
			got, err := ReadCString(h, p)
			if err != nil {
				t.Fatal(err)
			}
			if got != s {
				t.Errorf("got %q, want %q", got, s)
			}
			FreeCString(h, p)
			if h.IsLive(p) {
				t.Error("string not freed")
			}
		})
	}
	if st := h.Stats(); st.BadFrees != 0 || st.Live != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestBuildList(t *testing.T) {
	h := NewHeap(nil)
	data := []uint64{10, 20, 30}

	for _, doubly := range []bool{false, true} {
		head, err := BuildList(h, data, doubly)
		if err != nil {
			t.Fatal(err)
		}
		got, err := ListValues(h, head)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(data, got); diff != "" {
			t.Errorf("values mismatch (-want +got):\n%s", diff)
		}
		if doubly {
			nodes, _ := ListNodes(h, head)
			prev, _ := h.ReadU32(nodes[2] + listPrevOff)
			if prev != nodes[1] {
				t.Errorf("prev link = %d, want %d", prev, nodes[1])
			}
		}
		FreeListNodes(h, head)
	}
	if empty, err := BuildList(h, nil, false); err != nil || empty != 0 {
		t.Errorf("empty list = %d, %v", empty, err)
	}
	if st := h.Stats(); st.Live != 0 || st.BadFrees != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestHashTable(t *testing.T) {
	h := NewHeap(nil)
	table, err := NewHashTable(h)
	if err != nil {
		t.Fatal(err)
	}
	k1, _ := NewCString(h, "alpha")
	k2, _ := NewCString(h, "beta")
	k1dup, _ := NewCString(h, "alpha")

	if _, replaced, err := HashInsert(h, table, uint64(k1), 1, true); err != nil || replaced {
		t.Fatalf("insert alpha: %v %v", replaced, err)
	}
	if _, _, err := HashInsert(h, table, uint64(k2), 2, true); err != nil {
		t.Fatal(err)
	}
	old, replaced, err := HashInsert(h, table, uint64(k1dup), 3, true)
	if err != nil || !replaced || old != 1 {
		t.Fatalf("replace by content: old=%d replaced=%v err=%v", old, replaced, err)
	}

	if n, _ := HashSize(h, table); n != 2 {
		t.Errorf("size = %d, want 2", n)
	}
	v, ok, err := HashLookup(h, table, uint64(k2), true)
	if err != nil || !ok || v != 2 {
		t.Errorf("lookup beta = %d %v %v", v, ok, err)
	}
	entries, _ := HashEntries(h, table)
	want := []HashEntry{{Key: uint64(k1), Value: 3}, {Key: uint64(k2), Value: 2}}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}

	FreeHashTable(h, table)
	for _, k := range []uint32{k1, k2, k1dup} {
		FreeCString(h, k)
	}
	if st := h.Stats(); st.Live != 0 || st.BadFrees != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestGArray(t *testing.T) {
	h := NewHeap(nil)
	hdr, data, err := NewGArray(h, 4, 4, 3)
	if err != nil {
		t.Fatal(err)
	}
	gotData, n, elem, err := ReadGArray(h, hdr)
	if err != nil || gotData != data || n != 3 || elem != 4 {
		t.Errorf("header = %d %d %d %v", gotData, n, elem, err)
	}
	FreeGArray(h, hdr, 4, true)
	if st := h.Stats(); st.Live != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestInstanceRefcount(t *testing.T) {
	h := NewHeap(nil)
	obj, err := NewInstance(h, 0x200, 24)
	if err != nil {
		t.Fatal(err)
	}
	if gt, _ := InstanceGType(h, obj); gt != 0x200 {
		t.Errorf("gtype = %#x", gt)
	}
	if err := Ref(h, obj); err != nil {
		t.Fatal(err)
	}
	if n, _ := RefCount(h, obj); n != 2 {
		t.Errorf("refcount = %d", n)
	}
	if freed, _ := Unref(h, obj); freed {
		t.Error("freed too early")
	}
	if freed, _ := Unref(h, obj); !freed {
		t.Error("should be freed at zero")
	}
	if h.IsLive(obj) {
		t.Error("instance still live")
	}
}

func TestGError(t *testing.T) {
	h := NewHeap(nil)
	p, err := NewError(h, "demo-error-quark", 7, "boom")
	if err != nil {
		t.Fatal(err)
	}
	info, err := ReadError(h, p)
	if err != nil {
		t.Fatal(err)
	}
	want := ErrorInfo{Domain: "demo-error-quark", Code: 7, Message: "boom"}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	FreeError(h, p)
	if st := h.Stats(); st.Live != 0 {
		t.Errorf("stats = %+v", st)
	}
	if Quark("demo-error-quark") != Quark("demo-error-quark") {
		t.Error("quarks should be stable")
	}
}
