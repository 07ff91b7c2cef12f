package restab

import "testing"

func TestResolveTypePlain(t *testing.T) {
	tbl := New(
		[]TypeDescriptor{
			{NameHash: 1, Name: "Base"},
			{NameHash: 2, Name: "Child"},
		},
		nil,
	)

	got, err := tbl.ResolveType(1)
	if err != nil {
		t.Fatalf("ResolveType: %v", err)
	}
	if got.Name != "Child" {
		t.Fatalf("got %q, want Child", got.Name)
	}
}

func TestResolveTypeOutOfRange(t *testing.T) {
	tbl := New([]TypeDescriptor{{Name: "Only"}}, nil)
	if _, err := tbl.ResolveType(5); err == nil {
		t.Fatal("expected error for out-of-range ref")
	}
}

func TestResolveTypeRelative(t *testing.T) {
	tbl := New(
		[]TypeDescriptor{
			{Name: "Grandparent"},
			{Name: "Parent"},
			{Name: "Child"},
		},
		nil,
	)
	parent := &tbl.Types[1]

	// Relative bit set: ref is a signed delta from parent's index.
	minusOne := int16(-1)
	got, err := tbl.ResolveTypeRelative(parent, TypeRef(uint16(minusOne)), true)
	if err != nil {
		t.Fatalf("ResolveTypeRelative: %v", err)
	}
	if got.Name != "Grandparent" {
		t.Fatalf("got %q, want Grandparent", got.Name)
	}

	// Relative bit clear: ref behaves as a direct index.
	got, err = tbl.ResolveTypeRelative(parent, 2, false)
	if err != nil {
		t.Fatalf("ResolveTypeRelative (direct): %v", err)
	}
	if got.Name != "Child" {
		t.Fatalf("got %q, want Child", got.Name)
	}
}

func TestFieldAt(t *testing.T) {
	tbl := New(
		[]TypeDescriptor{{Name: "T", FieldIndex: 1, FieldCount: 2}},
		[]FieldDescriptor{
			{Name: "unrelated"},
			{Name: "a"},
			{Name: "b"},
		},
	)

	f, err := tbl.FieldAt(&tbl.Types[0], 0)
	if err != nil {
		t.Fatalf("FieldAt(0): %v", err)
	}
	if f.Name != "a" {
		t.Fatalf("got %q, want a", f.Name)
	}

	if _, err := tbl.FieldAt(&tbl.Types[0], 2); err == nil {
		t.Fatal("expected error for field index past FieldCount")
	}
}

func TestFieldFlagsKind(t *testing.T) {
	f := FieldFlags(Int32) | flagRelativeTypeRef
	if f.Kind() != Int32 {
		t.Fatalf("Kind() = %v, want Int32", f.Kind())
	}
	if !f.IsRelative() {
		t.Fatal("IsRelative() = false, want true")
	}
}

func TestHashNameStable(t *testing.T) {
	a := HashName("SomeClass")
	b := HashName("SomeClass")
	if a != b {
		t.Fatalf("HashName not stable: %d != %d", a, b)
	}
	if a == HashName("OtherClass") {
		t.Fatal("HashName collided trivially")
	}
}
