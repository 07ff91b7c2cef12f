package ebx

import (
	"testing"

	"github.com/frostbite-tools/ebx/internal/container"
	"github.com/frostbite-tools/ebx/internal/restab"
	"github.com/frostbite-tools/ebx/schema"
)

// registerType is a small test helper that registers info into reg and
// fails the test immediately on a name-hash collision.
func registerType(t *testing.T, reg *schema.StaticRegistry, info *schema.TypeInfo) {
	t.Helper()
	info.NameHash = restab.HashName(info.Name)
	for i := range info.Properties {
		info.Properties[i].NameHash = restab.HashName(info.Properties[i].Name)
	}
	if err := reg.Register(info); err != nil {
		t.Fatalf("Register(%q): %v", info.Name, err)
	}
}

func roundTrip(t *testing.T, reg *schema.StaticRegistry, asset *Asset) *Asset {
	t.Helper()
	w := NewPartitionWriter(reg, reg)
	data, err := w.WriteAsset(asset)
	if err != nil {
		t.Fatalf("WriteAsset: %v", err)
	}
	r := NewPartitionReader(data, reg)
	got, err := r.ReadAsset()
	if err != nil {
		t.Fatalf("ReadAsset: %v", err)
	}
	return got
}

// TestRoundTripEmptyAsset covers spec.md §8's scenario 1: a single
// exported instance of a zero-field type, with no imports and no
// arrays. This is the scenario that exercises the exported-instance
// GUID path (reader.ReadGUID / writer.WriteGUID): every other
// round-trip test in this file uses unexported instances only, so
// without this test that path has no coverage at all.
func TestRoundTripEmptyAsset(t *testing.T) {
	reg := schema.NewStaticRegistry("")
	registerType(t, reg, &schema.TypeInfo{Name: "Empty"})
	empty, _ := reg.TypeByName("Empty")

	obj, err := reg.NewInstance(empty.NameHash)
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}

	guid := restab.Guid{1, 2, 3, 4}
	asset := &Asset{
		FileGuid: restab.Guid{9, 9},
		Objects: []*Instance{
			{Object: obj, ClassGuid: AssetClassGuid{Guid: guid}},
		},
	}

	w := &PartitionWriter{oracle: reg, registry: reg, Magic: container.MagicV2}
	data, err := w.WriteAsset(asset)
	if err != nil {
		t.Fatalf("WriteAsset: %v", err)
	}

	got, err := NewPartitionReader(data, reg).ReadAsset()
	if err != nil {
		t.Fatalf("ReadAsset: %v", err)
	}
	if len(got.Objects) != 1 {
		t.Fatalf("got %d objects, want 1", len(got.Objects))
	}
	if got.FileGuid != asset.FileGuid {
		t.Fatalf("FileGuid = %v, want %v", got.FileGuid, asset.FileGuid)
	}
	if got.Objects[0].ClassGuid.Guid != guid {
		t.Fatalf("ClassGuid = %v, want %v", got.Objects[0].ClassGuid.Guid, guid)
	}
	if len(got.RefCounts) != 1 || got.RefCounts[0] != 0 {
		t.Fatalf("RefCounts = %v, want [0]", got.RefCounts)
	}
}

// TestRoundTripInheritance covers spec.md §8's inheritance-chain
// scenario: a child type's own field must land after its inherited
// base's fields, and both must decode back to their written values.
func TestRoundTripInheritance(t *testing.T) {
	reg := schema.NewStaticRegistry("game")

	registerType(t, reg, &schema.TypeInfo{
		Name:      "Base",
		Namespace: "game",
		Properties: []schema.Property{
			{Name: "BaseField", Kind: restab.Int32},
		},
	})
	base, _ := reg.TypeByName("Base")

	registerType(t, reg, &schema.TypeInfo{
		Name:       "Child",
		Namespace:  "game",
		ParentHash: base.NameHash,
		Properties: []schema.Property{
			{Name: "ChildField", Kind: restab.Float32},
		},
	})
	child, _ := reg.TypeByName("Child")

	obj, err := reg.NewInstance(child.NameHash)
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	obj.Fields[restab.HashName("BaseField")] = int32(42)
	obj.Fields[restab.HashName("ChildField")] = float32(3.5)

	asset := &Asset{
		FileGuid: restab.Guid{9},
		Objects:  []*Instance{{Object: obj}},
	}

	got := roundTrip(t, reg, asset)
	if len(got.Objects) != 1 {
		t.Fatalf("got %d objects, want 1", len(got.Objects))
	}
	gotObj := got.Objects[0].Object
	if v := gotObj.Fields[restab.HashName("BaseField")]; v != int32(42) {
		t.Fatalf("BaseField = %v, want 42", v)
	}
	if v := gotObj.Fields[restab.HashName("ChildField")]; v != float32(3.5) {
		t.Fatalf("ChildField = %v, want 3.5", v)
	}
}

// TestRoundTripArrayOfStructs covers spec.md §8's array-of-3-structs
// scenario.
func TestRoundTripArrayOfStructs(t *testing.T) {
	reg := schema.NewStaticRegistry("")

	registerType(t, reg, &schema.TypeInfo{
		Name:        "Point",
		IsValueType: true,
		Properties: []schema.Property{
			{Name: "X", Kind: restab.Int32},
		},
	})
	point, _ := reg.TypeByName("Point")

	registerType(t, reg, &schema.TypeInfo{
		Name: "Path",
		Properties: []schema.Property{
			{
				Name: "Points", Kind: restab.Array,
				ElemKind: restab.Struct, ElemTypeHash: point.NameHash,
				ArrayHash: restab.HashName("Path.Points[]"),
			},
		},
	})
	path, _ := reg.TypeByName("Path")

	obj, err := reg.NewInstance(path.NameHash)
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}

	var elems []any
	for i := 0; i < 3; i++ {
		p, err := reg.NewInstance(point.NameHash)
		if err != nil {
			t.Fatalf("NewInstance(Point): %v", err)
		}
		p.Fields[restab.HashName("X")] = int32(i * 10)
		elems = append(elems, p)
	}
	obj.Fields[restab.HashName("Points")] = elems

	asset := &Asset{Objects: []*Instance{{Object: obj}}}
	got := roundTrip(t, reg, asset)

	gotElems, ok := got.Objects[0].Object.Fields[restab.HashName("Points")].([]any)
	if !ok {
		t.Fatalf("Points field is %T, want []any", got.Objects[0].Object.Fields[restab.HashName("Points")])
	}
	if len(gotElems) != 3 {
		t.Fatalf("got %d elements, want 3", len(gotElems))
	}
	for i, e := range gotElems {
		p, ok := e.(*schema.Object)
		if !ok {
			t.Fatalf("element %d is %T, want *schema.Object", i, e)
		}
		if v := p.Fields[restab.HashName("X")]; v != int32(i*10) {
			t.Fatalf("element %d X = %v, want %d", i, v, i*10)
		}
	}
}

// TestRoundTripInternalPointerCycle covers spec.md §8's internal-
// pointer-cycle scenario: two instances pointing at each other, with
// ref-counts incremented on read.
func TestRoundTripInternalPointerCycle(t *testing.T) {
	reg := schema.NewStaticRegistry("")

	registerType(t, reg, &schema.TypeInfo{
		Name: "Node",
		Properties: []schema.Property{
			{Name: "Next", Kind: restab.Class},
		},
	})
	node, _ := reg.TypeByName("Node")

	a, _ := reg.NewInstance(node.NameHash)
	b, _ := reg.NewInstance(node.NameHash)
	a.Fields[restab.HashName("Next")] = PointerRef{Kind: PointerInternal, Index: 1}
	b.Fields[restab.HashName("Next")] = PointerRef{Kind: PointerInternal, Index: 0}

	asset := &Asset{Objects: []*Instance{{Object: a}, {Object: b}}}
	got := roundTrip(t, reg, asset)

	if len(got.RefCounts) != 2 || got.RefCounts[0] != 1 || got.RefCounts[1] != 1 {
		t.Fatalf("RefCounts = %v, want [1 1]", got.RefCounts)
	}
	pa := got.Objects[0].Object.Fields[restab.HashName("Next")].(PointerRef)
	if pa.Kind != PointerInternal || pa.Index != 1 {
		t.Fatalf("a.Next = %+v, want internal ref to 1", pa)
	}
}

// TestRoundTripExternalImport covers spec.md §8's external-import
// scenario: a Class-kind field pointing into the import table, plus
// the derived dependency-GUID set.
func TestRoundTripExternalImport(t *testing.T) {
	reg := schema.NewStaticRegistry("")

	registerType(t, reg, &schema.TypeInfo{
		Name: "Ref",
		Properties: []schema.Property{
			{Name: "Target", Kind: restab.Class},
		},
	})
	refType, _ := reg.TypeByName("Ref")

	obj, _ := reg.NewInstance(refType.NameHash)
	obj.Fields[restab.HashName("Target")] = PointerRef{Kind: PointerExternal, Index: 0}

	dep := restab.Guid{5, 6, 7}
	asset := &Asset{
		Objects: []*Instance{{Object: obj}},
		Imports: []restab.ImportRef{{FileGuid: dep, ClassGuid: restab.Guid{8}}},
	}

	got := roundTrip(t, reg, asset)
	if len(got.Imports) != 1 || got.Imports[0].FileGuid != dep {
		t.Fatalf("Imports = %+v, want one import from %v", got.Imports, dep)
	}
	if len(got.Dependencies) != 1 || got.Dependencies[0] != dep {
		t.Fatalf("Dependencies = %v, want [%v]", got.Dependencies, dep)
	}
	p := got.Objects[0].Object.Fields[restab.HashName("Target")].(PointerRef)
	if p.Kind != PointerExternal || p.Index != 0 {
		t.Fatalf("Target = %+v, want external ref to import 0", p)
	}
}

// TestRoundTripBoxedValueEnum covers spec.md §8's boxed-enum scenario.
func TestRoundTripBoxedValueEnum(t *testing.T) {
	reg := schema.NewStaticRegistry("")

	registerType(t, reg, &schema.TypeInfo{
		Name: "Holder",
		Properties: []schema.Property{
			{Name: "Dynamic", Kind: restab.BoxedValueRef},
		},
	})
	holder, _ := reg.TypeByName("Holder")

	obj, _ := reg.NewInstance(holder.NameHash)
	obj.Fields[restab.HashName("Dynamic")] = &BoxedValue{Kind: restab.Enum, Value: int32(7)}

	asset := &Asset{Objects: []*Instance{{Object: obj}}}
	got := roundTrip(t, reg, asset)

	bv, ok := got.Objects[0].Object.Fields[restab.HashName("Dynamic")].(*BoxedValue)
	if !ok {
		t.Fatalf("Dynamic field is %T, want *BoxedValue", got.Objects[0].Object.Fields[restab.HashName("Dynamic")])
	}
	if bv.Kind != restab.Enum || bv.Value != int32(7) {
		t.Fatalf("BoxedValue = %+v, want {Enum 7}", bv)
	}
}

// TestWriteAssetRejectsNonPrefixExports verifies the writer's
// contiguous-leading-export-prefix precondition.
func TestWriteAssetRejectsNonPrefixExports(t *testing.T) {
	reg := schema.NewStaticRegistry("")
	registerType(t, reg, &schema.TypeInfo{Name: "Plain"})
	plain, _ := reg.TypeByName("Plain")

	unexported, _ := reg.NewInstance(plain.NameHash)
	exported, _ := reg.NewInstance(plain.NameHash)

	asset := &Asset{
		Objects: []*Instance{
			{Object: unexported},
			{Object: exported, ClassGuid: AssetClassGuid{Guid: restab.Guid{1}}},
		},
	}

	w := NewPartitionWriter(reg, reg)
	if _, err := w.WriteAsset(asset); err == nil {
		t.Fatal("expected an error for a non-prefix exported instance")
	}
}
