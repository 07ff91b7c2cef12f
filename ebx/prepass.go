package ebx

import (
	"fmt"

	"github.com/frostbite-tools/ebx/internal/restab"
	"github.com/frostbite-tools/ebx/schema"
)

// typeLayout is the writer's working model of one emitted type: either
// a real schema type, or a synthesized "array of X" element-holder type
// (spec.md §4.5) that the array table's rows point at. Exactly one of
// info or elemOf is set.
type typeLayout struct {
	info   *schema.TypeInfo
	elemOf *schema.Property

	// nameHash is the value written to the type descriptor's NameHash
	// field and used to key restab lookups: info.NameHash for a real
	// type, or a deterministic synthesized value for an array layout.
	nameHash uint32
	fields   []restab.FieldDescriptor

	// deps are layouts that must be assigned a table index (and, for
	// struct members, a computed Size/Align) before this one can be
	// laid out: the base class and any Struct/Array-of-Struct member
	// types. Populated alongside addType/addArrayLayout's recursion.
	deps []*typeLayout

	// Filled in by the layout pass.
	index      int
	size       uint16
	align      uint8
	fieldBase  int32
	done       bool // topoSort visited marker
}

// prepass walks the schema metadata reachable from the distinct types
// present in an asset's instances, collecting the closed type set the
// writer must emit a descriptor for. This mirrors a class-metadata dump
// walk (the instance graph itself needs no discovery pass: every
// Instance an internal PointerRef can name is already an explicit
// element of Asset.Objects, so only the TYPE graph — base classes,
// nested structs, array element types — requires traversal).
type prepass struct {
	oracle   schema.Oracle
	registry *schema.StaticRegistry // used for InRootNamespace; nil means "ascend fully"

	order       []*typeLayout
	typesByHash map[uint32]*typeLayout
	arrsByHash  map[uint32]*typeLayout // keyed by the property's ArrayHash
}

func newPrepass(oracle schema.Oracle, registry *schema.StaticRegistry) *prepass {
	return &prepass{
		oracle:      oracle,
		registry:    registry,
		typesByHash: make(map[uint32]*typeLayout),
		arrsByHash:  make(map[uint32]*typeLayout),
	}
}

// run collects the full type set needed to serialize every instance in
// objects, returning it in dependency order: every layout a TypeRef can
// name appears before the layout naming it, so the layout pass that
// follows can always look up a dependency's already-computed table
// index and Size/Align.
func (p *prepass) run(objects []*Instance) ([]*typeLayout, error) {
	for _, inst := range objects {
		if err := p.addType(inst.Object.TypeHash); err != nil {
			return nil, err
		}
	}
	return p.topoSort(), nil
}

// topoSort returns p.order's nodes in post-order (dependencies first).
func (p *prepass) topoSort() []*typeLayout {
	sorted := make([]*typeLayout, 0, len(p.order))
	var visit func(l *typeLayout)
	visit = func(l *typeLayout) {
		if l.done {
			return
		}
		l.done = true
		for _, d := range l.deps {
			visit(d)
		}
		sorted = append(sorted, l)
	}
	for _, l := range p.order {
		visit(l)
	}
	return sorted
}

// addType registers hash and, recursively, every type it structurally
// depends on: its base chain (ascended only while still inside the
// schema root namespace, per spec.md §4.2's relative-ref scope), and
// the declared type of every Struct or Array-of-Struct/Class property.
func (p *prepass) addType(hash uint32) error {
	if _, ok := p.typesByHash[hash]; ok {
		return nil
	}
	info, ok := p.oracle.TypeByHash(hash)
	if !ok {
		return fmt.Errorf("%w: no schema type for hash %d", ErrSchemaMismatch, hash)
	}

	layout := &typeLayout{info: info, nameHash: info.NameHash}
	p.typesByHash[hash] = layout
	p.order = append(p.order, layout)

	if info.ParentHash != 0 && p.inRootNamespace(info.Namespace) {
		if err := p.addType(info.ParentHash); err != nil {
			return err
		}
		layout.deps = append(layout.deps, p.typesByHash[info.ParentHash])
	}

	for i := range info.Properties {
		prop := &info.Properties[i]
		if prop.Transient {
			// Transient properties get no field descriptor and are
			// never serialized (spec.md §4.4), so their declared type
			// need not be laid out on their account alone.
			continue
		}
		switch prop.Kind {
		case restab.Struct:
			if err := p.addType(prop.TypeHash); err != nil {
				return err
			}
			layout.deps = append(layout.deps, p.typesByHash[prop.TypeHash])
		case restab.Array:
			if prop.ElemKind == restab.Struct || prop.ElemKind == restab.Class {
				if err := p.addType(prop.ElemTypeHash); err != nil {
					return err
				}
				layout.deps = append(layout.deps, p.typesByHash[prop.ElemTypeHash])
			}
			p.addArrayLayout(prop)
			layout.deps = append(layout.deps, p.arrsByHash[prop.ArrayHash])
		}
	}
	return nil
}

// addArrayLayout registers the synthesized element-holder type the
// array table's rows point at: a type whose sole field describes the
// array's element kind/ref. It has no independent schema identity, so
// it is keyed and deduplicated by the declaring property's ArrayHash
// instead of a NameHash.
func (p *prepass) addArrayLayout(prop *schema.Property) {
	if _, ok := p.arrsByHash[prop.ArrayHash]; ok {
		return
	}
	layout := &typeLayout{
		elemOf:   prop,
		nameHash: prop.ArrayHash,
		fields: []restab.FieldDescriptor{{
			NameHash: prop.ArrayHash,
			Flags:    restab.FieldFlags(prop.ElemKind),
			TypeRef:  0, // patched to the element type's table index once known
		}},
	}
	if prop.ElemKind == restab.Struct || prop.ElemKind == restab.Class {
		if dep, ok := p.typesByHash[prop.ElemTypeHash]; ok {
			layout.deps = append(layout.deps, dep)
		}
	}
	p.arrsByHash[prop.ArrayHash] = layout
	p.order = append(p.order, layout)
}

func (p *prepass) inRootNamespace(ns string) bool {
	if p.registry == nil {
		return true
	}
	return p.registry.InRootNamespace(ns)
}
