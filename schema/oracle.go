// Package schema defines the oracle contract the EBX codec consults for
// everything it does not itself own: resolving a type by its name hash,
// constructing a blank instance of a type, and enumerating a type's
// declared properties. The real schema library (generated from game
// asset definitions) lives outside this module; schema only specifies
// the interface plus a minimal in-memory reference implementation
// (StaticRegistry) good enough to drive tests and the CLI.
package schema

import "github.com/frostbite-tools/ebx/internal/restab"

// Property describes one declared, schema-level property of a type:
// its name hash (matching a field descriptor's NameHash on the wire),
// its on-wire kind, whether it is transient (skipped by the writer's
// pre-pass), and, for composite kinds, enough to recurse into the
// declared nested type.
type Property struct {
	NameHash uint32
	Name     string

	// Kind is the property's on-wire TypeEnum: Class for pointers,
	// Struct for nested value types, Array for ordered collections,
	// BoxedValueRef for dynamically-typed fields, everything else for
	// primitives and string/ref kinds.
	Kind restab.TypeEnum

	// TypeHash is the declared nested type's name hash, used by the
	// writer pre-pass to recurse into Struct properties; the pre-pass
	// does not follow it for Class properties. Unused for primitives.
	TypeHash uint32

	// ElemKind/ElemTypeHash describe an Array property's element type,
	// mirroring Kind/TypeHash one level down.
	ElemKind     restab.TypeEnum
	ElemTypeHash uint32

	// ArrayHash is the stable type-name hash of the schema's generic
	// ordered-collection container (spec.md §4.5's findExistingType
	// array-hash attribute), used by the writer to canonicalize the
	// array's synthesized type descriptor.
	ArrayHash uint32

	Transient bool

	// WrapPrimitive, when non-nil, lifts a decoded raw primitive value
	// into this property's wrapper representation (the IPrimitive
	// capability of spec.md §4.3/§9, expressed as a plain function
	// instead of a runtime interface probe per spec.md §9's design
	// note). UnwrapPrimitive is its inverse, used by the writer to
	// recover the raw value to serialize.
	WrapPrimitive   func(actual any) any
	UnwrapPrimitive func(wrapped any) any
}

// TypeInfo describes one schema-defined type.
type TypeInfo struct {
	NameHash  uint32
	Name      string
	Namespace string

	// ParentHash is the base type's name hash, or 0 if TypeInfo has no
	// base class.
	ParentHash uint32

	// IsValueType distinguishes Struct-kind types (copied by value) from
	// Class-kind types (referenced by pointer).
	IsValueType bool

	Properties []Property
}

// PropertyByHash returns the declared property with the given name
// hash, or (nil, false).
func (t *TypeInfo) PropertyByHash(hash uint32) (*Property, bool) {
	for i := range t.Properties {
		if t.Properties[i].NameHash == hash {
			return &t.Properties[i], true
		}
	}
	return nil, false
}

// Object is the generic, dynamically-typed instance representation the
// codec reads into and writes out of. Because EBX's object layout is
// entirely schema-driven at runtime (there is no compile-time Go struct
// per asset class), Object represents any instance as a type hash plus
// a property bag keyed by name hash — the dynamic analogue of the
// teacher's fixed-layout Go structs (tpi.ClassRecord and friends).
type Object struct {
	TypeHash uint32
	Fields   map[uint32]any
}

// Oracle is the schema library's contract, as consumed by the reader
// and writer. Implementations must be safe for concurrent read-only use
// (spec.md §5); the codec never mutates an Oracle.
type Oracle interface {
	// TypeByHash resolves a type by its name hash.
	TypeByHash(hash uint32) (*TypeInfo, bool)

	// TypeByName resolves a type by its declared name.
	TypeByName(name string) (*TypeInfo, bool)

	// NewInstance constructs a blank Object for the given type hash,
	// with every declared Array property pre-initialized to an empty
	// ordered collection ([]any{}) as spec.md §4.3 requires.
	NewInstance(hash uint32) (*Object, error)
}
