// Package restab holds the in-memory form of the on-wire EBX descriptor
// tables (type descriptors, field descriptors, array rows, boxed-value
// rows, import references) and the resolver that maps on-wire type refs
// to rows in those tables.
package restab

import "hash/fnv"

// TypeEnum is the 5-bit on-wire field/type kind.
type TypeEnum uint8

// Declared TypeEnum values, in on-wire order.
const (
	Void TypeEnum = iota
	DbObject
	Inherited
	String
	CString
	FileRef
	ResourceRef
	TypeRefKind
	Delegate
	BoxedValueRef
	GuidKind
	Sha1
	Struct
	Class
	Array
	Enum
	Boolean
	Int8
	UInt8
	Int16
	UInt16
	Int32
	UInt32
	Int64
	UInt64
	Float32
	Float64
)

// typeEnumMask isolates the 5-bit kind from a field's flags word.
const typeEnumMask = 0x1F

// flagRelativeTypeRef marks a field whose typeDescriptorRef must be
// resolved relative to the containing (parent) type descriptor's table
// index, rather than as a direct index. The originating source material
// never names the exact activation bit (spec.md §9's open question); bit
// 5 is the implementation's fixed choice. The reader honours it; the
// writer never sets it and always emits absolute type refs.
const flagRelativeTypeRef = 1 << 5

// FieldFlags is the raw on-wire flags word carried by a field descriptor.
type FieldFlags uint16

// Kind extracts the TypeEnum encoded in the low 5 bits.
func (f FieldFlags) Kind() TypeEnum {
	return TypeEnum(f & typeEnumMask)
}

// IsRelative reports whether this field's type ref resolves relative to
// its parent type descriptor.
func (f FieldFlags) IsRelative() bool {
	return f&flagRelativeTypeRef != 0
}

// TypeRef is a wire index (or, when relative, a delta) into the type
// descriptor table.
type TypeRef uint16

// Guid is a 16-byte little-endian GUID, stored raw as on the wire.
type Guid [16]byte

// IsZero reports whether g is the empty GUID.
func (g Guid) IsZero() bool {
	return g == Guid{}
}

// TypeDescriptor is a row of the on-wire type-descriptor table.
type TypeDescriptor struct {
	NameHash    uint32
	FieldIndex  int32
	FieldCount  uint8
	Align       uint8
	Flags       uint16
	Size        uint16
	SecondSize  uint16
	Name        string

	// Index is this descriptor's own position in the table, needed for
	// relative-to-parent resolution.
	Index int
}

// Alignment returns max(1, Align).
func (t *TypeDescriptor) Alignment() uint8 {
	if t.Align == 0 {
		return 1
	}
	return t.Align
}

// FieldDescriptor is a row of the on-wire field-descriptor table.
type FieldDescriptor struct {
	NameHash     uint32
	Flags        FieldFlags
	TypeRef      TypeRef
	DataOffset   uint32
	SecondOffset uint32
	Name         string
}

// ArrayRow is a row of the on-wire array table.
type ArrayRow struct {
	Offset  uint32
	Count   uint32
	TypeRef int32
}

// BoxedValueRow is a row of the on-wire boxed-value table.
type BoxedValueRow struct {
	Offset  uint32
	TypeRef uint16
	Type    uint16
}

// ImportRef uniquely identifies an object exported by another asset.
type ImportRef struct {
	FileGuid  Guid
	ClassGuid Guid
}

// HashName computes the 32-bit name hash used to index the on-wire
// type/field name pool. EBX's real hashing scheme is undocumented in the
// distilled source; FNV-1a is used here as a stable, dependency-free
// stand-in, matching how other binary object-graph codecs (e.g. Apache
// Fory's type registry) hash type names with hash/fnv rather than a
// bespoke algorithm.
func HashName(name string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return h.Sum32()
}
