package restab

import "fmt"

// Table holds the immutable, fully-parsed type and field descriptor
// tables for one asset, plus the resolver operations spec.md §4.2
// describes. Unlike the teacher's tpi.Stream (which keeps raw bytes and
// lazily parses+caches individual records because a PDB's type stream
// can be enormous), an EBX descriptor table is small and is decoded
// completely up front by the reader; Table only ever holds already-typed
// rows.
type Table struct {
	Types  []TypeDescriptor
	Fields []FieldDescriptor
}

// New builds a Table from already-decoded rows, stamping each type
// descriptor's Index so relative-to-parent resolution has something to
// add the delta to.
func New(types []TypeDescriptor, fields []FieldDescriptor) *Table {
	for i := range types {
		types[i].Index = i
	}
	return &Table{Types: types, Fields: fields}
}

// ResolveType indexes the type-descriptor table directly (the "plain"
// path of spec.md §4.2).
func (t *Table) ResolveType(ref TypeRef) (*TypeDescriptor, error) {
	i := int(ref)
	if i < 0 || i >= len(t.Types) {
		return nil, fmt.Errorf("restab: type ref %d out of range (table has %d entries)", ref, len(t.Types))
	}
	return &t.Types[i], nil
}

// ResolveTypeRelative resolves ref against parent, taking the
// relative-to-parent path when relative is true: the ref is added, as a
// signed delta reinterpreted from the u16 ref, to parent's own table
// index. Otherwise it behaves exactly like ResolveType.
func (t *Table) ResolveTypeRelative(parent *TypeDescriptor, ref TypeRef, relative bool) (*TypeDescriptor, error) {
	if !relative {
		return t.ResolveType(ref)
	}
	i := parent.Index + int(int16(ref))
	if i < 0 || i >= len(t.Types) {
		return nil, fmt.Errorf("restab: relative type ref %d (parent %d) out of range", ref, parent.Index)
	}
	return &t.Types[i], nil
}

// ResolveField returns the field descriptor at the given absolute index
// into the shared field table.
func (t *Table) ResolveField(absoluteIndex int32) (*FieldDescriptor, error) {
	if absoluteIndex < 0 || int(absoluteIndex) >= len(t.Fields) {
		return nil, fmt.Errorf("restab: field index %d out of range (table has %d entries)", absoluteIndex, len(t.Fields))
	}
	return &t.Fields[absoluteIndex], nil
}

// FieldAt resolves the j-th declared field of t (j in [0, t.FieldCount)),
// combining ResolveField with the type's FieldIndex base the way
// readClass does for every iteration of its field loop.
func (tbl *Table) FieldAt(t *TypeDescriptor, j int) (*FieldDescriptor, error) {
	if j < 0 || j >= int(t.FieldCount) {
		return nil, fmt.Errorf("restab: field %d out of range for type %q (%d fields)", j, t.Name, t.FieldCount)
	}
	return tbl.ResolveField(t.FieldIndex + int32(j))
}
