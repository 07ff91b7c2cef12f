package container

import (
	"fmt"

	"github.com/frostbite-tools/ebx/internal/restab"
	"github.com/frostbite-tools/ebx/internal/stream"
)

// InstanceRow is one row of the on-wire instance table: typeRef repeated
// Count consecutive times. spec.md §3/§4.3's "instance" concept is one
// such repetition, not one row.
type InstanceRow struct {
	TypeRef restab.TypeRef
	Count   uint16
}

// ReadImports reads importCount {fileGuid, classGuid} pairs.
func ReadImports(r *stream.Reader, count uint32) ([]restab.ImportRef, error) {
	imports := make([]restab.ImportRef, count)
	for i := range imports {
		fg, err := r.ReadGUID()
		if err != nil {
			return nil, fmt.Errorf("container: import %d file guid: %w", i, err)
		}
		cg, err := r.ReadGUID()
		if err != nil {
			return nil, fmt.Errorf("container: import %d class guid: %w", i, err)
		}
		imports[i] = restab.ImportRef{FileGuid: restab.Guid(fg), ClassGuid: restab.Guid(cg)}
	}
	return imports, nil
}

// WriteImports emits imports verbatim.
func WriteImports(w *stream.Writer, imports []restab.ImportRef) {
	for _, imp := range imports {
		w.WriteGUID(imp.FileGuid)
		w.WriteGUID(imp.ClassGuid)
	}
}

// ReadTypeNames reads the densely-packed NUL-terminated type/field name
// pool spanning exactly typeNamesLen bytes, and indexes every string it
// contains by restab.HashName.
func ReadTypeNames(r *stream.Reader, typeNamesLen uint16) (map[uint32]string, error) {
	names := make(map[uint32]string)
	end := r.Offset() + int(typeNamesLen)
	for r.Offset() < end {
		s, err := r.ReadCString()
		if err != nil {
			return nil, fmt.Errorf("container: type name pool: %w", err)
		}
		names[restab.HashName(s)] = s
	}
	if r.Offset() != end {
		return nil, fmt.Errorf("container: type name pool overran its declared length")
	}
	return names, nil
}

// WriteTypeNames emits names (already deduplicated and in emission
// order) as a NUL-terminated pool and returns its byte length.
func WriteTypeNames(w *stream.Writer, names []string) uint16 {
	start := w.Tell()
	for _, n := range names {
		w.WriteCString(n)
	}
	return uint16(w.Tell() - start)
}

// ReadFieldDescriptors reads count field descriptor rows and back-fills
// each Name from the type-name index (empty string if absent).
func ReadFieldDescriptors(r *stream.Reader, count uint16, names map[uint32]string) ([]restab.FieldDescriptor, error) {
	fields := make([]restab.FieldDescriptor, count)
	for i := range fields {
		nameHash, err := r.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("container: field %d name hash: %w", i, err)
		}
		flags, err := r.ReadU16()
		if err != nil {
			return nil, fmt.Errorf("container: field %d flags: %w", i, err)
		}
		typeRef, err := r.ReadU16()
		if err != nil {
			return nil, fmt.Errorf("container: field %d type ref: %w", i, err)
		}
		dataOffset, err := r.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("container: field %d data offset: %w", i, err)
		}
		secondOffset, err := r.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("container: field %d second offset: %w", i, err)
		}
		fields[i] = restab.FieldDescriptor{
			NameHash:     nameHash,
			Flags:        restab.FieldFlags(flags),
			TypeRef:      restab.TypeRef(typeRef),
			DataOffset:   dataOffset,
			SecondOffset: secondOffset,
			Name:         names[nameHash],
		}
	}
	return fields, nil
}

// WriteFieldDescriptors emits fields verbatim (Name is not re-emitted;
// it is recovered on read from the type-name pool).
func WriteFieldDescriptors(w *stream.Writer, fields []restab.FieldDescriptor) {
	for _, f := range fields {
		w.WriteU32(f.NameHash)
		w.WriteU16(uint16(f.Flags))
		w.WriteU16(uint16(f.TypeRef))
		w.WriteU32(f.DataOffset)
		w.WriteU32(f.SecondOffset)
	}
}

// ReadTypeDescriptors reads count type descriptor rows and back-fills
// Name from the type-name index.
func ReadTypeDescriptors(r *stream.Reader, count uint16, names map[uint32]string) ([]restab.TypeDescriptor, error) {
	types := make([]restab.TypeDescriptor, count)
	for i := range types {
		nameHash, err := r.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("container: type %d name hash: %w", i, err)
		}
		fieldIndex, err := r.ReadI32()
		if err != nil {
			return nil, fmt.Errorf("container: type %d field index: %w", i, err)
		}
		fieldCount, err := r.ReadU8()
		if err != nil {
			return nil, fmt.Errorf("container: type %d field count: %w", i, err)
		}
		align, err := r.ReadU8()
		if err != nil {
			return nil, fmt.Errorf("container: type %d alignment: %w", i, err)
		}
		flags, err := r.ReadU16()
		if err != nil {
			return nil, fmt.Errorf("container: type %d flags: %w", i, err)
		}
		size, err := r.ReadU16()
		if err != nil {
			return nil, fmt.Errorf("container: type %d size: %w", i, err)
		}
		secondSize, err := r.ReadU16()
		if err != nil {
			return nil, fmt.Errorf("container: type %d second size: %w", i, err)
		}
		types[i] = restab.TypeDescriptor{
			NameHash:   nameHash,
			FieldIndex: fieldIndex,
			FieldCount: fieldCount,
			Align:      align,
			Flags:      flags,
			Size:       size,
			SecondSize: secondSize,
			Name:       names[nameHash],
			Index:      i,
		}
		if int(types[i].FieldIndex)+int(types[i].FieldCount) < 0 {
			return nil, fmt.Errorf("container: type %d has negative field range", i)
		}
	}
	return types, nil
}

// WriteTypeDescriptors emits types verbatim.
func WriteTypeDescriptors(w *stream.Writer, types []restab.TypeDescriptor) {
	for _, t := range types {
		w.WriteU32(t.NameHash)
		w.WriteI32(t.FieldIndex)
		w.WriteU8(t.FieldCount)
		w.WriteU8(t.Align)
		w.WriteU16(t.Flags)
		w.WriteU16(t.Size)
		w.WriteU16(t.SecondSize)
	}
}

// ReadInstanceTable reads count {typeRef, count} rows, aligns to 16, and
// returns them.
func ReadInstanceTable(r *stream.Reader, count uint16) ([]InstanceRow, error) {
	rows := make([]InstanceRow, count)
	for i := range rows {
		typeRef, err := r.ReadU16()
		if err != nil {
			return nil, fmt.Errorf("container: instance row %d type ref: %w", i, err)
		}
		repeat, err := r.ReadU16()
		if err != nil {
			return nil, fmt.Errorf("container: instance row %d count: %w", i, err)
		}
		rows[i] = InstanceRow{TypeRef: restab.TypeRef(typeRef), Count: repeat}
	}
	r.Align(16)
	return rows, nil
}

// WriteInstanceTable emits rows then pads to a 16-byte boundary.
func WriteInstanceTable(w *stream.Writer, rows []InstanceRow) {
	for _, row := range rows {
		w.WriteU16(uint16(row.TypeRef))
		w.WriteU16(row.Count)
	}
	w.Pad(16)
}

// ReadArrayTable reads count array rows, aligns to 16, and returns them.
func ReadArrayTable(r *stream.Reader, count uint32) ([]restab.ArrayRow, error) {
	rows := make([]restab.ArrayRow, count)
	for i := range rows {
		offset, err := r.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("container: array row %d offset: %w", i, err)
		}
		cnt, err := r.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("container: array row %d count: %w", i, err)
		}
		typeRef, err := r.ReadI32()
		if err != nil {
			return nil, fmt.Errorf("container: array row %d type ref: %w", i, err)
		}
		rows[i] = restab.ArrayRow{Offset: offset, Count: cnt, TypeRef: typeRef}
	}
	r.Align(16)
	return rows, nil
}

// WriteArrayTable emits rows then pads to a 16-byte boundary.
func WriteArrayTable(w *stream.Writer, rows []restab.ArrayRow) {
	for _, row := range rows {
		w.WriteU32(row.Offset)
		w.WriteU32(row.Count)
		w.WriteI32(row.TypeRef)
	}
	w.Pad(16)
}

// ReadBoxedValueTable reads count boxed-value rows.
func ReadBoxedValueTable(r *stream.Reader, count uint32) ([]restab.BoxedValueRow, error) {
	rows := make([]restab.BoxedValueRow, count)
	for i := range rows {
		offset, err := r.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("container: boxed value row %d offset: %w", i, err)
		}
		typeRef, err := r.ReadU16()
		if err != nil {
			return nil, fmt.Errorf("container: boxed value row %d type ref: %w", i, err)
		}
		typ, err := r.ReadU16()
		if err != nil {
			return nil, fmt.Errorf("container: boxed value row %d type: %w", i, err)
		}
		rows[i] = restab.BoxedValueRow{Offset: offset, TypeRef: typeRef, Type: typ}
	}
	return rows, nil
}

// WriteBoxedValueTable emits rows verbatim.
func WriteBoxedValueTable(w *stream.Writer, rows []restab.BoxedValueRow) {
	for _, row := range rows {
		w.WriteU32(row.Offset)
		w.WriteU16(row.TypeRef)
		w.WriteU16(row.Type)
	}
}

// CollectNames gathers every distinct type/field name across types and
// fields, in first-appearance order, for WriteTypeNames.
func CollectNames(types []restab.TypeDescriptor, fields []restab.FieldDescriptor) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(n string) {
		if n == "" || seen[n] {
			return
		}
		seen[n] = true
		names = append(names, n)
	}
	for _, t := range types {
		add(t.Name)
	}
	for _, f := range fields {
		add(f.Name)
	}
	return names
}
