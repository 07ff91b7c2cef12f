package ebx

import (
	"fmt"

	"github.com/frostbite-tools/ebx/internal/restab"
	"github.com/frostbite-tools/ebx/internal/stream"
	"github.com/frostbite-tools/ebx/schema"
)

// writeState carries the side-tables a PartitionWriter fills in while
// walking instance bodies: the interned string pool and the array/boxed
// side-buffers, plus the type-layout indexes writeClass needs to
// resolve Inherited splices, Struct members, and array holders. It plays
// the same per-encode-pass role the reader's PartitionReader struct
// plays for decoding, just building tables up instead of consuming them.
type writeState struct {
	pw *PartitionWriter

	strings *stringPool
	arrays  *stream.Writer
	boxed   *stream.Writer

	byNameHash  map[uint32]*typeLayout
	byArrayHash map[uint32]*typeLayout
	byIndex     []*typeLayout

	objectIndex map[*schema.Object]int

	arrayRows []restab.ArrayRow
	boxedRows []restab.BoxedValueRow
}

// writeClass is the mirror image of PartitionReader.readClass: it walks
// l's fields in the same order they were laid out in, padding w up to
// each field's DataOffset (relative to startOffset) before writing it.
func (ws *writeState) writeClass(w *stream.Writer, l *typeLayout, obj *schema.Object, startOffset int) error {
	for _, field := range l.fields {
		if pad := startOffset + int(field.DataOffset) - w.Tell(); pad > 0 {
			w.WriteBytes(make([]byte, pad))
		}

		kind := field.Flags.Kind()

		if kind == restab.Inherited {
			base := ws.byIndex[int(field.TypeRef)]
			if err := ws.writeClass(w, base, obj, startOffset); err != nil {
				return err
			}
			continue
		}

		prop, ok := l.info.PropertyByHash(field.NameHash)
		if !ok {
			return fmt.Errorf("%w: no schema property for field %q of %q", ErrSchemaMismatch, field.Name, l.info.Name)
		}

		if kind == restab.Array {
			elems, _ := obj.Fields[field.NameHash].([]any)
			if err := ws.writeArrayField(w, prop, elems); err != nil {
				return fmt.Errorf("field %q of %q: %w", field.Name, l.info.Name, err)
			}
			continue
		}

		raw := obj.Fields[field.NameHash]
		if prop.UnwrapPrimitive != nil {
			raw = prop.UnwrapPrimitive(raw)
		}
		if err := ws.writeValue(w, kind, raw); err != nil {
			return fmt.Errorf("field %q of %q: %w", field.Name, l.info.Name, err)
		}
	}
	return nil
}

// writeArrayField appends elems to the array side-buffer as a new
// array-table row and writes that row's index into w, the inverse of
// PartitionReader.readArray.
func (ws *writeState) writeArrayField(w *stream.Writer, prop *schema.Property, elems []any) error {
	if elems == nil {
		w.WriteI32(-1)
		return nil
	}

	holder, ok := ws.byArrayHash[prop.ArrayHash]
	if !ok {
		return fmt.Errorf("%w: no array layout for property %q", ErrSchemaMismatch, prop.Name)
	}
	elemKind := holder.fields[0].Flags.Kind()

	row := restab.ArrayRow{
		Offset:  uint32(ws.arrays.Tell()),
		Count:   uint32(len(elems)),
		TypeRef: int32(holder.index),
	}
	w.WriteI32(int32(len(ws.arrayRows)))
	ws.arrayRows = append(ws.arrayRows, row)

	for _, elem := range elems {
		if err := ws.writeValue(ws.arrays, elemKind, elem); err != nil {
			return err
		}
	}
	return nil
}

// writeValue encodes a single value of the given kind, the mirror image
// of PartitionReader.readValue. Every composite/indirect kind that
// readValue resolves through the reader's tables resolves here through
// ws's equivalent write-side tables.
func (ws *writeState) writeValue(w *stream.Writer, kind restab.TypeEnum, val any) error {
	switch kind {
	case restab.Boolean:
		b, ok := val.(bool)
		if !ok {
			return fmt.Errorf("%w: expected bool, got %T", ErrSchemaMismatch, val)
		}
		if b {
			w.WriteU8(1)
		} else {
			w.WriteU8(0)
		}
		return nil
	case restab.Int8:
		v, ok := val.(int8)
		if !ok {
			return fmt.Errorf("%w: expected int8, got %T", ErrSchemaMismatch, val)
		}
		w.WriteI8(v)
		return nil
	case restab.UInt8:
		v, ok := val.(uint8)
		if !ok {
			return fmt.Errorf("%w: expected uint8, got %T", ErrSchemaMismatch, val)
		}
		w.WriteU8(v)
		return nil
	case restab.Int16:
		v, ok := val.(int16)
		if !ok {
			return fmt.Errorf("%w: expected int16, got %T", ErrSchemaMismatch, val)
		}
		w.WriteI16(v)
		return nil
	case restab.UInt16:
		v, ok := val.(uint16)
		if !ok {
			return fmt.Errorf("%w: expected uint16, got %T", ErrSchemaMismatch, val)
		}
		w.WriteU16(v)
		return nil
	case restab.Int32:
		v, ok := val.(int32)
		if !ok {
			return fmt.Errorf("%w: expected int32, got %T", ErrSchemaMismatch, val)
		}
		w.WriteI32(v)
		return nil
	case restab.UInt32:
		v, ok := val.(uint32)
		if !ok {
			return fmt.Errorf("%w: expected uint32, got %T", ErrSchemaMismatch, val)
		}
		w.WriteU32(v)
		return nil
	case restab.Int64:
		v, ok := val.(int64)
		if !ok {
			return fmt.Errorf("%w: expected int64, got %T", ErrSchemaMismatch, val)
		}
		w.WriteI64(v)
		return nil
	case restab.UInt64:
		v, ok := val.(uint64)
		if !ok {
			return fmt.Errorf("%w: expected uint64, got %T", ErrSchemaMismatch, val)
		}
		w.WriteU64(v)
		return nil
	case restab.Float32:
		v, ok := val.(float32)
		if !ok {
			return fmt.Errorf("%w: expected float32, got %T", ErrSchemaMismatch, val)
		}
		w.WriteFloat32(v)
		return nil
	case restab.Float64:
		v, ok := val.(float64)
		if !ok {
			return fmt.Errorf("%w: expected float64, got %T", ErrSchemaMismatch, val)
		}
		w.WriteFloat64(v)
		return nil
	case restab.GuidKind:
		g, ok := val.(restab.Guid)
		if !ok {
			return fmt.Errorf("%w: expected restab.Guid, got %T", ErrSchemaMismatch, val)
		}
		w.WriteGUID([16]byte(g))
		return nil
	case restab.Sha1:
		b, _ := val.([]byte)
		buf := make([]byte, 20)
		copy(buf, b)
		w.WriteBytes(buf)
		return nil
	case restab.String:
		s, ok := val.(string)
		if !ok {
			return fmt.Errorf("%w: expected string, got %T", ErrSchemaMismatch, val)
		}
		w.WriteFixedString(s, 32)
		return nil
	case restab.CString:
		s, ok := val.(string)
		if !ok {
			return fmt.Errorf("%w: expected string, got %T", ErrSchemaMismatch, val)
		}
		w.WriteU32(ws.strings.add(s))
		return nil
	case restab.ResourceRef:
		v, ok := val.(uint64)
		if !ok {
			return fmt.Errorf("%w: expected uint64, got %T", ErrSchemaMismatch, val)
		}
		w.WriteU64(v)
		return nil
	case restab.FileRef:
		s, ok := val.(string)
		if !ok {
			return fmt.Errorf("%w: expected string, got %T", ErrSchemaMismatch, val)
		}
		w.WriteU32(ws.strings.add(s))
		w.WriteU32(0)
		return nil
	case restab.TypeRefKind, restab.Delegate:
		tv, ok := val.(TypeRefValue)
		if !ok {
			return fmt.Errorf("%w: expected TypeRefValue, got %T", ErrSchemaMismatch, val)
		}
		name := tv.Name
		if tv.IsGuid {
			name = guidString(tv.Guid)
		}
		w.WriteU32(ws.strings.add(name))
		w.WriteU32(0)
		return nil
	case restab.BoxedValueRef:
		bv, _ := val.(*BoxedValue)
		if bv == nil {
			w.WriteI32(-1)
			w.WriteBytes(make([]byte, 12))
			return nil
		}
		idx, err := ws.writeBoxedValue(bv)
		if err != nil {
			return err
		}
		w.WriteI32(int32(idx))
		w.WriteBytes(make([]byte, 12))
		return nil
	case restab.Struct:
		obj, ok := val.(*schema.Object)
		if !ok {
			return fmt.Errorf("%w: expected *schema.Object, got %T", ErrSchemaMismatch, val)
		}
		layout, ok := ws.byNameHash[obj.TypeHash]
		if !ok {
			return fmt.Errorf("%w: no layout for struct type %d", ErrSchemaMismatch, obj.TypeHash)
		}
		w.Pad(int(max8(layout.align, 1)))
		nestedStart := w.Tell()
		return ws.writeClass(w, layout, obj, nestedStart)
	case restab.Enum:
		v, ok := val.(int32)
		if !ok {
			return fmt.Errorf("%w: expected int32, got %T", ErrSchemaMismatch, val)
		}
		w.WriteI32(v)
		return nil
	case restab.Class:
		pr, ok := val.(PointerRef)
		if !ok {
			return fmt.Errorf("%w: expected PointerRef, got %T", ErrSchemaMismatch, val)
		}
		return ws.writePointerRef(w, pr)
	case restab.DbObject:
		return ErrUnsupported
	case restab.Array:
		return fmt.Errorf("%w: nested arrays are not supported", ErrUnsupported)
	default:
		return fmt.Errorf("%w: type enum %d", ErrUnsupported, kind)
	}
}

// writeBoxedValue appends bv to the boxed-value side-buffer and its
// table row, returning the row's index. Boxed ARRAY values are rejected:
// reconstructing the holder type descriptor they require would need the
// element's declared type identity, which BoxedValue's minimal
// {Kind, Value} shape does not retain once decoded, and by the time an
// instance body (and so any boxed value within it) is written the type
// descriptor table is already finalized.
func (ws *writeState) writeBoxedValue(bv *BoxedValue) (int, error) {
	if bv.Kind == restab.Array {
		return 0, fmt.Errorf("%w: writing boxed array values", ErrUnsupported)
	}

	var typeRef uint16
	if bv.Kind == restab.Struct {
		obj, ok := bv.Value.(*schema.Object)
		if !ok {
			return 0, fmt.Errorf("%w: boxed Struct value is %T, not *schema.Object", ErrSchemaMismatch, bv.Value)
		}
		layout, ok := ws.byNameHash[obj.TypeHash]
		if !ok {
			return 0, fmt.Errorf("%w: no layout for boxed struct type %d", ErrSchemaMismatch, obj.TypeHash)
		}
		typeRef = uint16(layout.index)
	}

	offset := ws.boxed.Tell()
	if err := ws.writeValue(ws.boxed, bv.Kind, bv.Value); err != nil {
		return 0, err
	}

	idx := len(ws.boxedRows)
	ws.boxedRows = append(ws.boxedRows, restab.BoxedValueRow{
		Offset:  uint32(offset),
		TypeRef: typeRef,
		Type:    uint16(bv.Kind),
	})
	return idx, nil
}

// writePointerRef encodes a Class-kind field, the inverse of
// PartitionReader.readPointerRef.
func (ws *writeState) writePointerRef(w *stream.Writer, pr PointerRef) error {
	switch pr.Kind {
	case PointerNull:
		w.WriteU32(0)
		return nil
	case PointerExternal:
		w.WriteU32(uint32(pr.Index) | 0x80000000)
		return nil
	case PointerInternal:
		if pr.Index < 0 || pr.Index >= len(ws.objectIndex) {
			return fmt.Errorf("%w: internal pointer index %d out of range", ErrBadLayout, pr.Index)
		}
		w.WriteU32(uint32(pr.Index) + 1)
		return nil
	default:
		return fmt.Errorf("%w: unknown pointer kind %d", ErrBadLayout, pr.Kind)
	}
}
