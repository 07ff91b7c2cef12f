package ebx

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/frostbite-tools/ebx/internal/container"
	"github.com/frostbite-tools/ebx/internal/restab"
	"github.com/frostbite-tools/ebx/internal/stream"
	"github.com/frostbite-tools/ebx/schema"
)

// Reader parses an EBX byte stream into a typed Asset. Both dialects
// (Partition and RIFF) satisfy this one contract, mirroring the way
// msf.File and pdb.File share an Open/Close/accessor shape in the
// teacher despite being different container formats.
type Reader interface {
	ReadAsset() (*Asset, error)
}

// PartitionReader implements Reader for the Partition dialect (magic
// values 2 and 4).
type PartitionReader struct {
	oracle schema.Oracle

	// Logger receives a debug-level line for every per-field assignment
	// that is tolerated and skipped (spec.md §7). Defaults to a
	// discarding logger.
	Logger *log.Logger

	r      *stream.Reader
	header *container.Header
	table  *restab.Table
	arrays []restab.ArrayRow
	boxed  []restab.BoxedValueRow

	asset *Asset
}

// NewPartitionReader creates a reader over data, an entire Partition
// EBX payload held in memory (mirroring tpi.ParseStream's
// whole-buffer-in-memory design, since EBX assets are small compared to
// a PDB's type stream).
func NewPartitionReader(data []byte, oracle schema.Oracle) *PartitionReader {
	return &PartitionReader{
		oracle: oracle,
		Logger: log.New(io.Discard, "", 0),
		r:      stream.NewReader(data),
	}
}

// ReadAsset implements Reader.
func (pr *PartitionReader) ReadAsset() (*Asset, error) {
	hdr, err := container.ReadHeader(pr.r)
	if err != nil {
		if errors.Is(err, container.ErrBadMagic) {
			return nil, ErrBadMagic
		}
		return nil, &ParseError{Stage: "header", Offset: pr.r.Tell(), Message: "reading fixed header", Err: err}
	}
	pr.header = hdr

	asset := &Asset{FileGuid: restab.Guid(hdr.FileGuid)}
	pr.asset = asset

	imports, err := container.ReadImports(pr.r, hdr.ImportCount)
	if err != nil {
		return nil, &ParseError{Stage: "imports", Offset: pr.r.Tell(), Message: "reading import table", Err: err}
	}
	asset.Imports = imports
	asset.Dependencies = dependencySet(imports)

	names, err := container.ReadTypeNames(pr.r, hdr.TypeNamesLen)
	if err != nil {
		return nil, &ParseError{Stage: "type names", Offset: pr.r.Tell(), Message: "reading type name pool", Err: err}
	}

	fields, err := container.ReadFieldDescriptors(pr.r, hdr.FieldDescriptorCount, names)
	if err != nil {
		return nil, &ParseError{Stage: "field descriptors", Offset: pr.r.Tell(), Message: "reading field descriptors", Err: err}
	}

	types, err := container.ReadTypeDescriptors(pr.r, hdr.TypeDescriptorCount, names)
	if err != nil {
		return nil, &ParseError{Stage: "type descriptors", Offset: pr.r.Tell(), Message: "reading type descriptors", Err: err}
	}
	pr.table = restab.New(types, fields)

	instanceRows, err := container.ReadInstanceTable(pr.r, hdr.InstanceCount)
	if err != nil {
		return nil, &ParseError{Stage: "instance table", Offset: pr.r.Tell(), Message: "reading instance table", Err: err}
	}

	arrays, err := container.ReadArrayTable(pr.r, hdr.ArrayCount)
	if err != nil {
		return nil, &ParseError{Stage: "array table", Offset: pr.r.Tell(), Message: "reading array table", Err: err}
	}
	pr.arrays = arrays

	var boxed []restab.BoxedValueRow
	if hdr.Magic == container.MagicV4 {
		boxed, err = container.ReadBoxedValueTable(pr.r, hdr.BoxedValuesCount)
		if err != nil {
			return nil, &ParseError{Stage: "boxed value table", Offset: pr.r.Tell(), Message: "reading boxed value table", Err: err}
		}
	}
	pr.boxed = boxed

	if err := pr.r.Seek(int(hdr.InstanceDataOffset())); err != nil {
		return nil, &ParseError{Stage: "instance data", Offset: pr.r.Tell(), Message: "seeking to instance data region", Err: err}
	}

	instanceTypes, err := pr.preallocate(instanceRows, int(hdr.ExportedCount))
	if err != nil {
		return nil, err
	}

	for i, inst := range asset.Objects {
		if err := pr.decodeInstance(i, inst, instanceTypes[i], int(hdr.ExportedCount)); err != nil {
			return nil, &ParseError{Stage: fmt.Sprintf("instance %d", i), Offset: pr.r.Tell(), Message: "decoding instance body", Err: err}
		}
	}

	asset.OnLoadComplete()
	return asset, nil
}

// preallocate expands the (typeRef, count) instance rows into one
// blank object per repetition, in order, and returns the parallel slice
// of resolved type descriptors.
func (pr *PartitionReader) preallocate(rows []container.InstanceRow, exportedCount int) ([]*restab.TypeDescriptor, error) {
	var types []*restab.TypeDescriptor
	for _, row := range rows {
		t, err := pr.table.ResolveType(row.TypeRef)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadLayout, err)
		}
		for i := uint16(0); i < row.Count; i++ {
			obj, err := pr.oracle.NewInstance(t.NameHash)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
			}
			pr.asset.Objects = append(pr.asset.Objects, &Instance{Object: obj})
			pr.asset.RefCounts = append(pr.asset.RefCounts, 0)
			types = append(types, t)
		}
	}
	return types, nil
}

// decodeInstance implements spec.md §4.3's per-instance decode steps.
func (pr *PartitionReader) decodeInstance(index int, inst *Instance, t *restab.TypeDescriptor, exportedCount int) error {
	pr.r.Align(int(t.Alignment()))

	var guid restab.Guid
	if index < exportedCount {
		g, err := pr.r.ReadGUID()
		if err != nil {
			return err
		}
		guid = restab.Guid(g)
	}

	// Every instance carries an 8-byte object header immediately before
	// its field data; this decoder skips it without interpreting it, and
	// PartitionWriter emits it as zero bytes. Field DataOffset values
	// are relative to the first byte of field data itself, the same
	// convention a nested Struct field's body uses (see the Struct case
	// in readValue) — so startOffset is taken after the header, not
	// before it.
	if err := pr.r.Skip(8); err != nil {
		return err
	}

	inst.ClassGuid = AssetClassGuid{Guid: guid, Index: index}

	startOffset := pr.r.Tell()
	if err := pr.readClass(t, inst.Object, startOffset); err != nil {
		return err
	}

	pr.r.Align(int(t.Alignment()))
	return nil
}

// readClass walks every declared field of t, splicing in Inherited
// base-class fields in place, per spec.md §4.3.
func (pr *PartitionReader) readClass(t *restab.TypeDescriptor, obj *schema.Object, startOffset int) error {
	for j := 0; j < int(t.FieldCount); j++ {
		field, err := pr.table.FieldAt(t, j)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadLayout, err)
		}
		if err := pr.r.Seek(startOffset + int(field.DataOffset)); err != nil {
			return fmt.Errorf("%w: %v", ErrBadLayout, err)
		}

		kind := field.Flags.Kind()

		if kind == restab.Inherited {
			baseType, err := pr.table.ResolveTypeRelative(t, field.TypeRef, field.Flags.IsRelative())
			if err != nil {
				return fmt.Errorf("%w: %v", ErrBadLayout, err)
			}
			if err := pr.readClass(baseType, obj, startOffset); err != nil {
				return err
			}
			continue
		}

		if kind == restab.Array {
			elems, err := pr.readArray(t, field)
			if err != nil {
				if isStructuralError(err) {
					return err
				}
				pr.skipField(t, field, obj, err)
				continue
			}
			existing, _ := obj.Fields[field.NameHash].([]any)
			obj.Fields[field.NameHash] = append(existing, elems...)
			continue
		}

		val, err := pr.readValue(kind, field.TypeRef, t, field.Flags.IsRelative())
		if err != nil {
			if isStructuralError(err) {
				return err
			}
			pr.skipField(t, field, obj, err)
			continue
		}
		obj.Fields[field.NameHash] = pr.applyWrapper(t, field.NameHash, val)
	}
	return nil
}

// isStructuralError reports whether err signals a stream the reader can
// no longer safely continue from (a bad seek, an out-of-range table
// index, an unresolvable type ref) as opposed to a per-field dispatch or
// assignment failure that skipField can tolerate in place.
func isStructuralError(err error) bool {
	return errors.Is(err, ErrBadLayout) || errors.Is(err, ErrUnsupported)
}

// skipField implements spec.md §7's per-field assignment tolerance:
// failures here are logged at debug level and otherwise ignored so
// forward/backward schema drift does not abort the whole parse. Callers
// must only reach this for per-field assignment-level failures; a
// structurally unrecoverable stream (ErrBadLayout/ErrUnsupported) is
// filtered out by isStructuralError and propagated instead, since the
// reader cannot safely continue once its position is unknown.
func (pr *PartitionReader) skipField(t *restab.TypeDescriptor, field *restab.FieldDescriptor, obj *schema.Object, err error) {
	pr.Logger.Printf("ebx: skipping field %q of type %q: %v", field.Name, t.Name, err)
}

// readArray implements the Array field path: an i32 index into the
// array table, then decoding Count elements at arraysOffset+Offset
// using the array type's first field descriptor as the element kind
// and ref.
func (pr *PartitionReader) readArray(parent *restab.TypeDescriptor, field *restab.FieldDescriptor) ([]any, error) {
	idx, err := pr.r.ReadI32()
	if err != nil {
		return nil, err
	}
	if idx < 0 {
		return nil, nil
	}
	if int(idx) >= len(pr.arrays) {
		return nil, fmt.Errorf("%w: array index %d out of range", ErrBadLayout, idx)
	}
	row := pr.arrays[idx]

	arrType, err := pr.table.ResolveType(restab.TypeRef(row.TypeRef))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadLayout, err)
	}
	elemField, err := pr.table.FieldAt(arrType, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadLayout, err)
	}

	saved := pr.r.Tell()
	if err := pr.r.Seek(int(pr.header.ArraysOffset()) + int(row.Offset)); err != nil {
		return nil, err
	}

	elems := make([]any, 0, row.Count)
	for k := uint32(0); k < row.Count; k++ {
		val, err := pr.readValue(elemField.Flags.Kind(), elemField.TypeRef, arrType, elemField.Flags.IsRelative())
		if err != nil {
			return nil, err
		}
		elems = append(elems, val)
	}

	return elems, pr.r.Seek(saved)
}

// readValue decodes a single value of the given kind, shared by
// ordinary field decode, array element decode, and boxed-value decode.
func (pr *PartitionReader) readValue(kind restab.TypeEnum, typeRef restab.TypeRef, parent *restab.TypeDescriptor, relative bool) (any, error) {
	switch kind {
	case restab.Boolean:
		v, err := pr.r.ReadU8()
		return v != 0, err
	case restab.Int8:
		return pr.r.ReadI8()
	case restab.UInt8:
		return pr.r.ReadU8()
	case restab.Int16:
		return pr.r.ReadI16()
	case restab.UInt16:
		return pr.r.ReadU16()
	case restab.Int32:
		return pr.r.ReadI32()
	case restab.UInt32:
		return pr.r.ReadU32()
	case restab.Int64:
		return pr.r.ReadI64()
	case restab.UInt64:
		return pr.r.ReadU64()
	case restab.Float32:
		return pr.r.ReadFloat32()
	case restab.Float64:
		return pr.r.ReadFloat64()
	case restab.GuidKind:
		g, err := pr.r.ReadGUID()
		return restab.Guid(g), err
	case restab.Sha1:
		b, err := pr.r.ReadBytes(20)
		return b, err
	case restab.String:
		return pr.r.ReadFixedString(32)
	case restab.CString:
		off, err := pr.r.ReadU32()
		if err != nil {
			return nil, err
		}
		return pr.readString(off)
	case restab.ResourceRef:
		return pr.r.ReadU64()
	case restab.FileRef:
		off, err := pr.r.ReadU32()
		if err != nil {
			return nil, err
		}
		if _, err := pr.r.ReadU32(); err != nil {
			return nil, err
		}
		return pr.readString(off)
	case restab.TypeRefKind, restab.Delegate:
		off, err := pr.r.ReadU32()
		if err != nil {
			return nil, err
		}
		if _, err := pr.r.ReadU32(); err != nil {
			return nil, err
		}
		name, err := pr.readString(off)
		if err != nil {
			return nil, err
		}
		return parseTypeRefValue(name), nil
	case restab.BoxedValueRef:
		idx, err := pr.r.ReadI32()
		if err != nil {
			return nil, err
		}
		if err := pr.r.Skip(12); err != nil {
			return nil, err
		}
		if idx == -1 {
			return nil, nil
		}
		if int(idx) >= len(pr.boxed) {
			return nil, fmt.Errorf("%w: boxed value index %d out of range", ErrBadLayout, idx)
		}
		return pr.readBoxedValue(pr.boxed[idx])
	case restab.Struct:
		structType, err := pr.table.ResolveTypeRelative(parent, typeRef, relative)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadLayout, err)
		}
		pr.r.Align(int(structType.Alignment()))
		obj, err := pr.oracle.NewInstance(structType.NameHash)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
		}
		nestedStart := pr.r.Tell()
		if err := pr.readClass(structType, obj, nestedStart); err != nil {
			return nil, err
		}
		return obj, nil
	case restab.Enum:
		return pr.r.ReadI32()
	case restab.Class:
		return pr.readPointerRef()
	case restab.DbObject:
		return nil, ErrUnsupported
	case restab.Array:
		return nil, fmt.Errorf("%w: nested arrays are not supported", ErrUnsupported)
	default:
		return nil, fmt.Errorf("%w: type enum %d", ErrUnsupported, kind)
	}
}

// readBoxedValue decodes the value found at a boxed-value row's
// on-wire location. Array-typed boxed values are decoded by the same
// "i32 index into the array table" convention as ordinary array fields
// (spec.md §4.3's "recursing into array decode if needed"); every other
// kind is a single readValue call.
func (pr *PartitionReader) readBoxedValue(row restab.BoxedValueRow) (any, error) {
	saved := pr.r.Tell()
	if err := pr.r.Seek(int(pr.header.BoxedValuesOffset) + int(row.Offset)); err != nil {
		return nil, err
	}

	kind := restab.TypeEnum(row.Type)
	var value any
	var err error
	if kind == restab.Array {
		arrType, rerr := pr.table.ResolveType(restab.TypeRef(row.TypeRef))
		if rerr != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadLayout, rerr)
		}
		field := &restab.FieldDescriptor{TypeRef: restab.TypeRef(row.TypeRef)}
		value, err = pr.readArray(arrType, field)
	} else {
		value, err = pr.readValue(kind, restab.TypeRef(row.TypeRef), nil, false)
	}
	if err != nil {
		return nil, err
	}

	if serr := pr.r.Seek(saved); serr != nil {
		return nil, serr
	}
	return &BoxedValue{Kind: kind, Value: value}, nil
}

// readString seeks to stringsOffset+offset, reads a NUL-terminated
// string, and restores the reader's position. offset == 0xFFFFFFFF (the
// "no string" sentinel) yields "".
func (pr *PartitionReader) readString(offset uint32) (string, error) {
	if offset == 0xFFFFFFFF {
		return "", nil
	}
	saved := pr.r.Tell()
	if err := pr.r.Seek(int(pr.header.StringsOffset) + int(offset)); err != nil {
		return "", err
	}
	s, err := pr.r.ReadCString()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptString, err)
	}
	if serr := pr.r.Seek(saved); serr != nil {
		return "", serr
	}
	return s, nil
}

// readPointerRef decodes a Class-kind field: null, internal (incrementing
// the target's ref-count), or external.
func (pr *PartitionReader) readPointerRef() (PointerRef, error) {
	raw, err := pr.r.ReadU32()
	if err != nil {
		return PointerRef{}, err
	}
	switch {
	case raw == 0:
		return PointerRef{Kind: PointerNull}, nil
	case raw&0x80000000 != 0:
		return PointerRef{Kind: PointerExternal, Index: int(raw & 0x7FFFFFFF)}, nil
	default:
		idx := int(raw) - 1
		if idx < 0 || idx >= len(pr.asset.RefCounts) {
			return PointerRef{}, fmt.Errorf("%w: internal pointer index %d out of range", ErrBadLayout, idx)
		}
		pr.asset.RefCounts[idx]++
		return PointerRef{Kind: PointerInternal, Index: idx}, nil
	}
}

// applyWrapper lifts a decoded raw value into its schema-declared
// wrapper representation, if the property is a primitive wrapper
// (spec.md §4.3's "primitive wrapping").
func (pr *PartitionReader) applyWrapper(t *restab.TypeDescriptor, nameHash uint32, raw any) any {
	info, ok := pr.oracle.TypeByHash(t.NameHash)
	if !ok {
		return raw
	}
	prop, ok := info.PropertyByHash(nameHash)
	if !ok || prop.WrapPrimitive == nil {
		return raw
	}
	return prop.WrapPrimitive(raw)
}

// dependencySet derives the unique set of file GUIDs referenced by
// imports, in first-appearance order.
func dependencySet(imports []restab.ImportRef) []restab.Guid {
	seen := make(map[restab.Guid]bool)
	var deps []restab.Guid
	for _, imp := range imports {
		if !seen[imp.FileGuid] {
			seen[imp.FileGuid] = true
			deps = append(deps, imp.FileGuid)
		}
	}
	return deps
}

// parseTypeRefValue prefers interpreting name as a GUID string; falls
// back to keeping it as a bare name.
func parseTypeRefValue(name string) TypeRefValue {
	if g, ok := parseGuidString(name); ok {
		return TypeRefValue{Name: name, Guid: g, IsGuid: true}
	}
	return TypeRefValue{Name: name}
}
