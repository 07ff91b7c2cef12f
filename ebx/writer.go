package ebx

import (
	"fmt"

	"github.com/frostbite-tools/ebx/internal/container"
	"github.com/frostbite-tools/ebx/internal/restab"
	"github.com/frostbite-tools/ebx/internal/stream"
	"github.com/frostbite-tools/ebx/schema"
)

// Writer serializes a typed Asset back into an EBX byte stream.
type Writer interface {
	WriteAsset(asset *Asset) ([]byte, error)
}

// PartitionWriter implements Writer for the Partition dialect.
type PartitionWriter struct {
	oracle   schema.Oracle
	registry *schema.StaticRegistry

	// Magic selects the on-wire version: container.MagicV2 or
	// container.MagicV4 (the default). Only MagicV4 carries a boxed
	// value table; non-null boxed values in the asset are rejected for
	// MagicV2.
	Magic uint32
}

// NewPartitionWriter creates a writer that resolves schema metadata
// through oracle. registry is optional and, when set, bounds Inherited
// splice emission to types within its root namespace; the same bound
// limits which base types the writer's prepass collects.
func NewPartitionWriter(oracle schema.Oracle, registry *schema.StaticRegistry) *PartitionWriter {
	return &PartitionWriter{oracle: oracle, registry: registry, Magic: container.MagicV4}
}

// WriteAsset implements Writer.
func (pw *PartitionWriter) WriteAsset(asset *Asset) ([]byte, error) {
	layouts, err := newPrepass(pw.oracle, pw.registry).run(asset.Objects)
	if err != nil {
		return nil, err
	}

	byNameHash := make(map[uint32]*typeLayout, len(layouts))
	byArrayHash := make(map[uint32]*typeLayout)
	for i, l := range layouts {
		l.index = i
		if l.info != nil {
			byNameHash[l.nameHash] = l
		} else {
			byArrayHash[l.nameHash] = l
		}
	}

	var allFields []restab.FieldDescriptor
	for _, l := range layouts {
		if err := pw.layoutType(l, byNameHash, byArrayHash, &allFields); err != nil {
			return nil, err
		}
	}

	types := make([]restab.TypeDescriptor, len(layouts))
	for i, l := range layouts {
		name := ""
		if l.info != nil {
			name = l.info.Name
		}
		types[i] = restab.TypeDescriptor{
			NameHash:   l.nameHash,
			FieldIndex: l.fieldBase,
			FieldCount: uint8(len(l.fields)),
			Align:      l.align,
			Size:       l.size,
			SecondSize: l.size,
			Name:       name,
			Index:      i,
		}
	}

	exportedCount, err := exportedPrefixCount(asset.Objects)
	if err != nil {
		return nil, err
	}

	instRows, err := pw.buildInstanceRows(asset.Objects, byNameHash)
	if err != nil {
		return nil, err
	}

	strings := newStringPool()
	arrays := stream.NewWriter()
	boxed := stream.NewWriter()

	byIndex := make([]*typeLayout, len(layouts))
	for _, l := range layouts {
		byIndex[l.index] = l
	}

	ws := &writeState{
		pw:          pw,
		strings:     strings,
		arrays:      arrays,
		boxed:       boxed,
		byNameHash:  byNameHash,
		byArrayHash: byArrayHash,
		byIndex:     byIndex,
		objectIndex: make(map[*schema.Object]int, len(asset.Objects)),
	}
	for i, inst := range asset.Objects {
		ws.objectIndex[inst.Object] = i
	}

	dataW := stream.NewWriter()
	for i, inst := range asset.Objects {
		l := byNameHash[inst.Object.TypeHash]
		dataW.Pad(int(max8(l.align, 1)))
		if i < exportedCount {
			dataW.WriteGUID(inst.ClassGuid.Guid)
		}
		dataW.WriteBytes(make([]byte, 8))
		startOffset := dataW.Tell()
		if err := ws.writeClass(dataW, l, inst.Object, startOffset); err != nil {
			return nil, fmt.Errorf("%w: instance %d: %v", ErrBadLayout, i, err)
		}
		// Trailing pad mirrors decodeInstance's post-readClass Align
		// call, so the next instance's leading pad (computed from ITS
		// OWN alignment, which may differ) starts from the position the
		// reader actually lands on.
		dataW.Pad(int(max8(l.align, 1)))
	}
	arrayRows := ws.arrayRows
	boxedRows := ws.boxedRows

	// Every region below is padded to a 16-byte multiple: the reader
	// aligns struct/instance bodies at their ABSOLUTE stream position
	// (decodeInstance's leading/trailing Align, readValue's Struct
	// case), while the per-instance/per-element Pad calls above only
	// keep each side buffer self-consistent relative to its own offset
	// 0. The two agree only when every region's start offset is itself
	// a multiple of every alignment that can occur within it, so the
	// string pool, instance-data, and array-data regions all need their
	// length padded up to 16 — the widest alignment any member can
	// carry — before the next region is appended.
	stringsW := stream.NewWriter()
	stringsW.WriteBytes(strings.bytes())
	stringsW.Pad(16)
	dataW.Pad(16)
	arrays.Pad(16)

	w := stream.NewWriter()
	container.WriteHeader(w, pw.Magic, [16]byte(asset.FileGuid))
	container.WriteImports(w, asset.Imports)

	names := container.CollectNames(types, allFields)
	typeNamesLen := container.WriteTypeNames(w, names)

	container.WriteFieldDescriptors(w, allFields)
	container.WriteTypeDescriptors(w, types)
	container.WriteInstanceTable(w, instRows)
	container.WriteArrayTable(w, arrayRows)
	if pw.Magic == container.MagicV4 {
		container.WriteBoxedValueTable(w, boxedRows)
	} else if len(boxedRows) > 0 {
		return nil, fmt.Errorf("%w: boxed values require the v4 dialect", ErrUnsupported)
	}

	w.Pad(16)
	stringsOffset := w.Tell()
	w.WriteBytes(stringsW.Bytes())
	w.WriteBytes(dataW.Bytes())
	w.WriteBytes(arrays.Bytes())
	boxedValuesOffset := w.Tell()
	w.WriteBytes(boxed.Bytes())

	hdr := &container.Header{
		Magic:                pw.Magic,
		StringsOffset:        uint32(stringsOffset),
		ImportCount:          uint32(len(asset.Imports)),
		InstanceCount:        uint16(len(instRows)),
		ExportedCount:        uint16(exportedCount),
		UniqueTypeCount:      uint16(len(byNameHash)),
		TypeDescriptorCount:  uint16(len(types)),
		FieldDescriptorCount: uint16(len(allFields)),
		TypeNamesLen:         typeNamesLen,
		StringsLen:           uint32(stringsW.Len()),
		ArrayCount:           uint32(len(arrayRows)),
		DataLen:              uint32(dataW.Len()),
		FileGuid:             [16]byte(asset.FileGuid),
		BoxedValuesCount:     uint32(len(boxedRows)),
		BoxedValuesOffset:    uint32(boxedValuesOffset),
	}
	hdr.StringsAndDataLen = hdr.StringsLen + hdr.DataLen
	container.PatchHeader(w, hdr)

	return w.Bytes(), nil
}

// layoutType assigns l.size, l.align, l.fields, and l.fieldBase,
// appending l's own fields to allFields. Dependencies are guaranteed to
// already be laid out, since layouts arrive in topological order.
func (pw *PartitionWriter) layoutType(l *typeLayout, byNameHash, byArrayHash map[uint32]*typeLayout, allFields *[]restab.FieldDescriptor) error {
	if l.info == nil {
		// Array element-holder: a single field already built by the
		// prepass, sized/aligned like a direct value of its element kind.
		f := l.fields[0]
		kind := f.Flags.Kind()
		size, align, typeRef, err := pw.memberShape(kind, l.elemOf.ElemTypeHash, byNameHash)
		if err != nil {
			return err
		}
		f.TypeRef = restab.TypeRef(typeRef)
		l.fields[0] = f
		l.size, l.align = uint16(size), align
		l.fieldBase = int32(len(*allFields))
		*allFields = append(*allFields, l.fields...)
		return nil
	}

	var own []restab.FieldDescriptor
	offset := 0
	align := uint8(1)

	if l.info.ParentHash != 0 && pw.inRootNamespace(l.info.Namespace) {
		base, ok := byNameHash[l.info.ParentHash]
		if !ok {
			return fmt.Errorf("%w: base type %d of %q not in layout set", ErrSchemaMismatch, l.info.ParentHash, l.info.Name)
		}
		own = append(own, restab.FieldDescriptor{
			NameHash: base.nameHash,
			Flags:    restab.FieldFlags(restab.Inherited),
			TypeRef:  restab.TypeRef(base.index),
			Name:     base.info.Name,
		})
		offset = int(base.size)
		if base.align > align {
			align = base.align
		}
	}

	for i := range l.info.Properties {
		p := &l.info.Properties[i]
		if p.Transient {
			// Transient properties get no field descriptor and
			// contribute nothing to the type's size/alignment: they
			// are never serialized (spec.md §4.4).
			continue
		}
		var size int
		var falign uint8
		var typeRef uint16
		if p.Kind == restab.Array {
			// Array fields are a 4-byte index into the array table; the
			// element kind/ref lives on the synthesized holder type
			// reachable from the array table row, not on this field.
			size, falign, typeRef = 4, 4, 0
		} else {
			var err error
			size, falign, typeRef, err = pw.memberShape(p.Kind, p.TypeHash, byNameHash)
			if err != nil {
				return fmt.Errorf("property %q of %q: %w", p.Name, l.info.Name, err)
			}
		}
		if falign > align {
			align = falign
		}
		offset = alignUp(offset, int(falign))
		own = append(own, restab.FieldDescriptor{
			NameHash:     p.NameHash,
			Flags:        restab.FieldFlags(p.Kind),
			TypeRef:      restab.TypeRef(typeRef),
			DataOffset:   uint32(offset),
			SecondOffset: uint32(offset),
			Name:         p.Name,
		})
		offset += size
	}

	l.size = uint16(alignUp(offset, int(align)))
	l.align = align
	l.fields = own
	l.fieldBase = int32(len(*allFields))
	*allFields = append(*allFields, own...)
	return nil
}

// memberShape returns the on-wire size, alignment, and (for Struct
// members) table-index type ref of a value of the given kind. typeHash
// is only consulted for Struct.
func (pw *PartitionWriter) memberShape(kind restab.TypeEnum, typeHash uint32, byNameHash map[uint32]*typeLayout) (size int, align uint8, typeRef uint16, err error) {
	switch kind {
	case restab.Boolean, restab.Int8, restab.UInt8:
		return 1, 1, 0, nil
	case restab.Int16, restab.UInt16:
		return 2, 2, 0, nil
	case restab.Int32, restab.UInt32, restab.Enum, restab.Float32:
		return 4, 4, 0, nil
	case restab.Int64, restab.UInt64, restab.Float64, restab.ResourceRef:
		return 8, 8, 0, nil
	case restab.GuidKind:
		return 16, 4, 0, nil
	case restab.Sha1:
		return 20, 1, 0, nil
	case restab.String:
		return 32, 1, 0, nil
	case restab.CString:
		return 4, 4, 0, nil
	case restab.FileRef, restab.TypeRefKind, restab.Delegate:
		return 8, 4, 0, nil
	case restab.BoxedValueRef:
		return 16, 4, 0, nil
	case restab.Class:
		return 4, 4, 0, nil
	case restab.Struct:
		dep, ok := byNameHash[typeHash]
		if !ok {
			return 0, 0, 0, fmt.Errorf("%w: struct member type %d not in layout set", ErrSchemaMismatch, typeHash)
		}
		return int(dep.size), dep.align, uint16(dep.index), nil
	default:
		return 0, 0, 0, fmt.Errorf("%w: type enum %d", ErrUnsupported, kind)
	}
}

func (pw *PartitionWriter) inRootNamespace(ns string) bool {
	if pw.registry == nil {
		return true
	}
	return pw.registry.InRootNamespace(ns)
}

// exportedPrefixCount validates that every object with a non-zero class
// GUID forms a contiguous leading run of objects (the layout
// PartitionReader assumes: "index < exportedCount") and returns its
// length.
func exportedPrefixCount(objects []*Instance) (int, error) {
	n := 0
	for n < len(objects) && !objects[n].ClassGuid.Guid.IsZero() {
		n++
	}
	for i := n; i < len(objects); i++ {
		if !objects[i].ClassGuid.Guid.IsZero() {
			return 0, fmt.Errorf("%w: exported instances must be a contiguous leading prefix (instance %d)", ErrBadLayout, i)
		}
	}
	return n, nil
}

// buildInstanceRows groups consecutive same-type instances into
// run-length rows, mirroring the reader's expansion in reverse.
func (pw *PartitionWriter) buildInstanceRows(objects []*Instance, byNameHash map[uint32]*typeLayout) ([]container.InstanceRow, error) {
	var rows []container.InstanceRow
	for _, inst := range objects {
		l, ok := byNameHash[inst.Object.TypeHash]
		if !ok {
			return nil, fmt.Errorf("%w: no layout for instance type %d", ErrSchemaMismatch, inst.Object.TypeHash)
		}
		ref := restab.TypeRef(l.index)
		if n := len(rows); n > 0 && rows[n-1].TypeRef == ref && rows[n-1].Count < 0xFFFF {
			rows[n-1].Count++
			continue
		}
		rows = append(rows, container.InstanceRow{TypeRef: ref, Count: 1})
	}
	return rows, nil
}

func alignUp(offset, align int) int {
	if align <= 1 {
		return offset
	}
	if mod := offset % align; mod != 0 {
		offset += align - mod
	}
	return offset
}

func max8(a, b uint8) uint8 {
	if a > b {
		return a
	}
	return b
}
