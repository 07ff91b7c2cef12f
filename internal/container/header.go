// Package container implements the fixed Partition-dialect EBX header
// and its descriptor/instance/array/boxed-value tables: the on-wire
// framing spec.md §6 defines. It plays the role the teacher's msf
// package plays for PDB — msf.SuperBlock validates a fixed header and
// msf.StreamDirectory parses a table of fixed records following a
// count; container.Header and the table readers in tables.go do the
// same for EBX, adapted to a single flat byte stream instead of an
// indirected, block-chased container.
package container

import (
	"errors"
	"fmt"

	"github.com/frostbite-tools/ebx/internal/stream"
)

// Magic values for the two known Partition-dialect versions.
const (
	MagicV2 uint32 = 2
	MagicV4 uint32 = 4
)

// Fixed byte offsets of header fields, shared by the reader (to know
// where the table regions begin) and the writer (to backpatch them once
// downstream lengths are known).
const (
	OffMagic                = 0
	OffStringsOffset        = 4
	OffStringsAndDataLen    = 8
	OffImportCount          = 12
	OffInstanceCount        = 16
	OffExportedCount        = 18
	OffUniqueTypeCount      = 20
	OffTypeDescriptorCount  = 22
	OffFieldDescriptorCount = 24
	OffTypeNamesLen         = 26
	OffStringsLen           = 28
	OffArrayCount           = 32
	OffDataLen              = 36
	OffFileGuid             = 40

	// v4-only trailing fields.
	OffBoxedValuesCountV4  = 56
	OffBoxedValuesOffsetV4 = 60

	// HeaderSizeV4 is the fixed header length when magic == 4.
	HeaderSizeV4 = 64
	// HeaderSizeV2 is the fixed header length when magic == 2 (the
	// boxed-value fields are replaced by 16 bytes of padding).
	HeaderSizeV2 = 72
)

// ErrBadMagic is returned when the stream does not begin with a
// recognized Partition magic value.
var ErrBadMagic = errors.New("container: unsupported or invalid magic")

// Header is the decoded form of the fixed Partition header.
type Header struct {
	Magic uint32

	StringsOffset     uint32
	StringsAndDataLen uint32

	ImportCount          uint32
	InstanceCount        uint16
	ExportedCount        uint16
	UniqueTypeCount      uint16
	TypeDescriptorCount  uint16
	FieldDescriptorCount uint16
	TypeNamesLen         uint16
	StringsLen           uint32
	ArrayCount           uint32
	DataLen              uint32
	FileGuid             [16]byte

	BoxedValuesCount  uint32
	BoxedValuesOffset uint32
}

// ArraysOffset returns the absolute offset of the array-table region.
func (h *Header) ArraysOffset() uint32 {
	return h.StringsOffset + h.StringsLen + h.DataLen
}

// InstanceDataOffset returns the absolute offset of the instance-data
// region (where decoding of the first instance body begins).
func (h *Header) InstanceDataOffset() uint32 {
	return h.StringsOffset + h.StringsLen
}

// ReadHeader parses the fixed header starting at the reader's current
// position (expected to be 0).
func ReadHeader(r *stream.Reader) (*Header, error) {
	magic, err := r.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("container: reading magic: %w", err)
	}
	if magic != MagicV2 && magic != MagicV4 {
		return nil, fmt.Errorf("%w: %d", ErrBadMagic, magic)
	}

	h := &Header{Magic: magic}

	if h.StringsOffset, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if h.StringsAndDataLen, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if h.ImportCount, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if h.InstanceCount, err = r.ReadU16(); err != nil {
		return nil, err
	}
	if h.ExportedCount, err = r.ReadU16(); err != nil {
		return nil, err
	}
	if h.UniqueTypeCount, err = r.ReadU16(); err != nil {
		return nil, err
	}
	if h.TypeDescriptorCount, err = r.ReadU16(); err != nil {
		return nil, err
	}
	if h.FieldDescriptorCount, err = r.ReadU16(); err != nil {
		return nil, err
	}
	if h.TypeNamesLen, err = r.ReadU16(); err != nil {
		return nil, err
	}
	if h.StringsLen, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if h.ArrayCount, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if h.DataLen, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if h.FileGuid, err = r.ReadGUID(); err != nil {
		return nil, err
	}

	if magic == MagicV4 {
		if h.BoxedValuesCount, err = r.ReadU32(); err != nil {
			return nil, err
		}
		rel, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		h.BoxedValuesOffset = rel + h.StringsOffset + h.StringsLen
	} else {
		if err := r.Skip(16); err != nil {
			return nil, err
		}
	}

	return h, nil
}

// WriteHeader emits a header with every length/count field zeroed,
// reserving the fixed-size region so the caller can append the
// descriptor tables and instance/array/boxed-value data afterward, then
// backpatch the real values in place with Patch*.
func WriteHeader(w *stream.Writer, magic uint32, fileGuid [16]byte) {
	w.WriteU32(magic)               // OffMagic
	w.WriteU32(0)                   // OffStringsOffset
	w.WriteU32(0)                   // OffStringsAndDataLen
	w.WriteU32(0)                   // OffImportCount
	w.WriteU16(0)                   // OffInstanceCount
	w.WriteU16(0)                   // OffExportedCount
	w.WriteU16(0)                   // OffUniqueTypeCount
	w.WriteU16(0)                   // OffTypeDescriptorCount
	w.WriteU16(0)                   // OffFieldDescriptorCount
	w.WriteU16(0)                   // OffTypeNamesLen
	w.WriteU32(0)                   // OffStringsLen
	w.WriteU32(0)                   // OffArrayCount
	w.WriteU32(0)                   // OffDataLen
	w.WriteGUID(fileGuid)           // OffFileGuid
	if magic == MagicV4 {
		w.WriteU32(0) // OffBoxedValuesCountV4
		w.WriteU32(0) // OffBoxedValuesOffsetV4
	} else {
		w.WriteBytes(make([]byte, 16))
	}
}

// PatchHeader backpatches every length/count field of a header
// previously reserved with WriteHeader, once layout is fully known.
func PatchHeader(w *stream.Writer, h *Header) {
	w.PatchU32At(OffStringsOffset, h.StringsOffset)
	w.PatchU32At(OffStringsAndDataLen, h.StringsAndDataLen)
	w.PatchU32At(OffImportCount, h.ImportCount)
	w.PatchU16At(OffInstanceCount, h.InstanceCount)
	w.PatchU16At(OffExportedCount, h.ExportedCount)
	w.PatchU16At(OffUniqueTypeCount, h.UniqueTypeCount)
	w.PatchU16At(OffTypeDescriptorCount, h.TypeDescriptorCount)
	w.PatchU16At(OffFieldDescriptorCount, h.FieldDescriptorCount)
	w.PatchU16At(OffTypeNamesLen, h.TypeNamesLen)
	w.PatchU32At(OffStringsLen, h.StringsLen)
	w.PatchU32At(OffArrayCount, h.ArrayCount)
	w.PatchU32At(OffDataLen, h.DataLen)

	if h.Magic == MagicV4 {
		w.PatchU32At(OffBoxedValuesCountV4, h.BoxedValuesCount)
		rel := h.BoxedValuesOffset - h.StringsOffset - h.StringsLen
		w.PatchU32At(OffBoxedValuesOffsetV4, rel)
	}
}
