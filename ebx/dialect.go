package ebx

import (
	"encoding/binary"
	"fmt"

	"github.com/frostbite-tools/ebx/internal/container"
	"github.com/frostbite-tools/ebx/schema"
)

// MagicRIFF is the little-endian "EBX\x06" tag a RIFF-dialect (v6)
// payload begins with: unlike the Partition dialect, RIFF's first four
// bytes are not a bare version number, so dialect detection peeks both
// shapes before picking one.
const MagicRIFF uint32 = 0x06584245

// Open inspects data's leading bytes and returns the Reader for
// whichever EBX dialect it holds: *PartitionReader for magic 2 or 4,
// *riffReader (stub) for MagicRIFF. Mirrors the teacher's single
// version-dispatched Open factory (msf.Open/pdb.Open), adapted from a
// path argument to an in-memory buffer since PartitionReader already
// commits to whole-buffer decoding.
func Open(data []byte, oracle schema.Oracle) (Reader, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: payload shorter than the magic field", ErrBadMagic)
	}
	switch magic := binary.LittleEndian.Uint32(data[:4]); magic {
	case container.MagicV2, container.MagicV4:
		return NewPartitionReader(data, oracle), nil
	case MagicRIFF:
		return newRIFFReader(data, oracle), nil
	default:
		return nil, fmt.Errorf("%w: %#x", ErrBadMagic, magic)
	}
}

// NewWriter returns the Writer for the requested on-wire version: 2 or 4
// select *PartitionWriter (with Magic set accordingly), 6 selects the
// RIFF stub.
func NewWriter(version uint32, oracle schema.Oracle, registry *schema.StaticRegistry) (Writer, error) {
	switch version {
	case container.MagicV2, container.MagicV4:
		return &PartitionWriter{oracle: oracle, registry: registry, Magic: version}, nil
	case 6:
		return newRIFFWriter(oracle), nil
	default:
		return nil, fmt.Errorf("%w: unknown EBX version %d", ErrUnsupported, version)
	}
}
