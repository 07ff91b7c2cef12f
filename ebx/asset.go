// Package ebx implements the bidirectional codec for EBX, the
// object-graph serialization format used by Frostbite-family game data.
// It provides a Partition-dialect reader and writer plus the dialect
// selector that also recognizes (without itself implementing) the RIFF
// dialect.
package ebx

import (
	"fmt"

	"github.com/frostbite-tools/ebx/internal/restab"
	"github.com/frostbite-tools/ebx/schema"
)

// AssetClassGuid identifies one instance within its asset: an optional
// stable GUID (non-empty only for exported instances) paired with a
// dense 0-based instance index.
type AssetClassGuid struct {
	Guid  restab.Guid
	Index int
}

// Instance is a schema-typed object carrying its asset-scoped identity.
type Instance struct {
	Object    *schema.Object
	ClassGuid AssetClassGuid
}

// PointerKind discriminates the three shapes a PointerRef can take.
type PointerKind uint8

const (
	PointerNull PointerKind = iota
	PointerInternal
	PointerExternal
)

// PointerRef is an in-band object reference: null, an index into this
// asset's instance vector, or an index into its import table.
type PointerRef struct {
	Kind  PointerKind
	Index int
}

// BoxedValue is a dynamically-typed field whose runtime shape is
// carried alongside the decoded value.
type BoxedValue struct {
	Kind  restab.TypeEnum
	Value any
}

// TypeRefValue is the decoded form of a TypeRef/Delegate field: the
// on-wire string, parsed as a GUID when possible (the preferred case),
// kept as a bare name otherwise.
type TypeRefValue struct {
	Name   string
	Guid   restab.Guid
	IsGuid bool
}

// Asset is an immutable-after-load bundle of interrelated instances.
type Asset struct {
	FileGuid     restab.Guid
	Objects      []*Instance
	RefCounts    []int
	Imports      []restab.ImportRef
	Dependencies []restab.Guid
}

// OnLoadComplete is invoked by PartitionReader.ReadAsset once every
// instance has been fully populated. It is a no-op. ReadAsset always
// builds a plain *Asset and calls this method on it, so a method of the
// same name on a type that embeds Asset is not called by the reader.
func (a *Asset) OnLoadComplete() {}

// guidString formats g in the canonical dashed hex form that
// parseGuidString accepts: the first three groups are read
// little-endian from g, the last two in byte order.
func guidString(g restab.Guid) string {
	return fmt.Sprintf("%08X-%04X-%04X-%04X-%012X",
		uint32(g[3])<<24|uint32(g[2])<<16|uint32(g[1])<<8|uint32(g[0]),
		uint16(g[5])<<8|uint16(g[4]),
		uint16(g[7])<<8|uint16(g[6]),
		uint16(g[8])<<8|uint16(g[9]),
		g[10:16])
}

// parseGuidString parses the canonical dashed hex representation back
// into a Guid, reporting false if name is not in that form (in which
// case it is a bare type/delegate name instead of a GUID).
func parseGuidString(name string) (restab.Guid, bool) {
	var d1 uint32
	var d2, d3, d4 uint16
	var d5 [6]byte
	n, err := fmt.Sscanf(name, "%08X-%04X-%04X-%04X-%02X%02X%02X%02X%02X%02X",
		&d1, &d2, &d3, &d4, &d5[0], &d5[1], &d5[2], &d5[3], &d5[4], &d5[5])
	if err != nil || n != 10 {
		return restab.Guid{}, false
	}
	var g restab.Guid
	g[0], g[1], g[2], g[3] = byte(d1), byte(d1>>8), byte(d1>>16), byte(d1>>24)
	g[4], g[5] = byte(d2), byte(d2>>8)
	g[6], g[7] = byte(d3), byte(d3>>8)
	g[8], g[9] = byte(d4>>8), byte(d4)
	copy(g[10:], d5[:])
	return g, true
}
