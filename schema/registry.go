package schema

import (
	"fmt"

	"github.com/frostbite-tools/ebx/internal/restab"
)

// StaticRegistry is a minimal, in-memory Oracle built by explicit
// Register calls. It stands in for the real schema library (out of
// scope per spec.md §1) the way internal/dbi exposes a parsed,
// index-keyed table of module rows in the teacher — here the table is
// populated by the caller instead of parsed from a wire stream, since
// there is no DBI-equivalent schema stream in EBX.
type StaticRegistry struct {
	// RootNamespace bounds the inheritance-chain ascension the writer
	// pre-pass performs (spec.md §4.4): a base type is walked into only
	// while its namespace lies within RootNamespace.
	RootNamespace string

	byHash map[uint32]*TypeInfo
	byName map[string]*TypeInfo
}

// NewStaticRegistry creates an empty registry scoped to rootNamespace.
func NewStaticRegistry(rootNamespace string) *StaticRegistry {
	return &StaticRegistry{
		RootNamespace: rootNamespace,
		byHash:        make(map[uint32]*TypeInfo),
		byName:        make(map[string]*TypeInfo),
	}
}

// Register adds info to the registry, indexed by both name hash and
// name. It returns an error if the name hash collides with a
// differently-named type already registered.
func (r *StaticRegistry) Register(info *TypeInfo) error {
	if existing, ok := r.byHash[info.NameHash]; ok && existing.Name != info.Name {
		return fmt.Errorf("schema: name hash %d already registered to %q, cannot also register %q", info.NameHash, existing.Name, info.Name)
	}
	r.byHash[info.NameHash] = info
	r.byName[info.Name] = info
	return nil
}

// TypeByHash implements Oracle.
func (r *StaticRegistry) TypeByHash(hash uint32) (*TypeInfo, bool) {
	t, ok := r.byHash[hash]
	return t, ok
}

// TypeByName implements Oracle.
func (r *StaticRegistry) TypeByName(name string) (*TypeInfo, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// NewInstance implements Oracle.
func (r *StaticRegistry) NewInstance(hash uint32) (*Object, error) {
	info, ok := r.byHash[hash]
	if !ok {
		return nil, fmt.Errorf("schema: no type registered for name hash %d", hash)
	}

	obj := &Object{TypeHash: hash, Fields: make(map[uint32]any, len(info.Properties))}
	for _, p := range info.Properties {
		if p.Kind == restab.Array {
			obj.Fields[p.NameHash] = []any{}
		}
	}
	return obj, nil
}

// InRootNamespace reports whether ns lies within (or equals) the
// registry's configured root namespace.
func (r *StaticRegistry) InRootNamespace(ns string) bool {
	if r.RootNamespace == "" {
		return true
	}
	if ns == r.RootNamespace {
		return true
	}
	n := len(r.RootNamespace)
	return len(ns) > n && ns[:n] == r.RootNamespace && ns[n] == '.'
}
