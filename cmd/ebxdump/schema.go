package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/frostbite-tools/ebx/internal/restab"
	"github.com/frostbite-tools/ebx/schema"
)

// kindByName maps the JSON schema file's textual TypeEnum spellings onto
// their restab.TypeEnum value. "TypeRef" is used instead of "TypeRefKind"
// since the latter only exists to avoid shadowing the restab.TypeRef
// index type, an implementation detail schema files shouldn't need to
// know about.
var kindByName = map[string]restab.TypeEnum{
	"Void": restab.Void, "DbObject": restab.DbObject, "Inherited": restab.Inherited,
	"String": restab.String, "CString": restab.CString, "FileRef": restab.FileRef,
	"ResourceRef": restab.ResourceRef, "TypeRef": restab.TypeRefKind, "Delegate": restab.Delegate,
	"BoxedValueRef": restab.BoxedValueRef, "Guid": restab.GuidKind, "Sha1": restab.Sha1,
	"Struct": restab.Struct, "Class": restab.Class, "Array": restab.Array, "Enum": restab.Enum,
	"Boolean": restab.Boolean, "Int8": restab.Int8, "UInt8": restab.UInt8, "Int16": restab.Int16,
	"UInt16": restab.UInt16, "Int32": restab.Int32, "UInt32": restab.UInt32, "Int64": restab.Int64,
	"UInt64": restab.UInt64, "Float32": restab.Float32, "Float64": restab.Float64,
}

type schemaPropertyJSON struct {
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	Type         string `json:"type,omitempty"`
	ElemKind     string `json:"elem_kind,omitempty"`
	ElemType     string `json:"elem_type,omitempty"`
}

type schemaTypeJSON struct {
	Name       string               `json:"name"`
	Namespace  string               `json:"namespace"`
	Parent     string               `json:"parent,omitempty"`
	ValueType  bool                 `json:"value_type"`
	Properties []schemaPropertyJSON `json:"properties"`
}

// loadSchema reads a JSON array of type declarations from path and
// registers them into a fresh StaticRegistry scoped to rootNS. Every
// NameHash is derived from its declared name via restab.HashName, the
// same hashing scheme the codec uses on the wire.
func loadSchema(path, rootNS string) (*schema.StaticRegistry, error) {
	if path == "" {
		return nil, fmt.Errorf("this command requires --schema <file.json>")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}

	var decls []schemaTypeJSON
	if err := json.Unmarshal(data, &decls); err != nil {
		return nil, fmt.Errorf("parsing schema file: %w", err)
	}

	reg := schema.NewStaticRegistry(rootNS)
	for _, d := range decls {
		info := &schema.TypeInfo{
			NameHash:    restab.HashName(d.Name),
			Name:        d.Name,
			Namespace:   d.Namespace,
			IsValueType: d.ValueType,
		}
		if d.Parent != "" {
			info.ParentHash = restab.HashName(d.Parent)
		}

		for _, p := range d.Properties {
			kind, ok := kindByName[p.Kind]
			if !ok {
				return nil, fmt.Errorf("type %q: unknown property kind %q", d.Name, p.Kind)
			}
			prop := schema.Property{
				NameHash: restab.HashName(p.Name),
				Name:     p.Name,
				Kind:     kind,
			}
			if p.Type != "" {
				prop.TypeHash = restab.HashName(p.Type)
			}
			if kind == restab.Array {
				elemKind, ok := kindByName[p.ElemKind]
				if !ok {
					return nil, fmt.Errorf("type %q: unknown array element kind %q", d.Name, p.ElemKind)
				}
				prop.ElemKind = elemKind
				if p.ElemType != "" {
					prop.ElemTypeHash = restab.HashName(p.ElemType)
				}
				prop.ArrayHash = restab.HashName(d.Name + "." + p.Name + "[]")
			}
			info.Properties = append(info.Properties, prop)
		}

		if err := reg.Register(info); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
