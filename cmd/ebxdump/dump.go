package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/frostbite-tools/ebx/ebx"
	"github.com/spf13/cobra"
)

var dumpFormat string

var dumpCmd = &cobra.Command{
	Use:   "dump <ebx-file>",
	Short: "Dump the full decoded asset",
	Long: `Dump an EBX asset's entire decoded object graph.

Supported formats:
  - text: human-readable text (default)
  - json: JSON format`,
	Args: cobra.ExactArgs(1),
	RunE: runDump,
}

func init() {
	dumpCmd.Flags().StringVarP(&dumpFormat, "format", "f", "text", "output format (text, json)")
}

func runDump(cmd *cobra.Command, args []string) error {
	path := args[0]

	asset, err := decodeAsset(path)
	if err != nil {
		return err
	}

	switch dumpFormat {
	case "json":
		return dumpJSON(asset, path)
	case "text":
		return dumpText(asset, path)
	default:
		return fmt.Errorf("unknown format: %s", dumpFormat)
	}
}

// AssetDump is the JSON-serializable projection of a decoded Asset.
type AssetDump struct {
	File         string           `json:"file"`
	FileGuid     string           `json:"file_guid"`
	Dependencies []string         `json:"dependencies"`
	Instances    []InstanceDump   `json:"instances"`
}

type InstanceDump struct {
	Index    int            `json:"index"`
	TypeHash uint32         `json:"type_hash"`
	Guid     string         `json:"guid,omitempty"`
	RefCount int            `json:"ref_count"`
	Fields   map[string]any `json:"fields"`
}

func dumpJSON(asset *ebx.Asset, path string) error {
	dump := &AssetDump{
		File:     path,
		FileGuid: formatGUID([16]byte(asset.FileGuid)),
	}
	for _, dep := range asset.Dependencies {
		dump.Dependencies = append(dump.Dependencies, formatGUID([16]byte(dep)))
	}

	for i, inst := range asset.Objects {
		fields := make(map[string]any, len(inst.Object.Fields))
		for hash, v := range inst.Object.Fields {
			fields[fmt.Sprintf("0x%08X", hash)] = fmt.Sprintf("%v", v)
		}
		guid := ""
		if !inst.ClassGuid.Guid.IsZero() {
			guid = formatGUID([16]byte(inst.ClassGuid.Guid))
		}
		dump.Instances = append(dump.Instances, InstanceDump{
			Index:    i,
			TypeHash: inst.Object.TypeHash,
			Guid:     guid,
			RefCount: asset.RefCounts[i],
			Fields:   fields,
		})
	}

	encoder := json.NewEncoder(output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(dump)
}

func dumpText(asset *ebx.Asset, path string) error {
	fmt.Fprintf(output, "=== %s ===\n", path)
	fmt.Fprintf(output, "File GUID: %s\n", formatGUID([16]byte(asset.FileGuid)))
	fmt.Fprintf(output, "Dependencies: %d\n", len(asset.Dependencies))
	for _, dep := range asset.Dependencies {
		fmt.Fprintf(output, "  %s\n", formatGUID([16]byte(dep)))
	}

	fmt.Fprintln(output)
	fmt.Fprintf(output, "=== Instances (%d) ===\n", len(asset.Objects))
	for i, inst := range asset.Objects {
		fmt.Fprintf(output, "[%d] type=0x%08X refcount=%d", i, inst.Object.TypeHash, asset.RefCounts[i])
		if !inst.ClassGuid.Guid.IsZero() {
			fmt.Fprintf(output, " guid=%s", formatGUID([16]byte(inst.ClassGuid.Guid)))
		}
		fmt.Fprintln(output)

		names := make([]string, 0, len(inst.Object.Fields))
		byName := make(map[string]uint32, len(inst.Object.Fields))
		for hash := range inst.Object.Fields {
			name := fmt.Sprintf("0x%08X", hash)
			names = append(names, name)
			byName[name] = hash
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(output, "    %s = %v\n", name, inst.Object.Fields[byName[name]])
		}
	}
	return nil
}
