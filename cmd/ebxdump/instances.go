package main

import (
	"fmt"
	"os"

	"github.com/frostbite-tools/ebx/ebx"
	"github.com/spf13/cobra"
)

var instancesCmd = &cobra.Command{
	Use:   "instances <ebx-file>",
	Short: "List the decoded instance table",
	Long:  `Decode an EBX asset's instance graph and list each instance's index, type, export GUID, and reference count.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runInstances,
}

func runInstances(cmd *cobra.Command, args []string) error {
	path := args[0]

	asset, err := decodeAsset(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(output, "%-5s %-10s %-12s %-40s %s\n", "INDEX", "TYPEHASH", "REFCOUNT", "GUID", "EXPORTED")
	for i, inst := range asset.Objects {
		exported := inst.ClassGuid.Index < len(asset.Objects) && !inst.ClassGuid.Guid.IsZero()
		fmt.Fprintf(output, "%-5d 0x%08X %-12d %-40s %v\n",
			i, inst.Object.TypeHash, asset.RefCounts[i], formatGUID([16]byte(inst.ClassGuid.Guid)), exported)
	}

	fmt.Fprintf(output, "\nTotal: %d instances\n", len(asset.Objects))
	return nil
}

// decodeAsset reads path and fully decodes it into a typed Asset, using
// the schema loaded from the --schema flag.
func decodeAsset(path string) (*ebx.Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	reg, err := loadSchema(schemaFile, rootNamespace)
	if err != nil {
		return nil, err
	}

	reader, err := ebx.Open(data, reg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	asset, err := reader.ReadAsset()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return asset, nil
}
