package main

import (
	"fmt"
	"os"

	"github.com/frostbite-tools/ebx/internal/container"
	"github.com/frostbite-tools/ebx/internal/stream"
	"github.com/spf13/cobra"
)

var importsCmd = &cobra.Command{
	Use:   "imports <ebx-file>",
	Short: "List the import table and dependency set",
	Long:  `List every import reference an EBX asset carries, plus the deduplicated set of file GUIDs it depends on.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runImports,
}

func runImports(cmd *cobra.Command, args []string) error {
	path := args[0]

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	r := stream.NewReader(data)
	hdr, err := container.ReadHeader(r)
	if err != nil {
		return fmt.Errorf("failed to read EBX header: %w", err)
	}

	imports, err := container.ReadImports(r, hdr.ImportCount)
	if err != nil {
		return fmt.Errorf("failed to read import table: %w", err)
	}

	fmt.Fprintf(output, "%-5s %-40s %s\n", "INDEX", "FILE GUID", "CLASS GUID")
	seen := make(map[[16]byte]bool)
	var deps [][16]byte
	for i, imp := range imports {
		fg := [16]byte(imp.FileGuid)
		fmt.Fprintf(output, "%-5d %-40s %s\n", i, formatGUID(fg), formatGUID([16]byte(imp.ClassGuid)))
		if !seen[fg] {
			seen[fg] = true
			deps = append(deps, fg)
		}
	}

	fmt.Fprintf(output, "\nDependencies: %d distinct file(s)\n", len(deps))
	for _, g := range deps {
		fmt.Fprintf(output, "  %s\n", formatGUID(g))
	}
	return nil
}
