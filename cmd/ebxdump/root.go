package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	outputFile    string
	output        io.Writer
	schemaFile    string
	rootNamespace string
)

var rootCmd = &cobra.Command{
	Use:   "ebxdump",
	Short: "EBX asset file viewer and analyzer",
	Long: `ebxdump is a command-line tool for inspecting EBX files, the
Frostbite engine's object-graph asset serialization format.

It can display header information, the import table, and the decoded
instance graph of an EBX asset.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if outputFile != "" {
			f, err := os.Create(outputFile)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			output = f
		} else {
			output = os.Stdout
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if f, ok := output.(*os.File); ok && f != os.Stdout {
			f.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "write output to file instead of stdout")
	rootCmd.PersistentFlags().StringVar(&schemaFile, "schema", "", "path to a JSON schema description (required for instances/dump)")
	rootCmd.PersistentFlags().StringVar(&rootNamespace, "root-namespace", "", "namespace inheritance ascension is bounded to")

	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(importsCmd)
	rootCmd.AddCommand(instancesCmd)
	rootCmd.AddCommand(dumpCmd)
}
