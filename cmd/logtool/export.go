package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the merged detection log, newest first (json) or in file order (csv)",
	RunE: func(cmd *cobra.Command, args []string) error {
		switch exportFormat {
		case "json":
			records, err := aggregator.Export()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		case "csv":
			return aggregator.WriteCSV(os.Stdout)
		default:
			return fmt.Errorf("unknown format %q (json or csv)", exportFormat)
		}
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "Output format: json or csv")
	rootCmd.AddCommand(exportCmd)
}
