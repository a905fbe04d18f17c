package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var tailRows int

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show the most recent detection log rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := aggregator.Tail(tailRows)
		if err != nil {
			return err
		}

		if len(records) == 0 {
			fmt.Println("No detections logged.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "TIME\tLABEL\tCONFIDENCE\tBOX")
		fmt.Fprintln(w, "----\t-----\t----------\t---")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%.3f\t[%g %g %g %g]\n", r.Time, r.Label, r.Confidence, r.X1, r.Y1, r.X2, r.Y2)
		}
		return w.Flush()
	},
}

func init() {
	tailCmd.Flags().IntVarP(&tailRows, "rows", "n", 20, "Number of rows to show")
	rootCmd.AddCommand(tailCmd)
}
