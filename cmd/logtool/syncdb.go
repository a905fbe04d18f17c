package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"gateway/internal/repository/sqlite"
)

var replace bool

// syncDBCmd rebuilds the SQLite mirror from the CSV partitions.
var syncDBCmd = &cobra.Command{
	Use:   "sync-db",
	Short: "Load every logged detection into the SQLite mirror",
	RunE: func(cmd *cobra.Command, args []string) error {
		if dbPath == "" {
			return errors.New("no database configured (set --db or DB_PATH)")
		}

		records, err := aggregator.Export()
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No detections found to sync")
			return nil
		}

		db, err := sqlite.New(dbPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		repo := sqlite.NewDetectionRepository(db)
		if replace {
			if err := repo.DeleteAll(); err != nil {
				return err
			}
		}

		fmt.Printf("Inserting %d detections into %s...\n", len(records), dbPath)
		n, err := repo.InsertRecords(records)
		if err != nil {
			return err
		}

		total, err := repo.GetTotalCount()
		if err != nil {
			return err
		}
		fmt.Printf("Synced %d detections (%d in database)\n", n, total)
		return nil
	},
}

func init() {
	syncDBCmd.Flags().BoolVar(&replace, "replace", false, "Clear the mirror before loading")
	rootCmd.AddCommand(syncDBCmd)
}
