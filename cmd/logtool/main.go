package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gateway/internal/config"
	"gateway/internal/logger"
	"gateway/internal/service/storage"
)

var (
	logDir string
	dbPath string

	aggregator *storage.Aggregator
)

var rootCmd = &cobra.Command{
	Use:   "logtool",
	Short: "Offline tools for the detection log",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// bez flag bierzemy sciezki z tej samej konfiguracji co serwer
		if !cmd.Flags().Changed("dir") || !cmd.Flags().Changed("db") {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("dir") {
				logDir = cfg.LogDirectory
			}
			if !cmd.Flags().Changed("db") {
				dbPath = cfg.DatabasePath
			}
		}

		aggregator = storage.NewAggregator(logDir, logger.New(os.Stderr))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logDir, "dir", "logs", "Directory holding detection log partitions (default: LOG_DIR)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (default: DB_PATH)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
