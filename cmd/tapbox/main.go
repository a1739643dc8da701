package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/tapbox/internal/config"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		cfg       config.Config
		dataDir   string
		storeKind string
	)

	cmd := &cobra.Command{
		Use:           "tapbox",
		Short:         "Badge-tap feedback device",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg = config.FromEnv()
			if cmd.Flags().Changed("data-dir") {
				cfg.DataDir = dataDir
				if os.Getenv("TAPBOX_DB_PATH") == "" {
					cfg.DBPath = dataDir + "/tapbox.db"
				}
			}
			if cmd.Flags().Changed("store") {
				cfg.Store = storeKind
			}
		},
	}
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "./data", "directory holding config.json, cards.txt and activities.log")
	cmd.PersistentFlags().StringVar(&storeKind, "store", "dir", "storage backend: dir, sqlite or memory")

	cmd.AddCommand(
		serveCmd(&cfg),
		cardsCmd(&cfg),
		activityCmd(&cfg),
		configCmd(&cfg),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "tapbox version %s\n", version)
			},
		},
	)
	return cmd
}
