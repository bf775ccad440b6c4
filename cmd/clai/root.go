package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clai/internal/config"
	"clai/internal/logging"
)

var (
	cfgPath   string
	verbose   bool
	workspace string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "clai",
	Short: "clai - a coding agent that lives in your terminal",
	Long: `clai keeps a vector index of your workspace, pins files you care about,
and turns model responses into file, directory, and shell actions. Run it
without arguments to start the interactive loop.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgPath == "" {
			cfgPath = config.DefaultPath()
		}
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if verbose {
			cfg.Logging.Verbose = true
		}
		if err := logging.Init(cfg.Logging.Verbose, cfg.Logging.File); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default ~/.clai.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", ".", "workspace root directory")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(versionCmd)
}
