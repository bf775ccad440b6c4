package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"clai/internal/embedding"
	"clai/internal/index"
)

var scanCmd = &cobra.Command{
	Use:   "scan [dir]",
	Short: "Index a directory tree without starting the chat loop",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := workspace
		if len(args) == 1 {
			root = args[0]
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", root, err)
		}

		engine, err := embedding.NewEngine(cfg.Embedding)
		if err != nil {
			return err
		}
		idx, err := index.New(engine, cfg.Index)
		if err != nil {
			return err
		}
		defer idx.Close()

		stats, err := idx.Scan(cmd.Context(), abs)
		if err != nil {
			return err
		}
		fmt.Printf("scanned %s: %d indexed, %d skipped, %d failed (%d tracked total)\n",
			abs, stats.Indexed, stats.Skipped, stats.Failed, idx.Len())
		return nil
	},
}
