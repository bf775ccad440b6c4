package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"clai/internal/embedding"
	"clai/internal/index"
)

var queryK int

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Run a similarity query against the persisted index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := embedding.NewEngine(cfg.Embedding)
		if err != nil {
			return err
		}
		idx, err := index.New(engine, cfg.Index)
		if err != nil {
			return err
		}
		defer idx.Close()

		matches, err := idx.Query(cmd.Context(), strings.Join(args, " "), queryK)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			fmt.Println("no matches (run `clai scan` first?)")
			return nil
		}
		for _, m := range matches {
			fmt.Printf("%.4f  %s\n", m.Similarity, m.File.Path)
		}
		return nil
	},
}

func init() {
	queryCmd.Flags().IntVarP(&queryK, "top", "k", 5, "number of results")
}
