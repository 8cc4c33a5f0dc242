package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kerbelp/z-mail-agent/internal/model"
	"github.com/kerbelp/z-mail-agent/internal/store"
)

var flagHistoryLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := model.LoadConfig(configPath)
		if err != nil {
			return err
		}

		if !cfg.History.Enabled {
			return fmt.Errorf("run history is disabled in the configuration")
		}

		s, err := store.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("opening history database: %w", err)
		}
		defer s.Close()

		records, err := s.RecentRuns(cmd.Context(), flagHistoryLimit)
		if err != nil {
			return err
		}

		if len(records) == 0 {
			fmt.Println("no runs recorded")
			return nil
		}

		for _, rec := range records {
			mode := ""
			if rec.DryRun {
				mode = " (dry run)"
			}
			fmt.Printf(
				"%s  processed=%d replied=%d errors=%d%s\n",
				rec.StartedAt.Format("2006-01-02 15:04:05"),
				rec.Processed, rec.Replied, len(rec.Errors), mode,
			)
			for _, e := range rec.Errors {
				fmt.Printf("    - %s\n", e)
			}
		}

		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(
		&flagHistoryLimit, "limit", 20, "maximum number of runs to list",
	)
	rootCmd.AddCommand(historyCmd)
}
