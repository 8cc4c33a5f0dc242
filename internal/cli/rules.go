package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kerbelp/z-mail-agent/internal/model"
	"github.com/kerbelp/z-mail-agent/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Validate and list the classification rules",
	Long: `Rules loads the configured rule file, validates it (unique names,
recognized actions, resolvable prompt and template references), and
prints the rule set in waterfall evaluation order.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := model.LoadConfig(configPath)
		if err != nil {
			return err
		}

		ruleStore, err := rules.Load(cfg.Rules.Path)
		if err != nil {
			return err
		}

		ruleSet := ruleStore.Rules()
		fmt.Printf("%d rule(s) in waterfall order:\n", len(ruleSet))
		for i, r := range ruleSet {
			fmt.Printf(
				"%2d. %-24s priority=%-3d action=%-8s prompt=%s",
				i+1, r.Name, r.Priority, r.Action, r.PromptRef,
			)
			if r.ReplyTemplateRef != "" {
				fmt.Printf(" reply_template=%s", r.ReplyTemplateRef)
			}
			fmt.Println()
			if r.Description != "" {
				fmt.Printf("    %s\n", r.Description)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}
