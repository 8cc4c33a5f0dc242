package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kerbelp/z-mail-agent/internal/model"
	"github.com/kerbelp/z-mail-agent/internal/rules"
	"github.com/kerbelp/z-mail-agent/internal/store"
	"github.com/kerbelp/z-mail-agent/internal/triage"
)

var (
	flagDryRun bool
	flagLimit  int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process one batch of unread messages",
	Long: `Run fetches up to the configured batch limit of unread messages,
classifies each against the rule set, executes the matched action, and
prints a summary. Messages are marked processed provider-side; a failed
message stays unmarked and is retried on the next run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := model.LoadConfig(configPath)
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("dry-run") {
			cfg.Run.DryRun = flagDryRun
		}
		if cmd.Flags().Changed("limit") {
			cfg.Run.BatchLimit = flagLimit
			if err := cfg.Validate(); err != nil {
				return err
			}
		}

		return runOnce(cmd.Context(), cfg)
	},
}

func init() {
	runCmd.Flags().BoolVar(
		&flagDryRun, "dry-run", false,
		"log actions without executing external writes",
	)
	runCmd.Flags().IntVar(
		&flagLimit, "limit", 0,
		"override the configured batch limit",
	)
	rootCmd.AddCommand(runCmd)
}

// runOnce executes a single triage run and reports its summary.
func runOnce(ctx context.Context, cfg *model.Config) error {
	log.Printf(
		"starting run: provider=%s llm=%s dry_run=%t send_reply=%t add_label=%t limit=%d",
		cfg.Provider.Type, cfg.LLM.Provider, cfg.Run.DryRun,
		cfg.Run.SendReply, cfg.Run.AddLabel, cfg.Run.BatchLimit,
	)

	mailProvider, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	service, err := buildClassificationService(cfg)
	if err != nil {
		return err
	}

	ruleStore, err := rules.Load(cfg.Rules.Path)
	if err != nil {
		return err
	}

	engine := triage.NewEngine(triage.Deps{
		Provider: mailProvider,
		Rules:    ruleStore,
		Service:  service,
		Run:      cfg.Run,
	})

	startedAt := time.Now()
	summary, err := engine.Run(ctx)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	recordHistory(ctx, cfg, startedAt, summary)
	printSummary(summary)

	return nil
}

// recordHistory persists the run summary. History is best-effort:
// failures are logged, never fatal.
func recordHistory(
	ctx context.Context,
	cfg *model.Config,
	startedAt time.Time,
	summary triage.Summary,
) {
	if !cfg.History.Enabled {
		return
	}

	s, err := store.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		log.Printf("opening history database: %v", err)
		return
	}
	defer s.Close()

	rec := store.RunRecord{
		ID:         uuid.NewString(),
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
		DryRun:     cfg.Run.DryRun,
		Processed:  summary.Processed,
		Replied:    summary.Replied,
		Errors:     summary.Errors,
	}
	if err := s.RecordRun(ctx, rec); err != nil {
		log.Printf("recording run history: %v", err)
	}
}

var (
	summaryTitleStyle = lipgloss.NewStyle().Bold(true)
	summaryOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	summaryWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	summaryBoxStyle   = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				Padding(0, 1)
)

// printSummary renders the run summary: a styled box on a terminal, a
// compact single line when piped.
func printSummary(summary triage.Summary) {
	if !stdoutIsTerminal() {
		line := fmt.Sprintf(
			"run complete: processed=%d replied=%d errors=%d",
			summary.Processed, summary.Replied, len(summary.Errors),
		)
		fmt.Println(line)
		for _, e := range summary.Errors {
			fmt.Printf("error: %s\n", e)
		}
		return
	}

	var b strings.Builder
	b.WriteString(summaryTitleStyle.Render("Run summary"))
	b.WriteString("\n")
	b.WriteString(summaryOKStyle.Render(
		fmt.Sprintf("processed: %d", summary.Processed),
	))
	b.WriteString("\n")
	b.WriteString(summaryOKStyle.Render(
		fmt.Sprintf("replied:   %d", summary.Replied),
	))

	if len(summary.Errors) > 0 {
		b.WriteString("\n")
		b.WriteString(summaryWarnStyle.Render(
			fmt.Sprintf("errors:    %d", len(summary.Errors)),
		))
		for _, e := range summary.Errors {
			b.WriteString("\n")
			b.WriteString(summaryWarnStyle.Render("  - " + e))
		}
	}

	fmt.Println(summaryBoxStyle.Render(b.String()))
}

// stdoutIsTerminal reports whether stdout is attached to a terminal.
func stdoutIsTerminal() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
