package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/termai-core/termai/internal/historystore"
	"github.com/termai-core/termai/internal/intent"
	"github.com/termai-core/termai/internal/probe"
	"github.com/termai-core/termai/internal/strategy"
)

// classifyCmd is a smoke test for the Context/Intent Core: gather a
// Snapshot from the real environment, classify a single utterance
// against it, run the Response Strategy Selector, and print both.
func classifyCmd(logLevel *string) *cobra.Command {
	var cwd string

	cmd := &cobra.Command{
		Use:   "classify [utterance]",
		Short: "Classify an utterance against a live environment snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			if cwd == "" {
				wd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("getwd: %w", err)
				}
				cwd = wd
			}

			var commands []probe.CommandRecord
			var errs []probe.ErrorRecord
			cfg := loadConfigOrExit()
			if err := cfg.EnsureDataDirs(); err == nil {
				if hist, err := historystore.Open(cfg.HistoryDBPath()); err == nil {
					defer hist.Close()
					if recent, err := hist.RecentCommands(ctx, "", 20); err == nil {
						commands, errs = probe.FromHistory(recent)
					}
				}
			}

			snap := probe.Gather(ctx, cwd, commands, errs)

			classifier := intent.New(intent.Options{})
			label := classifier.Classify(ctx, args[0], snap)
			plan := strategy.Select(label)

			fmt.Printf("category:   %s\n", label.Category)
			fmt.Printf("confidence: %.2f\n", label.Confidence)
			if len(label.Signals) > 0 {
				fmt.Printf("signals:    %v\n", label.Signals)
			}
			fmt.Printf("mode:       %s\n", plan.Mode)
			switch plan.Mode {
			case strategy.ModeAsk:
				fmt.Printf("question:   %s\n", plan.Question)
			case strategy.ModeAssumed:
				for _, a := range plan.Assumptions {
					fmt.Printf("assuming:   %s\n", a)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cwd, "cwd", "", "working directory to probe (defaults to the current one)")
	return cmd
}
