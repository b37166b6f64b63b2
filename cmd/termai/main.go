// Command termai is a thin CLI surface wired directly over the core
// packages (arbiter, workflow, intent, strategy) for local
// smoke-testing: open a session, run a flow, classify an utterance. It
// starts no HTTP/WebSocket server — that transport lives entirely
// outside this module's scope (SPEC_FULL.md §1, §9.3).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/termai-core/termai/internal/config"
)

func main() {
	var logLevel string

	root := &cobra.Command{
		Use:   "termai",
		Short: "termai — AI-assisted terminal core (session arbiter, workflow engine, intent core)",
		Long:  "Local smoke-testing CLI over the session arbiter, workflow engine, and intent/context core. No transport server is started from here.",
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn, or error")

	root.AddCommand(
		sessionCmd(&logLevel),
		flowCmd(&logLevel),
		classifyCmd(&logLevel),
		initCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfigOrExit() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the ~/.config/termai data directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfigOrExit()
			if err := cfg.EnsureDataDirs(); err != nil {
				return fmt.Errorf("create data dirs: %w", err)
			}
			fmt.Println("initialized:", cfg.DataRoot)
			fmt.Println("  flows:", cfg.FlowsDir())
			fmt.Println("  executions:", cfg.ExecutionsDir())
			fmt.Println("  history db:", cfg.HistoryDBPath())
			return nil
		},
	}
}
