package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/termai-core/termai/internal/arbiter"
	"github.com/termai-core/termai/internal/execstore"
	"github.com/termai-core/termai/internal/flowstore"
	"github.com/termai-core/termai/internal/logger"
	"github.com/termai-core/termai/internal/workflow"
)

func flowCmd(logLevel *string) *cobra.Command {
	fl := &cobra.Command{
		Use:   "flow",
		Short: "Save, list, and run workflow DAGs",
	}
	fl.AddCommand(flowSaveCmd(), flowListCmd(), flowRunCmd(logLevel), flowExecListCmd())
	return fl
}

func openFlowStore() (*flowstore.Store, func(), error) {
	cfg := loadConfigOrExit()
	if err := cfg.EnsureDataDirs(); err != nil {
		return nil, nil, fmt.Errorf("create data dirs: %w", err)
	}
	s, err := flowstore.Open(cfg.FlowsDir())
	if err != nil {
		return nil, nil, err
	}
	return s, func() { s.Close() }, nil
}

func flowSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save [file.json]",
		Short: "Validate and persist a Flow definition from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read flow file: %w", err)
			}
			var flow workflow.Flow
			if err := json.Unmarshal(data, &flow); err != nil {
				return fmt.Errorf("parse flow file: %w", err)
			}

			store, closeFn, err := openFlowStore()
			if err != nil {
				return err
			}
			defer closeFn()

			if err := store.Save(&flow); err != nil {
				return fmt.Errorf("save flow: %w", err)
			}
			for _, id := range workflow.UnreachableNodes(&flow) {
				fmt.Fprintf(os.Stderr, "warning: node %q has no incoming edge and is not this flow's primary entry point\n", id)
			}
			fmt.Printf("saved: %s (%s)\n", flow.ID, flow.Name)
			return nil
		},
	}
}

func flowListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved flows, most recently updated first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := openFlowStore()
			if err != nil {
				return err
			}
			defer closeFn()

			flows, err := store.List()
			if err != nil {
				return err
			}
			if len(flows) == 0 {
				fmt.Println("no flows")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tFOLDER\tNODES\tUPDATED")
			for _, f := range flows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", f.ID, f.Name, f.Folder, len(f.Nodes), f.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}
}

func flowRunCmd(logLevel *string) *cobra.Command {
	var attachShell bool

	cmd := &cobra.Command{
		Use:   "run [flowId-or-file.json]",
		Short: "Run a saved or inline flow to completion and print the Execution record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfigOrExit()
			log, err := logger.New(*logLevel, "")
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			flow, err := resolveFlow(args[0])
			if err != nil {
				return err
			}

			var sess *arbiter.Session
			if attachShell {
				s, err := arbiter.Open(arbiter.Options{Config: cfg, Logger: log})
				if err != nil {
					return fmt.Errorf("open session for flow run: %w", err)
				}
				defer s.Close()
				sess = s
			}

			engine := workflow.NewEngine(workflow.EngineOptions{Session: sess, Logger: log})
			exec, err := engine.Run(context.Background(), flow)
			if err != nil {
				return fmt.Errorf("run flow: %w", err)
			}

			if err := cfg.EnsureDataDirs(); err == nil {
				if es, err := execstore.Open(cfg.ExecutionsDir()); err == nil {
					_ = es.Save(exec)
				}
			}

			out, _ := json.MarshalIndent(exec, "", "  ")
			fmt.Println(string(out))
			if exec.Status == workflow.StatusFailed {
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&attachShell, "attach-shell", false, "run shell nodes against a freshly opened PTY session instead of a bare child process")
	return cmd
}

func flowExecListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "executions",
		Short: "List persisted executions, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfigOrExit()
			if err := cfg.EnsureDataDirs(); err != nil {
				return err
			}
			es, err := execstore.Open(cfg.ExecutionsDir())
			if err != nil {
				return err
			}
			execs, err := es.List()
			if err != nil {
				return err
			}
			if len(execs) == 0 {
				fmt.Println("no executions")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tFLOW\tSTATUS\tSTARTED")
			for _, e := range execs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ID, e.FlowID, e.Status, e.StartedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}
}

// resolveFlow treats arg as a path to a JSON flow file if that file can be
// read, otherwise loads it as a flow id from the configured store.
func resolveFlow(arg string) (*workflow.Flow, error) {
	if data, err := os.ReadFile(arg); err == nil {
		var flow workflow.Flow
		if err := json.Unmarshal(data, &flow); err != nil {
			return nil, fmt.Errorf("parse flow file: %w", err)
		}
		return &flow, nil
	}

	store, closeFn, err := openFlowStore()
	if err != nil {
		return nil, err
	}
	defer closeFn()
	return store.Load(arg)
}
