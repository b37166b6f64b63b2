package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/termai-core/termai/internal/arbiter"
	"github.com/termai-core/termai/internal/historystore"
	"github.com/termai-core/termai/internal/logger"
)

// sessionCmd wires a single interactive Session straight to the
// controlling terminal: stdin bytes become WriteUser calls, Session
// output events are copied to stdout. This is the simplest possible
// smoke test for the Session Arbiter's I-excl/I-cwd/I-buffer invariants
// — a real client instead drives WriteUser/WriteAgent over whatever
// transport it owns (out of scope here, §1).
func sessionCmd(logLevel *string) *cobra.Command {
	var shell string
	var useVTE bool

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Open an interactive session against the local PTY arbiter",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfigOrExit()
			log, err := logger.New(*logLevel, "")
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			var hist *historystore.Store
			if err := cfg.EnsureDataDirs(); err == nil {
				if h, err := historystore.Open(cfg.HistoryDBPath()); err == nil {
					hist = h
					defer h.Close()
				} else {
					log.Warn("history store unavailable, continuing without it", "err", err)
				}
			}

			cols, rows := 80, 24
			if w, h, err := term.GetSize(int(os.Stdin.Fd())); err == nil {
				cols, rows = w, h
			}

			sess, err := arbiter.Open(arbiter.Options{
				Shell:   shell,
				Config:  cfg,
				Logger:  log,
				History: hist,
				UseVTE:  useVTE,
				Cols:    uint16(cols),
				Rows:    uint16(rows),
			})
			if err != nil {
				return fmt.Errorf("open session: %w", err)
			}
			defer sess.Close()

			fmt.Fprintf(os.Stderr, "termai session %s opened (ctrl-d to exit)\n", sess.ID)
			return runPassthrough(sess)
		},
	}
	cmd.Flags().StringVar(&shell, "shell", "", "shell binary to spawn (defaults to config/$SHELL)")
	cmd.Flags().BoolVar(&useVTE, "vte", false, "enable the reconnect-snapshot VTerm side channel")
	return cmd
}

// runPassthrough puts stdin in raw mode and shuttles bytes between the
// controlling terminal and the Session until the child exits.
func runPassthrough(sess *arbiter.Session) error {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("set raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	events := make(chan arbiter.Event, 256)
	sess.Subscribe(events)
	defer sess.Unsubscribe(events)

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 4096)
		for {
			n, err := os.Stdin.Read(buf)
			if n > 0 {
				if werr := sess.WriteUser(buf[:n]); werr != nil {
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev.Kind {
			case arbiter.EventOutput:
				os.Stdout.Write(ev.Output)
			case arbiter.EventExit:
				return nil
			}
		case <-done:
			return nil
		}
	}
}
