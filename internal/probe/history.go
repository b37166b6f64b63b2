package probe

import "github.com/termai-core/termai/internal/historystore"

// FromHistory adapts Command History Store rows (component G) into the
// CommandRecord/ErrorRecord slices Gather's State section expects,
// implementing §4.1.1's "Probe's state.lastCommands/state.lastErrors
// read through this store first" wiring. Records without an observed
// error pattern are command-only; records with one contribute to both
// slices, since an errored command is still a command.
func FromHistory(records []historystore.Record) (commands []CommandRecord, errs []ErrorRecord) {
	for _, r := range records {
		cr := CommandRecord{Command: r.Command}
		if r.ExitCode != nil {
			cr.ExitCode = *r.ExitCode
			cr.HasExit = true
		}
		commands = append(commands, cr)

		for _, pattern := range r.ErrorPatterns {
			errs = append(errs, ErrorRecord{Text: r.Command, Pattern: pattern})
		}
	}
	return commands, errs
}
