package arbiter

import (
	"path/filepath"
	"strings"

	"github.com/termai-core/termai/internal/config"
)

// shellFamily is the closed set of shell families the preamble supports.
type shellFamily string

const (
	familyBash       shellFamily = "bash"
	familyZsh        shellFamily = "zsh"
	familyFish       shellFamily = "fish"
	familyPowerShell shellFamily = "powershell"
	familyUnknown    shellFamily = ""
)

// detectShellFamily classifies a shell path into one of the supported
// families. Detection failure degrades gracefully: cwd tracking simply
// never fires and Cwd() reports the last-known value (possibly empty).
func detectShellFamily(shellPath string) shellFamily {
	base := strings.ToLower(filepath.Base(shellPath))
	switch {
	case strings.Contains(base, "bash"):
		return familyBash
	case strings.Contains(base, "zsh"):
		return familyZsh
	case strings.Contains(base, "fish"):
		return familyFish
	case strings.Contains(base, "powershell") || strings.Contains(base, "pwsh"):
		return familyPowerShell
	default:
		return familyUnknown
	}
}

// preamble returns the shell-integration snippet for family, honoring
// any configured override, followed by a screen clear so the setup
// commands themselves stay invisible. Returns "" for an unrecognized
// family — cwd tracking degrades, nothing else does.
func preamble(family shellFamily, overrides config.ShellPreamble) string {
	var snippet string
	switch family {
	case familyBash:
		snippet = overrides.Bash
		if snippet == "" {
			snippet = bashPreamble
		}
	case familyZsh:
		snippet = overrides.Zsh
		if snippet == "" {
			snippet = zshPreamble
		}
	case familyFish:
		snippet = overrides.Fish
		if snippet == "" {
			snippet = fishPreamble
		}
	case familyPowerShell:
		snippet = overrides.PowerShell
		if snippet == "" {
			snippet = powershellPreamble
		}
	default:
		return ""
	}
	return snippet + clearScreenSeq
}

// clearScreenSeq hides the shell-integration setup lines: home cursor,
// then clear the entire screen.
const clearScreenSeq = "\x1b[H\x1b[2J"

// bashPreamble and zshPreamble capture $? as the very first thing their
// hook runs — before the OSC-7 printf, before anything else — so it
// still reflects the exit status of the command that just finished, and print it as the
// "[exit N]" marker historylog.go's extractExitCode scans for.
const bashPreamble = `PROMPT_COMMAND='__termai_ec=$?; printf "[exit %s]" "$__termai_ec"; printf "\033]7;file://%s%s\007" "$HOSTNAME" "$PWD"'` + "\r"

const zshPreamble = `precmd() { local __termai_ec=$?; printf "[exit %s]" "$__termai_ec"; printf "\033]7;file://%s%s\007" "$HOST" "$PWD" }` + "\r"

// fishPreamble and powershellPreamble track cwd only; fish's $status and
// PowerShell's $LASTEXITCODE/$? don't map onto extractExitCode's "[exit
// N]" marker as directly as bash/zsh's $?, so Command History's
// exit_code column stays 0 for commands run under those shells.
const fishPreamble = `function __termai_osc7 --on-event fish_prompt; printf "\033]7;file://%s%s\007" (hostname) (pwd); end` + "\r"

const powershellPreamble = `function prompt { $p = $pwd.Path -replace '\\','/'; Write-Host -NoNewline "` + "`" + `e]7;file://$env:COMPUTERNAME$p`" + "`" + `a"; "PS> " }` + "\r"
