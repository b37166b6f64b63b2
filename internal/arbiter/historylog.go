package arbiter

import (
	"regexp"

	"github.com/termai-core/termai/internal/fingerprint"
)

// exitCodeRe matches the "[exit N]" marker bashPreamble and zshPreamble
// emit on every prompt, immediately ahead of their OSC-7 cwd sequence.
// fish and PowerShell sessions never emit the marker, so extractExitCode
// has no signal there and returns 0.
var exitCodeRe = regexp.MustCompile(`\[exit (\d+)\]`)

func extractExitCode(tail []byte) int {
	m := exitCodeRe.FindSubmatch(tail)
	if m == nil {
		return 0
	}
	code := 0
	for _, b := range m[1] {
		code = code*10 + int(b-'0')
	}
	return code
}

// matchErrorPatterns reports which of fingerprint's known error
// signatures appear in output, for Command History's error_patterns
// column. cmd is unused today but kept in the signature so a future
// command-specific rule (e.g. suppressing grep's own "no matches"
// exit code from looking like a tool failure) has somewhere to hook.
func matchErrorPatterns(cmd string, output []byte) []string {
	var hits []string
	for _, rule := range fingerprint.ErrorRules {
		if rule.Pattern.Match(output) {
			hits = append(hits, string(rule.Category))
		}
	}
	return hits
}
