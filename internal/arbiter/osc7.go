package arbiter

import (
	"net/url"
	"regexp"
)

// osc7Re matches the OSC-7 sequence described in SPEC_FULL.md §6:
// ESC ']' '7' ';' 'file://' <host?> <path> BEL (or the ST terminator
// ESC '\', which some shells emit instead of BEL in practice).
var osc7Re = regexp.MustCompile(`\x1b\]7;file://([^/]*)(/[^\x07\x1b]*)(?:\x07|\x1b\\)`)

// scanOSC7 returns the last decoded path carried by an OSC-7 sequence in
// chunk, or "" if none is present. The Arbiter never parses `cd`; cwd is
// derived solely from this sequence.
func scanOSC7(chunk []byte) (path string, found bool) {
	matches := osc7Re.FindAllSubmatch(chunk, -1)
	if len(matches) == 0 {
		return "", false
	}
	last := matches[len(matches)-1]
	decoded, err := url.PathUnescape(string(last[2]))
	if err != nil {
		decoded = string(last[2])
	}
	return decoded, true
}
