// Package strategy implements the Response Strategy Selector
// (component E): picks one of {direct, assumed, ask} from an intent
// Label's confidence and gaps, per SPEC_FULL.md §2's component table. It
// is pure, synchronous, and has no persistence or I/O of its own —
// grounded on the teacher's internal/orchestrator response-shaping step
// that follows skill selection, narrowed here to a three-way decision
// instead of prompt assembly.
package strategy

import (
	"strings"

	"github.com/termai-core/termai/internal/fingerprint"
	"github.com/termai-core/termai/internal/intent"
)

// Plan is the Strategy Selector's single output: which mode to answer in,
// plus whatever assumptions or a bundled question that mode requires.
type Plan struct {
	Mode Mode

	// Assumptions is populated only for ModeAssumed: one line per helpful
	// gap the selector chose to assume rather than ask about, preceded by
	// a category caveat line when confidence is below directConfidence.
	Assumptions []string

	// Question is populated only for ModeAsk: every required gap's
	// prompt-text bundled into a single clarification question, per §2
	// "ask a single bundled clarification question".
	Question string
}

// Mode is the closed three-way decision from §1/§2.
type Mode string

const (
	ModeDirect  Mode = "direct"
	ModeAssumed Mode = "assumed"
	ModeAsk     Mode = "ask"
)

// directConfidence is the confidence floor above which a label with no
// required gaps is answered directly rather than with stated assumptions.
const directConfidence = 0.75

// Select turns an intent.Label into a Plan. The rule, in order:
//  1. Any required gap present → ModeAsk, bundling every required gap's
//     prompt-text into one question (never one question per gap).
//  2. No required gaps, but confidence below directConfidence or any
//     helpful gap present → ModeAssumed, stating the assumptions implied
//     by the unresolved helpful gaps.
//  3. Otherwise → ModeDirect.
//
// An unknown category with low confidence and no gap table still falls
// through to ModeAssumed: there is nothing concrete to ask about, but
// confidence alone is too low to answer as if the context were complete.
func Select(label intent.Label) Plan {
	var required, helpful []intent.Gap
	for _, g := range label.Gaps {
		switch g.Importance {
		case fingerprint.ImportanceRequired:
			required = append(required, g)
		default:
			helpful = append(helpful, g)
		}
	}

	if len(required) > 0 {
		return Plan{Mode: ModeAsk, Question: bundleQuestion(required)}
	}

	if label.Confidence < directConfidence || len(helpful) > 0 {
		return Plan{Mode: ModeAssumed, Assumptions: assumptionsFor(label, helpful)}
	}

	return Plan{Mode: ModeDirect}
}

// bundleQuestion joins every required gap's canned prompt text into one
// clarification question, most-important field order preserved (the
// caller already sorted Gaps required-first).
func bundleQuestion(required []intent.Gap) string {
	texts := make([]string, len(required))
	for i, g := range required {
		texts[i] = g.PromptText
	}
	return strings.Join(texts, " ")
}

// assumptionsFor renders one human-readable assumption line per
// unresolved helpful gap, plus a confidence-driven caveat when the
// category itself was uncertain.
func assumptionsFor(label intent.Label, helpful []intent.Gap) []string {
	var lines []string
	if label.Confidence < directConfidence {
		lines = append(lines, assumeCategoryLine(label))
	}
	for _, g := range helpful {
		lines = append(lines, "Assuming "+strings.ToLower(strings.TrimSuffix(g.PromptText, "?"))+" is not relevant unless you say otherwise.")
	}
	return lines
}

func assumeCategoryLine(label intent.Label) string {
	if label.Category == fingerprint.CategoryUnknown {
		return "Assuming this is a general question, since the intent wasn't clear from context."
	}
	return "Assuming this is a " + string(label.Category) + " question based on the available context."
}
