// Package intent implements the Intent Classifier & Gap Analyzer
// (component D): a deterministic, pattern-scored labeler over
// (utterance, context snapshot) pairs, with an optional non-deterministic
// LLM refinement path that is surface-flagged and never required. See
// SPEC_FULL.md §4.3. Grounded on the teacher's internal/orchestrator
// scoring-and-threshold shape (build.go picks the highest-weighted skill
// match before falling back to a generic prompt), adapted here from a
// single winner-take-all skill match to a weighted multi-rule category
// score with gap analysis layered on top.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/termai-core/termai/internal/fingerprint"
	"github.com/termai-core/termai/internal/llmchat"
	"github.com/termai-core/termai/internal/probe"
)

// scoreFloor is the minimum winning score before a category is trusted;
// below it the label falls back to CategoryUnknown (§4.3 "Scoring").
const scoreFloor = 0.1

// Gap is one unsatisfied requirement field, ordered required-first.
type Gap struct {
	Field      string
	Importance fingerprint.Importance
	PromptText string
}

// Label is the IntentLabel record from SPEC_FULL.md §3.
type Label struct {
	Category   fingerprint.Category
	Confidence float64
	Signals    []string
	Gaps       []Gap
	Requirements []fingerprint.FieldRequirement

	// LLMRefined marks whether the optional, non-deterministic LLM
	// refinement path (§4.3 "Optional LLM refinement") actually altered
	// the pattern-matched label. The pattern path alone is pure given
	// (utterance, snapshot) — see P9 — so this flag is the only surface
	// where non-determinism can leak into the result.
	LLMRefined bool
}

// Classifier is the pure pattern-matching classifier plus an optional LLM
// refinement capability. A nil LLM disables refinement entirely; the
// pattern path never depends on it.
type Classifier struct {
	llm                 llmchat.Provider
	confidenceThreshold float64
}

// Options configures New.
type Options struct {
	LLM                 llmchat.Provider // optional; nil disables refinement
	ConfidenceThreshold float64          // below this, refinement is attempted if LLM != nil
}

func New(opts Options) *Classifier {
	threshold := opts.ConfidenceThreshold
	if threshold <= 0 {
		threshold = 0.45
	}
	return &Classifier{llm: opts.LLM, confidenceThreshold: threshold}
}

// Classify scores utterance against snapshot with the deterministic rule
// table (§4.3 "Scoring"), computes gaps (§4.3 "Gap analysis"), and, if
// confidence is below the configured threshold and an LLM is bound,
// attempts a single structured refinement call. The pattern path alone is
// a pure function of its inputs (P9); refinement is best-effort and never
// blocks indefinitely thanks to the caller-supplied ctx.
func (c *Classifier) Classify(ctx context.Context, utterance string, snap *probe.Snapshot) Label {
	category, confidence, signals := scorePattern(utterance, snap)
	label := Label{
		Category:     category,
		Confidence:   confidence,
		Signals:      signals,
		Requirements: fingerprint.Requirements[category],
	}
	label.Gaps = analyzeGaps(category, snap)

	if c.llm != nil && confidence < c.confidenceThreshold {
		if refined, ok := c.refine(ctx, utterance, snap); ok {
			label.Category = refined.Category
			label.Confidence = refined.Confidence
			label.Signals = append(label.Signals, refined.Signals...)
			label.Requirements = fingerprint.Requirements[refined.Category]
			label.Gaps = analyzeGaps(refined.Category, snap)
			label.LLMRefined = true
		}
	}
	return label
}

// scorePattern is the fully deterministic rule-scoring half of §4.3: sum
// weighted keyword/error-pattern hits per category, pick the highest, and
// apply the context boosts.
func scorePattern(utterance string, snap *probe.Snapshot) (fingerprint.Category, float64, []string) {
	scores := make(map[fingerprint.Category]float64, len(fingerprint.AllCategories))
	var signals []string

	lastError := ""
	if snap != nil && len(snap.State.LastErrors) > 0 {
		lastError = snap.State.LastErrors[len(snap.State.LastErrors)-1].Text
	}

	for _, rule := range fingerprint.KeywordRules {
		if rule.Pattern.MatchString(utterance) {
			scores[rule.Category] += rule.Weight
			signals = append(signals, fmt.Sprintf("keyword:%s", rule.Category))
		}
	}
	for _, rule := range fingerprint.ErrorRules {
		if rule.Pattern.MatchString(utterance) {
			scores[rule.Category] += 0.8 * rule.Weight
			signals = append(signals, fmt.Sprintf("error-in-utterance:%s", rule.Category))
		}
		if lastError != "" && rule.Pattern.MatchString(lastError) {
			scores[rule.Category] += 1.2 * rule.Weight
			signals = append(signals, fmt.Sprintf("error-in-snapshot:%s", rule.Category))
		}
	}

	best := fingerprint.CategoryUnknown
	bestScore := 0.0
	// Stable iteration over the closed category list keeps ties
	// deterministic regardless of Go's randomized map order.
	for _, cat := range fingerprint.AllCategories {
		s := scores[cat]
		if s > bestScore {
			bestScore = s
			best = cat
		}
	}
	if bestScore < scoreFloor {
		return fingerprint.CategoryUnknown, 0, signals
	}

	confidence := bestScore
	if confidence > 1.0 {
		confidence = 1.0
	}
	confidence, boostSignals := applyBoosts(best, confidence, snap)
	signals = append(signals, boostSignals...)
	return best, confidence, signals
}

// applyBoosts layers the §4.3 context boosts on top of the raw pattern
// score, clamped back to [0, 1].
func applyBoosts(category fingerprint.Category, confidence float64, snap *probe.Snapshot) (float64, []string) {
	if snap == nil {
		return confidence, nil
	}
	var signals []string

	if projectAligns(category, snap.Project.Kind) {
		confidence += 0.10
		signals = append(signals, "boost:project-kind-aligns")
	}
	if category == fingerprint.CategoryGit && snap.Git.HasChanges {
		confidence += 0.15
		signals = append(signals, "boost:git-has-changes")
	}
	if category != fingerprint.CategoryHowTo && len(snap.State.LastErrors) > 0 {
		confidence += 0.10
		signals = append(signals, "boost:recent-error-present")
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence, signals
}

func projectAligns(category fingerprint.Category, kind probe.ProjectKind) bool {
	if kind == probe.ProjectNone {
		return false
	}
	switch category {
	case fingerprint.CategoryInstallation, fingerprint.CategoryBuild, fingerprint.CategoryRuntime:
		return true
	default:
		return false
	}
}

// analyzeGaps walks category's fixed requirements table and emits a gap
// for every field the snapshot does not satisfy, required fields first.
func analyzeGaps(category fingerprint.Category, snap *probe.Snapshot) []Gap {
	reqs := fingerprint.Requirements[category]
	if len(reqs) == 0 {
		return nil
	}
	var gaps []Gap
	for _, r := range reqs {
		if fieldSatisfied(r.Field, snap) {
			continue
		}
		gaps = append(gaps, Gap{Field: r.Field, Importance: r.Importance, PromptText: r.PromptText})
	}
	sort.SliceStable(gaps, func(i, j int) bool {
		return gaps[i].Importance == fingerprint.ImportanceRequired && gaps[j].Importance != fingerprint.ImportanceRequired
	})
	return gaps
}

// fieldSatisfied is the fixed per-field satisfaction rule from §4.3: a
// field is satisfied iff the snapshot carries a non-empty value for it.
func fieldSatisfied(field string, snap *probe.Snapshot) bool {
	if snap == nil {
		return false
	}
	switch field {
	case "errorOutput":
		return len(snap.State.LastErrors) > 0
	case "projectKind":
		return snap.Project.Kind != "" && snap.Project.Kind != probe.ProjectNone
	case "configFiles":
		return len(snap.Files) > 0
	case "toolchain":
		return len(snap.Toolchain) > 0
	case "lastCommands":
		return len(snap.State.LastCommands) > 0
	case "hostname":
		return snap.Environment.Hostname != ""
	case "cwd":
		return snap.Environment.Cwd != ""
	case "gitBranch":
		return snap.Git.Branch != ""
	case "gitHasChanges":
		return snap.Git.Branch != "" // branch known means git state was gathered at all
	default:
		return false
	}
}

// refinedLabel is the JSON shape the optional LLM refinement prompt is
// asked to return (§4.3 "Optional LLM refinement").
type refinedLabel struct {
	Category   string   `json:"category"`
	Confidence float64  `json:"confidence"`
	Signals    []string `json:"signals"`
}

// refine sends a single structured prompt to the bound LLM and parses its
// JSON reply. It never blocks indefinitely (the caller's ctx governs the
// call) and degrades to ok=false on any malformed or out-of-enum reply,
// per §4.3's "must not deadlock if unavailable" and "retain the
// pattern-matched label" fallback.
func (c *Classifier) refine(ctx context.Context, utterance string, snap *probe.Snapshot) (refinedLabel, bool) {
	prompt := buildRefinementPrompt(utterance, snap)
	reply, err := c.llm.Chat(ctx, refinementSystemPrompt, []llmchat.Message{{Role: "user", Content: prompt}})
	if err != nil {
		return refinedLabel{}, false
	}
	var parsed refinedLabel
	if err := json.Unmarshal([]byte(extractJSONObject(reply)), &parsed); err != nil {
		return refinedLabel{}, false
	}
	if !isKnownCategory(fingerprint.Category(parsed.Category)) {
		return refinedLabel{}, false
	}
	if parsed.Confidence <= 0 {
		parsed.Confidence = c.confidenceThreshold
	}
	if parsed.Confidence > 1.0 {
		parsed.Confidence = 1.0
	}
	return parsed, true
}

const refinementSystemPrompt = "You classify a developer's terminal utterance into exactly one closed category. " +
	"Reply with a single JSON object {\"category\": string, \"confidence\": number, \"signals\": [string]} and nothing else."

func buildRefinementPrompt(utterance string, snap *probe.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "utterance: %s\n", utterance)
	if snap != nil {
		fmt.Fprintf(&b, "project kind: %s\n", snap.Project.Kind)
		if len(snap.State.LastCommands) > 0 {
			fmt.Fprintf(&b, "last command: %s\n", snap.State.LastCommands[len(snap.State.LastCommands)-1].Command)
		}
		for i := len(snap.State.LastErrors) - 1; i >= 0 && i >= len(snap.State.LastErrors)-3; i-- {
			fmt.Fprintf(&b, "recent error: %s\n", snap.State.LastErrors[i].Text)
		}
	}
	fmt.Fprintf(&b, "categories: %s\n", categoryList())
	return b.String()
}

func categoryList() string {
	names := make([]string, len(fingerprint.AllCategories))
	for i, c := range fingerprint.AllCategories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

func isKnownCategory(c fingerprint.Category) bool {
	for _, k := range fingerprint.AllCategories {
		if k == c {
			return true
		}
	}
	return false
}

// extractJSONObject trims everything outside the first top-level {...}
// span, tolerating a provider that wraps its JSON in prose or markdown
// fences despite the system prompt's instruction.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end < start {
		return "{}"
	}
	return s[start : end+1]
}
