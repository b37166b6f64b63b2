package strategy

import (
	"strings"
	"testing"

	"github.com/termai-core/termai/internal/fingerprint"
	"github.com/termai-core/termai/internal/intent"
)

func TestSelect_RequiredGapAsksOneBundledQuestion(t *testing.T) {
	label := intent.Label{
		Category:   fingerprint.CategoryInstallation,
		Confidence: 0.9,
		Gaps: []intent.Gap{
			{Field: "errorOutput", Importance: fingerprint.ImportanceRequired, PromptText: "What error message did the install command print?"},
			{Field: "projectKind", Importance: fingerprint.ImportanceHelpful, PromptText: "What kind of project is this?"},
		},
	}
	plan := Select(label)
	if plan.Mode != ModeAsk {
		t.Fatalf("mode = %s, want ask", plan.Mode)
	}
	if strings.Count(plan.Question, "?") != 1 {
		t.Errorf("question = %q, want exactly one bundled question", plan.Question)
	}
}

func TestSelect_NoGapsHighConfidenceIsDirect(t *testing.T) {
	label := intent.Label{Category: fingerprint.CategoryBuild, Confidence: 0.95}
	plan := Select(label)
	if plan.Mode != ModeDirect {
		t.Errorf("mode = %s, want direct", plan.Mode)
	}
}

func TestSelect_HelpfulGapOnlyIsAssumed(t *testing.T) {
	label := intent.Label{
		Category:   fingerprint.CategoryHowTo,
		Confidence: 0.9,
		Gaps: []intent.Gap{
			{Field: "projectKind", Importance: fingerprint.ImportanceHelpful, PromptText: "What kind of project is this?"},
		},
	}
	plan := Select(label)
	if plan.Mode != ModeAssumed {
		t.Fatalf("mode = %s, want assumed", plan.Mode)
	}
	if len(plan.Assumptions) == 0 {
		t.Error("expected at least one stated assumption")
	}
}

func TestSelect_LowConfidenceNoGapsIsAssumed(t *testing.T) {
	label := intent.Label{Category: fingerprint.CategoryUnknown, Confidence: 0}
	plan := Select(label)
	if plan.Mode != ModeAssumed {
		t.Errorf("mode = %s, want assumed", plan.Mode)
	}
}
