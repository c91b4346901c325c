package prompt

import (
	"testing"

	"github.com/lsilvatti/parallelbook/internal/document"
)

func baseInput() Input {
	return Input{
		BookTitle: "Example Book",
		Role:      document.RoleParagraph,
		Source:    "He loved linguistics. It gave him wisdom.",
		Attempt:   1,
	}
}

func TestBuildTranslationDeterministic(t *testing.T) {
	in := baseInput()
	a := BuildTranslation(in)
	b := BuildTranslation(in)
	if a != b {
		t.Fatal("expected identical prompts for identical input")
	}
}

func TestBuildTranslationVariantsDiffer(t *testing.T) {
	in := baseInput()
	a := BuildTranslation(in)
	in.Variant.JSONContext = true
	in.Hint = "scene hint"
	b := BuildTranslation(in)
	if a == b {
		t.Fatal("expected JSON-context variant to differ")
	}
}

func TestBuildTranslationAttemptEscalation(t *testing.T) {
	in := baseInput()
	p1 := BuildTranslation(in)
	in.Attempt = 3
	p3 := BuildTranslation(in)
	if p1 == p3 {
		t.Fatal("expected attempt >= 3 to change the prompt (pre-split source + example)")
	}
}

func TestBuildTranslationExtraHintAppended(t *testing.T) {
	in := baseInput()
	in.ExtraHint = "custom note"
	got := BuildTranslation(in)
	if !contains(got, "custom note") {
		t.Fatal("expected extra hint to appear verbatim in the prompt")
	}
}

func TestBuildAnalysisDeterministic(t *testing.T) {
	in := AnalysisInput{Source: "He loved linguistics.", Target: "彼は言語学を愛した。", Attempt: 1}
	a := BuildAnalysis(in)
	b := BuildAnalysis(in)
	if a != b {
		t.Fatal("expected identical prompts for identical input")
	}
}

func TestBuildAnalysisIncludesSourceAndTarget(t *testing.T) {
	in := AnalysisInput{Source: "He loved linguistics.", Target: "彼は言語学を愛した。", Attempt: 1}
	got := BuildAnalysis(in)
	if !contains(got, in.Source) || !contains(got, in.Target) {
		t.Fatal("expected both source and target to appear in the prompt")
	}
}

func TestBuildAnalysisAttemptEscalationAddsWarning(t *testing.T) {
	in := AnalysisInput{Source: "He loved linguistics.", Attempt: 1}
	p1 := BuildAnalysis(in)
	in.Attempt = 2
	p2 := BuildAnalysis(in)
	if p1 == p2 {
		t.Fatal("expected attempt >= 2 to append a JSON-strictness warning")
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}
