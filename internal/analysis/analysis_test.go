package analysis

import (
	"context"
	"testing"

	"github.com/lsilvatti/parallelbook/internal/core/ai"
	"github.com/lsilvatti/parallelbook/internal/document"
)

type scriptedProvider struct {
	responses []string
	calls     int
}

func (s *scriptedProvider) ChatCompletion(ctx context.Context, prompt, model string, temperature float64) (*ai.CompletionResult, error) {
	if s.calls >= len(s.responses) {
		return &ai.CompletionResult{Content: "garbage"}, nil
	}
	r := s.responses[s.calls]
	s.calls++
	return &ai.CompletionResult{Content: r}, nil
}

func (s *scriptedProvider) ValidateKey(ctx context.Context) bool { return true }
func (s *scriptedProvider) ListModels(ctx context.Context) ([]string, error) {
	return nil, nil
}

func TestAnalyzeSkipsNonEnglishPair(t *testing.T) {
	e := &Engine{Provider: &scriptedProvider{}, MainModel: "gpt-4o", NoFallback: true}
	got, err := e.Analyze(context.Background(), []document.TranslationPair{{Source: "・・・", Target: "・・・"}})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(got) != 1 || got[0].Pattern != document.PatternOther {
		t.Fatalf("expected a single untouched sentence, got %+v", got)
	}
}

func TestAnalyzeSucceedsOnFirstValidRung(t *testing.T) {
	valid := `{"format":"sentence","text":"He loved linguistics.","pattern":"SVO","elements":[{"type":"S","text":"He"},{"type":"V","text":"loved"},{"type":"O","text":"linguistics"}]}`
	e := &Engine{Provider: &scriptedProvider{responses: []string{valid}}, MainModel: "gpt-4o", NoFallback: true}

	got, err := e.Analyze(context.Background(), []document.TranslationPair{{Source: "He loved linguistics.", Target: "彼は言語学を愛した。"}})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one sentence, got %d", len(got))
	}
	if got[0].Pattern != document.PatternSVO {
		t.Fatalf("expected reconciled pattern SVO, got %q", got[0].Pattern)
	}
}

func TestAnalyzeReconcilesMismatchedPattern(t *testing.T) {
	// Pattern claims SV but elements include an object; reconciliation
	// should override the reported pattern to match the elements.
	mismatched := `{"format":"sentence","text":"He loved linguistics.","pattern":"SV","elements":[{"type":"S","text":"He"},{"type":"V","text":"loved"},{"type":"O","text":"linguistics"}]}`
	e := &Engine{Provider: &scriptedProvider{responses: []string{mismatched}}, MainModel: "gpt-4o", NoFallback: true}

	got, err := e.Analyze(context.Background(), []document.TranslationPair{{Source: "He loved linguistics.", Target: "彼は言語学を愛した。"}})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got[0].Pattern != document.PatternSVO {
		t.Fatalf("expected reconciliation to correct pattern to SVO, got %q", got[0].Pattern)
	}
}

func TestAnalyzeRecoversAfterInvalidRungs(t *testing.T) {
	valid := `{"format":"sentence","text":"He loved linguistics.","pattern":"SVO","elements":[{"type":"S","text":"He"},{"type":"V","text":"loved"},{"type":"O","text":"linguistics"}]}`
	e := &Engine{
		Provider:   &scriptedProvider{responses: []string{"not json", "{}", valid}},
		MainModel:  "gpt-4o",
		NoFallback: true,
	}

	got, err := e.Analyze(context.Background(), []document.TranslationPair{{Source: "He loved linguistics.", Target: "彼は言語学を愛した。"}})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got[0].Format != "sentence" {
		t.Fatalf("unexpected sentence: %+v", got[0])
	}
}

func TestAnalyzeFailsoftDegradesInsteadOfErroring(t *testing.T) {
	e := &Engine{
		Provider:   &scriptedProvider{},
		MainModel:  "gpt-4o",
		NoFallback: true,
		Failsoft:   true,
	}

	got, err := e.Analyze(context.Background(), []document.TranslationPair{{Source: "He loved linguistics deeply.", Target: "彼は深く言語学を愛した。"}})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(got) != 1 || got[0].Pattern != document.PatternOther {
		t.Fatalf("expected a degraded sentence, got %+v", got)
	}
}

func TestAnalyzeReturnsErrorWithoutFailsoft(t *testing.T) {
	e := &Engine{Provider: &scriptedProvider{}, MainModel: "gpt-4o", NoFallback: true}

	_, err := e.Analyze(context.Background(), []document.TranslationPair{{Source: "He loved linguistics deeply.", Target: "彼は深く言語学を愛した。"}})
	if err == nil {
		t.Fatal("expected an error when all retries fail and failsoft is disabled")
	}
}

func TestAnalyzeStripsCodeFenceAndTrailingCommas(t *testing.T) {
	fenced := "```json\n{\"format\":\"sentence\",\"text\":\"He loved linguistics.\",\"pattern\":\"SVO\",\"elements\":[{\"type\":\"S\",\"text\":\"He\"},],}\n```"
	e := &Engine{Provider: &scriptedProvider{responses: []string{fenced}}, MainModel: "gpt-4o", NoFallback: true}

	got, err := e.Analyze(context.Background(), []document.TranslationPair{{Source: "He loved linguistics.", Target: "彼は言語学を愛した。"}})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got[0].Text != "He loved linguistics." {
		t.Fatalf("unexpected sentence after fence stripping: %+v", got[0])
	}
}

func TestAnalyzeMultiplePairsPreservesOrder(t *testing.T) {
	first := `{"format":"sentence","text":"He loved linguistics.","pattern":"SVO","elements":[{"type":"S","text":"He"},{"type":"V","text":"loved"},{"type":"O","text":"linguistics"}]}`
	second := `{"format":"sentence","text":"It gave him wisdom.","pattern":"SVOO","elements":[{"type":"S","text":"It"},{"type":"V","text":"gave"},{"type":"O","text":"him"},{"type":"O","text":"wisdom"}]}`
	e := &Engine{Provider: &scriptedProvider{responses: []string{first, second}}, MainModel: "gpt-4o", NoFallback: true}

	got, err := e.Analyze(context.Background(), []document.TranslationPair{
		{Source: "He loved linguistics.", Target: "彼は言語学を愛した。"},
		{Source: "It gave him wisdom.", Target: "それは彼に知恵を与えた。"},
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(got) != 2 || got[0].Text != "He loved linguistics." || got[1].Text != "It gave him wisdom." {
		t.Fatalf("unexpected order/content: %+v", got)
	}
}
