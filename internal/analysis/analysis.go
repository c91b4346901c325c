// Package analysis drives the syntactic-analysis pass: given the
// source/target pairs a translation task already produced, it asks
// the model to decompose each source sentence into its pattern and
// elements, validates the result, and reconciles the reported pattern
// against the elements actually returned.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lsilvatti/parallelbook/internal/core/ai"
	"github.com/lsilvatti/parallelbook/internal/core/batch"
	"github.com/lsilvatti/parallelbook/internal/core/prompt"
	"github.com/lsilvatti/parallelbook/internal/core/tokenizer"
	"github.com/lsilvatti/parallelbook/internal/core/validator"
	"github.com/lsilvatti/parallelbook/internal/document"
)

// temperatures is the (shorter than translation's) ladder tried per
// model: analysis prompts carry far less ambiguity than translation
// ones, so fewer rungs are needed before giving up on a model.
var temperatures = []float64{0.0, 0.4, 0.8}

// BetweenAttemptsDelay is slept after a failed attempt.
var BetweenAttemptsDelay = 200 * time.Millisecond

// Engine analyzes one source/target pair at a time, applying a
// temperature ladder across the main model and its fallback.
type Engine struct {
	Provider   ai.LLMProvider
	Tokenizer  *tokenizer.Estimator
	MainModel  string
	NoFallback bool
	Failsoft   bool
}

// Analyze decomposes every pair in a row and returns one Sentence per
// pair, in order. In Failsoft mode a pair that exhausts every rung
// gets a degraded, but always present, Sentence; otherwise the first
// exhausted pair aborts the whole row.
func (e *Engine) Analyze(ctx context.Context, pairs []document.TranslationPair) ([]document.Sentence, error) {
	sentences := make([]document.Sentence, len(pairs))
	for i, pair := range pairs {
		s, err := e.analyzeOne(ctx, pair)
		if err != nil {
			if !e.Failsoft {
				return nil, fmt.Errorf("analyze pair %d: %w", i, err)
			}
			s = document.Sentence{
				Format:  "sentence",
				Text:    pair.Source,
				Pattern: document.PatternOther,
			}
		}
		sentences[i] = s
	}
	return sentences, nil
}

func (e *Engine) analyzeOne(ctx context.Context, pair document.TranslationPair) (document.Sentence, error) {
	if validator.LatinLetterCount(pair.Source) < 2 {
		return document.Sentence{Format: "sentence", Text: pair.Source, Pattern: document.PatternOther}, nil
	}

	models := []string{e.MainModel}
	if !e.NoFallback {
		if fb := tokenizer.FallbackModel(e.MainModel); fb != "" {
			models = append(models, fb)
		}
	}

	attempt := 0
	for _, model := range models {
		for _, temp := range temperatures {
			attempt++
			in := prompt.AnalysisInput{Source: pair.Source, Target: pair.Target, Attempt: attempt}
			p := prompt.BuildAnalysis(in)

			result, err := e.Provider.ChatCompletion(ctx, p, model, temp)
			if err != nil {
				time.Sleep(BetweenAttemptsDelay)
				continue
			}

			if s, ok := parseAndValidate(result.Content); ok {
				return s, nil
			}
			time.Sleep(BetweenAttemptsDelay)
		}
	}

	return document.Sentence{}, fmt.Errorf("all retries failed: unable to parse valid analysis for %q", pair.Source)
}

// parseAndValidate normalizes and decodes a raw assistant message into
// a Sentence, validates its shape, and reconciles the reported pattern
// (both at the top level and within each subclause) against the
// elements actually present.
func parseAndValidate(raw string) (document.Sentence, bool) {
	cleaned := batch.Normalize(raw)

	var s document.Sentence
	if err := json.Unmarshal([]byte(cleaned), &s); err != nil {
		return document.Sentence{}, false
	}
	if !validator.ValidateSentenceContent(&s) {
		return document.Sentence{}, false
	}

	s.Pattern = validator.ReconcilePattern(s.Pattern, s.Elements)
	for i := range s.Subclauses {
		s.Subclauses[i].Pattern = validator.ReconcilePattern(s.Subclauses[i].Pattern, s.Subclauses[i].Elements)
	}

	return s, true
}
