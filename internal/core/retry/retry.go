// Package retry drives the (model, temperature, prompt-variant) ladder
// that turns a single task into a validated Response, with a
// failsoft fallback when every rung fails (§4.8).
package retry

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lsilvatti/parallelbook/internal/core/ai"
	"github.com/lsilvatti/parallelbook/internal/core/batch"
	"github.com/lsilvatti/parallelbook/internal/core/db"
	"github.com/lsilvatti/parallelbook/internal/core/prompt"
	"github.com/lsilvatti/parallelbook/internal/core/splitter"
	"github.com/lsilvatti/parallelbook/internal/core/tokenizer"
	"github.com/lsilvatti/parallelbook/internal/core/validator"
	"github.com/lsilvatti/parallelbook/internal/document"
)

// rung is one (temperature, jsonContext) step of the ladder, tried in
// order for every candidate model.
type rung struct {
	temperature float64
	jsonContext bool
}

// cacheLangPair is the only language pair this engine ever translates,
// used as the db.Cache partition key.
const cacheLangPair = "en-ja"

// longInputThreshold and batchCharBudget implement §4.8's long-input
// handling: a source longer than longInputThreshold characters is
// C1-split and translated in batches bounded by roughly
// batchCharBudget characters each.
const longInputThreshold = 2000
const batchCharBudget = 1000

var ladder = []rung{
	{0.0, true}, {0.0, false},
	{0.4, true}, {0.4, false},
	{0.8, true}, {0.8, false},
}

// macroNameRe pulls a macro directive's bare name and optional
// trailing argument out of its source line, e.g. "pagebreak" or
// "image cover.png".
var macroNameRe = regexp.MustCompile(`^([-_a-zA-Z0-9]+)(\s.*)?$`)

// BetweenAttemptsDelay is slept after a failed attempt, matching the
// original engine's light backoff against transient provider errors.
var BetweenAttemptsDelay = 200 * time.Millisecond

// Engine executes single tasks against a provider, applying the full
// retry ladder and failsoft policy.
type Engine struct {
	Provider   ai.LLMProvider
	Tokenizer  *tokenizer.Estimator
	BookTitle  string
	MainModel  string
	NoFallback bool
	Failsoft   bool
	ExtraHint  string

	// BatchResults holds out-of-band batch-output content keyed by
	// task index. At attempt 1 only, Execute tries to reuse the
	// matching result before spending an online call; any parse or
	// validation failure falls through to the normal ladder.
	BatchResults map[int]batch.Result

	// Cache, when set, is checked for an exact prior translation of
	// sourceText after the BatchResults reuse attempt and before any
	// online attempt, and is populated
	// on every fresh online success. Repeated paragraphs (chapter
	// headers, refrains) then cost nothing on a rerun or a later book
	// in the same series.
	Cache *db.Cache
}

var leadingQuoteRe = regexp.MustCompile(`^["“‘「『]`)
var trailingQuoteRe = regexp.MustCompile(`["”’」』]$`)

type translationResponse struct {
	Translations []struct {
		En string `json:"en"`
		Ja string `json:"ja"`
	} `json:"translations"`
	ContextHint string `json:"context_hint"`
}

// Execute runs one task to a persisted-ready Response. idx identifies
// the task within its flattened document, used to look up a reusable
// batch result. macro/code tasks are simulated locally with no model
// call; everything else runs the retry ladder, sub-batched first when
// sourceText is long.
func (e *Engine) Execute(ctx context.Context, idx int, role document.Role, sourceText, hint string, prevCtx, nextCtx []string) (*document.Response, error) {
	if role == document.RoleMacro || role == document.RoleCode {
		return simulateDirective(role, sourceText)
	}
	if validator.LatinLetterCount(sourceText) < 2 {
		return intactResponse(sourceText, hint), nil
	}
	if len(sourceText) > longInputThreshold {
		return e.executeLongInput(ctx, role, sourceText, hint, prevCtx, nextCtx)
	}

	models := []string{e.MainModel}
	if !e.NoFallback {
		if fb := tokenizer.FallbackModel(e.MainModel); fb != "" {
			models = append(models, fb)
		}
	}

	attempt1 := prompt.Input{
		BookTitle: e.BookTitle,
		Role:      role,
		Source:    sourceText,
		Hint:      hint,
		PrevCtx:   prevCtx,
		NextCtx:   nextCtx,
		ExtraHint: e.ExtraHint,
		Attempt:   1,
		Variant:   prompt.Variant{JSONContext: ladder[0].jsonContext},
	}
	if br, ok := e.BatchResults[idx]; ok && !br.Failed {
		p := prompt.BuildTranslation(attempt1)
		if resp, ok := e.parseAndValidate(role, sourceText, p, br.Content, models[0], br.PromptTokens, br.CompletionTokens); ok {
			return resp, nil
		}
	}

	return e.translateSingle(ctx, role, sourceText, hint, prevCtx, nextCtx)
}

// translateSingle runs the (model, temperature, prompt-variant) ladder
// for one already-short-enough piece of source text: it is used both
// for an ordinary task and for each sub-batch of a long-input split.
func (e *Engine) translateSingle(ctx context.Context, role document.Role, sourceText, hint string, prevCtx, nextCtx []string) (*document.Response, error) {
	if e.Cache != nil {
		if raw, ok := e.Cache.GetExactMatch(sourceText, cacheLangPair); ok {
			attempt1 := prompt.Input{
				BookTitle: e.BookTitle,
				Role:      role,
				Source:    sourceText,
				Hint:      hint,
				PrevCtx:   prevCtx,
				NextCtx:   nextCtx,
				ExtraHint: e.ExtraHint,
				Attempt:   1,
				Variant:   prompt.Variant{JSONContext: ladder[0].jsonContext},
			}
			p := prompt.BuildTranslation(attempt1)
			if resp, ok := e.parseAndValidate(role, sourceText, p, raw, e.MainModel, 0, 0); ok {
				return resp, nil
			}
		}
	}

	models := []string{e.MainModel}
	if !e.NoFallback {
		if fb := tokenizer.FallbackModel(e.MainModel); fb != "" {
			models = append(models, fb)
		}
	}

	for _, model := range models {
		for i, r := range ladder {
			attempt := i + 1
			in := prompt.Input{
				BookTitle: e.BookTitle,
				Role:      role,
				Source:    sourceText,
				Hint:      hint,
				PrevCtx:   prevCtx,
				NextCtx:   nextCtx,
				ExtraHint: e.ExtraHint,
				Attempt:   attempt,
				Variant:   prompt.Variant{JSONContext: r.jsonContext},
			}
			p := prompt.BuildTranslation(in)

			result, err := e.Provider.ChatCompletion(ctx, p, model, r.temperature)
			if err != nil {
				time.Sleep(BetweenAttemptsDelay)
				continue
			}

			resp, ok := e.parseAndValidate(role, sourceText, p, result.Content, model, result.PromptTokens, result.CompletionTokens)
			if ok {
				if e.Cache != nil {
					e.Cache.SaveTranslation(sourceText, result.Content, cacheLangPair)
				}
				return resp, nil
			}
			time.Sleep(BetweenAttemptsDelay)
		}
	}

	if e.Failsoft {
		return failsoftResponse(sourceText, hint), nil
	}
	return nil, fmt.Errorf("all retries failed: unable to parse valid response for task")
}

// executeLongInput implements §4.8's long-input handling: split
// sourceText into batches bounded by batchCharBudget characters,
// translate each as its own sub-task with hint threaded from one
// batch's response into the next and prev/next context synthesized
// from the adjacent batch text, then concatenate the results.
func (e *Engine) executeLongInput(ctx context.Context, role document.Role, sourceText, hint string, prevCtx, nextCtx []string) (*document.Response, error) {
	batches := splitIntoBatches(sourceText)
	if len(batches) <= 1 {
		return e.translateSingle(ctx, role, sourceText, hint, prevCtx, nextCtx)
	}

	var allPairs []document.TranslationPair
	totalCost := 0.0
	runningHint := hint
	finalHint := hint
	anyError := false

	for i, b := range batches {
		batchPrev := prevCtx
		if i > 0 {
			batchPrev = []string{batches[i-1]}
		}
		batchNext := nextCtx
		if i < len(batches)-1 {
			batchNext = []string{batches[i+1]}
		}

		resp, err := e.translateSingle(ctx, role, b, runningHint, batchPrev, batchNext)
		if err != nil {
			return nil, fmt.Errorf("long-input batch %d/%d: %w", i+1, len(batches), err)
		}
		pairs, err := resp.Pairs()
		if err != nil {
			return nil, fmt.Errorf("long-input batch %d/%d: %w", i+1, len(batches), err)
		}
		allPairs = append(allPairs, pairs...)
		totalCost += resp.Cost
		anyError = anyError || resp.Error
		if resp.Hint != "" {
			runningHint = resp.Hint
			finalHint = resp.Hint
		}
	}

	out, err := document.NewPairsResponse(allPairs, finalHint, totalCost)
	if err != nil {
		return nil, fmt.Errorf("long-input concat: %w", err)
	}
	out.Error = anyError
	return out, nil
}

// splitIntoBatches C1-splits source into sentences and greedily packs
// them into batches of at most batchCharBudget characters each.
func splitIntoBatches(source string) []string {
	sentences := splitter.Split(source)
	if len(sentences) <= 1 {
		return []string{source}
	}

	var batches []string
	var cur []string
	curLen := 0
	for _, s := range sentences {
		if curLen > 0 && curLen+len(s) > batchCharBudget {
			batches = append(batches, strings.Join(cur, " "))
			cur = nil
			curLen = 0
		}
		cur = append(cur, s)
		curLen += len(s)
	}
	if len(cur) > 0 {
		batches = append(batches, strings.Join(cur, " "))
	}
	return batches
}

// simulateDirective builds a macro/code task's non-translated record
// with no model call, per §3/§4.10: "content is a single {name, value?}
// record". Code blocks carry their full source as value under the
// fixed name "code"; macro blocks split their source line into a bare
// directive name and an optional trailing argument.
func simulateDirective(role document.Role, sourceText string) (*document.Response, error) {
	var content document.MacroContent
	switch role {
	case document.RoleCode:
		v := sourceText
		content = document.MacroContent{Name: "code", Value: &v}
	case document.RoleMacro:
		trimmed := strings.TrimSpace(sourceText)
		if m := macroNameRe.FindStringSubmatch(trimmed); m != nil {
			content.Name = m[1]
			if v := strings.TrimSpace(m[2]); v != "" {
				content.Value = &v
			}
		} else {
			content.Name = trimmed
		}
	}
	return document.NewMacroResponse(content)
}

// parseAndValidate normalizes and decodes a raw assistant message,
// validates its content, and builds a persisted Response. usagePrompt
// and usageCompletion are actual token counts when known (batch
// replay); a zero value falls back to re-tokenizing p/raw.
func (e *Engine) parseAndValidate(role document.Role, sourceText, p, raw, model string, usagePrompt, usageCompletion int) (*document.Response, bool) {
	cleaned := batch.Normalize(raw)

	var data translationResponse
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, false
	}
	if data.ContextHint == "" || len(data.Translations) == 0 {
		return nil, false
	}

	pairs := make([]document.TranslationPair, len(data.Translations))
	for i, t := range data.Translations {
		pairs[i] = document.TranslationPair{Source: t.En, Target: t.Ja}
	}
	reattachQuotes(sourceText, pairs)

	if !validator.ValidateContent(role, sourceText, pairs, validator.MaxDiffRatio) {
		return nil, false
	}

	var cost float64
	switch {
	case usagePrompt > 0 || usageCompletion > 0:
		cost = tokenizer.CostFromUsage(usagePrompt, usageCompletion, model)
	case e.Tokenizer != nil:
		cost = e.Tokenizer.EstimateCost(p, raw, model)
	}

	resp, err := document.NewPairsResponse(pairs, data.ContextHint, cost)
	if err != nil {
		return nil, false
	}
	return resp, true
}

// reattachQuotes restores a leading/trailing quotation mark the model
// dropped from the first/last translation pair, mirroring the
// original engine's quote-reattachment heuristic.
func reattachQuotes(sourceText string, pairs []document.TranslationPair) {
	if len(pairs) == 0 {
		return
	}
	if m := leadingQuoteRe.FindString(sourceText); m != "" {
		first := &pairs[0]
		if !strings.HasPrefix(first.Source, m) {
			first.Source = m + first.Source
			if !leadingQuoteRe.MatchString(first.Target) {
				first.Target = "「" + first.Target
			}
		}
	}
	if m := trailingQuoteRe.FindString(sourceText); m != "" {
		last := &pairs[len(pairs)-1]
		if !strings.HasSuffix(last.Source, m) {
			last.Source = last.Source + m
			if !trailingQuoteRe.MatchString(last.Target) {
				last.Target = last.Target + "」"
			}
		}
	}
}

func intactResponse(sourceText, hint string) *document.Response {
	pairs := []document.TranslationPair{{Source: sourceText, Target: sourceText}}
	resp, _ := document.NewPairsResponse(pairs, hint, 0)
	resp.Intact = true
	return resp
}

func failsoftResponse(sourceText, hint string) *document.Response {
	pairs := []document.TranslationPair{{Source: sourceText, Target: "[*FAILSOFT*]"}}
	resp, _ := document.NewPairsResponse(pairs, hint, 0)
	resp.Error = true
	return resp
}
