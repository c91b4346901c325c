// Package tokenizer provides deterministic BPE token counting (for
// cost estimation and batch sizing) backed by the real cl100k_base
// vocabulary, plus the fixed per-model price table used for cost
// accounting.
package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Estimator counts tokens with the cl100k_base encoding.
type Estimator struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// NewEstimator builds an Estimator backed by the cl100k_base BPE
// vocabulary (the encoding OpenAI's gpt-3.5/gpt-4 family uses).
func NewEstimator() (*Estimator, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("load cl100k_base encoding: %w", err)
	}
	return &Estimator{enc: enc}, nil
}

// Tokens returns the exact token count for text.
func (e *Estimator) Tokens(text string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.enc.Encode(text, nil, nil))
}

// Pricing is the USD-per-1000-tokens rate for a model.
type Pricing struct {
	InputPer1K  float64
	OutputPer1K float64
}

// ModelTable is the ordered set of known models and their pricing,
// mirroring the reference implementation's CHATGPT_MODELS list: the
// retry ladder falls back to the first entry distinct from the
// primary model.
var ModelTable = []struct {
	Name    string
	Pricing Pricing
}{
	{"gpt-3.5-turbo", Pricing{InputPer1K: 0.0005, OutputPer1K: 0.0015}},
	{"gpt-4o", Pricing{InputPer1K: 0.005, OutputPer1K: 0.015}},
	{"gpt-4-turbo", Pricing{InputPer1K: 0.01, OutputPer1K: 0.03}},
	{"gpt-4", Pricing{InputPer1K: 0.03, OutputPer1K: 0.06}},
	{"gemini-1.5-flash", Pricing{InputPer1K: 0.000075, OutputPer1K: 0.0003}},
	{"gemini-1.5-pro", Pricing{InputPer1K: 0.00125, OutputPer1K: 0.005}},
}

// PricingFor looks up a model's price, defaulting to the first entry
// when the model is unrecognized (e.g. a local/custom model name).
func PricingFor(model string) Pricing {
	for _, m := range ModelTable {
		if m.Name == model {
			return m.Pricing
		}
	}
	return ModelTable[0].Pricing
}

// FallbackModel returns the first model in ModelTable distinct from
// primary, for use when the retry ladder exhausts the primary model.
func FallbackModel(primary string) string {
	for _, m := range ModelTable {
		if m.Name != primary {
			return m.Name
		}
	}
	return primary
}

// EstimateCost computes cost = tokens(prompt)/1000*in_rate +
// tokens(response)/1000*out_rate, per §4.3.
func (e *Estimator) EstimateCost(prompt, response, model string) float64 {
	pricing := PricingFor(model)
	inTokens := e.Tokens(prompt)
	outTokens := e.Tokens(response)
	return float64(inTokens)/1000*pricing.InputPer1K + float64(outTokens)/1000*pricing.OutputPer1K
}

// CostFromUsage computes cost directly from already-known token
// counts, for callers (e.g. batch-output replay) that received exact
// usage figures instead of needing to re-tokenize text.
func CostFromUsage(promptTokens, completionTokens int, model string) float64 {
	pricing := PricingFor(model)
	return float64(promptTokens)/1000*pricing.InputPer1K + float64(completionTokens)/1000*pricing.OutputPer1K
}
