package tokenizer

import "testing"

func TestTokensNonNegative(t *testing.T) {
	est, err := NewEstimator()
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}
	if got := est.Tokens(""); got != 0 {
		t.Errorf("empty text: got %d tokens, want 0", got)
	}
	if got := est.Tokens("hello world"); got <= 0 {
		t.Errorf("expected positive token count, got %d", got)
	}
}

func TestPricingForKnownModel(t *testing.T) {
	p := PricingFor("gpt-4o")
	if p.InputPer1K != 0.005 {
		t.Errorf("unexpected input price: %v", p.InputPer1K)
	}
}

func TestPricingForUnknownModel(t *testing.T) {
	p := PricingFor("some-unknown-model")
	if p != ModelTable[0].Pricing {
		t.Errorf("expected default pricing for unknown model")
	}
}

func TestFallbackModelDistinct(t *testing.T) {
	fb := FallbackModel(ModelTable[0].Name)
	if fb == ModelTable[0].Name {
		t.Errorf("fallback model should differ from primary")
	}
}

func TestEstimateCost(t *testing.T) {
	est, err := NewEstimator()
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}
	cost := est.EstimateCost("hello", "world", "gpt-4o")
	if cost < 0 {
		t.Errorf("cost should be non-negative, got %v", cost)
	}
}
