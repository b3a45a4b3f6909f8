package usecase

import (
	"testing"

	"github.com/kirillkom/lexrag/internal/config"
)

func TestBlendConfidenceWeightedSum(t *testing.T) {
	weights := config.BlendWeights{Model: 0.5, Relevance: 0.3, Freshness: 0.2}

	got := blendConfidence(weights, 0.8, true, 0.6, 1.0)
	want := 0.5*0.8 + 0.3*0.6 + 0.2*1.0
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("blend mismatch: got %f, want %f", got, want)
	}
}

func TestBlendConfidenceRedistributesUnknownModelWeight(t *testing.T) {
	weights := config.BlendWeights{Model: 0.5, Relevance: 0.3, Freshness: 0.2}

	got := blendConfidence(weights, 0, false, 0.6, 1.0)
	want := (0.3*0.6 + 0.2*1.0) / 0.5
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("redistributed blend mismatch: got %f, want %f", got, want)
	}
}

func TestBlendConfidenceClamped(t *testing.T) {
	weights := config.BlendWeights{Model: 1, Relevance: 1, Freshness: 1}
	if got := blendConfidence(weights, 5, true, 5, 5); got != 1 {
		t.Fatalf("expected clamp to 1, got %f", got)
	}
	if got := blendConfidence(weights, -5, true, -5, -5); got != 0 {
		t.Fatalf("expected clamp to 0, got %f", got)
	}
}

func TestExtractTermsDropsNoise(t *testing.T) {
	terms := extractTerms("What is the notice-period? A!")
	want := []string{"what", "is", "the", "notice", "period"}
	if len(terms) != len(want) {
		t.Fatalf("got %v, want %v", terms, want)
	}
	for i := range want {
		if terms[i] != want[i] {
			t.Fatalf("term %d: got %q, want %q", i, terms[i], want[i])
		}
	}
}

func TestHighlightTermsWholeWordOnly(t *testing.T) {
	out := highlightTerms("Act acting ACT", []string{"act"})
	want := HighlightOpen + "Act" + HighlightClose + " acting " + HighlightOpen + "ACT" + HighlightClose
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}
