package usecase

import "github.com/kirillkom/lexrag/internal/config"

// blendConfidence combines the backend's self-reported confidence with the
// mean retrieval relevance and the context freshness. When the backend
// reports nothing, its weight is redistributed over the retrieval signals.
func blendConfidence(weights config.BlendWeights, modelConfidence float64, modelKnown bool, meanRelevance, freshness float64) float64 {
	w := weights.Normalized()
	if !modelKnown {
		rest := w.Relevance + w.Freshness
		if rest <= 0 {
			return clamp01((meanRelevance + freshness) / 2)
		}
		return clamp01((w.Relevance*meanRelevance + w.Freshness*freshness) / rest)
	}
	return clamp01(w.Model*modelConfidence + w.Relevance*meanRelevance + w.Freshness*freshness)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
