package usecase

import (
	"sort"

	"github.com/kirillkom/lexrag/internal/core/domain"
)

type fusedCandidate struct {
	doc      domain.RetrievedDocument
	semantic float64
	keyword  float64
	hasSem   bool
	hasKey   bool
}

// fuseHybridCandidates combines semantic and lexical result lists into one
// ranking: min-max normalize each list's scores, then take the weighted
// linear combination. Candidates present in only one list contribute zero
// on the missing side.
func fuseHybridCandidates(semantic, lexical []domain.RetrievedDocument, semanticWeight float64) []domain.RetrievedDocument {
	if semanticWeight < 0 {
		semanticWeight = 0
	}
	if semanticWeight > 1 {
		semanticWeight = 1
	}

	acc := make(map[string]*fusedCandidate, len(semantic)+len(lexical))
	add := func(docs []domain.RetrievedDocument, isSemantic bool) {
		for _, doc := range docs {
			candidate, ok := acc[doc.DocumentID]
			if !ok {
				candidate = &fusedCandidate{doc: doc}
				acc[doc.DocumentID] = candidate
			}
			if candidate.doc.Snippet == "" && doc.Snippet != "" {
				candidate.doc = doc
			}
			if isSemantic {
				candidate.semantic = doc.Relevance
				candidate.hasSem = true
			} else {
				candidate.keyword = doc.Relevance
				candidate.hasKey = true
			}
		}
	}
	add(semantic, true)
	add(lexical, false)

	normSem := minMaxNormalizer(scoresOf(acc, func(c *fusedCandidate) (float64, bool) { return c.semantic, c.hasSem }))
	normKey := minMaxNormalizer(scoresOf(acc, func(c *fusedCandidate) (float64, bool) { return c.keyword, c.hasKey }))

	out := make([]domain.RetrievedDocument, 0, len(acc))
	for _, c := range acc {
		doc := c.doc
		sem, key := 0.0, 0.0
		if c.hasSem {
			sem = normSem(c.semantic)
		}
		if c.hasKey {
			key = normKey(c.keyword)
		}
		doc.Relevance = semanticWeight*sem + (1-semanticWeight)*key
		out = append(out, doc)
	}

	sortByRank(out)
	return out
}

// sortByRank applies the deterministic ordering used everywhere downstream:
// relevance desc, freshness desc, document id asc.
func sortByRank(docs []domain.RetrievedDocument) {
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Relevance != docs[j].Relevance {
			return docs[i].Relevance > docs[j].Relevance
		}
		if docs[i].Freshness != docs[j].Freshness {
			return docs[i].Freshness > docs[j].Freshness
		}
		return docs[i].DocumentID < docs[j].DocumentID
	})
}

func trimCandidates(docs []domain.RetrievedDocument, limit int) []domain.RetrievedDocument {
	if limit <= 0 || len(docs) <= limit {
		return docs
	}
	return docs[:limit]
}

func filterByThreshold(docs []domain.RetrievedDocument, threshold float64) []domain.RetrievedDocument {
	if threshold <= 0 {
		return docs
	}
	out := docs[:0]
	for _, doc := range docs {
		if doc.Relevance >= threshold {
			out = append(out, doc)
		}
	}
	return out
}

func scoresOf(acc map[string]*fusedCandidate, pick func(*fusedCandidate) (float64, bool)) []float64 {
	out := make([]float64, 0, len(acc))
	for _, c := range acc {
		if v, ok := pick(c); ok {
			out = append(out, v)
		}
	}
	return out
}

func minMaxNormalizer(scores []float64) func(float64) float64 {
	if len(scores) == 0 {
		return func(float64) float64 { return 0 }
	}
	minScore, maxScore := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < minScore {
			minScore = s
		}
		if s > maxScore {
			maxScore = s
		}
	}
	scoreRange := maxScore - minScore
	return func(v float64) float64 {
		if scoreRange <= 0 {
			if v > 0 {
				return 1
			}
			return 0
		}
		return (v - minScore) / scoreRange
	}
}
