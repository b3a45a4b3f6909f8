package domain

import "time"

type DocumentKind string

const (
	KindStatute  DocumentKind = "statute"
	KindRuling   DocumentKind = "ruling"
	KindRegistry DocumentKind = "registry"
	KindArticle  DocumentKind = "article"
)

// Authority describes the issuing body and locator of a legal source.
type Authority struct {
	IssuingBody string    `json:"issuing_body"`
	IssuedAt    time.Time `json:"issued_at"`
	Locator     string    `json:"locator"`
}

// RetrievedDocument is one ranked retrieval candidate. Produced by the
// index adapters, read-only to everything downstream.
type RetrievedDocument struct {
	DocumentID string       `json:"document_id"`
	Title      string       `json:"title"`
	Snippet    string       `json:"snippet"`
	ContentRef string       `json:"content_ref"`
	Relevance  float64      `json:"relevance"`
	Freshness  float64      `json:"freshness"`
	Kind       DocumentKind `json:"kind"`
	Authority  Authority    `json:"authority"`
}

// SourceDocument is the full stored document returned by GetFullSource.
type SourceDocument struct {
	DocumentID string       `json:"document_id"`
	Title      string       `json:"title"`
	Content    string       `json:"content"`
	Kind       DocumentKind `json:"kind"`
	Authority  Authority    `json:"authority"`
	Freshness  float64      `json:"freshness"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// SourceVerification is the result of a lightweight reachability check
// against a document's locator.
type SourceVerification struct {
	DocumentID   string    `json:"document_id"`
	Accessible   bool      `json:"accessible"`
	Freshness    float64   `json:"freshness_score"`
	LastVerified time.Time `json:"last_verified"`
}

// FreshnessForAge maps document age to the discrete freshness bands used
// across the index and the store: 1.0 under six months, stepping down to
// 0.3 past five years.
func FreshnessForAge(issuedAt, now time.Time) float64 {
	if issuedAt.IsZero() || issuedAt.After(now) {
		return 0.5
	}
	age := now.Sub(issuedAt)
	const month = 30 * 24 * time.Hour
	switch {
	case age <= 6*month:
		return 1.0
	case age <= 12*month:
		return 0.9
	case age <= 24*month:
		return 0.7
	case age <= 60*month:
		return 0.5
	default:
		return 0.3
	}
}
