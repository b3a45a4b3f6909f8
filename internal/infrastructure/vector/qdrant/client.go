package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/lexrag/internal/core/domain"
)

// Client reads the hybrid legal-document collection maintained by the
// ingestion pipeline. The collection carries a dense vector per point and
// a hashed sparse vector for lexical matching.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) SearchVector(ctx context.Context, queryVector []float32, limit int) ([]domain.RetrievedDocument, error) {
	if len(queryVector) == 0 {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "qdrant vector search", domain.Errorf("empty query vector"))
	}
	reqBody := map[string]any{
		"query":        queryVector,
		"using":        "dense",
		"limit":        limit,
		"with_payload": true,
	}
	return c.queryPoints(ctx, reqBody, "vector search")
}

func (c *Client) SearchLexical(ctx context.Context, queryText string, limit int) ([]domain.RetrievedDocument, error) {
	sparse := encodeSparseQuery(queryText)
	if len(sparse.Indices) == 0 {
		return nil, nil
	}
	reqBody := map[string]any{
		"query": map[string]any{
			"indices": sparse.Indices,
			"values":  sparse.Values,
		},
		"using":        "sparse",
		"limit":        limit,
		"with_payload": true,
	}
	return c.queryPoints(ctx, reqBody, "lexical search")
}

func (c *Client) queryPoints(ctx context.Context, reqBody map[string]any, operation string) ([]domain.RetrievedDocument, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal %s body: %w", operation, err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/query", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "qdrant "+operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		statusErr := domain.Errorf("qdrant %s status: %s: %s", operation, resp.Status, strings.TrimSpace(string(respBody)))
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "qdrant "+operation, statusErr)
	}

	var queryResp struct {
		Result struct {
			Points []struct {
				Score   float64        `json:"score"`
				Payload map[string]any `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&queryResp); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", operation, err)
	}

	out := make([]domain.RetrievedDocument, 0, len(queryResp.Result.Points))
	for _, p := range queryResp.Result.Points {
		out = append(out, documentFromPayload(p.Score, p.Payload))
	}
	return out, nil
}

func documentFromPayload(score float64, payload map[string]any) domain.RetrievedDocument {
	issuedAt, _ := time.Parse(time.RFC3339, getStringPayload(payload, "issued_at"))
	freshness := getFloatPayload(payload, "freshness")
	if freshness == 0 {
		freshness = domain.FreshnessForAge(issuedAt, time.Now())
	}
	return domain.RetrievedDocument{
		DocumentID: getStringPayload(payload, "doc_id"),
		Title:      getStringPayload(payload, "title"),
		Snippet:    getStringPayload(payload, "snippet"),
		ContentRef: getStringPayload(payload, "content_ref"),
		Relevance:  score,
		Freshness:  freshness,
		Kind:       domain.DocumentKind(getStringPayload(payload, "kind")),
		Authority: domain.Authority{
			IssuingBody: getStringPayload(payload, "issuing_body"),
			IssuedAt:    issuedAt,
			Locator:     getStringPayload(payload, "locator"),
		},
	}
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getFloatPayload(payload map[string]any, key string) float64 {
	v, ok := payload[key]
	if !ok {
		return 0
	}
	f, ok := v.(float64)
	if !ok {
		return 0
	}
	return f
}
