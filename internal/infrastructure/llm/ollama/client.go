package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/lexrag/internal/core/domain"
	"github.com/kirillkom/lexrag/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
}

func New(baseURL, genModel, embedModel string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// Embedder converts query text into a vector. Exactly one immediate retry
// on transient failure; a second failure surfaces as EmbeddingUnavailable
// and the orchestrator degrades to keyword-only retrieval.
type Embedder struct {
	client   *Client
	timeout  time.Duration
	executor *resilience.Executor
}

func NewEmbedder(client *Client, timeout time.Duration) *Embedder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Embedder{
		client:  client,
		timeout: timeout,
		executor: resilience.NewExecutor(resilience.Config{
			RetryMaxAttempts:    2,
			RetryInitialBackoff: 1 * time.Millisecond,
			RetryMaxBackoff:     1 * time.Millisecond,
			BreakerEnabled:      false,
		}),
	}
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) (domain.QueryEmbedding, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var vector []float32
	call := func(callCtx context.Context) error {
		request := map[string]any{
			"model": e.client.embedModel,
			"input": []string{text},
		}
		var response struct {
			Embeddings [][]float32 `json:"embeddings"`
		}
		if err := e.client.postJSON(callCtx, "/api/embed", request, &response, "embed"); err != nil {
			return err
		}
		if len(response.Embeddings) == 0 || len(response.Embeddings[0]) == 0 {
			return domain.Errorf("empty embedding result")
		}
		vector = response.Embeddings[0]
		return nil
	}

	if err := e.executor.Execute(ctx, "ollama.embed", call, classifyOllamaError); err != nil {
		return domain.QueryEmbedding{}, domain.WrapError(domain.ErrEmbeddingUnavailable, "ollama embed", err)
	}
	return domain.QueryEmbedding{Vector: vector, Model: e.client.embedModel}, nil
}

// Backend adapts the ollama generate API to the invocation manager's
// backend contract.
type Backend struct {
	client *Client
	name   string
}

func NewBackend(client *Client) *Backend {
	return &Backend{client: client, name: "ollama/" + client.genModel}
}

func (b *Backend) Name() string {
	return b.name
}

func (b *Backend) Generate(ctx context.Context, prompt string) (*domain.ModelInvocationResult, error) {
	reqBody := map[string]any{
		"model":  b.client.genModel,
		"prompt": prompt,
		"stream": false,
	}

	var response struct {
		Response        string `json:"response"`
		PromptEvalCount int    `json:"prompt_eval_count"`
		EvalCount       int    `json:"eval_count"`
	}
	start := time.Now()
	if err := b.client.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return nil, err
	}

	return &domain.ModelInvocationResult{
		Backend:          b.name,
		Text:             strings.TrimSpace(response.Response),
		PromptTokens:     response.PromptEvalCount,
		CompletionTokens: response.EvalCount,
		Latency:          time.Since(start),
	}, nil
}
