package usecase

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/kirillkom/lexrag/internal/config"
	"github.com/kirillkom/lexrag/internal/core/domain"
	"github.com/kirillkom/lexrag/internal/core/ports"
)

// AnswerConfig carries the pipeline tunables resolved at bootstrap.
type AnswerConfig struct {
	TopK             int
	RetrievalMode    domain.RetrievalMode
	SemanticWeight   float64
	VectorThreshold  float64
	HybridCandidates int

	NoContextCeiling     float64
	CacheWriteConfidence float64
	BlendWeights         config.BlendWeights

	EmbedTimeout    time.Duration
	RetrieveTimeout time.Duration
	GenerateTimeout time.Duration
	Slack           time.Duration
}

func (c AnswerConfig) normalize() AnswerConfig {
	out := c
	if out.TopK <= 0 {
		out.TopK = 5
	}
	if out.RetrievalMode == "" {
		out.RetrievalMode = domain.RetrievalModeHybrid
	}
	if out.SemanticWeight <= 0 || out.SemanticWeight > 1 {
		out.SemanticWeight = 0.6
	}
	if out.VectorThreshold <= 0 {
		out.VectorThreshold = 0.7
	}
	if out.HybridCandidates <= 0 {
		out.HybridCandidates = 30
	}
	if out.NoContextCeiling <= 0 {
		out.NoContextCeiling = 0.5
	}
	if out.CacheWriteConfidence <= 0 {
		out.CacheWriteConfidence = 0.6
	}
	if out.EmbedTimeout <= 0 {
		out.EmbedTimeout = 5 * time.Second
	}
	if out.RetrieveTimeout <= 0 {
		out.RetrieveTimeout = 10 * time.Second
	}
	if out.GenerateTimeout <= 0 {
		out.GenerateTimeout = 60 * time.Second
	}
	if out.Slack <= 0 {
		out.Slack = 10 * time.Second
	}
	return out
}

// AnswerUseCase sequences one query-to-answer pipeline: cache check,
// embedding, retrieval, context assembly, generation, cache write. Each
// call owns its own state; the cache and the invoker are the only shared
// components.
type AnswerUseCase struct {
	embedder ports.Embedder
	index    ports.DocumentIndex
	fallback ports.KeywordSearcher
	invoker  ports.ModelInvoker
	cache    ports.AnswerCache
	builder  *ContextBuilder
	cfg      AnswerConfig
	logger   *slog.Logger
}

func NewAnswerUseCase(
	embedder ports.Embedder,
	index ports.DocumentIndex,
	fallback ports.KeywordSearcher,
	invoker ports.ModelInvoker,
	cache ports.AnswerCache,
	builder *ContextBuilder,
	cfg AnswerConfig,
	logger *slog.Logger,
) *AnswerUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerUseCase{
		embedder: embedder,
		index:    index,
		fallback: fallback,
		invoker:  invoker,
		cache:    cache,
		builder:  builder,
		cfg:      cfg.normalize(),
		logger:   logger,
	}
}

func (uc *AnswerUseCase) AnswerQuery(
	ctx context.Context,
	questionText string,
	hint domain.ContextHint,
	opts domain.QueryOptions,
) (*domain.Answer, error) {
	query := domain.NewQuery(questionText, hint)
	if query.Text == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer query", domain.Errorf("question text is empty"))
	}

	opts = uc.fillOptionDefaults(opts)
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, uc.overallBudget())
	defer cancel()

	embedding, embedErr := uc.embedQuery(ctx, query.Text)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if opts.UseCache && embedErr == nil && uc.cache != nil {
		if cached, ok := uc.cache.Lookup(ctx, embedding); ok {
			hit := *cached
			hit.QueryID = query.ID
			hit.CacheHit = true
			hit.Latency = time.Since(start)
			uc.logger.Info("answer_cache_hit", "query_id", query.ID)
			return &hit, nil
		}
	}

	degradationReason := ""
	if embedErr != nil {
		degradationReason = domain.ErrorKind(domain.WrapError(domain.ErrEmbeddingUnavailable, "embed", embedErr))
		uc.logger.Warn("embedding_degraded", "query_id", query.ID, "error", embedErr)
	}

	docs, retrievalReason := uc.retrieve(ctx, query.Text, embedding, embedErr == nil, opts)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if retrievalReason != "" {
		degradationReason = retrievalReason
	}

	assembled := uc.builder.Build(query.Text, docs)

	prompt := buildAnswerPrompt(query.Text, assembled)
	noSources := assembled.Empty()
	if noSources {
		prompt = buildNoContextPrompt(query.Text, hint)
	}

	result, attempts, err := uc.invoker.Invoke(ctx, prompt, ports.InvocationOptions{Racing: opts.RacingEnabled})
	if err != nil {
		return nil, err
	}

	answerText := sanitizeCitationMarkers(result.Text, len(assembled.Entries))
	confidence := blendConfidence(
		uc.cfg.BlendWeights,
		result.Confidence,
		result.ConfidenceKnown,
		assembled.MeanRelevance(),
		assembled.Freshness,
	)
	if noSources && confidence > uc.cfg.NoContextCeiling {
		confidence = uc.cfg.NoContextCeiling
	}

	answer := &domain.Answer{
		QueryID:           query.ID,
		Text:              answerText,
		CitationMap:       citationMapOf(assembled),
		Sources:           sourcesOf(assembled),
		Confidence:        confidence,
		Backend:           result.Backend,
		Latency:           time.Since(start),
		Degraded:          degradationReason != "",
		DegradationReason: degradationReason,
		NoSources:         noSources,
		Attempts:          attempts,
	}

	uc.maybeCache(ctx, opts, embedding, embedErr == nil, answer)

	uc.logger.Info("answer_generated",
		"query_id", query.ID,
		"backend", answer.Backend,
		"sources", len(answer.Sources),
		"confidence", answer.Confidence,
		"degraded", answer.Degraded,
		"duration_ms", float64(answer.Latency.Microseconds())/1000.0,
	)
	return answer, nil
}

func (uc *AnswerUseCase) fillOptionDefaults(opts domain.QueryOptions) domain.QueryOptions {
	if opts.RetrievalMode == "" {
		opts.RetrievalMode = uc.cfg.RetrievalMode
	}
	if opts.TopK == 0 {
		opts.TopK = uc.cfg.TopK
	}
	if opts.SemanticWeight == 0 {
		opts.SemanticWeight = uc.cfg.SemanticWeight
	}
	return opts
}

func (uc *AnswerUseCase) overallBudget() time.Duration {
	return uc.cfg.EmbedTimeout + uc.cfg.RetrieveTimeout + uc.cfg.GenerateTimeout + uc.cfg.Slack
}

func (uc *AnswerUseCase) embedQuery(ctx context.Context, text string) (domain.QueryEmbedding, error) {
	embedCtx, cancel := context.WithTimeout(ctx, uc.cfg.EmbedTimeout)
	defer cancel()
	return uc.embedder.EmbedQuery(embedCtx, text)
}

// retrieve runs the configured retrieval mode against the primary index
// and falls over to the secondary keyword collaborator when the primary is
// unavailable. Total failure yields the empty candidate list, never an
// error: the no-context branch handles it.
func (uc *AnswerUseCase) retrieve(
	ctx context.Context,
	queryText string,
	embedding domain.QueryEmbedding,
	embeddingOK bool,
	opts domain.QueryOptions,
) ([]domain.RetrievedDocument, string) {
	retrieveCtx, cancel := context.WithTimeout(ctx, uc.cfg.RetrieveTimeout)
	defer cancel()

	mode := opts.RetrievalMode
	if !embeddingOK && mode != domain.RetrievalModeKeyword {
		mode = domain.RetrievalModeKeyword
	}

	switch mode {
	case domain.RetrievalModeVector:
		docs, err := uc.index.SearchVector(retrieveCtx, embedding.Vector, opts.TopK)
		if err != nil {
			return uc.keywordFailover(retrieveCtx, queryText, opts.TopK, err)
		}
		docs = filterByThreshold(docs, uc.cfg.VectorThreshold)
		sortByRank(docs)
		return trimCandidates(docs, opts.TopK), ""

	case domain.RetrievalModeKeyword:
		docs, err := uc.index.SearchLexical(retrieveCtx, queryText, opts.TopK)
		if err != nil {
			return uc.keywordFailover(retrieveCtx, queryText, opts.TopK, err)
		}
		sortByRank(docs)
		return trimCandidates(docs, opts.TopK), ""

	default: // hybrid
		semantic, semErr := uc.index.SearchVector(retrieveCtx, embedding.Vector, uc.cfg.HybridCandidates)
		lexical, lexErr := uc.index.SearchLexical(retrieveCtx, queryText, uc.cfg.HybridCandidates)
		if semErr != nil && lexErr != nil {
			return uc.keywordFailover(retrieveCtx, queryText, opts.TopK, semErr)
		}
		fused := fuseHybridCandidates(semantic, lexical, opts.SemanticWeight)
		return trimCandidates(fused, opts.TopK), ""
	}
}

func (uc *AnswerUseCase) keywordFailover(ctx context.Context, queryText string, limit int, cause error) ([]domain.RetrievedDocument, string) {
	reason := domain.ErrorKind(domain.WrapError(domain.ErrRetrievalUnavailable, "retrieve", cause))
	uc.logger.Warn("retrieval_degraded", "error", cause)

	if uc.fallback == nil || ctx.Err() != nil {
		return nil, reason
	}
	docs, err := uc.fallback.SearchKeyword(ctx, queryText, limit)
	if err != nil {
		uc.logger.Warn("keyword_fallback_failed", "error", err)
		return nil, reason
	}
	sortByRank(docs)
	return trimCandidates(docs, limit), reason
}

// maybeCache writes the answer through the semantic cache. Low-confidence,
// degraded and cancelled results are never cached.
func (uc *AnswerUseCase) maybeCache(ctx context.Context, opts domain.QueryOptions, embedding domain.QueryEmbedding, embeddingOK bool, answer *domain.Answer) {
	if uc.cache == nil || !opts.UseCache || !embeddingOK {
		return
	}
	if ctx.Err() != nil || answer.Degraded {
		return
	}
	threshold := uc.cfg.CacheWriteConfidence
	if opts.ConfidenceFloor > threshold {
		threshold = opts.ConfidenceFloor
	}
	if answer.Confidence < threshold {
		return
	}
	uc.cache.Store(ctx, embedding, *answer)
}

var citationMarkerPattern = regexp.MustCompile(`\[(\d+)\]`)

// sanitizeCitationMarkers strips markers that do not correspond to an
// assembled citation entry, so every surviving [n] resolves through the
// citation map.
func sanitizeCitationMarkers(text string, entryCount int) string {
	return citationMarkerPattern.ReplaceAllStringFunc(text, func(marker string) string {
		id, err := strconv.Atoi(marker[1 : len(marker)-1])
		if err != nil || id < 1 || id > entryCount {
			return ""
		}
		return marker
	})
}

func citationMapOf(assembled domain.AssembledContext) map[int]string {
	out := make(map[int]string, len(assembled.Entries))
	for _, e := range assembled.Entries {
		out[e.ID] = e.Formatted
	}
	return out
}

func sourcesOf(assembled domain.AssembledContext) []domain.AnswerSource {
	out := make([]domain.AnswerSource, 0, len(assembled.Entries))
	for _, e := range assembled.Entries {
		out = append(out, domain.AnswerSource{
			CitationID: e.ID,
			DocumentID: e.Document.DocumentID,
			Title:      e.Document.Title,
			Kind:       e.Document.Kind,
			Formatted:  e.Formatted,
			Excerpt:    e.Excerpt,
			Relevance:  e.Document.Relevance,
			Freshness:  e.Document.Freshness,
		})
	}
	return out
}
