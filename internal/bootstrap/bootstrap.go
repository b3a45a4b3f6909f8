package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/lexrag/internal/config"
	"github.com/kirillkom/lexrag/internal/core/domain"
	"github.com/kirillkom/lexrag/internal/core/ports"
	"github.com/kirillkom/lexrag/internal/core/usecase"
	"github.com/kirillkom/lexrag/internal/infrastructure/cache/semantic"
	"github.com/kirillkom/lexrag/internal/infrastructure/invoke"
	"github.com/kirillkom/lexrag/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/lexrag/internal/infrastructure/llm/openaicompat"
	"github.com/kirillkom/lexrag/internal/infrastructure/queue/nats"
	"github.com/kirillkom/lexrag/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/lexrag/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/lexrag/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.HTTPServerMetrics

	AnswerUC ports.QueryAnswerer
	SourceUC ports.SourceInspector
	Cache    *semantic.Cache
	Invoker  *invoke.Manager

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	policy, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sourceRepo := postgres.NewSourceRepository(db)

	index := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel)
	embedder := ollama.NewEmbedder(ollamaClient, time.Duration(cfg.EmbedTimeoutSeconds)*time.Second)

	invoker := invoke.NewManager(invoke.Config{
		CallTimeout:         time.Duration(cfg.GenTimeoutSeconds) * time.Second,
		RacingMaxParallel:   cfg.RacingMaxParallel,
		BreakerFailureRatio: cfg.BreakerFailureRatio,
		BreakerMinRequests:  uint32(cfg.BreakerMinRequests),
		BreakerCooldown:     time.Duration(cfg.BreakerCooldownSecs) * time.Second,
	}, logger)
	if err := registerBackends(invoker, cfg, ollamaClient, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	cache := semantic.New(semantic.Config{
		SimilarityThreshold: cfg.CacheSimilarity,
		TTL:                 time.Duration(cfg.CacheTTLSeconds) * time.Second,
		Capacity:            cfg.CacheCapacity,
	}, logger)
	cache.StartJanitor(ctx, time.Minute)

	feed, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSInvalidationSubject, nats.Options{Logger: logger})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init invalidation feed: %w", err)
	}
	go func() {
		err := feed.SubscribeDocumentUpdated(ctx, func(_ context.Context, documentID string) error {
			cache.PurgeDocument(documentID)
			return nil
		})
		if err != nil && ctx.Err() == nil {
			logger.Error("invalidation_feed_stopped", "error", err)
		}
	}()

	builder := usecase.NewContextBuilder(cfg.ContextTokenBudget, policy.CitationTemplates)
	answerUC := usecase.NewAnswerUseCase(embedder, index, sourceRepo, invoker, cache, builder, usecase.AnswerConfig{
		TopK:             cfg.RAGTopK,
		RetrievalMode:    retrievalMode(cfg.RAGRetrievalMode),
		SemanticWeight:   cfg.RAGSemanticWeight,
		VectorThreshold:  cfg.RAGVectorThreshold,
		HybridCandidates: cfg.RAGHybridCandidates,

		NoContextCeiling:     cfg.NoContextConfCeiling,
		CacheWriteConfidence: cfg.CacheWriteConfidence,
		BlendWeights:         policy.ConfidenceWeights,

		EmbedTimeout:    time.Duration(cfg.EmbedTimeoutSeconds) * time.Second,
		GenerateTimeout: time.Duration(cfg.GenTimeoutSeconds) * time.Second,
		Slack:           time.Duration(cfg.PipelineSlackSeconds) * time.Second,
	}, logger)
	sourceUC := usecase.NewSourceUseCase(sourceRepo)

	return &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.NewHTTPServerMetrics("lexrag-api"),

		AnswerUC: answerUC,
		SourceUC: sourceUC,
		Cache:    cache,
		Invoker:  invoker,

		closeFn: func() {
			feed.Close()
			_ = db.Close()
		},
	}, nil
}

// registerBackends wires generation backends in the order listed in
// BACKEND_ORDER. Unknown names are skipped with a warning so a stale
// entry cannot keep the service from starting.
func registerBackends(invoker *invoke.Manager, cfg config.Config, ollamaClient *ollama.Client, logger *slog.Logger) error {
	genTimeout := time.Duration(cfg.GenTimeoutSeconds) * time.Second
	registered := 0

	for priority, name := range strings.Split(cfg.BackendOrder, ",") {
		switch strings.TrimSpace(name) {
		case "ollama":
			invoker.Register(ollama.NewBackend(ollamaClient), priority, genTimeout)
			registered++
		case "openai-compat":
			if cfg.OpenAICompatURL == "" {
				logger.Info("backend_skipped", "backend", "openai-compat", "reason", "no base url configured")
				continue
			}
			invoker.Register(openaicompat.New(cfg.OpenAICompatURL, cfg.OpenAICompatAPIKey, cfg.OpenAICompatModel), priority, genTimeout)
			registered++
		case "":
		default:
			logger.Warn("backend_unknown", "backend", name)
		}
	}

	if registered == 0 {
		return fmt.Errorf("backend order %q yields no usable generation backend", cfg.BackendOrder)
	}
	return nil
}

func retrievalMode(name string) domain.RetrievalMode {
	return domain.RetrievalMode(strings.TrimSpace(strings.ToLower(name)))
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
