package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/lexrag/internal/config"
	"github.com/kirillkom/lexrag/internal/core/domain"
	"github.com/kirillkom/lexrag/internal/core/ports"
	"github.com/kirillkom/lexrag/internal/observability/metrics"
)

type Router struct {
	cfg      config.Config
	metrics  *metrics.HTTPServerMetrics
	answerer ports.QueryAnswerer
	sources  ports.SourceInspector
}

func NewRouter(
	cfg config.Config,
	serverMetrics *metrics.HTTPServerMetrics,
	answerer ports.QueryAnswerer,
	sources ports.SourceInspector,
) *Router {
	return &Router{
		cfg:      cfg,
		metrics:  serverMetrics,
		answerer: answerer,
		sources:  sources,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/query", rt.answerQuery)
	mux.HandleFunc("/v1/sources/", rt.sourceByID)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, 50*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	handler = accessLogMiddleware(handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("lexrag-api", handler)
	}
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type queryRequest struct {
	Question string             `json:"question"`
	Hint     domain.ContextHint `json:"hint"`
	Options  *queryOptionsBody  `json:"options"`
}

// queryOptionsBody uses pointers so an absent field falls back to the
// server-side default instead of the zero value.
type queryOptionsBody struct {
	UseCache        *bool    `json:"use_cache"`
	RetrievalMode   *string  `json:"retrieval_mode"`
	SemanticWeight  *float64 `json:"semantic_weight"`
	TopK            *int     `json:"top_k"`
	RacingEnabled   *bool    `json:"racing_enabled"`
	ConfidenceFloor *float64 `json:"confidence_floor"`
}

func (rt *Router) answerQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json", "kind": "InvalidInput"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required", "kind": "InvalidInput"})
		return
	}

	opts := rt.defaultOptions()
	if req.Options != nil {
		applyOptionOverrides(&opts, req.Options)
	}

	answer, err := rt.answerer.AnswerQuery(r.Context(), req.Question, req.Hint, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordAnswer("lexrag-api", string(opts.RetrievalMode), opts.UseCache, answer)
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) defaultOptions() domain.QueryOptions {
	opts := domain.DefaultQueryOptions()
	if rt.cfg.RAGRetrievalMode != "" {
		opts.RetrievalMode = domain.RetrievalMode(rt.cfg.RAGRetrievalMode)
	}
	if rt.cfg.RAGSemanticWeight > 0 {
		opts.SemanticWeight = rt.cfg.RAGSemanticWeight
	}
	if rt.cfg.RAGTopK > 0 {
		opts.TopK = rt.cfg.RAGTopK
	}
	return opts
}

func applyOptionOverrides(opts *domain.QueryOptions, body *queryOptionsBody) {
	if body.UseCache != nil {
		opts.UseCache = *body.UseCache
	}
	if body.RetrievalMode != nil {
		opts.RetrievalMode = domain.RetrievalMode(*body.RetrievalMode)
	}
	if body.SemanticWeight != nil {
		opts.SemanticWeight = *body.SemanticWeight
	}
	if body.TopK != nil {
		opts.TopK = *body.TopK
	}
	if body.RacingEnabled != nil {
		opts.RacingEnabled = *body.RacingEnabled
	}
	if body.ConfidenceFloor != nil {
		opts.ConfidenceFloor = *body.ConfidenceFloor
	}
}

// sourceByID serves GET /v1/sources/{document_id} and
// GET /v1/sources/{document_id}/verify.
func (rt *Router) sourceByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/sources/")
	id, verify := strings.CutSuffix(rest, "/verify")
	id = strings.Trim(id, "/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required", "kind": "InvalidInput"})
		return
	}

	if verify {
		verification, err := rt.sources.VerifySource(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, verification)
		return
	}

	doc, err := rt.sources.GetFullSource(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{
		"error": err.Error(),
		"kind":  domain.ErrorKind(err),
	})
}
