package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/domain/pipeline"
	"github.com/kailas-cloud/ragpipe/internal/domain/search/result"
	logpkg "github.com/kailas-cloud/ragpipe/internal/logger"
	healthuc "github.com/kailas-cloud/ragpipe/internal/usecase/health"
	"github.com/kailas-cloud/ragpipe/internal/usecase/retriever"
)

const (
	defaultQueryTimeout = 30 * time.Second
	maxQueryLength      = 4096
	maxBodyBytes        = 64 << 10
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Options tune request handling.
type Options struct {
	QueryTimeout time.Duration
}

// Server serves the answer API over one document collection.
type Server struct {
	answers       answerer
	state         *pipeline.State
	pipeline      *pipeline.Config
	health        healthChecker
	opts          Options
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. Each request evaluates on a fork of state.
func NewServer(
	answers answerer,
	state *pipeline.State,
	cfg *pipeline.Config,
	health healthChecker,
	opts Options,
	logger *zap.Logger,
) *Server {
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = defaultQueryTimeout
	}
	s := &Server{
		answers:  answers,
		state:    state,
		pipeline: cfg,
		health:   health,
		opts:     opts,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		unknownMergeHandler,
		sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout, CodeTimeout),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeProviderError),
		sentinelHandler(domain.ErrTransformProviderError, http.StatusBadGateway, CodeProviderError),
		sentinelHandler(domain.ErrUnsupportedMethod, http.StatusNotImplemented, CodeUnsupportedMethod),
		sentinelHandler(domain.ErrResolution, http.StatusInternalServerError, CodeUnresolved),
		sentinelHandler(domain.ErrConfiguration, http.StatusInternalServerError, CodeConfiguration),
		sentinelHandler(domain.ErrBuild, http.StatusInternalServerError, CodeBuildFailed),
	}
	return s
}

// AnswerPost handles POST /v1/answer.
func (s *Server) AnswerPost(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	s.answer(w, r, req)
}

// AnswerGet handles GET /v1/answer?q=...&merge=...&query_id=...
func (s *Server) AnswerGet(w http.ResponseWriter, r *http.Request) {
	var params AnswerParams
	query := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, true, "q", query, &params.Q); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid format for parameter q: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "merge", query, &params.Merge); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid format for parameter merge: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "query_id", query, &params.QueryID); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid format for parameter query_id: "+err.Error())
		return
	}

	req := AnswerRequest{Query: params.Q}
	if params.Merge != nil {
		req.Merge = *params.Merge
	}
	if params.QueryID != nil {
		req.QueryID = *params.QueryID
	}
	s.answer(w, r, req)
}

func (s *Server) answer(w http.ResponseWriter, r *http.Request, req AnswerRequest) {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "query is required")
		return
	}
	if len(req.Query) > maxQueryLength {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "query is too long")
		return
	}
	if req.QueryID == "" {
		req.QueryID = uuid.NewString()
	}
	merge := req.Merge
	if merge == "" {
		merge = s.answers.DefaultMerge()
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.QueryTimeout)
	defer cancel()

	start := time.Now()
	results, err := s.answers.Answer(ctx, req.Query, s.state.Fork(), retriever.AnswerOptions{
		Merge:   req.Merge,
		QueryID: req.QueryID,
	})
	if err != nil {
		logpkg.From(r.Context(), nil).Warn("Answer failed",
			zap.String("query_id", req.QueryID), zap.String("merge", merge), zap.Error(err))
		s.handleDomainError(w, err)
		return
	}

	w.Header().Set("X-Query-ID", req.QueryID)
	writeJSON(w, http.StatusOK, AnswerResponse{
		QueryID: req.QueryID,
		Merge:   merge,
		Results: resultsToAPI(results),
		TookMs:  time.Since(start).Milliseconds(),
	})
}

// ListMerges handles GET /v1/merges.
func (s *Server) ListMerges(w http.ResponseWriter, _ *http.Request) {
	def := s.answers.DefaultMerge()
	items := make([]MergeItem, len(s.pipeline.Merges))
	for i, m := range s.pipeline.Merges {
		bridges := m.Bridges
		if bridges == nil {
			bridges = []string{}
		}
		items[i] = MergeItem{
			Name:    m.Name,
			Method:  string(m.Method),
			Bridges: bridges,
			Limit:   m.EffectiveLimit(),
			Default: m.Name == def,
		}
	}
	writeJSON(w, http.StatusOK, MergeListResponse{Items: items})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func resultsToAPI(results []result.Result) []ResultItem {
	items := make([]ResultItem, len(results))
	for i := range results {
		items[i] = ResultItem{
			ID:      results[i].ID(),
			Score:   results[i].Score(),
			Content: results[i].Content(),
		}
	}
	return items
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		context.DeadlineExceeded,
		domain.ErrEmbeddingProviderError,
		domain.ErrTransformProviderError,
		domain.ErrUnsupportedMethod,
		domain.ErrResolution,
		domain.ErrConfiguration,
		domain.ErrBuild,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// unknownMergeHandler maps a client-named merge that is not declared to 404.
func unknownMergeHandler(w http.ResponseWriter, err error, _ string) bool {
	var une *domain.UnknownNameError
	if !errors.As(err, &une) || une.Kind != "merge" || une.From != "" {
		return false
	}
	writeError(w, http.StatusNotFound, CodeMergeNotFound, "merge "+une.Name+" is not declared")
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
