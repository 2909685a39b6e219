// Package api serves the answer chain over HTTP.
//
//	POST /ask      {"question": "...", "k": 4} -> AskResponse
//	GET  /healthz  health report
//	GET  /metrics  Prometheus metrics
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/calque-ai/movierag/pkg/calque"
	"github.com/calque-ai/movierag/pkg/middleware/cache"
	"github.com/calque-ai/movierag/pkg/middleware/ctrl"
	"github.com/calque-ai/movierag/pkg/middleware/logger"
	"github.com/calque-ai/movierag/pkg/middleware/observability"
	"github.com/calque-ai/movierag/pkg/rag"
)

// maxBody bounds the request body.
const maxBody = 64 << 10

// AskRequest is the body of POST /ask.
type AskRequest struct {
	Question string `json:"question"`
	K        int    `json:"k,omitempty"`
}

// AskResponse is the answer with the documents it was built from.
type AskResponse struct {
	rag.Answer
	TraceID   string   `json:"trace_id"`
	Documents []string `json:"documents"`
	Truncated bool     `json:"truncated,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// Server holds what the routes need. Zero fields are optional except
// Chain.
type Server struct {
	Chain   *rag.Chain
	Log     *slog.Logger
	Logger  *logger.Logger
	Metrics *observability.PrometheusProvider
	Tracer  observability.TracerProvider
	Health  *observability.HealthCheckRegistry

	// Cache answers identical requests from this store for CacheTTL.
	Cache    cache.Store
	CacheTTL time.Duration

	// Limiter bounds the rate of /ask calls.
	Limiter *ctrl.Limiter
}

// Handler returns the routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /ask", s.serve(s.askHandler()))
	if s.Health != nil {
		mux.Handle("GET /healthz", s.Health.HTTPHandler())
	}
	if s.Metrics != nil {
		mux.Handle("GET /metrics", s.Metrics.Handler())
	}
	return mux
}

// askHandler composes the /ask pipeline: rate limit, tracing, metrics,
// timing log and response cache around the chain.
func (s *Server) askHandler() calque.Handler {
	var h calque.Handler = calque.HandlerFunc(s.ask)
	if s.Cache != nil {
		mem := cache.NewCacheWithStore(s.Cache)
		mem.OnError(func(err error) { s.log().Warn("answer cache failed", "error", err) })
		h = mem.Cache(h, s.CacheTTL)
	}
	h = s.Logger.Timing(logger.InfoLevel, "ask", h)
	if s.Metrics != nil {
		h = observability.MetricsHandler(s.Metrics, map[string]string{"route": "ask"}, h)
	}
	if s.Tracer != nil {
		h = observability.TracingHandler(s.Tracer, "POST /ask", h)
	}
	if s.Limiter != nil {
		h = ctrl.RateLimit(s.Limiter, h)
	}
	return h
}

func (s *Server) ask(req *calque.Request, res *calque.Response) error {
	var in AskRequest
	if err := json.NewDecoder(req.Data).Decode(&in); err != nil {
		return calque.WrapErr(req.Context, err, "decode request").WithKind(calque.ErrValidation)
	}

	var opts []rag.Option
	if in.K > 0 {
		opts = append(opts, rag.WithK(in.K))
	}
	result, err := s.Chain.Run(req.Context, strings.TrimSpace(in.Question), opts...)
	if err != nil {
		return err
	}

	out := AskResponse{
		Answer:    *result.Answer,
		TraceID:   result.TraceID,
		Documents: make([]string, len(result.Documents)),
		Truncated: len(result.Dropped) > 0,
	}
	for i, d := range result.Documents {
		out.Documents[i] = d.Source
	}
	data, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return calque.Write(res, data)
}

// serve adapts a calque handler to net/http with a request id and the
// request-scoped logger.
func (s *Server) serve(h calque.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := calque.WithRequestID(r.Context(), requestID)
		ctx = calque.WithLogger(ctx, s.log())
		w.Header().Set("X-Request-ID", requestID)
		w.Header().Set("Content-Type", "application/json")

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
		if err != nil {
			if tooLarge := new(http.MaxBytesError); errors.As(err, &tooLarge) {
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				_ = json.NewEncoder(w).Encode(errorResponse{Error: err.Error(), Kind: observability.ErrorKind(calque.ErrValidation)})
				return
			}
			writeError(w, calque.WrapErr(ctx, err, "read body").WithKind(calque.ErrValidation))
			return
		}

		out, err := calque.Serve(ctx, h, string(body))
		if err != nil {
			calque.LogWarn(ctx, "request failed", "path", r.URL.Path, "error", err)
			writeError(w, err)
			return
		}
		_, _ = io.WriteString(w, out)
	})
}

func (s *Server) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

// StatusCode maps the kind reported by calque.KindOf to an HTTP status.
func StatusCode(err error) int {
	switch calque.KindOf(err) {
	case calque.ErrValidation:
		return http.StatusBadRequest
	case calque.ErrStoreUnavailable:
		return http.StatusServiceUnavailable
	case calque.ErrEmbeddingService, calque.ErrCompletionService:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	w.WriteHeader(StatusCode(err))
	_ = json.NewEncoder(w).Encode(errorResponse{Error: err.Error(), Kind: observability.ErrorKind(err)})
}
