// internal/server/mux.go
// Package server implements the HTTP handlers and routing for the NovaTube service.
// It exposes the application controller's named operations as JSON endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RegistryAccord/registryaccord-novatube-go/internal/ai"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/app"
	errordefs "github.com/RegistryAccord/registryaccord-novatube-go/internal/errors"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/metrics"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/model"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/studio"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/telemetry"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/watch"
)

// Options configures the HTTP layer.
type Options struct {
	MaxMediaSize       int64                           // Maximum attachment size in bytes
	AllowedMimeTypes   []string                        // Allowed attachment content types
	CORSAllowedOrigins []string                        // Allowed origins for CORS (empty means deny all)
	Metrics            *metrics.Metrics                // Defaults to metrics.NewMetrics()
	Ready              func(ctx context.Context) error // Readiness probe, nil means always ready
}

// Mux handles HTTP requests for the NovaTube service.
type Mux struct {
	mux     *http.ServeMux
	app     *app.Controller
	metrics *metrics.Metrics
	ready   func(ctx context.Context) error

	maxMediaSize       int64
	allowedMimeTypes   []string
	corsAllowedOrigins []string
}

// NewMux creates the HTTP mux with every NovaTube endpoint.
func NewMux(a *app.Controller, opts Options) *http.ServeMux {
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewMetrics()
	}

	m := &Mux{
		mux:                http.NewServeMux(),
		app:                a,
		metrics:            opts.Metrics,
		ready:              opts.Ready,
		maxMediaSize:       opts.MaxMediaSize,
		allowedMimeTypes:   opts.AllowedMimeTypes,
		corsAllowedOrigins: opts.CORSAllowedOrigins,
	}

	// Health endpoints
	m.mux.HandleFunc("/healthz", m.handleHealthz)
	m.mux.HandleFunc("/readyz", m.handleReadyz)
	m.mux.Handle("/metrics", promhttp.Handler())

	// Feed and navigation
	m.mux.HandleFunc("/v1/feed", m.method("GET", m.withMiddleware(m.handleFeed)))
	m.mux.HandleFunc("/v1/catalog/facets", m.method("GET", m.withMiddleware(m.handleFacets)))
	m.mux.HandleFunc("/v1/view", m.method("POST", m.withMiddleware(m.handleSetView)))
	m.mux.HandleFunc("/v1/filter", m.method("POST", m.withMiddleware(m.handleSetFilter)))
	m.mux.HandleFunc("/v1/filter/reset", m.method("POST", m.withMiddleware(m.handleResetFilters)))
	m.mux.HandleFunc("/v1/search", m.method("POST", m.withMiddleware(m.handleSearch)))

	// Watch page
	m.mux.HandleFunc("/v1/watch/open", m.method("POST", m.withMiddleware(m.handleOpen)))
	m.mux.HandleFunc("/v1/watch", m.method("GET", m.withMiddleware(m.handleWatch)))
	m.mux.HandleFunc("/v1/watch/summary", m.method("POST", m.withMiddleware(m.handleSummary)))
	m.mux.HandleFunc("/v1/watch/chat", m.methods(map[string]http.HandlerFunc{
		"GET":  m.withMiddleware(m.handleChatHistory),
		"POST": m.withMiddleware(m.handleChatSend),
	}))
	m.mux.HandleFunc("/v1/watch/comments", m.methods(map[string]http.HandlerFunc{
		"GET":  m.withMiddleware(m.handleListComments),
		"POST": m.withMiddleware(m.handlePostComment),
	}))

	// Creation studio
	m.mux.HandleFunc("/v1/studio", m.method("GET", m.withMiddleware(m.handleStudio)))
	m.mux.HandleFunc("/v1/studio/mode", m.method("POST", m.withMiddleware(m.handleStudioMode)))
	m.mux.HandleFunc("/v1/studio/prompt", m.method("POST", m.withMiddleware(m.handleStudioPrompt)))
	m.mux.HandleFunc("/v1/studio/manual", m.method("POST", m.withMiddleware(m.handleStudioManual)))
	m.mux.HandleFunc("/v1/studio/draft", m.method("POST", m.withMiddleware(m.handleStudioDraft)))
	m.mux.HandleFunc("/v1/studio/draft/discard", m.method("POST", m.withMiddleware(m.handleStudioDiscard)))
	m.mux.HandleFunc("/v1/studio/draft/confirm", m.method("POST", m.withMiddleware(m.handleStudioConfirm)))
	m.mux.HandleFunc("/v1/studio/media", m.method("POST", m.withMiddleware(m.handleStudioMedia)))
	m.mux.HandleFunc("/v1/studio/upload", m.method("POST", m.withMiddleware(m.handleStudioUpload)))
	m.mux.HandleFunc("/v1/studio/finalize", m.method("POST", m.withMiddleware(m.handleStudioFinalize)))
	m.mux.HandleFunc("/v1/studio/close", m.method("POST", m.withMiddleware(m.handleStudioClose)))

	return m.mux
}

// method ensures the HTTP method matches the expected method
func (m *Mux) method(method string, h http.HandlerFunc) http.HandlerFunc {
	return m.methods(map[string]http.HandlerFunc{method: h})
}

// methods dispatches on the request method. OPTIONS goes to any handler so the
// middleware can answer CORS preflight.
func (m *Mux) methods(handlers map[string]http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.Method]; ok {
			h(w, r)
			return
		}
		if r.Method == "OPTIONS" {
			for _, h := range handlers {
				h(w, r)
				return
			}
		}
		err := errordefs.New(errordefs.NOVA_BAD_REQUEST, "method not allowed", "")
		m.writeErrorDef(w, err)
	}
}

// withMiddleware applies CORS, correlation ids, request logging and metrics
func (m *Mux) withMiddleware(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		origin := r.Header.Get("Origin")
		allowed := origin != "" && m.originAllowed(origin)

		// CORS preflight
		if r.Method == "OPTIONS" {
			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Correlation-Id")
				w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours
			}
			w.WriteHeader(http.StatusOK)
			return
		}
		if allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}

		correlationID := r.Header.Get("X-Correlation-Id")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		r = r.WithContext(telemetry.WithCorrelationID(r.Context(), correlationID))
		w.Header().Set("X-Correlation-Id", correlationID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)

		elapsed := time.Since(start)
		status := strconv.Itoa(rec.status)
		m.metrics.HTTPRequestTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		m.metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(elapsed.Seconds())
		m.logRequest(r, rec.status, elapsed, correlationID, rec.err)
	}
}

func (m *Mux) originAllowed(origin string) bool {
	for _, allowedOrigin := range m.corsAllowedOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
	}
	return false
}

// statusRecorder captures the status code and error written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
	err    error
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// correlationID returns the request's correlation id.
func correlationID(ctx context.Context) string {
	return telemetry.CorrelationID(ctx)
}

// decode reads a JSON body into v, writing a validation error on failure.
func (m *Mux) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_VALIDATION, "invalid JSON", correlationID(r.Context())))
		return false
	}
	return true
}

// writeSuccess writes a successful response
func (m *Mux) writeSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := map[string]interface{}{
		"data": data,
	}
	_ = json.NewEncoder(w).Encode(response)
}

// writeError writes an error response following the NovaTube error taxonomy
func (m *Mux) writeError(w http.ResponseWriter, statusCode int, code, message, correlationID string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	body := map[string]interface{}{
		"code":          code,
		"message":       message,
		"correlationId": correlationID,
	}
	if details != nil {
		body["details"] = details
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"error": body})
}

// writeErrorDef writes an error response using the error definitions package
func (m *Mux) writeErrorDef(w http.ResponseWriter, err *errordefs.Error) {
	if rec, ok := w.(*statusRecorder); ok {
		rec.err = err
	}
	m.writeError(w, err.HTTPStatus, string(err.Code), err.Message, err.CorrelationID, err.Details)
}

// fail maps a domain error onto the error taxonomy and writes it.
func (m *Mux) fail(w http.ResponseWriter, r *http.Request, err error, details interface{}) {
	code, message := classify(err)
	m.writeErrorDef(w, errordefs.NewWithDetails(code, message, correlationID(r.Context()), details))
}

func classify(err error) (errordefs.ErrorCode, string) {
	var transient *ai.TransientError
	switch {
	case errors.Is(err, app.ErrNotFound):
		return errordefs.NOVA_NOT_FOUND, "item not found"
	case errors.Is(err, app.ErrDuplicateID):
		return errordefs.NOVA_CONFLICT, "item id already exists"
	case errors.Is(err, studio.ErrBusy):
		return errordefs.NOVA_BUSY, "a draft is already being generated"
	case errors.Is(err, studio.ErrUploadNotReady), errors.Is(err, studio.ErrWrongStage), errors.Is(err, watch.ErrNoItem):
		return errordefs.NOVA_CONFLICT, err.Error()
	case errors.Is(err, app.ErrInvalidFilter), errors.Is(err, studio.ErrInvalidForm),
		errors.Is(err, model.ErrInvalidItem), errors.Is(err, watch.ErrEmptyText):
		return errordefs.NOVA_VALIDATION, err.Error()
	case errors.Is(err, ai.ErrUnavailable), errors.Is(err, ai.ErrMalformed),
		errors.Is(err, context.DeadlineExceeded), errors.As(err, &transient):
		return errordefs.NOVA_UNAVAILABLE, "generative collaborator unavailable"
	default:
		return errordefs.NOVA_INTERNAL, "internal error"
	}
}

// logRequest logs request details
func (m *Mux) logRequest(r *http.Request, status int, duration time.Duration, correlationID string, err error) {
	attrs := []slog.Attr{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Duration("duration", duration),
		slog.String("user_agent", r.UserAgent()),
		slog.String("remote_addr", r.RemoteAddr),
	}

	if correlationID != "" {
		attrs = append(attrs, slog.String("correlation_id", correlationID))
	}

	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		slog.LogAttrs(r.Context(), slog.LevelError, "request completed with error", attrs...)
	} else {
		slog.LogAttrs(r.Context(), slog.LevelInfo, "request completed", attrs...)
	}
}

// handleHealthz handles liveness health check requests
func (m *Mux) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz handles readiness health check requests
func (m *Mux) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if m.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := m.ready(ctx); err != nil {
			slog.WarnContext(ctx, "readiness check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
