package gateway

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/errors"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/metric"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/service"
)

// Requester is the slice of the NATS client the gateway needs. The managed
// *natsclient.Client satisfies it; tests substitute a canned responder.
type Requester interface {
	Request(ctx context.Context, subject string, data []byte) ([]byte, error)
}

const (
	defaultMaxRequestSize = 1 << 20   // 1MB
	maxRequestSizeCap     = 100 << 20 // 100MB
)

// Gateway forwards HTTP requests over NATS and translates the reply envelope
// back into HTTP. Successful replies are unwrapped: clients receive the data
// payload, not the envelope, because the HTTP status already carries the
// outcome.
type Gateway struct {
	client Requester
	routes []Route
	logger *slog.Logger
	core   *metric.Metrics

	limiter        *rateLimiter
	corsOrigins    []string
	maxRequestSize int64

	requestsTotal  atomic.Uint64
	requestsFailed atomic.Uint64
}

// Option configures optional gateway behavior.
type Option func(*Gateway)

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger.With("component", "gateway")
		}
	}
}

// WithMetrics records per-route request, duration and error counters on the
// core metrics set.
func WithMetrics(core *metric.Metrics) Option {
	return func(g *Gateway) {
		g.core = core
	}
}

// WithRateLimit enables a per-client token bucket. perSecond <= 0 leaves the
// gateway unlimited.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(g *Gateway) {
		if perSecond > 0 {
			g.limiter = newRateLimiter(perSecond, burst)
		}
	}
}

// WithCORS allows cross-origin requests from the listed origins. "*" allows
// any origin; an empty list leaves CORS off.
func WithCORS(origins ...string) Option {
	return func(g *Gateway) {
		g.corsOrigins = origins
	}
}

// WithMaxRequestSize overrides the request body limit in bytes.
func WithMaxRequestSize(n int64) Option {
	return func(g *Gateway) {
		g.maxRequestSize = n
	}
}

// New builds a gateway over the given route table. Routes are validated here
// so a bad table fails at startup, not on first request.
func New(client Requester, routes []Route, opts ...Option) (*Gateway, error) {
	if client == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Gateway", "New",
			"NATS client is required")
	}
	if len(routes) == 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Gateway", "New",
			"at least one route is required")
	}

	g := &Gateway{
		client:         client,
		routes:         make([]Route, len(routes)),
		logger:         slog.Default().With("component", "gateway"),
		maxRequestSize: defaultMaxRequestSize,
	}
	copy(g.routes, routes)

	for i := range g.routes {
		if err := g.routes[i].Validate(); err != nil {
			return nil, errors.WrapInvalid(err, "Gateway", "New",
				fmt.Sprintf("route %s %s", g.routes[i].Method, g.routes[i].Path))
		}
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.maxRequestSize <= 0 || g.maxRequestSize > maxRequestSizeCap {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Gateway", "New",
			fmt.Sprintf("max request size must be between 1 and %d bytes", maxRequestSizeCap))
	}

	return g, nil
}

// RegisterRoutes installs the route table on mux using method-qualified
// patterns, so the mux answers 405 for wrong methods on its own. When CORS
// origins are configured each path also answers OPTIONS preflight.
func (g *Gateway) RegisterRoutes(mux *http.ServeMux) {
	preflight := make(map[string]bool)
	for _, route := range g.routes {
		mux.HandleFunc(route.Method+" "+route.Path, g.routeHandler(route))

		if len(g.corsOrigins) > 0 && !preflight[route.Path] {
			preflight[route.Path] = true
			mux.HandleFunc("OPTIONS "+route.Path, g.handlePreflight)
		}
	}
}

// Stats reports request counters since construction.
type Stats struct {
	Requests uint64 `json:"requests"`
	Failed   uint64 `json:"failed"`
}

// Stats returns a snapshot of the request counters.
func (g *Gateway) Stats() Stats {
	return Stats{
		Requests: g.requestsTotal.Load(),
		Failed:   g.requestsFailed.Load(),
	}
}

// routeHandler builds the handler for one route. The mux has already matched
// method and path; the handler owns limits, forwarding and error mapping.
func (g *Gateway) routeHandler(route Route) http.HandlerFunc {
	op := strings.TrimPrefix(route.Subject, service.SubjectPrefix+".")

	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := requestID(r)
		w.Header().Set("X-Request-ID", reqID)

		g.requestsTotal.Add(1)
		if g.core != nil {
			g.core.RecordRequest("gateway", op)
		}

		if len(g.corsOrigins) > 0 {
			g.applyCORS(w, r)
		}

		if g.limiter != nil && !g.limiter.allow(r.RemoteAddr) {
			g.fail(w, op, reqID, http.StatusTooManyRequests, "rate_limited",
				"rate limit exceeded")
			return
		}

		defer r.Body.Close()

		// Read one byte past the limit so an oversized body is detected
		// without buffering all of it.
		body, err := io.ReadAll(io.LimitReader(r.Body, g.maxRequestSize+1))
		if err != nil {
			g.fail(w, op, reqID, http.StatusBadRequest, service.CodeBadRequest,
				"failed to read request body")
			return
		}
		if int64(len(body)) > g.maxRequestSize {
			g.fail(w, op, reqID, http.StatusRequestEntityTooLarge, service.CodeBadRequest,
				fmt.Sprintf("request body exceeds %d bytes", g.maxRequestSize))
			return
		}

		payload := body
		if route.Payload != nil {
			payload, err = route.Payload(r, body)
			if err != nil {
				g.fail(w, op, reqID, http.StatusBadRequest, service.CodeBadRequest, err.Error())
				return
			}
		}

		ctx, cancel := context.WithTimeout(r.Context(), route.Timeout)
		defer cancel()

		raw, err := g.client.Request(ctx, route.Subject, payload)
		if err != nil {
			g.logger.Warn("NATS request failed",
				"subject", route.Subject,
				"request_id", reqID,
				"error", err)
			status, msg := transportFailure(err)
			g.fail(w, op, reqID, status, service.CodeUnavailable, msg)
			return
		}

		var reply service.Reply
		if err := json.Unmarshal(raw, &reply); err != nil {
			g.logger.Error("undecodable service reply",
				"subject", route.Subject,
				"request_id", reqID,
				"error", err)
			g.fail(w, op, reqID, http.StatusBadGateway, service.CodeInternal,
				"invalid reply from service")
			return
		}

		if !reply.OK {
			status, msg := replyFailure(reply.Error)
			code := service.CodeInternal
			if reply.Error != nil {
				code = reply.Error.Code
			}
			g.fail(w, op, reqID, status, code, msg)
			return
		}

		if g.core != nil {
			g.core.RecordProcessingDuration("gateway", op, time.Since(start))
		}

		data := reply.Data
		if len(data) == 0 {
			data = []byte("null")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(data); err != nil {
			g.requestsFailed.Add(1)
		}
	}
}

// handlePreflight answers OPTIONS for CORS-enabled paths.
func (g *Gateway) handlePreflight(w http.ResponseWriter, r *http.Request) {
	g.applyCORS(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// applyCORS mirrors the origin back when it is on the allow list.
func (g *Gateway) applyCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")

	allowed := false
	for _, candidate := range g.corsOrigins {
		if candidate == "*" || candidate == origin {
			allowed = true
			break
		}
	}
	if !allowed {
		return
	}

	if origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
	} else {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// fail answers the request with the shared error body and records the
// failure.
func (g *Gateway) fail(w http.ResponseWriter, op, requestID string, status int, code, message string) {
	g.requestsFailed.Add(1)
	if g.core != nil {
		g.core.RecordError("gateway", code)
	}
	writeError(w, status, code, message, requestID)
}

// transportFailure maps a failed NATS exchange onto an HTTP answer. Transport
// detail never reaches the client; timeouts get their own status so callers
// can tell a slow service from a missing one.
func transportFailure(err error) (int, string) {
	if stderrors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return http.StatusGatewayTimeout, "request timeout"
	}
	return http.StatusServiceUnavailable, "service temporarily unavailable"
}

// replyFailure maps a service error envelope onto an HTTP status and a
// client-safe message. Validation feedback and not-found messages pass
// through: the service wrote them for the caller. Server-side failure detail
// is genericized.
func replyFailure(re *service.ReplyError) (int, string) {
	if re == nil {
		return http.StatusInternalServerError, "internal server error"
	}

	status := http.StatusInternalServerError
	switch re.Code {
	case service.CodeRunNotFound:
		status = http.StatusNotFound
	case service.CodeUnavailable:
		status = http.StatusServiceUnavailable
	case service.CodeInternal, service.CodeStageFailure:
		status = http.StatusInternalServerError
	default:
		switch re.Class {
		case errors.ErrorInvalid.String():
			status = http.StatusBadRequest
		case errors.ErrorTransient.String():
			status = http.StatusServiceUnavailable
		}
	}

	switch status {
	case http.StatusBadRequest, http.StatusNotFound:
		return status, re.Message
	case http.StatusServiceUnavailable:
		return status, "service temporarily unavailable"
	default:
		return status, "internal server error"
	}
}

// writeError writes the JSON error body shared by every failure path.
func writeError(w http.ResponseWriter, status int, code, message, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	body := map[string]any{
		"error":      message,
		"code":       code,
		"status":     status,
		"request_id": requestID,
	}
	data, _ := json.Marshal(body)
	_, _ = w.Write(data)
}

// requestID returns the caller's X-Request-ID, or mints an 8-byte hex ID so
// gateway and service logs can be correlated.
func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}

	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
