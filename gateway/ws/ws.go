// Package ws streams run events to WebSocket clients. The server subscribes
// to the run-completion subject and broadcasts every event to all connected
// clients; delivery is at-most-once, the run record itself is already in the
// store. The HTTP endpoint is handed out as a handler so it shares the
// gateway's server and address.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/errors"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/metric"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/natsclient"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/service"
)

// Connection housekeeping. Pings must come faster than the pong deadline or
// healthy clients get dropped.
const (
	writeTimeout   = 5 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 512 // inbound frames are control traffic only
)

// Event is the JSON frame pushed to every connected client.
type Event struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Subject   string          `json:"subject"`
	Timestamp int64           `json:"timestamp"` // Unix milliseconds
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Server broadcasts NATS events to WebSocket clients.
type Server struct {
	client   *natsclient.Client
	subjects []string
	logger   *slog.Logger
	metrics  *serverMetrics
	origins  []string

	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]*client
	clientsMu sync.RWMutex

	lifecycleMu sync.Mutex
	mu          sync.RWMutex
	running     bool
	shutdown    chan struct{}
	wg          *sync.WaitGroup

	eventID atomic.Uint64
	sent    atomic.Int64
}

// client tracks one WebSocket connection. writeMu serializes writes: gorilla
// connections allow at most one concurrent writer.
type client struct {
	conn        *websocket.Conn
	connectedAt time.Time
	lastPong    atomic.Value // time.Time
	closed      atomic.Bool
	closeOnce   sync.Once
	writeMu     sync.Mutex
}

// Option configures optional server behavior.
type Option func(*Server, *options)

type options struct {
	registry *metric.MetricsRegistry
}

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server, _ *options) {
		if logger != nil {
			s.logger = logger.With("component", "ws")
		}
	}
}

// WithSubjects replaces the default run-completion subscription.
func WithSubjects(subjects ...string) Option {
	return func(s *Server, _ *options) {
		if len(subjects) > 0 {
			s.subjects = subjects
		}
	}
}

// WithAllowedOrigins restricts upgrades to the listed origins. "*" allows
// any origin; an empty list accepts all, matching same-host dashboards that
// send no Origin header.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server, _ *options) {
		s.origins = origins
	}
}

// WithMetrics exports connection and broadcast metrics on the registry.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(_ *Server, o *options) {
		o.registry = registry
	}
}

// NewServer builds an event server over the given NATS client. A nil client
// skips the subscription so tests can drive Broadcast directly.
func NewServer(nats *natsclient.Client, opts ...Option) (*Server, error) {
	s := &Server{
		client:   nats,
		subjects: []string{service.SubjectRunCompleted},
		logger:   slog.Default().With("component", "ws"),
		clients:  make(map[*websocket.Conn]*client),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	var o options
	for _, opt := range opts {
		opt(s, &o)
	}

	if o.registry != nil {
		m, err := newServerMetrics(o.registry)
		if err != nil {
			return nil, err
		}
		s.metrics = m
	}

	return s, nil
}

// Handler returns the HTTP handler that upgrades connections. Mount it on
// the gateway's mux; upgrades are refused while the server is not running.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleUpgrade)
}

// Start subscribes to the event subjects and begins the ping loop. Starting
// a running server is a no-op.
func (s *Server) Start(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.shutdown = make(chan struct{})
	s.wg = &sync.WaitGroup{}
	s.running = true
	wg, shutdown := s.wg, s.shutdown
	s.mu.Unlock()

	if err := s.subscribe(ctx); err != nil {
		s.mu.Lock()
		s.running = false
		close(s.shutdown)
		s.shutdown = nil
		s.mu.Unlock()
		return err
	}

	wg.Add(1)
	go s.pingClients(wg, shutdown)

	s.logger.Info("event stream started", "subjects", s.subjects)
	return nil
}

// Stop drops all clients and waits for connection goroutines. The HTTP
// server owning the handler must be shut down first so no upgrades race the
// teardown. Subscriptions on the shared NATS client are cleaned up when that
// client closes; deliveries after Stop are discarded by the running check.
func (s *Server) Stop(timeout time.Duration) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.shutdown)
	wg := s.wg
	s.mu.Unlock()

	// Closing the connections unblocks every client read loop.
	s.closeAllClients()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		s.logger.Warn("client goroutines did not exit before timeout")
	}

	s.mu.Lock()
	s.shutdown = nil
	s.wg = nil
	s.mu.Unlock()

	s.logger.Info("event stream stopped", "events_sent", s.sent.Load())
	return nil
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// EventsSent returns the number of frames delivered since construction.
func (s *Server) EventsSent() int64 {
	return s.sent.Load()
}

// Broadcast wraps payload in an event frame and sends it to every connected
// client. Clients that fail the write are dropped; the rest still get the
// event.
func (s *Server) Broadcast(subject string, payload []byte) {
	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()
	if !running {
		return
	}

	start := time.Now()
	data, err := json.Marshal(Event{
		Type:      eventType(subject),
		ID:        fmt.Sprintf("evt-%d", s.eventID.Add(1)),
		Subject:   subject,
		Timestamp: start.UnixMilli(),
		Payload:   payload,
	})
	if err != nil {
		s.logger.Error("event frame marshal failed", "subject", subject, "error", err)
		return
	}

	var wg sync.WaitGroup
	for _, c := range s.snapshot() {
		wg.Add(1)
		go func(c *client) {
			defer wg.Done()
			if err := c.write(data); err != nil {
				s.dropClient(c, "write_failed")
				return
			}
			s.sent.Add(1)
			if s.metrics != nil {
				s.metrics.eventsSent.WithLabelValues(subject).Inc()
			}
		}(c)
	}
	wg.Wait()

	if s.metrics != nil {
		s.metrics.broadcastDuration.Observe(time.Since(start).Seconds())
	}
}

// subscribe wires the NATS subjects into Broadcast. A nil client is allowed:
// tests drive Broadcast directly.
func (s *Server) subscribe(ctx context.Context) error {
	if s.client == nil {
		return nil
	}

	for _, subject := range s.subjects {
		err := s.client.Subscribe(ctx, subject, func(_ context.Context, data []byte) {
			s.Broadcast(subject, data)
		})
		if err != nil {
			return errors.Wrap(err, "EventServer", "Start",
				fmt.Sprintf("subscribe to %s", subject))
		}
	}
	return nil
}

// eventType names the frame for clients. Run completion is the one
// first-class event; anything else is forwarded generically.
func eventType(subject string) string {
	if subject == service.SubjectRunCompleted {
		return "run_completed"
	}
	return "event"
}

// checkOrigin implements the upgrader's origin policy.
func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.origins) == 0 {
		return true
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, candidate := range s.origins {
		if candidate == "*" || candidate == origin {
			return true
		}
	}
	return false
}

// handleUpgrade turns an HTTP request into a tracked client connection.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	running := s.running
	wg := s.wg
	s.mu.RUnlock()

	if !running {
		http.Error(w, "event stream not running", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{conn: conn, connectedAt: time.Now()}
	c.lastPong.Store(time.Now())

	s.clientsMu.Lock()
	s.clients[conn] = c
	count := len(s.clients)
	s.clientsMu.Unlock()

	if s.metrics != nil {
		s.metrics.connections.Inc()
		s.metrics.clientsConnected.Set(float64(count))
	}
	s.logger.Info("client connected", "remote", r.RemoteAddr, "clients", count)

	wg.Add(1)
	go s.readLoop(wg, c)
}

// readLoop drains inbound frames so pong and close frames are processed.
// The stream is one-way; client payloads are ignored.
func (s *Server) readLoop(wg *sync.WaitGroup, c *client) {
	defer wg.Done()
	defer s.dropClient(c, "read_closed")

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.lastPong.Store(time.Now())
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// pingClients keeps connections fresh and drops clients whose pongs stopped.
func (s *Server) pingClients(wg *sync.WaitGroup, shutdown <-chan struct{}) {
	defer wg.Done()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-shutdown:
			return
		case <-ticker.C:
			for _, c := range s.snapshot() {
				if last, ok := c.lastPong.Load().(time.Time); ok && time.Since(last) > pongWait+pingInterval {
					s.dropClient(c, "pong_timeout")
					continue
				}
				if err := c.ping(); err != nil {
					s.dropClient(c, "ping_failed")
				}
			}
		}
	}
}

// snapshot returns the clients that were live at the call.
func (s *Server) snapshot() []*client {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	out := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		if !c.closed.Load() {
			out = append(out, c)
		}
	}
	return out
}

// dropClient removes and closes a client exactly once.
func (s *Server) dropClient(c *client, reason string) {
	c.closeOnce.Do(func() {
		c.closed.Store(true)

		s.clientsMu.Lock()
		delete(s.clients, c.conn)
		count := len(s.clients)
		s.clientsMu.Unlock()

		if s.metrics != nil {
			s.metrics.disconnections.WithLabelValues(reason).Inc()
			s.metrics.clientsConnected.Set(float64(count))
		}
		_ = c.conn.Close()
	})
}

// closeAllClients force-closes every connection during Stop.
func (s *Server) closeAllClients() {
	for _, c := range s.snapshot() {
		s.dropClient(c, "server_stopped")
	}
}

func (c *client) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *client) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

// serverMetrics follows the worker pool's registration pattern: plain
// prometheus collectors registered through the platform registry.
type serverMetrics struct {
	clientsConnected  prometheus.Gauge
	connections       prometheus.Counter
	disconnections    *prometheus.CounterVec
	eventsSent        *prometheus.CounterVec
	broadcastDuration prometheus.Histogram
}

func newServerMetrics(registry *metric.MetricsRegistry) (*serverMetrics, error) {
	m := &serverMetrics{
		clientsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "websocket",
			Name:      "clients_connected",
			Help:      "Number of currently connected clients",
		}),
		connections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "websocket",
			Name:      "client_connections_total",
			Help:      "Total client connections accepted",
		}),
		disconnections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "websocket",
			Name:      "client_disconnections_total",
			Help:      "Total client disconnections",
		}, []string{"reason"}),
		eventsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "websocket",
			Name:      "events_sent_total",
			Help:      "Total event frames delivered to clients",
		}, []string{"subject"}),
		broadcastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metric.Namespace,
			Subsystem: "websocket",
			Name:      "broadcast_duration_seconds",
			Help:      "Time to broadcast one event to all clients",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
	}

	if err := registry.RegisterGauge("websocket", "clients_connected", m.clientsConnected); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("websocket", "client_connections_total", m.connections); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("websocket", "client_disconnections_total", m.disconnections); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("websocket", "events_sent_total", m.eventsSent); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogram("websocket", "broadcast_duration_seconds", m.broadcastDuration); err != nil {
		return nil, err
	}

	return m, nil
}
