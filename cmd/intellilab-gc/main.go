// Package main implements the entry point for the IntelliLab GC instrument
// service. It simulates gas chromatography method runs over NATS request/reply
// and exposes the same operations through an HTTP gateway with a WebSocket
// event stream.
package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/catalog"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/config"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/gateway"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/gateway/ws"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/health"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/method"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/metric"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/natsclient"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/runstore"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/service"
)

// Build information constants
const (
	Version   = "0.2.0"
	BuildTime = "dev"
	appName   = "intellilab-gc"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("instrument service failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	cfg, err := loadConfiguration(cliCfg.ConfigPath)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		slog.Info("configuration is valid", "config_path", cliCfg.ConfigPath)
		return nil
	}

	ctx := context.Background()

	registry := metric.NewMetricsRegistry()
	natsClient, err := buildNATSClient(cfg, registry)
	if err != nil {
		return fmt.Errorf("create NATS client: %w", err)
	}
	defer func() { _ = natsClient.Close(ctx) }()

	monitor := health.NewMonitor()
	natsClient.OnHealthChange(func(healthy bool) {
		if healthy {
			monitor.UpdateHealthy("nats", "connected")
		} else {
			monitor.UpdateUnhealthy("nats", "connection lost")
		}
	})

	if err := connectNATS(ctx, natsClient); err != nil {
		return err
	}
	monitor.UpdateHealthy("nats", "connected")

	compounds, templates, err := buildLibraries(cfg.Library)
	if err != nil {
		return err
	}

	store, err := runstore.NewStore(ctx, natsClient, cfg.RunStore, runstore.WithMetrics(registry))
	if err != nil {
		return fmt.Errorf("create run store: %w", err)
	}
	defer func() { _ = store.Close() }()

	deps := &service.Dependencies{
		NATSClient:      natsClient,
		MetricsRegistry: registry,
		Logger:          logger,
		Instrument:      cfg.Instrument,
		Catalog:         compounds,
		Library:         templates,
		RunStore:        store,
		HealthMonitor:   monitor,
	}

	manager, err := buildServices(cfg, deps)
	if err != nil {
		return err
	}

	metricsServer, err := buildMetricsServer(cfg.Metrics, registry)
	if err != nil {
		return err
	}

	httpServer, eventServer, err := buildGateway(cfg, natsClient, registry, logger, manager, monitor)
	if err != nil {
		return err
	}

	return runWithSignalHandling(ctx, cliCfg.ShutdownTimeout, runningServers{
		manager: manager,
		http:    httpServer,
		httpTLS: cfg.HTTP.TLS,
		events:  eventServer,
		metrics: metricsServer,
	})
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("starting IntelliLab GC instrument service",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// loadConfiguration loads and validates the instrument configuration.
func loadConfiguration(path string) (*config.Config, error) {
	loader := config.NewLoader()
	cfg, err := loader.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// buildNATSClient creates the shared NATS client from the config section.
// URL overrides come through the config loader's environment handling, not
// from here.
func buildNATSClient(cfg *config.Config, registry *metric.MetricsRegistry) (*natsclient.Client, error) {
	url := strings.Join(cfg.NATS.URLs, ",")

	opts := []natsclient.ClientOption{
		natsclient.WithName(appName + "-" + cfg.Instrument.ID),
		natsclient.WithMetrics(registry),
	}
	if cfg.NATS.MaxReconnects != 0 {
		opts = append(opts, natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects))
	}
	if cfg.NATS.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(cfg.NATS.ReconnectWait))
	}
	if cfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	}
	if cfg.NATS.TLS.Enabled {
		opts = append(opts, natsclient.WithTLS(cfg.NATS.TLS.CertFile, cfg.NATS.TLS.KeyFile, cfg.NATS.TLS.CAFile))
	}

	return natsclient.NewClient(url, opts...)
}

// connectNATS establishes the NATS connection and waits for it to be ready.
func connectNATS(ctx context.Context, client *natsclient.Client) error {
	slog.Info("connecting to NATS", "url", client.URL())
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.WaitForConnection(connCtx); err != nil {
		return fmt.Errorf("NATS connection timeout: %w", err)
	}

	return nil
}

// buildLibraries layers site data files over the built-in compound catalog
// and method templates.
func buildLibraries(cfg config.LibraryConfig) (*catalog.Catalog, *method.Library, error) {
	compounds := catalog.Builtin()
	for _, path := range cfg.CompoundFiles {
		if err := compounds.LoadFile(path); err != nil {
			return nil, nil, fmt.Errorf("load compound library %s: %w", path, err)
		}
		slog.Debug("compound library loaded", "path", path)
	}

	templates := method.Builtin()
	for _, path := range cfg.TemplateFiles {
		if err := templates.LoadFile(path); err != nil {
			return nil, nil, fmt.Errorf("load method templates %s: %w", path, err)
		}
		slog.Debug("method templates loaded", "path", path)
	}

	slog.Info("libraries ready", "compounds", compounds.Len(), "methods", templates.Len())
	return compounds, templates, nil
}

// buildServices registers the built-in services and creates every enabled
// one from the config map.
func buildServices(cfg *config.Config, deps *service.Dependencies) (*service.Manager, error) {
	registry := service.NewRegistry()
	if err := service.RegisterAll(registry); err != nil {
		return nil, fmt.Errorf("register services: %w", err)
	}

	manager := service.NewManager(registry, deps)
	if err := manager.CreateFromConfig(cfg.Services); err != nil {
		return nil, fmt.Errorf("create services: %w", err)
	}

	created := manager.Services()
	names := make([]string, 0, len(created))
	for name := range created {
		names = append(names, name)
	}
	slog.Info("services created", "count", len(created), "services", names)

	return manager, nil
}

// buildMetricsServer prepares the Prometheus scrape endpoint. Returns nil
// when metrics are disabled.
func buildMetricsServer(cfg config.MetricsConfig, registry *metric.MetricsRegistry) (*metric.Server, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	port, err := listenPort(cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("metrics.addr %q: %w", cfg.Addr, err)
	}
	return metric.NewServer(port, "/metrics", registry), nil
}

// buildGateway assembles the HTTP gateway, the WebSocket event stream and
// the health endpoint on one server. Returns nils when the gateway is
// disabled; NATS request/reply keeps working without it.
func buildGateway(
	cfg *config.Config,
	natsClient *natsclient.Client,
	registry *metric.MetricsRegistry,
	logger *slog.Logger,
	manager *service.Manager,
	monitor *health.Monitor,
) (*http.Server, *ws.Server, error) {
	if !cfg.HTTP.Enabled {
		slog.Info("HTTP gateway disabled")
		return nil, nil, nil
	}

	gwOpts := []gateway.Option{
		gateway.WithLogger(logger),
		gateway.WithMetrics(registry.CoreMetrics()),
	}
	if cfg.HTTP.RateLimit > 0 {
		gwOpts = append(gwOpts, gateway.WithRateLimit(cfg.HTTP.RateLimit, cfg.HTTP.RateBurst))
	}
	if len(cfg.HTTP.CORSOrigins) > 0 {
		gwOpts = append(gwOpts, gateway.WithCORS(cfg.HTTP.CORSOrigins...))
	}
	if cfg.HTTP.MaxRequestSize > 0 {
		gwOpts = append(gwOpts, gateway.WithMaxRequestSize(cfg.HTTP.MaxRequestSize))
	}

	gw, err := gateway.New(natsClient, gateway.DefaultRoutes(), gwOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create gateway: %w", err)
	}

	wsOpts := []ws.Option{
		ws.WithLogger(logger),
		ws.WithMetrics(registry),
	}
	if len(cfg.HTTP.CORSOrigins) > 0 {
		wsOpts = append(wsOpts, ws.WithAllowedOrigins(cfg.HTTP.CORSOrigins...))
	}
	eventServer, err := ws.NewServer(natsClient, wsOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create event stream: %w", err)
	}

	mux := http.NewServeMux()
	gw.RegisterRoutes(mux)
	mux.Handle("GET /api/v1/events", eventServer.Handler())
	mux.HandleFunc("GET /healthz", healthzHandler(manager, monitor))

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	return server, eventServer, nil
}

// healthzHandler reports the aggregate instrument health: the managed
// services plus the infrastructure components feeding the monitor. Degraded
// still answers 200 so orchestrators only restart on hard failures.
func healthzHandler(manager *service.Manager, monitor *health.Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		status := health.Aggregate(appName, []health.Status{
			manager.Health(),
			monitor.AggregateHealth("infrastructure"),
		})

		code := http.StatusOK
		if status.IsUnhealthy() {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	}
}

// runningServers bundles everything runWithSignalHandling starts and stops.
type runningServers struct {
	manager *service.Manager
	http    *http.Server
	httpTLS config.TLSConfig
	events  *ws.Server
	metrics *metric.Server
}

// runWithSignalHandling starts all services and servers, then blocks until
// a shutdown signal or a server failure. Shutdown runs in reverse start
// order: the HTTP listener drains first so no request arrives at a stopped
// service.
func runWithSignalHandling(ctx context.Context, shutdownTimeout time.Duration, servers runningServers) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := servers.manager.StartAll(signalCtx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	serverErr := make(chan error, 2)

	if servers.events != nil {
		if err := servers.events.Start(ctx); err != nil {
			_ = servers.manager.StopAll(shutdownTimeout)
			return fmt.Errorf("start event stream: %w", err)
		}
	}
	if servers.http != nil {
		go func() {
			err := serveHTTP(servers.http, servers.httpTLS)
			if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				serverErr <- fmt.Errorf("http gateway: %w", err)
			}
		}()
		slog.Info("HTTP gateway listening", "addr", servers.http.Addr, "tls", servers.httpTLS.Enabled)
	}
	if servers.metrics != nil {
		go func() {
			if err := servers.metrics.Start(); err != nil {
				serverErr <- fmt.Errorf("metrics server: %w", err)
			}
		}()
		slog.Info("metrics server listening", "addr", servers.metrics.Address())
	}

	slog.Info("instrument service started")

	var runErr error
	select {
	case <-signalCtx.Done():
		slog.Info("received shutdown signal")
	case err := <-serverErr:
		slog.Error("server failed", "error", err)
		runErr = err
	}

	if err := shutdown(shutdownTimeout, servers); err != nil {
		if runErr == nil {
			runErr = fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return runErr
	}

	slog.Info("instrument service shutdown complete")
	return runErr
}

func serveHTTP(server *http.Server, tls config.TLSConfig) error {
	if tls.Enabled {
		return server.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
	}
	return server.ListenAndServe()
}

// shutdown stops the servers in reverse start order: HTTP listener, event
// stream, services, metrics endpoint.
func shutdown(timeout time.Duration, servers runningServers) error {
	var errs []error

	if servers.http != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := servers.http.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("stop http gateway: %w", err))
		}
		cancel()
	}

	if servers.events != nil {
		if err := servers.events.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("stop event stream: %w", err))
		}
	}

	if err := servers.manager.StopAll(timeout); err != nil {
		errs = append(errs, fmt.Errorf("stop services: %w", err))
	}

	if servers.metrics != nil {
		if err := servers.metrics.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop metrics server: %w", err))
		}
	}

	return stderrors.Join(errs...)
}

// listenPort extracts the TCP port from a listen address such as ":9091".
func listenPort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, err
	}
	return port, nil
}
