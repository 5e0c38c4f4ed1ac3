// Package metric provides Prometheus-based metrics collection and an HTTP
// server for IntelliLab GC monitoring and observability.
//
// The package offers a centralized metrics registry managing both core
// platform metrics (service status, simulation throughput, stage timings,
// NATS health) and custom service-specific metrics, plus an HTTP server
// exposing everything in Prometheus format.
//
// # Architecture
//
// Three layers:
//
//  1. Core Metrics: platform-level metrics automatically registered (Metrics type)
//  2. Service Registry: extensible registration for service-specific metrics (MetricsRegistrar interface)
//  3. HTTP Server: metrics endpoint with a health check (Server type)
//
// Simulation results are a pure function of their inputs; metrics here are
// observability only and never feed back into stage computation.
//
// # Basic Usage
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//
//	go func() {
//	    if err := server.Start(); err != nil && err != http.ErrServerClosed {
//	        log.Printf("metrics server error: %v", err)
//	    }
//	}()
//
//	core := registry.CoreMetrics()
//	core.RecordServiceStatus("simulation", 2) // running
//	core.RecordSimulation("Petroleum_Hydrocarbons_C8_C40", "ok")
//
// All metrics carry the "intellilab" namespace, e.g.
// intellilab_simulations_total{method="...",status="ok"}.
package metric
