package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/catalog"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/errors"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/method"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/metric"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/natsclient"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/pkg/worker"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/runstore"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/simulation"
)

// ServiceSimulation is the registry name of the simulation service.
const ServiceSimulation = "simulation"

// Event stream retention. Limits only; consumers that fall further behind
// than this re-sync from the run store.
const (
	eventStreamMaxMsgs = 10_000
	eventStreamMaxAge  = 7 * 24 * time.Hour
)

// SimulationServiceConfig holds the service-specific config section.
type SimulationServiceConfig struct {
	// Source labels run records accepted over NATS. The gateway stamps its
	// own label through the request path instead.
	// Default: "nats"
	Source string `json:"source,omitempty"`

	// PersistWorkers and PersistQueue size the async run-history writer.
	// Defaults: 2 workers, queue of 64.
	PersistWorkers int `json:"persist_workers,omitempty"`
	PersistQueue   int `json:"persist_queue,omitempty"`

	// PublishEvents controls the runs.completed event stream.
	// Default: true
	PublishEvents bool `json:"publish_events,omitempty"`

	// BackflushMatrices replaces the built-in backflush matrix policy
	// table when set.
	BackflushMatrices []string `json:"backflush_matrices,omitempty"`
}

// SimulationService answers the platform's request/reply subjects: simulate,
// methods.list, compounds.list, runs.get and runs.list. Every finished run is
// persisted to the run store through a worker pool and announced on the
// runs.completed event stream.
type SimulationService struct {
	*BaseService

	cfg      SimulationServiceConfig
	client   *natsclient.Client
	pipeline *simulation.Pipeline
	library  *method.Library
	catalog  *catalog.Catalog
	store    *runstore.Store
	persist  *worker.Pool[*runstore.Record]
	core     *metric.Metrics
}

// NewSimulationService builds the simulation service from its raw config
// section and the shared dependencies.
func NewSimulationService(rawConfig json.RawMessage, deps *Dependencies) (Service, error) {
	cfg := SimulationServiceConfig{
		Source:         "nats",
		PersistWorkers: 2,
		PersistQueue:   64,
		PublishEvents:  true,
	}
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, fmt.Errorf("parse simulation service config: %w", err)
		}
	}

	if deps == nil || deps.NATSClient == nil {
		return nil, fmt.Errorf("simulation service requires NATS client")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("simulation service requires compound catalog")
	}
	if deps.Library == nil {
		return nil, fmt.Errorf("simulation service requires method library")
	}
	if deps.RunStore == nil {
		return nil, fmt.Errorf("simulation service requires run store")
	}

	var pipelineOpts []simulation.Option
	var core *metric.Metrics
	if deps.MetricsRegistry != nil {
		core = deps.MetricsRegistry.CoreMetrics()
		pipelineOpts = append(pipelineOpts, simulation.WithMetrics(core))
	}
	if len(cfg.BackflushMatrices) > 0 {
		pipelineOpts = append(pipelineOpts, simulation.WithBackflushMatrices(cfg.BackflushMatrices...))
	}

	pipeline, err := simulation.NewPipeline(deps.Catalog, deps.Library, pipelineOpts...)
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}

	svc := &SimulationService{
		cfg:      cfg,
		client:   deps.NATSClient,
		pipeline: pipeline,
		library:  deps.Library,
		catalog:  deps.Catalog,
		store:    deps.RunStore,
		core:     core,
	}

	var poolOpts []worker.Option[*runstore.Record]
	if deps.MetricsRegistry != nil {
		poolOpts = append(poolOpts, worker.WithMetrics[*runstore.Record](deps.MetricsRegistry, "run_persist"))
	}
	pool, err := worker.NewPool(cfg.PersistWorkers, cfg.PersistQueue, svc.persistRecord, poolOpts...)
	if err != nil {
		return nil, fmt.Errorf("create persist pool: %w", err)
	}
	svc.persist = pool

	svc.BaseService = NewBaseService(ServiceSimulation, nil,
		WithNATS(deps.NATSClient),
		WithMetrics(deps.MetricsRegistry),
		WithLogger(deps.Logger),
		WithHealthCheck(svc.healthCheck),
	)

	return svc, nil
}

// Start launches the persistence pool, ensures the event stream exists,
// subscribes the request subjects and starts the base lifecycle.
func (s *SimulationService) Start(ctx context.Context) error {
	if err := s.persist.Start(ctx); err != nil {
		return fmt.Errorf("start persist pool: %w", err)
	}

	if s.cfg.PublishEvents {
		_, err := s.client.CreateStream(ctx, jetstream.StreamConfig{
			Name:        EventStream,
			Description: "GC simulation run events",
			Subjects:    []string{SubjectRunCompleted},
			Storage:     jetstream.FileStorage,
			Retention:   jetstream.LimitsPolicy,
			MaxMsgs:     eventStreamMaxMsgs,
			MaxAge:      eventStreamMaxAge,
		})
		if err != nil {
			_ = s.persist.Stop(time.Second)
			return fmt.Errorf("create event stream %s: %w", EventStream, err)
		}
	}

	subscriptions := []struct {
		subject string
		handler func(context.Context, []byte) []byte
	}{
		{SubjectSimulate, s.handleSimulate},
		{SubjectMethodsList, s.handleMethodsList},
		{SubjectCompoundsList, s.handleCompoundsList},
		{SubjectRunsGet, s.handleRunsGet},
		{SubjectRunsList, s.handleRunsList},
	}
	for _, sub := range subscriptions {
		if err := s.client.SubscribeRequest(ctx, sub.subject, sub.handler); err != nil {
			_ = s.persist.Stop(time.Second)
			return fmt.Errorf("subscribe %s: %w", sub.subject, err)
		}
	}

	if err := s.BaseService.Start(ctx); err != nil {
		_ = s.persist.Stop(time.Second)
		return err
	}

	s.Logger().Info("simulation service started",
		"methods", s.library.Len(),
		"compounds", s.catalog.Len(),
		"source", s.cfg.Source)
	return nil
}

// Stop drains the persistence pool, then stops the base lifecycle. The NATS
// subscriptions live on the shared client and end when it closes.
func (s *SimulationService) Stop(timeout time.Duration) error {
	s.Logger().Info("simulation service stopping")
	if err := s.persist.Stop(timeout); err != nil {
		s.Logger().Warn("persist pool did not drain", "error", err)
	}
	return s.BaseService.Stop(timeout)
}

// healthCheck flags a saturated persistence queue; NATS connectivity is
// checked by the base service.
func (s *SimulationService) healthCheck() error {
	stats := s.persist.Stats()
	if stats.QueueSize > 0 && stats.QueueDepth >= stats.QueueSize {
		return fmt.Errorf("persist queue saturated (%d/%d)", stats.QueueDepth, stats.QueueSize)
	}
	return nil
}

// handleSimulate validates, decodes and runs one simulation request. Both
// outcomes are recorded in the run store and announced on the event stream;
// only successful runs carry a result payload back to the caller.
func (s *SimulationService) handleSimulate(ctx context.Context, data []byte) []byte {
	start := time.Now()

	if err := validateSimulateRequest(data); err != nil {
		s.recordOp("simulate", start, err)
		return errReply(err)
	}

	var req simulation.Request
	if err := json.Unmarshal(data, &req); err != nil {
		wrapped := errors.WrapInvalid(errors.ErrParsingFailed, "SimulationService", "simulate", err.Error())
		s.recordOp("simulate", start, wrapped)
		return errReply(wrapped)
	}

	id := runstore.NewRunID()
	result, runErr := s.pipeline.Run(ctx, req)
	elapsed := time.Since(start)

	var rec *runstore.Record
	if runErr != nil {
		rec = runstore.NewFailed(id, s.cfg.Source, req, runErr, elapsed)
	} else {
		rec = runstore.NewCompleted(id, s.cfg.Source, req, result, elapsed)
	}
	s.persistAsync(ctx, rec)
	s.publishCompleted(ctx, rec)
	s.RecordRun()
	s.recordOp("simulate", start, runErr)

	if runErr != nil {
		return errReply(runErr)
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return errReply(errors.WrapFatal(err, "SimulationService", "simulate", "encode result"))
	}
	return okReply(SimulateResponse{RunID: id, Result: payload})
}

// handleMethodsList returns the template summaries.
func (s *SimulationService) handleMethodsList(_ context.Context, _ []byte) []byte {
	start := time.Now()
	reply := okReply(s.library.Summaries())
	s.recordOp("methods.list", start, nil)
	return reply
}

// handleCompoundsList returns every catalog compound in name order.
func (s *SimulationService) handleCompoundsList(_ context.Context, _ []byte) []byte {
	start := time.Now()
	names := s.catalog.Names()
	compounds := make([]catalog.Compound, 0, len(names))
	for _, name := range names {
		if c, ok := s.catalog.Get(name); ok {
			compounds = append(compounds, c)
		}
	}
	reply := okReply(compounds)
	s.recordOp("compounds.list", start, nil)
	return reply
}

// handleRunsGet fetches one run record by ID.
func (s *SimulationService) handleRunsGet(ctx context.Context, data []byte) []byte {
	start := time.Now()

	var req RunsGetRequest
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			wrapped := errors.WrapInvalid(errors.ErrParsingFailed, "SimulationService", "runs.get", err.Error())
			s.recordOp("runs.get", start, wrapped)
			return errReply(wrapped)
		}
	}
	if req.ID == "" {
		err := errors.WrapInvalid(errors.ErrInvalidData, "SimulationService", "runs.get", "require run id")
		s.recordOp("runs.get", start, err)
		return errReply(err)
	}

	rec, err := s.store.Get(ctx, req.ID)
	s.recordOp("runs.get", start, err)
	if err != nil {
		return errReply(err)
	}
	return okReply(rec)
}

// handleRunsList returns the most recent run summaries, newest first.
func (s *SimulationService) handleRunsList(ctx context.Context, data []byte) []byte {
	start := time.Now()

	var req RunsListRequest
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			wrapped := errors.WrapInvalid(errors.ErrParsingFailed, "SimulationService", "runs.list", err.Error())
			s.recordOp("runs.list", start, wrapped)
			return errReply(wrapped)
		}
	}
	if req.Limit < 0 {
		err := errors.WrapInvalid(errors.ErrInvalidData, "SimulationService", "runs.list", "limit must not be negative")
		s.recordOp("runs.list", start, err)
		return errReply(err)
	}

	entries, err := s.store.List(ctx)
	s.recordOp("runs.list", start, err)
	if err != nil {
		return errReply(err)
	}
	if req.Limit > 0 && len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}
	return okReply(entries)
}

// persistRecord is the pool processor behind async run persistence.
func (s *SimulationService) persistRecord(ctx context.Context, rec *runstore.Record) error {
	if err := s.store.Save(ctx, rec); err != nil {
		s.Logger().Error("run record not persisted", "run_id", rec.ID, "error", err)
		return err
	}
	return nil
}

// persistAsync hands a record to the pool. A full queue falls back to a
// synchronous save so history is not silently lost under burst load.
func (s *SimulationService) persistAsync(ctx context.Context, rec *runstore.Record) {
	err := s.persist.Submit(rec)
	if err == nil {
		return
	}
	s.Logger().Warn("async persist rejected, saving inline", "run_id", rec.ID, "error", err)
	if saveErr := s.store.Save(ctx, rec); saveErr != nil {
		s.Logger().Error("run record not persisted", "run_id", rec.ID, "error", saveErr)
		if s.core != nil {
			s.core.RecordError(ServiceSimulation, "persist_failed")
		}
	}
}

// publishCompleted announces a finished run on the event stream. Events are
// best effort; the record itself is already on its way to the store.
func (s *SimulationService) publishCompleted(ctx context.Context, rec *runstore.Record) {
	if !s.cfg.PublishEvents {
		return
	}
	payload, err := json.Marshal(RunCompleted{IndexEntry: rec.Summary(), Source: rec.Source})
	if err != nil {
		s.Logger().Error("run event not encodable", "run_id", rec.ID, "error", err)
		return
	}
	if err := s.client.PublishToStream(ctx, SubjectRunCompleted, payload); err != nil {
		s.Logger().Warn("run event not published", "run_id", rec.ID, "error", err)
		if s.core != nil {
			s.core.RecordError(ServiceSimulation, "event_publish")
		}
	}
}

// recordOp records one request/reply operation in the core metrics.
func (s *SimulationService) recordOp(op string, start time.Time, err error) {
	if s.core == nil {
		return
	}
	s.core.RecordRequest(ServiceSimulation, op)
	s.core.RecordProcessingDuration(ServiceSimulation, op, time.Since(start))
	if err != nil {
		s.core.RecordError(ServiceSimulation, ErrorCode(err))
	}
}
