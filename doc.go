// Package intellilab provides a gas chromatography method-development
// service: it simulates complete GC runs for a compound mix against a
// method template and scores how well the method separates, detects and
// times the mix, without burning instrument hours on a real column.
//
// # Philosophy: Instrument as a Service
//
// The platform treats a simulated GC instrument like any other networked
// lab instrument. Every operation is a NATS request/reply subject; HTTP is
// a thin gateway over the same subjects, and run history is shared state
// in JetStream rather than process memory. Several instrument processes
// can serve the same lab from one broker.
//
// The simulation core is deterministic and broker-free: given the same
// method, compounds and overrides it produces the same chromatographic
// results on every replica. All I/O lives at the edges.
//
// # Architecture
//
//	┌───────────────┐   ┌──────────────────┐
//	│ REST clients  │   │ WebSocket        │
//	│ (dashboards)  │   │ event consumers  │
//	└──────┬────────┘   └────────┬─────────┘
//	       │ HTTP               │ ws
//	┌──────┴────────────────────┴─────────┐
//	│            gateway (+ ws)           │  route table, CORS,
//	│    one http.Server, /healthz        │  rate limit, request IDs
//	└──────────────────┬──────────────────┘
//	                   │ request/reply
//	┌──────────────────┴──────────────────┐
//	│           NATS / JetStream          │  subjects, GC_EVENTS
//	│                                     │  stream, KV bucket
//	└──────────────────┬──────────────────┘
//	                   │ subscribe
//	┌──────────────────┴──────────────────┐
//	│         simulation service          │  validate, run, persist,
//	│  (service.Manager lifecycle)        │  publish runs.completed
//	└──────────────────┬──────────────────┘
//	                   │
//	┌──────────────────┴──────────────────┐
//	│        simulation pipeline          │  injection → separation
//	│   catalog + method templates        │  → detection → scoring
//	└─────────────────────────────────────┘
//
// A simulate request resolves its method template and compound set, runs
// the staged pipeline, stores the run record in the JetStream KV history
// and announces it on the GC_EVENTS stream. The WebSocket endpoint relays
// those announcements to connected dashboards.
//
// # Packages
//
// Instrument domain:
//   - catalog: compound catalog with physical properties and response factors
//   - method: GC method templates, parameter overrides, site template files
//   - simulation: the staged run pipeline and the method scorer
//   - runstore: run history over a JetStream KV bucket with a bounded index
//
// Platform:
//   - service: service lifecycle, registry, manager and the NATS protocol
//   - natsclient: NATS connection management with circuit breaker
//   - gateway: HTTP/REST bridge onto the request/reply subjects
//   - gateway/ws: WebSocket fan-out of run events
//   - config: layered JSON configuration with env overrides
//   - metric: Prometheus registry, core metrics and scrape endpoint
//   - errors: classified errors (transient, invalid, fatal)
//   - health: component health statuses and aggregation
//
// Utilities:
//   - pkg/cache: LRU and TTL caches
//   - pkg/retry: retry policies with backoff
//   - pkg/worker: bounded worker pools
//
// # Usage
//
// Request a simulation over NATS:
//
//	client, _ := natsclient.NewClient("nats://localhost:4222")
//	client.Connect(ctx)
//
//	req := []byte(`{"method": "BTEX_Aromatics", "compounds": ["Benzene", "Toluene"]}`)
//	raw, _ := client.Request(ctx, service.SubjectSimulate, req)
//
//	var reply service.Reply
//	json.Unmarshal(raw, &reply)
//
// Or over the gateway:
//
//	curl -s localhost:8080/api/v1/simulate \
//	  -d '{"method": "BTEX_Aromatics", "compounds": ["Benzene", "Toluene"]}'
//
// Embed the pipeline directly when no broker is wanted:
//
//	pipeline, _ := simulation.NewPipeline(catalog.Builtin(), method.Builtin())
//	result, _ := pipeline.Run(ctx, simulation.Request{
//	    Method:    "BTEX_Aromatics",
//	    Compounds: []string{"Benzene", "Toluene"},
//	})
//
// # Binary
//
// cmd/intellilab-gc runs the full instrument service:
//
//	# Run with a site config
//	./bin/intellilab-gc --config configs/instrument.json
//
//	# Validate configuration only
//	./bin/intellilab-gc --validate
//
// The binary connects NATS, layers site compound and template files over
// the built-ins, starts the enabled services and serves the gateway,
// WebSocket events, /healthz and the Prometheus endpoint.
package intellilab
