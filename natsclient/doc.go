// Package natsclient provides a managed NATS client with circuit breaker
// protection, automatic reconnection, and JetStream/KV support for the
// simulation services.
//
// # Connection Management
//
// The Client wraps the standard NATS Go client with a circuit breaker:
// after a threshold of consecutive failures the circuit opens, new
// operations fail fast with ErrCircuitOpen, and a timer re-arms the
// connection after an exponentially growing backoff (capped at one
// minute). Any successful operation closes the circuit and resets the
// backoff.
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//		natsclient.WithName("intellilab-gc"),
//		natsclient.WithMaxReconnects(-1),
//		natsclient.WithMetrics(registry),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := client.Connect(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
// With WithMetrics, connection status, round-trip time, reconnect counts,
// and circuit state are mirrored into the Prometheus registry.
//
// # Messaging
//
// Core NATS messaging carries the request/reply service protocol and the
// run lifecycle events:
//
//	// Service side
//	client.SubscribeRequest(ctx, "intellilab.gc.v1.simulate", handle)
//
//	// Caller side
//	reply, err := client.Request(ctx, "intellilab.gc.v1.simulate", body)
//
// PublishToStream publishes through JetStream so events are captured
// durably by a stream while still reaching live core subscribers.
//
// # Key-Value Store
//
// KVStore layers compare-and-swap semantics over a JetStream KV bucket.
// UpdateWithRetry handles the read-modify-write loop, retrying on revision
// conflicts with jittered exponential backoff; run history uses it for the
// shared run index:
//
//	bucket, _ := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{Bucket: "intellilab_gc_runs"})
//	store := client.NewKVStore(bucket)
//	err := store.UpdateWithRetry(ctx, "index", func(current []byte) ([]byte, error) {
//		return appendRunID(current, runID)
//	})
package natsclient
