// Package runstore persists simulation run history in a NATS KV bucket.
//
// # Overview
//
// Every finished simulation run becomes an immutable Record: the request as
// submitted, the Result or failure, who accepted it, and when. Records live
// under "run.<uuid>" keys in the run history bucket. A bounded index of
// recent runs lives under the "index" key, newest first, so listing history
// for a dashboard is one KV read instead of a scan plus one read per run.
//
// # Concurrency
//
// Many simulations can finish at the same moment and race on the shared
// index. Index updates are read-modify-write under compare-and-swap with
// retry; a save that loses the race re-reads the index and prepends again.
// A retry that finds its own entry already present (a write whose ack was
// lost) leaves the index unchanged.
//
// # Retention
//
// MaxRuns bounds the index. When a save pushes it past the bound, the
// oldest entries spill out and their records are deleted best-effort; a
// bucket TTL, when configured, is the backstop for anything the spill
// misses. Bucket sizing, history depth, TTL, and replicas come from the
// runstore configuration section.
//
// # Caching
//
// Two in-process caches sit in front of the bucket: an LRU of records
// (immutable, so never stale) and a short-TTL copy of the index. Saves and
// deletes invalidate the index copy immediately; the TTL only bounds
// staleness against writers on other instruments sharing the bucket.
//
// # Recovery
//
// RebuildIndex reconstructs the index by scanning record keys, for the case
// where the index key is lost or damaged. It rewrites the index and never
// deletes records.
//
// # Example
//
//	store, err := runstore.NewStore(ctx, client, cfg.RunStore,
//	    runstore.WithMetrics(registry))
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	rec := runstore.NewCompleted(runID, "gateway", req, result, elapsed)
//	if err := store.Save(ctx, rec); err != nil {
//	    return err
//	}
//
//	recent, err := store.List(ctx)
package runstore
