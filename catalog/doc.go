// Package catalog provides the compound reference catalog consulted by every
// simulation stage: per-compound identity, molecular weight, boiling point,
// nominal concentration and per-detector-family response factors.
//
// A Catalog is an explicitly constructed value, loaded once at process start
// and immutable afterwards, which makes it safe for unsynchronized concurrent
// reads across simulation runs. Builtin() returns the compiled-in compound
// table; site-specific libraries are merged over it from YAML with Load or
// LoadFile before the catalog is handed to the pipeline.
package catalog
