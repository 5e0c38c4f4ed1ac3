// Package method provides GC method templates: named, versioned combinations
// of injection, column, oven-program and detector configuration, plus the
// override mechanism callers use to vary a template per simulation request.
//
// A Library is loaded once at process start (built-ins plus optional YAML
// site methods) and is immutable afterwards. Library.Resolve deep-copies the
// named template and applies the caller's overrides to the copy, so stored
// templates are never mutated and concurrent resolutions never observe each
// other. Override values outside the physically plausible domain are rejected
// during resolution, before any simulation stage runs.
package method
