// Package testutil holds in-memory doubles shared by package tests. The
// doubles return the same sentinel errors as the real clients so error-path
// tests exercise the production checks, and none of them need a broker.
package testutil
