// Package resolver implements the snapshot and prediction resolvers.
//
// A resolver never fails outward: a live upstream fetch degrades to the
// in-memory cache, and the cache degrades to a deterministic synthetic
// generator, so every requested region always yields a complete record.
// Repeated upstream failures open a cooldown window during which live
// fetches are skipped entirely.
package resolver
