// Package cache maps chunk text to playable audio handles.
//
// A Store hands out one Resource per distinct text, collapses concurrent
// requests for the same text into a single synthesis call and keeps recent
// results in a byte-bounded LRU (L1). An optional Backing (L2) persists audio
// across runs, either as zstd-compressed files or in a NATS object store.
package cache
