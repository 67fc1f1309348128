// Package lru implements a single-process, bounded key-value cache with
// least-recently-used eviction and per-entry TTL.
//
// The core data structures are explicit: a map gives O(1) key lookup and a
// doubly-linked list maintains recency ordering (front = most recently used).
//
// Expired entries are reclaimed lazily, on lookup or under capacity pressure.
// There is no background sweep: a cache populated with many never-re-read keys
// holds them until the next Set evicts or the process restarts. That is a
// deliberate simplicity/memory tradeoff.
//
// The cache is local to one process. Horizontally scaled deployments may
// observe values that are stale relative to another instance's writes for up
// to the TTL.
package lru
