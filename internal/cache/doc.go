// Package cache implements a two-tier cache: a bounded in-process LRU (L1)
// in front of a Redis/Valkey backing store (L2), with tagged-payload
// serialization, tag-based grouped invalidation and Prometheus metrics.
//
// L1 is a pure performance cache; L2 is the source of truth on an L1 miss.
// A read checks L1, then L2, promoting L2 hits into L1. A write goes to L1
// unconditionally and to L2 best-effort: the cache is never the reason a
// caller's primary operation fails. Only serialization errors on Set surface,
// since they mean the value itself cannot be cached.
package cache
