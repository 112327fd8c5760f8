// Package cachette provides a resilient tiered cache: an in-process LRU
// tier, an optional Redis-backed tier composed behind a write-through
// facade, coalesced get-or-fetch computation, distributed locking, and a
// deterministic key builder for caching function results.
package cachette
