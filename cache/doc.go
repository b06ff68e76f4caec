// Package cache provides byte-oriented key/value stores with per-entry
// expiry. The model package uses a Store to memoize chat completions.
//
// Two implementations are available: InMemoryStore for tests and single
// process deployments, and RedisStore for a cache shared between processes.
// Callers should depend on the Store interface so backends can be swapped
// without touching calling code.
package cache
