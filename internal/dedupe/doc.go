// Package dedupe provides request deduplication using a time-based cache
// to make retried channel mutations idempotent within a configurable window.
package dedupe
