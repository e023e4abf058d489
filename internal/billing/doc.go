// Package billing meters operations against per-tier monthly quotas.
//
// Usage is counted per user per calendar month ("YYYY-MM", UTC). Buckets are
// created on first use and never closed; a new month simply starts a new
// bucket. Old buckets are kept for reporting and removed only by Reset.
//
// CheckAndConsume is the admission primitive: a call is either counted or
// rejected with *QuotaExceededError, never both, even under concurrency.
package billing
