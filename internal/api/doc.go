// Package api exposes the queue over HTTP: enqueueing tasks, the admin
// console endpoints (list, delete, clear, retry, stats), the read-only
// ecosystem registry and the dispatch trigger used by the self-chaining
// dispatcher. Handlers translate HTTP concerns into store and dispatch calls
// and map internal errors to safe client messages.
package api
