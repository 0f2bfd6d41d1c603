// Package store defines the persistence contracts the dispatch engine
// consumes: project / organization / user / error-stack lookups, the
// stats engine, the mail transport, and the webhook registry.
//
// The engine is read-mostly: the only write it performs is deleting a
// stale webhook registration. Lookups may legitimately come back empty;
// callers treat ErrNotFound as a normal outcome and abort the current
// message gracefully.
//
// In-memory implementations back tests and embedded runs. The webhook
// registry additionally supports a SQLite driver (build with -tags
// sqlite) for durable registrations.
package store
