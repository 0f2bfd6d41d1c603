// Package model holds the domain types shared across the dispatch engine:
// queue message bodies, per-user notification settings, the project /
// organization / user / error-stack records read from storage, and the
// daily digest shape.
//
// Message bodies are transient: produced once, consumed by exactly one
// handler, then discarded.
package model
