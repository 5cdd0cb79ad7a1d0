// Package session houses concrete implementations of the core.SessionStore.
// The interface itself (and the SessionInfo struct) live in the core package
// to centralize domain contracts. Keeping only implementations here prevents
// higher level packages (agents, engine) from depending on concrete storage.
//
// Two backends ship out of the box: a TTL-aware in-memory map for tests and
// single-process demos, and a Redis store for anything shared or durable.
// Additional backends (Postgres, DynamoDB, ...) can be added without
// changing any calling code - only the wiring layer needs to decide which
// implementation to instantiate.
package session
