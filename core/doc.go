// Package core provides the foundational domain types and collaborator
// contracts used by AgentCrew. It defines the core abstractions for:
//
//   - Messages (role-tagged conversational turns)
//   - Profiles (named agent configurations: persona, kind, model, delegation)
//   - Sessions (externally persisted history + metadata, TTL-bounded)
//   - Pluggable stores for session history, profiles and document retrieval
//   - The error taxonomy shared across the library
//
// The package intentionally keeps implementation concerns (persistence,
// model adapters, engine orchestration, concrete agents) out of scope,
// exposing small interfaces to enable custom backends and extensions.
package core
