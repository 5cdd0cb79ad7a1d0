// Package model defines the provider-agnostic abstractions and concrete
// helpers for invoking language models inside AgentCrew.
//
// Core goals:
//   - Keep request/response shapes minimal and transport independent
//     (role-tagged messages in, completed text out)
//   - Treat generation as an opaque synchronous call; streaming, tool
//     calling and token accounting are provider concerns outside this layer
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (OpenAI, Anthropic, Ollama) implement the Model interface from
// this package so higher layers (agents, engine) remain decoupled from
// vendor SDKs.
package model
