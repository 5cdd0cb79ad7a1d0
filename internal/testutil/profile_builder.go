package testutil

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentcrew/core"
)

// ProfileBuilder provides a fluent helper for constructing profiles in tests.
// Example:
//
//	p := NewProfileBuilder("lead").Manager("helper", "researcher").Thinking().Build()
//
// Chain only the parts you need; sensible defaults are applied.
type ProfileBuilder struct {
	p core.Profile
}

// NewProfileBuilder creates a builder for a conversational profile backed by
// the "mock" provider (tests supply a factory that serves it).
func NewProfileBuilder(name string) *ProfileBuilder {
	return &ProfileBuilder{p: core.Profile{
		Name: name,
		Kind: core.KindConversational,
		Model: core.ModelConfig{
			Provider: "mock",
			Name:     "mock-model",
		},
	}}
}

// Persona sets the profile's persona text (chainable).
func (b *ProfileBuilder) Persona(text string) *ProfileBuilder { b.p.Persona = text; return b }

// Kind overrides the agent kind (chainable).
func (b *ProfileBuilder) Kind(k core.AgentKind) *ProfileBuilder { b.p.Kind = k; return b }

// Model sets the provider and model name (chainable).
func (b *ProfileBuilder) Model(provider, name string) *ProfileBuilder {
	b.p.Model.Provider = provider
	b.p.Model.Name = name
	return b
}

// Manager marks the profile as a manager with the given specialists (chainable).
func (b *ProfileBuilder) Manager(specialists ...string) *ProfileBuilder {
	b.p.Kind = core.KindManager
	b.p.AvailableAgents = specialists
	return b
}

// Retrieval marks the profile as retrieval-augmented over a collection (chainable).
func (b *ProfileBuilder) Retrieval(collection string) *ProfileBuilder {
	b.p.Kind = core.KindRetrievalAugmented
	b.p.Retrieval.Collection = collection
	return b
}

// TopK sets the retrieval passage count (chainable).
func (b *ProfileBuilder) TopK(k int) *ProfileBuilder { b.p.Retrieval.TopK = k; return b }

// Strategy sets the delegation strategy hint (chainable).
func (b *ProfileBuilder) Strategy(s string) *ProfileBuilder { b.p.DelegationStrategy = s; return b }

// Thinking enables the delegation trace in aggregated output (chainable).
func (b *ProfileBuilder) Thinking() *ProfileBuilder { b.p.ShowThinking = true; return b }

// Build constructs the core.Profile value.
func (b *ProfileBuilder) Build() core.Profile { return b.p }

// ProfileMap is a map-backed core.ProfileStore for tests.
type ProfileMap map[string]core.Profile

// Resolve implements core.ProfileStore.
func (m ProfileMap) Resolve(_ context.Context, name string) (core.Profile, error) {
	p, ok := m[name]
	if !ok {
		return core.Profile{}, fmt.Errorf("%w: %s", core.ErrProfileNotFound, name)
	}
	return p, nil
}
