// Package agentcrew provides a high-level façade over the core Engine and
// its service abstractions (sessions, profiles, retrieval & logging) for
// building profile-driven multi-agent chat systems. Most applications
// interact with this package by:
//  1. Creating an AgentCrew via New() (optionally overriding the default
//     stores, retriever and model factory)
//  2. Saving or loading agent profiles through the profile registry
//  3. Routing user messages through Chat(), reusing the returned session id
//     to continue each conversation
//
// The façade delegates orchestration to engine.Engine while keeping setup
// and usage ergonomics concise. All defaults are safe for local development
// and testing; production deployments typically supply a Redis-backed
// session store, a persistent retrieval index and a structured logger.
package agentcrew

import (
	"context"
	"errors"

	"github.com/hupe1980/agentcrew/agent"
	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/engine"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/profile"
	"github.com/hupe1980/agentcrew/session"
)

// DefaultProfilesDir is the on-disk profile directory used when no profile
// store is supplied.
const DefaultProfilesDir = "profiles"

// ErrProfileStoreReadOnly is returned by the profile management methods when
// the AgentCrew was constructed with a profile store that is not a
// *profile.Registry.
var ErrProfileStoreReadOnly = errors.New("profile store does not support management operations")

// Options configures the AgentCrew instance.
type Options struct {
	// Config contains the engine's orchestration parameters (delegation
	// depth, task timeout, call budget). Defaults to engine.DefaultConfig().
	Config engine.Config

	// SessionStore persists conversation history and session metadata.
	// Defaults to the in-memory implementation.
	SessionStore core.SessionStore

	// ProfileStore resolves agent profiles by name. Defaults to a
	// profile.Registry over DefaultProfilesDir.
	ProfileStore core.ProfileStore

	// Retriever backs retrieval-augmented profiles. Nil lets those profiles
	// degrade to their placeholder context.
	Retriever core.Retriever

	// ModelFactory builds models from profile configurations. Defaults to
	// agent.DefaultModelFactory.
	ModelFactory agent.ModelFactory

	// Logger provides structured logging. Defaults to the no-op logger.
	Logger logging.Logger
}

// AgentCrew is the high-level façade aggregating the underlying engine and
// services.
type AgentCrew struct {
	opts     Options
	engine   *engine.Engine
	registry *profile.Registry // nil when the profile store is external
}

// New creates a new AgentCrew instance with optional overrides. Any unset
// service is initialized with a local default.
func New(optFns ...func(o *Options)) *AgentCrew {
	opts := Options{
		Config:       engine.DefaultConfig(),
		SessionStore: session.NewInMemoryStore(),
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.ProfileStore == nil {
		opts.ProfileStore = profile.NewRegistry(DefaultProfilesDir, func(o *profile.Options) {
			o.Logger = opts.Logger
		})
	}

	registry, _ := opts.ProfileStore.(*profile.Registry)

	eng := engine.New(opts.ProfileStore, func(o *engine.Options) {
		o.Config = opts.Config
		o.SessionStore = opts.SessionStore
		o.Retriever = opts.Retriever
		o.Factory = opts.ModelFactory
		o.Logger = opts.Logger
	})

	return &AgentCrew{opts: opts, engine: eng, registry: registry}
}

// Chat routes one user message through its session and returns the reply
// and the session id. Pass an empty sessionID to start a new conversation;
// the profile named on the first message stays bound to the session for all
// subsequent messages.
func (c *AgentCrew) Chat(ctx context.Context, sessionID, profileName, message string) (string, string, error) {
	return c.engine.HandleMessage(ctx, sessionID, profileName, message)
}

// History returns the ordered turns of a session. Unknown or expired ids
// yield an empty history.
func (c *AgentCrew) History(ctx context.Context, sessionID string) ([]core.Message, error) {
	return c.engine.History(ctx, sessionID)
}

// Sessions lists the metadata of all live sessions.
func (c *AgentCrew) Sessions(ctx context.Context) ([]core.SessionInfo, error) {
	return c.engine.Sessions(ctx)
}

// DeleteSession removes a session's history and metadata. Deleting an
// unknown session is not an error.
func (c *AgentCrew) DeleteSession(ctx context.Context, sessionID string) error {
	return c.engine.DeleteSession(ctx, sessionID)
}

// RegisterCallback adds a lifecycle hook to the underlying engine.
// Registration should complete before the first Chat call.
func (c *AgentCrew) RegisterCallback(cb engine.Callback) {
	c.engine.RegisterCallback(cb)
}

// SaveProfile validates and persists an agent profile through the registry.
// Returns ErrProfileStoreReadOnly when a custom profile store was supplied.
func (c *AgentCrew) SaveProfile(ctx context.Context, p core.Profile) error {
	if c.registry == nil {
		return ErrProfileStoreReadOnly
	}
	return c.registry.Save(ctx, p)
}

// DeleteProfile removes a stored profile. Returns ErrProfileStoreReadOnly
// when a custom profile store was supplied.
func (c *AgentCrew) DeleteProfile(ctx context.Context, name string) error {
	if c.registry == nil {
		return ErrProfileStoreReadOnly
	}
	return c.registry.Delete(ctx, name)
}

// Profiles lists the names of all stored profiles. Returns
// ErrProfileStoreReadOnly when a custom profile store was supplied.
func (c *AgentCrew) Profiles(ctx context.Context) ([]string, error) {
	if c.registry == nil {
		return nil, ErrProfileStoreReadOnly
	}
	return c.registry.List(ctx)
}
