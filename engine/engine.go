package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/agentcrew/agent"
	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/session"
)

// DefaultProfileName is the profile bound to a new session when the first
// message names none.
const DefaultProfileName = "default"

// Config defines tuning parameters for the Engine's operational behavior.
//
// This configuration focuses on the guard rails around delegation:
//   - Depth: how many delegation levels a manager chain may nest
//   - Time: how long one delegated task may run
//   - Budget: how many delegated calls one request may spend in total
//
// Additional concerns such as session TTLs belong to the respective store
// implementations rather than this struct; keeping the engine configuration
// focused on orchestration avoids duplicating store-level knobs here.
type Config struct {
	// MaxDelegationDepth limits how deep manager-to-manager delegation may
	// nest before a dispatch is rejected. Depth 0 is the user-facing turn;
	// each delegated task runs one level deeper. The rejection surfaces as a
	// per-task error result, never as a request failure.
	MaxDelegationDepth int

	// TaskTimeout bounds the wall-clock time of one delegated task,
	// covering profile resolution fallout, the model call and any nested
	// delegation it performs. Zero disables the per-task timeout. Expiry
	// becomes a per-task error result.
	TaskTimeout time.Duration

	// MaxModelCalls caps the number of delegated calls spent on one
	// top-level request across all delegation levels. It bounds wide plans
	// that a depth limit alone cannot catch. Zero means unlimited.
	MaxModelCalls int
}

// DefaultConfig provides the default engine configuration: delegation
// nesting capped at 3 levels, 2 minutes per delegated task, no call budget.
func DefaultConfig() Config {
	return Config{
		MaxDelegationDepth: 3,
		TaskTimeout:        2 * time.Minute,
		MaxModelCalls:      0,
	}
}

// Options configures an Engine instance using the functional options
// pattern. All collaborators default to in-process implementations so an
// engine is usable without external dependencies; production setups swap in
// persistent stores and real model factories.
type Options struct {
	// Config contains the orchestration parameters. Defaults to
	// DefaultConfig() if not specified.
	Config Config

	// SessionStore persists conversation history and session metadata.
	// Defaults to the in-memory implementation if not provided.
	SessionStore core.SessionStore

	// Retriever backs retrieval-augmented profiles. Nil lets those
	// profiles degrade to their placeholder context.
	Retriever core.Retriever

	// Factory builds models from profile configurations. Defaults to
	// agent.DefaultModelFactory.
	Factory agent.ModelFactory

	// Logger provides structured logging. Defaults to the no-op logger.
	Logger logging.Logger

	// Callbacks holds the lifecycle hooks executed around messages and
	// delegations. Defaults to an empty manager.
	Callbacks *CallbackManager
}

// boundSession is the per-session cache entry: the profile pinned on the
// session's first message and the agent built for it.
type boundSession struct {
	profile string
	agent   agent.Agent
}

// Engine coordinates sessions, agents and delegation for the chat surface.
//
// The Engine is the single entry point a host application talks to. It
// bridges the stateless agent variants with the stateful session store and
// owns the cross-cutting delegation rules:
//
// Core Responsibilities:
//   - Session lifecycle: id generation, metadata, profile pinning
//   - Agent binding: lazy per-session construction with failure retry
//   - History plumbing: load before the turn, append user+reply after
//   - Delegation guard rails: depth bound, per-task timeout, call budget
//   - Callback execution at message and delegation boundaries
//
// Session Flow:
//  1. An empty session id is replaced with a fresh one and the session
//     metadata is written once, binding the requested profile.
//  2. Later messages reuse the bound profile; the profile named in the
//     request is ignored after the first message.
//  3. The agent for the bound profile is built lazily and cached. A failed
//     build is not cached, so the next message retries it.
//  4. The reply is trimmed and the user and assistant turns are appended
//     to the session history in order.
//
// Delegation Flow:
// Manager agents receive the engine's dispatch function. Each dispatched
// task resolves and builds the specialist fresh, runs it with empty history
// under the per-task timeout, and persists nothing. The delegation depth
// travels through the context; crossing MaxDelegationDepth or exhausting
// the call budget fails that one task only.
//
// Concurrency Model:
// Messages for the same session are serialized by a per-session lock, so
// history reads and writes for one conversation never interleave. Messages
// for different sessions proceed independently. All exported methods are
// safe for concurrent use.
type Engine struct {
	profiles     core.ProfileStore
	sessionStore core.SessionStore
	builder      *agent.Builder
	callbacks    *CallbackManager
	config       Config
	logger       logging.Logger

	mu    sync.Mutex
	bound map[string]*boundSession
	locks map[string]*sync.Mutex
}

// New creates an Engine over a profile store.
//
// The profile store is the only required collaborator; everything else has
// an in-process default suitable for development and testing:
//
//   - SessionStore: in-memory store with TTL expiry
//   - Factory: agent.DefaultModelFactory (OpenAI, Anthropic, Ollama, local)
//   - Logger: no-op logger
//   - Callbacks: empty manager
//
// The returned Engine is immediately ready for use and safe for concurrent
// access. The engine does not take ownership of provided collaborators;
// callers remain responsible for their lifecycle.
//
// Example:
//
//	registry := profile.NewRegistry("profiles")
//	eng := engine.New(registry,
//	    func(o *engine.Options) {
//	        o.SessionStore = session.NewRedisStore(client)
//	        o.Logger = logger
//	    })
func New(profiles core.ProfileStore, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:       DefaultConfig(),
		SessionStore: session.NewInMemoryStore(),
		Logger:       logging.NoOpLogger{},
		Callbacks:    NewCallbackManager(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Callbacks == nil {
		opts.Callbacks = NewCallbackManager()
	}
	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore()
	}

	e := &Engine{
		profiles:     profiles,
		sessionStore: opts.SessionStore,
		callbacks:    opts.Callbacks,
		config:       opts.Config,
		logger:       opts.Logger,
		bound:        make(map[string]*boundSession),
		locks:        make(map[string]*sync.Mutex),
	}

	// The builder receives the engine's own dispatch function so manager
	// agents delegate through the guard rails above.
	e.builder = agent.NewBuilder(profiles, e.dispatchTask, func(o *agent.BuilderOptions) {
		o.Retriever = opts.Retriever
		o.Factory = opts.Factory
		o.Logger = opts.Logger
	})

	return e
}

// RegisterCallback adds a lifecycle hook to the engine's callback manager.
// Registration should complete before the engine starts handling messages.
func (e *Engine) RegisterCallback(cb Callback) {
	e.callbacks.RegisterCallback(cb)
}

// HandleMessage routes one user message through its session and returns the
// reply together with the session id (freshly generated when the caller
// passed none).
//
// Behavior:
//   - An empty sessionID starts a new session; the returned id addresses it
//     on subsequent calls.
//   - A sessionID the store has never seen (or whose entry expired) is
//     adopted as a new session under that id.
//   - The profile named on the first message is pinned to the session. On
//     later messages profileName is ignored in favor of the pinned one.
//   - An empty profileName on a new session binds DefaultProfileName.
//
// The reply is trimmed of surrounding whitespace before persistence, and
// the user plus assistant turns are appended to the session history only
// after the agent produced a reply; a failing turn leaves the history
// untouched.
func (e *Engine) HandleMessage(ctx context.Context, sessionID, profileName, text string) (string, string, error) {
	if sessionID == "" {
		sessionID = core.NewID()
	}

	unlock := e.lockSession(sessionID)
	defer unlock()

	profileName, err := e.pinProfile(ctx, sessionID, profileName)
	if err != nil {
		return "", sessionID, err
	}

	cbCtx := &CallbackContext{SessionID: sessionID, Profile: profileName, Input: text}
	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackBeforeMessage, cbCtx); err != nil {
		return "", sessionID, fmt.Errorf("before message callback: %w", err)
	}

	a, err := e.boundAgent(ctx, sessionID, profileName)
	if err != nil {
		e.emitError(ctx, cbCtx, err)
		return "", sessionID, err
	}

	history, err := e.sessionStore.History(ctx, sessionID)
	if err != nil {
		e.emitError(ctx, cbCtx, err)
		return "", sessionID, fmt.Errorf("load history: %w", err)
	}

	if e.config.MaxModelCalls > 0 {
		ctx = withLimiter(ctx, core.NewModelLimiter(e.config.MaxModelCalls))
	}

	reply, err := a.Respond(ctx, text, history)
	if err != nil {
		e.emitError(ctx, cbCtx, err)
		return "", sessionID, fmt.Errorf("agent %q: %w", profileName, err)
	}
	reply = strings.TrimSpace(reply)

	if err := e.sessionStore.AppendTurns(ctx, sessionID, core.UserMessage(text), core.AssistantMessage(reply)); err != nil {
		e.emitError(ctx, cbCtx, err)
		return "", sessionID, fmt.Errorf("persist turns: %w", err)
	}

	cbCtx.Reply = reply
	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackAfterMessage, cbCtx); err != nil {
		e.logger.Warn("after message callback failed", "session", sessionID, "error", err)
	}

	e.logger.Info("message handled", "session", sessionID, "profile", profileName)

	return reply, sessionID, nil
}

// History returns the ordered turns of a session. Unknown or expired ids
// yield an empty history.
func (e *Engine) History(ctx context.Context, sessionID string) ([]core.Message, error) {
	return e.sessionStore.History(ctx, sessionID)
}

// Sessions lists the metadata of all live sessions.
func (e *Engine) Sessions(ctx context.Context) ([]core.SessionInfo, error) {
	return e.sessionStore.List(ctx)
}

// DeleteSession removes a session's history, metadata and cached agent
// binding. Deleting an unknown session is not an error.
func (e *Engine) DeleteSession(ctx context.Context, sessionID string) error {
	e.mu.Lock()
	delete(e.bound, sessionID)
	delete(e.locks, sessionID)
	e.mu.Unlock()

	return e.sessionStore.Delete(ctx, sessionID)
}

// lockSession serializes message handling per session id and returns the
// unlock function.
func (e *Engine) lockSession(sessionID string) func() {
	e.mu.Lock()
	l, ok := e.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[sessionID] = l
	}
	e.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// pinProfile returns the profile bound to the session, creating the binding
// on the session's first message. Later messages keep the original binding
// regardless of the requested profile.
func (e *Engine) pinProfile(ctx context.Context, sessionID, requested string) (string, error) {
	info, err := e.sessionStore.Info(ctx, sessionID)

	switch {
	case err == nil:
		if requested != "" && requested != info.Profile {
			e.logger.Debug("session already bound, ignoring requested profile",
				"session", sessionID, "bound", info.Profile, "requested", requested)
		}
		return info.Profile, nil

	case errors.Is(err, core.ErrSessionNotFound):
		if requested == "" {
			requested = DefaultProfileName
		}
		info = core.SessionInfo{ID: sessionID, Profile: requested, CreatedAt: time.Now().UTC()}
		if err := e.sessionStore.PutInfo(ctx, info); err != nil {
			return "", fmt.Errorf("create session: %w", err)
		}
		e.logger.Info("session created", "session", sessionID, "profile", requested)
		return requested, nil

	default:
		return "", fmt.Errorf("load session: %w", err)
	}
}

// boundAgent returns the session's cached agent, building it on first use.
// Build failures are not cached; the next message retries the build.
func (e *Engine) boundAgent(ctx context.Context, sessionID, profileName string) (agent.Agent, error) {
	e.mu.Lock()
	if b, ok := e.bound[sessionID]; ok && b.profile == profileName {
		e.mu.Unlock()
		return b.agent, nil
	}
	e.mu.Unlock()

	p, err := e.profiles.Resolve(ctx, profileName)
	if err != nil {
		return nil, fmt.Errorf("resolve profile %q: %w", profileName, err)
	}

	a, err := e.builder.Build(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("build agent %q: %w", profileName, err)
	}

	e.mu.Lock()
	e.bound[sessionID] = &boundSession{profile: profileName, agent: a}
	e.mu.Unlock()

	return a, nil
}

// dispatchTask is the DispatchFunc handed to manager agents. Each task runs
// as a fresh conversation against a freshly built specialist; no session
// history is read or written. Errors returned here become per-task error
// results in the manager's aggregation, never request failures.
func (e *Engine) dispatchTask(ctx context.Context, profileName, task string) (string, error) {
	depth := delegationDepth(ctx)
	if depth >= e.config.MaxDelegationDepth {
		return "", fmt.Errorf("delegation depth limit %d reached", e.config.MaxDelegationDepth)
	}
	ctx = withDelegationDepth(ctx, depth+1)

	if l := limiterFrom(ctx); l != nil {
		if err := l.Increment(); err != nil {
			return "", err
		}
	}

	cbCtx := &CallbackContext{Profile: profileName, Input: task, Depth: depth + 1}
	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackBeforeDelegation, cbCtx); err != nil {
		return "", err
	}

	p, err := e.profiles.Resolve(ctx, profileName)
	if err != nil {
		return "", fmt.Errorf("resolve profile %q: %w", profileName, err)
	}

	a, err := e.builder.Build(ctx, p)
	if err != nil {
		return "", fmt.Errorf("build agent %q: %w", profileName, err)
	}

	if e.config.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.TaskTimeout)
		defer cancel()
	}

	start := time.Now()

	reply, err := a.Respond(ctx, task, nil)
	if err != nil {
		e.logger.Error("delegated task failed", "profile", profileName, "depth", depth+1, "duration", time.Since(start), "error", err)
		e.emitError(ctx, cbCtx, err)
		return "", err
	}

	cbCtx.Reply = reply
	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackAfterDelegation, cbCtx); err != nil {
		e.logger.Warn("after delegation callback failed", "profile", profileName, "error", err)
	}

	e.logger.Debug("delegated task completed", "profile", profileName, "depth", depth+1, "duration", time.Since(start))

	return reply, nil
}

// emitError runs the on-error hooks for a failed operation. Hook failures
// are logged, not propagated.
func (e *Engine) emitError(ctx context.Context, cbCtx *CallbackContext, cause error) {
	cbCtx.Err = cause
	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackOnError, cbCtx); err != nil {
		e.logger.Warn("error callback failed", "error", err)
	}
}

// ctxKey namespaces the context values the engine threads through
// delegation chains.
type ctxKey int

const (
	depthKey ctxKey = iota
	limiterKey
)

func withDelegationDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, depthKey, depth)
}

// delegationDepth reports how many delegation levels deep the current call
// already is. The user-facing turn is depth 0.
func delegationDepth(ctx context.Context) int {
	if d, ok := ctx.Value(depthKey).(int); ok {
		return d
	}
	return 0
}

func withLimiter(ctx context.Context, l *core.ModelLimiter) context.Context {
	return context.WithValue(ctx, limiterKey, l)
}

func limiterFrom(ctx context.Context) *core.ModelLimiter {
	if l, ok := ctx.Value(limiterKey).(*core.ModelLimiter); ok {
		return l
	}
	return nil
}
