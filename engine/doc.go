// Package engine implements the session coordination layer for AgentCrew.
//
// The Engine is the central hub between a host application and the agent
// variants. It owns everything that spans more than one turn or more than
// one agent: session state, profile binding, history persistence and the
// delegation guard rails managers operate under.
//
// # Core Responsibilities
//
// Session Management:
//   - Session id generation and adoption of caller-supplied ids
//   - One-time profile binding on the session's first message
//   - Lazy agent construction per session with retry after failed builds
//   - History load before each turn, user+assistant append after it
//
// Delegation Orchestration:
//   - The dispatch function manager agents delegate through
//   - Depth bounding of nested manager chains via context propagation
//   - Per-task timeouts and an optional per-request call budget
//   - Fresh, stateless specialist invocations with no history writes
//
// Lifecycle Hooks:
//   - Callback execution around messages and delegated tasks
//   - Built-in hooks for structured logging and delegation guarding
//
// # Architecture
//
// The engine sits between the host surface and the stores:
//
//	┌─────────────────────────────────────────────┐
//	│              Host Application               │
//	├─────────────────────────────────────────────┤
//	│                   Engine                    │
//	│  ┌───────────────┐  ┌─────────────────────┐ │
//	│  │ HandleMessage │  │    dispatchTask     │ │
//	│  │ (sessions)    │  │ (manager delegates) │ │
//	│  └───────┬───────┘  └──────────┬──────────┘ │
//	│          │     agent.Builder   │            │
//	├──────────┼─────────────────────┼────────────┤
//	│  SessionStore    ProfileStore    Retriever  │
//	└─────────────────────────────────────────────┘
//
// HandleMessage drives user-facing turns against the session store;
// dispatchTask drives delegated tasks outside any session. Both construct
// agents through the shared builder, which is wired back to dispatchTask so
// manager chains nest until the depth bound stops them.
//
// # Usage
//
// Basic setup with on-disk profiles and defaults for the rest:
//
//	registry := profile.NewRegistry("profiles")
//	eng := engine.New(registry)
//
//	reply, sid, err := eng.HandleMessage(ctx, "", "assistant", "Hello!")
//	if err != nil {
//	    return err
//	}
//	// Reuse sid to continue the conversation.
//	reply, _, err = eng.HandleMessage(ctx, sid, "", "And one more thing...")
//
// Production setup with persistent sessions and hooks:
//
//	eng := engine.New(registry, func(o *engine.Options) {
//	    o.SessionStore = session.NewRedisStore(client)
//	    o.Retriever = index
//	    o.Logger = logger
//	})
//	eng.RegisterCallback(engine.NewLoggingCallback(engine.CallbackAfterDelegation, logger))
//
// # Error Handling
//
// Turn-level failures (unresolvable profile, failed build, model errors)
// fail the HandleMessage call and leave the session history untouched.
// Task-level failures inside a delegation (depth exceeded, timeout, budget
// exhausted, specialist errors) are converted by the manager into per-task
// error results and never fail the surrounding request.
package engine
