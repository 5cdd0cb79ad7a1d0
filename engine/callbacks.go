package engine

import (
	"context"

	"github.com/hupe1980/agentcrew/logging"
)

// CallbackType defines the lifecycle points where callbacks execute.
//
// Callbacks hook into the engine's message and delegation pipeline without
// modifying core logic. Each type marks a boundary in the execution flow:
//
//   - BeforeMessage/AfterMessage: around one user-facing turn
//   - BeforeDelegation/AfterDelegation: around one dispatched task
//   - OnError: when a turn or a dispatched task fails
//
// Callbacks execute synchronously. A before hook returning an error aborts
// the operation it precedes: an aborted message fails the request, an
// aborted delegation becomes that task's error result. Errors from after
// and on-error hooks are logged by the engine and do not fail the
// completed operation.
type CallbackType string

const (
	// CallbackBeforeMessage triggers before a user message is routed to its
	// session's agent. Use for validation, rate limiting or instrumentation.
	CallbackBeforeMessage CallbackType = "before_message"

	// CallbackAfterMessage triggers after the reply has been persisted.
	// Use for metrics collection or post-processing.
	CallbackAfterMessage CallbackType = "after_message"

	// CallbackBeforeDelegation triggers before a delegated task reaches its
	// specialist. Use to restrict delegation targets or audit task text.
	CallbackBeforeDelegation CallbackType = "before_delegation"

	// CallbackAfterDelegation triggers after a delegated task produced its
	// reply. Use for per-task metrics or logging.
	CallbackAfterDelegation CallbackType = "after_delegation"

	// CallbackOnError triggers when a turn or dispatched task fails.
	// Use for alerting or error accounting.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext carries the execution state a hook may inspect.
//
// Message hooks see the session id, the pinned profile and the user input;
// after-message hooks additionally see the persisted reply. Delegation
// hooks see the specialist profile, the task text as Input and the
// delegation depth; the session id is empty because dispatched tasks run
// outside any session. On-error hooks see the failure in Err.
type CallbackContext struct {
	// SessionID identifies the session of a message hook. Empty for
	// delegation hooks.
	SessionID string

	// Profile is the agent profile handling the operation.
	Profile string

	// Input is the user message or the delegated task text.
	Input string

	// Reply is the produced output. Set only for after hooks.
	Reply string

	// Depth is the delegation nesting level. Zero for message hooks.
	Depth int

	// Err is the failure that triggered an on-error hook.
	Err error

	// Metadata provides extensible storage for custom callback data.
	Metadata map[string]any
}

// Callback defines the interface for execution lifecycle hooks.
//
// Implementations should be fast (hooks run synchronously on the request
// path), safe under concurrent execution, and stateless between
// invocations where possible.
type Callback interface {
	// Type returns the lifecycle point this implementation handles.
	Type() CallbackType

	// Execute performs the hook logic. Returning an error from a before
	// hook aborts the associated operation.
	Execute(ctx context.Context, cbCtx *CallbackContext) error
}

// FunctionCallback wraps a plain function as a callback implementation.
//
// Example:
//
//	audit := engine.NewFunctionCallback(engine.CallbackBeforeDelegation,
//	    func(ctx context.Context, cbCtx *engine.CallbackContext) error {
//	        log.Printf("delegating to %s: %s", cbCtx.Profile, cbCtx.Input)
//	        return nil
//	    })
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, cbCtx *CallbackContext) error
}

// NewFunctionCallback creates a function-based callback for one lifecycle
// point.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, cbCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function.
func (c *FunctionCallback) Execute(ctx context.Context, cbCtx *CallbackContext) error {
	return c.fn(ctx, cbCtx)
}

// CallbackManager routes lifecycle events to the registered hooks.
//
// Hooks registered for the same type execute sequentially in registration
// order; the first error stops the chain and is returned. Registration is
// not synchronized and should complete before the engine starts handling
// messages; execution afterwards is safe for concurrent use.
type CallbackManager struct {
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty callback manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback under its own declared type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks runs all hooks registered for the given type and returns
// the first error, or nil when every hook succeeds.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	cbCtx *CallbackContext,
) error {
	callbacks, exists := cm.callbacks[callbackType]
	if !exists {
		return nil
	}

	for _, callback := range callbacks {
		if err := callback.Execute(ctx, cbCtx); err != nil {
			return err
		}
	}

	return nil
}

// LoggingCallback logs lifecycle events through the structured logger.
//
// Example:
//
//	eng.RegisterCallback(engine.NewLoggingCallback(
//	    engine.CallbackAfterDelegation, logger))
type LoggingCallback struct {
	callbackType CallbackType
	logger       logging.Logger
}

// NewLoggingCallback creates a logging hook for one lifecycle point.
func NewLoggingCallback(callbackType CallbackType, logger logging.Logger) *LoggingCallback {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the lifecycle event with its context fields.
func (c *LoggingCallback) Execute(ctx context.Context, cbCtx *CallbackContext) error {
	if cbCtx.Err != nil {
		c.logger.Error("lifecycle event",
			"type", string(c.callbackType), "session", cbCtx.SessionID,
			"profile", cbCtx.Profile, "depth", cbCtx.Depth, "error", cbCtx.Err)
		return nil
	}

	c.logger.Info("lifecycle event",
		"type", string(c.callbackType), "session", cbCtx.SessionID,
		"profile", cbCtx.Profile, "depth", cbCtx.Depth)

	return nil
}

// DelegationGuardCallback vetoes delegated tasks before they reach a
// specialist.
//
// The guard function receives the target profile and the task text; a
// returned error rejects the dispatch, which the manager records as that
// task's error result while its sibling tasks continue. Use it to enforce
// allow-lists or content rules beyond the manager's own available-agents
// check.
//
// Example:
//
//	guard := engine.NewDelegationGuardCallback(func(profile, task string) error {
//	    if profile == "billing" {
//	        return errors.New("billing delegation is disabled")
//	    }
//	    return nil
//	})
//	eng.RegisterCallback(guard)
type DelegationGuardCallback struct {
	guard func(profile, task string) error
}

// NewDelegationGuardCallback creates a delegation guard from a validation
// function.
func NewDelegationGuardCallback(guard func(profile, task string) error) *DelegationGuardCallback {
	return &DelegationGuardCallback{
		guard: guard,
	}
}

// Type returns CallbackBeforeDelegation.
func (c *DelegationGuardCallback) Type() CallbackType {
	return CallbackBeforeDelegation
}

// Execute applies the guard to the pending dispatch.
func (c *DelegationGuardCallback) Execute(ctx context.Context, cbCtx *CallbackContext) error {
	if c.guard != nil {
		return c.guard(cbCtx.Profile, cbCtx.Input)
	}
	return nil
}
