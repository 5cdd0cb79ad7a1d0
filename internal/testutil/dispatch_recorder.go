package testutil

import (
	"context"
	"fmt"
	"sync"
)

// DispatchCall is one recorded delegation: which profile received which task.
type DispatchCall struct {
	Profile string
	Task    string
}

// DispatchRecorder is a scriptable dispatch target for manager tests. Pass
// its Dispatch method wherever a dispatch callback is expected; it records
// every call and answers from the scripted replies, defaulting to a
// deterministic echo.
type DispatchRecorder struct {
	mu        sync.Mutex
	responses map[string]string
	failures  map[string]error
	calls     []DispatchCall
}

// NewDispatchRecorder creates an empty recorder.
func NewDispatchRecorder() *DispatchRecorder {
	return &DispatchRecorder{
		responses: make(map[string]string),
		failures:  make(map[string]error),
	}
}

// Respond scripts the reply returned for a profile (chainable).
func (r *DispatchRecorder) Respond(profile, reply string) *DispatchRecorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[profile] = reply
	return r
}

// Fail scripts a failure for a profile (chainable).
func (r *DispatchRecorder) Fail(profile string, err error) *DispatchRecorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[profile] = err
	return r
}

// Dispatch records the call and answers from the script.
func (r *DispatchRecorder) Dispatch(_ context.Context, profile, task string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, DispatchCall{Profile: profile, Task: task})

	if err, ok := r.failures[profile]; ok {
		return "", err
	}
	if reply, ok := r.responses[profile]; ok {
		return reply, nil
	}
	return fmt.Sprintf("%s handled: %s", profile, task), nil
}

// Calls returns a copy of the recorded dispatches in order.
func (r *DispatchRecorder) Calls() []DispatchCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	calls := make([]DispatchCall, len(r.calls))
	copy(calls, r.calls)
	return calls
}

// CallCount returns how many dispatches were recorded.
func (r *DispatchRecorder) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}
