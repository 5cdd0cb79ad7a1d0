package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/internal/testutil"
	"github.com/hupe1980/agentcrew/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestEngine wires an engine whose model factory always returns m.
func newTestEngine(t *testing.T, profiles core.ProfileStore, m model.Model, optFns ...func(o *Options)) *Engine {
	t.Helper()

	fns := append([]func(o *Options){func(o *Options) {
		o.Factory = func(core.ModelConfig) (model.Model, error) { return m, nil }
	}}, optFns...)

	return New(profiles, fns...)
}

func TestEngine_NewSessionGeneratesID(t *testing.T) {
	profiles := testutil.ProfileMap{
		"chat": testutil.NewProfileBuilder("chat").Build(),
	}
	mock := model.NewMockModel("mock-model", "mock")
	mock.AddResponse("hi", "Hello!")
	eng := newTestEngine(t, profiles, mock)

	reply, sid, err := eng.HandleMessage(context.Background(), "", "chat", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello!", reply)
	require.NotEmpty(t, sid)

	infos, err := eng.Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, sid, infos[0].ID)
	assert.Equal(t, "chat", infos[0].Profile)
	assert.False(t, infos[0].CreatedAt.IsZero())
}

func TestEngine_AdoptsCallerSuppliedID(t *testing.T) {
	profiles := testutil.ProfileMap{
		"chat": testutil.NewProfileBuilder("chat").Build(),
	}
	eng := newTestEngine(t, profiles, model.NewMockModel("mock-model", "mock"))

	_, sid, err := eng.HandleMessage(context.Background(), "ext-1", "chat", "hi")
	require.NoError(t, err)
	assert.Equal(t, "ext-1", sid)

	infos, err := eng.Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "ext-1", infos[0].ID)
}

func TestEngine_ProfilePinnedOnFirstMessage(t *testing.T) {
	profiles := testutil.ProfileMap{
		"alpha": testutil.NewProfileBuilder("alpha").Persona("Alpha persona.").Build(),
		"beta":  testutil.NewProfileBuilder("beta").Persona("Beta persona.").Build(),
	}
	mock := model.NewMockModel("mock-model", "mock")
	eng := newTestEngine(t, profiles, mock)

	_, sid, err := eng.HandleMessage(context.Background(), "", "alpha", "one")
	require.NoError(t, err)

	// The second message asks for beta; the session stays bound to alpha.
	_, sid2, err := eng.HandleMessage(context.Background(), sid, "beta", "two")
	require.NoError(t, err)
	assert.Equal(t, sid, sid2)

	reqs := mock.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "Alpha persona.", reqs[0].Messages[0].Text)
	assert.Equal(t, "Alpha persona.", reqs[1].Messages[0].Text)

	infos, err := eng.Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "alpha", infos[0].Profile)
}

func TestEngine_DefaultProfileFallback(t *testing.T) {
	profiles := testutil.ProfileMap{
		"default": testutil.NewProfileBuilder("default").Build(),
	}
	eng := newTestEngine(t, profiles, model.NewMockModel("mock-model", "mock"))

	_, _, err := eng.HandleMessage(context.Background(), "", "", "hi")
	require.NoError(t, err)

	infos, err := eng.Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "default", infos[0].Profile)
}

func TestEngine_HistoryFlowsAcrossTurns(t *testing.T) {
	profiles := testutil.ProfileMap{
		"chat": testutil.NewProfileBuilder("chat").Persona("P.").Build(),
	}
	mock := model.NewMockModel("mock-model", "mock")
	mock.AddResponse("one", "first reply")
	mock.AddResponse("two", "second reply")
	eng := newTestEngine(t, profiles, mock)

	_, sid, err := eng.HandleMessage(context.Background(), "", "chat", "one")
	require.NoError(t, err)

	_, _, err = eng.HandleMessage(context.Background(), sid, "", "two")
	require.NoError(t, err)

	// The second generation sees the first exchange as history.
	reqs := mock.Requests()
	require.Len(t, reqs, 2)
	require.Equal(t, []core.Message{
		core.SystemMessage("P."),
		core.UserMessage("one"),
		core.AssistantMessage("first reply"),
		core.UserMessage("two"),
	}, reqs[1].Messages)

	history, err := eng.History(context.Background(), sid)
	require.NoError(t, err)
	require.Equal(t, []core.Message{
		core.UserMessage("one"),
		core.AssistantMessage("first reply"),
		core.UserMessage("two"),
		core.AssistantMessage("second reply"),
	}, history)
}

func TestEngine_ReplyTrimmedBeforePersistence(t *testing.T) {
	profiles := testutil.ProfileMap{
		"chat": testutil.NewProfileBuilder("chat").Build(),
	}
	mock := model.NewMockModel("mock-model", "mock")
	mock.AddResponse("hi", "\n  padded reply \n\n")
	eng := newTestEngine(t, profiles, mock)

	reply, sid, err := eng.HandleMessage(context.Background(), "", "chat", "hi")
	require.NoError(t, err)
	assert.Equal(t, "padded reply", reply)

	history, err := eng.History(context.Background(), sid)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "padded reply", history[1].Text)
}

func TestEngine_UnknownProfileFailsTurn(t *testing.T) {
	eng := newTestEngine(t, testutil.ProfileMap{}, model.NewMockModel("mock-model", "mock"))

	_, sid, err := eng.HandleMessage(context.Background(), "", "ghost", "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrProfileNotFound)

	// The failed turn leaves no history behind.
	history, herr := eng.History(context.Background(), sid)
	require.NoError(t, herr)
	assert.Empty(t, history)
}

func TestEngine_BuildFailureRetriedNextMessage(t *testing.T) {
	profiles := testutil.ProfileMap{
		"chat": testutil.NewProfileBuilder("chat").Build(),
	}
	mock := model.NewMockModel("mock-model", "mock")
	mock.AddResponse("hi", "recovered")

	calls := 0
	eng := New(profiles, func(o *Options) {
		o.Factory = func(core.ModelConfig) (model.Model, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("api key missing")
			}
			return mock, nil
		}
	})

	_, sid, err := eng.HandleMessage(context.Background(), "", "chat", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key missing")

	// Same session, fresh build attempt.
	reply, _, err := eng.HandleMessage(context.Background(), sid, "", "hi")
	require.NoError(t, err)
	assert.Equal(t, "recovered", reply)
}

func TestEngine_DelegationEndToEnd(t *testing.T) {
	profiles := testutil.ProfileMap{
		"lead":   testutil.NewProfileBuilder("lead").Manager("writer").Build(),
		"writer": testutil.NewProfileBuilder("writer").Persona("Writes prose.").Build(),
	}
	mock := model.NewMockModel("mock-model", "mock")
	mock.AddResponse("go", "Plan.\nTASK PLAN: [{\"task\":\"write the intro\",\"agent_profile\":\"writer\"}]")
	mock.AddResponse("write the intro", "Intro done.")
	eng := newTestEngine(t, profiles, mock)

	reply, sid, err := eng.HandleMessage(context.Background(), "", "lead", "go")
	require.NoError(t, err)

	assert.Contains(t, reply, "# Task Results")
	assert.Contains(t, reply, "Status: success")
	assert.Contains(t, reply, "Result: Intro done.")

	// Only the user turn and the aggregated reply are persisted; the
	// specialist exchange stays out of the session.
	history, err := eng.History(context.Background(), sid)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, core.RoleUser, history[0].Role)
	assert.Equal(t, core.RoleAssistant, history[1].Role)

	// The specialist ran with empty history: persona plus the bare task.
	reqs := mock.Requests()
	require.Len(t, reqs, 2)
	require.Len(t, reqs[1].Messages, 2)
	assert.Equal(t, "Writes prose.", reqs[1].Messages[0].Text)
	assert.Equal(t, "write the intro", reqs[1].Messages[1].Text)

	infos, err := eng.Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 1)
}

func TestEngine_DelegationDepthBounded(t *testing.T) {
	profiles := testutil.ProfileMap{
		"lead": testutil.NewProfileBuilder("lead").Manager("lead").Build(),
	}
	mock := model.NewMockModel("mock-model", "mock")
	// The manager always delegates its input back to itself.
	mock.AddResponse("go", "Plan.\nTASK PLAN: [{\"task\":\"go\",\"agent_profile\":\"lead\"}]")

	eng := newTestEngine(t, profiles, mock, func(o *Options) {
		o.Config = Config{MaxDelegationDepth: 1}
	})

	reply, _, err := eng.HandleMessage(context.Background(), "", "lead", "go")
	require.NoError(t, err)

	// The first delegation runs; its own delegation attempt is rejected.
	assert.Contains(t, reply, "delegation depth limit 1 reached")
	assert.Contains(t, reply, "Status: error")
}

func TestEngine_ModelCallBudget(t *testing.T) {
	profiles := testutil.ProfileMap{
		"lead":   testutil.NewProfileBuilder("lead").Manager("writer").Build(),
		"writer": testutil.NewProfileBuilder("writer").Build(),
	}
	mock := model.NewMockModel("mock-model", "mock")
	mock.AddResponse("go", `Plan.
TASK PLAN: [
  {"task":"one","agent_profile":"writer"},
  {"task":"two","agent_profile":"writer"},
  {"task":"three","agent_profile":"writer"}
]`)

	eng := newTestEngine(t, profiles, mock, func(o *Options) {
		o.Config = Config{MaxDelegationDepth: 3, MaxModelCalls: 2}
	})

	reply, _, err := eng.HandleMessage(context.Background(), "", "lead", "go")
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(reply, "Status: success"))
	assert.Equal(t, 1, strings.Count(reply, "Status: error"))
	assert.Contains(t, reply, "model call budget exceeded: 2")
}

// slowModel blocks until its context expires.
type slowModel struct{}

func (slowModel) Generate(ctx context.Context, _ model.Request) (*model.Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowModel) Info() model.Info { return model.Info{Name: "slow-model", Provider: "slow"} }

func TestEngine_TaskTimeout(t *testing.T) {
	profiles := testutil.ProfileMap{
		"lead":   testutil.NewProfileBuilder("lead").Manager("sleepy").Build(),
		"sleepy": testutil.NewProfileBuilder("sleepy").Model("slow", "slow-model").Build(),
	}
	mock := model.NewMockModel("mock-model", "mock")
	mock.AddResponse("go", "Plan.\nTASK PLAN: [{\"task\":\"wait\",\"agent_profile\":\"sleepy\"}]")

	eng := New(profiles, func(o *Options) {
		o.Config = Config{MaxDelegationDepth: 3, TaskTimeout: 20 * time.Millisecond}
		o.Factory = func(cfg core.ModelConfig) (model.Model, error) {
			if cfg.Provider == "slow" {
				return slowModel{}, nil
			}
			return mock, nil
		}
	})

	reply, _, err := eng.HandleMessage(context.Background(), "", "lead", "go")
	require.NoError(t, err)

	// The timeout fails the one task, not the request.
	assert.Contains(t, reply, "Status: error")
	assert.Contains(t, reply, "context deadline exceeded")
}

func TestEngine_DeleteSession(t *testing.T) {
	profiles := testutil.ProfileMap{
		"alpha": testutil.NewProfileBuilder("alpha").Persona("Alpha persona.").Build(),
		"beta":  testutil.NewProfileBuilder("beta").Persona("Beta persona.").Build(),
	}
	mock := model.NewMockModel("mock-model", "mock")
	eng := newTestEngine(t, profiles, mock)

	_, sid, err := eng.HandleMessage(context.Background(), "", "alpha", "hi")
	require.NoError(t, err)

	require.NoError(t, eng.DeleteSession(context.Background(), sid))

	infos, err := eng.Sessions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, infos)

	history, err := eng.History(context.Background(), sid)
	require.NoError(t, err)
	assert.Empty(t, history)

	// Idempotent.
	require.NoError(t, eng.DeleteSession(context.Background(), sid))

	// The id is free again and may bind a different profile.
	_, _, err = eng.HandleMessage(context.Background(), sid, "beta", "hi")
	require.NoError(t, err)
	last := mock.Requests()[len(mock.Requests())-1]
	assert.Equal(t, "Beta persona.", last.Messages[0].Text)
}

func TestEngine_BeforeMessageVeto(t *testing.T) {
	profiles := testutil.ProfileMap{
		"chat": testutil.NewProfileBuilder("chat").Build(),
	}
	eng := newTestEngine(t, profiles, model.NewMockModel("mock-model", "mock"))
	eng.RegisterCallback(NewFunctionCallback(CallbackBeforeMessage,
		func(context.Context, *CallbackContext) error {
			return errors.New("quota exhausted")
		}))

	_, sid, err := eng.HandleMessage(context.Background(), "", "chat", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exhausted")

	history, herr := eng.History(context.Background(), sid)
	require.NoError(t, herr)
	assert.Empty(t, history)
}

func TestEngine_AfterMessageSeesReply(t *testing.T) {
	profiles := testutil.ProfileMap{
		"chat": testutil.NewProfileBuilder("chat").Build(),
	}
	mock := model.NewMockModel("mock-model", "mock")
	mock.AddResponse("hi", "Hello!")
	eng := newTestEngine(t, profiles, mock)

	var got CallbackContext
	eng.RegisterCallback(NewFunctionCallback(CallbackAfterMessage,
		func(_ context.Context, cbCtx *CallbackContext) error {
			got = *cbCtx
			return nil
		}))

	reply, sid, err := eng.HandleMessage(context.Background(), "", "chat", "hi")
	require.NoError(t, err)

	assert.Equal(t, sid, got.SessionID)
	assert.Equal(t, "chat", got.Profile)
	assert.Equal(t, "hi", got.Input)
	assert.Equal(t, reply, got.Reply)
}

func TestEngine_DelegationGuardBlocksTask(t *testing.T) {
	profiles := testutil.ProfileMap{
		"lead":   testutil.NewProfileBuilder("lead").Manager("writer", "coder").Build(),
		"writer": testutil.NewProfileBuilder("writer").Build(),
		"coder":  testutil.NewProfileBuilder("coder").Build(),
	}
	mock := model.NewMockModel("mock-model", "mock")
	mock.AddResponse("go", `Plan.
TASK PLAN: [
  {"task":"draft","agent_profile":"writer"},
  {"task":"build","agent_profile":"coder"}
]`)
	eng := newTestEngine(t, profiles, mock)
	eng.RegisterCallback(NewDelegationGuardCallback(func(profile, _ string) error {
		if profile == "writer" {
			return errors.New("writer delegation is disabled")
		}
		return nil
	}))

	reply, _, err := eng.HandleMessage(context.Background(), "", "lead", "go")
	require.NoError(t, err)

	assert.Contains(t, reply, "writer delegation is disabled")
	assert.Equal(t, 1, strings.Count(reply, "Status: error"))
	assert.Equal(t, 1, strings.Count(reply, "Status: success"))
}

func TestEngine_OnErrorHook(t *testing.T) {
	profiles := testutil.ProfileMap{
		"chat": testutil.NewProfileBuilder("chat").Build(),
	}
	mock := model.NewMockModel("mock-model", "mock")
	mock.FailWith(errors.New("provider down"))
	eng := newTestEngine(t, profiles, mock)

	var got error
	eng.RegisterCallback(NewFunctionCallback(CallbackOnError,
		func(_ context.Context, cbCtx *CallbackContext) error {
			got = cbCtx.Err
			return nil
		}))

	_, _, err := eng.HandleMessage(context.Background(), "", "chat", "hi")
	require.Error(t, err)
	require.Error(t, got)
	assert.Contains(t, got.Error(), "provider down")
}
