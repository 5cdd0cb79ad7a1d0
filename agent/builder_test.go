package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/internal/testutil"
	"github.com/hupe1980/agentcrew/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockFactory returns one shared MockModel and records the configs it saw.
type mockFactory struct {
	model *model.MockModel
	cfgs  []core.ModelConfig
	err   error
}

func (f *mockFactory) build(cfg core.ModelConfig) (model.Model, error) {
	f.cfgs = append(f.cfgs, cfg)
	if f.err != nil {
		return nil, f.err
	}
	return f.model, nil
}

func newMockBuilder(profiles core.ProfileStore, dispatch DispatchFunc) (*Builder, *mockFactory) {
	factory := &mockFactory{model: model.NewMockModel("mock-model", "mock")}
	b := NewBuilder(profiles, dispatch, func(o *BuilderOptions) {
		o.Factory = factory.build
	})
	return b, factory
}

func TestBuilder_ClosedVariantSet(t *testing.T) {
	profiles := testutil.ProfileMap{}
	b, _ := newMockBuilder(profiles, nil)

	tests := []struct {
		profile core.Profile
		want    any
	}{
		{testutil.NewProfileBuilder("chat").Build(), &ConversationalAgent{}},
		{testutil.NewProfileBuilder("docs").Retrieval("kb").Build(), &RetrievalAgent{}},
		{testutil.NewProfileBuilder("lead").Manager("chat").Build(), &ManagerAgent{}},
	}

	for _, tt := range tests {
		a, err := b.Build(context.Background(), tt.profile)
		require.NoError(t, err)
		assert.IsType(t, tt.want, a)
		assert.Equal(t, tt.profile.Name, a.Name())
	}
}

func TestBuilder_UnknownKind(t *testing.T) {
	b, factory := newMockBuilder(testutil.ProfileMap{}, nil)

	_, err := b.Build(context.Background(), testutil.NewProfileBuilder("odd").Kind("director").Build())
	require.Error(t, err)

	var cfgErr *core.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "director")

	// The kind check runs before model construction.
	assert.Empty(t, factory.cfgs)
}

func TestBuilder_FactoryError(t *testing.T) {
	factory := &mockFactory{err: errors.New("no api key")}
	b := NewBuilder(testutil.ProfileMap{}, nil, func(o *BuilderOptions) {
		o.Factory = factory.build
	})

	_, err := b.Build(context.Background(), testutil.NewProfileBuilder("chat").Build())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no api key")
}

func TestBuilder_FactoryReceivesModelConfig(t *testing.T) {
	b, factory := newMockBuilder(testutil.ProfileMap{}, nil)

	p := testutil.NewProfileBuilder("chat").Model("openai", "gpt-4o-mini").Build()
	_, err := b.Build(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, factory.cfgs, 1)
	assert.Equal(t, "openai", factory.cfgs[0].Provider)
	assert.Equal(t, "gpt-4o-mini", factory.cfgs[0].Name)
}

func TestBuilder_WiresRetriever(t *testing.T) {
	retriever := &stubRetriever{}
	factory := &mockFactory{model: model.NewMockModel("mock-model", "mock")}
	b := NewBuilder(testutil.ProfileMap{}, nil, func(o *BuilderOptions) {
		o.Factory = factory.build
		o.Retriever = retriever
	})

	a, err := b.Build(context.Background(), testutil.NewProfileBuilder("docs").Retrieval("kb").Build())
	require.NoError(t, err)

	_, err = a.Respond(context.Background(), "question", nil)
	require.NoError(t, err)
	assert.Equal(t, "kb", retriever.gotCollection)
}

func TestBuilder_ManagerRosterSkipsUnresolvable(t *testing.T) {
	profiles := testutil.ProfileMap{
		"writer": testutil.NewProfileBuilder("writer").Persona("Writes prose.").Build(),
	}
	recorder := testutil.NewDispatchRecorder()
	b, factory := newMockBuilder(profiles, recorder.Dispatch)

	planning := "Plan.\nTASK PLAN: [{\"task\":\"draft\",\"agent_profile\":\"ghost\"}]"
	factory.model.AddResponse("go", planning)

	p := testutil.NewProfileBuilder("lead").Manager("writer", "ghost").Build()
	a, err := b.Build(context.Background(), p)
	require.NoError(t, err)

	out, err := a.Respond(context.Background(), "go", nil)
	require.NoError(t, err)

	// ghost is off the planning roster but stays a legal dispatch target.
	system := factory.model.Requests()[0].Messages[0].Text
	assert.Contains(t, system, "- writer: Writes prose.")
	assert.False(t, strings.Contains(system, "ghost"))

	require.Len(t, recorder.Calls(), 1)
	assert.Equal(t, "ghost", recorder.Calls()[0].Profile)
	assert.Contains(t, out, "Status: success")
}

func TestDefaultModelFactory(t *testing.T) {
	tests := []struct {
		cfg          core.ModelConfig
		wantProvider string
	}{
		{core.ModelConfig{Provider: "openai", Name: "gpt-4o-mini"}, "openai"},
		{core.ModelConfig{Provider: "anthropic", Name: "claude-sonnet-4-20250514"}, "anthropic"},
		{core.ModelConfig{Provider: "ollama", Name: "llama3"}, "ollama"},
		{core.ModelConfig{Provider: "local", Name: "mistral", BaseURL: "http://localhost:8080/v1"}, "openai"},
	}

	for _, tt := range tests {
		m, err := DefaultModelFactory(tt.cfg)
		require.NoError(t, err, tt.cfg.Provider)
		assert.Equal(t, tt.wantProvider, m.Info().Provider)
		assert.Equal(t, tt.cfg.Name, m.Info().Name)
	}
}

func TestDefaultModelFactory_LocalRequiresBaseURL(t *testing.T) {
	_, err := DefaultModelFactory(core.ModelConfig{Provider: "local", Name: "mistral"})

	var cfgErr *core.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "base URL")
}

func TestDefaultModelFactory_UnknownProvider(t *testing.T) {
	_, err := DefaultModelFactory(core.ModelConfig{Provider: "petstore"})

	var cfgErr *core.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "petstore")
}
