package agentcrew

import (
	"context"
	"testing"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/internal/testutil"
	"github.com/hupe1980/agentcrew/model"
	"github.com/hupe1980/agentcrew/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentCrew_ChatRoundTrip(t *testing.T) {
	mock := model.NewMockModel("mock-model", "mock")
	mock.AddResponse("hello", "Hi there!")

	crew := New(func(o *Options) {
		o.ProfileStore = testutil.ProfileMap{
			"assistant": testutil.NewProfileBuilder("assistant").Build(),
		}
		o.ModelFactory = func(core.ModelConfig) (model.Model, error) { return mock, nil }
	})

	reply, sid, err := crew.Chat(context.Background(), "", "assistant", "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", reply)
	require.NotEmpty(t, sid)

	history, err := crew.History(context.Background(), sid)
	require.NoError(t, err)
	require.Equal(t, []core.Message{
		core.UserMessage("hello"),
		core.AssistantMessage("Hi there!"),
	}, history)

	infos, err := crew.Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "assistant", infos[0].Profile)

	require.NoError(t, crew.DeleteSession(context.Background(), sid))

	infos, err = crew.Sessions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestAgentCrew_ProfileManagement(t *testing.T) {
	crew := New(func(o *Options) {
		o.ProfileStore = profile.NewRegistry(t.TempDir())
	})

	p := testutil.NewProfileBuilder("support").Persona("You handle support.").Build()
	require.NoError(t, crew.SaveProfile(context.Background(), p))

	names, err := crew.Profiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"support"}, names)

	require.NoError(t, crew.DeleteProfile(context.Background(), "support"))

	names, err = crew.Profiles(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestAgentCrew_SavedProfileIsChattable(t *testing.T) {
	mock := model.NewMockModel("mock-model", "mock")
	mock.AddResponse("hi", "Saved profile speaking.")

	crew := New(func(o *Options) {
		o.ProfileStore = profile.NewRegistry(t.TempDir())
		o.ModelFactory = func(core.ModelConfig) (model.Model, error) { return mock, nil }
	})

	p := testutil.NewProfileBuilder("assistant").Persona("Persona.").Build()
	require.NoError(t, crew.SaveProfile(context.Background(), p))

	reply, _, err := crew.Chat(context.Background(), "", "assistant", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Saved profile speaking.", reply)
}

func TestAgentCrew_CustomStoreIsReadOnly(t *testing.T) {
	crew := New(func(o *Options) {
		o.ProfileStore = testutil.ProfileMap{}
	})

	err := crew.SaveProfile(context.Background(), testutil.NewProfileBuilder("x").Build())
	assert.ErrorIs(t, err, ErrProfileStoreReadOnly)

	err = crew.DeleteProfile(context.Background(), "x")
	assert.ErrorIs(t, err, ErrProfileStoreReadOnly)

	_, err = crew.Profiles(context.Background())
	assert.ErrorIs(t, err, ErrProfileStoreReadOnly)
}
