package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlan_DirectJSON(t *testing.T) {
	v, ok := parsePlan(` [{"task":"x","agent_profile":"p"}]`)
	require.True(t, ok)

	entries, ok := v.([]any)
	require.True(t, ok)
	require.Len(t, entries, 1)
	assert.Equal(t, TaskItem{Task: "x", Profile: "p"}, taskFromPlanEntry(entries[0]))
}

func TestParsePlan_FencedJSON(t *testing.T) {
	tail := "\nHere is the plan:\n```json\n[{\"task\":\"x\",\"agent_profile\":\"p\"}]\n```\nDone."
	v, ok := parsePlan(tail)
	require.True(t, ok)

	entries, ok := v.([]any)
	require.True(t, ok)
	require.Len(t, entries, 1)
	assert.Equal(t, TaskItem{Task: "x", Profile: "p"}, taskFromPlanEntry(entries[0]))
}

func TestParsePlan_UnclosedFenceFails(t *testing.T) {
	_, ok := parsePlan("\n```json\n[{\"task\":\"x\",\"agent_profile\":\"p\"}]")
	assert.False(t, ok)
}

func TestParsePlan_Garbage(t *testing.T) {
	_, ok := parsePlan(" {not valid json")
	assert.False(t, ok)
}

func TestParsePlan_NonListStillParses(t *testing.T) {
	// Shape validation is the caller's concern; an object is valid JSON.
	v, ok := parsePlan(`{"task":"x"}`)
	require.True(t, ok)
	_, isList := v.([]any)
	assert.False(t, isList)
}

func TestExtractFenced(t *testing.T) {
	content, ok := extractFenced("prefix ```json\n[1,2]\n``` suffix")
	require.True(t, ok)
	assert.Equal(t, "[1,2]", content)

	_, ok = extractFenced("no fence here")
	assert.False(t, ok)
}

func TestTaskFromPlanEntry(t *testing.T) {
	assert.Equal(t, TaskItem{}, taskFromPlanEntry("not an object"))
	assert.Equal(t, TaskItem{}, taskFromPlanEntry(map[string]any{"task": 42, "agent_profile": true}))
	assert.Equal(t, TaskItem{Profile: "p"}, taskFromPlanEntry(map[string]any{"agent_profile": "p"}))
	assert.Equal(t, TaskItem{Task: "x", Profile: "p"}, taskFromPlanEntry(map[string]any{"task": "x", "agent_profile": "p"}))
}
