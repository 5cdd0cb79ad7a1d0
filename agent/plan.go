package agent

import (
	"encoding/json"
	"strings"
)

// planMarker separates a manager's free-form reasoning from its machine
// readable task plan. Everything after the marker is candidate JSON.
const planMarker = "TASK PLAN:"

// TaskItem is one planned delegation: what to do and which profile does it.
type TaskItem struct {
	Task    string
	Profile string
}

// parsePlan decodes the text following the plan marker into a raw JSON
// value. Three strategies are tried in order, first success wins:
//
//  1. the tail parsed directly as JSON
//  2. the content of a ```json fenced block within the tail
//  3. the whitespace-trimmed tail, parsed again
//
// The strategies are kept explicit and ordered so the parse behavior stays
// deterministic and testable per tier. Shape validation (the value being a
// list, items carrying the right fields) is the caller's concern.
func parsePlan(tail string) (any, bool) {
	if v, err := decodePlanJSON(tail); err == nil {
		return v, true
	}
	if fenced, ok := extractFenced(tail); ok {
		if v, err := decodePlanJSON(fenced); err == nil {
			return v, true
		}
	}
	if v, err := decodePlanJSON(strings.TrimSpace(tail)); err == nil {
		return v, true
	}
	return nil, false
}

func decodePlanJSON(s string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// extractFenced returns the trimmed content between a ```json opening fence
// and the next closing fence. Both fences must be present.
func extractFenced(s string) (string, bool) {
	_, after, found := strings.Cut(s, "```json")
	if !found {
		return "", false
	}
	content, _, found := strings.Cut(after, "```")
	if !found {
		return "", false
	}
	return strings.TrimSpace(content), true
}

// taskFromPlanEntry pulls the task fields out of one decoded plan entry.
// Entries that are not objects, or whose fields are missing or non-string,
// yield empty fields for the caller's validation to reject.
func taskFromPlanEntry(v any) TaskItem {
	m, ok := v.(map[string]any)
	if !ok {
		return TaskItem{}
	}
	var item TaskItem
	if s, ok := m["task"].(string); ok {
		item.Task = s
	}
	if s, ok := m["agent_profile"].(string); ok {
		item.Profile = s
	}
	return item
}
