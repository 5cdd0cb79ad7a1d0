package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/model"
)

// DispatchFunc carries one delegated task to a specialist profile and
// returns its reply. The session layer supplies the implementation so a
// manager never calls back into it directly; each dispatched task runs as a
// fresh conversation with no session id shared across delegations.
type DispatchFunc func(ctx context.Context, profileName, task string) (string, error)

// Specialist is one roster entry shown to the planner: a delegatable profile
// name with its persona summary.
type Specialist struct {
	Name    string
	Persona string
}

// DelegationStatus labels the outcome of one delegated task.
type DelegationStatus string

const (
	// StatusSuccess marks a task whose specialist produced a reply.
	StatusSuccess DelegationStatus = "success"
	// StatusError marks a task that failed validation or invocation.
	StatusError DelegationStatus = "error"
)

// DelegationResult records the outcome of one planned task. Results are
// collected in plan order; slot i always corresponds to plan item i.
type DelegationResult struct {
	Task    string
	Profile string
	Status  DelegationStatus
	Result  string
}

// Fixed notices appended to the planning response on the non-fatal plan
// outcomes, and the per-task validation messages.
const (
	noticeNoTasks       = "No specific tasks were identified for delegation."
	noticeBadPlan       = "Error: Could not parse the task plan. Please format tasks as proper JSON."
	noticeNotAList      = "Error: Task plan is not a list of tasks."
	resultMissingFields = "Task missing required fields (task text or agent_profile)"
)

// defaultManagerPersona backs manager profiles without persona text.
const defaultManagerPersona = "You are a manager agent who breaks down complex tasks and delegates them."

// planningInstructions is the fixed orchestrator briefing appended to the
// manager persona. The first placeholder takes the specialist roster, the
// second the delegation strategy hint.
const planningInstructions = `You are an orchestrator that breaks down complex tasks into smaller subtasks and delegates them to specialized agents.

Available agent profiles for delegation with their specialties:
%s

When given a task, follow these steps:
1. Analyze the request and break it down into manageable subtasks
2. For each subtask, carefully consider which agent profile is best suited based on their persona and specialties
3. Create a task plan in JSON format that lists each subtask and the agent profile to use
4. I will execute your plan by sending each subtask to the appropriate agent
5. I will show you the results from each agent

Your task plan must follow this JSON format:
` + "```json" + `
[
  {
    "task": "The specific subtask description",
    "agent_profile": "profile_name"
  },
  ...
]
` + "```" + `

Always provide your reasoning first, then explicitly specify your task plan after the marker "TASK PLAN:".

Delegation strategy: %s`

// ManagerAgent plans a decomposition of the user input into tasks assigned
// to specialist profiles, dispatches each task through the injected
// DispatchFunc, and aggregates the outcomes into one reply.
//
// A turn proceeds in three phases:
//
//  1. Planning: one generation call whose system prompt embeds the persona,
//     the orchestrator briefing, the specialist roster and the strategy
//     hint. The model is instructed to reason first and finish with the
//     plan marker plus a JSON task array.
//  2. Plan extraction: marker scan, then the three-tier parse of plan.go,
//     then shape validation. Absent markers and malformed plans are normal
//     outcomes that append a fixed notice to the planning text; they are
//     never errors.
//  3. Dispatch and aggregation: tasks run sequentially in plan order. A task
//     with missing fields, a profile outside the manager's available set, or
//     a failing invocation becomes an error result; it never aborts the
//     remaining tasks. The reply is the planning text, the optional thinking
//     trace, and the per-task results section.
//
// Only the aggregated reply reaches session history; intermediate planning
// and specialist turns are not separately persisted.
type ManagerAgent struct {
	baseAgent
	model        model.Model
	available    map[string]struct{}
	roster       []Specialist
	strategy     string
	showThinking bool
	dispatch     DispatchFunc
	logger       logging.Logger
}

// NewManagerAgent builds the delegating variant for a profile. The roster
// holds the specialists whose personas resolved; the profile's full
// available-agents list stays the authoritative delegation target set even
// where roster resolution failed.
func NewManagerAgent(p core.Profile, m model.Model, roster []Specialist, dispatch DispatchFunc, logger logging.Logger) *ManagerAgent {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	if dispatch == nil {
		dispatch = func(context.Context, string, string) (string, error) {
			return "", errors.New("no dispatcher configured")
		}
	}
	persona := p.Persona
	if persona == "" {
		persona = defaultManagerPersona
	}

	available := make(map[string]struct{}, len(p.AvailableAgents))
	for _, name := range p.AvailableAgents {
		available[name] = struct{}{}
	}

	return &ManagerAgent{
		baseAgent:    baseAgent{name: p.Name, kind: core.KindManager, persona: persona},
		model:        m,
		available:    available,
		roster:       roster,
		strategy:     p.DelegationStrategy,
		showThinking: p.ShowThinking,
		dispatch:     dispatch,
		logger:       logger,
	}
}

// Respond implements Agent: one planning generation followed by the
// delegation protocol over its output.
func (a *ManagerAgent) Respond(ctx context.Context, input string, history []core.Message) (string, error) {
	resp, err := a.model.Generate(ctx, model.Request{
		Messages: buildTurns(a.systemPrompt(), history, "", input),
	})
	if err != nil {
		return "", fmt.Errorf("generate plan: %w", err)
	}
	return a.delegate(ctx, resp.Text), nil
}

// systemPrompt renders the persona plus the orchestrator briefing.
func (a *ManagerAgent) systemPrompt() string {
	rosterText := "No agent profiles available"
	if len(a.roster) > 0 {
		lines := make([]string, 0, len(a.roster))
		for _, s := range a.roster {
			persona := s.Persona
			if persona == "" {
				persona = "No persona information available"
			}
			lines = append(lines, fmt.Sprintf("- %s: %s", s.Name, persona))
		}
		rosterText = strings.Join(lines, "\n")
	}

	strategy := a.strategy
	if strategy == "" {
		strategy = "automatic"
	}

	return a.persona + "\n\n" + fmt.Sprintf(planningInstructions, rosterText, strategy)
}

// delegate runs phases 2 and 3 over the planning text: extract and validate
// the plan, dispatch every task, aggregate the outcomes. All plan-level
// failures return the planning text plus a notice instead of an error.
func (a *ManagerAgent) delegate(ctx context.Context, planning string) string {
	_, tail, found := strings.Cut(planning, planMarker)
	if !found || strings.TrimSpace(tail) == "" {
		return planning + "\n\n" + noticeNoTasks
	}

	parsed, ok := parsePlan(tail)
	if !ok {
		return planning + "\n\n" + noticeBadPlan
	}

	entries, ok := parsed.([]any)
	if !ok {
		return planning + "\n\n" + noticeNotAList
	}

	results, thinking := a.dispatchAll(ctx, entries)
	return a.aggregate(planning, results, thinking)
}

// dispatchAll validates and dispatches every plan entry sequentially,
// preserving plan order. One failing task never aborts its siblings.
func (a *ManagerAgent) dispatchAll(ctx context.Context, entries []any) ([]DelegationResult, string) {
	results := make([]DelegationResult, 0, len(entries))

	var thinking strings.Builder
	for i, entry := range entries {
		item := taskFromPlanEntry(entry)

		if a.showThinking {
			taskLabel := item.Task
			if taskLabel == "" {
				taskLabel = "Unnamed task"
			}
			profileLabel := item.Profile
			if profileLabel == "" {
				profileLabel = "default"
			}
			fmt.Fprintf(&thinking, "\n\n## Task %d: %s\nDelegating to agent profile: %s\n", i+1, taskLabel, profileLabel)
		}

		switch {
		case item.Task == "" || item.Profile == "":
			task := item.Task
			if task == "" {
				task = "Undefined task"
			}
			results = append(results, DelegationResult{
				Task:    task,
				Profile: item.Profile,
				Status:  StatusError,
				Result:  resultMissingFields,
			})

		case !a.isAvailable(item.Profile):
			results = append(results, DelegationResult{
				Task:    item.Task,
				Profile: item.Profile,
				Status:  StatusError,
				Result:  fmt.Sprintf("Agent profile '%s' is not available to this manager", item.Profile),
			})

		default:
			a.logger.Info("delegating task", "manager", a.name, "profile", item.Profile)

			text, err := a.dispatch(ctx, item.Profile, item.Task)
			if err != nil {
				a.logger.Error("task delegation failed", "manager", a.name, "profile", item.Profile, "error", err)
				results = append(results, DelegationResult{
					Task:    item.Task,
					Profile: item.Profile,
					Status:  StatusError,
					Result:  fmt.Sprintf("Error: %s", err.Error()),
				})
				continue
			}

			text = strings.TrimSpace(text)
			if a.showThinking {
				fmt.Fprintf(&thinking, "Response: %s\n", text)
			}
			results = append(results, DelegationResult{
				Task:    item.Task,
				Profile: item.Profile,
				Status:  StatusSuccess,
				Result:  text,
			})
		}
	}

	return results, thinking.String()
}

// isAvailable reports whether a profile is a legal delegation target. The
// check runs against the configured available-agents set, never the resolved
// roster.
func (a *ManagerAgent) isAvailable(profile string) bool {
	_, ok := a.available[profile]
	return ok
}

// aggregate renders the final reply: planning text, optional thinking trace,
// then the per-task results in plan order.
func (a *ManagerAgent) aggregate(planning string, results []DelegationResult, thinking string) string {
	var out strings.Builder
	out.WriteString(planning)

	if a.showThinking && thinking != "" {
		out.WriteString("\n\n# Thinking Process\n")
		out.WriteString(thinking)
	}

	out.WriteString("\n\n# Task Results\n")
	for i, r := range results {
		fmt.Fprintf(&out, "\n## Task %d: %s\nAgent: %s\nStatus: %s\nResult: %s\n", i+1, r.Task, r.Profile, r.Status, r.Result)
	}
	return out.String()
}
