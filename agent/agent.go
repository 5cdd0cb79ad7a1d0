package agent

import (
	"context"

	"github.com/hupe1980/agentcrew/core"
)

// Agent is one runnable behavior variant bound to a profile. Respond turns a
// user input plus the prior history into the agent's reply text; the history
// slice is read-only for implementations and persistence stays with the
// caller.
type Agent interface {
	// Name returns the bound profile name.
	Name() string
	// Kind reports which behavior variant this agent implements.
	Kind() core.AgentKind
	// Respond produces the reply for input given the session history so far.
	Respond(ctx context.Context, input string, history []core.Message) (string, error)
}

// baseAgent carries the identity shared by all variants.
type baseAgent struct {
	name    string
	kind    core.AgentKind
	persona string
}

func (b *baseAgent) Name() string { return b.name }

func (b *baseAgent) Kind() core.AgentKind { return b.kind }

// buildTurns assembles the invocation turn list: persona as the leading
// system turn, history verbatim, an optional extra system turn, then the
// input as the final user turn.
func buildTurns(persona string, history []core.Message, extra, input string) []core.Message {
	turns := make([]core.Message, 0, len(history)+3)
	if persona != "" {
		turns = append(turns, core.SystemMessage(persona))
	}
	turns = append(turns, history...)
	if extra != "" {
		turns = append(turns, core.SystemMessage(extra))
	}
	return append(turns, core.UserMessage(input))
}
