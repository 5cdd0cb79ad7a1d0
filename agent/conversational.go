package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/model"
)

// defaultPersona backs profiles that carry no persona text.
const defaultPersona = "You are a helpful assistant."

// ConversationalAgent answers directly from persona, history and input with
// a single model call.
type ConversationalAgent struct {
	baseAgent
	model  model.Model
	logger logging.Logger
}

// NewConversationalAgent builds the plain conversation variant for a profile.
func NewConversationalAgent(p core.Profile, m model.Model, logger logging.Logger) *ConversationalAgent {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	persona := p.Persona
	if persona == "" {
		persona = defaultPersona
	}
	return &ConversationalAgent{
		baseAgent: baseAgent{name: p.Name, kind: core.KindConversational, persona: persona},
		model:     m,
		logger:    logger,
	}
}

// Respond implements Agent with one generation call. The reply is trimmed of
// surrounding whitespace.
func (a *ConversationalAgent) Respond(ctx context.Context, input string, history []core.Message) (string, error) {
	resp, err := a.model.Generate(ctx, model.Request{
		Messages: buildTurns(a.persona, history, "", input),
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
