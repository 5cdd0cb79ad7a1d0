package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/model"
)

// retrievalFailureContext stands in for retrieved passages when the index
// cannot be queried; the turn proceeds instead of failing.
const retrievalFailureContext = "error retrieving context"

// contextPreamble introduces retrieved passages to the model.
const contextPreamble = "Use the following context to help answer the question:\n\n"

// RetrievalAgent augments the conversational flow with passages fetched from
// a document index. The top-k passages matching the input are joined with
// blank lines and injected as a system turn between the history and the user
// turn.
type RetrievalAgent struct {
	baseAgent
	model      model.Model
	retriever  core.Retriever
	collection string
	topK       int
	logger     logging.Logger
}

// NewRetrievalAgent builds the retrieval-augmented variant for a profile.
// A nil retriever is tolerated and behaves like an index that always fails.
func NewRetrievalAgent(p core.Profile, m model.Model, retriever core.Retriever, logger logging.Logger) *RetrievalAgent {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	persona := p.Persona
	if persona == "" {
		persona = defaultPersona
	}
	return &RetrievalAgent{
		baseAgent:  baseAgent{name: p.Name, kind: core.KindRetrievalAugmented, persona: persona},
		model:      m,
		retriever:  retriever,
		collection: p.Retrieval.Collection,
		topK:       p.TopK(),
		logger:     logger,
	}
}

// Respond implements Agent. Retrieval failures degrade to a placeholder
// context rather than failing the turn.
func (a *RetrievalAgent) Respond(ctx context.Context, input string, history []core.Message) (string, error) {
	resp, err := a.model.Generate(ctx, model.Request{
		Messages: buildTurns(a.persona, history, contextPreamble+a.retrieveContext(ctx, input), input),
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// retrieveContext queries the index and joins the passage texts with blank
// lines. Any failure yields the placeholder context.
func (a *RetrievalAgent) retrieveContext(ctx context.Context, input string) string {
	if a.retriever == nil {
		a.logger.Warn("no retriever configured", "profile", a.name)
		return retrievalFailureContext
	}

	passages, err := a.retriever.Query(ctx, a.collection, input, a.topK)
	if err != nil {
		a.logger.Warn("context retrieval failed", "profile", a.name, "collection", a.collection, "error", err)
		return retrievalFailureContext
	}

	parts := make([]string, 0, len(passages))
	for _, p := range passages {
		parts = append(parts, p.Content)
	}
	return strings.Join(parts, "\n\n")
}
