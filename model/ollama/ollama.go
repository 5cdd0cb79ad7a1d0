// Package ollama provides a model wrapper for a local Ollama server. Ollama
// speaks a plain JSON HTTP API, so the adapter uses net/http directly rather
// than a vendor SDK.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hupe1980/agentcrew/model"
)

// DefaultEndpoint is the standard local Ollama address.
const DefaultEndpoint = "http://localhost:11434"

// Options configures the Ollama model adapter.
type Options struct {
	Endpoint    string
	Model       string
	Temperature float64
	HTTPClient  *http.Client
}

// Model wraps the Ollama chat API behind the generic model.Model interface.
type Model struct {
	opts Options
}

// NewModel creates a new Ollama model.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := Options{
		Endpoint:    DefaultEndpoint,
		Model:       "llama3",
		Temperature: 0.7,
		HTTPClient:  http.DefaultClient,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Model{opts: opts}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Message    chatMessage `json:"message"`
	DoneReason string      `json:"done_reason"`
}

// Generate implements model.Model via a single non-streaming /api/chat call.
// AgentCrew's user/assistant/system roles map onto Ollama's chat roles as-is.
func (m *Model) Generate(ctx context.Context, req model.Request) (*model.Response, error) {
	payload := chatRequest{
		Model:   m.opts.Model,
		Stream:  false,
		Options: map[string]any{"temperature": m.opts.Temperature},
	}
	for _, msg := range req.Messages {
		payload.Messages = append(payload.Messages, chatMessage{Role: string(msg.Role), Content: msg.Text})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.opts.Endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.opts.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama api error: %s", string(respBody))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	finishReason := "stop"
	if result.DoneReason != "" {
		finishReason = result.DoneReason
	}

	return &model.Response{
		Text:         result.Message.Content,
		FinishReason: finishReason,
	}, nil
}

// Info returns metadata describing this Ollama model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:     m.opts.Model,
		Provider: "ollama",
	}
}
