package core

import "fmt"

// AgentKind selects one of the closed set of agent behavior variants.
type AgentKind string

const (
	// KindConversational answers directly from persona + history.
	KindConversational AgentKind = "conversational"
	// KindRetrievalAugmented injects retrieved document context before answering.
	KindRetrievalAugmented AgentKind = "retrieval_augmented"
	// KindManager plans a task decomposition and delegates to specialist profiles.
	KindManager AgentKind = "manager"
)

// ParseAgentKind validates a raw kind string against the closed variant set.
func ParseAgentKind(s string) (AgentKind, error) {
	switch AgentKind(s) {
	case KindConversational, KindRetrievalAugmented, KindManager:
		return AgentKind(s), nil
	default:
		return "", &ConfigError{Reason: fmt.Sprintf("unknown agent kind %q", s)}
	}
}

// ModelConfig carries the invoker settings resolved from a profile. The
// provider selects the backend adapter; the remaining fields are passed
// through to it.
type ModelConfig struct {
	Provider    string  `json:"provider" yaml:"provider"`
	Name        string  `json:"name" yaml:"name"`
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	BaseURL     string  `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIKey      string  `json:"api_key,omitempty" yaml:"api_key,omitempty"`
}

// RetrievalConfig configures the retrieval-augmented variant.
type RetrievalConfig struct {
	// Collection names the document index collection to query.
	Collection string `json:"collection,omitempty" yaml:"collection,omitempty"`
	// TopK is the number of passages to retrieve. Zero means DefaultTopK.
	TopK int `json:"top_k,omitempty" yaml:"top_k,omitempty"`
}

// DefaultTopK is the passage count used when a profile leaves TopK unset.
const DefaultTopK = 4

// Profile is the immutable named configuration an agent is built from.
// Profiles are resolved by name through a ProfileStore and cached; mutation
// happens only through explicit save/delete operations on the registry.
type Profile struct {
	Name      string          `json:"name" yaml:"name"`
	Persona   string          `json:"persona" yaml:"persona"`
	Kind      AgentKind       `json:"agent_type" yaml:"agent_type"`
	Model     ModelConfig     `json:"model_config" yaml:"model_config"`
	Retrieval RetrievalConfig `json:"retrieval,omitempty" yaml:"retrieval,omitempty"`

	// AvailableAgents is the ordered set of specialist profile names a
	// manager may delegate to. Names are validated lazily at dispatch time,
	// not at load time. Meaningless for non-manager kinds.
	AvailableAgents []string `json:"available_agents,omitempty" yaml:"available_agents,omitempty"`
	// DelegationStrategy is a free-form hint surfaced to the planning
	// prompt; the engine does not interpret it.
	DelegationStrategy string `json:"delegation_strategy,omitempty" yaml:"delegation_strategy,omitempty"`
	// ShowThinking appends the intermediate delegation trace to the final
	// aggregated output.
	ShowThinking bool `json:"show_thinking,omitempty" yaml:"show_thinking,omitempty"`
}

// Validate checks the structural invariants a stored profile must satisfy.
func (p Profile) Validate() error {
	if p.Name == "" {
		return &ConfigError{Reason: "profile name must not be empty"}
	}
	if _, err := ParseAgentKind(string(p.Kind)); err != nil {
		return err
	}
	if p.Model.Provider == "" {
		return &ConfigError{Reason: fmt.Sprintf("profile %q has no model provider", p.Name)}
	}
	return nil
}

// TopK returns the effective passage count for the retrieval variant.
func (p Profile) TopK() int {
	if p.Retrieval.TopK > 0 {
		return p.Retrieval.TopK
	}
	return DefaultTopK
}
