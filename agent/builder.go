package agent

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/model"
	modelanthropic "github.com/hupe1980/agentcrew/model/anthropic"
	modelollama "github.com/hupe1980/agentcrew/model/ollama"
	modelopenai "github.com/hupe1980/agentcrew/model/openai"
)

// ModelFactory turns a profile's model settings into a usable model.
type ModelFactory func(cfg core.ModelConfig) (model.Model, error)

// DefaultModelFactory maps provider names onto the bundled adapters:
// "openai", "anthropic", "ollama" and "local" (any OpenAI-compatible
// endpoint, base URL required). Unknown providers are configuration errors.
// A zero temperature keeps the adapter default of 0.7.
func DefaultModelFactory(cfg core.ModelConfig) (model.Model, error) {
	switch cfg.Provider {
	case "openai":
		return modelopenai.NewModel(openaiOptions(cfg)), nil

	case "anthropic":
		return modelanthropic.NewModel(func(o *modelanthropic.Options) {
			if cfg.Name != "" {
				o.Model = anthropic.Model(cfg.Name)
			}
			if cfg.Temperature > 0 {
				o.Temperature = cfg.Temperature
			}
			o.APIKey = cfg.APIKey
		}), nil

	case "ollama":
		return modelollama.NewModel(func(o *modelollama.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			if cfg.Temperature > 0 {
				o.Temperature = cfg.Temperature
			}
			if cfg.BaseURL != "" {
				o.Endpoint = cfg.BaseURL
			}
		}), nil

	case "local":
		// Same chat-completions wire protocol, self-chosen endpoint.
		if cfg.BaseURL == "" {
			return nil, &core.ConfigError{Reason: `provider "local" requires a base URL`}
		}
		return modelopenai.NewModel(openaiOptions(cfg)), nil

	default:
		return nil, &core.ConfigError{Reason: fmt.Sprintf("unknown model provider %q", cfg.Provider)}
	}
}

func openaiOptions(cfg core.ModelConfig) func(o *modelopenai.Options) {
	return func(o *modelopenai.Options) {
		if cfg.Name != "" {
			o.Model = cfg.Name
		}
		if cfg.Temperature > 0 {
			o.Temperature = cfg.Temperature
		}
		o.APIKey = cfg.APIKey
		o.BaseURL = cfg.BaseURL
	}
}

// BuilderOptions configures optional Builder collaborators.
type BuilderOptions struct {
	// Retriever backs retrieval-augmented profiles. Nil degrades those
	// profiles to the placeholder context.
	Retriever core.Retriever
	// Factory overrides DefaultModelFactory.
	Factory ModelFactory
	// Logger receives construction diagnostics.
	Logger logging.Logger
}

// Builder constructs the runnable variant for a profile. The variant set is
// closed: conversational, retrieval-augmented and manager.
type Builder struct {
	profiles  core.ProfileStore
	dispatch  DispatchFunc
	retriever core.Retriever
	factory   ModelFactory
	logger    logging.Logger
}

// NewBuilder creates a Builder over a profile store. dispatch carries
// delegated tasks for manager agents; it may be nil when no manager profile
// is ever built, in which case delegation degrades to per-task errors.
func NewBuilder(profiles core.ProfileStore, dispatch DispatchFunc, optFns ...func(o *BuilderOptions)) *Builder {
	opts := BuilderOptions{
		Factory: DefaultModelFactory,
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Factory == nil {
		opts.Factory = DefaultModelFactory
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Builder{
		profiles:  profiles,
		dispatch:  dispatch,
		retriever: opts.Retriever,
		factory:   opts.Factory,
		logger:    opts.Logger,
	}
}

// Build validates the profile's kind, constructs its model through the
// factory and returns the matching variant. Manager construction resolves
// each available specialist's persona for the planning roster; specialists
// that cannot be resolved are logged and left off the roster rather than
// failing the build (they stay legal dispatch targets and fail at dispatch
// time instead).
func (b *Builder) Build(ctx context.Context, p core.Profile) (Agent, error) {
	kind, err := core.ParseAgentKind(string(p.Kind))
	if err != nil {
		return nil, err
	}

	m, err := b.factory(p.Model)
	if err != nil {
		return nil, err
	}

	switch kind {
	case core.KindConversational:
		return NewConversationalAgent(p, m, b.logger), nil
	case core.KindRetrievalAugmented:
		return NewRetrievalAgent(p, m, b.retriever, b.logger), nil
	default:
		return NewManagerAgent(p, m, b.resolveRoster(ctx, p), b.dispatch, b.logger), nil
	}
}

// resolveRoster fetches the persona of every available specialist for the
// planning prompt, skipping the ones that do not resolve.
func (b *Builder) resolveRoster(ctx context.Context, p core.Profile) []Specialist {
	roster := make([]Specialist, 0, len(p.AvailableAgents))
	for _, name := range p.AvailableAgents {
		sp, err := b.profiles.Resolve(ctx, name)
		if err != nil {
			b.logger.Warn("specialist unavailable for planning roster", "manager", p.Name, "profile", name, "error", err)
			continue
		}
		roster = append(roster, Specialist{Name: name, Persona: sp.Persona})
	}
	return roster
}
