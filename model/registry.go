package model

import (
	"sync"
)

// Registry maps semantic capabilities to model endpoints. Each capability
// carries an ordered preference list plus fallbacks; the generation client
// walks that chain and consults the per-endpoint circuit breaker on the way.
type Registry struct {
	mu           sync.RWMutex
	capabilities map[Capability]*CapabilityConfig
	endpoints    map[string]*EndpointConfig
	defaultModel string
	health       *healthState
}

// CapabilityConfig is the model preference order for one capability.
type CapabilityConfig struct {
	// Description explains what this capability is for.
	Description string `yaml:"description" json:"description"`

	// Preferred lists models in preference order.
	Preferred []string `yaml:"preferred" json:"preferred"`

	// Fallback lists backup models tried after every preferred one fails.
	Fallback []string `yaml:"fallback" json:"fallback"`
}

// EndpointConfig describes where and how to reach one model.
type EndpointConfig struct {
	// Provider names the adapter: anthropic, openai, or ollama.
	Provider string `yaml:"provider" json:"provider"`

	// URL is the API base URL. Empty uses the provider's default.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`

	// Model is the identifier sent to the provider.
	Model string `yaml:"model" json:"model"`

	// MaxTokens is the context window size.
	MaxTokens int `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
}

// NewRegistry builds a registry from explicit configuration.
func NewRegistry(caps map[Capability]*CapabilityConfig, endpoints map[string]*EndpointConfig, defaultModel string) *Registry {
	if defaultModel == "" {
		defaultModel = "default"
	}
	return &Registry{
		capabilities: caps,
		endpoints:    endpoints,
		defaultModel: defaultModel,
	}
}

// NewDefaultRegistry builds the registry used when nothing is configured:
// hosted Claude models preferred, local ollama models as fallback.
func NewDefaultRegistry() *Registry {
	return &Registry{
		capabilities: map[Capability]*CapabilityConfig{
			CapabilityPlanning: {
				Description: "High-level reasoning, architecture decisions",
				Preferred:   []string{"claude-opus", "claude-sonnet"},
				Fallback:    []string{"qwen"},
			},
			CapabilityWriting: {
				Description: "Documentation, requirements, specifications",
				Preferred:   []string{"claude-sonnet"},
				Fallback:    []string{"claude-haiku", "qwen"},
			},
			CapabilityCoding: {
				Description: "Code generation, implementation",
				Preferred:   []string{"claude-sonnet"},
				Fallback:    []string{"codellama", "qwen"},
			},
			CapabilityReviewing: {
				Description: "Code review, quality analysis",
				Preferred:   []string{"claude-sonnet"},
				Fallback:    []string{"claude-haiku", "qwen"},
			},
			CapabilityFast: {
				Description: "Quick responses, simple tasks",
				Preferred:   []string{"claude-haiku"},
				Fallback:    []string{"qwen"},
			},
		},
		endpoints: map[string]*EndpointConfig{
			"claude-opus": {
				Provider:  "anthropic",
				Model:     "claude-opus-4-5-20251101",
				MaxTokens: 200000,
			},
			"claude-sonnet": {
				Provider:  "anthropic",
				Model:     "claude-sonnet-4-20250514",
				MaxTokens: 200000,
			},
			"claude-haiku": {
				Provider:  "anthropic",
				Model:     "claude-haiku-3-5-20241022",
				MaxTokens: 200000,
			},
			"qwen": {
				Provider:  "ollama",
				URL:       "http://localhost:11434/v1",
				Model:     "qwen2.5-coder:14b",
				MaxTokens: 128000,
			},
			"codellama": {
				Provider:  "ollama",
				URL:       "http://localhost:11434/v1",
				Model:     "codellama",
				MaxTokens: 16384,
			},
		},
		defaultModel: "qwen",
	}
}

// Resolve returns the first-choice model for a capability. Fallbacks are
// the client's concern, via GetFallbackChain.
func (r *Registry) Resolve(cap Capability) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.capabilities[cap]
	if !ok || len(cfg.Preferred) == 0 {
		return r.defaultModel
	}
	return cfg.Preferred[0]
}

// GetFallbackChain returns every model for a capability, preferred first,
// then fallbacks. Unknown capabilities get the default model alone.
func (r *Registry) GetFallbackChain(cap Capability) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.capabilities[cap]
	if !ok {
		return []string{r.defaultModel}
	}
	chain := make([]string, 0, len(cfg.Preferred)+len(cfg.Fallback))
	chain = append(chain, cfg.Preferred...)
	return append(chain, cfg.Fallback...)
}

// ForRole resolves the model for an agent role's default capability.
func (r *Registry) ForRole(role string) string {
	return r.Resolve(CapabilityForRole(role))
}

// GetEndpoint returns the endpoint for a model name, or nil when the model
// is not configured.
func (r *Registry) GetEndpoint(modelName string) *EndpointConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.endpoints[modelName]
}

// SetCapability adds or replaces a capability's preference list.
func (r *Registry) SetCapability(cap Capability, cfg *CapabilityConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.capabilities == nil {
		r.capabilities = make(map[Capability]*CapabilityConfig)
	}
	r.capabilities[cap] = cfg
}

// SetEndpoint adds or replaces a model endpoint.
func (r *Registry) SetEndpoint(name string, cfg *EndpointConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.endpoints == nil {
		r.endpoints = make(map[string]*EndpointConfig)
	}
	r.endpoints[name] = cfg
}

// SetDefault sets the model used for unknown capabilities.
func (r *Registry) SetDefault(model string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultModel = model
}

// ListCapabilities returns the configured capabilities, unordered.
func (r *Registry) ListCapabilities() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var caps []Capability
	for c := range r.capabilities {
		caps = append(caps, c)
	}
	return caps
}

// ListEndpoints returns the configured endpoint names, unordered.
func (r *Registry) ListEndpoints() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for n := range r.endpoints {
		names = append(names, n)
	}
	return names
}
