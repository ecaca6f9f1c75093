// ABOUTME: Builds a mux LLM client from a provider name or from API keys in the environment.
// ABOUTME: An OpenAI base URL switches to the chat completions client for compatible services.
package generate

import (
	"context"
	"fmt"
	"os"
	"strings"

	muxllm "github.com/2389-research/mux/llm"
)

// ProviderConfig selects and configures an LLM provider.
type ProviderConfig struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

var providerKeys = []struct {
	name   string
	envVar string
}{
	{"anthropic", "ANTHROPIC_API_KEY"},
	{"openai", "OPENAI_API_KEY"},
	{"gemini", "GEMINI_API_KEY"},
}

// ResolveProvider fills in the provider and key from getenv when they are
// empty. Providers are tried in the order anthropic, openai, gemini.
func ResolveProvider(cfg ProviderConfig, getenv func(string) string) (ProviderConfig, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.Provider == "" {
		for _, p := range providerKeys {
			if getenv(p.envVar) != "" {
				cfg.Provider = p.name
				break
			}
		}
	}
	if cfg.Provider == "" {
		return cfg, fmt.Errorf("no LLM provider configured: set one of ANTHROPIC_API_KEY, OPENAI_API_KEY, GEMINI_API_KEY")
	}

	found := false
	for _, p := range providerKeys {
		if p.name != cfg.Provider {
			continue
		}
		found = true
		if cfg.APIKey == "" {
			cfg.APIKey = getenv(p.envVar)
		}
		if cfg.APIKey == "" {
			return cfg, fmt.Errorf("provider %s selected but %s is not set", p.name, p.envVar)
		}
	}
	if !found {
		return cfg, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
	if cfg.Provider == "openai" && cfg.BaseURL == "" {
		cfg.BaseURL = getenv("OPENAI_BASE_URL")
	}
	return cfg, nil
}

// NewClient creates a mux client for a resolved provider config.
func NewClient(ctx context.Context, cfg ProviderConfig) (muxllm.Client, error) {
	switch cfg.Provider {
	case "anthropic":
		return muxllm.NewAnthropicClient(cfg.APIKey, cfg.Model), nil
	case "openai":
		if cfg.BaseURL != "" {
			return NewOpenAICompatClient(cfg.APIKey, cfg.Model, cfg.BaseURL), nil
		}
		return muxllm.NewOpenAIClient(cfg.APIKey, cfg.Model), nil
	case "gemini":
		client, err := muxllm.NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		return client, nil
	}
	return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
}

// ClientFromEnv resolves cfg against the process environment and builds the
// client. The resolved config is returned so callers can log the provider.
func ClientFromEnv(ctx context.Context, cfg ProviderConfig) (muxllm.Client, ProviderConfig, error) {
	resolved, err := ResolveProvider(cfg, os.Getenv)
	if err != nil {
		return nil, cfg, err
	}
	client, err := NewClient(ctx, resolved)
	if err != nil {
		return nil, resolved, err
	}
	return client, resolved, nil
}
