package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ferro-labs/survey-coder/providers"
)

// compatibleEndpoints are OpenAI-protocol backends enabled by an API key.
var compatibleEndpoints = []struct {
	envKey  string
	name    string
	baseURL string
}{
	{"GROQ_API_KEY", "groq", "https://api.groq.com/openai/v1"},
	{"DEEPSEEK_API_KEY", "deepseek", "https://api.deepseek.com/v1"},
	{"TOGETHER_API_KEY", "together", "https://api.together.xyz/v1"},
}

// registerProviders creates a provider for every backend whose environment
// variables are set.
func registerProviders(ctx context.Context, registry *providers.Registry, getenv func(string) string) error {
	if key := getenv("OPENAI_API_KEY"); key != "" {
		p, err := providers.NewOpenAI(key, getenv("OPENAI_BASE_URL"))
		if err != nil {
			return fmt.Errorf("openai provider: %w", err)
		}
		registry.Register(p)
	}
	for _, ce := range compatibleEndpoints {
		if key := getenv(ce.envKey); key != "" {
			p, err := providers.NewOpenAICompatible(ce.name, key, ce.baseURL, nil)
			if err != nil {
				return fmt.Errorf("%s provider: %w", ce.name, err)
			}
			registry.Register(p)
		}
	}
	if key := getenv("ANTHROPIC_API_KEY"); key != "" {
		p, err := providers.NewAnthropic(key, getenv("ANTHROPIC_BASE_URL"))
		if err != nil {
			return fmt.Errorf("anthropic provider: %w", err)
		}
		registry.Register(p)
	}
	if key := getenv("GEMINI_API_KEY"); key != "" {
		p, err := providers.NewGemini(ctx, key)
		if err != nil {
			return fmt.Errorf("gemini provider: %w", err)
		}
		registry.Register(p)
	}
	if enabled := strings.ToLower(getenv("BEDROCK_ENABLED")); enabled == "1" || enabled == "true" {
		p, err := providers.NewBedrock(ctx, getenv("AWS_REGION"))
		if err != nil {
			return fmt.Errorf("bedrock provider: %w", err)
		}
		registry.Register(p)
	}
	// Ollama is local and needs no API key.
	if host := getenv("OLLAMA_HOST"); host != "" {
		var models []string
		if m := getenv("OLLAMA_MODELS"); m != "" {
			models = strings.Split(m, ",")
		}
		p, err := providers.NewOllama(host, models)
		if err != nil {
			return fmt.Errorf("ollama provider: %w", err)
		}
		registry.Register(p)
	}

	for _, name := range registry.List() {
		slog.Info("provider registered", "provider", name)
	}
	return nil
}
