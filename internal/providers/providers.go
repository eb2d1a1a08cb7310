package providers

import (
	"context"
)

// Config represents the configuration for one LLM call
type Config struct {
	Model       string
	Temperature float64
	Prompt      string
}

// Provider defines the interface for an LLM provider
type Provider interface {
	GenerateText(ctx context.Context, config Config) (string, error)
}

// Provider names accepted by CONTENT_PROVIDER
const (
	NameOpenAI = "openai"
	NameGemini = "gemini"
)
