package synthesis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"catalog-adaptation-service/internal/providers"
)

const promptTemplate = `You are a product catalog specialist preparing listings for the %s marketplace.
Fill in the missing attributes of the product below.

Rules:
- Reply with a single JSON object keyed by attribute name.
- Only include the attributes listed in missingFieldSpecs.
- Respect each attribute's type and validation (maxLength, enum, min, max).
- Do not invent prices, sizes or SKUs.

Input:
%s`

// ErrNoJSONObject is returned when a provider reply contains no JSON object
var ErrNoJSONObject = errors.New("no JSON object in provider reply")

// LLMGenerator asks an LLM provider for the missing attribute values
type LLMGenerator struct {
	provider    providers.Provider
	model       string
	temperature float64
	rateLimiter *rate.Limiter
}

// NewLLMGenerator creates a generator backed by an LLM provider.
// requestsPerSecond <= 0 disables rate limiting.
func NewLLMGenerator(provider providers.Provider, model string, temperature float64, requestsPerSecond float64) *LLMGenerator {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &LLMGenerator{
		provider:    provider,
		model:       model,
		temperature: temperature,
		rateLimiter: rate.NewLimiter(limit, 1),
	}
}

var _ ContentGenerator = (*LLMGenerator)(nil)

// Generate implements ContentGenerator
func (g *LLMGenerator) Generate(ctx context.Context, req GenerationRequest) (map[string]interface{}, error) {
	if len(req.MissingFieldSpecs) == 0 {
		return map[string]interface{}{}, nil
	}

	if err := g.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	prompt, err := BuildPrompt(req)
	if err != nil {
		return nil, err
	}

	reply, err := g.provider.GenerateText(ctx, providers.Config{
		Model:       g.model,
		Temperature: g.temperature,
		Prompt:      prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	values, err := ExtractJSONObject(reply)
	if err != nil {
		return nil, err
	}

	// Keep only the requested attributes
	out := make(map[string]interface{}, len(req.MissingFieldSpecs))
	for _, def := range req.MissingFieldSpecs {
		if v, ok := values[def.Name]; ok && v != nil {
			out[def.Name] = conform(v, def)
		}
	}
	return out, nil
}

// BuildPrompt renders the generation request as an LLM prompt
func BuildPrompt(req GenerationRequest) (string, error) {
	payload, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal generation request: %w", err)
	}
	return fmt.Sprintf(promptTemplate, req.MarketplaceKey, string(payload)), nil
}

// ExtractJSONObject decodes the first JSON object found in an LLM reply.
// Markdown code fences and surrounding prose are ignored.
func ExtractJSONObject(reply string) (map[string]interface{}, error) {
	start := strings.Index(reply, "{")
	if start < 0 {
		return nil, ErrNoJSONObject
	}

	var out map[string]interface{}
	dec := json.NewDecoder(strings.NewReader(reply[start:]))
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoJSONObject, err)
	}
	return out, nil
}
