package llm

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/atlasbank/mailtriage/internal/core/ports"
)

// AnthropicClassifier classifies emails through the Anthropic Messages API.
// Models are tried in order until one answers, so a newer model can be
// preferred with an older one as fallback.
type AnthropicClassifier struct {
	client  anthropic.Client
	models  []string
	timeout time.Duration
	enabled bool
}

// NewAnthropicClassifier creates a classifier backed by the Anthropic API.
// The fallback list is tried after the primary model, in order.
func NewAnthropicClassifier(apiKey, model string, fallbacks []string, timeout time.Duration, enabled bool) *AnthropicClassifier {
	models := append([]string{model}, fallbacks...)

	return &AnthropicClassifier{
		client:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		models:  models,
		timeout: timeout,
		enabled: enabled && apiKey != "",
	}
}

// IsEnabled returns whether classification is enabled
func (c *AnthropicClassifier) IsEnabled() bool {
	return c.enabled
}

// Classify analyzes one email and returns its structured classification.
func (c *AnthropicClassifier) Classify(ctx context.Context, email ports.EmailContext) (*ports.Classification, error) {
	timer := StartTimer()
	defer timer.ObserveDuration()

	if !c.enabled {
		RecordClassificationRequest("skipped", "disabled")
		return nil, fmt.Errorf("email classification is not enabled")
	}

	prompt := buildPrompt(email)

	var lastErr error
	for _, model := range c.models {
		response, err := c.callModel(ctx, model, prompt)
		if err != nil {
			log.Printf("⚠️  Model %s failed: %v", model, err)
			RecordError("server_error")
			lastErr = err
			continue
		}

		payload, err := parseClassification(response)
		if err != nil {
			RecordClassificationRequest("error", "parse")
			RecordError("parse")
			return nil, fmt.Errorf("failed to parse model response: %w", err)
		}

		RecordClassificationRequest("success", "llm")
		return normalizeClassification(payload, email, model), nil
	}

	RecordClassificationRequest("error", "llm")
	return nil, fmt.Errorf("all model attempts failed: %w", lastErr)
}

func (c *AnthropicClassifier) callModel(ctx context.Context, model, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 1500,
		System: []anthropic.TextBlockParam{
			{Text: systemInstruction},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no text content in model response")
	}

	return sb.String(), nil
}
