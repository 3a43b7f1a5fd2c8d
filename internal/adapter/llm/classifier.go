package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/atlasbank/mailtriage/internal/core/ports"
)

// OpenAIClassifier classifies emails through any OpenAI-compatible
// chat-completions endpoint (OpenAI itself, or a LiteLLM-style proxy).
type OpenAIClassifier struct {
	apiURL  string
	apiKey  string
	model   string
	client  *ResilientClient
	enabled bool
}

// NewOpenAIClassifier creates a classifier backed by an OpenAI-compatible API.
func NewOpenAIClassifier(apiURL, apiKey, model string, timeout time.Duration, resilience ResilientClientConfig, enabled bool) *OpenAIClassifier {
	client := NewResilientClient(timeout, resilience)

	return &OpenAIClassifier{
		apiURL:  apiURL,
		apiKey:  apiKey,
		model:   model,
		client:  client,
		enabled: enabled && apiKey != "",
	}
}

// IsEnabled returns whether classification is enabled
func (c *OpenAIClassifier) IsEnabled() bool {
	return c.enabled
}

// Classify analyzes one email and returns its structured classification.
func (c *OpenAIClassifier) Classify(ctx context.Context, email ports.EmailContext) (*ports.Classification, error) {
	timer := StartTimer()
	defer timer.ObserveDuration()

	if !c.enabled {
		RecordClassificationRequest("skipped", "disabled")
		return nil, fmt.Errorf("email classification is not enabled")
	}

	prompt := buildPrompt(email)

	response, err := c.callLLM(ctx, prompt)
	if err != nil {
		RecordClassificationRequest("error", "llm")
		if strings.Contains(err.Error(), "timeout") || strings.Contains(err.Error(), "deadline exceeded") {
			RecordError("timeout")
		} else if strings.Contains(err.Error(), "circuit breaker") {
			RecordError("circuit_open")
		} else if strings.Contains(err.Error(), "401") || strings.Contains(err.Error(), "403") {
			RecordError("auth")
		}
		return nil, fmt.Errorf("failed to call LLM: %w", err)
	}

	payload, err := parseClassification(response)
	if err != nil {
		RecordClassificationRequest("error", "parse")
		RecordError("parse")
		return nil, fmt.Errorf("failed to parse LLM response: %w", err)
	}

	RecordClassificationRequest("success", "llm")

	return normalizeClassification(payload, email, c.model), nil
}

func (c *OpenAIClassifier) callLLM(ctx context.Context, prompt string) (string, error) {
	// Build request body
	requestBody := map[string]interface{}{
		"model": c.model,
		"messages": []map[string]string{
			{
				"role":    "system",
				"content": systemInstruction,
			},
			{
				"role":    "user",
				"content": prompt,
			},
		},
		"temperature": 0.0, // Deterministic output at the classification boundary
		"max_tokens":  1500,
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	// Create request
	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	// Send request
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("LLM API error (status %d): %s", resp.StatusCode, string(body))
	}

	// Parse response
	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices in LLM response")
	}

	return response.Choices[0].Message.Content, nil
}
