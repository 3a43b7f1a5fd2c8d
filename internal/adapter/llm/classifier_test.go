package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/atlasbank/mailtriage/internal/core/ports"
)

func TestBuildPrompt(t *testing.T) {
	creditScore := 720
	email := ports.EmailContext{
		ContactID:        "contact-1",
		CustomerName:     "Maria Silva",
		Subject:          "Blocked card",
		Body:             "My card stopped working yesterday and I need it urgently.",
		CreditScore:      &creditScore,
		SpendingProfile:  "High",
		ServiceLevel:     "Premium",
		KnowledgeResults: "Cards can be unblocked in the app under Settings.",
	}

	prompt := buildPrompt(email)

	for _, want := range []string{
		"**Subject:** Blocked card",
		"My card stopped working yesterday",
		"Cards can be unblocked in the app",
		"**Customer name:** Maria Silva",
		"- Credit score: 720",
		"- Spending profile: High",
		"- Service level: Premium",
		"missing_knowledge",
		"unclear_info",
		"premium_complaint",
		"angry_tone",
		"urgency",
		"additional_topics",
		"Credit_Cards|Insurance|Loan_Mortgage|Online_Banking|Investment|Payment|General_Inquiry",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Prompt missing %q", want)
		}
	}
}

func TestBuildPromptDefaults(t *testing.T) {
	prompt := buildPrompt(ports.EmailContext{Body: "Hello"})

	if !strings.Contains(prompt, "No relevant information found in the knowledge base.") {
		t.Error("Expected knowledge-base placeholder for empty results")
	}
	if !strings.Contains(prompt, "**Customer name:** Valued Customer") {
		t.Error("Expected placeholder customer name")
	}
	if strings.Contains(prompt, "Credit score:") {
		t.Error("Credit score line should be omitted when absent")
	}
}

func TestParseClassification(t *testing.T) {
	valid := `{"factors": {"urgency": 1, "additional_topics": 0}, "reasoning": "time pressure", "intent": "Unblock card", "category": "Credit_Cards", "suggested_response": "Dear Maria,"}`

	tests := []struct {
		name     string
		response string
		wantErr  bool
	}{
		{"Plain JSON", valid, false},
		{"Markdown json fence", "```json\n" + valid + "\n```", false},
		{"Bare markdown fence", "```\n" + valid + "\n```", false},
		{"Fence with surrounding prose", "Here is the analysis:\n```json\n" + valid + "\n```\nLet me know.", false},
		{"Invalid JSON", "{not json at all", true},
		{"Empty response", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := parseClassification(tt.response)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseClassification() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if payload.Factors["urgency"] != 1 {
				t.Errorf("Expected urgency factor 1, got %d", payload.Factors["urgency"])
			}
			if payload.Category != "Credit_Cards" {
				t.Errorf("Expected category Credit_Cards, got %s", payload.Category)
			}
		})
	}
}

func TestClassifyDisabled(t *testing.T) {
	classifier := NewOpenAIClassifier("http://unused", "", "gpt-4o-mini", 5*time.Second, DefaultResilientClientConfig(), true)

	if classifier.IsEnabled() {
		t.Error("Classifier with no API key should be disabled")
	}

	_, err := classifier.Classify(context.Background(), ports.EmailContext{Body: "hello"})
	if err == nil {
		t.Fatal("Expected error from disabled classifier")
	}
}

func TestClassifySuccess(t *testing.T) {
	modelAnswer := "```json\n" + `{
		"factors": {"missing_knowledge": 0, "unclear_info": 0, "premium_complaint": 1, "angry_tone": 1, "urgency": 1, "additional_topics": 0},
		"reasoning": "Premium customer with a complaint, frustrated tone, explicit urgency",
		"intent": "Unblock credit card",
		"category": "Credit_Cards",
		"suggested_response": "Dear Valued Customer,\n\nWe are unblocking your card now."
	}` + "\n```"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected JSON content type, got %s", ct)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Expected bearer auth, got %s", auth)
		}

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("Failed to decode request body: %v", err)
		}
		if body.Model != "gpt-4o-mini" {
			t.Errorf("Expected model gpt-4o-mini, got %s", body.Model)
		}
		if len(body.Messages) != 2 || body.Messages[0].Role != "system" {
			t.Errorf("Expected system + user messages, got %+v", body.Messages)
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": modelAnswer}},
			},
		})
	}))
	defer server.Close()

	classifier := NewOpenAIClassifier(server.URL, "test-key", "gpt-4o-mini", 5*time.Second, DefaultResilientClientConfig(), true)

	classification, err := classifier.Classify(context.Background(), ports.EmailContext{
		ContactID:    "contact-1",
		CustomerName: "Maria Silva",
		Body:         "My card is blocked, I pay for Premium and I am very angry. Fix this today.",
		ServiceLevel: "Premium",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !classification.Factors["premium_complaint"] || !classification.Factors["angry_tone"] || !classification.Factors["urgency"] {
		t.Errorf("Expected triggered factors, got %v", classification.Factors)
	}
	if classification.Factors["missing_knowledge"] {
		t.Error("Expected missing_knowledge untriggered")
	}
	if classification.TopicCount != 1 {
		t.Errorf("Expected topic count 1, got %d", classification.TopicCount)
	}
	if classification.Category != "Credit_Cards" {
		t.Errorf("Expected category Credit_Cards, got %s", classification.Category)
	}
	if classification.Model != "gpt-4o-mini" {
		t.Errorf("Expected model gpt-4o-mini, got %s", classification.Model)
	}
	if !strings.Contains(classification.SuggestedResponse, "Dear Maria Silva,") {
		t.Errorf("Expected personalized greeting, got %q", classification.SuggestedResponse)
	}
}

func TestClassifyMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "I cannot produce JSON today."}},
			},
		})
	}))
	defer server.Close()

	classifier := NewOpenAIClassifier(server.URL, "test-key", "gpt-4o-mini", 5*time.Second, DefaultResilientClientConfig(), true)

	_, err := classifier.Classify(context.Background(), ports.EmailContext{Body: "hello"})
	if err == nil {
		t.Fatal("Expected parse error for non-JSON model output")
	}
	if !strings.Contains(err.Error(), "parse") {
		t.Errorf("Expected parse error, got: %v", err)
	}
}

func TestClassifyServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	classifier := NewOpenAIClassifier(server.URL, "bad-key", "gpt-4o-mini", 5*time.Second, DefaultResilientClientConfig(), true)

	_, err := classifier.Classify(context.Background(), ports.EmailContext{Body: "hello"})
	if err == nil {
		t.Fatal("Expected error for 401 response")
	}
}

func TestClassifyEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	}))
	defer server.Close()

	classifier := NewOpenAIClassifier(server.URL, "test-key", "gpt-4o-mini", 5*time.Second, DefaultResilientClientConfig(), true)

	_, err := classifier.Classify(context.Background(), ports.EmailContext{Body: "hello"})
	if err == nil {
		t.Fatal("Expected error for empty choices")
	}
	if !strings.Contains(err.Error(), "no choices") {
		t.Errorf("Expected 'no choices' error, got: %v", err)
	}
}
