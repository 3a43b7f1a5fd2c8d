package llm

import (
	"log"
	"strings"

	"github.com/atlasbank/mailtriage/internal/core/domain"
	"github.com/atlasbank/mailtriage/internal/core/ports"
)

// The classifier's output boundary must be binary and bounded before the
// scorer sees it. This layer validates and adjusts raw model output the same
// way on every provider path, so a sloppy model answer never reaches scoring.

const fallbackResponse = "Thank you for contacting us. An agent will assist you."

// normalizeClassification converts a raw model payload into a Classification
// the scorer can consume, correcting out-of-range values as it goes.
func normalizeClassification(payload *classificationPayload, email ports.EmailContext, model string) *ports.Classification {
	factors := make(map[string]bool)
	topicCount := 1

	for name, value := range payload.Factors {
		if name == "additional_topics" {
			if value < 0 {
				log.Printf("⚠️  Normalize: negative additional_topics (%d) clamped to 0", value)
				RecordNormalization("topic_count")
				value = 0
			}
			topicCount = value + 1
			continue
		}

		if value != 0 && value != 1 {
			log.Printf("⚠️  Normalize: factor %s value %d clamped to binary", name, value)
			RecordNormalization("factor_value")
		}
		factors[name] = value > 0
	}

	category := normalizeCategory(payload.Category)
	if category != payload.Category {
		RecordNormalization("category")
	}

	suggested := payload.SuggestedResponse
	if strings.TrimSpace(suggested) == "" {
		RecordNormalization("suggested_response")
		suggested = fallbackResponse
	}
	personalized := domain.PersonalizeGreeting(suggested, email.CustomerName)
	if personalized != suggested {
		RecordNormalization("greeting")
	}

	intent := payload.Intent
	if strings.TrimSpace(intent) == "" {
		intent = "General Inquiry"
	}

	return &ports.Classification{
		Factors:           factors,
		TopicCount:        topicCount,
		Intent:            intent,
		Category:          category,
		Reasoning:         payload.Reasoning,
		SuggestedResponse: personalized,
		Model:             model,
	}
}

func normalizeCategory(category string) string {
	category = strings.TrimSpace(category)
	for _, valid := range ValidCategories {
		if strings.EqualFold(category, valid) {
			return valid
		}
	}
	return "General_Inquiry"
}
