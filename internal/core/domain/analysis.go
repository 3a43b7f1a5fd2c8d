package domain

import "time"

// EmailAnalysis is the persisted record of one analyzed email: what the
// classifier saw, what the scorer computed, and where the router sent it.
// Rows expire after a retention window, mirroring short-lived staging storage
// that the agent workflow reads back by contact id.
type EmailAnalysis struct {
	ContactID         string    // Contact id from the inbound channel, generated when absent
	CustomerName      string    // Resolved profile name, or "Valued Customer"
	Category          string    // Business category (Credit_Cards, Insurance, ...)
	Intent            string    // Classifier's summary of what the customer wants
	Score             int       // Confidence score, 0-100
	Explanation       string    // Scoring derivation plus classifier reasoning
	SuggestedResponse string    // Draft reply for auto-send or agent editing
	Outcome           Outcome   // auto_respond or agent_review
	ModelUsed         string    // Which model produced the classification
	AnalyzedAt        time.Time // When the analysis completed
	ExpiresAt         time.Time // Retention cutoff; purged after this
}
