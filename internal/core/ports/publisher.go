package ports

import (
	"context"
	"time"
)

// DecisionPublisher delivers routing decisions to the downstream dispatch
// step (auto-response delivery or agent-queue ingestion).
type DecisionPublisher interface {
	PublishDecision(ctx context.Context, event DecisionEvent) error
}

// DecisionEvent is the wire payload for one routing decision.
type DecisionEvent struct {
	ContactID   string    `json:"contact_id"`
	Score       int       `json:"score"`
	Threshold   int       `json:"threshold"`
	Outcome     string    `json:"outcome"`
	Category    string    `json:"category"`
	ModelUsed   string    `json:"model_used"`
	Explanation string    `json:"explanation"`
	DecidedAt   time.Time `json:"decided_at"`
}
