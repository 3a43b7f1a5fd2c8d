package domain

import "fmt"

// Outcome is where a scored email goes next.
type Outcome string

const (
	AutoRespond Outcome = "auto_respond"
	AgentReview Outcome = "agent_review"
)

// RoutingDecision pairs the threshold in force with the outcome it produced.
type RoutingDecision struct {
	Threshold int     `json:"threshold"`
	Outcome   Outcome `json:"outcome"`
}

// InvalidThresholdError reports a routing threshold outside [0, 100].
// A deployment configuration error, fatal to the call.
type InvalidThresholdError struct {
	Threshold int
}

func (e *InvalidThresholdError) Error() string {
	return fmt.Sprintf("routing threshold %d outside valid range [%d, %d]", e.Threshold, MinScore, PerfectScore)
}

// Route decides between auto-response and agent review. The comparison is
// inclusive on the high side: a score exactly at the threshold auto-responds.
func Route(result *ScoreResult, threshold int) (RoutingDecision, error) {
	if threshold < MinScore || threshold > PerfectScore {
		return RoutingDecision{}, &InvalidThresholdError{Threshold: threshold}
	}

	outcome := AgentReview
	if result.Score >= threshold {
		outcome = AutoRespond
	}

	return RoutingDecision{Threshold: threshold, Outcome: outcome}, nil
}
