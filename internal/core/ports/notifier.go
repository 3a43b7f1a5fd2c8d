package ports

// Notifier defines the interface for surfacing routing outcomes to operators
type Notifier interface {
	// NotifyAgentReview alerts the agent queue channel that an email needs a human
	NotifyAgentReview(review AgentReviewNotification) error
}

// Notification data structures

type AgentReviewNotification struct {
	ContactID         string
	CustomerName      string
	Category          string
	Intent            string
	Score             int
	Threshold         int
	Explanation       string
	SuggestedResponse string
}
