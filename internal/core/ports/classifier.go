package ports

import "context"

// Classifier is the upstream language-model classification step. Its internal
// decision process is probabilistic, but its output boundary is binary: a set
// of triggered indicator names plus a topic count, ready for the scorer.
type Classifier interface {
	Classify(ctx context.Context, email EmailContext) (*Classification, error)
	IsEnabled() bool
}

// EmailContext is everything the classifier sees about one inbound email.
// KnowledgeResults is pre-retrieved knowledge-base text supplied by the
// caller; retrieval itself is outside this service.
type EmailContext struct {
	ContactID        string
	CustomerName     string
	Subject          string
	Body             string
	CreditScore      *int
	SpendingProfile  string
	ServiceLevel     string
	AdditionalInfo   string
	KnowledgeResults string
}

// Classification is the classifier's structured verdict for one email.
type Classification struct {
	Factors           map[string]bool // triggered risk indicators, catalog vocabulary
	TopicCount        int             // distinct topics detected, >= 1 for any real email
	Intent            string
	Category          string
	Reasoning         string // classifier's explanation for the detected factors
	SuggestedResponse string
	Model             string // which model actually answered
}
