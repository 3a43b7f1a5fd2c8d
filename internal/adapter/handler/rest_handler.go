package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"

	"github.com/atlasbank/mailtriage/internal/adapter/exporter"
	"github.com/atlasbank/mailtriage/internal/adapter/llm"
	"github.com/atlasbank/mailtriage/internal/core/domain"
	"github.com/atlasbank/mailtriage/internal/core/ports"
)

type RestHandler struct {
	repo          ports.AnalysisRepository
	classifier    ports.Classifier
	notifier      ports.Notifier
	publisher     ports.DecisionPublisher
	auditExporter *exporter.AuditExporter
	catalog       *domain.ImpactCatalog
	threshold     int
	retentionTTL  time.Duration
}

func NewRestHandler(
	repo ports.AnalysisRepository,
	classifier ports.Classifier,
	notifier ports.Notifier,
	publisher ports.DecisionPublisher,
	catalog *domain.ImpactCatalog,
	threshold int,
	retentionTTL time.Duration,
) *RestHandler {
	return &RestHandler{
		repo:          repo,
		classifier:    classifier,
		notifier:      notifier,
		publisher:     publisher,
		auditExporter: exporter.NewAuditExporter(repo),
		catalog:       catalog,
		threshold:     threshold,
		retentionTTL:  retentionTTL,
	}
}

// Health check endpoint
func (h *RestHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "mailtriage-api",
	}
	writeJSON(w, http.StatusOK, response)
}

// AnalyzeEmail - classify, score, route and record one inbound email
func (h *RestHandler) AnalyzeEmail(w http.ResponseWriter, r *http.Request) {
	var payload AnalyzeEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Printf("❌ Failed to decode analyze request: %v", err)
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	if payload.Body == "" && payload.Subject == "" {
		writeError(w, http.StatusBadRequest, "email body or subject is required")
		return
	}

	contactID := payload.ContactID
	if contactID == "" {
		contactID = uuid.NewString()
	}

	customerName := payload.CustomerName
	if customerName == "" {
		customerName = "Valued Customer"
	}

	log.Printf("📥 Analyzing email: %s (customer: %s)", contactID, customerName)

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	email := ports.EmailContext{
		ContactID:        contactID,
		CustomerName:     customerName,
		Subject:          payload.Subject,
		Body:             domain.CleanText(payload.Body),
		CreditScore:      payload.CreditScore,
		SpendingProfile:  payload.SpendingProfile,
		ServiceLevel:     payload.ServiceLevel,
		AdditionalInfo:   payload.AdditionalInfo,
		KnowledgeResults: payload.KnowledgeResults,
	}

	if h.classifier == nil || !h.classifier.IsEnabled() {
		log.Printf("⚠️  Classifier disabled - falling back to agent review for %s", contactID)
		h.writeFallback(w, contactID, customerName, "classifier_disabled")
		return
	}

	classification, err := h.classifier.Classify(ctx, email)
	if err != nil {
		// No score is guessed on classifier failure; the safe fallback is a human.
		log.Printf("⚠️  Classification failed for %s: %v", contactID, err)
		h.writeFallback(w, contactID, customerName, "classification_failed")
		return
	}

	result, err := domain.Score(domain.ScoringInput{
		Indicators: classification.Factors,
		TopicCount: classification.TopicCount,
	}, h.catalog)
	if err != nil {
		var unknownErr *domain.UnknownIndicatorError
		if errors.As(err, &unknownErr) {
			// Vocabulary drift between classifier and catalog must surface,
			// not be absorbed into a made-up score.
			log.Printf("❌ Scoring failed for %s: %v", contactID, err)
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "scoring failed")
		return
	}

	decision, err := domain.Route(result, h.threshold)
	if err != nil {
		log.Printf("❌ Routing failed for %s: %v", contactID, err)
		writeError(w, http.StatusInternalServerError, "routing failed")
		return
	}

	llm.RecordScore(result.Score)
	llm.RecordRoutingDecision(string(decision.Outcome))

	explanation := result.Explanation
	if classification.Reasoning != "" {
		explanation = classification.Reasoning + " (" + result.Explanation + ")"
	}

	now := time.Now().UTC()
	analysis := domain.EmailAnalysis{
		ContactID:         contactID,
		CustomerName:      customerName,
		Category:          classification.Category,
		Intent:            classification.Intent,
		Score:             result.Score,
		Explanation:       explanation,
		SuggestedResponse: classification.SuggestedResponse,
		Outcome:           decision.Outcome,
		ModelUsed:         classification.Model,
		AnalyzedAt:        now,
		ExpiresAt:         now.Add(h.retentionTTL),
	}

	if err := h.repo.Save(ctx, analysis); err != nil {
		log.Printf("⚠️  Failed to persist analysis %s: %v", contactID, err)
	}

	if h.publisher != nil {
		event := ports.DecisionEvent{
			ContactID:   contactID,
			Score:       result.Score,
			Threshold:   decision.Threshold,
			Outcome:     string(decision.Outcome),
			Category:    classification.Category,
			ModelUsed:   classification.Model,
			Explanation: explanation,
			DecidedAt:   now,
		}
		if err := h.publisher.PublishDecision(ctx, event); err != nil {
			log.Printf("⚠️  Failed to publish decision for %s: %v", contactID, err)
		}
	}

	if h.notifier != nil && decision.Outcome == domain.AgentReview {
		review := ports.AgentReviewNotification{
			ContactID:         contactID,
			CustomerName:      customerName,
			Category:          classification.Category,
			Intent:            classification.Intent,
			Score:             result.Score,
			Threshold:         decision.Threshold,
			Explanation:       explanation,
			SuggestedResponse: classification.SuggestedResponse,
		}
		if err := h.notifier.NotifyAgentReview(review); err != nil {
			log.Printf("⚠️  Failed to send agent review notification for %s: %v", contactID, err)
		} else {
			log.Printf("✅ Agent review notification sent for %s", contactID)
		}
	}

	log.Printf("✅ Analysis complete: %s score=%d outcome=%s", contactID, result.Score, decision.Outcome)

	response := AnalyzeEmailResponse{
		ContactID:             contactID,
		Scored:                true,
		Score:                 &result.Score,
		Threshold:             decision.Threshold,
		Outcome:               string(decision.Outcome),
		Category:              classification.Category,
		Intent:                classification.Intent,
		AppliedImpacts:        result.Applied,
		Explanation:           explanation,
		ExplanationHTML:       domain.FlattenText(explanation, true),
		SuggestedResponse:     classification.SuggestedResponse,
		SuggestedResponseHTML: domain.FlattenText(classification.SuggestedResponse, true),
		ModelUsed:             classification.Model,
	}
	writeJSON(w, http.StatusOK, response)
}

// writeFallback answers with the orchestration-level safe default: route to a
// human, report no score rather than inventing one.
func (h *RestHandler) writeFallback(w http.ResponseWriter, contactID, customerName, reason string) {
	llm.RecordRoutingDecision(string(domain.AgentReview))

	response := AnalyzeEmailResponse{
		ContactID:         contactID,
		Scored:            false,
		FallbackReason:    reason,
		Threshold:         h.threshold,
		Outcome:           string(domain.AgentReview),
		Category:          "General_Inquiry",
		Intent:            "General Inquiry",
		Explanation:       "Processing error detected - unable to analyze email content. Route to agent for manual review.",
		SuggestedResponse: domain.PersonalizeGreeting("Dear Valued Customer,\n\nThank you for contacting us. An agent will assist you.", customerName),
	}
	response.ExplanationHTML = domain.FlattenText(response.Explanation, true)
	response.SuggestedResponseHTML = domain.FlattenText(response.SuggestedResponse, true)
	writeJSON(w, http.StatusOK, response)
}

// GetAnalysis - fetch a stored analysis by contact id
func (h *RestHandler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	contactID := mux.Vars(r)["contactId"]
	if contactID == "" {
		writeError(w, http.StatusBadRequest, "missing contact id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	analysis, err := h.repo.FindByContactID(ctx, contactID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "analysis not found")
			return
		}
		log.Printf("❌ Failed to fetch analysis %s: %v", contactID, err)
		writeError(w, http.StatusInternalServerError, "failed to fetch analysis")
		return
	}

	response := map[string]interface{}{
		"contact_id":         analysis.ContactID,
		"customer_name":      analysis.CustomerName,
		"category":           analysis.Category,
		"intent":             analysis.Intent,
		"score":              analysis.Score,
		"explanation":        analysis.Explanation,
		"suggested_response": analysis.SuggestedResponse,
		"outcome":            string(analysis.Outcome),
		"model_used":         analysis.ModelUsed,
		"analyzed_at":        analysis.AnalyzedAt.Format(time.RFC3339),
		"expires_at":         analysis.ExpiresAt.Format(time.RFC3339),
	}
	writeJSON(w, http.StatusOK, response)
}

// GetAnalysisFeed - export recent analyses for BI/compliance ingestion
func (h *RestHandler) GetAnalysisFeed(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	since := r.URL.Query().Get("since") // e.g., "24h", "168h"

	var sinceTime time.Time
	if since != "" {
		duration, err := time.ParseDuration(since)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid 'since' parameter (use format like '24h', '168h')")
			return
		}
		sinceTime = time.Now().Add(-duration)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	switch format {
	case "csv", "":
		data, err := h.auditExporter.Export(ctx, sinceTime)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to export audit feed")
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(data)); err != nil {
			log.Printf("Error writing audit feed response: %v", err)
		}

	default:
		writeError(w, http.StatusBadRequest, "unsupported format (use 'csv')")
	}
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// Request/response payload structures

type AnalyzeEmailRequest struct {
	ContactID        string `json:"contact_id"`
	CustomerName     string `json:"customer_name"`
	Subject          string `json:"subject"`
	Body             string `json:"body"`
	CreditScore      *int   `json:"credit_score,omitempty"`
	SpendingProfile  string `json:"spending_profile,omitempty"`
	ServiceLevel     string `json:"service_level,omitempty"`
	AdditionalInfo   string `json:"additional_info,omitempty"`
	KnowledgeResults string `json:"knowledge_results,omitempty"`
}

type AnalyzeEmailResponse struct {
	ContactID             string                 `json:"contact_id"`
	Scored                bool                   `json:"scored"`
	FallbackReason        string                 `json:"fallback_reason,omitempty"`
	Score                 *int                   `json:"score,omitempty"`
	Threshold             int                    `json:"threshold"`
	Outcome               string                 `json:"outcome"`
	Category              string                 `json:"category"`
	Intent                string                 `json:"intent"`
	AppliedImpacts        []domain.AppliedImpact `json:"applied_impacts,omitempty"`
	Explanation           string                 `json:"explanation"`
	ExplanationHTML       string                 `json:"explanation_html"`
	SuggestedResponse     string                 `json:"suggested_response"`
	SuggestedResponseHTML string                 `json:"suggested_response_html"`
	ModelUsed             string                 `json:"model_used,omitempty"`
}
