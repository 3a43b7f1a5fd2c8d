package exporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/atlasbank/mailtriage/internal/core/ports"
)

// AuditExporter exports recent analyses as CSV for BI and compliance review.
type AuditExporter struct {
	repo ports.AnalysisRepository
}

func NewAuditExporter(repo ports.AnalysisRepository) *AuditExporter {
	return &AuditExporter{repo: repo}
}

// Export generates a CSV audit feed of analyses since the given time.
func (e *AuditExporter) Export(ctx context.Context, since time.Time) (string, error) {
	// Default to last 24 hours if no time specified
	if since.IsZero() {
		since = time.Now().Add(-24 * time.Hour)
	}

	// Limit to 10000 entries for performance
	analyses, err := e.repo.FindSince(ctx, since, 10000)
	if err != nil {
		return "", fmt.Errorf("failed to fetch analyses: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"contact_id", "analyzed_at", "category", "intent", "score", "outcome", "model_used", "explanation"}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, a := range analyses {
		record := []string{
			a.ContactID,
			a.AnalyzedAt.UTC().Format(time.RFC3339),
			a.Category,
			a.Intent,
			strconv.Itoa(a.Score),
			string(a.Outcome),
			a.ModelUsed,
			a.Explanation,
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush CSV: %w", err)
	}

	return buf.String(), nil
}
