package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlasbank/mailtriage/internal/core/domain"
)

type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Save(ctx context.Context, analysis domain.EmailAnalysis) error {
	query := `
		INSERT INTO email_analyses
			(contact_id, customer_name, category, intent, score, explanation,
			 suggested_response, outcome, model_used, analyzed_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (contact_id) DO UPDATE SET
			customer_name = EXCLUDED.customer_name,
			category = EXCLUDED.category,
			intent = EXCLUDED.intent,
			score = EXCLUDED.score,
			explanation = EXCLUDED.explanation,
			suggested_response = EXCLUDED.suggested_response,
			outcome = EXCLUDED.outcome,
			model_used = EXCLUDED.model_used,
			analyzed_at = EXCLUDED.analyzed_at,
			expires_at = EXCLUDED.expires_at
	`

	_, err := r.db.Exec(ctx, query,
		analysis.ContactID,
		analysis.CustomerName,
		analysis.Category,
		analysis.Intent,
		analysis.Score,
		analysis.Explanation,
		analysis.SuggestedResponse,
		string(analysis.Outcome),
		analysis.ModelUsed,
		analysis.AnalyzedAt,
		analysis.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}

	return nil
}

func (r *PostgresRepository) FindByContactID(ctx context.Context, contactID string) (*domain.EmailAnalysis, error) {
	query := `
		SELECT contact_id, customer_name, category, intent, score, explanation,
		       suggested_response, outcome, model_used, analyzed_at, expires_at
		FROM email_analyses
		WHERE contact_id = $1 AND expires_at > now()
		LIMIT 1
	`

	var analysis domain.EmailAnalysis
	var outcome string

	err := r.db.QueryRow(ctx, query, contactID).Scan(
		&analysis.ContactID,
		&analysis.CustomerName,
		&analysis.Category,
		&analysis.Intent,
		&analysis.Score,
		&analysis.Explanation,
		&analysis.SuggestedResponse,
		&outcome,
		&analysis.ModelUsed,
		&analysis.AnalyzedAt,
		&analysis.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	analysis.Outcome = domain.Outcome(outcome)
	return &analysis, nil
}

func (r *PostgresRepository) FindSince(ctx context.Context, since time.Time, limit int) ([]domain.EmailAnalysis, error) {
	query := `
		SELECT contact_id, customer_name, category, intent, score, explanation,
		       suggested_response, outcome, model_used, analyzed_at, expires_at
		FROM email_analyses
		WHERE analyzed_at >= $1 AND expires_at > now()
		ORDER BY analyzed_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses since %v: %w", since, err)
	}
	defer rows.Close()

	var analyses []domain.EmailAnalysis

	for rows.Next() {
		var analysis domain.EmailAnalysis
		var outcome string
		err := rows.Scan(
			&analysis.ContactID,
			&analysis.CustomerName,
			&analysis.Category,
			&analysis.Intent,
			&analysis.Score,
			&analysis.Explanation,
			&analysis.SuggestedResponse,
			&outcome,
			&analysis.ModelUsed,
			&analysis.AnalyzedAt,
			&analysis.ExpiresAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		analysis.Outcome = domain.Outcome(outcome)
		analyses = append(analyses, analysis)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return analyses, nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM email_analyses WHERE expires_at <= $1`

	tag, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired analyses: %w", err)
	}

	return tag.RowsAffected(), nil
}
