package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nicolasromanina/immo-backend-sub004/internal/model"
)

const promoteurColumns = `id, email, company_name, kyc_status, financial_proof_level,
	avg_response_time_hours, total_projects, completed_projects, trust_score,
	profile_complete, subscription_status, version, created_at`

func scanPromoteur(row pgx.Row) (*model.Promoteur, error) {
	var p model.Promoteur
	err := row.Scan(
		&p.ID, &p.Email, &p.CompanyName, &p.KYCStatus, &p.FinancialProofLevel,
		&p.AvgResponseTimeHours, &p.TotalProjects, &p.CompletedProjects, &p.TrustScore,
		&p.ProfileComplete, &p.SubscriptionStatus, &p.Version, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPromoteurNotFound
		}
		return nil, fmt.Errorf("scan promoteur: %w", err)
	}
	return &p, nil
}

// GetPromoteur возвращает промоутера по идентификатору вместе с версией записи.
func (r *PostgresRepository) GetPromoteur(ctx context.Context, id int64) (*model.Promoteur, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+promoteurColumns+` FROM promoteurs WHERE id = $1`,
		id,
	)
	return scanPromoteur(row)
}

// ListPromoteurIDs возвращает идентификаторы всех промоутеров.
func (r *PostgresRepository) ListPromoteurIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM promoteurs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select promoteur ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan promoteur id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return ids, nil
}

// UpdateTrustScore записывает рейтинг доверия промоутера с проверкой версии.
// При конкурентном изменении записи возвращает ErrVersionConflict.
func (r *PostgresRepository) UpdateTrustScore(ctx context.Context, id int64, score int, version int64) error {
	return r.withRetry(ctx, func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE promoteurs SET trust_score = $2, version = version + 1 WHERE id = $1 AND version = $3`,
			id, score, version,
		)
		if err != nil {
			return fmt.Errorf("update trust score: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrVersionConflict
		}
		return nil
	})
}

// UpdateSubscriptionStatus записывает статус подписки промоутера с проверкой версии.
func (r *PostgresRepository) UpdateSubscriptionStatus(ctx context.Context, id int64, status model.SubscriptionStatus, version int64) error {
	return r.withRetry(ctx, func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE promoteurs SET subscription_status = $2, version = version + 1 WHERE id = $1 AND version = $3`,
			id, string(status), version,
		)
		if err != nil {
			return fmt.Errorf("update subscription status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrVersionConflict
		}
		return nil
	})
}
