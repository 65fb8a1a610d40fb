package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nicolasromanina/immo-backend-sub004/internal/model"
)

// ListRestrictions возвращает все ограничения промоутера, новые первыми.
func (r *PostgresRepository) ListRestrictions(ctx context.Context, promoteurID int64) ([]model.Restriction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, promoteur_id, type, reason, applied_at, expires_at
		 FROM restrictions
		 WHERE promoteur_id = $1
		 ORDER BY applied_at DESC`,
		promoteurID,
	)
	if err != nil {
		return nil, fmt.Errorf("select restrictions: %w", err)
	}
	defer rows.Close()

	var res []model.Restriction
	for rows.Next() {
		var rr model.Restriction
		if err := rows.Scan(&rr.ID, &rr.PromoteurID, &rr.Type, &rr.Reason, &rr.AppliedAt, &rr.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan restriction: %w", err)
		}
		res = append(res, rr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// AddRestriction сохраняет новое ограничение и возвращает его идентификатор.
func (r *PostgresRepository) AddRestriction(ctx context.Context, restriction model.Restriction) (int64, error) {
	var id int64
	err := r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO restrictions (promoteur_id, type, reason, applied_at, expires_at)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			restriction.PromoteurID, string(restriction.Type), restriction.Reason,
			restriction.AppliedAt, restriction.ExpiresAt,
		).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("insert restriction: %w", err)
	}
	return id, nil
}

// RemoveRestriction удаляет ограничение по идентификатору. Возвращает признак
// того, что запись существовала: снятие уже истёкшего ограничения — не ошибка.
func (r *PostgresRepository) RemoveRestriction(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM restrictions WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete restriction: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// FindRestriction ищет ограничение по устаревшему ключу (тип, момент наложения).
func (r *PostgresRepository) FindRestriction(ctx context.Context, promoteurID int64, typ model.RestrictionType, appliedAt time.Time) (*model.Restriction, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, promoteur_id, type, reason, applied_at, expires_at
		 FROM restrictions
		 WHERE promoteur_id = $1 AND type = $2 AND applied_at = $3`,
		promoteurID, string(typ), appliedAt,
	)

	var rr model.Restriction
	err := row.Scan(&rr.ID, &rr.PromoteurID, &rr.Type, &rr.Reason, &rr.AppliedAt, &rr.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find restriction: %w", err)
	}

	return &rr, nil
}

// ListPromoteursWithExpiredRestrictions возвращает идентификаторы промоутеров,
// у которых есть хотя бы одно истёкшее ограничение.
func (r *PostgresRepository) ListPromoteursWithExpiredRestrictions(ctx context.Context, now time.Time) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT promoteur_id FROM restrictions WHERE expires_at IS NOT NULL AND expires_at <= $1`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("select promoteurs with expired restrictions: %w", err)
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

// DeleteExpiredRestrictions удаляет истёкшие ограничения промоутера и
// возвращает их количество.
func (r *PostgresRepository) DeleteExpiredRestrictions(ctx context.Context, promoteurID int64, now time.Time) (int64, error) {
	var removed int64
	err := r.withRetry(ctx, func() error {
		tag, execErr := r.pool.Exec(ctx,
			`DELETE FROM restrictions WHERE promoteur_id = $1 AND expires_at IS NOT NULL AND expires_at <= $2`,
			promoteurID, now,
		)
		if execErr != nil {
			return fmt.Errorf("delete expired restrictions: %w", execErr)
		}
		removed = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
