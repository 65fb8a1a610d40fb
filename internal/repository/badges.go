package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nicolasromanina/immo-backend-sub004/internal/model"
)

func scanBadge(row pgx.Row) (*model.Badge, error) {
	var b model.Badge
	var criteria []byte
	err := row.Scan(
		&b.ID, &b.Slug, &b.Category, &criteria, &b.TrustScoreBonus,
		&b.HasExpiration, &b.ExpirationDays, &b.IsActive, &b.AwardedCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBadgeNotFound
		}
		return nil, fmt.Errorf("scan badge: %w", err)
	}
	if err := json.Unmarshal(criteria, &b.Criteria); err != nil {
		return nil, fmt.Errorf("unmarshal badge criteria: %w", err)
	}
	return &b, nil
}

const badgeColumns = `id, slug, category, criteria, trust_score_bonus,
	has_expiration, expiration_days, is_active, awarded_count`

// CreateBadge сохраняет новую запись каталога бейджей.
func (r *PostgresRepository) CreateBadge(ctx context.Context, b model.Badge) (int64, error) {
	criteria, err := json.Marshal(b.Criteria)
	if err != nil {
		return 0, fmt.Errorf("marshal badge criteria: %w", err)
	}

	var id int64
	err = r.pool.QueryRow(ctx,
		`INSERT INTO badges (slug, category, criteria, trust_score_bonus, has_expiration, expiration_days, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		b.Slug, b.Category, criteria, b.TrustScoreBonus, b.HasExpiration, b.ExpirationDays, b.IsActive,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrBadgeExists, b.Slug)
		}
		return 0, fmt.Errorf("insert badge: %w", err)
	}
	return id, nil
}

// GetBadgeBySlug возвращает бейдж каталога по слагу.
func (r *PostgresRepository) GetBadgeBySlug(ctx context.Context, slug string) (*model.Badge, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+badgeColumns+` FROM badges WHERE slug = $1`,
		slug,
	)
	return scanBadge(row)
}

// ListActiveBadges возвращает все активные бейджи каталога.
func (r *PostgresRepository) ListActiveBadges(ctx context.Context) ([]model.Badge, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+badgeColumns+` FROM badges WHERE is_active ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select active badges: %w", err)
	}
	defer rows.Close()

	var res []model.Badge
	for rows.Next() {
		b, err := scanBadge(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ListBadgeAwards возвращает бейджи, присуждённые промоутеру.
func (r *PostgresRepository) ListBadgeAwards(ctx context.Context, promoteurID int64) ([]model.BadgeAward, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.promoteur_id, a.badge_id, b.slug, a.earned_at, a.expires_at
		 FROM badge_awards a
		 JOIN badges b ON b.id = a.badge_id
		 WHERE a.promoteur_id = $1
		 ORDER BY a.earned_at DESC`,
		promoteurID,
	)
	if err != nil {
		return nil, fmt.Errorf("select badge awards: %w", err)
	}
	defer rows.Close()

	var res []model.BadgeAward
	for rows.Next() {
		var a model.BadgeAward
		if err := rows.Scan(&a.ID, &a.PromoteurID, &a.BadgeID, &a.BadgeSlug, &a.EarnedAt, &a.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan badge award: %w", err)
		}
		res = append(res, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreateBadgeAward сохраняет присуждённый бейдж и увеличивает счётчик
// присуждений бейджа в одной транзакции.
func (r *PostgresRepository) CreateBadgeAward(ctx context.Context, award model.BadgeAward) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO badge_awards (promoteur_id, badge_id, earned_at, expires_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		award.PromoteurID, award.BadgeID, award.EarnedAt, award.ExpiresAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert badge award: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE badges SET awarded_count = awarded_count + 1 WHERE id = $1`,
		award.BadgeID,
	)
	if err != nil {
		return 0, fmt.Errorf("increment badge counter: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return id, nil
}

// DeleteBadgeAward удаляет присуждённый бейдж и уменьшает счётчик присуждений.
// Возвращает признак того, что бейдж был присуждён.
func (r *PostgresRepository) DeleteBadgeAward(ctx context.Context, promoteurID, badgeID int64) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`DELETE FROM badge_awards WHERE promoteur_id = $1 AND badge_id = $2`,
		promoteurID, badgeID,
	)
	if err != nil {
		return false, fmt.Errorf("delete badge award: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return false, nil
	}

	_, err = tx.Exec(ctx,
		`UPDATE badges SET awarded_count = GREATEST(awarded_count - 1, 0) WHERE id = $1`,
		badgeID,
	)
	if err != nil {
		return false, fmt.Errorf("decrement badge counter: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}

	return true, nil
}

// ListExpiredBadgeAwards возвращает присуждённые бейджи с истёкшим сроком действия.
func (r *PostgresRepository) ListExpiredBadgeAwards(ctx context.Context, now time.Time) ([]model.BadgeAward, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.promoteur_id, a.badge_id, b.slug, a.earned_at, a.expires_at
		 FROM badge_awards a
		 JOIN badges b ON b.id = a.badge_id
		 WHERE a.expires_at IS NOT NULL AND a.expires_at < $1
		 ORDER BY a.promoteur_id`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("select expired badge awards: %w", err)
	}
	defer rows.Close()

	var res []model.BadgeAward
	for rows.Next() {
		var a model.BadgeAward
		if err := rows.Scan(&a.ID, &a.PromoteurID, &a.BadgeID, &a.BadgeSlug, &a.EarnedAt, &a.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan badge award: %w", err)
		}
		res = append(res, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
