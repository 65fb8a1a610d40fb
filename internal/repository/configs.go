package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nicolasromanina/immo-backend-sub004/internal/model"
)

// GetActiveScoreConfig возвращает активную конфигурацию движка рейтинга.
// При отсутствии активной записи возвращает ErrScoreConfigNotFound.
func (r *PostgresRepository) GetActiveScoreConfig(ctx context.Context) (*model.ScoreConfig, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, is_active, config, created_at FROM score_configs WHERE is_active`,
	)
	return scanScoreConfig(row)
}

func scanScoreConfig(row pgx.Row) (*model.ScoreConfig, error) {
	var (
		cfg      model.ScoreConfig
		id       int64
		name     string
		active   bool
		document []byte
	)
	err := row.Scan(&id, &name, &active, &document, &cfg.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScoreConfigNotFound
		}
		return nil, fmt.Errorf("scan score config: %w", err)
	}
	if err := json.Unmarshal(document, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal score config: %w", err)
	}
	cfg.ID = id
	cfg.Name = name
	cfg.IsActive = active
	return &cfg, nil
}

// SaveScoreConfig сохраняет новую версию конфигурации в неактивном состоянии.
func (r *PostgresRepository) SaveScoreConfig(ctx context.Context, cfg model.ScoreConfig) (int64, error) {
	document, err := json.Marshal(cfg)
	if err != nil {
		return 0, fmt.Errorf("marshal score config: %w", err)
	}

	var id int64
	err = r.pool.QueryRow(ctx,
		`INSERT INTO score_configs (name, is_active, config) VALUES ($1, FALSE, $2) RETURNING id`,
		cfg.Name, document,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert score config: %w", err)
	}
	return id, nil
}

// ActivateScoreConfig делает активной указанную конфигурацию. Сначала все
// записи деактивируются, затем активируется одна — инвариант единственной
// активной конфигурации держится и на частичном уникальном индексе.
func (r *PostgresRepository) ActivateScoreConfig(ctx context.Context, id int64) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if _, err := tx.Exec(ctx, `UPDATE score_configs SET is_active = FALSE WHERE is_active`); err != nil {
			return fmt.Errorf("deactivate score configs: %w", err)
		}

		tag, err := tx.Exec(ctx, `UPDATE score_configs SET is_active = TRUE WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("activate score config: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrScoreConfigNotFound
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}
