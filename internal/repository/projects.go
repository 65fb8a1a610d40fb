package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nicolasromanina/immo-backend-sub004/internal/model"
)

const projectColumns = `id, promoteur_id, name, status, construction_status,
	is_published, is_featured, created_at`

func scanProjects(rows pgx.Rows) ([]model.Project, error) {
	defer rows.Close()

	var res []model.Project
	for rows.Next() {
		var p model.Project
		err := rows.Scan(&p.ID, &p.PromoteurID, &p.Name, &p.Status, &p.ConstructionStatus,
			&p.IsPublished, &p.IsFeatured, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ListActiveProjects возвращает активные опубликованные проекты промоутера.
func (r *PostgresRepository) ListActiveProjects(ctx context.Context, promoteurID int64) ([]model.Project, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+projectColumns+`
		 FROM projects
		 WHERE promoteur_id = $1 AND status = $2 AND is_published`,
		promoteurID, string(model.ProjectStatusActive),
	)
	if err != nil {
		return nil, fmt.Errorf("select active projects: %w", err)
	}
	return scanProjects(rows)
}

// ListProjectsUnderConstruction возвращает опубликованные проекты в фазе
// строительства — рабочий набор планового контроля частоты обновлений.
func (r *PostgresRepository) ListProjectsUnderConstruction(ctx context.Context) ([]model.Project, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+projectColumns+`
		 FROM projects
		 WHERE construction_status IN ($1, $2) AND is_published AND status <> $3
		 ORDER BY id`,
		string(model.ConstructionInProgress), string(model.ConstructionHeavyWorks),
		string(model.ProjectStatusSuspended),
	)
	if err != nil {
		return nil, fmt.Errorf("select projects under construction: %w", err)
	}
	return scanProjects(rows)
}

// LatestPublishedUpdate возвращает момент последнего опубликованного
// обновления проекта либо nil, если обновлений не было.
func (r *PostgresRepository) LatestPublishedUpdate(ctx context.Context, projectID int64) (*time.Time, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT published_at FROM project_updates WHERE project_id = $1 ORDER BY published_at DESC LIMIT 1`,
		projectID,
	)

	var ts time.Time
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select latest update: %w", err)
	}

	return &ts, nil
}

// ListProjectUpdatesSince возвращает обновления проекта, опубликованные не
// раньше указанного момента, в хронологическом порядке.
func (r *PostgresRepository) ListProjectUpdatesSince(ctx context.Context, projectID int64, since time.Time) ([]model.ProjectUpdate, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, project_id, published_at
		 FROM project_updates
		 WHERE project_id = $1 AND published_at >= $2
		 ORDER BY published_at`,
		projectID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("select project updates: %w", err)
	}
	defer rows.Close()

	var res []model.ProjectUpdate
	for rows.Next() {
		var u model.ProjectUpdate
		if err := rows.Scan(&u.ID, &u.ProjectID, &u.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan project update: %w", err)
		}
		res = append(res, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// SetProjectFeatured выставляет флаг продвижения проекта.
func (r *PostgresRepository) SetProjectFeatured(ctx context.Context, projectID int64, featured bool) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE projects SET is_featured = $2 WHERE id = $1`,
		projectID, featured,
	)
	if err != nil {
		return fmt.Errorf("set project featured: %w", err)
	}
	return nil
}

// SetProjectStatus выставляет статус проекта.
func (r *PostgresRepository) SetProjectStatus(ctx context.Context, projectID int64, status model.ProjectStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE projects SET status = $2 WHERE id = $1`,
		projectID, string(status),
	)
	if err != nil {
		return fmt.Errorf("set project status: %w", err)
	}
	return nil
}

// GetDocumentSummary возвращает агрегаты по документам промоутера.
func (r *PostgresRepository) GetDocumentSummary(ctx context.Context, promoteurID int64) (model.DocumentSummary, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE status = 'verified'),
		        COUNT(*) FILTER (WHERE status = 'expired'),
		        COUNT(*) FILTER (WHERE status = 'missing'),
		        COUNT(*) FILTER (WHERE status = 'rejected')
		 FROM documents
		 WHERE promoteur_id = $1`,
		promoteurID,
	)

	var s model.DocumentSummary
	if err := row.Scan(&s.Total, &s.Verified, &s.Expired, &s.Missing, &s.Rejected); err != nil {
		return model.DocumentSummary{}, fmt.Errorf("document summary: %w", err)
	}

	return s, nil
}

// GetLeadSummary возвращает агрегаты по заявкам промоутера.
func (r *PostgresRepository) GetLeadSummary(ctx context.Context, promoteurID int64) (model.LeadSummary, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE NOT sla_met)
		 FROM leads
		 WHERE promoteur_id = $1`,
		promoteurID,
	)

	var s model.LeadSummary
	if err := row.Scan(&s.Total, &s.SLAMissed); err != nil {
		return model.LeadSummary{}, fmt.Errorf("lead summary: %w", err)
	}

	return s, nil
}
