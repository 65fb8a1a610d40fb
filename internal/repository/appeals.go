package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nicolasromanina/immo-backend-sub004/internal/model"
)

const appealColumns = `id, reference, promoteur_id, project_id, type, reason, description,
	original_action, evidence, mitigation_plan, status, level, submitted_at, deadline,
	escalated, escalation_reason, assigned_to, review_started_at, resolved_at, decision`

func scanAppeal(row pgx.Row) (*model.Appeal, error) {
	var (
		a              model.Appeal
		originalAction []byte
		evidence       []byte
		decision       []byte
	)
	err := row.Scan(
		&a.ID, &a.Reference, &a.PromoteurID, &a.ProjectID, &a.Type, &a.Reason, &a.Description,
		&originalAction, &evidence, &a.MitigationPlan, &a.Status, &a.Level, &a.SubmittedAt, &a.Deadline,
		&a.Escalated, &a.EscalationReason, &a.AssignedTo, &a.ReviewStartedAt, &a.ResolvedAt, &decision,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppealNotFound
		}
		return nil, fmt.Errorf("scan appeal: %w", err)
	}

	if err := json.Unmarshal(originalAction, &a.OriginalAction); err != nil {
		return nil, fmt.Errorf("unmarshal original action: %w", err)
	}
	if err := json.Unmarshal(evidence, &a.Evidence); err != nil {
		return nil, fmt.Errorf("unmarshal evidence: %w", err)
	}
	if decision != nil {
		a.Decision = &model.AppealDecision{}
		if err := json.Unmarshal(decision, a.Decision); err != nil {
			return nil, fmt.Errorf("unmarshal decision: %w", err)
		}
	}

	return &a, nil
}

// CreateAppeal сохраняет новую апелляцию и возвращает её идентификатор.
func (r *PostgresRepository) CreateAppeal(ctx context.Context, a *model.Appeal) (int64, error) {
	originalAction, err := json.Marshal(a.OriginalAction)
	if err != nil {
		return 0, fmt.Errorf("marshal original action: %w", err)
	}

	evidence := a.Evidence
	if evidence == nil {
		evidence = []string{}
	}
	evidenceJSON, err := json.Marshal(evidence)
	if err != nil {
		return 0, fmt.Errorf("marshal evidence: %w", err)
	}

	var id int64
	err = r.pool.QueryRow(ctx,
		`INSERT INTO appeals (reference, promoteur_id, project_id, type, reason, description,
		                      original_action, evidence, mitigation_plan, status, level,
		                      submitted_at, deadline)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING id`,
		a.Reference, a.PromoteurID, a.ProjectID, a.Type, a.Reason, a.Description,
		originalAction, evidenceJSON, a.MitigationPlan, string(a.Status), a.Level,
		a.SubmittedAt, a.Deadline,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert appeal: %w", err)
	}

	return id, nil
}

// GetAppeal возвращает апелляцию по идентификатору.
func (r *PostgresRepository) GetAppeal(ctx context.Context, id int64) (*model.Appeal, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+appealColumns+` FROM appeals WHERE id = $1`,
		id,
	)
	return scanAppeal(row)
}

// UpdateAppeal перезаписывает изменяемые поля апелляции.
func (r *PostgresRepository) UpdateAppeal(ctx context.Context, a *model.Appeal) error {
	var decision []byte
	if a.Decision != nil {
		var err error
		decision, err = json.Marshal(a.Decision)
		if err != nil {
			return fmt.Errorf("marshal decision: %w", err)
		}
	}

	return r.withRetry(ctx, func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE appeals
			 SET status = $2, level = $3, deadline = $4, escalated = $5, escalation_reason = $6,
			     assigned_to = $7, review_started_at = $8, resolved_at = $9, decision = $10
			 WHERE id = $1`,
			a.ID, string(a.Status), a.Level, a.Deadline, a.Escalated, a.EscalationReason,
			a.AssignedTo, a.ReviewStartedAt, a.ResolvedAt, decision,
		)
		if err != nil {
			return fmt.Errorf("update appeal: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrAppealNotFound
		}
		return nil
	})
}

// AddReviewNote сохраняет заметку рецензента.
func (r *PostgresRepository) AddReviewNote(ctx context.Context, n model.ReviewNote) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO appeal_notes (appeal_id, note, added_by, added_at, is_internal)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		n.AppealID, n.Note, n.AddedBy, n.AddedAt, n.IsInternal,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert review note: %w", err)
	}
	return id, nil
}

// ListReviewNotes возвращает заметки по апелляции в порядке добавления.
func (r *PostgresRepository) ListReviewNotes(ctx context.Context, appealID int64) ([]model.ReviewNote, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, appeal_id, note, added_by, added_at, is_internal
		 FROM appeal_notes
		 WHERE appeal_id = $1
		 ORDER BY added_at`,
		appealID,
	)
	if err != nil {
		return nil, fmt.Errorf("select review notes: %w", err)
	}
	defer rows.Close()

	var res []model.ReviewNote
	for rows.Next() {
		var n model.ReviewNote
		if err := rows.Scan(&n.ID, &n.AppealID, &n.Note, &n.AddedBy, &n.AddedAt, &n.IsInternal); err != nil {
			return nil, fmt.Errorf("scan review note: %w", err)
		}
		res = append(res, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

func collectAppeals(rows pgx.Rows) ([]model.Appeal, error) {
	defer rows.Close()

	var res []model.Appeal
	for rows.Next() {
		a, err := scanAppeal(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ListAppealsByStatus возвращает апелляции в указанном состоянии.
func (r *PostgresRepository) ListAppealsByStatus(ctx context.Context, status model.AppealStatus) ([]model.Appeal, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+appealColumns+` FROM appeals WHERE status = $1 ORDER BY submitted_at`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("select appeals by status: %w", err)
	}
	return collectAppeals(rows)
}

// ListOverdueAppeals возвращает нерешённые апелляции с истёкшим дедлайном.
func (r *PostgresRepository) ListOverdueAppeals(ctx context.Context, now time.Time) ([]model.Appeal, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+appealColumns+`
		 FROM appeals
		 WHERE status IN ($1, $2, $3) AND deadline < $4
		 ORDER BY deadline`,
		string(model.AppealStatusPending), string(model.AppealStatusUnderReview),
		string(model.AppealStatusEscalated), now,
	)
	if err != nil {
		return nil, fmt.Errorf("select overdue appeals: %w", err)
	}
	return collectAppeals(rows)
}

// ListAppealsSince возвращает апелляции, поданные не раньше указанного момента.
func (r *PostgresRepository) ListAppealsSince(ctx context.Context, cutoff time.Time) ([]model.Appeal, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+appealColumns+` FROM appeals WHERE submitted_at >= $1 ORDER BY submitted_at`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("select appeals since: %w", err)
	}
	return collectAppeals(rows)
}
