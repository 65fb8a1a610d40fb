package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nicolasromanina/immo-backend-sub004/internal/model"
)

// RecordAudit сохраняет запись журнала аудита.
func (r *PostgresRepository) RecordAudit(ctx context.Context, e model.AuditEntry) error {
	var metadata []byte
	if e.Metadata != nil {
		var err error
		metadata, err = json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_log (actor, action, category, target_type, target_id, description, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.Actor, e.Action, e.Category, e.TargetType, e.TargetID, e.Description, metadata,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	return nil
}
