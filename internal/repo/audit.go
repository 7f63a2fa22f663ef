package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/estacaoterapia/estacao_backend/internal/schema"
)

type AuditRepo struct {
	db DBTX
}

func (r *AuditRepo) Create(ctx context.Context, a *AuditLog) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now()
	if a.Status == "" {
		a.Status = "Sucesso"
	}

	_, err := execQuery(ctx, r.db, builder().Insert(schema.TableAuditLogs).
		Columns("id", "user_id", "action", "entity", "entity_id", "status", "metadata", "created_at").
		Values(a.ID, a.UserID, a.Action, a.Entity, a.EntityID, a.Status, a.Metadata, a.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
