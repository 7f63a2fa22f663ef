package repo

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/estacaoterapia/estacao_backend/internal/schema"
)

var cancelamentoColumns = []string{"id", "consulta_id", "tipo", "motivo", "status", "data", "created_at"}

type CancelamentoRepo struct {
	db DBTX
}

// Latest returns the most recent cancellation of a consulta, or ErrNotFound.
func (r *CancelamentoRepo) Latest(ctx context.Context, consultaID uuid.UUID) (*CancelamentoSessao, error) {
	b := builder()
	query, args := b.Select(cancelamentoColumns...).
		From(b.Table(schema.TableCancelamentos)).
		Where(entsql.EQ("consulta_id", consultaID)).
		OrderBy(entsql.Desc("data")).
		Limit(1).
		Query()

	var c CancelamentoSessao
	err := r.db.QueryRowContext(ctx, query, args...).
		Scan(&c.ID, &c.ConsultaID, &c.Tipo, &c.Motivo, &c.Status, &c.Data, &c.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *CancelamentoRepo) Create(ctx context.Context, c *CancelamentoSessao) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now()
	if c.Data.IsZero() {
		c.Data = c.CreatedAt
	}
	if c.Status == "" {
		c.Status = "EmAnalise"
	}

	_, err := execQuery(ctx, r.db, builder().Insert(schema.TableCancelamentos).
		Columns(cancelamentoColumns...).
		Values(c.ID, c.ConsultaID, c.Tipo, c.Motivo, c.Status, c.Data, c.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert cancelamento: %w", err)
	}
	return nil
}
