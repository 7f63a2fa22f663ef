package repo

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/estacaoterapia/estacao_backend/internal/schema"
)

var commissionColumns = []string{
	"id", "consulta_id", "psicologo_id", "paciente_id", "valor", "percentual",
	"status", "periodo", "tipo_plano", "type", "created_at", "updated_at",
}

func (c *Commission) dest() []any {
	return []any{
		&c.ID, &c.ConsultaID, &c.PsicologoID, &c.PacienteID, &c.Valor, &c.Percentual,
		&c.Status, &c.Periodo, &c.TipoPlano, &c.Type, &c.CreatedAt, &c.UpdatedAt,
	}
}

type CommissionRepo struct {
	db DBTX
}

func (r *CommissionRepo) GetByConsulta(ctx context.Context, consultaID uuid.UUID) (*Commission, error) {
	b := builder()
	query, args := b.Select(commissionColumns...).
		From(b.Table(schema.TableCommissions)).
		Where(entsql.EQ("consulta_id", consultaID)).
		Query()

	var c Commission
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(c.dest()...); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// Upsert writes the ledger row of c.ConsultaID in one statement. An existing
// row keeps its id and created_at; every other column is replaced.
func (r *CommissionRepo) Upsert(ctx context.Context, c *Commission) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	ins := builder().Insert(schema.TableCommissions).
		Columns(commissionColumns...).
		Values(
			c.ID, c.ConsultaID, c.PsicologoID, c.PacienteID, c.Valor, c.Percentual,
			c.Status, c.Periodo, c.TipoPlano, c.Type, c.CreatedAt, c.UpdatedAt,
		).
		OnConflict(
			entsql.ConflictColumns("consulta_id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				for _, col := range commissionColumns[2:10] {
					u.SetExcluded(col)
				}
				u.SetExcluded("updated_at")
			}),
		)

	if _, err := execQuery(ctx, r.db, ins); err != nil {
		return fmt.Errorf("upsert commission: %w", err)
	}
	return nil
}

func (r *CommissionRepo) DeleteByConsulta(ctx context.Context, consultaID uuid.UUID) (int64, error) {
	n, err := execQuery(ctx, r.db, builder().Delete(schema.TableCommissions).
		Where(entsql.EQ("consulta_id", consultaID)))
	if err != nil {
		return 0, fmt.Errorf("delete commission: %w", err)
	}
	return n, nil
}
