package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/estacaoterapia/estacao_backend/internal/schema"
)

type AvulsaRepo struct {
	db DBTX
}

func (r *AvulsaRepo) CreateGrant(ctx context.Context, g *ConsultaAvulsa) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	g.CreatedAt = time.Now()
	if g.Status == "" {
		g.Status = "Ativa"
	}

	_, err := execQuery(ctx, r.db, builder().Insert(schema.TableConsultasAvulsas).
		Columns("id", "paciente_id", "quantidade", "status", "atribuido_por", "created_at").
		Values(g.ID, g.PacienteID, g.Quantidade, g.Status, g.AtribuidoPor, g.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert consulta avulsa: %w", err)
	}
	return nil
}

func (r *AvulsaRepo) CreateCredito(ctx context.Context, c *CreditoAvulso) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = "Ativo"
	}

	_, err := execQuery(ctx, r.db, builder().Insert(schema.TableCreditosAvulsos).
		Columns("id", "consulta_avulsa_id", "paciente_id", "quantidade", "usados", "validade", "status", "created_at").
		Values(c.ID, c.ConsultaAvulsaID, c.PacienteID, c.Quantidade, c.Usados, c.Validade, c.Status, c.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert credito avulso: %w", err)
	}
	return nil
}
