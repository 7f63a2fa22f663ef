// Package avulsa grants ad-hoc session credits to patients.
package avulsa

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/estacaoterapia/estacao_backend/internal/repo"
)

const DefaultValidadeDias = 30

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type GrantRequest struct {
	PacienteID   uuid.UUID `json:"pacienteId"`
	Quantidade   int       `json:"quantidade"`
	ValidadeDias *int      `json:"validadeDias,omitempty"`
}

type GrantResult struct {
	Grant   *repo.ConsultaAvulsa `json:"consultaAvulsa"`
	Credito *repo.CreditoAvulso  `json:"credito"`
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	// Grant writes the grant and its credit allowance in one transaction.
	Grant(ctx context.Context, actorID uuid.UUID, req GrantRequest) (*GrantResult, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type avulsaService struct {
	db  repo.Store
	now func() time.Time
	log *slog.Logger
}

func New(db repo.Store, log *slog.Logger) Service {
	if log == nil {
		log = slog.Default()
	}
	return &avulsaService{db: db, now: time.Now, log: log.With("component", "avulsa")}
}

func (s *avulsaService) Grant(ctx context.Context, actorID uuid.UUID, req GrantRequest) (*GrantResult, error) {
	if req.Quantidade <= 0 {
		return nil, ErrInvalidQuantidade
	}
	dias := DefaultValidadeDias
	if req.ValidadeDias != nil {
		if *req.ValidadeDias <= 0 {
			return nil, ErrInvalidValidade
		}
		dias = *req.ValidadeDias
	}

	if _, err := s.db.Users().Get(ctx, req.PacienteID); err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrPacienteNotFound
		}
		return nil, fmt.Errorf("load paciente: %w", err)
	}

	res := &GrantResult{}
	err := s.db.WithTx(ctx, func(tx repo.Store) error {
		res.Grant = &repo.ConsultaAvulsa{
			PacienteID:   req.PacienteID,
			Quantidade:   req.Quantidade,
			AtribuidoPor: actorID,
		}
		if err := tx.Avulsas().CreateGrant(ctx, res.Grant); err != nil {
			return err
		}
		res.Credito = &repo.CreditoAvulso{
			ConsultaAvulsaID: res.Grant.ID,
			PacienteID:       req.PacienteID,
			Quantidade:       req.Quantidade,
			Validade:         s.now().AddDate(0, 0, dias),
		}
		return tx.Avulsas().CreateCredito(ctx, res.Credito)
	})
	if err != nil {
		return nil, fmt.Errorf("grant avulsa: %w", err)
	}

	meta, _ := json.Marshal(map[string]any{"pacienteId": req.PacienteID, "quantidade": req.Quantidade, "validadeDias": dias})
	if err := s.db.Audit().Create(ctx, &repo.AuditLog{
		UserID:   &actorID,
		Action:   "consulta_avulsa_atribuida",
		Entity:   "consulta_avulsa",
		EntityID: res.Grant.ID.String(),
		Status:   "Sucesso",
		Metadata: string(meta),
	}); err != nil {
		s.log.Warn("grant audit failed", "grant_id", res.Grant.ID, "error", err)
	}

	s.log.Info("avulsa granted", "paciente_id", req.PacienteID, "quantidade", req.Quantidade, "actor_id", actorID)
	return res, nil
}
