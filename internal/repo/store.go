package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence surface the services depend on. *Client is the
// Postgres implementation; repotest.Memory is the in-memory one.
type Store interface {
	Users() UserStore
	Planos() PlanoStore
	Consultas() ConsultaStore
	Reservas() ReservaStore
	Cancelamentos() CancelamentoStore
	Commissions() CommissionStore
	Avulsas() AvulsaStore
	Audit() AuditStore

	WithTx(ctx context.Context, fn func(tx Store) error) error
}

type UserStore interface {
	Get(ctx context.Context, id uuid.UUID) (*User, error)
}

type PlanoStore interface {
	ActiveSubscription(ctx context.Context, userID uuid.UUID, at time.Time) (*Assinatura, error)
	HighestAvulsaPrice(ctx context.Context) (float64, error)
	ReturnSession(ctx context.Context, cicloID uuid.UUID) error
}

type ConsultaStore interface {
	Get(ctx context.Context, id uuid.UUID) (*Consulta, error)
	Create(ctx context.Context, c *Consulta) error
	UpdateStatus(ctx context.Context, id uuid.UUID, u StatusUpdate) error
	SetFaturada(ctx context.Context, id uuid.UUID, faturada bool) error
	HasOtherInProgress(ctx context.Context, excludeID, pacienteID uuid.UUID, psicologoID *uuid.UUID) (bool, error)
	ListByStatus(ctx context.Context, status string) ([]*Consulta, error)
	CountByStatus(ctx context.Context, from, to time.Time) ([]StatusCount, error)
	ListInactive(ctx context.Context, statuses []string, deadline time.Time) ([]InactivityCandidate, error)
	ListReminders(ctx context.Context, statuses []string, from, to time.Time) ([]Reminder, error)
}

type ReservaStore interface {
	GetByChannel(ctx context.Context, channel string) (*ReservaSessao, error)
	GetByConsulta(ctx context.Context, consultaID uuid.UUID) (*ReservaSessao, error)
	Create(ctx context.Context, room *ReservaSessao) error
	SaveTokens(ctx context.Context, id uuid.UUID, p TokenPair) error
	BackfillParticipants(ctx context.Context, id uuid.UUID, patientID uuid.UUID, psychologistID *uuid.UUID) error
	MarkJoined(ctx context.Context, id uuid.UUID, psychologist bool, userID *uuid.UUID, at time.Time) (*JoinMarks, error)
	SetStatusByConsulta(ctx context.Context, consultaID uuid.UUID, status string) error
}

type CancelamentoStore interface {
	Latest(ctx context.Context, consultaID uuid.UUID) (*CancelamentoSessao, error)
	Create(ctx context.Context, c *CancelamentoSessao) error
}

type CommissionStore interface {
	GetByConsulta(ctx context.Context, consultaID uuid.UUID) (*Commission, error)
	Upsert(ctx context.Context, c *Commission) error
	DeleteByConsulta(ctx context.Context, consultaID uuid.UUID) (int64, error)
}

type AvulsaStore interface {
	CreateGrant(ctx context.Context, g *ConsultaAvulsa) error
	CreateCredito(ctx context.Context, c *CreditoAvulso) error
}

type AuditStore interface {
	Create(ctx context.Context, a *AuditLog) error
}
