// Package repasse computes the psychologist's share of a consulta and keeps
// the commissions ledger in sync with the consulta's status.
package repasse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/estacaoterapia/estacao_backend/config"
	"github.com/estacaoterapia/estacao_backend/internal/repo"
	"github.com/estacaoterapia/estacao_backend/internal/service/status"
	"github.com/estacaoterapia/estacao_backend/pkg/observability"
	"github.com/estacaoterapia/estacao_backend/pkg/taskq"
)

const (
	MotivoConcluida             = "concluida"
	MotivoCancelamentoPaciente  = "cancelamento_paciente"
	MotivoPacienteNaoCompareceu = "paciente_nao_compareceu"
	MotivoInatividade           = "cancelamento_inatividade"
	MotivoRecalculo             = "recalculo"
	MotivoEntradaSala           = "entrada_sala"
)

const (
	TipoRepasse                        = "repasse"
	TipoRepasseCancelamentoPaciente    = "repasse_cancelamento_paciente"
	TipoRepasseCancelamentoInatividade = "repasse_cancelamento_inatividade"
)

const (
	StatusDisponivel = "disponivel"
	StatusRetido     = "retido"
)

// TaskKind is the queue kind under which recomputations are scheduled.
const TaskKind = "repasse.process"

const auditAction = "repasse_criado"

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
	ActionSkipped Action = "skipped"
)

type Result struct {
	Action     Action           `json:"action"`
	Status     status.Status    `json:"status"`
	Commission *repo.Commission `json:"commission,omitempty"`
}

// Task is the queued payload.
type Task struct {
	ConsultaID uuid.UUID `json:"consultaId"`
	Motivo     string    `json:"motivo"`
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	// Process recomputes the ledger row of one consulta.
	Process(ctx context.Context, consultaID uuid.UUID, motivo string) (*Result, error)
	// ProcessInBackground runs Process and only logs failures.
	ProcessInBackground(ctx context.Context, consultaID uuid.UUID, motivo string)
	// Schedule queues a recomputation; it never fails the caller.
	Schedule(ctx context.Context, consultaID uuid.UUID, motivo string)
	// HandleTask is the queue handler for TaskKind.
	HandleTask(ctx context.Context, payload []byte) error
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type Option func(*repasseService)

// WithClock overrides time.Now for notice-period decisions.
func WithClock(now func() time.Time) Option {
	return func(s *repasseService) { s.now = now }
}

type repasseService struct {
	db    repo.Store
	queue taskq.Queue
	cfg   config.RepasseConfig
	loc   *time.Location
	now   func() time.Time
	log   *slog.Logger
}

// New builds the service. queue may be nil, in which case Schedule runs the
// recomputation on its own goroutine.
func New(db repo.Store, queue taskq.Queue, cfg config.RepasseConfig, log *slog.Logger, opts ...Option) (Service, error) {
	tz := cfg.Timezone
	if tz == "" {
		tz = "America/Sao_Paulo"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load repasse timezone %q: %w", tz, err)
	}
	if cfg.AntecedenciaHoras <= 0 {
		cfg.AntecedenciaHoras = 24
	}
	if log == nil {
		log = slog.Default()
	}

	s := &repasseService{
		db:    db,
		queue: queue,
		cfg:   cfg,
		loc:   loc,
		now:   time.Now,
		log:   log.With("component", "repasse"),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *repasseService) Process(ctx context.Context, consultaID uuid.UUID, motivo string) (res *Result, err error) {
	ctx, span := observability.StartSpan(ctx, "repasse.Process",
		attribute.String("consulta.id", consultaID.String()),
		attribute.String("repasse.motivo", motivo))
	defer func() { observability.EndSpan(span, err) }()

	return s.process(ctx, consultaID, motivo)
}

func (s *repasseService) process(ctx context.Context, consultaID uuid.UUID, motivo string) (*Result, error) {
	c, err := s.db.Consultas().Get(ctx, consultaID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrConsultaNotFound
		}
		return nil, fmt.Errorf("load consulta: %w", err)
	}
	if c.PsicologoID == nil || c.PacienteID == uuid.Nil {
		s.log.Warn("consulta without both participants, skipping", "consulta_id", consultaID)
		return &Result{Action: ActionSkipped}, nil
	}

	normalized, deferido, err := s.classify(ctx, c)
	if err != nil {
		return nil, err
	}

	info, _ := status.Lookup(string(normalized))
	if !info.Pays(deferido) {
		n, err := s.db.Commissions().DeleteByConsulta(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("delete commission: %w", err)
		}
		if n == 0 {
			return &Result{Action: ActionSkipped, Status: normalized}, nil
		}
		s.log.Info("commission removed", "consulta_id", c.ID, "status", normalized)
		return &Result{Action: ActionDeleted, Status: normalized}, nil
	}

	base, tipoPlano, err := s.baseValue(ctx, c)
	if err != nil {
		return nil, err
	}

	psi, err := s.db.Users().Get(ctx, *c.PsicologoID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrPsicologoNotFound
		}
		return nil, fmt.Errorf("load psychologist: %w", err)
	}

	percent := s.cfg.PercentAutonomo
	if psi.TipoPessoa != nil && strings.EqualFold(*psi.TipoPessoa, "PJ") {
		percent = s.cfg.PercentPJ
	}
	commissionStatus := StatusRetido
	if psi.Status == "Ativo" {
		commissionStatus = StatusDisponivel
	}

	_, err = s.db.Commissions().GetByConsulta(ctx, c.ID)
	created := repo.IsNotFound(err)
	if err != nil && !created {
		return nil, fmt.Errorf("load commission: %w", err)
	}

	row := &repo.Commission{
		ConsultaID:  c.ID,
		PsicologoID: *c.PsicologoID,
		PacienteID:  c.PacienteID,
		Valor:       math.Max(0, base*percent),
		Percentual:  percent,
		Status:      commissionStatus,
		Periodo:     c.Date.In(s.loc).Format("2006-01"),
		TipoPlano:   tipoPlano,
		Type:        typeTag(motivo),
	}
	if err := s.db.Commissions().Upsert(ctx, row); err != nil {
		return nil, fmt.Errorf("upsert commission: %w", err)
	}

	action := ActionUpdated
	if created {
		action = ActionCreated
		s.audit(ctx, row)
	}
	s.log.Info("commission saved",
		"consulta_id", c.ID, "action", action, "valor", row.Valor, "tipo_plano", tipoPlano, "status", normalized)
	return &Result{Action: action, Status: normalized, Commission: row}, nil
}

// classify normalizes the consulta's raw status with its latest cancellation.
func (s *repasseService) classify(ctx context.Context, c *repo.Consulta) (status.Status, *bool, error) {
	canc, err := s.db.Cancelamentos().Latest(ctx, c.ID)
	if err != nil && !repo.IsNotFound(err) {
		return "", nil, fmt.Errorf("load cancelamento: %w", err)
	}

	var (
		deferido *bool
		nctx     = status.Context{
			DataConsulta:      c.StartsAt(s.loc),
			Now:               s.now(),
			AntecedenciaHoras: s.cfg.AntecedenciaHoras,
		}
	)
	if canc != nil {
		nctx.TipoAutor, nctx.Motivo = canc.Tipo, canc.Motivo
		deferido = Deferido(canc.Status)
	}
	nctx.PacienteNaoCompareceu, nctx.PsicologoNaoCompareceu = status.NoShowFlags(c.Status, nctx.TipoAutor)

	return status.Normalize(c.Status, nctx), deferido, nil
}

// Deferido maps a cancellation review status to the deferred flag.
func Deferido(review string) *bool {
	switch review {
	case "Deferido":
		v := true
		return &v
	case "Indeferido":
		v := false
		return &v
	default:
		return nil
	}
}

// baseValue is the per-session value the percentage applies to.
func (s *repasseService) baseValue(ctx context.Context, c *repo.Consulta) (float64, string, error) {
	value, tipo := c.Valor, "avulsa"

	sub, err := s.db.Planos().ActiveSubscription(ctx, c.PacienteID, c.Date)
	switch {
	case err == nil && sub.Plano != nil:
		if v, t, ok := planSessionValue(sub.Plano); ok {
			value, tipo = v, t
		}
	case err != nil && !repo.IsNotFound(err):
		return 0, "", fmt.Errorf("load subscription: %w", err)
	}

	if value <= 0 {
		price, err := s.db.Planos().HighestAvulsaPrice(ctx)
		if err != nil {
			return 0, "", err
		}
		value = price
	}
	return value, tipo, nil
}

func planSessionValue(p *repo.Plano) (float64, string, bool) {
	switch strings.ToLower(p.Tipo) {
	case "mensal":
		return p.Preco / 4, "mensal", true
	case "trimestral":
		return p.Preco / 12, "trimestral", true
	case "semestral":
		return p.Preco / 24, "semestral", true
	default:
		return 0, "", false
	}
}

func typeTag(motivo string) string {
	switch motivo {
	case MotivoCancelamentoPaciente, MotivoPacienteNaoCompareceu:
		return TipoRepasseCancelamentoPaciente
	case MotivoInatividade:
		return TipoRepasseCancelamentoInatividade
	default:
		return TipoRepasse
	}
}

func (s *repasseService) audit(ctx context.Context, row *repo.Commission) {
	meta, _ := json.Marshal(map[string]any{
		"consultaId": row.ConsultaID,
		"valor":      row.Valor,
		"percentual": row.Percentual,
		"tipoPlano":  row.TipoPlano,
		"periodo":    row.Periodo,
	})
	err := s.db.Audit().Create(ctx, &repo.AuditLog{
		UserID:   &row.PsicologoID,
		Action:   auditAction,
		Entity:   "commission",
		EntityID: row.ConsultaID.String(),
		Status:   "Sucesso",
		Metadata: string(meta),
	})
	if err != nil {
		s.log.Warn("commission audit failed", "consulta_id", row.ConsultaID, "error", err)
	}
}

func (s *repasseService) ProcessInBackground(ctx context.Context, consultaID uuid.UUID, motivo string) {
	if _, err := s.Process(ctx, consultaID, motivo); err != nil {
		s.log.Error("background commission failed", "consulta_id", consultaID, "motivo", motivo, "error", err)
	}
}

func (s *repasseService) Schedule(ctx context.Context, consultaID uuid.UUID, motivo string) {
	if s.queue != nil {
		err := s.queue.Enqueue(ctx, TaskKind, Task{ConsultaID: consultaID, Motivo: motivo})
		if err == nil {
			return
		}
		s.log.Warn("enqueue commission failed, running inline", "consulta_id", consultaID, "error", err)
	}
	go s.ProcessInBackground(context.WithoutCancel(ctx), consultaID, motivo)
}

func (s *repasseService) HandleTask(ctx context.Context, payload []byte) error {
	var t Task
	if err := json.Unmarshal(payload, &t); err != nil {
		return fmt.Errorf("decode repasse task: %w", err)
	}
	_, err := s.Process(ctx, t.ConsultaID, t.Motivo)
	return err
}
