// Package consulta drives the consulta lifecycle: start, finish, cancel,
// no-show and inactivity handling, and the admin status override.
package consulta

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/estacaoterapia/estacao_backend/config"
	"github.com/estacaoterapia/estacao_backend/internal/repo"
	"github.com/estacaoterapia/estacao_backend/internal/service/repasse"
	"github.com/estacaoterapia/estacao_backend/internal/service/status"
)

// cancelamentoEmAnalise is the review state of a fresh cancellation.
const cancelamentoEmAnalise = "EmAnalise"

// StartWindow is how long after the scheduled time a consulta may start.
const StartWindow = 10 * time.Minute

// earlyStart is how close to the scheduled time the inactivity sweep already
// moves a consulta to EmAndamento.
const earlyStart = time.Minute

// Party names who is concerned by a no-show, cancellation or reschedule.
type Party string

const (
	PartyPaciente  Party = "paciente"
	PartyPsicologo Party = "psicologo"
	PartyAmbos     Party = "ambos"
)

func ParseParty(s string) (Party, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paciente", "patient":
		return PartyPaciente, nil
	case "psicologo", "psicólogo", "psychologist":
		return PartyPsicologo, nil
	case "ambos", "both":
		return PartyAmbos, nil
	default:
		return "", ErrInvalidParty
	}
}

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type StatusChange struct {
	Status  string
	Origem  status.Origem
	Tela    string
	ActorID *uuid.UUID
	// Motivo is passed on to the commission recomputation.
	Motivo string
}

type InactivityOutcome struct {
	ConsultaID uuid.UUID `json:"consultaId"`
	Action     string    `json:"action"` // noop, started, marked
	Status     string    `json:"status"`
}

type Estatisticas struct {
	Total                   int     `json:"total"`
	Agendadas               int     `json:"agendadas"`
	Realizadas              int     `json:"realizadas"`
	Faturadas               int     `json:"faturadas"`
	Canceladas              int     `json:"canceladas"`
	NaoCompareceu           int     `json:"naoCompareceu"`
	PercentualRealizadas    float64 `json:"percentualRealizadas"`
	PercentualFaturadas     float64 `json:"percentualFaturadas"`
	PercentualCanceladas    float64 `json:"percentualCanceladas"`
	PercentualNaoCompareceu float64 `json:"percentualNaoCompareceu"`
}

// Notifier tells participants about status changes.
type Notifier interface {
	StatusChanged(ctx context.Context, c *repo.Consulta, previous string)
}

// Repasse schedules commission recomputation.
type Repasse interface {
	Schedule(ctx context.Context, consultaID uuid.UUID, motivo string)
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	// CheckParticipant fails with ErrNotParticipant unless userID is the
	// consulta's patient or psychologist.
	CheckParticipant(ctx context.Context, id, userID uuid.UUID) error
	Iniciar(ctx context.Context, id uuid.UUID) (*repo.Consulta, error)
	Finalizar(ctx context.Context, id uuid.UUID, force bool) (*repo.Consulta, error)
	AtualizarStatus(ctx context.Context, id uuid.UUID, ch StatusChange) (*repo.Consulta, error)
	CancelarPorPaciente(ctx context.Context, id uuid.UUID, dentroDoPrazo bool, motivo string) (*repo.Consulta, error)
	CancelarPorPsicologo(ctx context.Context, id uuid.UUID, dentroDoPrazo bool, motivo string) (*repo.Consulta, error)
	MarcarNaoComparecimento(ctx context.Context, id uuid.UUID, quem Party) (*repo.Consulta, error)
	ProcessarInatividade(ctx context.Context, id uuid.UUID, quem Party) (*InactivityOutcome, error)
	Reagendar(ctx context.Context, id uuid.UUID, quem Party, dentroDoPrazo bool) (*repo.Consulta, error)
	ListarPorStatus(ctx context.Context, st string) ([]*repo.Consulta, error)
	ObterEstatisticas(ctx context.Context, from, to time.Time) (*Estatisticas, error)
	// SweepInactive runs ProcessarInatividade for every overdue consulta
	// missing a join and returns how many were marked.
	SweepInactive(ctx context.Context) (int, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type Option func(*consultaService)

func WithClock(now func() time.Time) Option {
	return func(s *consultaService) { s.now = now }
}

type consultaService struct {
	db       repo.Store
	repasse  Repasse
	notifier Notifier
	loc      *time.Location
	now      func() time.Time
	log      *slog.Logger
}

func New(db repo.Store, rep Repasse, notifier Notifier, cfg config.RepasseConfig, log *slog.Logger, opts ...Option) (Service, error) {
	tz := lo.Ternary(cfg.Timezone == "", "America/Sao_Paulo", cfg.Timezone)
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	if log == nil {
		log = slog.Default()
	}
	s := &consultaService{
		db:       db,
		repasse:  rep,
		notifier: notifier,
		loc:      loc,
		now:      time.Now,
		log:      log.With("component", "consulta"),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *consultaService) get(ctx context.Context, id uuid.UUID) (*repo.Consulta, error) {
	c, err := s.db.Consultas().Get(ctx, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get consulta: %w", err)
	}
	return c, nil
}

func (s *consultaService) CheckParticipant(ctx context.Context, id, userID uuid.UUID) error {
	c, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if c.PacienteID == userID || (c.PsicologoID != nil && *c.PsicologoID == userID) {
		return nil
	}
	return ErrNotParticipant
}

func (s *consultaService) Iniciar(ctx context.Context, id uuid.UUID) (*repo.Consulta, error) {
	c, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if lo.Contains(status.NotStartable, c.Status) {
		return nil, ErrNotStartable
	}

	start := c.StartsAt(s.loc)
	now := s.now()
	if now.Before(start) || !now.Before(start.Add(StartWindow)) {
		return nil, ErrOutsideWindow
	}

	busy, err := s.db.Consultas().HasOtherInProgress(ctx, c.ID, c.PacienteID, c.PsicologoID)
	if err != nil {
		return nil, err
	}
	if busy {
		return nil, ErrAnotherInProgress
	}

	return s.start(ctx, c)
}

// start moves c to EmAndamento without window checks.
func (s *consultaService) start(ctx context.Context, c *repo.Consulta) (*repo.Consulta, error) {
	previous := c.Status
	err := s.db.WithTx(ctx, func(tx repo.Store) error {
		if err := tx.Consultas().UpdateStatus(ctx, c.ID, statusUpdate(string(status.EmAndamento), true, status.OrigemSistemico, status.TelaModulo, status.NaoAltera)); err != nil {
			return err
		}
		return tx.Reservas().SetStatusByConsulta(ctx, c.ID, status.RoomAndamento)
	})
	if err != nil {
		return nil, fmt.Errorf("start consulta: %w", err)
	}

	c.Status, c.Faturada = string(status.EmAndamento), true
	s.log.Info("consulta started", "consulta_id", c.ID)
	s.schedule(ctx, c.ID, repasse.MotivoRecalculo)
	s.notify(ctx, c, previous)
	return c, nil
}

func (s *consultaService) Finalizar(ctx context.Context, id uuid.UUID, force bool) (*repo.Consulta, error) {
	c, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status == string(status.Realizada) {
		return c, nil
	}

	room, err := s.db.Reservas().GetByConsulta(ctx, id)
	if err != nil && !repo.IsNotFound(err) {
		return nil, fmt.Errorf("load room: %w", err)
	}
	if room != nil && room.Status == status.RoomConcluido {
		return c, nil
	}
	if !status.TransitionAllowed(c.Status, string(status.Realizada)) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrForbiddenTransition, c.Status, status.Realizada)
	}
	if !force && (room == nil || room.PatientJoinedAt == nil || room.PsychologistJoinedAt == nil) {
		return nil, ErrParticipantsAbsent
	}

	previous := c.Status
	err = s.db.WithTx(ctx, func(tx repo.Store) error {
		if err := tx.Consultas().UpdateStatus(ctx, id, statusUpdate(string(status.Realizada), true, status.OrigemSistemico, status.TelaModulo, status.NaoAltera)); err != nil {
			return err
		}
		return tx.Reservas().SetStatusByConsulta(ctx, id, status.RoomConcluido)
	})
	if err != nil {
		return nil, fmt.Errorf("finalize consulta: %w", err)
	}

	c.Status, c.Faturada = string(status.Realizada), true
	s.log.Info("consulta finalized", "consulta_id", id, "forced", force)
	s.schedule(ctx, id, repasse.MotivoConcluida)
	s.notify(ctx, c, previous)
	return c, nil
}

func (s *consultaService) AtualizarStatus(ctx context.Context, id uuid.UUID, ch StatusChange) (*repo.Consulta, error) {
	if strings.TrimSpace(ch.Status) == "" {
		return nil, ErrMissingStatus
	}
	c, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, c, ch, nil)
}

// transition applies ch to c. A non-nil canc is inserted in the same
// transaction as the status write, and only when the transition is allowed.
func (s *consultaService) transition(ctx context.Context, c *repo.Consulta, ch StatusChange, canc *repo.CancelamentoSessao) (*repo.Consulta, error) {
	id := c.ID
	if c.Status == ch.Status {
		return c, nil
	}

	info, ok := status.Lookup(ch.Status)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStatus, ch.Status)
	}
	if !status.TransitionAllowed(c.Status, ch.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrForbiddenTransition, c.Status, ch.Status)
	}

	var deferido *bool
	if canc != nil {
		deferido = repasse.Deferido(canc.Status)
	} else {
		latest, err := s.db.Cancelamentos().Latest(ctx, id)
		switch {
		case err == nil:
			deferido = repasse.Deferido(latest.Status)
		case !repo.IsNotFound(err):
			return nil, fmt.Errorf("load cancelamento: %w", err)
		}
	}

	tela := lo.Ternary(ch.Tela == "", info.Tela, ch.Tela)
	origem := lo.Ternary(ch.Origem == "", status.OrigemSistemico, ch.Origem)
	faturada := info.Pays(deferido)
	giveBack := info.ReturnsSession(deferido) && !lo.Contains(status.AlreadyReturned, c.Status) && c.CicloPlanoID != nil

	previous := c.Status
	err := s.db.WithTx(ctx, func(tx repo.Store) error {
		if canc != nil {
			if err := tx.Cancelamentos().Create(ctx, canc); err != nil {
				return fmt.Errorf("record cancelamento: %w", err)
			}
		}
		if err := tx.Consultas().UpdateStatus(ctx, id, statusUpdate(ch.Status, faturada, origem, tela, info.Balance)); err != nil {
			return err
		}
		if giveBack {
			if err := tx.Planos().ReturnSession(ctx, *c.CicloPlanoID); err != nil {
				return fmt.Errorf("return session: %w", err)
			}
		}
		if room := roomStatusFor(ch.Status); room != "" {
			return tx.Reservas().SetStatusByConsulta(ctx, id, room)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update consulta status: %w", err)
	}

	c.Status, c.Faturada = ch.Status, faturada
	c.OrigemStatus, c.TelaGatilho = lo.ToPtr(string(origem)), &tela
	c.AcaoSaldo = lo.ToPtr(string(info.Balance))

	s.audit(ctx, c, previous, ch)
	s.schedule(ctx, id, lo.Ternary(ch.Motivo == "", motivoFor(ch.Status), ch.Motivo))
	s.notify(ctx, c, previous)
	s.log.Info("consulta status changed", "consulta_id", id, "from", previous, "to", ch.Status, "session_returned", giveBack)
	return c, nil
}

func (s *consultaService) CancelarPorPaciente(ctx context.Context, id uuid.UUID, dentroDoPrazo bool, motivo string) (*repo.Consulta, error) {
	st := lo.Ternary(dentroDoPrazo, status.CanceladaPacienteNoPrazo, status.CanceladaPacienteForaPrazo)
	return s.cancel(ctx, id, "Paciente", motivo, StatusChange{
		Status: string(st),
		Origem: status.OrigemPaciente,
		Tela:   status.TelaHome,
		Motivo: repasse.MotivoCancelamentoPaciente,
	})
}

func (s *consultaService) CancelarPorPsicologo(ctx context.Context, id uuid.UUID, dentroDoPrazo bool, motivo string) (*repo.Consulta, error) {
	st := lo.Ternary(dentroDoPrazo, status.CanceladaPsicologoNoPrazo, status.CanceladaPsicologoForaPrazo)
	return s.cancel(ctx, id, "Psicologo", motivo, StatusChange{
		Status: string(st),
		Origem: status.OrigemPsicologo,
		Tela:   status.TelaHome,
	})
}

func (s *consultaService) cancel(ctx context.Context, id uuid.UUID, tipo, motivo string, ch StatusChange) (*repo.Consulta, error) {
	c, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, c, ch, &repo.CancelamentoSessao{
		ConsultaID: id,
		Tipo:       tipo,
		Motivo:     motivo,
		Status:     cancelamentoEmAnalise,
		Data:       s.now(),
	})
}

func noShowStatus(quem Party) (status.Status, error) {
	switch quem {
	case PartyPaciente:
		return status.PacienteNaoCompareceu, nil
	case PartyPsicologo:
		return status.PsicologoNaoCompareceu, nil
	case PartyAmbos:
		return status.AmbosNaoCompareceram, nil
	default:
		return "", ErrInvalidParty
	}
}

func (s *consultaService) MarcarNaoComparecimento(ctx context.Context, id uuid.UUID, quem Party) (*repo.Consulta, error) {
	st, err := noShowStatus(quem)
	if err != nil {
		return nil, err
	}
	return s.AtualizarStatus(ctx, id, StatusChange{
		Status: string(st),
		Origem: status.OrigemSistemico,
		Tela:   status.TelaModulo,
	})
}

// processed lists statuses the inactivity sweep never touches again.
var processed = []string{
	string(status.Realizada),
	string(status.PacienteNaoCompareceu),
	string(status.PsicologoNaoCompareceu),
	string(status.AmbosNaoCompareceram),
	status.CanceladaPorInatividade,
}

func (s *consultaService) ProcessarInatividade(ctx context.Context, id uuid.UUID, quem Party) (*InactivityOutcome, error) {
	st, err := noShowStatus(quem)
	if err != nil {
		return nil, err
	}
	c, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	out := &InactivityOutcome{ConsultaID: id, Action: "noop", Status: c.Status}
	if lo.Contains(processed, c.Status) {
		return out, nil
	}

	start := c.StartsAt(s.loc)
	now := s.now()
	if now.Before(start.Add(StartWindow)) {
		if now.Before(start) && start.Sub(now) > earlyStart {
			return out, nil
		}
		if c.Status == string(status.EmAndamento) || lo.Contains(status.NotStartable, c.Status) {
			return out, nil
		}
		if _, err := s.start(ctx, c); err != nil {
			return nil, err
		}
		out.Action, out.Status = "started", c.Status
		return out, nil
	}

	motivo := lo.Ternary(quem == PartyPaciente, repasse.MotivoPacienteNaoCompareceu, repasse.MotivoInatividade)
	updated, err := s.AtualizarStatus(ctx, id, StatusChange{
		Status: string(st),
		Origem: status.OrigemSistemico,
		Tela:   status.TelaSistemico,
		Motivo: motivo,
	})
	if err != nil {
		return nil, err
	}
	out.Action, out.Status = "marked", updated.Status
	return out, nil
}

func (s *consultaService) Reagendar(ctx context.Context, id uuid.UUID, quem Party, dentroDoPrazo bool) (*repo.Consulta, error) {
	var ch StatusChange
	switch quem {
	case PartyPaciente:
		if !dentroDoPrazo {
			return nil, ErrRescheduleOutOfTime
		}
		ch = StatusChange{Status: string(status.ReagendadaPacienteNoPrazo), Origem: status.OrigemPaciente, Tela: status.TelaHome}
	case PartyPsicologo:
		st := lo.Ternary(dentroDoPrazo, status.ReagendadaPsicologoNoPrazo, status.ReagendadaPsicologoForaPrazo)
		ch = StatusChange{Status: string(st), Origem: status.OrigemPsicologo, Tela: status.TelaHome}
	default:
		return nil, ErrInvalidParty
	}
	return s.AtualizarStatus(ctx, id, ch)
}

func (s *consultaService) ListarPorStatus(ctx context.Context, st string) ([]*repo.Consulta, error) {
	if strings.TrimSpace(st) == "" {
		return nil, ErrMissingStatus
	}
	list, err := s.db.Consultas().ListByStatus(ctx, st)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*repo.Consulta{}
	}
	return list, nil
}

var naoCompareceu = []string{
	string(status.PacienteNaoCompareceu),
	string(status.PsicologoNaoCompareceu),
	string(status.AmbosNaoCompareceram),
}

func (s *consultaService) ObterEstatisticas(ctx context.Context, from, to time.Time) (*Estatisticas, error) {
	if !to.After(from) {
		return nil, ErrInvalidPeriod
	}
	counts, err := s.db.Consultas().CountByStatus(ctx, from, to)
	if err != nil {
		return nil, err
	}

	var e Estatisticas
	for _, sc := range counts {
		e.Total += sc.Total
		if sc.Faturada {
			e.Faturadas += sc.Total
		}
		switch {
		case sc.Status == status.Reservado || sc.Status == string(status.Agendada):
			e.Agendadas += sc.Total
		case sc.Status == string(status.Realizada):
			e.Realizadas += sc.Total
		case lo.Contains(naoCompareceu, sc.Status):
			e.NaoCompareceu += sc.Total
		case strings.Contains(sc.Status, "Cancel"):
			e.Canceladas += sc.Total
		}
	}
	e.PercentualRealizadas = percent(e.Realizadas, e.Total)
	e.PercentualFaturadas = percent(e.Faturadas, e.Total)
	e.PercentualCanceladas = percent(e.Canceladas, e.Total)
	e.PercentualNaoCompareceu = percent(e.NaoCompareceu, e.Total)
	return &e, nil
}

func (s *consultaService) SweepInactive(ctx context.Context) (int, error) {
	deadline := s.now().Add(-StartWindow)
	// consultas are stored by day; the exact HH:MM is checked per candidate
	candidates, err := s.db.Consultas().ListInactive(ctx,
		[]string{status.Reservado, string(status.Agendada), string(status.EmAndamento)},
		deadline)
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, ic := range candidates {
		if s.now().Before(ic.Consulta.StartsAt(s.loc).Add(StartWindow)) {
			continue
		}
		quem := absentParty(ic)
		out, err := s.ProcessarInatividade(ctx, ic.Consulta.ID, quem)
		if err != nil {
			s.log.Error("inactivity processing failed", "consulta_id", ic.Consulta.ID, "error", err)
			continue
		}
		if out.Action == "marked" {
			marked++
		}
	}
	return marked, nil
}

func absentParty(ic repo.InactivityCandidate) Party {
	switch {
	case ic.PatientJoinedAt == nil && ic.PsychologistJoinedAt == nil:
		return PartyAmbos
	case ic.PatientJoinedAt == nil:
		return PartyPaciente
	default:
		return PartyPsicologo
	}
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*10000) / 100
}

func statusUpdate(st string, faturada bool, origem status.Origem, tela string, saldo status.Balance) repo.StatusUpdate {
	return repo.StatusUpdate{
		Status:       st,
		Faturada:     faturada,
		OrigemStatus: lo.ToPtr(string(origem)),
		TelaGatilho:  lo.ToPtr(tela),
		AcaoSaldo:    lo.ToPtr(string(saldo)),
	}
}

func roomStatusFor(st string) string {
	switch st {
	case string(status.EmAndamento):
		return status.RoomAndamento
	case string(status.Realizada):
		return status.RoomConcluido
	default:
		return ""
	}
}

func motivoFor(st string) string {
	switch {
	case st == string(status.Realizada):
		return repasse.MotivoConcluida
	case st == string(status.PacienteNaoCompareceu):
		return repasse.MotivoPacienteNaoCompareceu
	case strings.HasPrefix(st, "CanceladaPaciente"):
		return repasse.MotivoCancelamentoPaciente
	default:
		return repasse.MotivoRecalculo
	}
}

func (s *consultaService) schedule(ctx context.Context, id uuid.UUID, motivo string) {
	if s.repasse != nil {
		s.repasse.Schedule(ctx, id, motivo)
	}
}

func (s *consultaService) notify(ctx context.Context, c *repo.Consulta, previous string) {
	if s.notifier != nil {
		s.notifier.StatusChanged(ctx, c, previous)
	}
}

func (s *consultaService) audit(ctx context.Context, c *repo.Consulta, previous string, ch StatusChange) {
	meta, _ := json.Marshal(map[string]string{
		"de":     previous,
		"para":   ch.Status,
		"origem": string(ch.Origem),
	})
	err := s.db.Audit().Create(ctx, &repo.AuditLog{
		UserID:   ch.ActorID,
		Action:   "consulta_status_alterado",
		Entity:   "consulta",
		EntityID: c.ID.String(),
		Status:   "Sucesso",
		Metadata: string(meta),
	})
	if err != nil {
		s.log.Warn("status audit failed", "consulta_id", c.ID, "error", err)
	}
}
