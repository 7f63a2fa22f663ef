// Package repotest provides an in-memory repo.Store for service tests.
package repotest

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/estacaoterapia/estacao_backend/internal/repo"
)

// Memory is a goroutine-safe repo.Store. Seed it through the exported maps
// before handing it to a service; read them back to assert on writes.
type Memory struct {
	mu sync.Mutex

	UsersByID     map[uuid.UUID]*repo.User
	Subscriptions map[uuid.UUID]*repo.Assinatura // by user id
	AvulsaPrice   float64
	Returned      map[uuid.UUID]int // sessions given back, by ciclo id
	ConsultasByID map[uuid.UUID]*repo.Consulta
	Rooms         map[uuid.UUID]*repo.ReservaSessao // by consulta id
	Cancels       map[uuid.UUID][]*repo.CancelamentoSessao
	Ledger        map[uuid.UUID]*repo.Commission // by consulta id
	Grants        []*repo.ConsultaAvulsa
	Creditos      []*repo.CreditoAvulso
	AuditLogs     []*repo.AuditLog

	// Fail makes the named operation ("Commissions.Upsert", ...) return the error.
	Fail map[string]error

	// Upserts counts commission upsert calls.
	Upserts int
}

var _ repo.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		UsersByID:     map[uuid.UUID]*repo.User{},
		Subscriptions: map[uuid.UUID]*repo.Assinatura{},
		Returned:      map[uuid.UUID]int{},
		ConsultasByID: map[uuid.UUID]*repo.Consulta{},
		Rooms:         map[uuid.UUID]*repo.ReservaSessao{},
		Cancels:       map[uuid.UUID][]*repo.CancelamentoSessao{},
		Ledger:        map[uuid.UUID]*repo.Commission{},
		Fail:          map[string]error{},
	}
}

// AddUser seeds a user and returns its id.
func (m *Memory) AddUser(u repo.User) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Status == "" {
		u.Status = "Ativo"
	}
	m.UsersByID[u.ID] = &u
	return u.ID
}

// AddConsulta seeds a consulta and returns its id.
func (m *Memory) AddConsulta(c repo.Consulta) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	m.ConsultasByID[c.ID] = &c
	return c.ID
}

// AddRoom seeds a room for its consulta.
func (m *Memory) AddRoom(r repo.ReservaSessao) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	m.Rooms[r.ConsultaID] = &r
	return r.ID
}

// Consulta returns a snapshot of a stored consulta.
func (m *Memory) Consulta(id uuid.UUID) *repo.Consulta {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.ConsultasByID[id]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

// Room returns a snapshot of a consulta's room.
func (m *Memory) Room(consultaID uuid.UUID) *repo.ReservaSessao {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.Rooms[consultaID]
	if !ok {
		return nil
	}
	cp := *r
	return &cp
}

// Commission returns a snapshot of a consulta's ledger row.
func (m *Memory) Commission(consultaID uuid.UUID) *repo.Commission {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Ledger[consultaID]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

// AuditCount returns how many audit entries carry action.
func (m *Memory) AuditCount(action string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lo.CountBy(m.AuditLogs, func(a *repo.AuditLog) bool { return a.Action == action })
}

func (m *Memory) fail(op string) error {
	return m.Fail[op]
}

func (m *Memory) Users() repo.UserStore                 { return memUsers{m} }
func (m *Memory) Planos() repo.PlanoStore               { return memPlanos{m} }
func (m *Memory) Consultas() repo.ConsultaStore         { return memConsultas{m} }
func (m *Memory) Reservas() repo.ReservaStore           { return memReservas{m} }
func (m *Memory) Cancelamentos() repo.CancelamentoStore { return memCancelamentos{m} }
func (m *Memory) Commissions() repo.CommissionStore     { return memCommissions{m} }
func (m *Memory) Avulsas() repo.AvulsaStore             { return memAvulsas{m} }
func (m *Memory) Audit() repo.AuditStore                { return memAudit{m} }

// WithTx does not isolate writes; fn's error is returned as-is.
func (m *Memory) WithTx(_ context.Context, fn func(tx repo.Store) error) error {
	return fn(m)
}

// ---------------------------------------------------------------------------
// users / planos
// ---------------------------------------------------------------------------

type memUsers struct{ m *Memory }

func (s memUsers) Get(_ context.Context, id uuid.UUID) (*repo.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.UsersByID[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

type memPlanos struct{ m *Memory }

func (s memPlanos) ActiveSubscription(_ context.Context, userID uuid.UUID, at time.Time) (*repo.Assinatura, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	a, ok := s.m.Subscriptions[userID]
	if !ok || a.Status != "Ativo" || (a.DataFim != nil && a.DataFim.Before(at)) {
		return nil, repo.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s memPlanos) HighestAvulsaPrice(context.Context) (float64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return s.m.AvulsaPrice, nil
}

func (s memPlanos) ReturnSession(_ context.Context, cicloID uuid.UUID) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Planos.ReturnSession"); err != nil {
		return err
	}
	s.m.Returned[cicloID]++
	return nil
}

// ---------------------------------------------------------------------------
// consultas
// ---------------------------------------------------------------------------

type memConsultas struct{ m *Memory }

func (s memConsultas) Get(_ context.Context, id uuid.UUID) (*repo.Consulta, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c, ok := s.m.ConsultasByID[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s memConsultas) Create(_ context.Context, c *repo.Consulta) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	cp := *c
	s.m.ConsultasByID[c.ID] = &cp
	return nil
}

func (s memConsultas) UpdateStatus(_ context.Context, id uuid.UUID, u repo.StatusUpdate) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Consultas.UpdateStatus"); err != nil {
		return err
	}
	c, ok := s.m.ConsultasByID[id]
	if !ok {
		return repo.ErrNotFound
	}
	c.Status = u.Status
	c.Faturada = u.Faturada
	if u.OrigemStatus != nil {
		c.OrigemStatus = u.OrigemStatus
	}
	if u.TelaGatilho != nil {
		c.TelaGatilho = u.TelaGatilho
	}
	if u.AcaoSaldo != nil {
		c.AcaoSaldo = u.AcaoSaldo
	}
	c.UpdatedAt = time.Now()
	return nil
}

func (s memConsultas) SetFaturada(_ context.Context, id uuid.UUID, faturada bool) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if c, ok := s.m.ConsultasByID[id]; ok {
		c.Faturada = faturada
	}
	return nil
}

func (s memConsultas) HasOtherInProgress(_ context.Context, excludeID, pacienteID uuid.UUID, psicologoID *uuid.UUID) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for id, c := range s.m.ConsultasByID {
		if id == excludeID || c.Status != "EmAndamento" {
			continue
		}
		if c.PacienteID == pacienteID {
			return true, nil
		}
		if psicologoID != nil && c.PsicologoID != nil && *c.PsicologoID == *psicologoID {
			return true, nil
		}
	}
	return false, nil
}

func (s memConsultas) ListByStatus(_ context.Context, status string) ([]*repo.Consulta, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []*repo.Consulta
	for _, c := range s.m.ConsultasByID {
		if c.Status == status {
			cp := *c
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *repo.Consulta) int { return b.Date.Compare(a.Date) })
	return out, nil
}

func (s memConsultas) CountByStatus(_ context.Context, from, to time.Time) ([]repo.StatusCount, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	type key struct {
		status   string
		faturada bool
	}
	counts := map[key]int{}
	for _, c := range s.m.ConsultasByID {
		if c.Date.Before(from) || !c.Date.Before(to) {
			continue
		}
		counts[key{c.Status, c.Faturada}]++
	}
	out := make([]repo.StatusCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, repo.StatusCount{Status: k.status, Faturada: k.faturada, Total: n})
	}
	return out, nil
}

func (s memConsultas) ListInactive(_ context.Context, statuses []string, deadline time.Time) ([]repo.InactivityCandidate, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []repo.InactivityCandidate
	for _, c := range s.m.ConsultasByID {
		if !lo.Contains(statuses, c.Status) || c.Date.After(deadline) {
			continue
		}
		ic := repo.InactivityCandidate{Consulta: *c}
		if r, ok := s.m.Rooms[c.ID]; ok {
			ic.PatientJoinedAt, ic.PsychologistJoinedAt = r.PatientJoinedAt, r.PsychologistJoinedAt
		}
		if ic.PatientJoinedAt != nil && ic.PsychologistJoinedAt != nil {
			continue
		}
		out = append(out, ic)
	}
	slices.SortFunc(out, func(a, b repo.InactivityCandidate) int { return a.Consulta.Date.Compare(b.Consulta.Date) })
	return out, nil
}

func (s memConsultas) ListReminders(_ context.Context, statuses []string, from, to time.Time) ([]repo.Reminder, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []repo.Reminder
	for _, c := range s.m.ConsultasByID {
		if !lo.Contains(statuses, c.Status) || c.Date.Before(from) || !c.Date.Before(to) || c.PsicologoID == nil {
			continue
		}
		psi, ok := s.m.UsersByID[*c.PsicologoID]
		if !ok {
			continue
		}
		pac, ok := s.m.UsersByID[c.PacienteID]
		if !ok {
			continue
		}
		out = append(out, repo.Reminder{Consulta: *c, PsicologoNome: psi.Nome, PsicologoEmail: psi.Email, PacienteNome: pac.Nome})
	}
	slices.SortFunc(out, func(a, b repo.Reminder) int { return a.Consulta.Date.Compare(b.Consulta.Date) })
	return out, nil
}

// ---------------------------------------------------------------------------
// reservas
// ---------------------------------------------------------------------------

type memReservas struct{ m *Memory }

func (s memReservas) withConsulta(r *repo.ReservaSessao) *repo.ReservaSessao {
	cp := *r
	if c, ok := s.m.ConsultasByID[r.ConsultaID]; ok {
		cc := *c
		cp.Consulta = &cc
	}
	return &cp
}

func (s memReservas) GetByChannel(_ context.Context, channel string) (*repo.ReservaSessao, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, r := range s.m.Rooms {
		if r.AgoraChannel != nil && *r.AgoraChannel == channel {
			return s.withConsulta(r), nil
		}
	}
	return nil, repo.ErrNotFound
}

func (s memReservas) GetByConsulta(_ context.Context, consultaID uuid.UUID) (*repo.ReservaSessao, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	r, ok := s.m.Rooms[consultaID]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return s.withConsulta(r), nil
}

func (s memReservas) Create(_ context.Context, room *repo.ReservaSessao) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if room.ID == uuid.Nil {
		room.ID = uuid.New()
	}
	cp := *room
	cp.Consulta = nil
	s.m.Rooms[room.ConsultaID] = &cp
	return nil
}

func (s memReservas) byID(id uuid.UUID) *repo.ReservaSessao {
	for _, r := range s.m.Rooms {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (s memReservas) SaveTokens(_ context.Context, id uuid.UUID, p repo.TokenPair) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Reservas.SaveTokens"); err != nil {
		return err
	}
	r := s.byID(id)
	if r == nil {
		return repo.ErrNotFound
	}
	r.PatientID, r.PsychologistID = lo.ToPtr(p.PatientID), lo.ToPtr(p.PsychologistID)
	r.UIDPatient, r.UIDPsychologist = lo.ToPtr(p.UIDPatient), lo.ToPtr(p.UIDPsychologist)
	r.AgoraTokenPatient, r.AgoraTokenPsychologist = lo.ToPtr(p.TokenPatient), lo.ToPtr(p.TokenPsychologist)
	if p.Channel != "" {
		r.AgoraChannel = lo.ToPtr(p.Channel)
	}
	return nil
}

func (s memReservas) BackfillParticipants(_ context.Context, id uuid.UUID, patientID uuid.UUID, psychologistID *uuid.UUID) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if r := s.byID(id); r != nil {
		r.PatientID = lo.ToPtr(patientID)
		if psychologistID != nil {
			r.PsychologistID = lo.ToPtr(*psychologistID)
		}
	}
	return nil
}

func (s memReservas) MarkJoined(_ context.Context, id uuid.UUID, psychologist bool, userID *uuid.UUID, at time.Time) (*repo.JoinMarks, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	r := s.byID(id)
	if r == nil {
		return nil, repo.ErrNotFound
	}
	if psychologist {
		r.PsychologistJoinedAt = lo.ToPtr(at)
		if userID != nil {
			r.PsychologistID = lo.ToPtr(*userID)
		}
	} else {
		r.PatientJoinedAt = lo.ToPtr(at)
		if userID != nil {
			r.PatientID = lo.ToPtr(*userID)
		}
	}
	m := &repo.JoinMarks{}
	if r.PatientJoinedAt != nil {
		m.Patient = lo.ToPtr(*r.PatientJoinedAt)
	}
	if r.PsychologistJoinedAt != nil {
		m.Psychologist = lo.ToPtr(*r.PsychologistJoinedAt)
	}
	return m, nil
}

func (s memReservas) SetStatusByConsulta(_ context.Context, consultaID uuid.UUID, status string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if r, ok := s.m.Rooms[consultaID]; ok {
		r.Status = status
	}
	return nil
}

// ---------------------------------------------------------------------------
// cancelamentos / commissions / avulsas / audit
// ---------------------------------------------------------------------------

type memCancelamentos struct{ m *Memory }

func (s memCancelamentos) Latest(_ context.Context, consultaID uuid.UUID) (*repo.CancelamentoSessao, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	list := s.m.Cancels[consultaID]
	if len(list) == 0 {
		return nil, repo.ErrNotFound
	}
	latest := lo.MaxBy(list, func(a, b *repo.CancelamentoSessao) bool { return a.Data.After(b.Data) })
	cp := *latest
	return &cp, nil
}

func (s memCancelamentos) Create(_ context.Context, c *repo.CancelamentoSessao) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Data.IsZero() {
		c.Data = time.Now()
	}
	if c.Status == "" {
		c.Status = "EmAnalise"
	}
	cp := *c
	s.m.Cancels[c.ConsultaID] = append(s.m.Cancels[c.ConsultaID], &cp)
	return nil
}

type memCommissions struct{ m *Memory }

func (s memCommissions) GetByConsulta(_ context.Context, consultaID uuid.UUID) (*repo.Commission, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c, ok := s.m.Ledger[consultaID]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s memCommissions) Upsert(_ context.Context, c *repo.Commission) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Commissions.Upsert"); err != nil {
		return err
	}
	s.m.Upserts++
	now := time.Now()
	if prev, ok := s.m.Ledger[c.ConsultaID]; ok {
		c.ID, c.CreatedAt = prev.ID, prev.CreatedAt
	} else {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	cp := *c
	s.m.Ledger[c.ConsultaID] = &cp
	return nil
}

func (s memCommissions) DeleteByConsulta(_ context.Context, consultaID uuid.UUID) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.Ledger[consultaID]; !ok {
		return 0, nil
	}
	delete(s.m.Ledger, consultaID)
	return 1, nil
}

type memAvulsas struct{ m *Memory }

func (s memAvulsas) CreateGrant(_ context.Context, g *repo.ConsultaAvulsa) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Avulsas.CreateGrant"); err != nil {
		return err
	}
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	cp := *g
	s.m.Grants = append(s.m.Grants, &cp)
	return nil
}

func (s memAvulsas) CreateCredito(_ context.Context, c *repo.CreditoAvulso) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Avulsas.CreateCredito"); err != nil {
		return err
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	cp := *c
	s.m.Creditos = append(s.m.Creditos, &cp)
	return nil
}

type memAudit struct{ m *Memory }

func (s memAudit) Create(_ context.Context, a *repo.AuditLog) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail("Audit.Create"); err != nil {
		return err
	}
	cp := *a
	s.m.AuditLogs = append(s.m.AuditLogs, &cp)
	return nil
}
