package repo

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/estacaoterapia/estacao_backend/internal/schema"
)

var consultaColumns = []string{
	"id", "paciente_id", "psicologo_id", "date", "time", "valor", "status", "faturada",
	"origem_status", "tela_gatilho", "acao_saldo", "ciclo_plano_id", "created_at", "updated_at",
}

func (c *Consulta) dest() []any {
	return []any{
		&c.ID, &c.PacienteID, &c.PsicologoID, &c.Date, &c.Time, &c.Valor, &c.Status, &c.Faturada,
		&c.OrigemStatus, &c.TelaGatilho, &c.AcaoSaldo, &c.CicloPlanoID, &c.CreatedAt, &c.UpdatedAt,
	}
}

func qualify(t *entsql.SelectTable, cols []string) []string {
	return lo.Map(cols, func(col string, _ int) string { return t.C(col) })
}

type ConsultaRepo struct {
	db DBTX
}

func (r *ConsultaRepo) Get(ctx context.Context, id uuid.UUID) (*Consulta, error) {
	b := builder()
	query, args := b.Select(consultaColumns...).
		From(b.Table(schema.TableConsultas)).
		Where(entsql.EQ("id", id)).
		Query()

	var c Consulta
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(c.dest()...); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *ConsultaRepo) Create(ctx context.Context, c *Consulta) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = "Reservado"
	}

	_, err := execQuery(ctx, r.db, builder().Insert(schema.TableConsultas).
		Columns(consultaColumns...).
		Values(
			c.ID, c.PacienteID, c.PsicologoID, c.Date, c.Time, c.Valor, c.Status, c.Faturada,
			c.OrigemStatus, c.TelaGatilho, c.AcaoSaldo, c.CicloPlanoID, c.CreatedAt, c.UpdatedAt,
		))
	if err != nil {
		return fmt.Errorf("insert consulta: %w", err)
	}
	return nil
}

// StatusUpdate is the set of columns written on every status transition.
// Nil pointers leave the column untouched.
type StatusUpdate struct {
	Status       string
	Faturada     bool
	OrigemStatus *string
	TelaGatilho  *string
	AcaoSaldo    *string
}

func (r *ConsultaRepo) UpdateStatus(ctx context.Context, id uuid.UUID, u StatusUpdate) error {
	upd := builder().Update(schema.TableConsultas).
		Set("status", u.Status).
		Set("faturada", u.Faturada).
		Set("updated_at", time.Now())
	if u.OrigemStatus != nil {
		upd.Set("origem_status", *u.OrigemStatus)
	}
	if u.TelaGatilho != nil {
		upd.Set("tela_gatilho", *u.TelaGatilho)
	}
	if u.AcaoSaldo != nil {
		upd.Set("acao_saldo", *u.AcaoSaldo)
	}

	n, err := execQuery(ctx, r.db, upd.Where(entsql.EQ("id", id)))
	if err != nil {
		return fmt.Errorf("update consulta status: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ConsultaRepo) SetFaturada(ctx context.Context, id uuid.UUID, faturada bool) error {
	_, err := execQuery(ctx, r.db, builder().Update(schema.TableConsultas).
		Set("faturada", faturada).
		Set("updated_at", time.Now()).
		Where(entsql.EQ("id", id)))
	if err != nil {
		return fmt.Errorf("update consulta faturada: %w", err)
	}
	return nil
}

// HasOtherInProgress reports whether the patient or the psychologist already
// has a different consulta in progress.
func (r *ConsultaRepo) HasOtherInProgress(ctx context.Context, excludeID, pacienteID uuid.UUID, psicologoID *uuid.UUID) (bool, error) {
	participants := []*entsql.Predicate{entsql.EQ("paciente_id", pacienteID)}
	if psicologoID != nil {
		participants = append(participants, entsql.EQ("psicologo_id", *psicologoID))
	}

	b := builder()
	query, args := b.Select("id").
		From(b.Table(schema.TableConsultas)).
		Where(entsql.And(
			entsql.EQ("status", "EmAndamento"),
			entsql.NEQ("id", excludeID),
			entsql.Or(participants...),
		)).
		Limit(1).
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("query in-progress consultas: %w", err)
	}
	defer rows.Close()
	return rows.Next(), rows.Err()
}

func (r *ConsultaRepo) ListByStatus(ctx context.Context, status string) ([]*Consulta, error) {
	b := builder()
	query, args := b.Select(consultaColumns...).
		From(b.Table(schema.TableConsultas)).
		Where(entsql.EQ("status", status)).
		OrderBy(entsql.Desc("date")).
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list consultas: %w", err)
	}
	defer rows.Close()

	var out []*Consulta
	for rows.Next() {
		var c Consulta
		if err := rows.Scan(c.dest()...); err != nil {
			return nil, fmt.Errorf("scan consulta: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// CountByStatus groups consultas scheduled in [from, to) by status and faturada.
func (r *ConsultaRepo) CountByStatus(ctx context.Context, from, to time.Time) ([]StatusCount, error) {
	b := builder()
	query, args := b.Select("status", "faturada", entsql.Count("*")).
		From(b.Table(schema.TableConsultas)).
		Where(entsql.And(entsql.GTE("date", from), entsql.LT("date", to))).
		GroupBy("status", "faturada").
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count consultas: %w", err)
	}
	defer rows.Close()

	var out []StatusCount
	for rows.Next() {
		var sc StatusCount
		if err := rows.Scan(&sc.Status, &sc.Faturada, &sc.Total); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// ListInactive returns consultas in one of statuses that started at or before
// deadline and whose room misses at least one join mark.
func (r *ConsultaRepo) ListInactive(ctx context.Context, statuses []string, deadline time.Time) ([]InactivityCandidate, error) {
	b := builder()
	c := b.Table(schema.TableConsultas).As("c")
	rs := b.Table(schema.TableReservaSessao).As("r")

	cols := append(qualify(c, consultaColumns), rs.C("patient_joined_at"), rs.C("psychologist_joined_at"))
	query, args := b.Select(cols...).
		From(c).
		LeftJoin(rs).On(c.C("id"), rs.C("consulta_id")).
		Where(entsql.And(
			entsql.In(c.C("status"), lo.ToAnySlice(statuses)...),
			entsql.LTE(c.C("date"), deadline),
			entsql.Or(
				entsql.IsNull(rs.C("patient_joined_at")),
				entsql.IsNull(rs.C("psychologist_joined_at")),
			),
		)).
		OrderBy(c.C("date")).
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list inactive consultas: %w", err)
	}
	defer rows.Close()

	var out []InactivityCandidate
	for rows.Next() {
		var ic InactivityCandidate
		dest := append(ic.Consulta.dest(), &ic.PatientJoinedAt, &ic.PsychologistJoinedAt)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan inactive consulta: %w", err)
		}
		out = append(out, ic)
	}
	return out, rows.Err()
}

// ListReminders returns consultas in statuses scheduled in [from, to) that
// have a psychologist assigned, with both participants' names.
func (r *ConsultaRepo) ListReminders(ctx context.Context, statuses []string, from, to time.Time) ([]Reminder, error) {
	b := builder()
	c := b.Table(schema.TableConsultas).As("c")
	psi := b.Table(schema.TableUsers).As("psi")
	pac := b.Table(schema.TableUsers).As("pac")

	cols := append(qualify(c, consultaColumns), psi.C("nome"), psi.C("email"), pac.C("nome"))
	query, args := b.Select(cols...).
		From(c).
		Join(psi).On(c.C("psicologo_id"), psi.C("id")).
		Join(pac).On(c.C("paciente_id"), pac.C("id")).
		Where(entsql.And(
			entsql.In(c.C("status"), lo.ToAnySlice(statuses)...),
			entsql.GTE(c.C("date"), from),
			entsql.LT(c.C("date"), to),
		)).
		OrderBy(psi.C("id"), c.C("date")).
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		var rm Reminder
		dest := append(rm.Consulta.dest(), &rm.PsicologoNome, &rm.PsicologoEmail, &rm.PacienteNome)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		out = append(out, rm)
	}
	return out, rows.Err()
}
