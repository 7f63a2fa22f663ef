package repo

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/estacaoterapia/estacao_backend/internal/schema"
)

var reservaColumns = []string{
	"id", "consulta_id", "status", "agora_channel", "patient_id", "psychologist_id",
	"uid_patient", "uid_psychologist", "agora_token_patient", "agora_token_psychologist",
	"patient_joined_at", "psychologist_joined_at", "scheduled_at", "created_at", "updated_at",
}

func (r *ReservaSessao) dest() []any {
	return []any{
		&r.ID, &r.ConsultaID, &r.Status, &r.AgoraChannel, &r.PatientID, &r.PsychologistID,
		&r.UIDPatient, &r.UIDPsychologist, &r.AgoraTokenPatient, &r.AgoraTokenPsychologist,
		&r.PatientJoinedAt, &r.PsychologistJoinedAt, &r.ScheduledAt, &r.CreatedAt, &r.UpdatedAt,
	}
}

type ReservaRepo struct {
	db DBTX
}

// GetByChannel loads the room bound to an RTC channel, with its consulta.
func (r *ReservaRepo) GetByChannel(ctx context.Context, channel string) (*ReservaSessao, error) {
	return r.getWithConsulta(ctx, func(rs *entsql.SelectTable) *entsql.Predicate {
		return entsql.EQ(rs.C("agora_channel"), channel)
	})
}

func (r *ReservaRepo) GetByConsulta(ctx context.Context, consultaID uuid.UUID) (*ReservaSessao, error) {
	return r.getWithConsulta(ctx, func(rs *entsql.SelectTable) *entsql.Predicate {
		return entsql.EQ(rs.C("consulta_id"), consultaID)
	})
}

func (r *ReservaRepo) getWithConsulta(ctx context.Context, where func(*entsql.SelectTable) *entsql.Predicate) (*ReservaSessao, error) {
	b := builder()
	rs := b.Table(schema.TableReservaSessao).As("r")
	c := b.Table(schema.TableConsultas).As("c")

	query, args := b.Select(append(qualify(rs, reservaColumns), qualify(c, consultaColumns)...)...).
		From(rs).
		Join(c).On(rs.C("consulta_id"), c.C("id")).
		Where(where(rs)).
		Limit(1).
		Query()

	room := &ReservaSessao{Consulta: &Consulta{}}
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(append(room.dest(), room.Consulta.dest()...)...); err != nil {
		return nil, notFound(err)
	}
	return room, nil
}

func (r *ReservaRepo) Create(ctx context.Context, room *ReservaSessao) error {
	if room.ID == uuid.Nil {
		room.ID = uuid.New()
	}
	now := time.Now()
	room.CreatedAt, room.UpdatedAt = now, now

	_, err := execQuery(ctx, r.db, builder().Insert(schema.TableReservaSessao).
		Columns(reservaColumns...).
		Values(
			room.ID, room.ConsultaID, room.Status, room.AgoraChannel, room.PatientID, room.PsychologistID,
			room.UIDPatient, room.UIDPsychologist, room.AgoraTokenPatient, room.AgoraTokenPsychologist,
			room.PatientJoinedAt, room.PsychologistJoinedAt, room.ScheduledAt, room.CreatedAt, room.UpdatedAt,
		))
	if err != nil {
		return fmt.Errorf("insert reserva_sessao: %w", err)
	}
	return nil
}

// TokenPair is everything written when a room's credentials are (re)issued.
type TokenPair struct {
	PatientID         uuid.UUID
	PsychologistID    uuid.UUID
	UIDPatient        int64
	UIDPsychologist   int64
	TokenPatient      string
	TokenPsychologist string
	// Channel is written only when non-empty.
	Channel string
}

// SaveTokens persists both tokens in a single statement.
func (r *ReservaRepo) SaveTokens(ctx context.Context, id uuid.UUID, p TokenPair) error {
	upd := builder().Update(schema.TableReservaSessao).
		Set("patient_id", p.PatientID).
		Set("psychologist_id", p.PsychologistID).
		Set("uid_patient", p.UIDPatient).
		Set("uid_psychologist", p.UIDPsychologist).
		Set("agora_token_patient", p.TokenPatient).
		Set("agora_token_psychologist", p.TokenPsychologist).
		Set("updated_at", time.Now())
	if p.Channel != "" {
		upd.Set("agora_channel", p.Channel)
	}

	n, err := execQuery(ctx, r.db, upd.Where(entsql.EQ("id", id)))
	if err != nil {
		return fmt.Errorf("save room tokens: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// BackfillParticipants copies the consulta's participants onto the room.
func (r *ReservaRepo) BackfillParticipants(ctx context.Context, id uuid.UUID, patientID uuid.UUID, psychologistID *uuid.UUID) error {
	upd := builder().Update(schema.TableReservaSessao).
		Set("patient_id", patientID).
		Set("updated_at", time.Now())
	if psychologistID != nil {
		upd.Set("psychologist_id", *psychologistID)
	}
	if _, err := execQuery(ctx, r.db, upd.Where(entsql.EQ("id", id))); err != nil {
		return fmt.Errorf("backfill room participants: %w", err)
	}
	return nil
}

// MarkJoined stamps the join time of one side and returns both sides' stamps
// as stored after the update. When userID is set the side's participant
// column is written too.
func (r *ReservaRepo) MarkJoined(ctx context.Context, id uuid.UUID, psychologist bool, userID *uuid.UUID, at time.Time) (*JoinMarks, error) {
	joinedCol, idCol := "patient_joined_at", "patient_id"
	if psychologist {
		joinedCol, idCol = "psychologist_joined_at", "psychologist_id"
	}

	upd := builder().Update(schema.TableReservaSessao).
		Set(joinedCol, at).
		Set("updated_at", time.Now())
	if userID != nil {
		upd.Set(idCol, *userID)
	}
	query, args := upd.Where(entsql.EQ("id", id)).
		Returning("patient_joined_at", "psychologist_joined_at").
		Query()

	var m JoinMarks
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&m.Patient, &m.Psychologist); err != nil {
		return nil, fmt.Errorf("mark room join: %w", notFound(err))
	}
	return &m, nil
}

func (r *ReservaRepo) SetStatusByConsulta(ctx context.Context, consultaID uuid.UUID, status string) error {
	_, err := execQuery(ctx, r.db, builder().Update(schema.TableReservaSessao).
		Set("status", status).
		Set("updated_at", time.Now()).
		Where(entsql.EQ("consulta_id", consultaID)))
	if err != nil {
		return fmt.Errorf("update room status: %w", err)
	}
	return nil
}
