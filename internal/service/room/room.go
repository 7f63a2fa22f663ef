// Package room issues RTC/RTM credentials for session rooms and records
// who joined them.
package room

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"

	"github.com/estacaoterapia/estacao_backend/internal/repo"
	"github.com/estacaoterapia/estacao_backend/internal/service/repasse"
	"github.com/estacaoterapia/estacao_backend/internal/service/status"
	"github.com/estacaoterapia/estacao_backend/pkg/agora"
	"github.com/estacaoterapia/estacao_backend/pkg/observability"
)

// ChannelName is the channel bound to a consulta's room.
func ChannelName(consultaID uuid.UUID) string {
	return "sala_" + consultaID.String()
}

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

// Caller is the authenticated user behind a request.
type Caller struct {
	UserID uuid.UUID
	Role   string
}

type Participants struct {
	PatientID      *uuid.UUID `json:"patientId"`
	PsychologistID *uuid.UUID `json:"psychologistId"`
}

type AccessToken struct {
	Token        string       `json:"token"`
	UID          uint32       `json:"uid"`
	Role         agora.Role   `json:"role"`
	Participants Participants `json:"participants"`
}

type RTMToken struct {
	Token string     `json:"token"`
	Role  agora.Role `json:"role"`
}

type CheckResult struct {
	Success         bool      `json:"success"`
	TokensExist     bool      `json:"tokensExist"`
	TokensGenerated bool      `json:"tokensGenerated"`
	RoomCreated     bool      `json:"roomCreated"`
	ConsultaID      uuid.UUID `json:"consultaId"`
	ChannelName     string    `json:"channelName"`
	UIDPatient      *int64    `json:"uidPatient,omitempty"`
	UIDPsychologist *int64    `json:"uidPsychologist,omitempty"`
}

type ManualToken struct {
	Success     bool       `json:"success"`
	Token       string     `json:"token"`
	ChannelName string     `json:"channelName"`
	UID         uint32     `json:"uid"`
	Role        agora.Role `json:"role"`
	ExpiresIn   int        `json:"expiresIn"`
}

// Locker serializes token issuance per consulta.
type Locker interface {
	Lock(ctx context.Context, name string) (func(), error)
}

// Scheduler queues the commission recomputation.
type Scheduler interface {
	Schedule(ctx context.Context, consultaID uuid.UUID, motivo string)
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	GenerateAccessToken(ctx context.Context, caller Caller, channel string) (*AccessToken, error)
	GenerateRTMToken(ctx context.Context, caller Caller, channel string) (*RTMToken, error)
	CheckAndGenerateTokens(ctx context.Context, caller Caller, consultaID uuid.UUID) (*CheckResult, error)
	GenerateManualToken(ctx context.Context, channel string, uid int64, role string) (*ManualToken, error)
	// EnsureTokens issues the room's token pair unless both already exist.
	EnsureTokens(ctx context.Context, consultaID uuid.UUID) (*repo.ReservaSessao, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type Option func(*roomService)

func WithClock(now func() time.Time) Option {
	return func(s *roomService) { s.now = now }
}

type roomService struct {
	db       repo.Store
	provider agora.Provider
	locker   Locker
	repasse  Scheduler
	now      func() time.Time
	log      *slog.Logger
}

// New builds the room service. locker may be nil (no cross-process
// serialization).
func New(db repo.Store, provider agora.Provider, locker Locker, repasse Scheduler, log *slog.Logger, opts ...Option) Service {
	if log == nil {
		log = slog.Default()
	}
	s := &roomService{
		db:       db,
		provider: provider,
		locker:   locker,
		repasse:  repasse,
		now:      time.Now,
		log:      log.With("component", "room"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *roomService) GenerateAccessToken(ctx context.Context, caller Caller, channel string) (*AccessToken, error) {
	if channel == "" {
		return nil, ErrMissingChannel
	}
	room, err := s.roomByChannel(ctx, channel)
	if err != nil {
		return nil, err
	}
	side, err := s.resolveSide(ctx, room, caller.UserID)
	if err != nil {
		return nil, err
	}

	if !hasTokens(room) {
		if _, err := s.EnsureTokens(ctx, room.ConsultaID); err != nil {
			return nil, err
		}
	}
	if room, err = s.roomByChannel(ctx, channel); err != nil {
		return nil, err
	}

	psychologist := side == agora.RolePsychologist
	var backfill *uuid.UUID
	if (psychologist && room.PsychologistID == nil) || (!psychologist && room.PatientID == nil) {
		backfill = &caller.UserID
	}
	joinedAt := s.now()
	marks, err := s.db.Reservas().MarkJoined(ctx, room.ID, psychologist, backfill, joinedAt)
	if err != nil {
		return nil, fmt.Errorf("record join: %w", err)
	}

	// decided on the stamps the update returned, so of two simultaneous
	// joins the one that lands second always sees both
	if marks.Both() && s.repasse != nil {
		s.repasse.Schedule(ctx, room.ConsultaID, repasse.MotivoEntradaSala)
	}

	out := &AccessToken{
		Role:         side,
		Participants: Participants{PatientID: room.PatientID, PsychologistID: room.PsychologistID},
	}
	if psychologist {
		out.Token, out.UID = deref(room.AgoraTokenPsychologist), uint32(derefInt(room.UIDPsychologist))
		if out.Participants.PsychologistID == nil {
			out.Participants.PsychologistID = &caller.UserID
		}
	} else {
		out.Token, out.UID = deref(room.AgoraTokenPatient), uint32(derefInt(room.UIDPatient))
		if out.Participants.PatientID == nil {
			out.Participants.PatientID = &caller.UserID
		}
	}
	if out.Token == "" {
		return nil, fmt.Errorf("%w: %w", ErrTokenGeneration, ErrEmptyToken)
	}
	return out, nil
}

func (s *roomService) GenerateRTMToken(ctx context.Context, caller Caller, channel string) (*RTMToken, error) {
	if channel == "" {
		return nil, ErrMissingChannel
	}
	room, err := s.roomByChannel(ctx, channel)
	if err != nil {
		return nil, err
	}
	side, err := s.resolveSide(ctx, room, caller.UserID)
	if err != nil {
		return nil, err
	}

	token, err := s.provider.RTMToken(ctx, caller.UserID.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenGeneration, err)
	}
	return &RTMToken{Token: token, Role: side}, nil
}

func (s *roomService) CheckAndGenerateTokens(ctx context.Context, caller Caller, consultaID uuid.UUID) (*CheckResult, error) {
	if consultaID == uuid.Nil {
		return nil, ErrMissingConsulta
	}
	c, err := s.db.Consultas().Get(ctx, consultaID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrConsultaNotFound
		}
		return nil, fmt.Errorf("load consulta: %w", err)
	}
	if !isConsultaParticipant(c, caller.UserID) {
		return nil, ErrNotParticipant
	}

	out := &CheckResult{Success: true, ConsultaID: consultaID}

	room, err := s.db.Reservas().GetByConsulta(ctx, consultaID)
	switch {
	case repo.IsNotFound(err):
		if room, err = s.createRoom(ctx, c); err != nil {
			return nil, err
		}
		out.RoomCreated = true
	case err != nil:
		return nil, fmt.Errorf("load room: %w", err)
	}

	if hasTokens(room) {
		out.TokensExist = true
	} else {
		if room, err = s.EnsureTokens(ctx, consultaID); err != nil {
			return nil, err
		}
		out.TokensGenerated = true
	}

	out.ChannelName = deref(room.AgoraChannel)
	out.UIDPatient, out.UIDPsychologist = room.UIDPatient, room.UIDPsychologist
	return out, nil
}

func (s *roomService) GenerateManualToken(ctx context.Context, channel string, uid int64, role string) (*ManualToken, error) {
	if channel == "" {
		return nil, ErrMissingChannel
	}
	if uid <= 0 || uid > 0xffffffff {
		return nil, ErrInvalidUID
	}
	r := agora.ParseRole(role)

	token, err := s.provider.RTCToken(ctx, channel, uint32(uid), r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenGeneration, err)
	}
	return &ManualToken{
		Success:     true,
		Token:       token,
		ChannelName: channel,
		UID:         uint32(uid),
		Role:        r,
		ExpiresIn:   int(s.provider.TTL() / time.Second),
	}, nil
}

func (s *roomService) EnsureTokens(ctx context.Context, consultaID uuid.UUID) (room *repo.ReservaSessao, err error) {
	ctx, span := observability.StartSpan(ctx, "room.EnsureTokens", attribute.String("consulta.id", consultaID.String()))
	defer func() { observability.EndSpan(span, err) }()

	return s.ensureTokens(ctx, consultaID)
}

func (s *roomService) ensureTokens(ctx context.Context, consultaID uuid.UUID) (*repo.ReservaSessao, error) {
	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, consultaID.String())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTokenGeneration, err)
		}
		defer unlock()
	}

	// a concurrent join may have issued the pair while we waited
	room, err := s.db.Reservas().GetByConsulta(ctx, consultaID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("reload room: %w", err)
	}
	if hasTokens(room) {
		return room, nil
	}

	if err := s.issueTokens(ctx, room); err != nil {
		return nil, err
	}
	return s.db.Reservas().GetByConsulta(ctx, consultaID)
}

// issueTokens always regenerates both tokens and writes them in one update.
func (s *roomService) issueTokens(ctx context.Context, room *repo.ReservaSessao) error {
	patientID, psychologistID := room.PatientID, room.PsychologistID
	backfill := false
	if room.Consulta != nil {
		if patientID == nil && room.Consulta.PacienteID != uuid.Nil {
			patientID, backfill = &room.Consulta.PacienteID, true
		}
		if psychologistID == nil && room.Consulta.PsicologoID != nil {
			psychologistID, backfill = room.Consulta.PsicologoID, true
		}
	}
	if patientID == nil || psychologistID == nil {
		return ErrParticipantsUnresolved
	}
	if backfill {
		if err := s.db.Reservas().BackfillParticipants(ctx, room.ID, *patientID, psychologistID); err != nil {
			return err
		}
	}

	uidPatient, err := agora.DeriveUID(patientID.String())
	if err != nil {
		return fmt.Errorf("%w: patient uid: %w", ErrTokenGeneration, err)
	}
	uidPsychologist, err := agora.DeriveUID(psychologistID.String())
	if err != nil {
		return fmt.Errorf("%w: psychologist uid: %w", ErrTokenGeneration, err)
	}

	channel := deref(room.AgoraChannel)
	newChannel := ""
	if channel == "" {
		channel = ChannelName(room.ConsultaID)
		newChannel = channel
	}

	var tokenPatient, tokenPsychologist string
	p := pool.New().WithErrors().WithContext(ctx)
	p.Go(func(ctx context.Context) (err error) {
		tokenPatient, err = s.provider.RTCToken(ctx, channel, uidPatient, agora.RolePatient)
		return err
	})
	p.Go(func(ctx context.Context) (err error) {
		tokenPsychologist, err = s.provider.RTCToken(ctx, channel, uidPsychologist, agora.RolePsychologist)
		return err
	})
	if err := p.Wait(); err != nil {
		return fmt.Errorf("%w: %w", ErrTokenGeneration, err)
	}
	if tokenPatient == "" || tokenPsychologist == "" {
		return fmt.Errorf("%w: %w", ErrTokenGeneration, ErrEmptyToken)
	}

	err = s.db.Reservas().SaveTokens(ctx, room.ID, repo.TokenPair{
		PatientID:         *patientID,
		PsychologistID:    *psychologistID,
		UIDPatient:        int64(uidPatient),
		UIDPsychologist:   int64(uidPsychologist),
		TokenPatient:      tokenPatient,
		TokenPsychologist: tokenPsychologist,
		Channel:           newChannel,
	})
	if err != nil {
		return fmt.Errorf("save tokens: %w", err)
	}
	s.log.Info("room tokens issued", "consulta_id", room.ConsultaID, "channel", channel)
	return nil
}

func (s *roomService) createRoom(ctx context.Context, c *repo.Consulta) (*repo.ReservaSessao, error) {
	channel := ChannelName(c.ID)
	room := &repo.ReservaSessao{
		ConsultaID:     c.ID,
		Status:         status.RoomReservado,
		AgoraChannel:   &channel,
		PatientID:      &c.PacienteID,
		PsychologistID: c.PsicologoID,
		ScheduledAt:    &c.Date,
	}
	if uid, err := agora.DeriveUID(c.PacienteID.String()); err == nil {
		v := int64(uid)
		room.UIDPatient = &v
	}
	if c.PsicologoID != nil {
		if uid, err := agora.DeriveUID(c.PsicologoID.String()); err == nil {
			v := int64(uid)
			room.UIDPsychologist = &v
		}
	}
	if err := s.db.Reservas().Create(ctx, room); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	room.Consulta = c
	return room, nil
}

func (s *roomService) roomByChannel(ctx context.Context, channel string) (*repo.ReservaSessao, error) {
	room, err := s.db.Reservas().GetByChannel(ctx, channel)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("load room: %w", err)
	}
	return room, nil
}

// resolveSide matches the caller against the room and, failing that, the
// consulta; a consulta match is backfilled onto the room.
func (s *roomService) resolveSide(ctx context.Context, room *repo.ReservaSessao, userID uuid.UUID) (agora.Role, error) {
	switch {
	case room.PatientID != nil && *room.PatientID == userID:
		return agora.RolePatient, nil
	case room.PsychologistID != nil && *room.PsychologistID == userID:
		return agora.RolePsychologist, nil
	}

	c := room.Consulta
	if c == nil || !isConsultaParticipant(c, userID) {
		return "", ErrNotParticipant
	}
	if err := s.db.Reservas().BackfillParticipants(ctx, room.ID, c.PacienteID, c.PsicologoID); err != nil {
		s.log.Warn("room participant backfill failed", "room_id", room.ID, "error", err)
	} else {
		room.PatientID, room.PsychologistID = &c.PacienteID, c.PsicologoID
	}
	if c.PacienteID == userID {
		return agora.RolePatient, nil
	}
	return agora.RolePsychologist, nil
}

func isConsultaParticipant(c *repo.Consulta, userID uuid.UUID) bool {
	return c.PacienteID == userID || (c.PsicologoID != nil && *c.PsicologoID == userID)
}

// hasTokens is false for a partial pair.
func hasTokens(r *repo.ReservaSessao) bool {
	return deref(r.AgoraTokenPatient) != "" && deref(r.AgoraTokenPsychologist) != ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
