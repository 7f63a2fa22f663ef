// Package notification tells participants about consulta changes: an email
// through the SMTP sender and a realtime message on the user's redis channel.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/lo"

	"github.com/estacaoterapia/estacao_backend/internal/repo"
	"github.com/estacaoterapia/estacao_backend/internal/service/status"
	"github.com/estacaoterapia/estacao_backend/pkg/email"
	"github.com/estacaoterapia/estacao_backend/pkg/taskq"
)

// TaskKind is the queue kind of status-change deliveries.
const TaskKind = "notification.status"

// ChannelPrefix + user id is the pub/sub channel a user's sockets listen on.
const ChannelPrefix = "notifications:"

var reminderStatuses = []string{string(status.Reservado), string(status.Agendada)}

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

// StatusTask is the queued payload.
type StatusTask struct {
	ConsultaID uuid.UUID `json:"consultaId"`
	Previous   string    `json:"previous"`
	Status     string    `json:"status"`
}

// Event is what subscribers of a user's channel receive.
type Event struct {
	Type       string    `json:"type"`
	ConsultaID uuid.UUID `json:"consultaId"`
	Status     string    `json:"status"`
	Previous   string    `json:"previous,omitempty"`
	Display    string    `json:"display"`
	At         time.Time `json:"at"`
}

type ReminderResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// Publisher pushes a payload to a pub/sub channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type redisPublisher struct {
	rdb goredis.UniversalClient
}

func NewRedisPublisher(rdb goredis.UniversalClient) Publisher {
	return redisPublisher{rdb: rdb}
}

func (p redisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.rdb.Publish(ctx, channel, payload).Err()
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	// StatusChanged queues the delivery and never fails the caller.
	StatusChanged(ctx context.Context, c *repo.Consulta, previous string)
	// Deliver sends the status-change email and event to both participants.
	Deliver(ctx context.Context, t StatusTask) error
	HandleTask(ctx context.Context, payload []byte) error
	// SendReminders emails every psychologist the sessions of the day after now.
	SendReminders(ctx context.Context) (*ReminderResult, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type Option func(*notificationService)

func WithClock(now func() time.Time) Option {
	return func(s *notificationService) { s.now = now }
}

type notificationService struct {
	db     repo.Store
	queue  taskq.Queue
	mailer email.Sender
	pub    Publisher
	loc    *time.Location
	now    func() time.Time
	log    *slog.Logger
}

// New builds the service. queue, mailer and pub may each be nil; the
// matching side effect is then skipped (or, for the queue, run inline).
func New(db repo.Store, queue taskq.Queue, mailer email.Sender, pub Publisher, timezone string, log *slog.Logger, opts ...Option) (Service, error) {
	if timezone == "" {
		timezone = "America/Sao_Paulo"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load notification timezone %q: %w", timezone, err)
	}
	if log == nil {
		log = slog.Default()
	}
	s := &notificationService{
		db:     db,
		queue:  queue,
		mailer: mailer,
		pub:    pub,
		loc:    loc,
		now:    time.Now,
		log:    log.With("component", "notification"),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *notificationService) StatusChanged(ctx context.Context, c *repo.Consulta, previous string) {
	t := StatusTask{ConsultaID: c.ID, Previous: previous, Status: c.Status}
	if s.queue != nil {
		err := s.queue.Enqueue(ctx, TaskKind, t)
		if err == nil {
			return
		}
		s.log.Warn("enqueue notification failed, sending inline", "consulta_id", c.ID, "error", err)
	}
	go func() {
		if err := s.Deliver(context.WithoutCancel(ctx), t); err != nil {
			s.log.Error("notification failed", "consulta_id", t.ConsultaID, "error", err)
		}
	}()
}

func (s *notificationService) HandleTask(ctx context.Context, payload []byte) error {
	var t StatusTask
	if err := json.Unmarshal(payload, &t); err != nil {
		return fmt.Errorf("decode notification task: %w", err)
	}
	return s.Deliver(ctx, t)
}

// Deliver fails only when the consulta or both participants cannot be loaded.
// Per-recipient send errors are logged so a retry never duplicates mail.
func (s *notificationService) Deliver(ctx context.Context, t StatusTask) error {
	c, err := s.db.Consultas().Get(ctx, t.ConsultaID)
	if err != nil {
		if repo.IsNotFound(err) {
			return ErrConsultaNotFound
		}
		return fmt.Errorf("load consulta: %w", err)
	}

	ids := []uuid.UUID{c.PacienteID}
	if c.PsicologoID != nil {
		ids = append(ids, *c.PsicologoID)
	}

	var users []*repo.User
	for _, id := range lo.Uniq(ids) {
		u, err := s.db.Users().Get(ctx, id)
		if err != nil {
			s.log.Warn("notification recipient not loaded", "user_id", id, "error", err)
			continue
		}
		users = append(users, u)
	}
	if len(users) == 0 {
		return ErrNoRecipients
	}

	display := c.Status
	if info, ok := status.Lookup(c.Status); ok {
		display = info.Display
	}
	start := c.StartsAt(s.loc)
	event, _ := json.Marshal(Event{
		Type:       "consulta_status",
		ConsultaID: c.ID,
		Status:     c.Status,
		Previous:   t.Previous,
		Display:    display,
		At:         s.now().UTC(),
	})

	for _, u := range users {
		if s.pub != nil {
			if err := s.pub.Publish(ctx, ChannelPrefix+u.ID.String(), event); err != nil {
				s.log.Warn("publish notification failed", "user_id", u.ID, "error", err)
			}
		}
		if s.mailer == nil || u.Email == "" {
			continue
		}
		msg := email.BuildStatusChangeEmail(email.StatusChangeData{
			Nome:       u.Nome,
			Email:      u.Email,
			Data:       start.Format("02/01/2006"),
			Hora:       start.Format("15:04"),
			StatusNovo: display,
		})
		if err := s.mailer.Send(ctx, msg); err != nil {
			s.log.Warn("status email failed", "user_id", u.ID, "consulta_id", c.ID, "error", err)
		}
	}
	return nil
}

func (s *notificationService) SendReminders(ctx context.Context) (*ReminderResult, error) {
	now := s.now().In(s.loc)
	from := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, s.loc)
	to := from.AddDate(0, 0, 1)

	rows, err := s.db.Consultas().ListReminders(ctx, reminderStatuses, from, to)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}

	res := &ReminderResult{}
	if s.mailer == nil {
		return res, nil
	}

	byPsi := lo.GroupBy(rows, func(r repo.Reminder) uuid.UUID { return *r.Consulta.PsicologoID })
	order := lo.Uniq(lo.Map(rows, func(r repo.Reminder, _ int) uuid.UUID { return *r.Consulta.PsicologoID }))

	for _, psiID := range order {
		group := byPsi[psiID]
		first := group[0]
		if first.PsicologoEmail == "" {
			res.Failed++
			continue
		}
		msg := email.BuildReminderEmail(email.ReminderData{
			Nome:  first.PsicologoNome,
			Email: first.PsicologoEmail,
			Data:  from.Format("02/01/2006"),
			Sessions: lo.Map(group, func(r repo.Reminder, _ int) email.ReminderItem {
				return email.ReminderItem{Hora: r.Consulta.StartsAt(s.loc).Format("15:04"), Paciente: r.PacienteNome}
			}),
		})
		if err := s.mailer.Send(ctx, msg); err != nil {
			s.log.Warn("reminder email failed", "psicologo_id", psiID, "error", err)
			res.Failed++
			continue
		}
		res.Sent++
	}

	s.log.Info("reminders sent", "day", from.Format("2006-01-02"), "sent", res.Sent, "failed", res.Failed)
	return res, nil
}
