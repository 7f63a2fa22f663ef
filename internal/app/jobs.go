package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/estacaoterapia/estacao_backend/config"
	"github.com/estacaoterapia/estacao_backend/internal/service/consulta"
	"github.com/estacaoterapia/estacao_backend/internal/service/notification"
)

var ErrUnknownJob = errors.New("unknown job")

const (
	JobInactivity = "inactivity"
	JobReminders  = "reminders"
)

// Job is a periodic task; the cron scheduler and `estacao jobs run` share it.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

type Jobs map[string]Job

func ProvideJobs(cons consulta.Service, notif notification.Service, cfg *config.Config, log *slog.Logger) Jobs {
	log = log.With("component", "jobs")
	return Jobs{
		JobInactivity: {
			Name:     JobInactivity,
			Schedule: cfg.Jobs.InactivitySchedule,
			Run: func(ctx context.Context) error {
				n, err := cons.SweepInactive(ctx)
				if n > 0 {
					log.Info("inactivity sweep", "processed", n)
				}
				return err
			},
		},
		JobReminders: {
			Name:     JobReminders,
			Schedule: cfg.Jobs.ReminderSchedule,
			Run: func(ctx context.Context) error {
				res, err := notif.SendReminders(ctx)
				if err != nil {
					return err
				}
				log.Info("reminder batch", "sent", res.Sent, "failed", res.Failed)
				return nil
			},
		},
	}
}

func (j Jobs) Run(ctx context.Context, name string) error {
	job, ok := j[name]
	if !ok {
		return fmt.Errorf("%w: %q (known: %v)", ErrUnknownJob, name, j.Names())
	}
	return job.Run(ctx)
}

func (j Jobs) Names() []string {
	names := make([]string, 0, len(j))
	for n := range j {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
