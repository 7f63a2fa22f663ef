package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"

	"github.com/estacaoterapia/estacao_backend/config"
	"github.com/estacaoterapia/estacao_backend/internal/service/notification"
	"github.com/estacaoterapia/estacao_backend/internal/service/repasse"
	"github.com/estacaoterapia/estacao_backend/pkg/taskq"
)

// WorkerModule consumes the task queue and runs the scheduled jobs.
var WorkerModule = fx.Module("workers",
	fx.Invoke(RegisterWorkers),
)

type WorkerParams struct {
	fx.In

	Lc    fx.Lifecycle
	Cfg   *config.Config
	Log   *slog.Logger
	Queue taskq.Queue
	Rep   repasse.Service
	Notif notification.Service
	Jobs  Jobs
}

func RegisterWorkers(p WorkerParams) error {
	log := p.Log.With("component", "workers")
	m := newTaskMetrics()

	handlers := map[string]taskq.Handler{
		repasse.TaskKind:      p.Rep.HandleTask,
		notification.TaskKind: p.Notif.HandleTask,
	}
	for kind, h := range handlers {
		if err := p.Queue.Handle(kind, m.instrument(kind, h)); err != nil {
			return err
		}
	}

	loc, err := time.LoadLocation(p.Cfg.Repasse.Timezone)
	if err != nil {
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cronLogger{log})))
	if p.Cfg.Jobs.Enabled {
		for _, job := range p.Jobs {
			if job.Schedule == "" {
				continue
			}
			_, err := c.AddFunc(job.Schedule, func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				defer cancel()
				if err := job.Run(ctx); err != nil {
					log.Error("scheduled job failed", "job", job.Name, "error", err)
				}
			})
			if err != nil {
				return err
			}
			log.Info("job scheduled", "job", job.Name, "schedule", job.Schedule)
		}
	}

	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := p.Queue.Start(ctx); err != nil {
				return err
			}
			c.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			<-c.Stop().Done()
			return p.Queue.Stop(ctx)
		},
	})
	return nil
}

type taskMetrics struct {
	runs     metric.Int64Counter
	duration metric.Float64Histogram
}

// newTaskMetrics records on the global meter provider, a no-op unless
// observability is enabled.
func newTaskMetrics() *taskMetrics {
	meter := otel.Meter("estacao/taskq")
	runs, _ := meter.Int64Counter("taskq_runs_total", metric.WithDescription("Task executions by kind and outcome"))
	duration, _ := meter.Float64Histogram("taskq_run_seconds", metric.WithUnit("s"))
	return &taskMetrics{runs: runs, duration: duration}
}

func (m *taskMetrics) instrument(kind string, h taskq.Handler) taskq.Handler {
	return func(ctx context.Context, payload []byte) error {
		start := time.Now()
		err := h(ctx, payload)
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		attrs := metric.WithAttributes(attribute.String("kind", kind), attribute.String("outcome", outcome))
		m.runs.Add(ctx, 1, attrs)
		m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
		return err
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct{ log *slog.Logger }

func (l cronLogger) Info(msg string, kv ...interface{}) { l.log.Debug(msg, kv...) }

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.Error(msg, append(kv, "error", err)...)
}
