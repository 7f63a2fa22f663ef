package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/estacaoterapia/estacao_backend/config"
	"github.com/estacaoterapia/estacao_backend/internal/repo"
	"github.com/estacaoterapia/estacao_backend/internal/service/room"
	"github.com/estacaoterapia/estacao_backend/pkg/agora"
	"github.com/estacaoterapia/estacao_backend/pkg/authorize"
	"github.com/estacaoterapia/estacao_backend/pkg/cep"
	"github.com/estacaoterapia/estacao_backend/pkg/database"
	"github.com/estacaoterapia/estacao_backend/pkg/email"
	"github.com/estacaoterapia/estacao_backend/pkg/observability"
	pasetotoken "github.com/estacaoterapia/estacao_backend/pkg/paseto"
	redispkg "github.com/estacaoterapia/estacao_backend/pkg/redis"
	"github.com/estacaoterapia/estacao_backend/pkg/taskq"
)

// InfraModule provides the shared clients. Everything here is built once and
// closed by the fx lifecycle.
var InfraModule = fx.Module("infra",
	fx.Provide(
		ProvideLogger,
		ProvideDB,
		func(c *repo.Client) repo.Store { return c },
		ProvideRedis,
		ProvideNatsClient,
		ProvideQueue,
		ProvideAuthorization,
		ProvidePasetoManager,
		ProvideMailer,
		ProvideOTel,
		ProvideAgora,
		ProvideCEP,
		ProvideLocker,
	),
)

func ProvideLogger() *slog.Logger {
	return slog.Default()
}

func ProvideDB(lc fx.Lifecycle, cfg *config.Config) (*repo.Client, error) {
	client, err := database.NewClient(cfg.Database)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx); err != nil {
				return err
			}
			if cfg.Database.Migrations.AutoMigrate {
				return database.Migrate(ctx, client)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			slog.Debug("closing database pool")
			return client.Close()
		},
	})
	return client, nil
}

func ProvideRedis(lc fx.Lifecycle, cfg *config.Config) (*goredis.Client, error) {
	rdb, err := redispkg.NewRedisFromCentral(cfg.Redis)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("closing redis connection")
			return rdb.Close()
		},
	})
	return rdb, nil
}

// ProvideNatsClient returns nil when NATS is unreachable; the queue then
// falls back to the in-process pool.
func ProvideNatsClient(lc fx.Lifecycle, cfg *config.Config, log *slog.Logger) *nats.Conn {
	if cfg.Nats.URL == "" {
		return nil
	}
	nc, err := nats.Connect(cfg.Nats.URL,
		nats.Name(cfg.Observability.ServiceName),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		log.Warn("nats unavailable, using in-process task queue", "url", cfg.Nats.URL, "error", err)
		return nil
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("draining NATS connection")
			return nc.Drain()
		},
	})
	return nc
}

func ProvideQueue(nc *nats.Conn, cfg *config.Config, log *slog.Logger) taskq.Queue {
	if nc == nil {
		return taskq.NewLocal(8, cfg.Nats.MaxAttempts, log)
	}
	return taskq.NewNats(nc, cfg.Nats.SubjectPrefix, cfg.Nats.MaxAttempts, log)
}

func ProvideAuthorization(lc fx.Lifecycle, cfg *config.Config, log *slog.Logger) (authorize.IAuthorization, error) {
	ac := authorize.FromCentralConfig(cfg.Authorization)
	enforcer, cleanup, err := authorize.NewEnforcer(ac.CasbinModelPath, database.NewDSN(cfg.CasbinDatabase), log)
	if err != nil {
		return nil, err
	}
	auth, err := authorize.NewAuthorization(enforcer)
	if err != nil {
		cleanup(context.Background())
		return nil, err
	}
	if ac.EnableAudit {
		auth = authorize.NewAuditedAuthorization(auth, log)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			cleanup(ctx)
			return nil
		},
	})
	return auth, nil
}

func ProvidePasetoManager(cfg *config.Config) (*pasetotoken.Manager, error) {
	return pasetotoken.NewPasetoManager(cfg)
}

func ProvideMailer(cfg *config.Config) email.Sender {
	return email.NewFromCentral(cfg.Email)
}

func ProvideOTel(lc fx.Lifecycle, cfg *config.Config) (*observability.Provider, error) {
	if !cfg.Observability.Enabled {
		return nil, nil
	}
	provider, err := observability.InitTelemetry(context.Background(), observability.FromConfig(cfg))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return provider.Shutdown(ctx)
		},
	})
	return provider, nil
}

func ProvideAgora(cfg *config.Config) (agora.Provider, error) {
	return agora.NewBuilder(cfg.Agora.AppID, cfg.Agora.AppCertificate, time.Duration(cfg.Agora.TokenTTLSeconds)*time.Second)
}

func ProvideCEP(cfg *config.Config) *cep.Client {
	return cep.New(cfg.CEP)
}

func ProvideLocker(rdb *goredis.Client, cfg *config.Config) room.Locker {
	return redispkg.NewLocker(rdb, "lock:room:", time.Duration(cfg.Agora.LockTTLSeconds)*time.Second)
}
