package app

import (
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/estacaoterapia/estacao_backend/config"
	"github.com/estacaoterapia/estacao_backend/internal/repo"
	"github.com/estacaoterapia/estacao_backend/internal/service/address"
	"github.com/estacaoterapia/estacao_backend/internal/service/avulsa"
	"github.com/estacaoterapia/estacao_backend/internal/service/consulta"
	"github.com/estacaoterapia/estacao_backend/internal/service/notification"
	"github.com/estacaoterapia/estacao_backend/internal/service/repasse"
	"github.com/estacaoterapia/estacao_backend/internal/service/room"
	"github.com/estacaoterapia/estacao_backend/pkg/agora"
	"github.com/estacaoterapia/estacao_backend/pkg/cep"
	"github.com/estacaoterapia/estacao_backend/pkg/email"
	"github.com/estacaoterapia/estacao_backend/pkg/taskq"
)

// ServiceModule provides the domain services.
var ServiceModule = fx.Module("services",
	fx.Provide(
		ProvideRepasseService,
		ProvideNotificationService,
		ProvideConsultaService,
		ProvideRoomService,
		ProvideAddressService,
		ProvideAvulsaService,
		ProvideJobs,
	),
)

func ProvideRepasseService(db repo.Store, q taskq.Queue, cfg *config.Config, log *slog.Logger) (repasse.Service, error) {
	return repasse.New(db, q, cfg.Repasse, log)
}

func ProvideNotificationService(db repo.Store, q taskq.Queue, mailer email.Sender, rdb *goredis.Client, cfg *config.Config, log *slog.Logger) (notification.Service, error) {
	return notification.New(db, q, mailer, notification.NewRedisPublisher(rdb), cfg.Repasse.Timezone, log)
}

func ProvideConsultaService(db repo.Store, rep repasse.Service, notif notification.Service, cfg *config.Config, log *slog.Logger) (consulta.Service, error) {
	return consulta.New(db, rep, notif, cfg.Repasse, log)
}

func ProvideRoomService(db repo.Store, provider agora.Provider, locker room.Locker, rep repasse.Service, log *slog.Logger) room.Service {
	return room.New(db, provider, locker, rep, log)
}

func ProvideAddressService(client *cep.Client, rdb *goredis.Client, cfg *config.Config, log *slog.Logger) address.Service {
	return address.New(client, address.NewRedisCache(rdb), time.Duration(cfg.CEP.CacheTTLMinutes)*time.Minute, log)
}

func ProvideAvulsaService(db repo.Store, log *slog.Logger) avulsa.Service {
	return avulsa.New(db, log)
}
