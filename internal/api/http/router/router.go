package router

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/estacaoterapia/estacao_backend/config"
	"github.com/estacaoterapia/estacao_backend/internal/api/http/handler"
	"github.com/estacaoterapia/estacao_backend/internal/api/http/middleware"
	"github.com/estacaoterapia/estacao_backend/internal/service/address"
	"github.com/estacaoterapia/estacao_backend/internal/service/avulsa"
	"github.com/estacaoterapia/estacao_backend/internal/service/consulta"
	"github.com/estacaoterapia/estacao_backend/internal/service/repasse"
	"github.com/estacaoterapia/estacao_backend/internal/service/room"
	"github.com/estacaoterapia/estacao_backend/pkg/authorize"
	pasetotoken "github.com/estacaoterapia/estacao_backend/pkg/paseto"
)

// Module provides the Router to the fx graph.
var Module = fx.Module("router", fx.Provide(NewRouter))

type Params struct {
	fx.In

	Cfg         *config.Config
	Redis       *redis.Client `optional:"true"`
	Auth        authorize.IAuthorization
	PasetoMgr   *pasetotoken.Manager
	RoomSvc     room.Service
	ConsultaSvc consulta.Service
	RepasseSvc  repasse.Service
	AvulsaSvc   avulsa.Service
	AddressSvc  address.Service
}

type Router struct {
	p Params
}

func NewRouter(p Params) *Router {
	return &Router{p: p}
}

func (r *Router) Register(app *fiber.App) {
	// 1. Health & Metrics
	r.registerSystemRoutes(app)

	// 2. Middlewares
	var revoked middleware.Revocations
	if r.p.Redis != nil {
		revoked = middleware.NewRedisRevocations(r.p.Redis)
	}
	authRequired := middleware.AuthRequired(r.p.PasetoMgr, r.p.Cfg.Authentication.CookieName, revoked)
	requirePerm := func(res authorize.Resource, act authorize.Action) fiber.Handler {
		return middleware.RequirePermission(r.p.Auth, res, act)
	}

	// 3. Handlers
	roomH := handler.NewRoomHandler(r.p.RoomSvc)
	consultaH := handler.NewConsultaHandler(r.p.ConsultaSvc)
	adminH := handler.NewAdminHandler(r.p.ConsultaSvc, r.p.RepasseSvc, r.p.AvulsaSvc)
	addressH := handler.NewAddressHandler(r.p.AddressSvc)

	// 4. Routes
	r.registerRoomRoutes(app, roomH, authRequired, requirePerm)
	r.registerConsultaRoutes(app, consultaH, authRequired, requirePerm)
	r.registerAdminRoutes(app, adminH, authRequired, requirePerm)
	r.registerAddressRoutes(app, addressH)
}

func (r *Router) registerSystemRoutes(app *fiber.App) {
	app.Get(healthcheck.LivenessEndpoint, healthcheck.New())
	app.Get(healthcheck.ReadinessEndpoint, healthcheck.New(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool { return authorize.IsPolicyHealthy() },
	}))
	app.Get(healthcheck.StartupEndpoint, healthcheck.New())

	if r.p.Cfg.Observability.Enabled && r.p.Cfg.Observability.Metrics.Enabled {
		path := r.p.Cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		app.Get(path, adaptor.HTTPHandler(promhttp.Handler()))
	}
}
