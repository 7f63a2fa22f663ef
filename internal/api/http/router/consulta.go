package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/estacaoterapia/estacao_backend/internal/api/http/handler"
	"github.com/estacaoterapia/estacao_backend/pkg/authorize"
)

func (r *Router) registerConsultaRoutes(
	app fiber.Router,
	ch *handler.ConsultaHandler,
	authRequired fiber.Handler,
	requirePerm func(authorize.Resource, authorize.Action) fiber.Handler,
) {
	cp := app.Group("/consultas-paciente", authRequired, requirePerm(authorize.ResourceConsulta, authorize.ActionExecute))

	cp.Post("/iniciar/:id", ch.Iniciar)
	cp.Post("/finalizar/:id", ch.Finalizar)
}
