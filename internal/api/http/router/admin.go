package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/estacaoterapia/estacao_backend/internal/api/http/handler"
	"github.com/estacaoterapia/estacao_backend/pkg/authorize"
)

func (r *Router) registerAdminRoutes(
	app fiber.Router,
	ah *handler.AdminHandler,
	authRequired fiber.Handler,
	requirePerm func(authorize.Resource, authorize.Action) fiber.Handler,
) {
	admin := app.Group("/admin", authRequired)

	admin.Post("/atribuir-consulta-avulsa", requirePerm(authorize.ResourceAvulsa, authorize.ActionCreate), ah.AtribuirConsultaAvulsa)

	consultas := admin.Group("/consultas")
	consultas.Get("/", requirePerm(authorize.ResourceConsulta, authorize.ActionList), ah.ListarPorStatus)
	consultas.Get("/estatisticas", requirePerm(authorize.ResourceConsulta, authorize.ActionRead), ah.Estatisticas)
	consultas.Patch("/:id/status", requirePerm(authorize.ResourceConsulta, authorize.ActionUpdate), ah.AtualizarStatus)
	consultas.Post("/:id/repasse", requirePerm(authorize.ResourceRepasse, authorize.ActionExecute), ah.RecalcularRepasse)
}
