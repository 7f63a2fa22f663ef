package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/estacaoterapia/estacao_backend/internal/api/http/handler"
	"github.com/estacaoterapia/estacao_backend/pkg/authorize"
)

func (r *Router) registerRoomRoutes(
	app fiber.Router,
	rh *handler.RoomHandler,
	authRequired fiber.Handler,
	requirePerm func(authorize.Resource, authorize.Action) fiber.Handler,
) {
	rooms := app.Group("/room", authRequired, requirePerm(authorize.ResourceRoom, authorize.ActionExecute))

	rooms.Post("/generate-token", rh.GenerateToken)
	rooms.Post("/generate-rtm-token", rh.GenerateRTMToken)
	rooms.Post("/check-and-generate-tokens", rh.CheckAndGenerateTokens)
	rooms.Post("/generate-manual-token", rh.GenerateManualToken)
}
