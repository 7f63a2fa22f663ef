package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/estacaoterapia/estacao_backend/internal/api/http/handler"
)

// Address lookup is public: the sign-up form uses it before a session exists.
func (r *Router) registerAddressRoutes(app fiber.Router, h *handler.AddressHandler) {
	app.Get("/address/cep/:cep", h.LookupCEP)
}
