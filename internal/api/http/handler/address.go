package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/estacaoterapia/estacao_backend/internal/service/address"
)

type AddressHandler struct {
	svc address.Service
}

func NewAddressHandler(svc address.Service) *AddressHandler {
	return &AddressHandler{svc: svc}
}

// GET /address/cep/:cep
func (h *AddressHandler) LookupCEP(c fiber.Ctx) error {
	a, err := h.svc.Lookup(c.Context(), c.Params("cep"))
	switch {
	case errors.Is(err, address.ErrInvalidCEP):
		return badRequest(c, err.Error())
	case errors.Is(err, address.ErrNotFound):
		return notFound(c, err.Error())
	case err != nil:
		return internalError(c, err, "")
	}
	return c.JSON(a)
}
