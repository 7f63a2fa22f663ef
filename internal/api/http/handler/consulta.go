package handler

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/estacaoterapia/estacao_backend/internal/service/consulta"
	"github.com/estacaoterapia/estacao_backend/pkg/authorize"
)

type ConsultaHandler struct {
	svc consulta.Service
}

func NewConsultaHandler(svc consulta.Service) *ConsultaHandler {
	return &ConsultaHandler{svc: svc}
}

func mapConsultaError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, consulta.ErrNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, fiber.ErrUnauthorized):
		return unauthorized(c)
	case errors.Is(err, consulta.ErrNotParticipant):
		return forbidden(c, err.Error())
	case errors.Is(err, consulta.ErrOutsideWindow),
		errors.Is(err, consulta.ErrNotStartable),
		errors.Is(err, consulta.ErrParticipantsAbsent),
		errors.Is(err, consulta.ErrMissingStatus),
		errors.Is(err, consulta.ErrUnknownStatus),
		errors.Is(err, consulta.ErrInvalidParty),
		errors.Is(err, consulta.ErrInvalidPeriod),
		errors.Is(err, consulta.ErrRescheduleOutOfTime):
		return badRequest(c, err.Error())
	case errors.Is(err, consulta.ErrAnotherInProgress),
		errors.Is(err, consulta.ErrForbiddenTransition):
		return conflict(c, err.Error())
	default:
		return internalError(c, err, "")
	}
}

func consultaID(c fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params("id"))
	return id, err == nil
}

// allowed lets staff through and otherwise requires the caller to be one of
// the consulta's participants.
func (h *ConsultaHandler) allowed(c fiber.Ctx, id uuid.UUID) error {
	claims, authed := claimsOf(c)
	if !authed {
		return fiber.ErrUnauthorized
	}
	switch authorize.Role(claims.Role) {
	case authorize.RoleAdmin, authorize.RoleManagement:
		return nil
	}
	return h.svc.CheckParticipant(c.Context(), id, claims.UserID)
}

// POST /consultas-paciente/iniciar/:id
func (h *ConsultaHandler) Iniciar(c fiber.Ctx) error {
	id, valid := consultaID(c)
	if !valid {
		return badRequest(c, "invalid consulta id")
	}

	if err := h.allowed(c, id); err != nil {
		return mapConsultaError(c, err)
	}
	if _, err := h.svc.Iniciar(c.Context(), id); err != nil {
		return mapConsultaError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Consulta iniciada com sucesso"})
}

// POST /consultas-paciente/finalizar/:id?forceFinalize=true
func (h *ConsultaHandler) Finalizar(c fiber.Ctx) error {
	id, valid := consultaID(c)
	if !valid {
		return badRequest(c, "invalid consulta id")
	}
	if err := h.allowed(c, id); err != nil {
		return mapConsultaError(c, err)
	}
	force, _ := strconv.ParseBool(c.Query("forceFinalize"))

	res, err := h.svc.Finalizar(c.Context(), id, force)
	if err != nil {
		return mapConsultaError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": res})
}
