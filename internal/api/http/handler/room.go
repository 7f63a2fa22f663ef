package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/estacaoterapia/estacao_backend/internal/service/room"
)

type RoomHandler struct {
	svc room.Service
}

func NewRoomHandler(svc room.Service) *RoomHandler {
	return &RoomHandler{svc: svc}
}

func mapRoomError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, room.ErrMissingChannel),
		errors.Is(err, room.ErrMissingConsulta),
		errors.Is(err, room.ErrInvalidUID):
		return badRequest(c, err.Error())
	case errors.Is(err, room.ErrRoomNotFound), errors.Is(err, room.ErrConsultaNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, room.ErrNotParticipant):
		return forbidden(c, err.Error())
	case errors.Is(err, room.ErrParticipantsUnresolved),
		errors.Is(err, room.ErrEmptyToken),
		errors.Is(err, room.ErrTokenGeneration):
		return internalError(c, err, err.Error())
	default:
		return internalError(c, err, "")
	}
}

func (h *RoomHandler) caller(c fiber.Ctx) (room.Caller, bool) {
	claims, ok := claimsOf(c)
	if !ok {
		return room.Caller{}, false
	}
	return room.Caller{UserID: claims.UserID, Role: claims.Role}, true
}

type channelRequest struct {
	ChannelName string `json:"channelName"`
}

// POST /room/generate-token
func (h *RoomHandler) GenerateToken(c fiber.Ctx) error {
	caller, ok := h.caller(c)
	if !ok {
		return unauthorized(c)
	}

	var req channelRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	res, err := h.svc.GenerateAccessToken(c.Context(), caller, req.ChannelName)
	if err != nil {
		return mapRoomError(c, err)
	}
	return c.JSON(res)
}

// POST /room/generate-rtm-token
func (h *RoomHandler) GenerateRTMToken(c fiber.Ctx) error {
	caller, ok := h.caller(c)
	if !ok {
		return unauthorized(c)
	}

	var req channelRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	res, err := h.svc.GenerateRTMToken(c.Context(), caller, req.ChannelName)
	if err != nil {
		return mapRoomError(c, err)
	}
	return c.JSON(res)
}

// POST /room/check-and-generate-tokens
func (h *RoomHandler) CheckAndGenerateTokens(c fiber.Ctx) error {
	caller, ok := h.caller(c)
	if !ok {
		return unauthorized(c)
	}

	var req struct {
		ConsultaID string `json:"consultaId"`
	}
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.ConsultaID == "" {
		return badRequest(c, room.ErrMissingConsulta.Error())
	}
	id, err := uuid.Parse(req.ConsultaID)
	if err != nil {
		return badRequest(c, "invalid consultaId")
	}

	res, err := h.svc.CheckAndGenerateTokens(c.Context(), caller, id)
	if err != nil {
		return mapRoomError(c, err)
	}
	return c.JSON(res)
}

// POST /room/generate-manual-token
func (h *RoomHandler) GenerateManualToken(c fiber.Ctx) error {
	var req struct {
		ChannelName string `json:"channelName"`
		UID         int64  `json:"uid"`
		Role        string `json:"role"`
	}
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	res, err := h.svc.GenerateManualToken(c.Context(), req.ChannelName, req.UID, req.Role)
	if err != nil {
		return mapRoomError(c, err)
	}
	return c.JSON(res)
}
