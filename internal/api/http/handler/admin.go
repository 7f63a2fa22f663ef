package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/estacaoterapia/estacao_backend/internal/service/avulsa"
	"github.com/estacaoterapia/estacao_backend/internal/service/consulta"
	"github.com/estacaoterapia/estacao_backend/internal/service/repasse"
	"github.com/estacaoterapia/estacao_backend/internal/service/status"
)

// AdminHandler serves the back-office routes. Access is checked by
// RequirePermission before any handler runs.
type AdminHandler struct {
	consultas consulta.Service
	repasse   repasse.Service
	avulsas   avulsa.Service
}

func NewAdminHandler(cs consulta.Service, rs repasse.Service, as avulsa.Service) *AdminHandler {
	return &AdminHandler{consultas: cs, repasse: rs, avulsas: as}
}

// POST /admin/atribuir-consulta-avulsa
func (h *AdminHandler) AtribuirConsultaAvulsa(c fiber.Ctx) error {
	claims, authed := claimsOf(c)
	if !authed {
		return unauthorized(c)
	}

	var req avulsa.GrantRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	res, err := h.avulsas.Grant(c.Context(), claims.UserID, req)
	switch {
	case errors.Is(err, avulsa.ErrInvalidQuantidade), errors.Is(err, avulsa.ErrInvalidValidade):
		return badRequest(c, err.Error())
	case errors.Is(err, avulsa.ErrPacienteNotFound):
		return notFound(c, err.Error())
	case err != nil:
		return internalError(c, err, "")
	}
	return created(c, res)
}

// PATCH /admin/consultas/:id/status
func (h *AdminHandler) AtualizarStatus(c fiber.Ctx) error {
	claims, authed := claimsOf(c)
	if !authed {
		return unauthorized(c)
	}
	id, valid := consultaID(c)
	if !valid {
		return badRequest(c, "invalid consulta id")
	}

	var req struct {
		Status      string `json:"status"`
		Origem      string `json:"origem"`
		TelaGatilho string `json:"telaGatilho"`
	}
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	origem := status.Origem(req.Origem)
	if origem == "" {
		origem = status.OrigemAdmin
	}

	res, err := h.consultas.AtualizarStatus(c.Context(), id, consulta.StatusChange{
		Status:  req.Status,
		Origem:  origem,
		Tela:    req.TelaGatilho,
		ActorID: &claims.UserID,
		Motivo:  "alteracao_admin",
	})
	if err != nil {
		return mapConsultaError(c, err)
	}
	return ok(c, res)
}

// GET /admin/consultas?status=
func (h *AdminHandler) ListarPorStatus(c fiber.Ctx) error {
	list, err := h.consultas.ListarPorStatus(c.Context(), c.Query("status"))
	if err != nil {
		return mapConsultaError(c, err)
	}
	return ok(c, list)
}

// GET /admin/consultas/estatisticas?from=&to=
//
// Both bounds accept RFC 3339 or YYYY-MM-DD. Without from the current month is
// used; without to the period ends now.
func (h *AdminHandler) Estatisticas(c fiber.Ctx) error {
	now := time.Now()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	to := now

	if s := c.Query("from"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			return badRequest(c, "invalid from")
		}
		from = t
	}
	if s := c.Query("to"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			return badRequest(c, "invalid to")
		}
		to = t
	}

	res, err := h.consultas.ObterEstatisticas(c.Context(), from, to)
	if err != nil {
		return mapConsultaError(c, err)
	}
	return ok(c, res)
}

// POST /admin/consultas/:id/repasse
func (h *AdminHandler) RecalcularRepasse(c fiber.Ctx) error {
	id, valid := consultaID(c)
	if !valid {
		return badRequest(c, "invalid consulta id")
	}

	res, err := h.repasse.Process(c.Context(), id, repasse.MotivoRecalculo)
	switch {
	case errors.Is(err, repasse.ErrConsultaNotFound), errors.Is(err, repasse.ErrPsicologoNotFound):
		return notFound(c, err.Error())
	case err != nil:
		return internalError(c, err, "")
	}
	return ok(c, res)
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}
