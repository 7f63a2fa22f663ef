package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v3"

	pasetotoken "github.com/estacaoterapia/estacao_backend/pkg/paseto"
	"github.com/estacaoterapia/estacao_backend/pkg/reqctx"
)

func ok(c fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{"data": data})
}

func created(c fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": data})
}

func badRequest(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func unauthorized(c fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
}

func forbidden(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": msg})
}

func notFound(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": msg})
}

func conflict(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": msg})
}

// internalError logs the cause with the request correlation attributes; the
// client only sees msg.
func internalError(c fiber.Ctx, err error, msg string) error {
	slog.ErrorContext(c.Context(), "request failed",
		append(reqctx.LogAttrs(c.Context()), "path", c.Path(), "error", err)...)
	if msg == "" {
		msg = "internal server error"
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": msg})
}

func claimsOf(c fiber.Ctx) (*pasetotoken.Claims, bool) {
	return pasetotoken.ClaimsFromFiber(c)
}
