package authorize

import (
	"context"
	"log/slog"
	"time"
)

// AuditedAuthorization logs every decision.
type AuditedAuthorization struct {
	IAuthorization
	logger *slog.Logger
}

func NewAuditedAuthorization(inner IAuthorization, logger *slog.Logger) IAuthorization {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditedAuthorization{IAuthorization: inner, logger: logger.With("component", "authz")}
}

func (a *AuditedAuthorization) Enforce(ctx context.Context, sub Subject, object Resource, action Action) (bool, error) {
	start := time.Now()
	allowed, err := a.IAuthorization.Enforce(ctx, sub, object, action)

	attrs := []any{
		"user_id", sub.UserID,
		"role", string(sub.Role),
		"resource", string(object),
		"action", string(action),
		"allowed", allowed,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	switch {
	case err != nil:
		a.logger.Error("authz_decision", append(attrs, "error", err)...)
	case allowed:
		a.logger.Debug("authz_decision", attrs...)
	default:
		a.logger.Warn("authz_decision", attrs...)
	}
	return allowed, err
}

func (a *AuditedAuthorization) MustEnforce(ctx context.Context, sub Subject, object Resource, action Action) error {
	ok, err := a.Enforce(ctx, sub, object, action)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}
