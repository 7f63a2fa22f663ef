package authorize

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/estacaoterapia/estacao_backend/pkg/reqctx"
)

var ErrNoSubjectInContext = errors.New("no subject found in context")

// SubjectFromContext builds the casbin subject from the request claims.
func SubjectFromContext(ctx context.Context) (Subject, error) {
	claims := reqctx.ClaimsFromContext(ctx)
	if claims == nil || claims.GetUserID() == uuid.Nil {
		return Subject{}, ErrNoSubjectInContext
	}
	return Subject{UserID: claims.GetUserID().String(), Role: Role(claims.GetRole())}, nil
}
