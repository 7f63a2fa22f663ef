package avulsa

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estacaoterapia/estacao_backend/internal/repo"
	"github.com/estacaoterapia/estacao_backend/internal/repo/repotest"
)

func TestGrant(t *testing.T) {
	db := repotest.NewMemory()
	pac := db.AddUser(repo.User{Nome: "Ana", Role: "Patient"})
	admin := uuid.New()

	svc := New(db, nil).(*avulsaService)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	res, err := svc.Grant(context.Background(), admin, GrantRequest{PacienteID: pac, Quantidade: 2})
	require.NoError(t, err)

	require.Len(t, db.Grants, 1)
	require.Len(t, db.Creditos, 1)
	assert.Equal(t, admin, db.Grants[0].AtribuidoPor)
	assert.Equal(t, res.Grant.ID, db.Creditos[0].ConsultaAvulsaID)
	assert.Equal(t, fixed.AddDate(0, 0, DefaultValidadeDias), res.Credito.Validade)
	assert.Equal(t, 1, db.AuditCount("consulta_avulsa_atribuida"))

	res, err = svc.Grant(context.Background(), admin, GrantRequest{PacienteID: pac, Quantidade: 1, ValidadeDias: lo.ToPtr(7)})
	require.NoError(t, err)
	assert.Equal(t, fixed.AddDate(0, 0, 7), res.Credito.Validade)
}

func TestGrantRejects(t *testing.T) {
	db := repotest.NewMemory()
	pac := db.AddUser(repo.User{Nome: "Ana"})
	svc := New(db, nil)

	tests := []struct {
		name string
		req  GrantRequest
		want error
	}{
		{name: "zero quantidade", req: GrantRequest{PacienteID: pac}, want: ErrInvalidQuantidade},
		{name: "negative validade", req: GrantRequest{PacienteID: pac, Quantidade: 1, ValidadeDias: lo.ToPtr(-1)}, want: ErrInvalidValidade},
		{name: "unknown paciente", req: GrantRequest{PacienteID: uuid.New(), Quantidade: 1}, want: ErrPacienteNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Grant(context.Background(), uuid.New(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, db.Grants)
}

func TestGrantCreditoFailure(t *testing.T) {
	db := repotest.NewMemory()
	pac := db.AddUser(repo.User{Nome: "Ana"})
	boom := errors.New("insert failed")
	db.Fail["Avulsas.CreateCredito"] = boom

	_, err := New(db, nil).Grant(context.Background(), uuid.New(), GrantRequest{PacienteID: pac, Quantidade: 1})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, db.AuditCount("consulta_avulsa_atribuida"))
}
