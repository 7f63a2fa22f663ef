package repasse

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estacaoterapia/estacao_backend/config"
	"github.com/estacaoterapia/estacao_backend/internal/repo"
	"github.com/estacaoterapia/estacao_backend/internal/repo/repotest"
)

var testCfg = config.RepasseConfig{
	PercentPJ:         0.40,
	PercentAutonomo:   0.32,
	AntecedenciaHoras: 24,
	Timezone:          "America/Sao_Paulo",
}

type fixture struct {
	db        *repotest.Memory
	svc       Service
	paciente  uuid.UUID
	psicologo uuid.UUID
}

func newFixture(t *testing.T, tipoPessoa string) *fixture {
	t.Helper()
	db := repotest.NewMemory()
	f := &fixture{
		db:        db,
		paciente:  db.AddUser(repo.User{Nome: "Ana", Role: "Patient"}),
		psicologo: db.AddUser(repo.User{Nome: "Bruno", Role: "Psychologist", TipoPessoa: lo.ToPtr(tipoPessoa)}),
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, err := New(db, nil, testCfg, nil, WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) consulta(st string, valor float64) uuid.UUID {
	return f.db.AddConsulta(repo.Consulta{
		PacienteID:  f.paciente,
		PsicologoID: lo.ToPtr(f.psicologo),
		Date:        time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC),
		Time:        "10:00",
		Valor:       valor,
		Status:      st,
	})
}

func TestProcessIsIdempotent(t *testing.T) {
	f := newFixture(t, "Autonomo")
	id := f.consulta("Realizada", 200)
	ctx := context.Background()

	res, err := f.svc.Process(ctx, id, MotivoConcluida)
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, res.Action)

	res, err = f.svc.Process(ctx, id, MotivoConcluida)
	require.NoError(t, err)
	assert.Equal(t, ActionUpdated, res.Action)

	row := f.db.Commission(id)
	require.NotNil(t, row)
	assert.InDelta(t, 64.0, row.Valor, 1e-9)
	assert.InDelta(t, 0.32, row.Percentual, 1e-9)
	assert.Equal(t, StatusDisponivel, row.Status)
	assert.Equal(t, "2026-03", row.Periodo)
	assert.Equal(t, "avulsa", row.TipoPlano)
	assert.Equal(t, TipoRepasse, row.Type)
	assert.Len(t, f.db.Ledger, 1)
	assert.Equal(t, 2, f.db.Upserts)
	assert.Equal(t, 1, f.db.AuditCount(auditAction))
}

func TestProcessPlanBaseValue(t *testing.T) {
	tests := []struct {
		tipo  string
		preco float64
	}{
		{"mensal", 400},
		{"trimestral", 1200},
		{"semestral", 2400},
	}

	for _, tt := range tests {
		t.Run(tt.tipo, func(t *testing.T) {
			f := newFixture(t, "PJ")
			f.db.Subscriptions[f.paciente] = &repo.Assinatura{
				UserID: f.paciente,
				Status: "Ativo",
				Plano:  &repo.Plano{Tipo: tt.tipo, Preco: tt.preco},
			}
			id := f.consulta("Realizada", 180)

			res, err := f.svc.Process(context.Background(), id, MotivoConcluida)
			require.NoError(t, err)
			require.NotNil(t, res.Commission)
			assert.InDelta(t, 40.0, res.Commission.Valor, 1e-9)
			assert.Equal(t, tt.tipo, res.Commission.TipoPlano)
		})
	}
}

func TestProcessExpiredPlanKeepsConsultaValue(t *testing.T) {
	f := newFixture(t, "PJ")
	f.db.Subscriptions[f.paciente] = &repo.Assinatura{
		UserID:  f.paciente,
		Status:  "Ativo",
		DataFim: lo.ToPtr(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)),
		Plano:   &repo.Plano{Tipo: "mensal", Preco: 400},
	}
	id := f.consulta("Realizada", 150)

	res, err := f.svc.Process(context.Background(), id, MotivoConcluida)
	require.NoError(t, err)
	assert.InDelta(t, 60.0, res.Commission.Valor, 1e-9)
	assert.Equal(t, "avulsa", res.Commission.TipoPlano)
}

func TestProcessEligibilityReversalDeletesRow(t *testing.T) {
	f := newFixture(t, "Autonomo")
	id := f.consulta("Realizada", 200)
	ctx := context.Background()

	_, err := f.svc.Process(ctx, id, MotivoConcluida)
	require.NoError(t, err)
	require.NotNil(t, f.db.Commission(id))

	f.db.ConsultasByID[id].Status = "CanceladaPacienteNoPrazo"
	res, err := f.svc.Process(ctx, id, MotivoCancelamentoPaciente)
	require.NoError(t, err)
	assert.Equal(t, ActionDeleted, res.Action)
	assert.Nil(t, f.db.Commission(id))

	res, err = f.svc.Process(ctx, id, MotivoCancelamentoPaciente)
	require.NoError(t, err)
	assert.Equal(t, ActionSkipped, res.Action)
}

func TestProcessDeferredCancellation(t *testing.T) {
	f := newFixture(t, "Autonomo")
	id := f.consulta("CanceladaPsicologoForaPrazo", 200)
	ctx := context.Background()

	res, err := f.svc.Process(ctx, id, "")
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, res.Action)

	require.NoError(t, f.db.Cancelamentos().Create(ctx, &repo.CancelamentoSessao{
		ConsultaID: id, Tipo: "Psicologo", Status: "Deferido",
	}))
	res, err = f.svc.Process(ctx, id, "")
	require.NoError(t, err)
	assert.Equal(t, ActionDeleted, res.Action)
}

func TestProcessFallsBackToAvulsaPrice(t *testing.T) {
	f := newFixture(t, "Autonomo")
	f.db.AvulsaPrice = 250
	id := f.consulta("Realizada", 0)

	res, err := f.svc.Process(context.Background(), id, MotivoConcluida)
	require.NoError(t, err)
	assert.InDelta(t, 80.0, res.Commission.Valor, 1e-9)
}

func TestProcessRetainsForInactivePsychologist(t *testing.T) {
	f := newFixture(t, "Autonomo")
	f.db.UsersByID[f.psicologo].Status = "Inativo"
	id := f.consulta("PacienteNaoCompareceu", 200)

	res, err := f.svc.Process(context.Background(), id, MotivoPacienteNaoCompareceu)
	require.NoError(t, err)
	assert.Equal(t, StatusRetido, res.Commission.Status)
	assert.Equal(t, TipoRepasseCancelamentoPaciente, res.Commission.Type)
}

func TestProcessSkipsWithoutPsychologist(t *testing.T) {
	f := newFixture(t, "Autonomo")
	id := f.db.AddConsulta(repo.Consulta{PacienteID: f.paciente, Status: "Realizada", Valor: 100})

	res, err := f.svc.Process(context.Background(), id, MotivoConcluida)
	require.NoError(t, err)
	assert.Equal(t, ActionSkipped, res.Action)
	assert.Empty(t, f.db.Ledger)
}

func TestProcessUnknownConsulta(t *testing.T) {
	f := newFixture(t, "Autonomo")
	_, err := f.svc.Process(context.Background(), uuid.New(), MotivoConcluida)
	assert.ErrorIs(t, err, ErrConsultaNotFound)
}

func TestPeriodoUsesSaoPauloCalendar(t *testing.T) {
	f := newFixture(t, "Autonomo")
	id := f.db.AddConsulta(repo.Consulta{
		PacienteID:  f.paciente,
		PsicologoID: lo.ToPtr(f.psicologo),
		Date:        time.Date(2026, 4, 1, 1, 0, 0, 0, time.UTC),
		Time:        "22:00",
		Valor:       100,
		Status:      "Realizada",
	})

	res, err := f.svc.Process(context.Background(), id, MotivoConcluida)
	require.NoError(t, err)
	assert.Equal(t, "2026-03", res.Commission.Periodo)
}

func TestTypeTag(t *testing.T) {
	assert.Equal(t, TipoRepasseCancelamentoPaciente, typeTag(MotivoCancelamentoPaciente))
	assert.Equal(t, TipoRepasseCancelamentoPaciente, typeTag(MotivoPacienteNaoCompareceu))
	assert.Equal(t, TipoRepasseCancelamentoInatividade, typeTag(MotivoInatividade))
	assert.Equal(t, TipoRepasse, typeTag(MotivoConcluida))
}

func TestDeferido(t *testing.T) {
	assert.True(t, *Deferido("Deferido"))
	assert.False(t, *Deferido("Indeferido"))
	assert.Nil(t, Deferido("EmAnalise"))
}

func TestHandleTask(t *testing.T) {
	f := newFixture(t, "Autonomo")
	id := f.consulta("Realizada", 100)

	payload, err := json.Marshal(Task{ConsultaID: id, Motivo: MotivoConcluida})
	require.NoError(t, err)
	require.NoError(t, f.svc.HandleTask(context.Background(), payload))
	assert.NotNil(t, f.db.Commission(id))

	assert.Error(t, f.svc.HandleTask(context.Background(), []byte("{")))
}
