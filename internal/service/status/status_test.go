package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestNormalize(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	longAhead := now.Add(48 * time.Hour)
	soon := now.Add(3 * time.Hour)

	tests := []struct {
		name string
		raw  string
		ctx  Context
		want Status
	}{
		{name: "known status maps to itself", raw: "CanceladaForcaMaior", want: CanceladaForcaMaior},
		{name: "alias", raw: "CanceladaPacienteForaDoPrazo", want: CanceladaPacienteForaPrazo},
		{name: "reservado is agendada", raw: "Reservado", want: Agendada},
		{name: "andamento", raw: "Andamento", want: EmAndamento},
		{name: "concluido", raw: "Concluído", want: Realizada},
		{name: "fora da plataforma", raw: "Fora da plataforma", want: ForaDaPlataforma},
		{name: "sistemico psicologo", raw: "cancelamento_sistemico_psicologo", want: CancelamentoSistemicoPsicologo},
		{
			name: "cancelado by patient is a patient no-show",
			raw:  Cancelado,
			ctx:  Context{TipoAutor: "Paciente", PacienteNaoCompareceu: true},
			want: PacienteNaoCompareceu,
		},
		{
			name: "both absent",
			raw:  "CanceladaPorInatividade",
			ctx:  Context{PacienteNaoCompareceu: true, PsicologoNaoCompareceu: true},
			want: AmbosNaoCompareceram,
		},
		{
			name: "forca maior motivo wins over author",
			raw:  CanceladaPorPsicologo,
			ctx:  Context{TipoAutor: "Psicologo", Motivo: "Motivo de Força Maior"},
			want: CanceladaForcaMaior,
		},
		{
			name: "nao cumprimento by patient",
			raw:  CanceladaPorPaciente,
			ctx:  Context{TipoAutor: "Paciente", Motivo: "não cumprimento contratual"},
			want: CanceladaNaoCumprimentoContratualPaciente,
		},
		{
			name: "patient with notice",
			raw:  CanceladaPorPaciente,
			ctx:  Context{TipoAutor: "Paciente", DataConsulta: longAhead, Now: now},
			want: CanceladaPacienteNoPrazo,
		},
		{
			name: "patient late",
			raw:  CanceladaPorPaciente,
			ctx:  Context{TipoAutor: "Paciente", DataConsulta: soon, Now: now},
			want: CanceladaPacienteForaPrazo,
		},
		{
			name: "psychologist late",
			raw:  CanceladaPorPsicologo,
			ctx:  Context{TipoAutor: "Psicologo", DataConsulta: soon, Now: now},
			want: CanceladaPsicologoForaPrazo,
		},
		{
			name: "admin cancellation",
			raw:  CanceladaPorInatividade,
			ctx:  Context{TipoAutor: "Admin"},
			want: CanceladoAdministrador,
		},
		{
			name: "unknown author defaults to patient in time",
			raw:  "cancelada",
			ctx:  Context{TipoAutor: "Outro"},
			want: CanceladaPacienteNoPrazo,
		},
		{
			name: "reagendada by psychologist late",
			raw:  "Reagendada",
			ctx:  Context{TipoAutor: "Psicologo", DataConsulta: soon, Now: now},
			want: ReagendadaPsicologoForaPrazo,
		},
		{name: "fallback", raw: "algo", want: Agendada},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw, tt.ctx))
		})
	}
}

func TestPays(t *testing.T) {
	tests := []struct {
		status   Status
		deferido *bool
		want     bool
	}{
		{Realizada, nil, true},
		{PacienteNaoCompareceu, nil, true},
		{PsicologoNaoCompareceu, nil, false},
		{AmbosNaoCompareceram, nil, false},
		{CanceladaPacienteForaPrazo, nil, true},
		{CanceladaPsicologoForaPrazo, nil, true},
		{CanceladaPsicologoForaPrazo, boolPtr(true), false},
		{CanceladaPsicologoForaPrazo, boolPtr(false), false},
		{CanceladaNaoCumprimentoContratualPaciente, nil, true},
		{CanceladaNaoCumprimentoContratualPaciente, boolPtr(false), false},
		{CanceladaNaoCumprimentoContratualPsicologo, boolPtr(true), false},
		{CanceladaForcaMaior, boolPtr(true), false},
	}

	for _, tt := range tests {
		info, ok := Lookup(string(tt.status))
		require.True(t, ok, tt.status)
		assert.Equal(t, tt.want, info.Pays(tt.deferido), "%s deferido=%v", tt.status, tt.deferido)
	}
}

func TestReturnsSession(t *testing.T) {
	forca, _ := Lookup(string(CanceladaForcaMaior))
	assert.False(t, forca.ReturnsSession(nil))
	assert.False(t, forca.ReturnsSession(boolPtr(false)))
	assert.True(t, forca.ReturnsSession(boolPtr(true)))

	psi, _ := Lookup(string(PsicologoNaoCompareceu))
	assert.True(t, psi.ReturnsSession(nil))

	pac, _ := Lookup(string(PacienteNaoCompareceu))
	assert.False(t, pac.ReturnsSession(nil))

	contrato, _ := Lookup(string(CanceladaNaoCumprimentoContratualPaciente))
	assert.False(t, contrato.ReturnsSession(boolPtr(true)))
}

func TestLookupRaw(t *testing.T) {
	info, ok := Lookup(Reservado)
	require.True(t, ok)
	assert.Equal(t, NaoAltera, info.Balance)
	assert.True(t, info.Pays(nil))

	info, ok = Lookup("CANCELAMENTO_SISTEMICO_PACIENTE")
	require.True(t, ok)
	assert.Equal(t, CancelamentoSistemicoPaciente, info.Status)

	_, ok = Lookup("Inexistente")
	assert.False(t, ok)
}

func TestTransitionAllowed(t *testing.T) {
	assert.False(t, TransitionAllowed("Realizada", "Agendada"))
	assert.False(t, TransitionAllowed("PsicologoNaoCompareceu", "EmAndamento"))
	assert.True(t, TransitionAllowed("Realizada", "CanceladoAdministrador"))
	assert.True(t, TransitionAllowed("Reservado", "EmAndamento"))
}

func TestNoShowFlags(t *testing.T) {
	pac, psi := NoShowFlags(Cancelado, "Psicologo")
	assert.False(t, pac)
	assert.True(t, psi)

	pac, psi = NoShowFlags("AmbosNaoCompareceram", "")
	assert.True(t, pac)
	assert.True(t, psi)
}

func TestAllIsSorted(t *testing.T) {
	all := All()
	require.Len(t, all, 21)
	for i := 1; i < len(all); i++ {
		assert.Less(t, string(all[i-1].Status), string(all[i].Status))
	}
}
