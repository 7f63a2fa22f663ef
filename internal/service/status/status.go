// Package status holds the consulta status catalogue: which statuses pay the
// psychologist, what happens to the patient's balance, and how legacy raw
// statuses normalize.
package status

import (
	"slices"

	"github.com/samber/lo"
)

// Status is a normalized consulta status. The value is what gets stored.
type Status string

const (
	Agendada                                   Status = "Agendada"
	EmAndamento                                Status = "EmAndamento"
	Realizada                                  Status = "Realizada"
	PacienteNaoCompareceu                      Status = "PacienteNaoCompareceu"
	PsicologoNaoCompareceu                     Status = "PsicologoNaoCompareceu"
	AmbosNaoCompareceram                       Status = "AmbosNaoCompareceram"
	CancelamentoSistemicoPsicologo             Status = "CancelamentoSistemicoPsicologo"
	CancelamentoSistemicoPaciente              Status = "CancelamentoSistemicoPaciente"
	ForaDaPlataforma                           Status = "ForaDaPlataforma"
	CanceladaPacienteNoPrazo                   Status = "CanceladaPacienteNoPrazo"
	CanceladaPsicologoNoPrazo                  Status = "CanceladaPsicologoNoPrazo"
	ReagendadaPacienteNoPrazo                  Status = "ReagendadaPacienteNoPrazo"
	ReagendadaPsicologoNoPrazo                 Status = "ReagendadaPsicologoNoPrazo"
	CanceladaPacienteForaPrazo                 Status = "CanceladaPacienteForaPrazo"
	CanceladaPsicologoForaPrazo                Status = "CanceladaPsicologoForaPrazo"
	CanceladaForcaMaior                        Status = "CanceladaForcaMaior"
	CanceladaNaoCumprimentoContratualPaciente  Status = "CanceladaNaoCumprimentoContratualPaciente"
	CanceladaNaoCumprimentoContratualPsicologo Status = "CanceladaNaoCumprimentoContratualPsicologo"
	ReagendadaPsicologoForaPrazo               Status = "ReagendadaPsicologoForaPrazo"
	PsicologoDescredenciado                    Status = "PsicologoDescredenciado"
	CanceladoAdministrador                     Status = "CanceladoAdministrador"
)

// Raw statuses written by older flows; they are normalized before any
// payout decision.
const (
	Reservado               = "Reservado"
	Cancelado               = "Cancelado"
	CanceladaPorPaciente    = "CanceladaPorPaciente"
	CanceladaPorPsicologo   = "CanceladaPorPsicologo"
	CanceladaPorInatividade = "CanceladaPorInatividade"
)

// Room statuses mirrored on reserva_sessao.
const (
	RoomReservado = "Reservado"
	RoomAndamento = "Andamento"
	RoomConcluido = "Concluido"
)

type Payable int

const (
	PayNo Payable = iota
	PayYes
	PayConditional
)

// Balance is the effect on the patient's session balance.
type Balance string

const (
	NaoAltera               Balance = "Não altera"
	NaoDevolve              Balance = "Não devolve"
	DevolveSessao           Balance = "Devolve sessão"
	DevolveSessaoSeDeferida Balance = "Devolve sessão (se deferida)"
	NaoDevolveSeDeferida    Balance = "Não devolve (se deferida)"
)

const (
	TelaHome      = "Home - Módulo Agendamento de Consultas"
	TelaModulo    = "Módulo Realização de Sessão"
	TelaSistemico = "Sistêmico"
)

type Origem string

const (
	OrigemSistemico  Origem = "Sistêmico"
	OrigemPsicologo  Origem = "Psicólogo"
	OrigemAdmin      Origem = "Admin"
	OrigemPaciente   Origem = "Paciente"
	OrigemManagement Origem = "Management"
)

// Info describes one catalogue entry.
type Info struct {
	Status  Status
	Display string
	Payable Payable
	Balance Balance
	Tela    string
}

var catalogue = map[Status]Info{
	Agendada:                       {Agendada, "Agendada", PayYes, NaoAltera, TelaHome},
	EmAndamento:                    {EmAndamento, "Em Andamento", PayYes, NaoAltera, TelaModulo},
	Realizada:                      {Realizada, "Realizada", PayYes, NaoAltera, TelaModulo},
	PacienteNaoCompareceu:          {PacienteNaoCompareceu, "Paciente Não Compareceu", PayYes, NaoDevolve, TelaModulo},
	PsicologoNaoCompareceu:         {PsicologoNaoCompareceu, "Psicólogo Não Compareceu", PayNo, DevolveSessao, TelaModulo},
	AmbosNaoCompareceram:           {AmbosNaoCompareceram, "Ambos Não Compareceram", PayNo, NaoDevolve, TelaModulo},
	CancelamentoSistemicoPsicologo: {CancelamentoSistemicoPsicologo, "Cancelamento Sistêmico Psicólogo", PayNo, DevolveSessao, TelaModulo},
	CancelamentoSistemicoPaciente:  {CancelamentoSistemicoPaciente, "Cancelamento Sistêmico Paciente", PayYes, NaoDevolve, TelaModulo},
	ForaDaPlataforma:               {ForaDaPlataforma, "Fora da plataforma", PayYes, NaoDevolve, TelaSistemico},
	CanceladaPacienteNoPrazo:       {CanceladaPacienteNoPrazo, "Cancelada Paciente no Prazo", PayNo, DevolveSessao, TelaHome},
	CanceladaPsicologoNoPrazo:      {CanceladaPsicologoNoPrazo, "Cancelada Psicólogo no Prazo", PayNo, DevolveSessao, TelaHome},
	ReagendadaPacienteNoPrazo:      {ReagendadaPacienteNoPrazo, "Reagendada Paciente no Prazo", PayNo, DevolveSessao, TelaHome},
	ReagendadaPsicologoNoPrazo:     {ReagendadaPsicologoNoPrazo, "Reagendada Psicólogo no Prazo", PayNo, DevolveSessao, TelaHome},
	CanceladaPacienteForaPrazo:     {CanceladaPacienteForaPrazo, "Cancelada Paciente Fora do Prazo", PayYes, NaoDevolve, TelaHome},
	CanceladaPsicologoForaPrazo:    {CanceladaPsicologoForaPrazo, "Cancelada Psicólogo Fora do Prazo", PayConditional, DevolveSessao, TelaHome},
	CanceladaForcaMaior:            {CanceladaForcaMaior, "Cancelada Força Maior", PayNo, DevolveSessaoSeDeferida, TelaHome},
	CanceladaNaoCumprimentoContratualPaciente: {
		CanceladaNaoCumprimentoContratualPaciente, "Cancelada Não Cumprimento Contratual Paciente",
		PayConditional, NaoDevolveSeDeferida, TelaModulo,
	},
	CanceladaNaoCumprimentoContratualPsicologo: {
		CanceladaNaoCumprimentoContratualPsicologo, "Cancelada Não Cumprimento Contratual Psicólogo",
		PayConditional, DevolveSessaoSeDeferida, TelaModulo,
	},
	ReagendadaPsicologoForaPrazo: {ReagendadaPsicologoForaPrazo, "Reagendada Psicólogo Fora do Prazo", PayNo, DevolveSessao, TelaModulo},
	PsicologoDescredenciado:      {PsicologoDescredenciado, "Psicólogo Descredenciado", PayNo, DevolveSessao, TelaSistemico},
	CanceladoAdministrador:       {CanceladoAdministrador, "Cancelado Administrador", PayNo, DevolveSessao, TelaHome},
}

// aliases maps raw spellings that mean exactly one catalogue entry.
var aliases = map[string]Status{
	"CanceladaPacienteForaDoPrazo":     CanceladaPacienteForaPrazo,
	"CanceladaPsicologoForaDoPrazo":    CanceladaPsicologoForaPrazo,
	"ReagendadaPsicologoForaDoPrazo":   ReagendadaPsicologoForaPrazo,
	"CANCELAMENTO_SISTEMICO_PSICOLOGO": CancelamentoSistemicoPsicologo,
	"CANCELAMENTO_SISTEMICO_PACIENTE":  CancelamentoSistemicoPaciente,
}

// rawInfo covers raw statuses whose write-time effect is fixed even though
// their payout status depends on cancellation context.
var rawInfo = map[string]Info{
	Reservado: {Agendada, "Reservado", PayYes, NaoAltera, TelaHome},
	Cancelado: {CanceladoAdministrador, "Cancelado", PayNo, DevolveSessao, TelaHome},
}

// Lookup resolves a normalized status or a raw spelling with a fixed meaning.
func Lookup(s string) (Info, bool) {
	if info, ok := catalogue[Status(s)]; ok {
		return info, true
	}
	if st, ok := aliases[s]; ok {
		return catalogue[st], true
	}
	info, ok := rawInfo[s]
	return info, ok
}

// Known reports whether s is a normalized status (or one of its aliases).
func Known(s string) (Status, bool) {
	if _, ok := catalogue[Status(s)]; ok {
		return Status(s), true
	}
	st, ok := aliases[s]
	return st, ok
}

// All returns the catalogue ordered by status name.
func All() []Info {
	keys := lo.Keys(catalogue)
	slices.Sort(keys)
	return lo.Map(keys, func(k Status, _ int) Info { return catalogue[k] })
}

// Pays decides payout eligibility. deferido is nil while no reviewed
// cancellation exists; an explicit false never pays.
func (i Info) Pays(deferido *bool) bool {
	switch i.Payable {
	case PayYes:
		return true
	case PayNo:
		return false
	}

	if deferido != nil && !*deferido {
		return false
	}
	switch i.Status {
	case CanceladaPsicologoForaPrazo:
		return deferido == nil
	case CanceladaNaoCumprimentoContratualPaciente:
		return true
	default:
		return false
	}
}

// ReturnsSession reports whether the status gives the session back to the
// patient's plan cycle.
func (i Info) ReturnsSession(deferido *bool) bool {
	switch i.Balance {
	case DevolveSessao:
		return true
	case DevolveSessaoSeDeferida:
		return deferido != nil && *deferido
	default:
		return false
	}
}

// AlreadyReturned lists statuses whose write already gave the session back,
// so moving away from them must not return it twice.
var AlreadyReturned = []string{
	string(PsicologoNaoCompareceu),
	string(CanceladaPsicologoNoPrazo),
	string(CanceladaPsicologoForaPrazo),
	"CanceladaPsicologoForaDoPrazo",
	string(ReagendadaPsicologoNoPrazo),
	string(ReagendadaPsicologoForaPrazo),
	"ReagendadaPsicologoForaDoPrazo",
	string(PsicologoDescredenciado),
	string(CanceladoAdministrador),
}

// NotStartable lists the statuses from which a consulta can no longer be
// put in progress.
var NotStartable = []string{
	string(EmAndamento),
	string(Realizada),
	Cancelado,
	CanceladaPorPaciente,
	CanceladaPorPsicologo,
	CanceladaPorInatividade,
	string(PacienteNaoCompareceu),
	string(PsicologoNaoCompareceu),
	string(AmbosNaoCompareceram),
	string(CanceladaPacienteNoPrazo),
	string(CanceladaPsicologoNoPrazo),
	string(CanceladaPacienteForaPrazo),
	string(CanceladaPsicologoForaPrazo),
	string(CanceladaForcaMaior),
	string(CanceladaNaoCumprimentoContratualPaciente),
	string(CanceladaNaoCumprimentoContratualPsicologo),
	string(CancelamentoSistemicoPaciente),
	string(CancelamentoSistemicoPsicologo),
	string(ReagendadaPacienteNoPrazo),
	string(ReagendadaPsicologoNoPrazo),
	string(ReagendadaPsicologoForaPrazo),
	string(PsicologoDescredenciado),
	string(CanceladoAdministrador),
	string(ForaDaPlataforma),
}

// forbidden lists transitions that may never happen, by origin status.
var forbidden = map[string][]string{
	string(Realizada): {
		string(Agendada), Reservado,
		string(CanceladaPacienteNoPrazo), string(CanceladaPsicologoNoPrazo),
		string(PacienteNaoCompareceu), string(PsicologoNaoCompareceu),
	},
	string(PacienteNaoCompareceu): {
		string(Realizada), string(EmAndamento),
		string(CanceladaPacienteNoPrazo), string(CanceladaPsicologoNoPrazo),
	},
	string(PsicologoNaoCompareceu): {
		string(Realizada), string(EmAndamento),
		string(CanceladaPacienteNoPrazo), string(CanceladaPsicologoNoPrazo),
	},
}

func TransitionAllowed(from, to string) bool {
	return !lo.Contains(forbidden[from], to)
}
