package status

import (
	"strings"
	"time"
)

// Context carries what is known about a consulta besides its raw status.
type Context struct {
	// TipoAutor is the author type of the latest cancellation
	// (Paciente, Psicologo, Admin, Management, Sistema).
	TipoAutor              string
	Motivo                 string
	DataConsulta           time.Time
	Now                    time.Time
	AntecedenciaHoras      int
	PacienteNaoCompareceu  bool
	PsicologoNaoCompareceu bool
}

// NoPrazo reports whether the consulta is at least AntecedenciaHoras away.
// Unknown dates count as within the notice period.
func (c Context) NoPrazo() bool {
	if c.DataConsulta.IsZero() {
		return true
	}
	now := c.Now
	if now.IsZero() {
		now = time.Now()
	}
	horas := c.AntecedenciaHoras
	if horas <= 0 {
		horas = 24
	}
	return int(c.DataConsulta.Sub(now).Hours()) >= horas
}

// Normalize classifies a raw status into the catalogue.
func Normalize(raw string, c Context) Status {
	if st, ok := Known(strings.TrimSpace(raw)); ok {
		return st
	}

	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "andamento", "em andamento":
		return EmAndamento
	case "concluido", "concluído", "realizada":
		return Realizada
	case "reservado", "agendado":
		return Agendada
	}

	switch {
	case strings.Contains(s, "fora da plataforma"), strings.Contains(s, "foradaplataforma"):
		return ForaDaPlataforma
	case strings.Contains(s, "cancelamento_sistemico_psicologo"):
		return CancelamentoSistemicoPsicologo
	case strings.Contains(s, "cancelamento_sistemico_paciente"):
		return CancelamentoSistemicoPaciente
	}

	switch {
	case c.PacienteNaoCompareceu && c.PsicologoNaoCompareceu:
		return AmbosNaoCompareceram
	case c.PacienteNaoCompareceu:
		return PacienteNaoCompareceu
	case c.PsicologoNaoCompareceu:
		return PsicologoNaoCompareceu
	}

	autor := strings.ToLower(strings.TrimSpace(c.TipoAutor))
	if autor == "" {
		autor = "paciente"
	}

	if strings.Contains(s, "cancel") {
		motivo := strings.ToLower(c.Motivo)
		switch {
		case containsAny(motivo, "força maior", "forca maior", "força-maior", "forca-maior"):
			return CanceladaForcaMaior
		case containsAny(motivo, "não cumprimento", "nao cumprimento", "não-cumprimento", "nao-cumprimento"):
			if isPaciente(autor) {
				return CanceladaNaoCumprimentoContratualPaciente
			}
			return CanceladaNaoCumprimentoContratualPsicologo
		}

		switch {
		case isPaciente(autor):
			if c.NoPrazo() {
				return CanceladaPacienteNoPrazo
			}
			return CanceladaPacienteForaPrazo
		case isPsicologo(autor):
			if c.NoPrazo() {
				return CanceladaPsicologoNoPrazo
			}
			return CanceladaPsicologoForaPrazo
		case autor == "admin" || autor == "management" || autor == "sistema":
			return CanceladoAdministrador
		default:
			return CanceladaPacienteNoPrazo
		}
	}

	if strings.Contains(s, "reagend") {
		switch {
		case isPaciente(autor):
			return ReagendadaPacienteNoPrazo
		case isPsicologo(autor):
			if c.NoPrazo() {
				return ReagendadaPsicologoNoPrazo
			}
			return ReagendadaPsicologoForaPrazo
		}
	}

	return Agendada
}

// NoShowFlags derives the no-show markers from the raw status and the
// author of the latest cancellation.
func NoShowFlags(raw, tipoAutor string) (paciente, psicologo bool) {
	autor := strings.ToLower(tipoAutor)
	paciente = raw == string(PacienteNaoCompareceu) || (raw == Cancelado && isPaciente(autor))
	psicologo = raw == string(PsicologoNaoCompareceu) || (raw == Cancelado && isPsicologo(autor))
	if raw == string(AmbosNaoCompareceram) {
		paciente, psicologo = true, true
	}
	return paciente, psicologo
}

func isPaciente(autor string) bool  { return autor == "paciente" || autor == "patient" }
func isPsicologo(autor string) bool { return autor == "psicologo" || autor == "psicólogo" || autor == "psychologist" }

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
