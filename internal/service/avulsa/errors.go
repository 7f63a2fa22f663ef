package avulsa

import "errors"

var (
	ErrPacienteNotFound  = errors.New("paciente not found")
	ErrInvalidQuantidade = errors.New("quantidade must be positive")
	ErrInvalidValidade   = errors.New("validadeDias must be positive")
)
