package repasse

import "errors"

var (
	ErrConsultaNotFound  = errors.New("consulta not found")
	ErrPsicologoNotFound = errors.New("psychologist not found")
)
