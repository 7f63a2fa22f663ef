package notification

import "errors"

var (
	ErrConsultaNotFound = errors.New("consulta not found")
	ErrNoRecipients     = errors.New("no participant could be resolved")
)
