package address

import "errors"

var (
	ErrInvalidCEP = errors.New("cep inválido")
	ErrNotFound   = errors.New("cep não encontrado")
)
