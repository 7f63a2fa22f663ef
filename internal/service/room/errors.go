package room

import "errors"

var (
	ErrMissingChannel         = errors.New("channelName is required")
	ErrMissingConsulta        = errors.New("consultaId is required")
	ErrInvalidUID             = errors.New("uid must be a positive 32-bit integer")
	ErrRoomNotFound           = errors.New("room not found")
	ErrConsultaNotFound       = errors.New("consulta not found")
	ErrNotParticipant         = errors.New("caller is not a participant of this session")
	ErrParticipantsUnresolved = errors.New("patient and psychologist must both be known to issue tokens")
	ErrEmptyToken             = errors.New("token provider returned an empty token")
	ErrTokenGeneration        = errors.New("failed to generate access tokens")
)
