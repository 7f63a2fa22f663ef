package consulta

import "errors"

var (
	ErrNotFound            = errors.New("consulta not found")
	ErrNotParticipant      = errors.New("user is not a participant of this consulta")
	ErrOutsideWindow       = errors.New("consulta can only start within 10 minutes of its scheduled time")
	ErrNotStartable        = errors.New("consulta can no longer be started")
	ErrAnotherInProgress   = errors.New("patient or psychologist already has a consulta in progress")
	ErrParticipantsAbsent  = errors.New("paciente e psicólogo precisam ter entrado na sala")
	ErrUnknownStatus       = errors.New("unknown consulta status")
	ErrForbiddenTransition = errors.New("status transition not allowed")
	ErrInvalidParty        = errors.New("party must be paciente, psicologo or ambos")
	ErrRescheduleOutOfTime = errors.New("patient reschedules are only allowed within the notice period")
	ErrMissingStatus       = errors.New("status is required")
	ErrInvalidPeriod       = errors.New("period end must be after its start")
)
