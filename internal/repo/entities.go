package repo

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID         uuid.UUID
	Nome       string
	Email      string
	Role       string
	Status     string
	TipoPessoa *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Plano struct {
	ID     uuid.UUID
	Nome   string
	Tipo   string
	Preco  float64
	Status string
}

// Assinatura is loaded together with its Plano.
type Assinatura struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	PlanoID    uuid.UUID
	Status     string
	DataInicio time.Time
	DataFim    *time.Time
	Plano      *Plano
}

type Consulta struct {
	ID           uuid.UUID
	PacienteID   uuid.UUID
	PsicologoID  *uuid.UUID
	Date         time.Time
	Time         string
	Valor        float64
	Status       string
	Faturada     bool
	OrigemStatus *string
	TelaGatilho  *string
	AcaoSaldo    *string
	CicloPlanoID *uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StartsAt combines the scheduled day with the HH:MM time of day in loc.
// A malformed time keeps midnight.
func (c *Consulta) StartsAt(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	d := c.Date.In(loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	hm, err := time.Parse("15:04", c.Time)
	if err != nil {
		return start
	}
	return start.Add(time.Duration(hm.Hour())*time.Hour + time.Duration(hm.Minute())*time.Minute)
}

// ReservaSessao carries its Consulta when loaded through the room queries.
type ReservaSessao struct {
	ID                     uuid.UUID
	ConsultaID             uuid.UUID
	Status                 string
	AgoraChannel           *string
	PatientID              *uuid.UUID
	PsychologistID         *uuid.UUID
	UIDPatient             *int64
	UIDPsychologist        *int64
	AgoraTokenPatient      *string
	AgoraTokenPsychologist *string
	PatientJoinedAt        *time.Time
	PsychologistJoinedAt   *time.Time
	ScheduledAt            *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time

	Consulta *Consulta
}

// JoinMarks are a room's join stamps right after one side joined.
type JoinMarks struct {
	Patient      *time.Time
	Psychologist *time.Time
}

func (j *JoinMarks) Both() bool {
	return j.Patient != nil && j.Psychologist != nil
}

type CancelamentoSessao struct {
	ID         uuid.UUID
	ConsultaID uuid.UUID
	Tipo       string
	Motivo     string
	Status     string
	Data       time.Time
	CreatedAt  time.Time
}

type Commission struct {
	ID          uuid.UUID
	ConsultaID  uuid.UUID
	PsicologoID uuid.UUID
	PacienteID  uuid.UUID
	Valor       float64
	Percentual  float64
	Status      string
	Periodo     string
	TipoPlano   string
	Type        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type ConsultaAvulsa struct {
	ID           uuid.UUID
	PacienteID   uuid.UUID
	Quantidade   int
	Status       string
	AtribuidoPor uuid.UUID
	CreatedAt    time.Time
}

type CreditoAvulso struct {
	ID               uuid.UUID
	ConsultaAvulsaID uuid.UUID
	PacienteID       uuid.UUID
	Quantidade       int
	Usados           int
	Validade         time.Time
	Status           string
	CreatedAt        time.Time
}

type AuditLog struct {
	ID        uuid.UUID
	UserID    *uuid.UUID
	Action    string
	Entity    string
	EntityID  string
	Status    string
	Metadata  string
	CreatedAt time.Time
}

// StatusCount is one bucket of the consulta statistics query.
type StatusCount struct {
	Status   string
	Faturada bool
	Total    int
}

// InactivityCandidate is a consulta past its tolerance window together with
// the join marks of its room (nil when the room was never created).
type InactivityCandidate struct {
	Consulta             Consulta
	PatientJoinedAt      *time.Time
	PsychologistJoinedAt *time.Time
}

// Reminder is a next-day consulta with the psychologist's contact data.
type Reminder struct {
	Consulta       Consulta
	PsicologoNome  string
	PsicologoEmail string
	PacienteNome   string
}
