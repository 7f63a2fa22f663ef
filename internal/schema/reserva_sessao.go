package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ReservaSessao is the video-room bookkeeping row of a Consulta.
type ReservaSessao struct {
	ent.Schema
}

func (ReservaSessao) Mixin() []ent.Mixin {
	return []ent.Mixin{IDMixin{}, TimeStampedMixin{}}
}

func (ReservaSessao) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("consulta_id", uuidType),
		field.String("status").
			Default("Reservado"),
		field.String("agora_channel").
			Optional().
			Nillable(),
		field.UUID("patient_id", uuidType).
			Optional().
			Nillable().
			Comment("copy of consultas.paciente_id for legacy readers"),
		field.UUID("psychologist_id", uuidType).
			Optional().
			Nillable().
			Comment("copy of consultas.psicologo_id for legacy readers"),
		field.Int64("uid_patient").
			Optional().
			Nillable(),
		field.Int64("uid_psychologist").
			Optional().
			Nillable(),
		field.Text("agora_token_patient").
			Optional().
			Nillable(),
		field.Text("agora_token_psychologist").
			Optional().
			Nillable(),
		field.Time("patient_joined_at").
			Optional().
			Nillable(),
		field.Time("psychologist_joined_at").
			Optional().
			Nillable(),
		field.Time("scheduled_at").
			Optional().
			Nillable(),
	}
}

func (ReservaSessao) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("consulta_id").Unique(),
		index.Fields("agora_channel"),
	}
}
