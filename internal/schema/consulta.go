package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Consulta is one booked therapy session. It owns the canonical status.
type Consulta struct {
	ent.Schema
}

func (Consulta) Mixin() []ent.Mixin {
	return []ent.Mixin{IDMixin{}, TimeStampedMixin{}}
}

func (Consulta) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("paciente_id", uuidType),
		field.UUID("psicologo_id", uuidType).
			Optional().
			Nillable(),
		field.Time("date").
			Comment("scheduled start, stored in UTC"),
		field.String("time").
			MaxLen(5).
			Comment("HH:MM in America/Sao_Paulo, kept for display"),
		field.Float("valor").
			Default(0),
		field.String("status").
			Default("Reservado"),
		field.Bool("faturada").
			Default(false),
		field.String("origem_status").
			Optional().
			Nillable(),
		field.String("tela_gatilho").
			Optional().
			Nillable(),
		field.String("acao_saldo").
			Optional().
			Nillable(),
		field.UUID("ciclo_plano_id", uuidType).
			Optional().
			Nillable(),
	}
}

func (Consulta) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("paciente_id", "status"),
		index.Fields("psicologo_id", "status"),
		index.Fields("status", "date"),
	}
}
