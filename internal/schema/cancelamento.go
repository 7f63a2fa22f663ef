package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// CancelamentoSessao records a cancellation request and its review outcome.
type CancelamentoSessao struct {
	ent.Schema
}

func (CancelamentoSessao) Mixin() []ent.Mixin {
	return []ent.Mixin{IDMixin{}, CreatedAtMixin{}}
}

func (CancelamentoSessao) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("consulta_id", uuidType),
		field.String("tipo").
			Comment("Paciente, Psicologo, Admin, Management or Sistema"),
		field.Text("motivo").
			Default(""),
		field.Enum("status").
			Values("EmAnalise", "Deferido", "Indeferido").
			Default("EmAnalise"),
		field.Time("data"),
	}
}

func (CancelamentoSessao) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("consulta_id", "data"),
	}
}
