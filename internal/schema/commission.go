package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Commission is the payout ledger row of a Consulta. It is derived data and
// may be rewritten or removed whenever the consulta is re-evaluated.
type Commission struct {
	ent.Schema
}

func (Commission) Mixin() []ent.Mixin {
	return []ent.Mixin{IDMixin{}, TimeStampedMixin{}}
}

func (Commission) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("consulta_id", uuidType),
		field.UUID("psicologo_id", uuidType),
		field.UUID("paciente_id", uuidType),
		field.Float("valor").
			Min(0),
		field.Float("percentual"),
		field.Enum("status").
			Values("disponivel", "retido", "pago"),
		field.String("periodo").
			MaxLen(7),
		field.Enum("tipo_plano").
			Values("avulsa", "mensal", "trimestral", "semestral"),
		field.String("type").
			Default("repasse"),
	}
}

func (Commission) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("consulta_id").Unique(),
		index.Fields("psicologo_id", "periodo"),
	}
}
