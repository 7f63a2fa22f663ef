package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ConsultaAvulsa is an ad-hoc session grant issued by the back office.
type ConsultaAvulsa struct {
	ent.Schema
}

func (ConsultaAvulsa) Mixin() []ent.Mixin {
	return []ent.Mixin{IDMixin{}, CreatedAtMixin{}}
}

func (ConsultaAvulsa) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("paciente_id", uuidType),
		field.Int("quantidade").
			Positive(),
		field.String("status").
			Default("Ativa"),
		field.UUID("atribuido_por", uuidType),
	}
}

// CreditoAvulso is the consumable allowance created alongside a ConsultaAvulsa.
type CreditoAvulso struct {
	ent.Schema
}

func (CreditoAvulso) Mixin() []ent.Mixin {
	return []ent.Mixin{IDMixin{}, CreatedAtMixin{}}
}

func (CreditoAvulso) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("consulta_avulsa_id", uuidType),
		field.UUID("paciente_id", uuidType),
		field.Int("quantidade"),
		field.Int("usados").
			Default(0),
		field.Time("validade"),
		field.String("status").
			Default("Ativo"),
	}
}

func (CreditoAvulso) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("paciente_id", "status"),
		index.Fields("consulta_avulsa_id").Unique(),
	}
}
