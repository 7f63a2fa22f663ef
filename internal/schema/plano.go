package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Plano is a sellable subscription or one-off package.
type Plano struct {
	ent.Schema
}

func (Plano) Mixin() []ent.Mixin {
	return []ent.Mixin{IDMixin{}, TimeStampedMixin{}}
}

func (Plano) Fields() []ent.Field {
	return []ent.Field{
		field.String("nome"),
		field.String("tipo").
			Comment("mensal, trimestral, semestral, avulsa or unica"),
		field.Float("preco").
			Default(0),
		field.String("status").
			Default("Ativo"),
	}
}

// Assinatura binds a patient to a Plano for a period.
type Assinatura struct {
	ent.Schema
}

func (Assinatura) Mixin() []ent.Mixin {
	return []ent.Mixin{IDMixin{}, TimeStampedMixin{}}
}

func (Assinatura) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("user_id", uuidType),
		field.UUID("plano_id", uuidType),
		field.String("status").
			Default("Ativo"),
		field.Time("data_inicio"),
		field.Time("data_fim").
			Optional().
			Nillable(),
	}
}

func (Assinatura) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id", "status"),
	}
}

// CicloPlano is one billing cycle of an Assinatura with its session balance.
type CicloPlano struct {
	ent.Schema
}

func (CicloPlano) Mixin() []ent.Mixin {
	return []ent.Mixin{IDMixin{}, TimeStampedMixin{}}
}

func (CicloPlano) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("assinatura_id", uuidType),
		field.UUID("user_id", uuidType),
		field.Int("consultas_disponiveis").
			Default(0),
		field.Int("consultas_usadas").
			Default(0),
		field.String("status").
			Default("Ativo"),
		field.Time("inicio"),
		field.Time("fim"),
	}
}

func (CicloPlano) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id", "status"),
	}
}
