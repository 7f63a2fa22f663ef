package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// User is a patient, psychologist or back-office account.
type User struct {
	ent.Schema
}

func (User) Mixin() []ent.Mixin {
	return []ent.Mixin{IDMixin{}, TimeStampedMixin{}}
}

func (User) Fields() []ent.Field {
	return []ent.Field{
		field.String("nome"),
		field.String("email"),
		field.Enum("role").
			Values("Patient", "Psychologist", "Admin", "Management"),
		field.String("status").
			Default("Ativo"),
		field.Enum("tipo_pessoa").
			Values("PJ", "Autonomo").
			Optional().
			Comment("registration type of psychologists; drives the payout percentage"),
	}
}

func (User) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("email").Unique(),
		index.Fields("role", "status"),
	}
}
