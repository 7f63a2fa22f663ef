package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// AuditLog is an append-only trail of business actions.
type AuditLog struct {
	ent.Schema
}

func (AuditLog) Mixin() []ent.Mixin {
	return []ent.Mixin{IDMixin{}, CreatedAtMixin{}}
}

func (AuditLog) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("user_id", uuidType).
			Optional().
			Nillable(),
		field.String("action"),
		field.String("entity"),
		field.String("entity_id"),
		field.String("status").
			Default("Sucesso"),
		field.Text("metadata").
			Optional(),
	}
}

func (AuditLog) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("entity", "entity_id"),
	}
}
