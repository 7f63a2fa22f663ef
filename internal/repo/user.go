package repo

import (
	"context"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/estacaoterapia/estacao_backend/internal/schema"
)

type UserRepo struct {
	db DBTX
}

func (r *UserRepo) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	b := builder()
	query, args := b.Select("id", "nome", "email", "role", "status", "tipo_pessoa", "created_at", "updated_at").
		From(b.Table(schema.TableUsers)).
		Where(entsql.EQ("id", id)).
		Query()

	var u User
	err := r.db.QueryRowContext(ctx, query, args...).
		Scan(&u.ID, &u.Nome, &u.Email, &u.Role, &u.Status, &u.TipoPessoa, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}
