package database

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"

	"github.com/estacaoterapia/estacao_backend/config"
	"github.com/estacaoterapia/estacao_backend/internal/repo"
	dbschema "github.com/estacaoterapia/estacao_backend/internal/schema"
)

// NewClient opens the shared pool and wraps it in the repository client.
func NewClient(cfg config.DatabaseConfig) (*repo.Client, error) {
	return NewClientFromConfig(FromCentralConfig(cfg))
}

func NewClientFromConfig(cfg Config) (*repo.Client, error) {
	db, err := openSQLDB(cfg)
	if err != nil {
		return nil, err
	}

	return repo.NewClient(entsql.OpenDB(dialect.Postgres, db)), nil
}

// Migrate creates or alters the application tables. Columns and indexes are
// only ever added; nothing is dropped.
func Migrate(ctx context.Context, client *repo.Client) error {
	m, err := schema.NewMigrate(client.Driver(), schema.WithForeignKeys(true))
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := m.Create(ctx, dbschema.Tables...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
