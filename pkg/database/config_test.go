package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/estacaoterapia/estacao_backend/config"
)

func TestDSN(t *testing.T) {
	cfg := FromCentralConfig(config.DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "estacao",
		Password: "secret",
		DBName:   "estacao",
	})

	assert.Equal(t, "host=db port=5433 user=estacao password=secret dbname=estacao sslmode=disable", cfg.DSN())
}

func TestConnMaxLifetime(t *testing.T) {
	assert.Equal(t, 5*time.Minute, Config{}.ConnMaxLifetime())
	assert.Equal(t, 12*time.Minute, Config{ConnMaxLifetimeMin: 12}.ConnMaxLifetime())
}
