package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
database:
  host: db.internal
  dbname: estacao
agora:
  app_id: 970CA35de60c44645bbae8a215061b33
  app_certificate: 5CFd2fd1755d40ecb72977518be15d3b
authentication:
  paseto:
    mode: local
    local_key_hex: 707172737475767778797a7b7c7d7e7f808182838485868788898a8b8c8d8e8f
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644))
	return dir
}

func TestReadConfigAppliesDefaults(t *testing.T) {
	cfg, err := ReadConfig(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 3000, cfg.Agora.TokenTTLSeconds)
	assert.Equal(t, 5, cfg.CEP.TimeoutSeconds)
	assert.InDelta(t, 0.40, cfg.Repasse.PercentPJ, 1e-9)
	assert.InDelta(t, 0.32, cfg.Repasse.PercentAutonomo, 1e-9)
	assert.Equal(t, 24, cfg.Repasse.AntecedenciaHoras)
	assert.Equal(t, "token", cfg.Authentication.CookieName)
}

func TestReadConfigEnvOverride(t *testing.T) {
	t.Setenv("ESTACAO_AGORA_TOKEN_TTL_SECONDS", "600")
	t.Setenv("ESTACAO_DATABASE_HOST", "override.internal")

	cfg, err := ReadConfig(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 600, cfg.Agora.TokenTTLSeconds)
	assert.Equal(t, "override.internal", cfg.Database.Host)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing db host", mutate: func(c *Config) { c.Database.Host = "" }, wantErr: true},
		{name: "missing agora cert", mutate: func(c *Config) { c.Agora.AppCertificate = "" }, wantErr: true},
		{name: "percent above one", mutate: func(c *Config) { c.Repasse.PercentPJ = 1.5 }, wantErr: true},
		{name: "zero percent", mutate: func(c *Config) { c.Repasse.PercentAutonomo = 0 }, wantErr: true},
		{name: "local mode without key", mutate: func(c *Config) { c.Authentication.Paseto.LocalKeyHex = "" }, wantErr: true},
		{name: "unknown paseto mode", mutate: func(c *Config) { c.Authentication.Paseto.Mode = "jwt" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Database:       DatabaseConfig{Host: "localhost"},
				Agora:          AgoraConfig{AppID: "app", AppCertificate: "cert"},
				Authentication: AuthenticationConfig{Paseto: PasetoConfig{Mode: "local", LocalKeyHex: "00ff"}},
				Repasse:        RepasseConfig{PercentPJ: 0.4, PercentAutonomo: 0.32},
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
