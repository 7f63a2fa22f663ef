package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	ConfigName   = "config"
	ConfigFormat = "yaml"
	EnvPrefix    = "ESTACAO"
)

var GlobalConf *Config

func ReadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(ConfigName)
	v.SetConfigType(ConfigFormat)
	v.AddConfigPath(configPath)

	setDefaults(v)

	// e.g. ESTACAO_DATABASE_HOST overrides database.host
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine when the environment carries the settings (containers).
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if os.Getenv(EnvPrefix+"_DATABASE_HOST") == "" {
			return nil, fmt.Errorf("config file not found in %q and %s_DATABASE_HOST is unset", configPath, EnvPrefix)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func MustReadConfig(path string) *Config {
	config, err := ReadConfig(path)
	if err != nil {
		panic(err)
	}

	GlobalConf = config

	return config
}

// setDefaults registers every key viper must know about so that AutomaticEnv
// can bind env-only values during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "estacao")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.pool.max_open_conns", 25)
	v.SetDefault("database.pool.max_idle_conns", 5)
	v.SetDefault("database.pool.conn_max_lifetime_minutes", 5)
	v.SetDefault("database.migrations.auto_migrate", false)

	v.SetDefault("casbin_database.host", "")
	v.SetDefault("casbin_database.port", 5432)
	v.SetDefault("casbin_database.user", "postgres")
	v.SetDefault("casbin_database.password", "")
	v.SetDefault("casbin_database.dbname", "estacao_casbin")
	v.SetDefault("casbin_database.sslmode", "disable")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")

	v.SetDefault("server.port", 3333)
	v.SetDefault("server.timeout_seconds", 30)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.databases", []string{"estacao", "estacao_casbin"})
	v.SetDefault("server.rate_limit.max", 60)
	v.SetDefault("server.rate_limit.window_seconds", 60)

	v.SetDefault("authentication.cookie_name", "token")
	v.SetDefault("authentication.session_ttl_minutes", 1440)
	v.SetDefault("authentication.paseto.mode", "local")
	v.SetDefault("authentication.paseto.local_key_hex", "")
	v.SetDefault("authentication.paseto.issuer", "estacao-terapia")
	v.SetDefault("authentication.paseto.audience", "estacao-terapia-web")
	v.SetDefault("authentication.paseto.access_ttl_minutes", 60)

	v.SetDefault("authorization.casbin_model_path", "casbin_model.conf")
	v.SetDefault("authorization.enable_audit", true)

	v.SetDefault("email.enabled", false)
	v.SetDefault("email.from", "Estação Terapia <no-reply@estacaoterapia.com.br>")
	v.SetDefault("email.smtp.host", "")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.username", "")
	v.SetDefault("email.smtp.password", "")
	v.SetDefault("email.smtp.timeout_seconds", 10)

	v.SetDefault("observability.enabled", false)
	v.SetDefault("observability.service_name", "estacao_backend")
	v.SetDefault("observability.service_version", "dev")
	v.SetDefault("observability.metrics.path", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output.stdout", true)

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.subject_prefix", "estacao")
	v.SetDefault("nats.max_attempts", 3)

	v.SetDefault("agora.app_id", "")
	v.SetDefault("agora.app_certificate", "")
	v.SetDefault("agora.token_ttl_seconds", 3000)
	v.SetDefault("agora.lock_ttl_seconds", 10)

	v.SetDefault("cep.primary_url", "https://viacep.com.br/ws")
	v.SetDefault("cep.fallback_url", "https://brasilapi.com.br/api/cep/v1")
	v.SetDefault("cep.timeout_seconds", 5)
	v.SetDefault("cep.cache_ttl_minutes", 1440)

	v.SetDefault("repasse.percent_pj", 0.40)
	v.SetDefault("repasse.percent_autonomo", 0.32)
	v.SetDefault("repasse.antecedencia_horas", 24)
	v.SetDefault("repasse.timezone", "America/Sao_Paulo")

	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.inactivity_schedule", "@every 1m")
	v.SetDefault("jobs.reminder_schedule", "0 18 * * *")
}
