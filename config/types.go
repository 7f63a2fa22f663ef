package config

import (
	"errors"
	"fmt"
	"strings"
)

type Config struct {
	Database       DatabaseConfig       `mapstructure:"database"`
	CasbinDatabase DatabaseConfig       `mapstructure:"casbin_database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Server         ServerConfig         `mapstructure:"server"`
	Authentication AuthenticationConfig `mapstructure:"authentication"`
	Authorization  AuthorizationConfig  `mapstructure:"authorization"`
	Email          EmailConfig          `mapstructure:"email"`
	Observability  ObservabilityConfig  `mapstructure:"observability"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Nats           NatsConfig           `mapstructure:"nats"`
	Agora          AgoraConfig          `mapstructure:"agora"`
	CEP            CEPConfig            `mapstructure:"cep"`
	Repasse        RepasseConfig        `mapstructure:"repasse"`
	Jobs           JobsConfig           `mapstructure:"jobs"`
}

type NatsConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
	// SubjectPrefix namespaces every task subject, e.g. "estacao".
	SubjectPrefix string `mapstructure:"subject_prefix"`
	MaxAttempts   int    `mapstructure:"max_attempts"`
}

type DatabaseConfig struct {
	Host       string                  `mapstructure:"host"`
	Port       int                     `mapstructure:"port"`
	User       string                  `mapstructure:"user"`
	Password   string                  `mapstructure:"password"`
	DBName     string                  `mapstructure:"dbname"`
	SSLMode    string                  `mapstructure:"sslmode"`
	Pool       DatabasePoolConfig      `mapstructure:"pool"`
	Migrations DatabaseMigrationConfig `mapstructure:"migrations"`
}

type DatabasePoolConfig struct {
	MaxOpenConns       int `mapstructure:"max_open_conns"`
	MaxIdleConns       int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMin int `mapstructure:"conn_max_lifetime_minutes"`
}

type DatabaseMigrationConfig struct {
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Addr                string `mapstructure:"addr"`
	DB                  int    `mapstructure:"db"`
	Username            string `mapstructure:"username"`
	Password            string `mapstructure:"password"`
	PoolSize            int    `mapstructure:"pool_size"`
	MinIdleConns        int    `mapstructure:"min_idle_conns"`
	DialTimeoutSeconds  int    `mapstructure:"dial_timeout_seconds"`
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds"`
}

type ServerConfig struct {
	Port           int        `mapstructure:"port"`
	TimeoutSeconds int        `mapstructure:"timeout_seconds"`
	Environment    string     `mapstructure:"environment"`
	Databases      []string   `mapstructure:"databases"`
	CORS           CORSConfig `mapstructure:"cors"`
	RateLimit      RateLimit  `mapstructure:"rate_limit"`
}

type RateLimit struct {
	Max           int `mapstructure:"max"`
	WindowSeconds int `mapstructure:"window_seconds"`
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowOrigins     []string `mapstructure:"allow_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type AuthenticationConfig struct {
	Paseto PasetoConfig `mapstructure:"paseto"`
	// CookieName is the session cookie read when no Authorization header is sent.
	CookieName        string `mapstructure:"cookie_name"`
	SessionTTLMinutes int    `mapstructure:"session_ttl_minutes"`
}

type PasetoConfig struct {
	Mode             string `mapstructure:"mode"`
	LocalKeyHex      string `mapstructure:"local_key_hex"`
	SecretKeyHex     string `mapstructure:"secret_key_hex"`
	PublicKeyHex     string `mapstructure:"public_key_hex"`
	Issuer           string `mapstructure:"issuer"`
	Audience         string `mapstructure:"audience"`
	AccessTTLMinutes int    `mapstructure:"access_ttl_minutes"`
}

type AuthorizationConfig struct {
	CasbinModelPath string `mapstructure:"casbin_model_path"`
	EnableAudit     bool   `mapstructure:"enable_audit"`
}

type EmailConfig struct {
	Enabled bool       `mapstructure:"enabled"`
	From    string     `mapstructure:"from"`
	SMTP    SMTPConfig `mapstructure:"smtp"`
}

type SMTPConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	UseTLS         bool   `mapstructure:"use_tls"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type ObservabilityConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	ServiceName    string        `mapstructure:"service_name"`
	ServiceVersion string        `mapstructure:"service_version"`
	Tracing        TracingConfig `mapstructure:"tracing"`
	Metrics        MetricsConfig `mapstructure:"metrics"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string       `mapstructure:"level"`  // debug, info, warn, error
	Format string       `mapstructure:"format"` // text, json
	Output OutputConfig `mapstructure:"output"`
}

type OutputConfig struct {
	Stdout bool          `mapstructure:"stdout"`
	File   FileLogConfig `mapstructure:"file"`
	Loki   LokiConfig    `mapstructure:"loki"`
}

type FileLogConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type LokiConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"` // e.g. "http://localhost:3100"
	TenantID string `mapstructure:"tenant_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// AgoraConfig holds the RTC provider credentials.
type AgoraConfig struct {
	AppID           string `mapstructure:"app_id"`
	AppCertificate  string `mapstructure:"app_certificate"`
	TokenTTLSeconds int    `mapstructure:"token_ttl_seconds"`
	// LockTTLSeconds bounds how long a room stays locked while its token pair is issued.
	LockTTLSeconds int `mapstructure:"lock_ttl_seconds"`
}

type CEPConfig struct {
	PrimaryURL      string `mapstructure:"primary_url"`
	FallbackURL     string `mapstructure:"fallback_url"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	CacheTTLMinutes int    `mapstructure:"cache_ttl_minutes"`
}

type RepasseConfig struct {
	PercentPJ       float64 `mapstructure:"percent_pj"`
	PercentAutonomo float64 `mapstructure:"percent_autonomo"`
	// AntecedenciaHoras is the minimum notice for a cancellation to count as "no prazo".
	AntecedenciaHoras int    `mapstructure:"antecedencia_horas"`
	Timezone          string `mapstructure:"timezone"`
}

type JobsConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	InactivitySchedule string `mapstructure:"inactivity_schedule"`
	ReminderSchedule   string `mapstructure:"reminder_schedule"`
}

func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Database.Host) == "" {
		errs = append(errs, errors.New("database.host is required"))
	}
	if c.Agora.AppID == "" || c.Agora.AppCertificate == "" {
		errs = append(errs, errors.New("agora.app_id and agora.app_certificate are required"))
	}
	switch p := c.Authentication.Paseto; p.Mode {
	case "local":
		if p.LocalKeyHex == "" {
			errs = append(errs, errors.New("authentication.paseto.local_key_hex is required in local mode"))
		}
	case "public":
		if p.PublicKeyHex == "" {
			errs = append(errs, errors.New("authentication.paseto.public_key_hex is required in public mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("authentication.paseto.mode must be local or public, got %q", p.Mode))
	}
	for name, p := range map[string]float64{
		"repasse.percent_pj":       c.Repasse.PercentPJ,
		"repasse.percent_autonomo": c.Repasse.PercentAutonomo,
	} {
		if p <= 0 || p > 1 {
			errs = append(errs, fmt.Errorf("%s must be in (0, 1], got %v", name, p))
		}
	}

	return errors.Join(errs...)
}
