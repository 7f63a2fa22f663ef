package redis

import (
	"time"

	"github.com/estacaoterapia/estacao_backend/config"
)

type Config struct {
	Addr     string
	DB       int
	Username string
	Password string

	PoolSize     int
	MinIdleConns int

	DialTimeoutSeconds  int
	ReadTimeoutSeconds  int
	WriteTimeoutSeconds int
}

func DefaultConfig() Config {
	return Config{
		Addr:                "localhost:6379",
		PoolSize:            10,
		MinIdleConns:        2,
		DialTimeoutSeconds:  5,
		ReadTimeoutSeconds:  3,
		WriteTimeoutSeconds: 3,
	}
}

func (c Config) DialTimeout() time.Duration  { return seconds(c.DialTimeoutSeconds, 5) }
func (c Config) ReadTimeout() time.Duration  { return seconds(c.ReadTimeoutSeconds, 3) }
func (c Config) WriteTimeout() time.Duration { return seconds(c.WriteTimeoutSeconds, 3) }

func seconds(v, fallback int) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Second
}

// FromCentralConfig fills unset pool and timeout values from DefaultConfig.
func FromCentralConfig(c config.RedisConfig) Config {
	d := DefaultConfig()
	return Config{
		Addr:                c.Addr,
		DB:                  c.DB,
		Username:            c.Username,
		Password:            c.Password,
		PoolSize:            orDefault(c.PoolSize, d.PoolSize),
		MinIdleConns:        orDefault(c.MinIdleConns, d.MinIdleConns),
		DialTimeoutSeconds:  orDefault(c.DialTimeoutSeconds, d.DialTimeoutSeconds),
		ReadTimeoutSeconds:  orDefault(c.ReadTimeoutSeconds, d.ReadTimeoutSeconds),
		WriteTimeoutSeconds: orDefault(c.WriteTimeoutSeconds, d.WriteTimeoutSeconds),
	}
}

func orDefault(v, d int) int {
	if v > 0 {
		return v
	}
	return d
}
