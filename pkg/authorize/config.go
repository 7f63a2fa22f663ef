package authorize

import "github.com/estacaoterapia/estacao_backend/config"

type Config struct {
	CasbinModelPath string
	EnableAudit     bool
}

func FromCentralConfig(c config.AuthorizationConfig) Config {
	if c.CasbinModelPath == "" {
		c.CasbinModelPath = "casbin_model.conf"
	}
	return Config{CasbinModelPath: c.CasbinModelPath, EnableAudit: c.EnableAudit}
}
