package logs

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/grafana/loki-client-go/loki"
	promconfig "github.com/prometheus/common/config"
	slogloki "github.com/samber/slog-loki/v3"

	"github.com/estacaoterapia/estacao_backend/config"
)

const lokiPushPath = "/loki/api/v1/push"

func newLokiHandler(cfg *config.Config, level slog.Level) (slog.Handler, error) {
	lc := cfg.Logging.Output.Loki

	clientCfg, err := loki.NewDefaultConfig(strings.TrimRight(lc.Endpoint, "/") + lokiPushPath)
	if err != nil {
		return nil, fmt.Errorf("loki config: %w", err)
	}
	clientCfg.TenantID = lc.TenantID
	if lc.Username != "" {
		clientCfg.Client.BasicAuth = &promconfig.BasicAuth{
			Username: lc.Username,
			Password: promconfig.Secret(lc.Password),
		}
	}

	client, err := loki.New(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("loki client: %w", err)
	}

	return slogloki.Option{Level: level, Client: client}.NewLokiHandler(), nil
}
