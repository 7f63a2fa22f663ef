package authorize

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	psqlwatcher "github.com/IguteChung/casbin-psql-watcher"
	casbin "github.com/casbin/casbin/v2"
	entadapter "github.com/casbin/ent-adapter"
)

const watcherChannel = "casbin_policy_update"

var policyLoadHealthy atomic.Bool

func init() {
	policyLoadHealthy.Store(true)
}

// IsPolicyHealthy reports whether the last watcher-triggered reload worked.
func IsPolicyHealthy() bool {
	return policyLoadHealthy.Load()
}

type CleanupFunc func(ctx context.Context)

// NewEnforcer stores policies through the ent adapter and reloads them on
// every instance when the postgres watcher announces a change.
func NewEnforcer(modelPath, dsn string, log *slog.Logger) (*casbin.DistributedEnforcer, CleanupFunc, error) {
	if log == nil {
		log = slog.Default()
	}
	a, err := entadapter.NewAdapter("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("casbin adapter: %w", err)
	}

	e, err := casbin.NewDistributedEnforcer(modelPath, a)
	if err != nil {
		return nil, nil, fmt.Errorf("casbin enforcer: %w", err)
	}

	w, err := psqlwatcher.NewWatcherWithConnString(context.Background(), dsn, psqlwatcher.Option{Channel: watcherChannel})
	if err != nil {
		return nil, nil, fmt.Errorf("casbin watcher: %w", err)
	}

	err = w.SetUpdateCallback(func(msg string) {
		if err := e.LoadPolicy(); err != nil {
			log.Error("casbin policy reload failed", "message", msg, "error", err)
			policyLoadHealthy.Store(false)
			return
		}
		policyLoadHealthy.Store(true)
	})
	if err != nil {
		return nil, nil, err
	}
	if err := e.SetWatcher(w); err != nil {
		return nil, nil, err
	}

	e.EnableAutoSave(true)
	e.EnableEnforce(true)

	cleanup := func(context.Context) {
		w.Close()
		e.StopAutoLoadPolicy()
		log.Info("casbin enforcer closed")
	}
	return e, cleanup, nil
}
