package system

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/estacaoterapia/estacao_backend/config"
	"github.com/estacaoterapia/estacao_backend/pkg/authorize"
	"github.com/estacaoterapia/estacao_backend/pkg/database"
	"github.com/estacaoterapia/estacao_backend/pkg/logs"
)

func NewInitCommand() *cobra.Command {
	var skipSeed bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the databases and seed the default RBAC policies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
			if err != nil {
				return fmt.Errorf("failed to get config flag: %w", err)
			}
			cfg, err := config.ReadConfig(filepath.Dir(cfgPath))
			if err != nil {
				return fmt.Errorf("failed to read config: %w", err)
			}
			log := logs.New(cfg)

			timeout := time.Duration(cfg.Server.TimeoutSeconds) * time.Second
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			fmt.Println("Initializing databases...")
			if err := database.InitializeDatabases(ctx, cfg); err != nil {
				return fmt.Errorf("failed to initialize databases: %w", err)
			}

			if skipSeed {
				fmt.Println("Databases initialized; policy seeding skipped.")
				return nil
			}
			if err := seedPolicies(ctx, cfg, log); err != nil {
				return err
			}
			fmt.Println("Databases initialized successfully.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipSeed, "skip-seed", false, "Only create the databases")

	return cmd
}

func seedPolicies(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	ac := authorize.FromCentralConfig(cfg.Authorization)
	enforcer, cleanup, err := authorize.NewEnforcer(ac.CasbinModelPath, database.NewDSN(cfg.CasbinDatabase), log)
	if err != nil {
		return fmt.Errorf("failed to create enforcer: %w", err)
	}
	defer cleanup(context.Background())

	auth, err := authorize.NewAuthorization(enforcer)
	if err != nil {
		return fmt.Errorf("failed to create authorization: %w", err)
	}
	if err := authorize.SeedDefaultPolicies(ctx, auth, log); err != nil {
		return fmt.Errorf("failed to seed policies: %w", err)
	}
	return nil
}
