package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/estacaoterapia/estacao_backend/config"
	"github.com/estacaoterapia/estacao_backend/internal/app"
	"github.com/estacaoterapia/estacao_backend/pkg/logs"
)

func NewJobsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Run scheduled jobs by hand",
	}

	cmd.AddCommand(newRunCommand())

	return cmd
}

func newRunCommand() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:       "run <name>",
		Short:     "Run one scheduled job once and exit",
		Long:      "Run one scheduled job once and exit. Known jobs: " + app.JobInactivity + ", " + app.JobReminders + ".",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{app.JobInactivity, app.JobReminders},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
			if err != nil {
				return err
			}
			cfg, err := config.ReadConfig(filepath.Dir(cfgPath))
			if err != nil {
				return err
			}
			slog.SetDefault(logs.New(cfg))

			var jobs app.Jobs
			fxApp := fx.New(
				fx.Supply(cfg),
				app.InfraModule,
				app.ServiceModule,
				fx.Populate(&jobs),
				fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
			)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			if err := fxApp.Start(ctx); err != nil {
				return fmt.Errorf("start dependencies: %w", err)
			}
			defer func() {
				stopCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
				defer stop()
				_ = fxApp.Stop(stopCtx)
			}()

			name := strings.TrimSpace(args[0])
			if err := jobs.Run(ctx, name); err != nil {
				return fmt.Errorf("job %s: %w", name, err)
			}
			fmt.Printf("job %s finished\n", name)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Maximum run time")

	return cmd
}
