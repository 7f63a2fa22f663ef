package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	httpcmd "github.com/estacaoterapia/estacao_backend/cmd/http"
	jobscmd "github.com/estacaoterapia/estacao_backend/cmd/jobs"
	systemcmd "github.com/estacaoterapia/estacao_backend/cmd/system"
	workercmd "github.com/estacaoterapia/estacao_backend/cmd/worker"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "estacao",
	Short: "Estação Terapia session backend.",
	Long: `Estação Terapia backend: video-session rooms, consulta lifecycle,
psychologist commissions and the related admin tooling.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")

	rootCmd.AddCommand(systemcmd.NewSystemCommand())
	rootCmd.AddCommand(httpcmd.NewHTTPCommand())
	rootCmd.AddCommand(workercmd.NewWorkerCommand())
	rootCmd.AddCommand(jobscmd.NewJobsCommand())
}
