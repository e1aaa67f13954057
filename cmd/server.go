package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/motorlot/apiserver/config"
	"github.com/motorlot/apiserver/internal/logger"
	"github.com/motorlot/apiserver/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the motorlot API server",
	Long: `Starts the motorlot API server. Usage:

	motorlot server
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		log, err := logger.New(cfg.Log)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv, err := server.New(ctx, cfg, log)
		if err != nil {
			log.Error("failed to start server", zap.Error(err))
			return err
		}
		if err := srv.Start(ctx); err != nil {
			log.Error("server error", zap.Error(err))
			return err
		}
		log.Info("server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
