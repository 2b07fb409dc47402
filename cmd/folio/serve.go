package main

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/portfolio-site/backend/internal/api"
	"github.com/portfolio-site/backend/internal/engine"
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if flagAddr != "" {
			cfg.Server.Addr = flagAddr
		}

		logger := newLogger(cfg, false)
		eng, err := engine.Bootstrap(cfg, logger)
		if err != nil {
			return err
		}
		defer eng.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		server := api.NewServer(eng, logger)
		if err := server.Start(ctx, cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (overrides SERVER_ADDR)")
}
