package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/digitorus/tsaclient/internal/api"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the timestamp HTTP API",
	Long: `Run the HTTP API:
  POST /api/timestamp/get       multipart "document", optional "hashAlgorithm"
  POST /api/timestamp/validate  multipart "timestampToken", optional "originalDocument"
  GET  /api/timestamp/status
  GET  /api/vendor/credit
  GET  /metrics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (overrides the configuration)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveListen != "" {
		cfg.Server.Listen = serveListen
	}

	h := api.NewHandler(newService(), newCreditClient(), log, cfg.Server.MaxUploadBytes)
	srv := &http.Server{
		Addr: cfg.Server.Listen,
		Handler: api.NewRouter(h, api.RouterOptions{
			RateLimit: cfg.Server.RateLimit,
			RateBurst: cfg.Server.RateBurst,
			Log:       log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
