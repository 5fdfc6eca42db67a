package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	utils "uploadflow/internal"
	"uploadflow/internal/config"
	"uploadflow/internal/presign"
	"uploadflow/internal/registry"
	"uploadflow/internal/s3"
	"uploadflow/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reference presign and confirmation API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	cfg := config.Load()

	_, uploadConfig, err := loadProfile()
	if err != nil {
		return err
	}

	s3Client, err := s3.NewClient(ctx, cfg.S3Region, cfg.S3Bucket, cfg.AWSAccessKey, cfg.AWSSecretKey, cfg.S3Endpoint)
	if err != nil {
		return err
	}

	store := registry.NewStore(log, registry.Config{Driver: cfg.DBDriver, Path: cfg.DBPath, DSN: cfg.DatabaseURL})
	if err := store.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := store.Stop(); err != nil {
			log.WithError(err).Warn("Failed to close database")
		}
	}()

	service := presign.NewService(log, s3Client, store)
	handler := presign.NewHandler(log, service, uploadConfig)
	srv := server.New(log, cfg, handler).HTTPServer()

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).
			WithField("bucket", s3Client.Bucket()).
			Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	signal.Notify(utils.QuitChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(utils.QuitChan)

	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed to start: %w", err)
	case <-utils.QuitChan:
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("Server exited")

	return nil
}
