package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mcdev12/mediasync/go/internal/config"
	"github.com/mcdev12/mediasync/go/internal/sync/admission"
	"github.com/mcdev12/mediasync/go/internal/sync/feed"
	"github.com/mcdev12/mediasync/go/internal/sync/gateway"
)

type flags struct {
	configPath    string
	addr          string
	syncInterval  time.Duration
	leeway        float64
	seekThreshold float64
	natsURL       string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:           "mediasync-gateway",
		Short:         "Relay playback sync events between players watching the same stream",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, f)
		},
	}

	cmd.Flags().StringVar(&f.configPath, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&f.addr, "addr", "", "listen address, e.g. :3000")
	cmd.Flags().DurationVar(&f.syncInterval, "sync-interval", 0, "minimum spacing between accepted syncs from one peer")
	cmd.Flags().Float64Var(&f.leeway, "leeway", 0, "position drift in seconds a sync must exceed")
	cmd.Flags().Float64Var(&f.seekThreshold, "seek-threshold", 0, "position jump in seconds a seek must exceed")
	cmd.Flags().StringVar(&f.natsURL, "nats-url", "", "NATS server for the event feed (disabled when empty)")

	return cmd
}

func run(cmd *cobra.Command, f *flags) error {
	// Load .env file if it exists
	if err := config.LoadDotEnv(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return err
	}
	applyFlags(cmd, f, cfg)
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return err
	}

	setupLogger(cfg.Log.Level, cfg.Log.Format)

	log.Info().
		Str("addr", cfg.ListenAddr).
		Dur("sync_interval", cfg.SyncInterval.Std()).
		Float64("leeway", cfg.Leeway).
		Float64("seek_threshold", cfg.SeekThreshold).
		Str("nats_url", cfg.NATS.URL).
		Msg("starting sync gateway")

	gatewayService, err := gateway.NewService(gatewayConfig(cfg), nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to create gateway service")
		return err
	}

	server := &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     gatewayService.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serviceDone := make(chan struct{})
	go func() {
		defer close(serviceDone)
		if err := gatewayService.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err := <-serverErr:
		log.Error().Err(err).Msg("HTTP server failed")
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// hijacked WebSocket connections are not tracked by Shutdown; the service closes them
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()
	<-serviceDone

	log.Info().Msg("sync gateway shutdown complete")
	return runErr
}

// applyFlags overrides cfg with flags that were set explicitly
func applyFlags(cmd *cobra.Command, f *flags, cfg *config.Config) {
	if cmd.Flags().Changed("addr") {
		cfg.ListenAddr = f.addr
	}
	if cmd.Flags().Changed("sync-interval") {
		cfg.SyncInterval = config.Duration(f.syncInterval)
	}
	if cmd.Flags().Changed("leeway") {
		cfg.Leeway = f.leeway
	}
	if cmd.Flags().Changed("seek-threshold") {
		cfg.SeekThreshold = f.seekThreshold
	}
	if cmd.Flags().Changed("nats-url") {
		cfg.NATS.URL = f.natsURL
	}
}

func gatewayConfig(cfg *config.Config) gateway.Config {
	connectionConfig := gateway.DefaultConnectionConfig()
	connectionConfig.WriteTimeout = cfg.Connection.WriteTimeout.Std()
	connectionConfig.ReadTimeout = cfg.Connection.ReadTimeout.Std()
	connectionConfig.PingInterval = cfg.Connection.PingInterval.Std()
	connectionConfig.MaxMessageSize = cfg.Connection.MaxMessageSize
	connectionConfig.SendBufferSize = cfg.Connection.SendBufferSize

	natsConfig := feed.DefaultNATSConfig()
	natsConfig.URL = cfg.NATS.URL
	natsConfig.Subject = cfg.NATS.Subject

	return gateway.Config{
		ConnectionConfig: connectionConfig,
		Admission: admission.Config{
			SyncInterval:  cfg.SyncInterval.Std(),
			Leeway:        cfg.Leeway,
			SeekThreshold: cfg.SeekThreshold,
		},
		NATS:           natsConfig,
		AllowedOrigins: cfg.AllowedOrigins,
	}
}

func setupLogger(level, format string) {
	if format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
