package main

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/mediasync/go/internal/config"
)

func TestApplyFlags_OnlyChangedFlags(t *testing.T) {
	cmd := newRootCommand()
	require.NoError(t, cmd.Flags().Parse([]string{"--leeway=3", "--sync-interval=8s"}))

	cfg := config.Default()
	cfg.ListenAddr = ":4000"
	applyFlags(cmd, &flags{leeway: 3, syncInterval: 8 * time.Second}, cfg)

	assert.Equal(t, 3.0, cfg.Leeway)
	assert.Equal(t, 8*time.Second, cfg.SyncInterval.Std())
	assert.Equal(t, ":4000", cfg.ListenAddr)
	assert.Equal(t, 0.5, cfg.SeekThreshold)
}

func TestGatewayConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Leeway = 1.5
	cfg.NATS.URL = "nats://broker:4222"
	cfg.Connection.SendBufferSize = 32

	gc := gatewayConfig(cfg)

	assert.Equal(t, 5*time.Second, gc.Admission.SyncInterval)
	assert.Equal(t, 1.5, gc.Admission.Leeway)
	assert.Equal(t, 0.5, gc.Admission.SeekThreshold)
	assert.Equal(t, "nats://broker:4222", gc.NATS.URL)
	assert.Equal(t, "mediasync.events", gc.NATS.Subject)
	assert.Equal(t, 32, gc.ConnectionConfig.SendBufferSize)
	assert.NotNil(t, gc.ConnectionConfig.CheckOrigin)
}

func TestSetupLogger(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	setupLogger("debug", "json")
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	setupLogger("bogus", "json")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
