package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oakmere/regsync/internal/infrastructure/config"
	"github.com/oakmere/regsync/internal/normalize"
)

func allSourcesConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Sources.FortiGate.Enabled = true
	cfg.Sources.Intune.Enabled = true
	cfg.Sources.ESET.Enabled = true
	return cfg
}

func TestBuildWorkersAllEnabled(t *testing.T) {
	workers, err := buildWorkers(allSourcesConfig(), "all", zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, workers, 3)
}

func TestBuildWorkersSkipsDisabled(t *testing.T) {
	cfg := allSourcesConfig()
	cfg.Sources.Intune.Enabled = false

	workers, err := buildWorkers(cfg, "all", zap.NewNop())
	require.NoError(t, err)
	require.Len(t, workers, 2)
	for _, w := range workers {
		assert.NotEqual(t, normalize.SourceIntune, w.Source())
	}
}

func TestBuildWorkersSingleSource(t *testing.T) {
	workers, err := buildWorkers(allSourcesConfig(), normalize.SourceIntune, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, workers, 1)
	assert.Equal(t, normalize.SourceIntune, workers[0].Source())
}

func TestBuildWorkersRejectsBadSourceSelection(t *testing.T) {
	_, err := buildWorkers(allSourcesConfig(), "netbox", zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source")

	cfg := allSourcesConfig()
	cfg.Sources.ESET.Enabled = false
	_, err = buildWorkers(cfg, normalize.SourceESET, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not enabled")
}
