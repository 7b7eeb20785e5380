package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.BackoffInitial)
	assert.Equal(t, 1500*time.Millisecond, cfg.PageDelay)
	assert.Equal(t, "stock_data", cfg.ExportPrefix)
	assert.Equal(t, ":8080", cfg.ListenAddr())
	assert.Equal(t, "production", cfg.LogLevel)
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv(KeyPageDelay, "250ms")
	t.Setenv(KeyMaxRetries, "2")
	t.Setenv(KeyHTTPPort, "127.0.0.1:9000")

	cfg, err := LoadConfig(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.PageDelay)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr())
}

func TestLoadConfig_ExplicitValueWins(t *testing.T) {
	t.Setenv(KeyOutputDir, "/from/env")
	v := viper.New()
	v.Set(KeyOutputDir, "/from/flag")

	cfg, err := LoadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "/from/flag", cfg.OutputDir)
}

func TestValidate(t *testing.T) {
	t.Setenv(KeyRequestTimeout, "0s")
	_, err := LoadConfig(viper.New())
	assert.ErrorContains(t, err, KeyRequestTimeout)
}
