package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestSetupLogger_WritesFile(t *testing.T) {
	viper.Set(LOG_LEVEL, LOG_LEVEL_PROD)
	t.Cleanup(func() { viper.Set(LOG_LEVEL, "") })

	path := filepath.Join(t.TempDir(), "marketsum.log")
	logger := SetupLogger(path)
	logger.Debug("hidden")
	logger.Info("crawl started")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"crawl started"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestMinLevel(t *testing.T) {
	viper.Set(LOG_LEVEL, LOG_LEVEL_DEBUG)
	assert.Equal(t, zapcore.DebugLevel, minLevel())

	viper.Set(LOG_LEVEL, "Production")
	assert.Equal(t, zapcore.InfoLevel, minLevel())
	viper.Set(LOG_LEVEL, "")
}

func TestSetupLoggerELK(t *testing.T) {
	viper.Set(LOG_LEVEL, LOG_LEVEL_ELK)
	t.Cleanup(func() { viper.Set(LOG_LEVEL, "") })

	path := filepath.Join(t.TempDir(), "ecs.log")
	logger := SetupLogger(path)
	logger.Info("page fetched")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"ecs.version"`)
}

func TestSetupLoggerTo_RoutesConsole(t *testing.T) {
	viper.Set(LOG_LEVEL, LOG_LEVEL_PROD)
	t.Cleanup(func() { viper.Set(LOG_LEVEL, "") })

	var buf bytes.Buffer
	logger := SetupLoggerTo("", zapcore.AddSync(&buf))
	logger.Debug("Row dropped")
	logger.Info("Crawl finished")
	_ = logger.Sync()

	assert.Contains(t, buf.String(), "Crawl finished")
	assert.NotContains(t, buf.String(), "Row dropped")
}
