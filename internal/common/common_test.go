package common

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

var configEnv = []string{
	"CLICKHOUSE_HOST", "CLICKHOUSE_PORT", "CLICKHOUSE_DATABASE", "CLICKHOUSE_USER",
	"CLICKHOUSE_PASSWORD", "KI7MT_DATA_DIR", "LOG_LEVEL", "XRS_RESPONSE_URL",
	"XRS_RESPONSE_SHA256", "XRS_ABUNDANCE", "XRS_EXTRAPOLATION", "METRICS_ADDR",
}

func clearEnv(t *testing.T) {
	for _, k := range configEnv {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	clearEnv(t)
	cfg := DefaultConfig()
	assert.Equal(t, "localhost:9000", cfg.ClickHouseAddr())
	assert.Equal(t, "solar", cfg.ClickHouseDatabase)
	assert.Equal(t, "coronal", cfg.Abundance)
	assert.Equal(t, DefaultResponseURL, cfg.ResponseLocation())
	assert.Equal(t, DefaultResponseSHA256, cfg.ResponseChecksum(cfg.ResponseLocation()))
	assert.Equal(t, "/var/lib/ki7mt-ai-lab/solar/xrs", cfg.XRSDataDir())
}

func TestLoadConfigLayers(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "xrs.yaml")
	content := `
clickhouse_host: ch.example
clickhouse_port: 9440
abundance: photospheric
http_timeout: 15s
response_url: https://data.example/resp.parquet.gz
log_json: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("CLICKHOUSE_PORT", "19000")
	t.Setenv("XRS_EXTRAPOLATION", "clamp")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "ch.example", cfg.ClickHouseHost)
	assert.Equal(t, 19000, cfg.ClickHousePort)
	assert.Equal(t, "photospheric", cfg.Abundance)
	assert.Equal(t, "clamp", cfg.Extrapolation)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.True(t, cfg.LogJSON)
	assert.Equal(t, "https://data.example/resp.parquet.gz", cfg.ResponseLocation())
	assert.Empty(t, cfg.ResponseChecksum(cfg.ResponseLocation()))
	assert.Equal(t, "xrs_tem", cfg.DiagnosticsTable)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "not found")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("clickhouse_port: [1, 2"), 0o644))
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "parse config")
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger("warn", true)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))

	_, err = NewLogger("loud", false)
	assert.Error(t, err)
}

func TestStatsReport(t *testing.T) {
	s := NewStats()
	var buf bytes.Buffer
	s.SetOutput(&buf)
	s.lastTime = time.Now().Add(-time.Second)

	s.AddSamples(86400)
	s.SeriesDone(250 * time.Millisecond)
	s.AddRowsWritten(86400)
	s.printStatus(s.lastTime.Add(time.Second))

	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "[Progress]"))
	assert.Contains(t, line, "Series: 1")
	assert.Contains(t, line, "Last: 250.00 ms")
	assert.Contains(t, line, "Total: 86400 samples")

	s.Reset()
	assert.Zero(t, s.Samples())
	assert.Zero(t, s.Series())
	assert.Zero(t, s.LastLatency())
}

func TestStatsReporterLifecycle(t *testing.T) {
	s := NewStats()
	s.SetSilent(true)
	s.StartReporter()
	s.StartReporter()
	s.StopReporter()
	s.StopReporter()
}

func TestResponseChecksum(t *testing.T) {
	clearEnv(t)
	cfg := DefaultConfig()
	assert.Len(t, DefaultResponseSHA256, 64)
	assert.Empty(t, cfg.ResponseChecksum("/data/resp.fits"))

	t.Setenv("XRS_RESPONSE_SHA256", "abc123")
	cfg = DefaultConfig()
	assert.Equal(t, "abc123", cfg.ResponseChecksum("/data/resp.fits"))
	assert.Equal(t, "abc123", cfg.ResponseChecksum(DefaultResponseURL))
}
