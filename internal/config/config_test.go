package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-tangra/go-tangra-sysinfo/internal/collector"
)

// isolate runs the test in an empty directory with no sysinfo variables
// inherited from the caller.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, k := range []string{"HOST", "PORT", "SYSINFO_HOST", "SYSINFO_PORT", "SYSINFO_LOG_LEVEL", "SYSINFO_LIMITS_PROCESSES"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Empty(t, cfg.Port)
	assert.Empty(t, cfg.MCPAddr())
	assert.Equal(t, ":9551", cfg.HTTPListen)
	assert.Equal(t, ":9550", cfg.GRPCListen)
	assert.True(t, cfg.EnableSwagger)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, 5*time.Second, cfg.StrategyTimeout)
	assert.Equal(t, time.Second, cfg.CPUSample)
	assert.True(t, cfg.ExternalIP.Enabled)
	assert.Equal(t, collector.DefaultExternalIPEndpoints, cfg.ExternalIP.Endpoints)
	assert.Equal(t, collector.DefaultLimits(), cfg.Limits)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_format: json
strategy_timeout: 2s
cpu_sample: 250ms
external_ip:
  enabled: false
  endpoints:
    - https://ip.example.test
limits:
  processes: 10
  dns_servers: 5
`), 0o644))
	t.Setenv("PORT", "8080")
	t.Setenv("SYSINFO_LIMITS_PROCESSES", "7")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 2*time.Second, cfg.StrategyTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.CPUSample)
	assert.False(t, cfg.ExternalIP.Enabled)
	assert.Equal(t, []string{"https://ip.example.test"}, cfg.ExternalIP.Endpoints)
	assert.Equal(t, 7, cfg.Limits.Processes)
	assert.Equal(t, 5, cfg.Limits.DNSServers)
	assert.Equal(t, collector.MaxVolumes, cfg.Limits.Volumes)
	assert.Equal(t, "127.0.0.1:8080", cfg.MCPAddr())

	opts := cfg.CollectorOptions()
	assert.Equal(t, 2*time.Second, opts.Timeout)
	assert.False(t, opts.ExternalIPEnabled)
	assert.Equal(t, 7, opts.Limits.Processes)
}

func TestLoadDotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SYSINFO_LOG_LEVEL=debug\nHOST=0.0.0.0\n"), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "0.0.0.0", cfg.Host)
}

func TestLoadErrors(t *testing.T) {
	dir := isolate(t)

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_format: xml\n"), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "log_format")

	require.NoError(t, os.WriteFile(path, []byte("cpu_sample: 10s\n"), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "cpu_sample")
}
