package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		EnvEndpoint, EnvInstruction, EnvIntervalMs, EnvCamera, EnvImage,
		EnvQuality, EnvAddr, EnvStaticDir, EnvLogLevel,
	} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 500, cfg.IntervalMs)
	assert.Equal(t, 80, cfg.Quality)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvEndpoint, "http://x")
	t.Setenv(EnvInstruction, "describe")
	t.Setenv(EnvIntervalMs, "250")
	t.Setenv(EnvCamera, "/dev/video2")
	t.Setenv(EnvLogLevel, "debug")

	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))

	assert.Equal(t, "http://x", cfg.Endpoint)
	assert.Equal(t, "describe", cfg.Instruction)
	assert.Equal(t, 250, cfg.IntervalMs)
	assert.Equal(t, "/dev/video2", cfg.Camera)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadDotEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LOOKOUT_ENDPOINT=http://dotenv:1234\nLOOKOUT_ADDR=:9090\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv(EnvEndpoint)
		os.Unsetenv(EnvAddr)
	})

	cfg := Load(path)

	assert.Equal(t, "http://dotenv:1234", cfg.Endpoint)
	assert.Equal(t, ":9090", cfg.Addr)
}

func TestLoadDotEnvDoesNotOverrideEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvEndpoint, "http://env")
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LOOKOUT_ENDPOINT=http://file\n"), 0o644))

	cfg := Load(path)

	assert.Equal(t, "http://env", cfg.Endpoint)
}

func TestMalformedIntervalFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvIntervalMs, "fast")
	t.Setenv(EnvQuality, "-3")

	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))

	assert.Equal(t, DefaultIntervalMs, cfg.IntervalMs)
	assert.Equal(t, DefaultQuality, cfg.Quality)
}
