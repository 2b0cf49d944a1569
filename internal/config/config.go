// Package config loads lookout settings from the environment and an optional .env file.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Defaults used when neither a flag nor an environment variable is set.
const (
	DefaultEndpoint    = "http://localhost:1234"
	DefaultInstruction = "What do you see? Create a short description of the image."
	DefaultIntervalMs  = 500
	DefaultCamera      = "0"
	DefaultQuality     = 80
	DefaultAddr        = ":8080"
	DefaultLogLevel    = "info"
)

// Environment variable names.
const (
	EnvEndpoint    = "LOOKOUT_ENDPOINT"
	EnvInstruction = "LOOKOUT_INSTRUCTION"
	EnvIntervalMs  = "LOOKOUT_INTERVAL_MS"
	EnvCamera      = "LOOKOUT_CAMERA"
	EnvImage       = "LOOKOUT_IMAGE"
	EnvQuality     = "LOOKOUT_QUALITY"
	EnvAddr        = "LOOKOUT_ADDR"
	EnvStaticDir   = "LOOKOUT_STATIC_DIR"
	EnvLogLevel    = "LOG_LEVEL"
)

// Config holds process-level settings. Flag parsing lives in cmd/lookout;
// this struct is data only.
type Config struct {
	// Inference endpoint base URL, without the /v1 suffix.
	Endpoint string

	// Instruction sent with every frame.
	Instruction string

	// IntervalMs between ticks.
	IntervalMs int

	// Camera is a device index ("0") or a device path.
	Camera string

	// Image, when set, replaces the camera with a still image file.
	Image string

	// Quality is the JPEG quality 1-100.
	Quality int

	// Addr is the dashboard listen address.
	Addr string

	// StaticDir optionally serves a UI bundle at /.
	StaticDir string

	LogLevel string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Endpoint:    DefaultEndpoint,
		Instruction: DefaultInstruction,
		IntervalMs:  DefaultIntervalMs,
		Camera:      DefaultCamera,
		Quality:     DefaultQuality,
		Addr:        DefaultAddr,
		LogLevel:    DefaultLogLevel,
	}
}

// Load reads the given .env files (missing files are ignored) and then the
// process environment on top of the defaults. With no arguments it tries ./.env.
func Load(files ...string) Config {
	if len(files) == 0 {
		_ = godotenv.Load()
	} else {
		for _, f := range files {
			_ = godotenv.Load(f)
		}
	}

	cfg := Default()
	cfg.Endpoint = stringEnv(EnvEndpoint, cfg.Endpoint)
	cfg.Instruction = stringEnv(EnvInstruction, cfg.Instruction)
	cfg.IntervalMs = intEnv(EnvIntervalMs, cfg.IntervalMs)
	cfg.Camera = stringEnv(EnvCamera, cfg.Camera)
	cfg.Image = stringEnv(EnvImage, cfg.Image)
	cfg.Quality = intEnv(EnvQuality, cfg.Quality)
	cfg.Addr = stringEnv(EnvAddr, cfg.Addr)
	cfg.StaticDir = stringEnv(EnvStaticDir, cfg.StaticDir)
	cfg.LogLevel = stringEnv(EnvLogLevel, cfg.LogLevel)
	return cfg
}

func stringEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// intEnv falls back on unset, malformed or non-positive values.
func intEnv(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
