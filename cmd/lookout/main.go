// Lookout samples a camera at a fixed interval, asks an OpenAI-compatible
// vision endpoint to describe each frame and serves the latest reply on a
// small dashboard API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/teslashibe/lookout/internal/config"
	"github.com/teslashibe/lookout/internal/log"
	"github.com/teslashibe/lookout/pkg/camera"
	"github.com/teslashibe/lookout/pkg/frame"
	"github.com/teslashibe/lookout/pkg/inference"
	"github.com/teslashibe/lookout/pkg/sampler"
	"github.com/teslashibe/lookout/pkg/web"
)

// shutdownTimeout bounds how long in-flight cycles and requests may take
// to finish on exit.
const shutdownTimeout = 10 * time.Second

type options struct {
	config.Config
	Preset    string
	Model     string
	MaxTokens int
	AutoStart bool
}

// source is a video source the process owns.
type source interface {
	sampler.Source
	Release()
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log.Init(opts.LogLevel)
	log.Info("lookout starting", "endpoint", opts.Endpoint, "interval_ms", opts.IntervalMs, "addr", opts.Addr)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		log.Error("lookout failed", "error", err)
		os.Exit(1)
	}
}

// parseFlags layers flags over the environment, which is layered over the
// built-in defaults.
func parseFlags(args []string) (options, error) {
	cfg := config.Load()
	fs := flag.NewFlagSet("lookout", flag.ContinueOnError)

	opts := options{Config: cfg}
	fs.StringVar(&opts.Endpoint, "endpoint", cfg.Endpoint, "Inference endpoint base URL")
	fs.StringVar(&opts.Instruction, "instruction", cfg.Instruction, "Instruction sent with every frame")
	fs.IntVar(&opts.IntervalMs, "interval", cfg.IntervalMs, "Milliseconds between captures (100, 250, 500, 1000, 2000)")
	fs.StringVar(&opts.Camera, "camera", cfg.Camera, "Camera index or device path")
	fs.StringVar(&opts.Image, "image", cfg.Image, "Use a still image file instead of the camera")
	fs.IntVar(&opts.Quality, "quality", cfg.Quality, "JPEG quality 1-100")
	fs.StringVar(&opts.Preset, "preset", camera.PresetNative, "Camera resolution: "+strings.Join(camera.PresetNames(), ", "))
	fs.StringVar(&opts.Addr, "addr", cfg.Addr, "Dashboard listen address")
	fs.StringVar(&opts.StaticDir, "static", cfg.StaticDir, "Directory served at / (optional)")
	fs.StringVar(&opts.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&opts.Model, "model", "", "Model name sent with each request (optional)")
	fs.IntVar(&opts.MaxTokens, "max-tokens", 100, "Completion token limit")
	fs.BoolVar(&opts.AutoStart, "autostart", false, "Start sampling immediately")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if !sampler.ValidInterval(opts.IntervalMs) {
		return opts, fmt.Errorf("invalid -interval %d: %w", opts.IntervalMs, sampler.ErrInvalidInterval)
	}
	if camera.GetPreset(opts.Preset) == nil {
		return opts, fmt.Errorf("unknown -preset %q", opts.Preset)
	}
	return opts, nil
}

func run(ctx context.Context, opts options) error {
	logger := log.Component("lookout")

	src, err := openSource(ctx, opts)
	if err != nil {
		return err
	}
	defer src.Release()

	client, err := inference.NewClient(
		inference.WithModel(opts.Model),
		inference.WithMaxTokens(opts.MaxTokens),
	)
	if err != nil {
		return fmt.Errorf("inference client: %w", err)
	}
	defer client.Close()

	ctrl, err := sampler.New(src, client,
		sampler.WithEndpoint(opts.Endpoint),
		sampler.WithInstruction(opts.Instruction),
		sampler.WithInterval(opts.IntervalMs),
	)
	if err != nil {
		return fmt.Errorf("controller: %w", err)
	}

	srv := web.NewServer(ctrl, client, web.Config{
		Addr:      opts.Addr,
		StaticDir: opts.StaticDir,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen()
	}()

	if opts.AutoStart {
		if err := ctrl.Start(); err != nil {
			logger.Warn("autostart failed", "error", err)
		}
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdown(logger, shutdownTimeout, ctrl, nil)
			return fmt.Errorf("dashboard: %w", err)
		}
	}

	shutdown(logger, shutdownTimeout, ctrl, srv)
	return nil
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// shutdown stops the controller, then the server if it is serving. Both
// share one deadline, so a hung dispatch cannot block exit.
func shutdown(logger *slog.Logger, timeout time.Duration, ctrl, srv shutdowner) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := ctrl.Shutdown(ctx); err != nil {
		logger.Warn("in-flight cycle cancelled", "error", err)
	}
	if srv == nil {
		return
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("dashboard shutdown", "error", err)
	}
}

// openSource acquires the still image or the camera. An acquisition failure
// is not fatal: the source keeps the error and the controller reports it
// when sampling is started.
func openSource(ctx context.Context, opts options) (source, error) {
	logger := log.Component("lookout")

	if opts.Image != "" {
		s := frame.NewStillSource(opts.Image, opts.Quality)
		if err := s.Acquire(); err != nil {
			logger.Warn("image unavailable", "path", opts.Image, "error", err)
		}
		return s, nil
	}

	cfg := *camera.GetPreset(opts.Preset)
	cfg.Device = opts.Camera
	cfg.Quality = opts.Quality

	s := camera.NewSource(cfg)
	if err := s.Acquire(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		logger.Warn("camera unavailable", "device", cfg.Device, "error", err, "hint", sourceHint(err))
	} else {
		logger.Info("camera ready", "device", s.String())
	}
	return s, nil
}

// sourceHint suggests a fix for a camera acquisition failure.
func sourceHint(err error) string {
	switch {
	case camera.IsPermission(err):
		return "grant camera access to this user, e.g. add it to the video group"
	case camera.IsAbsent(err):
		return "no such device; pass -camera with another index or path, or -image"
	}
	return "the device may be busy in another program"
}
