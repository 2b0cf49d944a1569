package camera

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if errs := cfg.Validate(); len(errs) > 0 {
		t.Errorf("DefaultConfig should be valid, got %v", errs)
	}
	if cfg.Quality != 80 {
		t.Errorf("Expected quality 80, got %d", cfg.Quality)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty device", func(c *Config) { c.Device = " " }, "device"},
		{"width too small", func(c *Config) { c.Width, c.Height = 100, 480 }, "width"},
		{"height too large", func(c *Config) { c.Width, c.Height = 640, 5000 }, "height"},
		{"width without height", func(c *Config) { c.Width = 640 }, "together"},
		{"quality zero", func(c *Config) { c.Quality = 0 }, "quality"},
		{"quality too high", func(c *Config) { c.Quality = 101 }, "quality"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			errs := cfg.Validate()
			if len(errs) == 0 {
				t.Fatal("Expected validation errors")
			}
			if !strings.Contains(strings.Join(errs, ";"), tt.want) {
				t.Errorf("Expected error mentioning %q, got %v", tt.want, errs)
			}
		})
	}
}

func TestDeviceID(t *testing.T) {
	cfg := Config{Device: "2"}
	if id, ok := cfg.deviceID().(int); !ok || id != 2 {
		t.Errorf("Expected index 2, got %v", cfg.deviceID())
	}
	if cfg.devicePath() != "" {
		t.Error("Index devices have no path")
	}

	cfg.Device = "/dev/video0"
	if cfg.devicePath() != "/dev/video0" {
		t.Errorf("Expected path, got %q", cfg.devicePath())
	}
}

func TestPresets(t *testing.T) {
	for _, name := range PresetNames() {
		p := GetPreset(name)
		if p == nil {
			t.Fatalf("Preset %s missing", name)
		}
		if errs := p.Validate(); len(errs) > 0 {
			t.Errorf("Preset %s invalid: %v", name, errs)
		}
	}
	if GetPreset("8k") != nil {
		t.Error("Unknown preset should be nil")
	}
}

func TestAcquireMissingDevice(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Device = filepath.Join(t.TempDir(), "video9")
	src := NewSource(cfg)
	defer src.Release()

	err := src.Acquire(context.Background())
	if err == nil {
		t.Fatal("Expected error for missing device")
	}
	if !IsAbsent(err) {
		t.Errorf("Expected absent device error, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "Error accessing camera: NotFoundError") {
		t.Errorf("Unexpected message: %s", err.Error())
	}

	// Terminal: the same error comes back, no retry.
	if again := src.Acquire(context.Background()); again != err {
		t.Errorf("Expected retained error, got %v", again)
	}
	if src.Err() != err {
		t.Error("Err should return the acquisition failure")
	}
	if _, ok := src.Capture(); ok {
		t.Error("Capture should yield nothing after failed acquisition")
	}
}

func TestAcquireInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Quality = 0
	src := NewSource(cfg)

	err := src.Acquire(context.Background())
	var de *DeviceError
	if !errors.As(err, &de) || de.Reason != ReasonInvalidConfig {
		t.Fatalf("Expected config error, got %v", err)
	}
}

func TestCaptureBeforeAcquire(t *testing.T) {
	src := NewSource(DefaultConfig())
	if _, ok := src.Capture(); ok {
		t.Error("Capture before Acquire should yield nothing")
	}
	src.Release()
	src.Release()
	if err := src.Acquire(context.Background()); !errors.Is(err, ErrNotAcquired) {
		t.Errorf("Acquire after Release should fail, got %v", err)
	}
}

func TestDeviceErrorHelpers(t *testing.T) {
	perm := &DeviceError{Device: "/dev/video0", Reason: ReasonPermission, Detail: "denied"}
	if !IsPermission(perm) || IsAbsent(perm) {
		t.Error("Permission error misclassified")
	}
	if IsPermission(errors.New("other")) {
		t.Error("Plain errors are not permission errors")
	}
}
