// Package camera adapts a local video device to lookout's video source contract.
// Frames are read and JPEG-encoded with gocv.
package camera

import (
	"strconv"
	"strings"
)

// Config holds the device settings used for one adapter lifetime.
type Config struct {
	// Device is a capture index ("0", "1") or a device path ("/dev/video2").
	Device string `json:"device"`

	// Requested resolution. Zero keeps the device's native size.
	Width  int `json:"width"`
	Height int `json:"height"`

	// Quality is the JPEG quality 1-100.
	Quality int `json:"quality"`
}

// Resolution limits accepted by Validate.
const (
	MaxWidth  = 4096
	MaxHeight = 2160
)

// DefaultConfig opens the first device at its native resolution.
func DefaultConfig() Config {
	return Config{
		Device:  "0",
		Quality: 80,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if strings.TrimSpace(c.Device) == "" {
		errors = append(errors, "device must not be empty")
	}
	if c.Width != 0 && (c.Width < 160 || c.Width > MaxWidth) {
		errors = append(errors, "width must be 0 (native) or between 160 and 4096")
	}
	if c.Height != 0 && (c.Height < 120 || c.Height > MaxHeight) {
		errors = append(errors, "height must be 0 (native) or between 120 and 2160")
	}
	if (c.Width == 0) != (c.Height == 0) {
		errors = append(errors, "width and height must be set together")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}

	return errors
}

// deviceID returns the value handed to gocv: an int index or a path.
func (c *Config) deviceID() interface{} {
	if idx, err := strconv.Atoi(strings.TrimSpace(c.Device)); err == nil {
		return idx
	}
	return c.Device
}

// devicePath returns the device path, or "" for index-addressed devices.
func (c *Config) devicePath() string {
	if _, ok := c.deviceID().(int); ok {
		return ""
	}
	return c.Device
}
