package camera

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/teslashibe/lookout/internal/log"
	"github.com/teslashibe/lookout/pkg/frame"
	"gocv.io/x/gocv"
)

// Source owns one video device for its lifetime.
type Source struct {
	config Config
	logger *slog.Logger

	mu      sync.Mutex // Protects webcam and mat
	webcam  *gocv.VideoCapture
	mat     gocv.Mat
	err     error
	release sync.Once
	closed  bool
}

// NewSource creates an adapter for the configured device. Nothing is opened
// until Acquire.
func NewSource(cfg Config) *Source {
	return &Source{
		config: cfg,
		logger: log.Component("camera"),
	}
}

// Acquire opens the device. A failure is terminal: it is kept, reported by
// Err, and every later Capture yields nothing.
func (s *Source) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrNotAcquired
	}
	if s.webcam != nil || s.err != nil {
		return s.err
	}

	if errs := s.config.Validate(); len(errs) > 0 {
		s.err = &DeviceError{
			Device: s.config.Device,
			Reason: ReasonInvalidConfig,
			Detail: strings.Join(errs, "; "),
		}
		return s.err
	}

	if path := s.config.devicePath(); path != "" {
		if err := checkDevicePath(path); err != nil {
			s.err = err
			s.logger.Error("camera unavailable", "device", path, "error", err)
			return err
		}
	}

	webcam, err := gocv.OpenVideoCapture(s.config.deviceID())
	if err != nil {
		s.err = &DeviceError{Device: s.config.Device, Reason: ReasonUnavailable, Detail: err.Error(), Err: err}
		s.logger.Error("camera open failed", "device", s.config.Device, "error", err)
		return s.err
	}
	if !webcam.IsOpened() {
		webcam.Close()
		s.err = &DeviceError{Device: s.config.Device, Reason: ReasonAbsent, Detail: "device " + s.config.Device + " did not open"}
		s.logger.Error("camera not opened", "device", s.config.Device)
		return s.err
	}

	if s.config.Width > 0 && s.config.Height > 0 {
		webcam.Set(gocv.VideoCaptureFrameWidth, float64(s.config.Width))
		webcam.Set(gocv.VideoCaptureFrameHeight, float64(s.config.Height))
	}

	s.webcam = webcam
	s.mat = gocv.NewMat()
	s.logger.Info("camera acquired", "device", s.config.Device,
		"width", webcam.Get(gocv.VideoCaptureFrameWidth),
		"height", webcam.Get(gocv.VideoCaptureFrameHeight))
	return nil
}

func checkDevicePath(path string) error {
	f, err := os.Open(path)
	if err == nil {
		f.Close()
		return nil
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &DeviceError{Device: path, Reason: ReasonAbsent, Detail: "no device at " + path, Err: err}
	case errors.Is(err, fs.ErrPermission):
		return &DeviceError{Device: path, Reason: ReasonPermission, Detail: "permission denied for " + path, Err: err}
	}
	return &DeviceError{Device: path, Reason: ReasonUnavailable, Detail: err.Error(), Err: err}
}

// Capture reads the current frame and JPEG-encodes it at native size.
// It returns false when the device is not acquired, acquisition failed,
// or the device has not produced a frame with established dimensions yet.
func (s *Source) Capture() (frame.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.webcam == nil || s.closed {
		return frame.Image{}, false
	}
	if ok := s.webcam.Read(&s.mat); !ok || s.mat.Empty() {
		return frame.Image{}, false
	}
	if s.mat.Cols() == 0 || s.mat.Rows() == 0 {
		return frame.Image{}, false
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, s.mat, []int{int(gocv.IMWriteJpegQuality), s.config.Quality})
	if err != nil {
		s.logger.Warn("jpeg encode failed", "error", err)
		return frame.Image{}, false
	}
	defer buf.Close()

	// The native buffer is freed on Close, so copy out.
	data := append([]byte(nil), buf.GetBytes()...)
	return frame.Image{JPEG: data, Width: s.mat.Cols(), Height: s.mat.Rows()}, true
}

// Err returns the acquisition failure, if any.
func (s *Source) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Release stops using the device. Only the first call has any effect.
func (s *Source) Release() {
	s.release.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.closed = true
		if s.webcam == nil {
			return
		}
		if err := s.webcam.Close(); err != nil {
			s.logger.Warn("camera close failed", "error", err)
		}
		s.mat.Close()
		s.webcam = nil
		s.logger.Info("camera released", "device", s.config.Device)
	})
}

// String describes the adapter for logs.
func (s *Source) String() string {
	return fmt.Sprintf("camera(%s)", s.config.Device)
}
