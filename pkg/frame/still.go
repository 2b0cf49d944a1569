package frame

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"sync"
)

// StillSource serves the same image file on every capture.
// It follows the camera contract: Acquire once, Capture many, Release once.
type StillSource struct {
	path    string
	quality int

	mu       sync.RWMutex
	img      Image
	err      error
	released bool
}

// NewStillSource creates a source for the image at path.
func NewStillSource(path string, quality int) *StillSource {
	return &StillSource{path: path, quality: quality}
}

// Acquire loads and encodes the file. Failure is kept and reported by Err.
func (s *StillSource) Acquire() error {
	img, err := s.load()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.err = err
		return err
	}
	s.img = img
	return nil
}

func (s *StillSource) load() (Image, error) {
	f, err := os.Open(s.path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return Image{}, fmt.Errorf("image file not found: %s", s.path)
		case errors.Is(err, fs.ErrPermission):
			return Image{}, fmt.Errorf("permission denied: %s", s.path)
		}
		return Image{}, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	decoded, _, err := image.Decode(f)
	if err != nil {
		return Image{}, fmt.Errorf("decode image %s: %w", s.path, err)
	}
	return Encode(decoded, s.quality)
}

// Capture returns the loaded image, or false before Acquire, after Release
// or when acquisition failed.
func (s *StillSource) Capture() (Image, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.released || s.err != nil || s.img.Empty() {
		return Image{}, false
	}
	return s.img, true
}

// Err returns the acquisition error, if any.
func (s *StillSource) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Release drops the cached image. Safe to call more than once.
func (s *StillSource) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
	s.img = Image{}
}
