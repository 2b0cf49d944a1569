// Package frame holds the encoded still image passed from a video source to
// the inference client, plus a file-backed source for headless runs.
package frame

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
)

// DefaultQuality is the JPEG quality used for every captured frame.
const DefaultQuality = 80

// MIMEType of every encoded Image.
const MIMEType = "image/jpeg"

// Image is a JPEG-encoded still frame at the source's native size.
type Image struct {
	JPEG   []byte
	Width  int
	Height int
}

// Empty reports whether the image carries no payload.
func (i Image) Empty() bool {
	return len(i.JPEG) == 0
}

// DataURL returns the image as a base64 data URL.
func (i Image) DataURL() string {
	return "data:" + MIMEType + ";base64," + base64.StdEncoding.EncodeToString(i.JPEG)
}

// Encode JPEG-encodes img at the given quality (1-100).
func Encode(img image.Image, quality int) (Image, error) {
	if img == nil {
		return Image{}, fmt.Errorf("frame: nil image")
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return Image{}, fmt.Errorf("frame: image has no dimensions")
	}
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return Image{}, fmt.Errorf("frame: encode jpeg: %w", err)
	}
	return Image{JPEG: buf.Bytes(), Width: b.Dx(), Height: b.Dy()}, nil
}
