// Package media prepares camera frames for upload and display.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	_ "image/png" // Register PNG decoder for still-image devices

	"golang.org/x/image/draw"

	"github.com/avashx/itark/camera"
)

// Default configuration values.
const (
	DefaultMaxWidth = 800
	DefaultQuality  = 85
	MinQuality      = 10
	QualityDecay    = 0.9

	// DefaultMaxBytes keeps inline uploads well under the vision API limit.
	DefaultMaxBytes = 4 * 1024 * 1024
)

// MIMETypeJPEG is the MIME type of every prepared image.
const MIMETypeJPEG = "image/jpeg"

// ErrInvalidDimensions is returned for empty or undecodable frames and
// non-positive target widths.
var ErrInvalidDimensions = errors.New("invalid image dimensions")

// Preprocessor applies a fixed size and quality policy to frames.
type Preprocessor struct {
	MaxWidth int
	Quality  int
	// MaxBytes, if positive, lowers quality until the encoding fits.
	MaxBytes int
}

// NewPreprocessor returns a Preprocessor with the given bounds, falling back
// to defaults for zero values.
func NewPreprocessor(maxWidth, quality int) *Preprocessor {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	if quality <= 0 {
		quality = DefaultQuality
	}
	return &Preprocessor{MaxWidth: maxWidth, Quality: quality, MaxBytes: DefaultMaxBytes}
}

// Prepare scales and encodes f for upload. When the encoding is over
// MaxBytes the scaled image is encoded again at lower quality.
func (p *Preprocessor) Prepare(f *camera.Frame) ([]byte, error) {
	img, err := scaled(f, p.MaxWidth)
	if err != nil {
		return nil, err
	}
	quality := clampQuality(p.Quality)
	out, err := encodeJPEG(img, quality)
	if err != nil {
		return nil, err
	}
	if p.MaxBytes <= 0 || len(out) <= p.MaxBytes {
		return out, nil
	}
	return reduceToFitSize(img, int(float64(quality)*QualityDecay), p.MaxBytes)
}

// Prepare decodes f, downscales it to at most maxWidth pixels wide keeping
// the aspect ratio, and re-encodes it as JPEG at quality (clamped to 1..100).
// The same input always yields the same output.
func Prepare(f *camera.Frame, maxWidth, quality int) ([]byte, error) {
	img, err := scaled(f, maxWidth)
	if err != nil {
		return nil, err
	}
	return encodeJPEG(img, clampQuality(quality))
}

// scaled decodes f and downscales it to at most maxWidth pixels wide.
func scaled(f *camera.Frame, maxWidth int) (image.Image, error) {
	if f == nil || len(f.Data) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrInvalidDimensions)
	}
	if maxWidth <= 0 {
		return nil, fmt.Errorf("%w: max width %d", ErrInvalidDimensions, maxWidth)
	}

	img, _, err := image.Decode(bytes.NewReader(f.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidDimensions, err)
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, b.Dx(), b.Dy())
	}

	w, h := targetDimensions(b.Dx(), b.Dy(), maxWidth)
	if w < b.Dx() {
		img = scale(img, w, h, draw.CatmullRom)
	}
	return img, nil
}

// Thumbnail decodes f and scales it to fit within width x height pixels.
func Thumbnail(f *camera.Frame, width, height int) (image.Image, error) {
	if f == nil || len(f.Data) == 0 || width <= 0 || height <= 0 {
		return nil, ErrInvalidDimensions
	}
	img, _, err := image.Decode(bytes.NewReader(f.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidDimensions, err)
	}

	b := img.Bounds()
	ratio := min(float64(width)/float64(b.Dx()), float64(height)/float64(b.Dy()))
	w := max(1, int(float64(b.Dx())*ratio))
	h := max(1, int(float64(b.Dy())*ratio))
	return scale(img, w, h, draw.ApproxBiLinear), nil
}

func targetDimensions(origWidth, origHeight, maxWidth int) (width, height int) {
	if origWidth <= maxWidth {
		return origWidth, origHeight
	}
	ratio := float64(maxWidth) / float64(origWidth)
	height = int(float64(origHeight) * ratio)
	if height < 1 {
		height = 1
	}
	return maxWidth, height
}

func scale(src image.Image, width, height int, s draw.Scaler) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	s.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// reduceToFitSize iteratively reduces quality to fit within maxSize.
func reduceToFitSize(img image.Image, startQuality, maxSize int) ([]byte, error) {
	quality := startQuality
	for quality >= MinQuality {
		encoded, err := encodeJPEG(img, quality)
		if err != nil {
			return nil, err
		}
		if len(encoded) <= maxSize {
			return encoded, nil
		}
		quality = int(float64(quality) * QualityDecay)
	}
	return encodeJPEG(img, MinQuality)
}

func clampQuality(q int) int {
	switch {
	case q < 1:
		return 1
	case q > 100:
		return 100
	default:
		return q
	}
}
