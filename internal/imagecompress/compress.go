// Package imagecompress downsizes and re-encodes image attachments before
// they are queued.
package imagecompress

import (
	"bytes"
	"fmt"
	"image/png"
	"math"
	"strings"

	"github.com/disintegration/imaging"

	"notely/internal/config"
)

const (
	DefaultMaxDimension = 1920
	DefaultQuality      = 0.8
	// qualityPassthrough skips re-encoding an image that needs no resize.
	qualityPassthrough = 0.98
)

// Options bounds the output image.
type Options struct {
	MaxWidth  int
	MaxHeight int
	// Quality is in (0, 1].
	Quality float64
}

// Result is the payload to enqueue.
type Result struct {
	Data       []byte
	MimeType   string
	Width      int
	Height     int
	Compressed bool
}

// Compressor re-encodes images within the configured bounds.
type Compressor struct {
	opts Options
}

// New constructs a Compressor, defaulting unset options.
func New(opts Options) *Compressor {
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = DefaultMaxDimension
	}
	if opts.MaxHeight <= 0 {
		opts.MaxHeight = DefaultMaxDimension
	}
	if opts.Quality <= 0 || opts.Quality > 1 {
		opts.Quality = DefaultQuality
	}
	return &Compressor{opts: opts}
}

// FromConfig returns nil when image compression is disabled.
func FromConfig(cfg *config.Config) *Compressor {
	if cfg == nil || !cfg.Images.Compress {
		return nil
	}
	return New(Options{
		MaxWidth:  cfg.Images.MaxWidth,
		MaxHeight: cfg.Images.MaxHeight,
		Quality:   cfg.Images.Quality,
	})
}

// Compress fits the image inside the configured bounds. PNG input stays PNG;
// every other raster format becomes JPEG. Non-images, GIF and SVG pass through
// untouched. A decode error is returned with the original bytes in Result so
// callers can fall back.
func (c *Compressor) Compress(data []byte, mimeType string) (Result, error) {
	original := Result{Data: data, MimeType: mimeType}
	if !Supported(mimeType) {
		return original, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return original, fmt.Errorf("decode image: %w", err)
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	original.Width, original.Height = width, height
	if width == 0 || height == 0 {
		return original, nil
	}

	ratio := math.Min(1, math.Min(float64(c.opts.MaxWidth)/float64(width), float64(c.opts.MaxHeight)/float64(height)))
	if ratio == 1 && c.opts.Quality >= qualityPassthrough {
		return original, nil
	}
	if ratio < 1 {
		targetW := max(1, int(math.Round(float64(width)*ratio)))
		targetH := max(1, int(math.Round(float64(height)*ratio)))
		img = imaging.Resize(img, targetW, targetH, imaging.Lanczos)
	}

	format := imaging.JPEG
	outMime := "image/jpeg"
	if strings.EqualFold(mimeType, "image/png") {
		format = imaging.PNG
		outMime = "image/png"
	}

	var buf bytes.Buffer
	quality := int(math.Round(c.opts.Quality * 100))
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(quality), imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
		return original, fmt.Errorf("encode image: %w", err)
	}
	if ratio == 1 && buf.Len() >= len(data) {
		return original, nil
	}

	out := img.Bounds()
	return Result{
		Data:       buf.Bytes(),
		MimeType:   outMime,
		Width:      out.Dx(),
		Height:     out.Dy(),
		Compressed: true,
	}, nil
}

// Supported reports whether mimeType is a raster image this package
// re-encodes.
func Supported(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if !strings.HasPrefix(mimeType, "image/") {
		return false
	}
	switch mimeType {
	case "image/gif", "image/svg+xml":
		return false
	}
	return true
}
