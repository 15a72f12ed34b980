package compressor

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxPixels caps width*height at 16383*16383 before any pixel buffer is allocated.
const DefaultMaxPixels int64 = 268402689

var (
	// ErrEmptyImage is returned for payloads that decode to zero pixels.
	ErrEmptyImage = errors.New("image has no pixels")
	// ErrTooManyPixels is returned when the header declares more pixels than allowed.
	ErrTooManyPixels = errors.New("image dimensions exceed pixel limit")
)

// ImageCompressor shrinks screenshots before they are sent to the model service
type ImageCompressor interface {
	Compress(ctx context.Context, data []byte) (*CompressedImage, error)
}

// CompressedImage is the in-memory result of a compression pass
type CompressedImage struct {
	Data           []byte
	Width          int
	Height         int
	OriginalWidth  int
	OriginalHeight int
	OriginalSize   int
	SourceFormat   string
}

// MIMEType of the encoded payload
func (c *CompressedImage) MIMEType() string {
	return "image/jpeg"
}

// Base64 returns the payload in standard base64 encoding
func (c *CompressedImage) Base64() string {
	return base64.StdEncoding.EncodeToString(c.Data)
}

// JPEGCompressor resizes to a maximum width and re-encodes as JPEG
type JPEGCompressor struct {
	maxWidth  int
	quality   int
	maxPixels int64
}

// NewJPEGCompressor creates a compressor. Quality is clamped to the range jpeg accepts;
// a maxPixels of zero or less selects DefaultMaxPixels.
func NewJPEGCompressor(maxWidth, quality int, maxPixels int64) *JPEGCompressor {
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &JPEGCompressor{maxWidth: maxWidth, quality: quality, maxPixels: maxPixels}
}

// Compress decodes data, scales it down to the configured width and encodes it as JPEG.
// Images already narrower than the limit keep their dimensions.
func (c *JPEGCompressor) Compress(ctx context.Context, data []byte) (*CompressedImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Decoders allocate the full canvas from the header, so dimensions are checked first.
	header, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if pixels := int64(header.Width) * int64(header.Height); pixels > c.maxPixels {
		return nil, fmt.Errorf("%w: %dx%d is more than %d pixels",
			ErrTooManyPixels, header.Width, header.Height, c.maxPixels)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil, ErrEmptyImage
	}

	targetWidth, targetHeight := TargetSize(width, height, c.maxWidth)
	dst := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))

	// JPEG has no alpha channel; transparent areas end up white.
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	if targetWidth == width && targetHeight == height {
		draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: c.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}

	return &CompressedImage{
		Data:           buf.Bytes(),
		Width:          targetWidth,
		Height:         targetHeight,
		OriginalWidth:  width,
		OriginalHeight: height,
		OriginalSize:   len(data),
		SourceFormat:   format,
	}, nil
}

// TargetSize returns the dimensions after capping width at maxWidth while
// keeping the aspect ratio. It never upscales.
func TargetSize(width, height, maxWidth int) (int, int) {
	if maxWidth <= 0 || width <= maxWidth {
		return width, height
	}
	scaled := int(math.Round(float64(height) * float64(maxWidth) / float64(width)))
	if scaled < 1 {
		scaled = 1
	}
	return maxWidth, scaled
}
