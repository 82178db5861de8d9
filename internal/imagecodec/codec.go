// Package imagecodec serializes encoded RGB tiles into image files.
package imagecodec

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strconv"
	"strings"

	"github.com/HugoSmits86/nativewebp"

	"github.com/kiesman99/rgbify/internal/raster"
	"github.com/kiesman99/rgbify/pkg/tile"
)

// Format is the closed set of tile image formats.
type Format int

const (
	PNG Format = iota
	WebP
)

func (f Format) String() string {
	switch f {
	case PNG:
		return "png"
	case WebP:
		return "webp"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat resolves a format name once at configuration time.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return PNG, nil
	case "webp":
		return WebP, nil
	}
	return 0, tile.Configf("format", "%s is not a supported filetype", s)
}

// CodecTypeError is returned when an encoder receives samples that are not
// 8-bit. It always indicates a bug upstream of the encoder.
type CodecTypeError struct {
	Got raster.DataType
}

func (e *CodecTypeError) Error() string {
	return fmt.Sprintf("image encoder requires uint8 data, got %v", e.Got)
}

// Encoder turns a 3 x rows x cols uint8 array into image bytes.
type Encoder interface {
	Encode(a raster.Array) ([]byte, error)
	Format() Format
	FileExtension() string
	MIMEType() string
}

// New returns the encoder for f. Creation options are GDAL style KEY=VALUE
// pairs; only ZLEVEL (PNG deflate level 1-9) is understood. image/png has
// three levels, so ZLEVEL 1-3 select BestSpeed, 4-8 DefaultCompression and
// 9 BestCompression.
func New(f Format, creation map[string]string) (Encoder, error) {
	switch f {
	case PNG:
		enc := &PNGEncoder{CompressionLevel: png.DefaultCompression}
		if v, ok := lookup(creation, "ZLEVEL"); ok {
			level, err := strconv.Atoi(v)
			if err != nil || level < 1 || level > 9 {
				return nil, tile.Configf("creation option", "ZLEVEL=%s must be an integer in [1, 9]", v)
			}
			enc.CompressionLevel = zlevel(level)
		}
		return enc, nil
	case WebP:
		return &WebPEncoder{}, nil
	}
	return nil, tile.Configf("format", "%v is not a supported filetype", f)
}

// PNGEncoder encodes tiles as 8-bit truecolor PNG.
type PNGEncoder struct {
	CompressionLevel png.CompressionLevel
}

func (e *PNGEncoder) Encode(a raster.Array) ([]byte, error) {
	img, err := toNRGBA(a)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := &png.Encoder{CompressionLevel: e.CompressionLevel}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *PNGEncoder) Format() Format        { return PNG }
func (e *PNGEncoder) FileExtension() string { return ".png" }
func (e *PNGEncoder) MIMEType() string      { return "image/png" }

// WebPEncoder encodes tiles as lossless WebP.
type WebPEncoder struct{}

func (e *WebPEncoder) Encode(a raster.Array) ([]byte, error) {
	img, err := toNRGBA(a)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := nativewebp.Encode(&buf, img, nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *WebPEncoder) Format() Format        { return WebP }
func (e *WebPEncoder) FileExtension() string { return ".webp" }
func (e *WebPEncoder) MIMEType() string      { return "image/webp" }

// toNRGBA interleaves three band planes into an opaque image.
func toNRGBA(a raster.Array) (*image.NRGBA, error) {
	pix, ok := a.Uint8s()
	if !ok || a.DType != raster.Byte {
		return nil, &CodecTypeError{Got: a.DType}
	}
	if a.Bands != 3 {
		return nil, fmt.Errorf("image encoder requires 3 bands, got %d", a.Bands)
	}

	n := a.Rows * a.Cols
	img := image.NewNRGBA(image.Rect(0, 0, a.Cols, a.Rows))
	for i := 0; i < n; i++ {
		img.Pix[4*i] = pix[i]
		img.Pix[4*i+1] = pix[n+i]
		img.Pix[4*i+2] = pix[2*n+i]
		img.Pix[4*i+3] = 0xFF
	}
	return img, nil
}

func lookup(opts map[string]string, key string) (string, bool) {
	for k, v := range opts {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

func zlevel(level int) png.CompressionLevel {
	switch {
	case level <= 3:
		return png.BestSpeed
	case level >= 9:
		return png.BestCompression
	}
	return png.DefaultCompression
}
