package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"

	"golang.org/x/image/draw"
)

const (
	FrameWidth  = 300
	FrameHeight = 300

	CaptureFileName    = "captured-image.jpg"
	CaptureContentType = "image/jpeg"

	maxFrameDimension = 8192
	jpegQuality       = 92
)

var ErrInvalidFrame = errors.New("invalid camera frame")

// RasterizeFrame decodes a PNG or JPEG camera frame of any size, stretches it
// into a fixed 300x300 buffer and returns the buffer encoded as JPEG.
func RasterizeFrame(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read frame failed: %w", err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > maxFrameDimension || cfg.Height > maxFrameDimension {
		return nil, fmt.Errorf("%w: unsupported size %dx%d", ErrInvalidFrame, cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, FrameWidth, FrameHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode frame failed: %w", err)
	}
	return out.Bytes(), nil
}
