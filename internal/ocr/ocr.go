// Package ocr extracts text from popup captures. A remote OCR service is
// used when configured, with local tesseract as the fallback.
package ocr

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"log/slog"

	"github.com/nfnt/resize"

	apperrors "github.com/cheminotify/agent/internal/errors"
)

// Recognizer turns an image into text.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// Func adapts a function to Recognizer.
type Func func(ctx context.Context, img image.Image) (string, error)

func (f Func) Recognize(ctx context.Context, img image.Image) (string, error) { return f(ctx, img) }

// Prepare upscales img by factor and converts it to grayscale. Popup text is
// small and anti-aliased; tesseract reads it far better at 2-3x.
func Prepare(img image.Image, factor int) image.Image {
	if factor > 1 {
		b := img.Bounds()
		img = resize.Resize(uint(b.Dx()*factor), uint(b.Dy()*factor), img, resize.Bicubic)
	}
	b := img.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray
}

// EncodePNG serializes img for transports that take bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, apperrors.Wrap(err, apperrors.OCRFailed, "encode png")
	}
	return buf.Bytes(), nil
}

// Fallback tries Primary and, on any error, Secondary.
type Fallback struct {
	Primary   Recognizer
	Secondary Recognizer
}

func (f *Fallback) Recognize(ctx context.Context, img image.Image) (string, error) {
	if f.Primary != nil {
		text, err := f.Primary.Recognize(ctx, img)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		slog.Warn("primary OCR failed, falling back", "error", err)
	}
	if f.Secondary == nil {
		return "", apperrors.New(apperrors.OCRUnavailable, "no OCR backend available")
	}
	return f.Secondary.Recognize(ctx, img)
}
