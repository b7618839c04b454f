// Package tesseract is the local OCR backend. It links libtesseract through
// cgo, so it lives apart from the ocr package.
package tesseract

import (
	"context"
	"image"
	"log/slog"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	apperrors "github.com/cheminotify/agent/internal/errors"
	"github.com/cheminotify/agent/internal/ocr"
)

// Upscale factor applied before recognition.
const Upscale = 2

// Engine wraps a single tesseract client. The client is not safe for
// concurrent use, so calls are serialized.
type Engine struct {
	mu     sync.Mutex
	client *gosseract.Client
	log    *slog.Logger
}

// New creates an engine for lang. prefix overrides TESSDATA_PREFIX when set.
func New(lang, prefix string) (*Engine, error) {
	c := gosseract.NewClient()
	if prefix != "" {
		if err := c.SetTessdataPrefix(prefix); err != nil {
			c.Close()
			return nil, apperrors.Wrapf(err, apperrors.OCRUnavailable, "tessdata prefix %s", prefix)
		}
	}
	if lang == "" {
		lang = "fra"
	}
	if err := c.SetLanguage(lang); err != nil {
		c.Close()
		return nil, apperrors.Wrapf(err, apperrors.OCRUnavailable, "tesseract language %s", lang)
	}
	if err := c.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		c.Close()
		return nil, apperrors.Wrap(err, apperrors.OCRUnavailable, "tesseract page segmentation")
	}
	return &Engine{client: c, log: slog.With("component", "tesseract")}, nil
}

func (e *Engine) Recognize(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := ocr.EncodePNG(ocr.Prepare(img, Upscale))
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.client.SetImageFromBytes(data); err != nil {
		return "", apperrors.Wrap(err, apperrors.OCRFailed, "load image")
	}
	text, err := e.client.Text()
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.OCRFailed, "recognize")
	}
	e.log.Debug("ocr done", "chars", len(text))
	return strings.TrimSpace(text), nil
}

// Close releases the tesseract handle.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client.Close()
}
