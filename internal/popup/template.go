package popup

import (
	"image"

	"github.com/corona10/goimagehash"
	"github.com/nfnt/resize"
	"github.com/vcaesar/imgo"

	apperrors "github.com/cheminotify/agent/internal/errors"
)

// MaxTemplateDistance is the pHash Hamming distance (of 64 bits) at or below
// which a region counts as the template.
const MaxTemplateDistance = 12

// Template locates a small fixed image, the OK button, inside a capture.
type Template struct {
	img image.Image
}

// LoadTemplate reads a PNG or JPEG template.
func LoadTemplate(path string) (*Template, error) {
	img, err := imgo.Read(path)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.InvalidArgument, "read template %s", path)
	}
	return NewTemplate(img), nil
}

// NewTemplate wraps an in-memory image.
func NewTemplate(img image.Image) *Template {
	return &Template{img: img}
}

// Size returns the template size at scale 1.
func (t *Template) Size() image.Point {
	return t.img.Bounds().Size()
}

// Locate slides the template, resized by scale, over img and returns the best
// matching rectangle in img's coordinates.
func (t *Template) Locate(img image.Image, scale float64) (image.Rectangle, bool) {
	tpl := t.img
	if scale > 0 && scale != 1 {
		sz := t.Size()
		tpl = resize.Resize(uint(float64(sz.X)*scale), uint(float64(sz.Y)*scale), tpl, resize.Bilinear)
	}
	want, err := goimagehash.PerceptionHash(tpl)
	if err != nil {
		return image.Rectangle{}, false
	}

	sub, ok := img.(interface {
		SubImage(r image.Rectangle) image.Image
	})
	if !ok {
		return image.Rectangle{}, false
	}

	size := tpl.Bounds().Size()
	area := img.Bounds()
	if size.X <= 0 || size.Y <= 0 || size.X > area.Dx() || size.Y > area.Dy() {
		return image.Rectangle{}, false
	}
	step := max(1, min(size.X, size.Y)/8)

	best, bestDist := image.Rectangle{}, MaxTemplateDistance+1
	for y := area.Min.Y; y+size.Y <= area.Max.Y; y += step {
		for x := area.Min.X; x+size.X <= area.Max.X; x += step {
			r := image.Rect(x, y, x+size.X, y+size.Y)
			h, err := goimagehash.PerceptionHash(sub.SubImage(r))
			if err != nil {
				continue
			}
			d, err := want.Distance(h)
			if err != nil || d >= bestDist {
				continue
			}
			best, bestDist = r, d
			if d == 0 {
				return best, true
			}
		}
	}
	return best, bestDist <= MaxTemplateDistance
}
