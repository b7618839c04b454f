package popup

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/nfnt/resize"
)

// okButton draws a 32x16 button: dark border, light face, dark label block.
func okButton() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 32, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 32; x++ {
			c := color.RGBA{220, 220, 220, 255}
			switch {
			case x == 0 || y == 0 || x == 31 || y == 15:
				c = color.RGBA{40, 40, 40, 255}
			case x >= 10 && x < 22 && y >= 5 && y < 11:
				c = color.RGBA{0, 0, 0, 255}
			case x >= 24 && y >= 10:
				c = color.RGBA{90, 90, 200, 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func paste(dst *image.RGBA, src *image.RGBA, at image.Point) {
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(at.X+x, at.Y+y, src.At(x, y))
		}
	}
}

func blank(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

func near(a, b image.Point, tol int) bool {
	dx, dy := a.X-b.X, a.Y-b.Y
	return dx >= -tol && dx <= tol && dy >= -tol && dy <= tol
}

func TestTemplateLocate(t *testing.T) {
	screen := blank(200, 100)
	paste(screen, okButton(), image.Pt(120, 60))

	r, ok := NewTemplate(okButton()).Locate(screen, 1)
	if !ok {
		t.Fatal("Locate() found nothing")
	}
	if !near(r.Min, image.Pt(120, 60), 4) {
		t.Errorf("Locate() = %v, want near (120,60)", r)
	}
	if r.Dx() != 32 || r.Dy() != 16 {
		t.Errorf("size = %dx%d, want 32x16", r.Dx(), r.Dy())
	}
}

func TestTemplateLocateMissing(t *testing.T) {
	if _, ok := NewTemplate(okButton()).Locate(blank(200, 100), 1); ok {
		t.Error("Locate() matched a blank image")
	}
}

func TestTemplateLargerThanImage(t *testing.T) {
	if _, ok := NewTemplate(okButton()).Locate(blank(20, 10), 1); ok {
		t.Error("Locate() matched an image smaller than the template")
	}
}

func TestTemplateScaled(t *testing.T) {
	screen := blank(200, 100)
	big := image.NewRGBA(image.Rect(0, 0, 64, 32))
	draw.Draw(big, big.Bounds(), resize.Resize(64, 32, okButton(), resize.Bilinear), image.Point{}, draw.Src)
	paste(screen, big, image.Pt(40, 20))

	r, ok := NewTemplate(okButton()).Locate(screen, 2)
	if !ok {
		t.Fatal("Locate() found nothing at scale 2")
	}
	if !near(r.Min, image.Pt(40, 20), 6) {
		t.Errorf("Locate() = %v, want near (40,20)", r)
	}
}
