package pixel

import (
	"image/color"
	"testing"
)

func TestWithinTolerance(t *testing.T) {
	black := RGB(0, 0, 0)

	tests := []struct {
		name string
		c    Color
		tol  int
		want bool
	}{
		{"exact at zero", RGB(0, 0, 0), 0, true},
		{"off by one at zero", RGB(1, 0, 0), 0, false},
		{"inside", RGB(5, 5, 5), 10, true},
		{"on boundary", RGB(10, 0, 10), 10, true},
		{"one past boundary", RGB(11, 0, 0), 10, false},
		{"single channel out", RGB(0, 0, 21), 20, false},
		{"negative treated as exact", RGB(0, 0, 0), -5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.Within(black, tt.tol); got != tt.want {
				t.Errorf("%v.Within(%v, %d) = %v, want %v", tt.c, black, tt.tol, got, tt.want)
			}
			if got := black.Within(tt.c, tt.tol); got != tt.want {
				t.Errorf("Within is not symmetric for %v", tt.c)
			}
		})
	}
}

func TestToleranceBoundaryAllChannels(t *testing.T) {
	base := RGB(128, 64, 200)
	for tol := 0; tol <= 30; tol++ {
		if !base.Within(base, tol) {
			t.Fatalf("colour should match itself at tolerance %d", tol)
		}
		over := uint8(tol + 1)
		for ch := 0; ch < 3; ch++ {
			c := base
			switch ch {
			case 0:
				c.R += over
			case 1:
				c.G -= over
			case 2:
				c.B += over
			}
			if c.Within(base, tol) {
				t.Fatalf("channel %d off by %d matched at tolerance %d", ch, over, tol)
			}
		}
	}
}

func TestMatchesAny(t *testing.T) {
	palette := []Color{MustHex("ffffff"), MustHex("eeeeee")}
	if !RGB(240, 240, 240).MatchesAny(palette, 5) {
		t.Error("expected match against second palette entry")
	}
	if RGB(200, 200, 200).MatchesAny(palette, 5) {
		t.Error("unexpected match")
	}
	if RGB(0, 0, 0).MatchesAny(nil, 255) {
		t.Error("empty palette should never match")
	}
}

func TestParseHex(t *testing.T) {
	c, err := ParseHex("#C0C0C0")
	if err != nil {
		t.Fatalf("ParseHex() error = %v", err)
	}
	if c != RGB(192, 192, 192) {
		t.Errorf("ParseHex() = %v, want (192,192,192)", c)
	}
	if c.Hex() != "c0c0c0" {
		t.Errorf("Hex() = %q, want %q", c.Hex(), "c0c0c0")
	}
	for _, bad := range []string{"", "c0c0", "gggggg", "c0c0c0c0"} {
		if _, err := ParseHex(bad); err == nil {
			t.Errorf("ParseHex(%q) should fail", bad)
		}
	}
}

func TestFromRGBA(t *testing.T) {
	if got := FromRGBA(color.RGBA{1, 2, 3, 0}); got != RGB(1, 2, 3) {
		t.Errorf("FromRGBA() = %v", got)
	}
}
