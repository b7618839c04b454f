package coords

import (
	"errors"
	"math"
	"testing"
)

var refs = map[RefID]Size{
	"LOGIN":       {W: 364, H: 321},
	"LE_CHEMINOT": {W: 608, H: 468},
}

func TestToPhysical(t *testing.T) {
	m := NewMapper(refs)

	tests := []struct {
		name   string
		p      Point
		ref    RefID
		actual Size
		want   Point
	}{
		{"identity", Point{180, 19}, "LOGIN", Size{364, 321}, Point{180, 19}},
		{"double", Point{180, 19}, "LOGIN", Size{728, 642}, Point{360, 38}},
		{"truncates", Point{430, 278}, "LE_CHEMINOT", Size{800, 600}, Point{565, 356}},
		{"independent axes", Point{100, 100}, "LE_CHEMINOT", Size{608, 936}, Point{100, 200}},
		{"shrink", Point{549, 5}, "LE_CHEMINOT", Size{304, 234}, Point{274, 2}},
		{"default ref", Point{512, 384}, "MISSING", Size{2048, 1536}, Point{1024, 768}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.ToPhysical(tt.p, tt.ref, tt.actual); got != tt.want {
				t.Errorf("ToPhysical(%v, %s, %v) = %v, want %v", tt.p, tt.ref, tt.actual, got, tt.want)
			}
		})
	}
}

func TestToPhysicalLinearScaling(t *testing.T) {
	m := NewMapper(refs)
	actuals := []Size{{608, 468}, {640, 480}, {1216, 936}, {911, 700}, {333, 251}}

	for _, a := range actuals {
		for x := 0; x <= 608; x += 19 {
			for y := 0; y <= 468; y += 23 {
				got := m.ToPhysical(Point{x, y}, "LE_CHEMINOT", a)
				wantX := int(math.Floor(float64(x) * float64(a.W) / 608))
				wantY := int(math.Floor(float64(y) * float64(a.H) / 468))
				if got.X != wantX || got.Y != wantY {
					t.Fatalf("ToPhysical(%d,%d) at %v = %v, want (%d,%d)", x, y, a, got, wantX, wantY)
				}
			}
		}
	}
}

func TestRefSizeDefault(t *testing.T) {
	m := NewMapper(map[RefID]Size{"BROKEN": {W: 0, H: 10}})

	if s, ok := m.RefSize("BROKEN"); ok || s != DefaultRefSize {
		t.Errorf("RefSize(BROKEN) = %v, %v; want default, false", s, ok)
	}
	if s, ok := m.RefSize("NOPE"); ok || s != DefaultRefSize {
		t.Errorf("RefSize(NOPE) = %v, %v; want default, false", s, ok)
	}
}

func TestMapperCopiesTable(t *testing.T) {
	table := map[RefID]Size{"LOGIN": {W: 364, H: 321}}
	m := NewMapper(table)
	table["LOGIN"] = Size{W: 1, H: 1}

	if s, _ := m.RefSize("LOGIN"); s != (Size{W: 364, H: 321}) {
		t.Errorf("RefSize(LOGIN) = %v, mapper should not see later table edits", s)
	}
}

func TestScaleSize(t *testing.T) {
	m := NewMapper(refs)
	got := m.ScaleSize(Size{W: 100, H: 50}, "LOGIN", Size{W: 546, H: 481})
	if want := (Size{W: 150, H: 74}); got != want {
		t.Errorf("ScaleSize() = %v, want %v", got, want)
	}
}

func TestToScreen(t *testing.T) {
	if got := ToScreen(Point{10, 20}, Point{300, 400}); got != (Point{310, 420}) {
		t.Errorf("ToScreen() = %v, want (310,420)", got)
	}
	if got := ToScreen(Point{10, 20}, Point{-1920, 0}); got != (Point{-1910, 20}) {
		t.Errorf("ToScreen() on left monitor = %v, want (-1910,20)", got)
	}
}

type fakeWindow struct {
	rect Rect
	err  error
}

func (f *fakeWindow) ClientRect() (Rect, error) { return f.rect, f.err }

func TestResolve(t *testing.T) {
	m := NewMapper(refs)
	win := &fakeWindow{rect: Rect{X: 100, Y: 50, W: 728, H: 642}}

	got, err := m.Resolve(Point{314, 45}, "LOGIN", win)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if want := (Point{728, 140}); got != want {
		t.Errorf("Resolve() = %v, want %v", got, want)
	}

	// window moved between calls
	win.rect.X, win.rect.Y = 0, 0
	got, _ = m.Resolve(Point{314, 45}, "LOGIN", win)
	if want := (Point{628, 90}); got != want {
		t.Errorf("Resolve() after move = %v, want %v", got, want)
	}

	win.err = errors.New("window gone")
	if _, err := m.Resolve(Point{1, 1}, "LOGIN", win); err == nil {
		t.Error("Resolve() should surface ClientRect errors")
	}
}
