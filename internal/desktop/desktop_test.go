package desktop_test

import (
	"errors"
	"testing"

	"github.com/cheminotify/agent/internal/coords"
	"github.com/cheminotify/agent/internal/desktop"
	"github.com/cheminotify/agent/internal/desktop/desktoptest"
)

func TestTitles(t *testing.T) {
	d := desktoptest.New()
	d.Add("Le ChemiNot", coords.Rect{W: 608, H: 468})
	d.Add("Bienvenue sur ChemiNot", coords.Rect{W: 364, H: 321})

	got, err := desktop.Titles(d)
	if err != nil {
		t.Fatalf("Titles() error = %v", err)
	}
	if len(got) != 2 || !got["Le ChemiNot"] || !got["Bienvenue sur ChemiNot"] {
		t.Errorf("Titles() = %v", got)
	}

	d.ListErr = errors.New("enum failed")
	if _, err := desktop.Titles(d); err == nil {
		t.Error("Titles() should surface List errors")
	}
}

func TestFindTitleAndIsActive(t *testing.T) {
	d := desktoptest.New()
	main := d.Add("Le ChemiNot", coords.Rect{W: 608, H: 468})
	d.Add("Erreur", coords.Rect{W: 200, H: 100})

	w, err := desktop.FindTitle(d, "Le ChemiNot")
	if err != nil {
		t.Fatalf("FindTitle() error = %v", err)
	}
	if desktop.IsActive(d, w) {
		t.Error("main window should not be active while the popup is on top")
	}

	_ = main.Activate()
	if !desktop.IsActive(d, w) {
		t.Error("main window should be active after Activate")
	}

	if _, err := desktop.FindTitle(d, "missing"); !errors.Is(err, desktop.ErrNoWindow) {
		t.Errorf("FindTitle(missing) error = %v, want ErrNoWindow", err)
	}
}
