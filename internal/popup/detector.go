package popup

import (
	"context"
	"image"
	"regexp"
	"strings"
	"time"

	"github.com/cheminotify/agent/internal/coords"
	"github.com/cheminotify/agent/internal/desktop"
	"github.com/cheminotify/agent/internal/layout"
	"github.com/cheminotify/agent/internal/ocr"
	"github.com/cheminotify/agent/internal/trace"
)

const (
	DefaultTimeout = 1500 * time.Millisecond
	PollInterval   = 100 * time.Millisecond

	// Windows at least this large are application windows, not popups.
	MaxPopupWidth  = 800
	MaxPopupHeight = 600
)

// Delays are the UI settle times used while reading and dismissing popups.
type Delays struct {
	Activate time.Duration // after bringing a popup forward
	Capture  time.Duration // before capturing it for OCR
	Hover    time.Duration // hovering the OK button before clicking
	Key      time.Duration // after a key press
}

// DefaultDelays match the pace the ChemiNot client tolerates.
func DefaultDelays() Delays {
	return Delays{
		Activate: 100 * time.Millisecond,
		Capture:  200 * time.Millisecond,
		Hover:    500 * time.Millisecond,
		Key:      300 * time.Millisecond,
	}
}

var (
	skipTitles      = []string{"Program Manager", "Windows Input Experience"}
	protectedTitles = []string{layout.LoginTitle, layout.MainTitle}
	unsafeTitle     = regexp.MustCompile(`[^A-Za-z0-9 _-]+`)
)

// ImageSaver persists popups no rule recognized.
type ImageSaver interface {
	SaveImage(name string, img image.Image) (string, error)
}

// Observer is told about every handled popup.
type Observer interface {
	PopupHandled(ctx context.Context, title, text string, outcome Outcome, action Action)
}

// DetectOptions tune DetectAfter.
type DetectOptions struct {
	Timeout time.Duration
	// Ignore lists titles that never count as a popup.
	Ignore []string
}

// Result describes a popup found by DetectAfter.
type Result struct {
	Found   bool
	Title   string
	Text    string
	Outcome Outcome
}

// Detector finds, reads and dismisses popups.
type Detector struct {
	windows    desktop.Windows
	input      desktop.Input
	screen     desktop.Screen
	ocr        ocr.Recognizer
	classifier *Classifier

	unrecognized  ImageSaver
	observer      Observer
	okButton      *Template
	templateScale float64
	delays        Delays
	poll          time.Duration
}

// Option configures a Detector.
type Option func(*Detector)

// WithUnrecognizedStore saves captures of popups no rule matched.
func WithUnrecognizedStore(s ImageSaver) Option {
	return func(d *Detector) { d.unrecognized = s }
}

// WithObserver registers an observer for handled popups.
func WithObserver(o Observer) Option {
	return func(d *Detector) { d.observer = o }
}

// WithOKButton sets the template used by the click_ok action. scale resizes
// it for high-DPI displays; 1 keeps it as is.
func WithOKButton(t *Template, scale float64) Option {
	return func(d *Detector) {
		d.okButton = t
		d.templateScale = scale
	}
}

// WithDelays overrides the settle delays.
func WithDelays(delays Delays) Option {
	return func(d *Detector) { d.delays = delays }
}

// WithPollInterval overrides how often DetectAfter lists windows.
func WithPollInterval(p time.Duration) Option {
	return func(d *Detector) { d.poll = p }
}

// NewDetector creates a detector over the given desktop.
func NewDetector(dt *desktop.Desktop, rec ocr.Recognizer, c *Classifier, opts ...Option) *Detector {
	d := &Detector{
		windows:       dt.Windows,
		input:         dt.Input,
		screen:        dt.Screen,
		ocr:           rec,
		classifier:    c,
		templateScale: 1,
		delays:        DefaultDelays(),
		poll:          PollInterval,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Classifier returns the rule engine in use.
func (d *Detector) Classifier() *Classifier { return d.classifier }

// DetectAfter runs action and waits for a window that was not open before it.
// A popup that appears is read and handled. The error is action's.
func (d *Detector) DetectAfter(ctx context.Context, action func() error, opts DetectOptions) (Result, error) {
	log := trace.Logger(ctx).With("component", "popup")
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	before, err := desktop.Titles(d.windows)
	if err != nil {
		log.Debug("listing windows before action failed", "error", err)
		before = map[string]bool{}
	}

	if err := action(); err != nil {
		return Result{}, err
	}

	title, ok := d.waitForNew(ctx, before, opts)
	if !ok {
		return Result{}, nil
	}
	log.Info("detected popup", "title", title)

	win, err := desktop.FindTitle(d.windows, title)
	if err != nil {
		log.Warn("popup vanished before it could be read", "title", title)
		return Result{Found: true, Title: title}, nil
	}
	if err := win.Activate(); err != nil {
		log.Debug("activate popup failed", "title", title, "error", err)
	}
	sleep(ctx, d.delays.Activate)

	text := d.Recognize(ctx, win)
	return Result{Found: true, Title: title, Text: text, Outcome: d.Handle(ctx, win, title, text)}, nil
}

func (d *Detector) waitForNew(ctx context.Context, before map[string]bool, opts DetectOptions) (string, bool) {
	ignore := make(map[string]bool, len(opts.Ignore))
	for _, t := range opts.Ignore {
		ignore[t] = true
	}
	deadline := time.Now().Add(opts.Timeout)
	for {
		if titles, err := desktop.Titles(d.windows); err == nil {
			for t := range titles {
				if !before[t] && !ignore[t] {
					return t, true
				}
			}
		}
		if !time.Now().Before(deadline) || !sleep(ctx, d.poll) {
			return "", false
		}
	}
}

// Recognize captures win and returns its OCR text, trimmed. Failures are
// logged and yield "".
func (d *Detector) Recognize(ctx context.Context, win desktop.Window) string {
	log := trace.Logger(ctx).With("component", "popup", "title", win.Title())
	sleep(ctx, d.delays.Capture)

	r, err := win.Bounds()
	if err != nil {
		log.Error("popup bounds unavailable", "error", err)
		return ""
	}
	img, err := d.screen.Capture(r)
	if err != nil {
		log.Error("popup capture failed", "error", err)
		return ""
	}

	var text string
	if d.ocr != nil {
		text, err = d.ocr.Recognize(ctx, img)
		if err != nil {
			log.Error("popup OCR failed", "error", err)
		}
		text = strings.TrimSpace(text)
	}

	if d.unrecognized != nil && !d.classifier.Recognized(win.Title(), text) {
		name := unsafeTitle.ReplaceAllString(win.Title(), "_")
		if path, err := d.unrecognized.SaveImage(name, img); err != nil {
			log.Warn("saving unrecognized popup failed", "error", err)
		} else if path != "" {
			log.Debug("saved unrecognized popup", "path", path)
		}
	}

	if text == "" {
		log.Debug("OCR returned no text")
	} else {
		log.Debug("OCR text", "chars", len(text), "sample", truncate(text, 50))
	}
	return text
}

// Handle classifies a popup and runs its recovery action. It never fails;
// recovery problems are logged and the popup counts as handled.
func (d *Detector) Handle(ctx context.Context, win desktop.Window, title, text string) Outcome {
	log := trace.Logger(ctx).With("component", "popup", "title", title)

	outcome, action := d.classifier.Classify(title, text)
	if outcome == Unknown {
		log.Debug("no rule matched, closing popup")
	} else {
		log.Warn("detected popup", "outcome", outcome, "action", action)
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("popup recovery panicked", "panic", r)
			}
		}()
		switch action {
		case ClickOK:
			d.clickOK(ctx, win)
		default:
			d.close(ctx, win)
		}
	}()

	if d.observer != nil {
		d.observer.PopupHandled(ctx, title, text, outcome, action)
	}
	return outcome
}

// ScanActive handles every visible window that looks like a stray popup and
// returns how many were handled. Login and main windows, system windows and
// large windows are left alone, as are session selection dialogs.
func (d *Detector) ScanActive(ctx context.Context) int {
	log := trace.Logger(ctx).With("component", "popup")
	log.Debug("scanning for active popups")

	list, err := d.windows.List()
	if err != nil {
		log.Warn("listing windows failed", "error", err)
		return 0
	}

	handled := 0
	for _, win := range list {
		if ctx.Err() != nil {
			break
		}
		title := win.Title()
		if strings.TrimSpace(title) == "" || containsAny(title, skipTitles) {
			continue
		}
		if containsAny(title, protectedTitles) {
			log.Debug("skipping protected window", "title", title)
			continue
		}

		r, err := win.Bounds()
		if err != nil {
			continue
		}
		if r.W >= MaxPopupWidth || r.H >= MaxPopupHeight {
			log.Debug("skipping large window", "title", title, "size", r.Size())
			continue
		}
		if strings.Contains(title, "ChemiNot") && strings.Contains(strings.ToLower(title), "session") {
			log.Info("keeping session selection popup open", "title", title)
			continue
		}

		text := d.Recognize(ctx, win)
		outcome := d.Handle(ctx, win, title, text)
		log.Info("handled popup", "title", title, "outcome", outcome)
		handled++
	}
	return handled
}

func (d *Detector) close(ctx context.Context, win desktop.Window) {
	log := trace.Logger(ctx).With("component", "popup", "title", win.Title())
	err := win.Close()
	if err == nil {
		log.Debug("popup closed")
		return
	}
	log.Warn("graceful close failed, sending Alt+F4", "error", err)
	if err := win.Activate(); err != nil {
		log.Debug("activate before Alt+F4 failed", "error", err)
	}
	sleep(ctx, d.delays.Activate)
	if err := d.input.KeyTap("f4", "alt"); err != nil {
		log.Error("Alt+F4 failed", "error", err)
	}
}

func (d *Detector) clickOK(ctx context.Context, win desktop.Window) {
	log := trace.Logger(ctx).With("component", "popup", "title", win.Title())
	if err := win.Activate(); err != nil {
		log.Debug("activate popup failed", "error", err)
	}
	sleep(ctx, d.delays.Hover)

	if d.okButton == nil {
		log.Error("no OK button template, closing instead")
		d.close(ctx, win)
		return
	}

	if p, ok := d.locateOK(win); ok {
		log.Debug("found OK button", "at", p)
		if err := d.input.MoveTo(p, 0); err == nil {
			sleep(ctx, d.delays.Hover)
			if err := d.input.Click(p); err == nil {
				log.Info("clicked OK button")
				sleep(ctx, d.delays.Hover)
				return
			}
		}
		log.Warn("clicking OK button failed")
	} else {
		log.Warn("OK button not found")
	}

	log.Debug("pressing Enter instead")
	if err := d.input.KeyTap("enter"); err != nil {
		log.Warn("Enter failed", "error", err)
	}
	sleep(ctx, d.delays.Key)

	if desktop.IsActive(d.windows, win) {
		log.Debug("popup still active after Enter")
		d.close(ctx, win)
	}
}

func (d *Detector) locateOK(win desktop.Window) (coords.Point, bool) {
	r, err := win.Bounds()
	if err != nil {
		return coords.Point{}, false
	}
	img, err := d.screen.Capture(r)
	if err != nil {
		return coords.Point{}, false
	}
	found, ok := d.okButton.Locate(img, d.templateScale)
	if !ok {
		return coords.Point{}, false
	}
	c := found.Min.Add(found.Size().Div(2)).Sub(img.Bounds().Min)
	return coords.Point{X: r.X + c.X, Y: r.Y + c.Y}, true
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// truncate keeps the first n runes of s.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
