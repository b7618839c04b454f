// Package screen persists diagnostic screenshots. Consecutive near-identical
// captures under the same name are deduplicated with a perceptual hash so a
// stuck UI does not fill the disk.
package screen

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/corona10/goimagehash"
	"github.com/vcaesar/imgo"

	"github.com/cheminotify/agent/internal/coords"
	"github.com/cheminotify/agent/internal/desktop"
	apperrors "github.com/cheminotify/agent/internal/errors"
)

const (
	// MaxHashDistance is the pHash Hamming distance at or below which two
	// captures count as the same picture.
	MaxHashDistance = 4

	// DefaultKeep is how many files Prune leaves in a directory.
	DefaultKeep = 200

	timeLayout = "20060102-150405"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// Store writes PNG screenshots into one directory.
type Store struct {
	screen  desktop.Screen
	dir     string
	enabled bool
	now     func() time.Time
	log     *slog.Logger

	mu   sync.Mutex
	last map[string]saved
}

type saved struct {
	hash *goimagehash.ImageHash
	path string
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Disabled turns every save into a no-op returning "".
func Disabled() Option {
	return func(s *Store) { s.enabled = false }
}

// NewStore creates a store rooted at dir. The directory is created on first save.
func NewStore(screen desktop.Screen, dir string, opts ...Option) *Store {
	s := &Store{
		screen:  screen,
		dir:     dir,
		enabled: true,
		now:     time.Now,
		log:     slog.Default().With("component", "screen", "dir", dir),
		last:    make(map[string]saved),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Dir returns the directory screenshots are written to.
func (s *Store) Dir() string { return s.dir }

// Enabled reports whether saves write files.
func (s *Store) Enabled() bool { return s.enabled }

// SaveWindow captures the outer frame of win.
func (s *Store) SaveWindow(ctx context.Context, name string, win desktop.Window) (string, error) {
	if !s.enabled {
		return "", nil
	}
	if win == nil {
		return "", apperrors.New(apperrors.InvalidArgument, "no window to capture")
	}
	r, err := win.Bounds()
	if err != nil {
		return "", apperrors.Wrapf(err, apperrors.CaptureFailed, "bounds of %q", win.Title())
	}
	return s.SaveRegion(ctx, name, r)
}

// SaveActive captures the foreground window.
func (s *Store) SaveActive(ctx context.Context, name string, ws desktop.Windows) (string, error) {
	if !s.enabled {
		return "", nil
	}
	win, err := ws.Active()
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CaptureFailed, "no active window")
	}
	return s.SaveWindow(ctx, name, win)
}

// SaveRegion captures an absolute screen rectangle.
func (s *Store) SaveRegion(ctx context.Context, name string, r coords.Rect) (string, error) {
	if !s.enabled {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	img, err := s.screen.Capture(r)
	if err != nil {
		return "", apperrors.Wrapf(err, apperrors.CaptureFailed, "capture %s", name)
	}
	return s.SaveImage(name, img)
}

// SaveImage writes img as <timestamp>_<name>.png. When img is perceptually
// identical to the previous image saved under name, the earlier path is
// returned and nothing is written.
func (s *Store) SaveImage(name string, img image.Image) (string, error) {
	if !s.enabled {
		return "", nil
	}
	name = sanitize(name)

	hash, herr := goimagehash.PerceptionHash(img)

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.last[name]; ok && herr == nil && prev.hash != nil {
		if dist, err := prev.hash.Distance(hash); err == nil && dist <= MaxHashDistance {
			if _, err := os.Stat(prev.path); err == nil {
				s.log.Debug("skipping duplicate screenshot", "name", name, "distance", dist)
				return prev.path, nil
			}
		}
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", apperrors.Wrap(err, apperrors.CaptureFailed, "create screenshot dir")
	}
	path := filepath.Join(s.dir, fmt.Sprintf("%s_%s.png", s.now().Format(timeLayout), name))
	if err := imgo.Save(path, img); err != nil {
		return "", apperrors.Wrapf(err, apperrors.CaptureFailed, "write %s", path)
	}

	entry := saved{path: path}
	if herr == nil {
		entry.hash = hash
	}
	s.last[name] = entry
	s.log.Debug("screenshot saved", "path", path)
	return path, nil
}

// Prune deletes the oldest PNG files so at most keep remain.
func (s *Store) Prune(keep int) (int, error) {
	if keep <= 0 {
		keep = DefaultKeep
	}
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".png") {
			files = append(files, e.Name())
		}
	}
	if len(files) <= keep {
		return 0, nil
	}
	// timestamp prefix sorts chronologically
	sort.Strings(files)

	removed := 0
	for _, f := range files[:len(files)-keep] {
		if err := os.Remove(filepath.Join(s.dir, f)); err != nil {
			s.log.Warn("failed to prune screenshot", "file", f, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

func sanitize(name string) string {
	name = unsafeChars.ReplaceAllString(strings.TrimSpace(name), "_")
	if name == "" {
		return "screenshot"
	}
	return name
}
