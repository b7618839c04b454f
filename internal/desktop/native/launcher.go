package native

import (
	"os/exec"
	"runtime"

	"github.com/cheminotify/agent/internal/desktop"
	apperrors "github.com/cheminotify/agent/internal/errors"
)

// Shell opens files through the platform's file association, which for a
// .jnlp file starts Java Web Start.
type Shell struct{}

func (Shell) Open(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", path)
	case "darwin":
		cmd = exec.Command("open", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}
	if err := cmd.Start(); err != nil {
		return apperrors.Wrapf(err, apperrors.LaunchFailed, "open %s", path)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// New returns the native desktop for the current platform.
func New() *desktop.Desktop {
	r := Robot{}
	return &desktop.Desktop{
		Windows:  NewWindows(),
		Input:    r,
		Screen:   r,
		Launcher: Shell{},
	}
}
