package loginflow

import (
	"fmt"
	"os/exec"
	"runtime"
)

// Surface is the external interactive login surface: a separate browsing
// context the user completes authentication in. The only return channel is
// the shared completion flag in local storage, so completion is observed by
// polling; a richer cross-context message channel should replace polling
// where the host platform offers one.
type Surface interface {
	// Open opens the surface at the given URL. An error means the host
	// refused to open it (popup blocked, no browser).
	Open(url string) error
	// Closed reports whether the surface has been dismissed without a
	// completion signal. Hosts that cannot observe this return false.
	Closed() bool
}

// BrowserSurface opens the system browser. It cannot observe the window
// closing, so cancellation is only detected via context or completion
// signals.
type BrowserSurface struct{}

// Open launches the default browser at url.
func (BrowserSurface) Open(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

// Closed always reports false; an external browser gives no close signal.
func (BrowserSurface) Closed() bool { return false }
