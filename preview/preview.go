// Package preview shows rendered images inline in the terminal and opens
// files and URLs with the desktop handler.
package preview

import (
	"bytes"
	"errors"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	termimg "github.com/blacktop/go-termimg"
)

// Capability is the inline image protocol the terminal speaks.
type Capability int

const (
	CapNone Capability = iota
	CapSixel
	CapKitty
	CapITerm2
)

func (c Capability) String() string {
	switch c {
	case CapKitty:
		return "Kitty"
	case CapSixel:
		return "Sixel"
	case CapITerm2:
		return "iTerm2"
	}
	return "none"
}

// ErrUnsupported is returned by Inline when the terminal cannot show images.
var ErrUnsupported = errors.New("terminal does not support inline images")

// DetectCapability inspects the process environment.
func DetectCapability() Capability {
	return Detect(os.Getenv)
}

// Detect guesses the protocol from terminal environment variables.
func Detect(getenv func(string) string) Capability {
	if getenv("KITTY_WINDOW_ID") != "" {
		return CapKitty
	}
	if strings.Contains(getenv("TERM_PROGRAM"), "iTerm") {
		return CapITerm2
	}
	term := getenv("TERM")
	for _, name := range []string{"sixel", "mlterm", "yaft", "foot"} {
		if strings.Contains(term, name) {
			return CapSixel
		}
	}
	if getenv("SIXEL_SUPPORT") == "1" || getenv("WEZTERM_PANE") != "" || getenv("KONSOLE_VERSION") != "" {
		return CapSixel
	}
	return CapNone
}

// stdoutMu serializes the stdout swap in Inline.
var stdoutMu sync.Mutex

// Inline returns the escape sequence that draws the PNG at path within
// cols x rows cells. Zero bounds keep the image's own size.
func Inline(path string, cols, rows int) (string, error) {
	capability := DetectCapability()
	if capability == CapNone {
		return "", ErrUnsupported
	}

	img, err := termimg.Open(path)
	if err != nil {
		return "", err
	}
	if cols > 0 {
		img = img.Width(cols)
	}
	if rows > 0 {
		img = img.Height(rows)
	}

	stdoutMu.Lock()
	defer stdoutMu.Unlock()

	r, w, err := os.Pipe()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	copied := make(chan struct{})
	go func() {
		_, _ = io.Copy(&buf, r)
		close(copied)
	}()

	oldStdout := os.Stdout
	os.Stdout = w
	switch capability {
	case CapKitty:
		img.Protocol(termimg.Kitty).Print()
	case CapSixel:
		img.Protocol(termimg.Sixel).Print()
	case CapITerm2:
		img.Protocol(termimg.ITerm2).Print()
	}
	os.Stdout = oldStdout
	w.Close()
	<-copied
	r.Close()

	return buf.String(), nil
}

// Open hands a file path or URL to the platform's default handler.
func Open(target string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", target)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", target)
	default:
		cmd = exec.Command("xdg-open", target)
	}
	return cmd.Start()
}
