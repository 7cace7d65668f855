// Package output hands a selected issue URL to the user: printed, copied
// to the clipboard or opened in a browser.
package output

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/bugview/bugview/internal/config"
)

// ============================================================================
// Clipboard Interface
// ============================================================================

// Clipboard defines the interface for clipboard operations
type Clipboard interface {
	Copy(text string) error
}

// systemClipboard implements Clipboard using system commands
type systemClipboard struct {
	fallback io.Writer
}

// Copy copies text to the system clipboard
func (c *systemClipboard) Copy(text string) error {
	cmd := findClipboardCommand()
	if cmd == nil {
		// No clipboard tool found, just print
		_, err := fmt.Fprintln(c.fallback, text)
		return err
	}
	cmd.Stdin = strings.NewReader(text)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("clipboard %s: %w", cmd.Path, err)
	}
	return nil
}

// findClipboardCommand returns the appropriate clipboard command for the system
func findClipboardCommand() *exec.Cmd {
	switch {
	case commandExists("wl-copy"):
		return exec.Command("wl-copy")
	case commandExists("xclip"):
		return exec.Command("xclip", "-selection", "clipboard")
	case commandExists("xsel"):
		return exec.Command("xsel", "--clipboard", "--input")
	case commandExists("pbcopy"):
		return exec.Command("pbcopy")
	default:
		return nil
	}
}

// commandExists checks if a command is available in PATH
func commandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// ============================================================================
// Browser Interface
// ============================================================================

// Browser opens URLs
type Browser interface {
	Open(url string) error
}

type systemBrowser struct{}

// Open starts the platform URL handler without waiting for it
func (systemBrowser) Open(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("opening %s: %w", url, err)
	}
	return cmd.Process.Release()
}

// ============================================================================
// Output Handling
// ============================================================================

// Mode represents how a selected URL should be handled
type Mode string

const (
	ModePrint Mode = "print"
	ModeCopy  Mode = "copy"
	ModeOpen  Mode = "open"
)

// ParseMode validates a mode name
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModePrint, ModeCopy, ModeOpen:
		return m, nil
	case "":
		return ModePrint, nil
	default:
		return "", fmt.Errorf("unknown output mode %q (supported: print, copy, open)", s)
	}
}

// Output delivers text according to a mode
type Output struct {
	w         io.Writer
	clipboard Clipboard
	browser   Browser
}

// New creates an output writing printed text to stdout
func New() *Output {
	return &Output{
		w:         os.Stdout,
		clipboard: &systemClipboard{fallback: os.Stdout},
		browser:   systemBrowser{},
	}
}

// WithWriter sets where printed text goes (useful for testing)
func (o *Output) WithWriter(w io.Writer) *Output {
	o.w = w
	if sc, ok := o.clipboard.(*systemClipboard); ok {
		sc.fallback = w
	}
	return o
}

// WithClipboard sets a custom clipboard implementation (useful for testing)
func (o *Output) WithClipboard(c Clipboard) *Output {
	o.clipboard = c
	return o
}

// WithBrowser sets a custom browser implementation (useful for testing)
func (o *Output) WithBrowser(b Browser) *Output {
	o.browser = b
	return o
}

// Emit handles text based on the configured mode
func (o *Output) Emit(text string) error {
	mode, err := ParseMode(config.GetOutput())
	if err != nil {
		return err
	}
	return o.EmitWithMode(text, mode)
}

// EmitWithMode handles text with an explicit mode
func (o *Output) EmitWithMode(text string, mode Mode) error {
	switch mode {
	case ModeOpen:
		return o.browser.Open(text)
	case ModeCopy:
		return o.clipboard.Copy(text)
	default: // print
		_, err := fmt.Fprintln(o.w, text)
		return err
	}
}
