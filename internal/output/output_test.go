package output

import (
	"bytes"
	"errors"
	"testing"

	"github.com/spf13/viper"

	"github.com/bugview/bugview/internal/config"
)

type fakeClipboard struct {
	copied []string
}

func (c *fakeClipboard) Copy(text string) error {
	c.copied = append(c.copied, text)
	return nil
}

type fakeBrowser struct {
	opened []string
	err    error
}

func (b *fakeBrowser) Open(url string) error {
	b.opened = append(b.opened, url)
	return b.err
}

func TestEmitWithMode(t *testing.T) {
	const url = "https://smartos.org/bugview/OS-1"

	tests := []struct {
		name       string
		mode       Mode
		wantPrint  string
		wantCopied int
		wantOpened int
	}{
		{"print", ModePrint, url + "\n", 0, 0},
		{"copy", ModeCopy, "", 1, 0},
		{"open", ModeOpen, "", 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			cb := &fakeClipboard{}
			br := &fakeBrowser{}
			o := New().WithWriter(&buf).WithClipboard(cb).WithBrowser(br)

			if err := o.EmitWithMode(url, tt.mode); err != nil {
				t.Fatalf("EmitWithMode() error: %v", err)
			}
			if buf.String() != tt.wantPrint {
				t.Errorf("expected printed %q, got %q", tt.wantPrint, buf.String())
			}
			if len(cb.copied) != tt.wantCopied {
				t.Errorf("expected %d copies, got %d", tt.wantCopied, len(cb.copied))
			}
			if len(br.opened) != tt.wantOpened {
				t.Errorf("expected %d opens, got %d", tt.wantOpened, len(br.opened))
			}
		})
	}
}

func TestEmitBrowserError(t *testing.T) {
	want := errors.New("no display")
	o := New().WithBrowser(&fakeBrowser{err: want})
	if err := o.EmitWithMode("x", ModeOpen); !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
}

func TestEmitUsesConfiguredMode(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cb := &fakeClipboard{}
	o := New().WithWriter(&bytes.Buffer{}).WithClipboard(cb)

	config.SetOutput("copy")
	if err := o.Emit("OS-1"); err != nil {
		t.Fatalf("Emit() error: %v", err)
	}
	if len(cb.copied) != 1 || cb.copied[0] != "OS-1" {
		t.Errorf("expected OS-1 copied, got %v", cb.copied)
	}

	config.SetOutput("fax")
	if err := o.Emit("OS-1"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModePrint, false},
		{"print", ModePrint, false},
		{"copy", ModeCopy, false},
		{"open", ModeOpen, false},
		{"exec", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
