package inputrouter

import (
	"bytes"
	"testing"
)

func TestNormalizeAliasAndOrder(t *testing.T) {
	cases := map[string]string{
		"Esc":            "escape",
		"Return":         "enter",
		"shift+ctrl+tab": "ctrl+shift+tab",
		"alt+Ctrl+Q":     "ctrl+alt+q",
		"PgUp":           "pageup",
		"A":              "a",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRouteNavigationActionDoesNotProducePtyBytes(t *testing.T) {
	r := New(DefaultBindings())
	action, b, isNav := r.Route("ctrl+q")
	if !isNav {
		t.Fatal("expected ctrl+q to be a navigation action")
	}
	if action != ActionQuit {
		t.Errorf("action = %q, want %q", action, ActionQuit)
	}
	if b != nil {
		t.Errorf("navigation action should not produce PTY bytes, got %v", b)
	}
	if !IsNavigationAction(action) {
		t.Error("ActionQuit should be in the navigation-action set")
	}
}

func TestRouteUnboundKeyProducesExactlyOnePtyWrite(t *testing.T) {
	r := New(DefaultBindings())
	action, b, isNav := r.Route("a")
	if isNav {
		t.Fatal("plain 'a' should not be a navigation action")
	}
	if action != "" {
		t.Errorf("expected empty action, got %q", action)
	}
	if !bytes.Equal(b, []byte("a")) {
		t.Errorf("bytes = %v, want %v", b, []byte("a"))
	}
}

func TestEncodeKeyTable(t *testing.T) {
	cases := []struct {
		in   string
		want []byte
	}{
		{"enter", []byte{'\r'}},
		{"tab", []byte{'\t'}},
		{"escape", []byte{0x1b}},
		{"backspace", []byte{0x7f}},
		{"ctrl+c", []byte{3}},
		{"ctrl+a", []byte{1}},
		{"up", []byte("\x1b[A")},
		{"down", []byte("\x1b[B")},
		{"home", []byte("\x1b[H")},
		{"end", []byte("\x1b[F")},
		{"pageup", []byte("\x1b[5~")},
		{"pagedown", []byte("\x1b[6~")},
		{"delete", []byte("\x1b[3~")},
		{"f1", []byte("\x1bOP")},
		{"f4", []byte("\x1bOS")},
		{"f5", []byte("\x1b[15~")},
		{"f12", []byte("\x1b[24~")},
		{"shift+up", []byte("\x1b[1;2A")},
		{"alt+x", []byte("\x1bx")},
	}
	for _, c := range cases {
		got := EncodeKey(c.in)
		if !bytes.Equal(got, c.want) {
			t.Errorf("EncodeKey(%q) = %v (%q), want %v (%q)", c.in, got, got, c.want, c.want)
		}
	}
}

func TestWrapBracketedPaste(t *testing.T) {
	got := WrapBracketedPaste("hi")
	want := []byte("\x1b[200~hi\x1b[201~")
	if !bytes.Equal(got, want) {
		t.Errorf("WrapBracketedPaste = %q, want %q", got, want)
	}
}
