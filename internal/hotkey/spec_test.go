package hotkey

import (
	"testing"

	"github.com/Car-Role/Whisper-dictation/internal/config"
)

func TestFromConfigNormalisesKey(t *testing.T) {
	spec, err := FromConfig(config.HotkeyConfig{Ctrl: true, Key: " q "})
	if err != nil {
		t.Fatalf("FromConfig returned error: %v", err)
	}
	if spec.Key != 'Q' || spec.VK != 'Q' {
		t.Fatalf("unexpected spec %+v", spec)
	}
	if got := spec.String(); got != "Ctrl+Q" {
		t.Fatalf("String() = %q", got)
	}
}

func TestFromConfigRejectsInvalidKeys(t *testing.T) {
	for _, key := range []string{"", "ab", "F1", "-", "é"} {
		if _, err := FromConfig(config.HotkeyConfig{Key: key}); err == nil {
			t.Fatalf("FromConfig(%q): expected error", key)
		}
	}
}

func TestParse(t *testing.T) {
	spec, err := Parse("ctrl+shift+d")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if spec.String() != "Ctrl+Shift+D" {
		t.Fatalf("String() = %q", spec.String())
	}
	if !spec.Matches('D', Modifiers{Ctrl: true, Shift: true}) {
		t.Fatalf("expected match with both modifiers")
	}
	if spec.Matches('D', Modifiers{Ctrl: true}) {
		t.Fatalf("expected no match without shift")
	}
}

func TestIsComponent(t *testing.T) {
	spec, _ := Parse("shift+7")
	if !spec.IsComponent('7') || !spec.IsComponent(VKRShift) {
		t.Fatalf("primary key and shift must be components")
	}
	if spec.IsComponent(VKLControl) {
		t.Fatalf("ctrl is not required, must not be a component")
	}
}
