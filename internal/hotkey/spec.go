// Package hotkey turns raw keyboard events into push-to-talk start/stop
// signals.
package hotkey

import (
	"fmt"
	"strings"

	"github.com/Car-Role/Whisper-dictation/internal/config"
)

// Virtual-key codes the interceptor cares about.
const (
	VKShift    uint32 = 0x10
	VKControl  uint32 = 0x11
	VKLShift   uint32 = 0xA0
	VKRShift   uint32 = 0xA1
	VKLControl uint32 = 0xA2
	VKRControl uint32 = 0xA3
)

// Spec is the resolved push-to-talk combination.
type Spec struct {
	Ctrl  bool
	Shift bool
	Key   byte
	VK    uint32
}

// FromConfig validates hk and resolves its virtual-key code. Letters and
// digits map to their upper-case ASCII value.
func FromConfig(hk config.HotkeyConfig) (Spec, error) {
	key := strings.ToUpper(strings.TrimSpace(hk.Key))
	if len(key) != 1 {
		return Spec{}, fmt.Errorf("hotkey key %q must be a single character", hk.Key)
	}
	c := key[0]
	if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
		return Spec{}, fmt.Errorf("hotkey key %q must be a letter or digit", hk.Key)
	}
	return Spec{Ctrl: hk.Ctrl, Shift: hk.Shift, Key: c, VK: uint32(c)}, nil
}

// Parse resolves a "ctrl+shift+d" style string.
func Parse(s string) (Spec, error) {
	hk, err := config.ParseHotkey(s)
	if err != nil {
		return Spec{}, err
	}
	return FromConfig(hk)
}

func (s Spec) String() string {
	var parts []string
	if s.Ctrl {
		parts = append(parts, "Ctrl")
	}
	if s.Shift {
		parts = append(parts, "Shift")
	}
	parts = append(parts, string(s.Key))
	return strings.Join(parts, "+")
}

// Matches reports whether vk pressed under mods is this combination.
func (s Spec) Matches(vk uint32, mods Modifiers) bool {
	return (!s.Ctrl || mods.Ctrl) && (!s.Shift || mods.Shift) && vk == s.VK
}

// IsComponent reports whether vk is the primary key or one of the required
// modifiers (either side).
func (s Spec) IsComponent(vk uint32) bool {
	if vk == s.VK {
		return true
	}
	if s.Ctrl && isControl(vk) {
		return true
	}
	return s.Shift && isShift(vk)
}

func isControl(vk uint32) bool {
	return vk == VKControl || vk == VKLControl || vk == VKRControl
}

func isShift(vk uint32) bool {
	return vk == VKShift || vk == VKLShift || vk == VKRShift
}
