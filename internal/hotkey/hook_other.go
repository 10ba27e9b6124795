//go:build !windows

package hotkey

// Hook is the installed low-level keyboard hook.
type Hook struct{}

// Install always fails outside Windows.
func Install(Handler) (*Hook, error) {
	return nil, &HookInstallError{Err: ErrUnsupported}
}

// Uninstall is a no-op.
func (h *Hook) Uninstall() error { return nil }

// OSModifiers reports no modifiers.
func OSModifiers() Modifiers { return Modifiers{} }
