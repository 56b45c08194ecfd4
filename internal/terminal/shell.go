package terminal

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Shell names a supported shell under test. The set is closed and mirrors
// the shells a real terminal-application test might launch.
type Shell string

const (
	ShellBash       Shell = "bash"
	ShellZsh        Shell = "zsh"
	ShellFish       Shell = "fish"
	ShellCmd        Shell = "cmd"
	ShellPowerShell Shell = "powershell"
	ShellPwsh       Shell = "pwsh"
)

var windowsOnlyShells = map[Shell]bool{
	ShellCmd:        true,
	ShellPowerShell: true,
	ShellPwsh:       true,
}

// Valid reports whether s is one of the recognized shell names.
func (s Shell) Valid() bool {
	switch s {
	case ShellBash, ShellZsh, ShellFish, ShellCmd, ShellPowerShell, ShellPwsh:
		return true
	}
	return false
}

// NeedsZshSetup reports whether s requires one-time dotfile preparation
// before any test spawns it (§6: "zsh additionally requires one-time
// dotfile setup before any test spawning").
func (s Shell) NeedsZshSetup() bool {
	return s == ShellZsh
}

// Command resolves the executable and arguments used to launch the shell.
// cmd/powershell/pwsh are accepted for configuration compatibility but fail
// fast off Windows rather than silently falling back to another shell.
func (s Shell) Command() (string, []string, error) {
	if !s.Valid() {
		return "", nil, fmt.Errorf("terminal: unsupported shell %q", s)
	}
	if windowsOnlyShells[s] && runtime.GOOS != "windows" {
		return "", nil, fmt.Errorf("terminal: shell %q is not available on %s", s, runtime.GOOS)
	}
	switch s {
	case ShellCmd:
		return "cmd.exe", nil, nil
	case ShellPowerShell:
		return "powershell.exe", []string{"-NoLogo"}, nil
	case ShellPwsh:
		return "pwsh", []string{"-NoLogo"}, nil
	case ShellFish:
		return "fish", nil, nil
	case ShellZsh:
		return "zsh", nil, nil
	default:
		return "bash", nil, nil
	}
}

// PrepareZshDotfiles creates a scratch ZDOTDIR with minimal dotfiles so
// interactive zsh startup (prompt, history) is deterministic across hosts.
// It returns the environment override to merge into every zsh test's
// environment. Call once per run, before any zsh test is dispatched.
func PrepareZshDotfiles() (map[string]string, error) {
	dir, err := os.MkdirTemp("", "tact-zdotdir-")
	if err != nil {
		return nil, fmt.Errorf("preparing zsh dotfiles: %w", err)
	}
	zshrc := filepath.Join(dir, ".zshrc")
	contents := "unsetopt PROMPT_SP\nPS1='%# '\nHISTFILE=\n"
	if err := os.WriteFile(zshrc, []byte(contents), 0o644); err != nil {
		return nil, fmt.Errorf("writing .zshrc: %w", err)
	}
	return map[string]string{"ZDOTDIR": dir}, nil
}
