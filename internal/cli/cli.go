// Package cli provides Cargo/rustc-style output formatting for the shoal
// command line: colored diagnostics, status badges, and plain-text
// fallbacks for pipes and CI.
package cli

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// OutputMode determines how output is formatted.
type OutputMode int

const (
	// ModeTTY enables rich colored output for interactive terminals.
	ModeTTY OutputMode = iota
	// ModePlain outputs plain text without colors (for pipes/CI).
	ModePlain
)

// Config holds CLI output configuration. It is auto-detected; users do
// not configure it directly.
type Config struct {
	Mode   OutputMode
	Writer io.Writer
}

// DefaultConfig returns the auto-detected configuration:
//   - stdout is a TTY and NO_COLOR unset -> ModeTTY
//   - otherwise -> ModePlain
func DefaultConfig() *Config {
	mode := ModePlain
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		mode = ModeTTY
	}
	// https://no-color.org/
	if os.Getenv("NO_COLOR") != "" {
		mode = ModePlain
	}
	if os.Getenv("TERM") == "dumb" {
		mode = ModePlain
	}
	return &Config{Mode: mode, Writer: os.Stdout}
}

// IsTTY reports whether rich output is active.
func (c *Config) IsTTY() bool {
	return c.Mode == ModeTTY
}

var defaultCfg *Config

// Default returns the global configuration, detecting it on first use.
func Default() *Config {
	if defaultCfg == nil {
		defaultCfg = DefaultConfig()
	}
	return defaultCfg
}

// SetDefault replaces the global configuration. Used by tests and the
// --plain flag.
func SetDefault(cfg *Config) {
	defaultCfg = cfg
}

// EnableColors reports whether styled output should be used.
func EnableColors() bool {
	return Default().IsTTY()
}
