// Package daemon exposes the indexing coordinator to the desktop shell.
// The daemon listens on a Unix socket and serves JSON-RPC requests, so
// the shell talks to one long-lived process instead of spawning the
// indexing pipeline per operation.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds configuration for the daemon service.
type Config struct {
	// SocketPath is the Unix domain socket the shell connects to.
	// Default: ~/.inkdex/inkdex.sock
	SocketPath string

	// PIDPath is the file path for storing the daemon's process ID.
	// Default: ~/.inkdex/inkdex.pid
	PIDPath string

	// Timeout is the maximum duration for shell-daemon communication
	// on a single request.
	// Default: 30s
	Timeout time.Duration

	// ShutdownGracePeriod is the time to wait for in-flight requests
	// during graceful shutdown.
	// Default: 10s
	ShutdownGracePeriod time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}

	inkdexDir := filepath.Join(home, ".inkdex")

	return Config{
		SocketPath:          filepath.Join(inkdexDir, "inkdex.sock"),
		PIDPath:             filepath.Join(inkdexDir, "inkdex.pid"),
		Timeout:             30 * time.Second,
		ShutdownGracePeriod: 10 * time.Second,
	}
}

// Validate checks that the configuration is valid.
func (c Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("socket path cannot be empty")
	}
	if c.PIDPath == "" {
		return fmt.Errorf("PID path cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.ShutdownGracePeriod <= 0 {
		return fmt.Errorf("shutdown grace period must be positive")
	}
	return nil
}

// EnsureDir creates the directory for socket and PID files if it doesn't exist.
func (c Config) EnsureDir() error {
	socketDir := filepath.Dir(c.SocketPath)
	if err := os.MkdirAll(socketDir, 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	pidDir := filepath.Dir(c.PIDPath)
	if pidDir != socketDir {
		if err := os.MkdirAll(pidDir, 0755); err != nil {
			return fmt.Errorf("failed to create PID directory: %w", err)
		}
	}

	return nil
}
