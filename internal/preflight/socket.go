package preflight

import (
	"net"
	"os"
	"time"
)

const socketDialTimeout = 2 * time.Second

// CheckDaemonSocket reports whether the daemon socket is live. A socket
// file with nothing listening behind it usually means a crashed daemon.
func (c *Checker) CheckDaemonSocket() CheckResult {
	result := CheckResult{
		Name:     "daemon_socket",
		Required: false,
	}

	if c.daemonSocket == "" {
		result.Status = StatusWarn
		result.Message = "no daemon socket configured"
		return result
	}

	if _, err := os.Stat(c.daemonSocket); os.IsNotExist(err) {
		result.Status = StatusWarn
		result.Message = "daemon is not running"
		result.Details = "Run 'inkdex serve' to start it"
		return result
	}

	conn, err := net.DialTimeout("unix", c.daemonSocket, socketDialTimeout)
	if err != nil {
		result.Status = StatusWarn
		result.Message = "socket file exists but nothing is listening"
		result.Details = "A previous daemon may have crashed; remove " + c.daemonSocket + " and run 'inkdex serve'"
		return result
	}
	_ = conn.Close()

	result.Status = StatusPass
	result.Message = "daemon is running"
	return result
}

// CheckEngineSocket reports whether the indexing engine is reachable.
// The Inkdown app starts the engine on demand, so an absent engine is a
// warning rather than a failure.
func (c *Checker) CheckEngineSocket() CheckResult {
	result := CheckResult{
		Name:     "engine_socket",
		Required: false,
	}

	if c.engineSocket == "" {
		result.Status = StatusWarn
		result.Message = "no engine socket configured"
		return result
	}

	conn, err := net.DialTimeout("unix", c.engineSocket, socketDialTimeout)
	if err != nil {
		result.Status = StatusWarn
		result.Message = "engine is not reachable"
		result.Details = "Normal when the Inkdown app is closed; indexing requests will fail until it starts the engine"
		return result
	}
	_ = conn.Close()

	result.Status = StatusPass
	result.Message = "engine is reachable"
	return result
}
