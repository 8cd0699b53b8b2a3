package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStop_NotRunning(t *testing.T) {
	// Given: no daemon
	noDaemon(t)

	// When: attempting to stop
	out, err := execCLI(t, "stop")

	// Then: succeeds and reports not running
	require.NoError(t, err)
	assert.Contains(t, out, "not running")
}

func TestServeCmd_HasForegroundFlag(t *testing.T) {
	cmd := NewRootCmd()

	serveCmd, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)

	flag := serveCmd.Flags().Lookup("foreground")
	assert.NotNil(t, flag, "should have --foreground flag")
	assert.Equal(t, "f", flag.Shorthand)
	assert.Equal(t, "false", flag.DefValue)

	assert.NotNil(t, serveCmd.Flags().Lookup("workspace"), "should have --workspace flag")
}

func TestRunServe_AlreadyRunning(t *testing.T) {
	// Given: a live daemon on the configured socket
	startTestDaemon(t, &stubEngine{})

	// When: starting again
	out, err := execCLI(t, "serve")

	// Then: no second daemon is spawned
	require.NoError(t, err)
	assert.Contains(t, out, "already running")
}
