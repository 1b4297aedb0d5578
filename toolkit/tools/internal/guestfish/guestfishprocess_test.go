// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package guestfish

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Stands in for guestfish: '--listen' forks a server that, like the real one, drops stdout
// but keeps stderr, and remote commands are accepted without a real appliance.
const fakeGuestfishScript = `#!/bin/sh
case "$1" in
--listen)
	sh -c 'exec >/dev/null; echo "server started" >&2; exec sleep 30' &
	echo "GUESTFISH_PID=$!; export GUESTFISH_PID"
	;;
--remote=*)
	pid="${1#--remote=}"
	if [ "$3" = "exit" ]; then
		if [ -n "$FAKE_GUESTFISH_EXIT_FAILS" ]; then
			echo "guestfish: remote: exit failed" >&2
			exit 1
		fi
		kill "$pid"
	fi
	;;
esac
`

func installFakeGuestfish(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("requires /bin/sh")
	}

	binDir := t.TempDir()
	err := os.WriteFile(filepath.Join(binDir, guestfishBinary), []byte(fakeGuestfishScript), 0o755)
	require.NoError(t, err)

	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func launchWithTimeout(t *testing.T, options Options) *Guestfish {
	type launchResult struct {
		g   *Guestfish
		err error
	}

	done := make(chan launchResult, 1)
	go func() {
		g, err := Launch(options)
		done <- launchResult{g, err}
	}()

	select {
	case result := <-done:
		require.NoError(t, result.err)
		return result.g

	case <-time.After(10 * time.Second):
		t.Fatal("Launch did not return while the guestfish server was running")
		return nil
	}
}

// processExited reports whether pid is gone or is a zombie waiting to be reaped.
func processExited(pid int) bool {
	stat, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return true
	}

	_, fields, found := strings.Cut(string(stat), ") ")
	return !found || strings.HasPrefix(fields, "Z")
}

func TestLaunchReturnsWhileServerRuns(t *testing.T) {
	installFakeGuestfish(t)

	g := launchWithTimeout(t, Options{ImageFile: "vm.qcow2"})
	assert.False(t, processExited(g.pid))

	logPath := filepath.Join(g.tempDir, serverLogFile)
	assert.Eventually(t, func() bool {
		content, err := os.ReadFile(logPath)
		return err == nil && strings.Contains(string(content), "server started")
	}, 5*time.Second, 50*time.Millisecond)

	assert.NoError(t, g.Close())
	assert.Eventually(t, func() bool { return processExited(g.pid) }, 5*time.Second, 50*time.Millisecond)
}

func TestCloseKillsHungServer(t *testing.T) {
	installFakeGuestfish(t)
	t.Setenv("FAKE_GUESTFISH_EXIT_FAILS", "1")

	g := launchWithTimeout(t, Options{ImageFile: "vm.qcow2"})
	require.False(t, processExited(g.pid))

	assert.NoError(t, g.Close())
	assert.Eventually(t, func() bool { return processExited(g.pid) }, 5*time.Second, 50*time.Millisecond)

	_, err := os.Stat(g.tempDir)
	assert.True(t, os.IsNotExist(err))
}
