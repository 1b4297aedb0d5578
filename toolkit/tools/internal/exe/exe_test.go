// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package exe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/alecthomas/kingpin.v2"
)

func TestSetupLogFlags(t *testing.T) {
	app := kingpin.New("test", "")
	logFlags := SetupLogFlags(app)

	_, err := app.Parse([]string{"--log-level=debug", "--log-color=never", "--log-file=/tmp/out.log"})
	require.NoError(t, err)

	assert.Equal(t, "debug", *logFlags.LogLevel)
	assert.Equal(t, "never", *logFlags.LogColor)
	assert.Equal(t, "/tmp/out.log", *logFlags.LogFile)
}

func TestSetupLogFlagsRejectsUnknownLevel(t *testing.T) {
	app := kingpin.New("test", "")
	SetupLogFlags(app)

	_, err := app.Parse([]string{"--log-level=verbose"})
	assert.Error(t, err)
}
