// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSetStderrLogLevelInvalid(t *testing.T) {
	InitStderrLog()

	err := SetStderrLogLevel("loud")
	assert.ErrorContains(t, err, "invalid log level (loud)")
	assert.Equal(t, logrus.InfoLevel, StderrLogLevel())
}

func TestSetStderrLogLevelDebug(t *testing.T) {
	InitStderrLog()

	err := SetStderrLogLevel("debug")
	assert.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, StderrLogLevel())
}

func TestInitLogFileWritesMessages(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "migrate.log")

	err := InitLogFile(logFile, "warn", ColorNever)
	assert.NoError(t, err)

	Log.Debugf("debug line")
	Log.WithField("path", "/etc/fstab").Warnf("warn line")

	content, err := os.ReadFile(logFile)
	assert.NoError(t, err)
	assert.Contains(t, string(content), "debug line")
	assert.Contains(t, string(content), "warn line path=/etc/fstab")
}

func TestMemoryLogHookCapturesFields(t *testing.T) {
	InitStderrLog()

	hook := NewMemoryLogHook()
	Log.AddHook(hook)

	subHook := hook.AddSubHook()
	defer subHook.Close()

	Log.WithField("mountpoint", "/backup").Warnf("skipping mount")
	Log.Infof("unrelated")

	messages := subHook.ConsumeMessages()
	warnings := FindMessages(messages, logrus.WarnLevel, "skipping")
	if assert.Len(t, warnings, 1) {
		assert.Equal(t, "/backup", warnings[0].Fields["mountpoint"])
	}

	assert.Empty(t, subHook.ConsumeMessages())
}

func TestLevelsAndColors(t *testing.T) {
	assert.Equal(t, []string{"panic", "fatal", "error", "warn", "info", "debug", "trace"}, Levels())
	assert.Equal(t, []string{"always", "auto", "never"}, Colors())
}
