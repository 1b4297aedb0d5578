// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package guestmigratorlib

import (
	"context"
	"errors"
	"testing"

	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/logger"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/testutils"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewriteBootLoaderConfig(t *testing.T) {
	renames := defaultTestConfig(t).Devices.Renames

	rewritten, changed := RewriteBootLoaderConfig(`GRUB_CMDLINE_LINUX="root=/dev/vda2 ro"`, renames)
	assert.True(t, changed)
	assert.Equal(t, `GRUB_CMDLINE_LINUX="root=/dev/sda2 ro"`, rewritten)

	_, changed = RewriteBootLoaderConfig(rewritten, renames)
	assert.False(t, changed)
}

func TestUpdateBootLoaderConfigsIsolatesFailures(t *testing.T) {
	logMessagesHook := logMessagesHook.AddSubHook()
	defer logMessagesHook.Close()

	toolkit := testutils.NewFakeToolkit()
	toolkit.AddFile("/etc/default/grub", "GRUB_CMDLINE_LINUX=\"root=/dev/vda2 ro\"\n")
	toolkit.AddFile("/boot/grub2/grub.cfg", "linux /vmlinuz root=/dev/vda2 ro\n")
	toolkit.Fail("write /etc/default/grub", errors.New("disk full"))

	updated := UpdateBootLoaderConfigs(context.Background(), toolkit, defaultTestConfig(t), false)

	assert.Equal(t, []string{"/boot/grub2/grub.cfg"}, updated)
	assert.Equal(t, "linux /vmlinuz root=/dev/sda2 ro\n", toolkit.Files["/boot/grub2/grub.cfg"])
	assert.Equal(t, "GRUB_CMDLINE_LINUX=\"root=/dev/vda2 ro\"\n", toolkit.Files["/etc/default/grub"])

	// The missing menu file is not read.
	assert.Empty(t, toolkit.CallsWithPrefix("read /boot/grub/grub.cfg"))

	warnings := logger.FindMessages(logMessagesHook.ConsumeMessages(), logrus.WarnLevel,
		"Could not update boot loader config (/etc/default/grub)")
	assert.Len(t, warnings, 1)
}

func TestUpdateBootLoaderConfigsUnchanged(t *testing.T) {
	toolkit := testutils.NewFakeToolkit()
	toolkit.AddFile("/etc/default/grub", "GRUB_CMDLINE_LINUX=\"root=UUID=abcd ro\"\n")

	updated := UpdateBootLoaderConfigs(context.Background(), toolkit, defaultTestConfig(t), false)
	assert.Empty(t, updated)
	assert.Empty(t, toolkit.CallsWithPrefix("write"))
}

func TestUpdateBootLoaderConfigsDryRun(t *testing.T) {
	toolkit := testutils.NewFakeToolkit()
	toolkit.AddFile("/boot/grub/grub.cfg", "root=/dev/vda1\n")

	updated := UpdateBootLoaderConfigs(context.Background(), toolkit, defaultTestConfig(t), true)
	assert.Equal(t, []string{"/boot/grub/grub.cfg"}, updated)
	assert.Empty(t, toolkit.CallsWithPrefix("write"))
	assert.Equal(t, "root=/dev/vda1\n", toolkit.Files["/boot/grub/grub.cfg"])
}

func TestUpdateBootLoaderConfigsExistsFailureIsReported(t *testing.T) {
	logMessagesHook := logMessagesHook.AddSubHook()
	defer logMessagesHook.Close()

	toolkit := testutils.NewFakeToolkit()
	toolkit.AddFile("/etc/default/grub", "GRUB_CMDLINE_LINUX=\"root=/dev/vda2 ro\"\n")
	toolkit.AddFile("/boot/grub2/grub.cfg", "linux /vmlinuz root=/dev/vda2 ro\n")
	toolkit.Fail("exists /etc/default/grub", errors.New("appliance died"))

	updated := UpdateBootLoaderConfigs(context.Background(), toolkit, defaultTestConfig(t), false)
	assert.Equal(t, []string{"/boot/grub2/grub.cfg"}, updated)
	assert.Equal(t, "GRUB_CMDLINE_LINUX=\"root=/dev/vda2 ro\"\n", toolkit.Files["/etc/default/grub"])

	warnings := logger.FindMessages(logMessagesHook.ConsumeMessages(), logrus.WarnLevel,
		"Could not update boot loader config (/etc/default/grub)")
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "appliance died")
}
