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

func TestPlanMountsParentsFirst(t *testing.T) {
	plan := PlanMounts(map[string]string{
		"/boot/efi": "/dev/sda2",
		"/var/log":  "/dev/sda5",
		"/":         "/dev/sda3",
		"/var":      "/dev/sda4",
		"/boot":     "/dev/sda1",
	})

	mountPoints := []string(nil)
	for _, entry := range plan {
		mountPoints = append(mountPoints, entry.MountPoint)
	}
	assert.Equal(t, []string{"/", "/boot", "/boot/efi", "/var", "/var/log"}, mountPoints)
}

func TestMountGuestFilesystemsSkipsUnavailableSecondary(t *testing.T) {
	logMessagesHook := logMessagesHook.AddSubHook()
	defer logMessagesHook.Close()

	toolkit := newSingleDiskGuest()
	availability, err := ResolveAvailability(toolkit)
	require.NoError(t, err)

	result, err := MountGuestFilesystems(context.Background(), toolkit, availability, defaultSecondaryStorage)
	require.NoError(t, err)

	assert.Equal(t, []string{"/", "/boot", "/boot/efi"}, result.MountPoints)
	assert.True(t, result.Contains("/boot/efi"))
	assert.False(t, result.Contains("/backup"))
	assert.Equal(t, []string{
		"mount /dev/sda3 /",
		"mount /dev/sda1 /boot",
		"mount /dev/sda2 /boot/efi",
	}, toolkit.CallsWithPrefix("mount"))

	warnings := logger.FindMessages(logMessagesHook.ConsumeMessages(), logrus.WarnLevel,
		"Skipping mount of (/dev/sdb1) on (/backup)")
	assert.Len(t, warnings, 1)
}

func TestMountGuestFilesystemsMountsMissingDiskWithoutKeyword(t *testing.T) {
	toolkit := newSingleDiskGuest()
	toolkit.MountPoints["/dev/sda3"]["/var"] = "/dev/sdb2"

	result, err := MountGuestFilesystems(context.Background(), toolkit, NewAvailabilitySet(toolkit.Devices),
		defaultSecondaryStorage)
	require.NoError(t, err)

	// Only one gate holds, so the mount is still attempted.
	assert.Contains(t, result.MountPoints, "/var")
}

func TestMountGuestFilesystemsContinuesAfterMountFailure(t *testing.T) {
	logMessagesHook := logMessagesHook.AddSubHook()
	defer logMessagesHook.Close()

	toolkit := newSingleDiskGuest()
	toolkit.Fail("mount /dev/sda1", errors.New("mount: wrong fs type"))

	result, err := MountGuestFilesystems(context.Background(), toolkit, NewAvailabilitySet(toolkit.Devices),
		defaultSecondaryStorage)
	require.NoError(t, err)

	assert.Equal(t, []string{"/", "/boot/efi"}, result.MountPoints)

	warnings := logger.FindMessages(logMessagesHook.ConsumeMessages(), logrus.WarnLevel,
		"Failed to mount (/dev/sda1) on (/boot)")
	assert.Len(t, warnings, 1)
}

func TestMountGuestFilesystemsRootCount(t *testing.T) {
	tests := []struct {
		name  string
		roots []string
		err   error
	}{
		{"no root", nil, ErrNoRoot},
		{"two roots", []string{"/dev/sda3", "/dev/sdb3"}, ErrMultipleRoots},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toolkit := newSingleDiskGuest()
			toolkit.Roots = tt.roots

			_, err := MountGuestFilesystems(context.Background(), toolkit, NewAvailabilitySet(toolkit.Devices),
				defaultSecondaryStorage)
			assert.ErrorIs(t, err, tt.err)
			assert.Empty(t, toolkit.CallsWithPrefix("inspect-get-mountpoints"))
			assert.Empty(t, toolkit.CallsWithPrefix("mount"))
		})
	}
}

func TestMountGuestFilesystemsInspectFailure(t *testing.T) {
	toolkit := testutils.NewFakeToolkit()
	toolkit.Fail("inspect-os", errors.New("appliance died"))

	_, err := MountGuestFilesystems(context.Background(), toolkit, NewAvailabilitySet(nil), defaultSecondaryStorage)
	assert.ErrorIs(t, err, ErrInspectOS)
	assert.ErrorContains(t, err, "appliance died")
}

func TestResolveAvailabilityFailure(t *testing.T) {
	toolkit := testutils.NewFakeToolkit()
	toolkit.Fail("list-devices", errors.New("boom"))

	_, err := ResolveAvailability(toolkit)
	assert.ErrorIs(t, err, ErrListDevices)
}
