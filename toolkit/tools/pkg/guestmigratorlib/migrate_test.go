// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package guestmigratorlib

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/guestmigratorapi"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/guestfish"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLauncher struct {
	toolkit  *testutils.FakeToolkit
	err      error
	options  []guestfish.Options
	launched int
}

func (l *fakeLauncher) launch(options guestfish.Options) (guestfish.Toolkit, error) {
	l.options = append(l.options, options)
	if l.err != nil {
		return nil, l.err
	}
	l.launched++
	return l.toolkit, nil
}

func newUefiGuest() *testutils.FakeToolkit {
	toolkit := newSingleDiskGuest()
	toolkit.AddDir("/boot/efi/EFI")
	toolkit.AddFile("/etc/default/grub", "GRUB_CMDLINE_LINUX=\"root=/dev/vda3 ro\"\n")
	toolkit.AddFile("/etc/os-release", "NAME=\"Rocky Linux\"\nID=\"rocky\"\nVERSION_ID=\"9.3\"\n")
	return toolkit
}

func migrationTestConfig(t *testing.T) *guestmigratorapi.Config {
	config := defaultTestConfig(t)
	config.Actions = []guestmigratorapi.Action{
		guestmigratorapi.NewAction(guestmigratorapi.ActionNameSh, "systemctl set-default multi-user.target"),
	}
	return config
}

func runTestMigration(t *testing.T, launcher *fakeLauncher, config *guestmigratorapi.Config, dryRun bool) error {
	stubHostChecks(t, false, nil, nil)
	options := MigrationOptions{
		ImageFile:   createTestImage(t),
		ImageFormat: "qcow2",
		Network:     true,
		DryRun:      dryRun,
	}
	return migrateImage(context.Background(), "/opt/guestmigrator", config, options, launcher.launch)
}

func TestMigrateImageUefiSingleDisk(t *testing.T) {
	toolkit := newUefiGuest()
	launcher := &fakeLauncher{toolkit: toolkit}

	err := runTestMigration(t, launcher, migrationTestConfig(t), false)
	require.NoError(t, err)

	require.Len(t, launcher.options, 1)
	assert.False(t, launcher.options[0].ReadOnly)
	assert.True(t, launcher.options[0].Network)
	assert.Equal(t, "qcow2", launcher.options[0].Format)

	assert.Equal(t, singleDiskFstabRewritten, toolkit.Files["/etc/fstab"])
	assert.Equal(t, singleDiskFstab, toolkit.Files["/etc/fstab.bak.migration"])
	assert.Equal(t, "GRUB_CMDLINE_LINUX=\"root=/dev/sda3 ro\"\n", toolkit.Files["/etc/default/grub"])

	// Phase order: mounts, reference rewrites, base actions, EFI unmount, relabels, teardown.
	// Teardown skips /boot/efi, which the EFI unmount action already released.
	assert.Equal(t, []string{
		"mount /dev/sda3 /",
		"mount /dev/sda1 /boot",
		"mount /dev/sda2 /boot/efi",
		"mv /etc/fstab /etc/fstab.bak.migration",
		"write /etc/fstab",
		"write /etc/default/grub",
		"sh systemctl set-default multi-user.target",
		"umount /boot/efi",
		"selinux-relabel " + targetedFileContexts + " /boot",
		"selinux-relabel " + targetedFileContexts + " /",
		"umount /boot",
		"umount /",
		"shutdown",
		"close",
	}, filterCalls(toolkit.Calls, "mount", "mv", "write", "sh", "umount", "selinux-relabel", "shutdown", "close"))

	assert.True(t, toolkit.ShutdownCalled)
	assert.Equal(t, 1, toolkit.CloseCount)
}

func TestMigrateImageLegacyHasNoEfiUnmount(t *testing.T) {
	toolkit := newSingleDiskGuest()
	toolkit.AddFile("/boot/grub2/grub.cfg", "linux /vmlinuz root=/dev/vda3\n")
	launcher := &fakeLauncher{toolkit: toolkit}

	err := runTestMigration(t, launcher, migrationTestConfig(t), false)
	require.NoError(t, err)

	// The only umount calls are the teardown ones.
	assert.Equal(t, []string{"umount /boot/efi", "umount /boot", "umount /"}, toolkit.CallsWithPrefix("umount"))
	assert.Equal(t, "linux /vmlinuz root=/dev/sda3\n", toolkit.Files["/boot/grub2/grub.cfg"])
}

func TestMigrateImageTwoRootsAbortsBeforeMount(t *testing.T) {
	toolkit := newUefiGuest()
	toolkit.Roots = []string{"/dev/sda3", "/dev/sdb3"}
	launcher := &fakeLauncher{toolkit: toolkit}

	err := runTestMigration(t, launcher, migrationTestConfig(t), false)
	assert.ErrorIs(t, err, ErrMultipleRoots)

	assert.Empty(t, toolkit.CallsWithPrefix("mount"))
	assert.Empty(t, toolkit.CallsWithPrefix("write"))
	assert.True(t, toolkit.ShutdownCalled)
	assert.Equal(t, 1, toolkit.CloseCount)
}

func TestMigrateImageCriticalActionFailure(t *testing.T) {
	toolkit := newUefiGuest()
	toolkit.Fail("sh", errors.New("systemctl: command not found"))
	launcher := &fakeLauncher{toolkit: toolkit}

	err := runTestMigration(t, launcher, migrationTestConfig(t), false)
	assert.ErrorIs(t, err, ErrCriticalActionFailed)
	assert.ErrorContains(t, err, "systemctl: command not found")

	assert.Empty(t, toolkit.CallsWithPrefix("selinux-relabel"))
	assert.Equal(t, 1, toolkit.CloseCount)
}

func TestMigrateImageDryRun(t *testing.T) {
	toolkit := newUefiGuest()
	launcher := &fakeLauncher{toolkit: toolkit}

	err := runTestMigration(t, launcher, migrationTestConfig(t), true)
	require.NoError(t, err)

	require.Len(t, launcher.options, 1)
	assert.True(t, launcher.options[0].ReadOnly)
	assert.Empty(t, toolkit.CallsWithPrefix("mv"))
	assert.Empty(t, toolkit.CallsWithPrefix("write"))
	assert.Empty(t, toolkit.CallsWithPrefix("sh"))
	assert.Empty(t, toolkit.CallsWithPrefix("selinux-relabel"))
	assert.Equal(t, singleDiskFstab, toolkit.Files["/etc/fstab"])
	assert.True(t, toolkit.ShutdownCalled)
}

func TestMigrateImageLaunchFailure(t *testing.T) {
	launcher := &fakeLauncher{err: errors.New("qemu: could not open image")}

	err := runTestMigration(t, launcher, migrationTestConfig(t), false)
	assert.ErrorIs(t, err, ErrLaunchToolkit)
}

func TestMigrateImageShutdownFailure(t *testing.T) {
	toolkit := newUefiGuest()
	toolkit.Fail("shutdown", errors.New("sync failed"))
	launcher := &fakeLauncher{toolkit: toolkit}

	err := runTestMigration(t, launcher, migrationTestConfig(t), false)
	assert.ErrorIs(t, err, ErrShutdown)
	assert.Equal(t, 1, toolkit.CloseCount)
}

func TestMigrateImageInvalidInputsNeverLaunch(t *testing.T) {
	stubHostChecks(t, false, nil, nil)
	launcher := &fakeLauncher{toolkit: newUefiGuest()}

	err := migrateImage(context.Background(), "/", migrationTestConfig(t), MigrationOptions{}, launcher.launch)
	assert.ErrorIs(t, err, ErrInvalidParameters)

	err = migrateImage(context.Background(), "/", migrationTestConfig(t),
		MigrationOptions{ImageFile: createTestImage(t), ImageFormat: "iso"}, launcher.launch)
	assert.ErrorIs(t, err, ErrInvalidParameters)

	config := migrationTestConfig(t)
	config.Actions = append(config.Actions, guestmigratorapi.Action{Name: "sh"})
	err = migrateImage(context.Background(), "/", config, MigrationOptions{ImageFile: createTestImage(t)}, launcher.launch)
	assert.ErrorIs(t, err, ErrMalformedAction)

	err = migrateImage(context.Background(), "/", migrationTestConfig(t),
		MigrationOptions{ImageFile: createTestImage(t), ImageFormat: "raw"}, launcher.launch)
	assert.ErrorIs(t, err, ErrFormatMismatch)

	assert.Empty(t, launcher.options)
}

func TestMigrateImageDetectsFormat(t *testing.T) {
	stubHostChecks(t, false, nil, nil)
	launcher := &fakeLauncher{toolkit: newUefiGuest()}

	err := migrateImage(context.Background(), "/opt/guestmigrator", migrationTestConfig(t),
		MigrationOptions{ImageFile: createTestImage(t), DryRun: true}, launcher.launch)
	require.NoError(t, err)

	require.Len(t, launcher.options, 1)
	assert.Equal(t, "qcow2", launcher.options[0].Format)
	assert.True(t, launcher.options[0].ReadOnly)
}

func filterCalls(calls []string, names ...string) []string {
	filtered := []string(nil)
	for _, call := range calls {
		for _, name := range names {
			if call == name || strings.HasPrefix(call, name+" ") {
				filtered = append(filtered, call)
				break
			}
		}
	}
	return filtered
}
