// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package guestmigratorapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigEmptyDocumentUsesDefaults(t *testing.T) {
	var config Config
	err := UnmarshalAndValidateYaml([]byte(""), &config)
	require.NoError(t, err)

	assert.Equal(t, []DeviceRename{{From: "/dev/vda", To: "/dev/sda"}}, config.Devices.Renames)
	assert.Equal(t, []string{"backup", "data", "storage"}, config.SecondaryStorage.Keywords)
	assert.Equal(t, "/etc/fstab", config.Fstab.Path)
	assert.Equal(t, "/etc/fstab.bak.migration", config.Fstab.BackupPath())
	assert.Equal(t, "Commented by migration - disk not available", config.Fstab.CommentMarker)
	assert.Equal(t, "/etc/default/grub", config.BootLoader.DefaultConfigPath)
	assert.Equal(t, []string{"/boot/grub2/grub.cfg", "/boot/grub/grub.cfg"}, config.BootLoader.MenuConfigPaths)
	assert.Equal(t, "/boot/efi/EFI", config.BootLoader.EfiPayloadDir())
	assert.Equal(t, "/etc/selinux/config", config.SELinux.ConfigPath)
	assert.Equal(t, "targeted", config.SELinux.DefaultPolicyType)
	assert.Equal(t, []string{"/boot", "/"}, config.SELinux.RelabelPaths)
	assert.Empty(t, config.Actions)
}

func TestConfigOverridesKeepOtherDefaults(t *testing.T) {
	yamlData := `
secondaryStorage:
  keywords: [archive]
fstab:
  backupSuffix: .orig
actions:
- name: chmod
  args: ["0700", /root]
- name: umount
  args: [/boot/efi]
`
	var config Config
	err := UnmarshalAndValidateYaml([]byte(yamlData), &config)
	require.NoError(t, err)

	assert.Equal(t, []string{"archive"}, config.SecondaryStorage.Keywords)
	assert.Equal(t, "/etc/fstab.orig", config.Fstab.BackupPath())
	assert.Equal(t, "/etc/fstab", config.Fstab.Path)
	assert.Equal(t, []DeviceRename{{From: "/dev/vda", To: "/dev/sda"}}, config.Devices.Renames)
	require.Len(t, config.Actions, 2)
	assert.Equal(t, NewAction(ActionNameChmod, "0700", "/root"), config.Actions[0])
	assert.True(t, config.Actions[0].Critical())
	assert.False(t, config.Actions[1].Critical())
}

func TestConfigUnknownFieldIsRejected(t *testing.T) {
	var config Config
	err := UnmarshalAndValidateYaml([]byte("fstab:\n  pth: /etc/fstab\n"), &config)
	assert.ErrorContains(t, err, "field pth not found")
}

func TestConfigInvalidCases(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		errorMsg string
	}{
		{
			name:     "unknown action",
			yaml:     "actions:\n- name: reboot\n",
			errorMsg: "unknown action name (reboot)",
		},
		{
			name:     "wrong arg count",
			yaml:     "actions:\n- name: sh\n  args: [a, b]\n",
			errorMsg: "action (sh) takes 1 argument(s) but got 2",
		},
		{
			name:     "bad chmod mode",
			yaml:     "actions:\n- name: chmod\n  args: [\"0789\", /root]\n",
			errorMsg: "must be an octal number",
		},
		{
			name:     "relative fstab path",
			yaml:     "fstab:\n  path: etc/fstab\n",
			errorMsg: "must be absolute",
		},
		{
			name:     "empty keyword",
			yaml:     "secondaryStorage:\n  keywords: [\" \"]\n",
			errorMsg: "keyword may not be empty",
		},
		{
			name:     "rename not a device",
			yaml:     "devices:\n  renames:\n  - from: vda\n    to: /dev/sda\n",
			errorMsg: "invalid 'from' value (vda)",
		},
		{
			name:     "rename not idempotent",
			yaml:     "devices:\n  renames:\n  - from: /dev/sd\n    to: /dev/sda\n",
			errorMsg: "replaces (/dev/sd) with text containing (/dev/sd)",
		},
		{
			name:     "selinux policy type with slash",
			yaml:     "selinux:\n  defaultPolicyType: a/b\n",
			errorMsg: "must be a plain directory name",
		},
		{
			name:     "efi mount point at root",
			yaml:     "bootLoader:\n  efiMountPoint: /\n",
			errorMsg: "may not be the root directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var config Config
			err := UnmarshalAndValidateYaml([]byte(tt.yaml), &config)
			assert.ErrorContains(t, err, tt.errorMsg)
		})
	}
}
