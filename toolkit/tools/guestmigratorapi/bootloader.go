// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package guestmigratorapi

import (
	"fmt"
	"path"
)

const (
	EfiPayloadDirName = "EFI"
)

type BootLoader struct {
	// DefaultConfigPath is the boot loader's defaults file, e.g. /etc/default/grub.
	DefaultConfigPath string `yaml:"defaultConfigPath" json:"defaultConfigPath,omitempty" default:"/etc/default/grub"`
	// MenuConfigPaths are the rendered boot menu files. Their presence also marks a legacy BIOS install.
	MenuConfigPaths []string `yaml:"menuConfigPaths" json:"menuConfigPaths,omitempty" default:"[\"/boot/grub2/grub.cfg\",\"/boot/grub/grub.cfg\"]"`
	// EfiMountPoint is where the EFI system partition is mounted.
	EfiMountPoint string `yaml:"efiMountPoint" json:"efiMountPoint,omitempty" default:"/boot/efi"`
}

func (b *BootLoader) IsValid() error {
	err := validateGuestPath(b.DefaultConfigPath)
	if err != nil {
		return fmt.Errorf("invalid defaultConfigPath:\n%w", err)
	}

	for i, menuConfigPath := range b.MenuConfigPaths {
		err := validateGuestPath(menuConfigPath)
		if err != nil {
			return fmt.Errorf("invalid menuConfigPaths value at index (%d):\n%w", i, err)
		}
	}

	err = validateGuestPath(b.EfiMountPoint)
	if err != nil {
		return fmt.Errorf("invalid efiMountPoint:\n%w", err)
	}

	if b.EfiMountPoint == "/" {
		return fmt.Errorf("invalid efiMountPoint: may not be the root directory")
	}

	return nil
}

// EfiPayloadDir is the directory on the EFI system partition that holds the boot loaders.
func (b *BootLoader) EfiPayloadDir() string {
	return path.Join(b.EfiMountPoint, EfiPayloadDirName)
}
