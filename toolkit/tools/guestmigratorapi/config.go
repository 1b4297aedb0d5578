// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package guestmigratorapi

import (
	"fmt"
)

// Config holds the site policy of a migration: device naming, which volumes may be
// dropped, where the boot files live and the remediation actions to apply.
type Config struct {
	Devices          Devices          `yaml:"devices" json:"devices,omitempty"`
	SecondaryStorage SecondaryStorage `yaml:"secondaryStorage" json:"secondaryStorage,omitempty"`
	Fstab            Fstab            `yaml:"fstab" json:"fstab,omitempty"`
	BootLoader       BootLoader       `yaml:"bootLoader" json:"bootLoader,omitempty"`
	SELinux          SELinux          `yaml:"selinux" json:"selinux,omitempty"`
	// Actions is the base remediation list, run in order before the boot mode specific steps.
	Actions []Action `yaml:"actions" json:"actions,omitempty"`
}

func (c *Config) IsValid() error {
	err := c.Devices.IsValid()
	if err != nil {
		return fmt.Errorf("invalid 'devices' field:\n%w", err)
	}

	err = c.SecondaryStorage.IsValid()
	if err != nil {
		return fmt.Errorf("invalid 'secondaryStorage' field:\n%w", err)
	}

	err = c.Fstab.IsValid()
	if err != nil {
		return fmt.Errorf("invalid 'fstab' field:\n%w", err)
	}

	err = c.BootLoader.IsValid()
	if err != nil {
		return fmt.Errorf("invalid 'bootLoader' field:\n%w", err)
	}

	err = c.SELinux.IsValid()
	if err != nil {
		return fmt.Errorf("invalid 'selinux' field:\n%w", err)
	}

	for i := range c.Actions {
		err := c.Actions[i].IsValid()
		if err != nil {
			return fmt.Errorf("invalid 'actions' item at index (%d):\n%w", i, err)
		}
	}

	return nil
}
