// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package guestmigratorapi

import (
	"fmt"
	"strings"
)

const (
	DevicePathPrefix = "/dev/"
)

// DeviceRename replaces one device naming convention with another, e.g. the virtio disk
// names of the source hypervisor with the SCSI disk names of the target platform.
type DeviceRename struct {
	// From is the device path prefix used by the source platform.
	From string `yaml:"from" json:"from"`
	// To is the device path prefix used by the target platform.
	To string `yaml:"to" json:"to"`
}

func (r *DeviceRename) IsValid() error {
	if !strings.HasPrefix(r.From, DevicePathPrefix) || len(r.From) <= len(DevicePathPrefix) {
		return fmt.Errorf("invalid 'from' value (%s): must be a device path under %s", r.From, DevicePathPrefix)
	}

	if !strings.HasPrefix(r.To, DevicePathPrefix) || len(r.To) <= len(DevicePathPrefix) {
		return fmt.Errorf("invalid 'to' value (%s): must be a device path under %s", r.To, DevicePathPrefix)
	}

	if strings.ContainsAny(r.From+r.To, " \t\n") {
		return fmt.Errorf("device paths (%s, %s) may not contain whitespace", r.From, r.To)
	}

	return nil
}

type Devices struct {
	// Renames are applied in order to the filesystem table and the boot loader config.
	Renames []DeviceRename `yaml:"renames" json:"renames,omitempty" default:"[{\"from\":\"/dev/vda\",\"to\":\"/dev/sda\"}]"`
}

func (d *Devices) IsValid() error {
	for i := range d.Renames {
		err := d.Renames[i].IsValid()
		if err != nil {
			return fmt.Errorf("invalid rename at index (%d):\n%w", i, err)
		}
	}

	// A rename whose source reappears in any replacement would keep matching on every
	// pass, so rewriting an already rewritten file would change it again.
	for i, rename := range d.Renames {
		for j, other := range d.Renames {
			if strings.Contains(other.To, rename.From) {
				return fmt.Errorf("rename at index (%d) replaces (%s) with text containing (%s) from rename at index (%d)",
					j, other.From, rename.From, i)
			}
		}
	}

	return nil
}
