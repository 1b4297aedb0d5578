// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package guestmigratorapi

import (
	"fmt"
	"strings"
)

type Fstab struct {
	// Path of the filesystem table inside the guest.
	Path string `yaml:"path" json:"path,omitempty" default:"/etc/fstab"`
	// BackupSuffix is appended to Path to name the copy of the original file.
	BackupSuffix string `yaml:"backupSuffix" json:"backupSuffix,omitempty" default:".bak.migration"`
	// CommentMarker is appended to every line that gets commented out.
	CommentMarker string `yaml:"commentMarker" json:"commentMarker,omitempty" default:"Commented by migration - disk not available"`
}

func (f *Fstab) IsValid() error {
	err := validateGuestPath(f.Path)
	if err != nil {
		return fmt.Errorf("invalid path:\n%w", err)
	}

	if f.BackupSuffix == "" || strings.ContainsAny(f.BackupSuffix, "/ \t\n") {
		return fmt.Errorf("invalid backupSuffix (%s): must be non-empty and may not contain '/' or whitespace",
			f.BackupSuffix)
	}

	if strings.ContainsAny(f.CommentMarker, "\n") {
		return fmt.Errorf("invalid commentMarker: may not contain newlines")
	}

	return nil
}

func (f *Fstab) BackupPath() string {
	return f.Path + f.BackupSuffix
}
