// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package guestfish drives a libguestfs appliance through a guestfish server process.
package guestfish

import (
	"os"
)

// Toolkit is the set of guest operations the migration engine needs from a libguestfs
// session. Paths are always paths inside the guest.
type Toolkit interface {
	// ListDevices returns the whole-disk block devices attached to the appliance.
	ListDevices() ([]string, error)
	// InspectOS returns the root filesystem device of every operating system found.
	InspectOS() ([]string, error)
	// InspectGetMountpoints maps mount points to devices for an inspected root.
	InspectGetMountpoints(root string) (map[string]string, error)
	Mount(device string, mountPoint string) error
	Umount(path string) error
	Exists(path string) (bool, error)
	IsDir(path string) (bool, error)
	Read(path string) (string, error)
	Write(path string, content string) error
	Move(src string, dest string) error
	Sh(command string) (string, error)
	Chmod(mode os.FileMode, path string) error
	CpA(src string, dest string) error
	// CopyIn recursively copies a host directory into a guest directory.
	CopyIn(localDir string, remoteDir string) error
	SELinuxRelabel(specFile string, path string) error
	// Shutdown syncs and stops the appliance. Writes are only guaranteed after it returns nil.
	Shutdown() error
	// Close releases the session. It is safe to call after Shutdown and more than once.
	Close() error
}
