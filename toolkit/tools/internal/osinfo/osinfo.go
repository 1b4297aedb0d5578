// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package osinfo

import (
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/envfile"
)

const (
	hostOsReleaseFile = "/etc/os-release"

	unknownDistro  = "Unknown Distro"
	unknownVersion = "Unknown Version"
)

// GetDistroAndVersion returns the distribution and version of the host machine.
func GetDistroAndVersion() (string, string) {
	return getDistroAndVersionFromFile(hostOsReleaseFile)
}

func getDistroAndVersionFromFile(path string) (string, string) {
	fields, err := envfile.ParseEnvFile(path)
	if err != nil {
		return unknownDistro, unknownVersion
	}

	distro := fields["NAME"]
	if distro == "" {
		distro = unknownDistro
	}

	version := fields["VERSION"]
	if version == "" {
		version = unknownVersion
	}

	return distro, version
}
