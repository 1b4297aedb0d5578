// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package targetos

import (
	"fmt"
	"strings"

	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/envfile"
)

type TargetOs string

const (
	TargetOsCentOS7        TargetOs = "centos7"
	TargetOsCentOS8        TargetOs = "centos8"
	TargetOsCentOSStream   TargetOs = "centos-stream"
	TargetOsRhel           TargetOs = "rhel"
	TargetOsRocky          TargetOs = "rocky"
	TargetOsAlmaLinux      TargetOs = "almalinux"
	TargetOsRhelCompatible TargetOs = "rhel-compatible"
)

// GetTargetOsFromOsRelease identifies the guest OS from the contents of its /etc/os-release file.
func GetTargetOsFromOsRelease(osReleaseContent string) (TargetOs, error) {
	fields, err := envfile.ParseEnv(osReleaseContent)
	if err != nil {
		return "", fmt.Errorf("failed to parse /etc/os-release file:\n%w", err)
	}

	distroId := fields["ID"]
	versionId := fields["VERSION_ID"]
	majorVersion, _, _ := strings.Cut(versionId, ".")

	switch distroId {
	case "centos":
		if strings.Contains(fields["NAME"], "Stream") {
			return TargetOsCentOSStream, nil
		}

		switch majorVersion {
		case "7":
			return TargetOsCentOS7, nil

		case "8":
			return TargetOsCentOS8, nil

		default:
			return "", fmt.Errorf("unknown VERSION_ID (%s) for CentOS in /etc/os-release", versionId)
		}

	case "rhel":
		return TargetOsRhel, nil

	case "rocky":
		return TargetOsRocky, nil

	case "almalinux":
		return TargetOsAlmaLinux, nil

	default:
		for _, like := range strings.Fields(fields["ID_LIKE"]) {
			if like == "rhel" || like == "centos" {
				return TargetOsRhelCompatible, nil
			}
		}

		return "", fmt.Errorf("unknown ID (%s) in /etc/os-release", distroId)
	}
}
