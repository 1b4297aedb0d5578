// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package guestmigratorlib

import (
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/guestfish"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/logger"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/targetos"
)

const (
	osReleasePath = "/etc/os-release"
)

// identifyGuestOS logs which distribution the mounted guest runs. An unknown distribution
// is not an error, but the default remediation list may not suit it.
func identifyGuestOS(toolkit guestfish.Toolkit) (targetos.TargetOs, bool) {
	exists, err := toolkit.Exists(osReleasePath)
	if err != nil {
		logger.Log.Warnf("Failed to check whether (%s) exists: %s", osReleasePath, err)
		return "", false
	}
	if !exists {
		logger.Log.Warnf("Guest has no (%s), cannot identify its distribution", osReleasePath)
		return "", false
	}

	content, err := toolkit.Read(osReleasePath)
	if err != nil {
		logger.Log.Warnf("Failed to read (%s): %s", osReleasePath, err)
		return "", false
	}

	targetOs, err := targetos.GetTargetOsFromOsRelease(content)
	if err != nil {
		logger.Log.Warnf("Guest distribution is not one the default actions were written for:\n%s", err)
		return "", false
	}

	logger.Log.Infof("Guest distribution: %s", targetOs)
	return targetOs, true
}
