// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package guestmigratorlib

import (
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/guestmigratorapi"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/envfile"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/guestfish"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/logger"
)

const (
	selinuxTypeKey = "SELINUXTYPE"
)

// GetSELinuxPolicyType reads the policy type the guest is configured with. The configured
// default is used when the file is missing, unreadable or does not name a usable type.
func GetSELinuxPolicyType(toolkit guestfish.Toolkit, selinux guestmigratorapi.SELinux) string {
	exists, err := toolkit.Exists(selinux.ConfigPath)
	if err != nil {
		logger.Log.Warnf("Failed to check whether SELinux config (%s) exists, using policy type (%s): %s",
			selinux.ConfigPath, selinux.DefaultPolicyType, err)
		return selinux.DefaultPolicyType
	}
	if !exists {
		logger.Log.Debugf("Guest has no SELinux config (%s), using policy type (%s)", selinux.ConfigPath,
			selinux.DefaultPolicyType)
		return selinux.DefaultPolicyType
	}

	content, err := toolkit.Read(selinux.ConfigPath)
	if err != nil {
		logger.Log.Warnf("Failed to read SELinux config (%s): %s", selinux.ConfigPath, err)
		return selinux.DefaultPolicyType
	}

	return parseSELinuxPolicyType(content, selinux.DefaultPolicyType)
}

func parseSELinuxPolicyType(content string, defaultPolicyType string) string {
	fields, err := envfile.ParseEnv(content)
	if err != nil {
		logger.Log.Warnf("Failed to parse SELinux config: %s", err)
		return defaultPolicyType
	}

	policyType, found := fields[selinuxTypeKey]
	if !found || policyType == "" {
		return defaultPolicyType
	}

	err = guestmigratorapi.ValidatePolicyType(policyType)
	if err != nil {
		logger.Log.Warnf("Ignoring SELinux policy type from guest config: %s", err)
		return defaultPolicyType
	}

	return policyType
}
