// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package guestmigratorapi

import (
	"fmt"
	"path"
	"strings"
)

type SELinux struct {
	// ConfigPath is the guest's SELinux config file, which names the policy type.
	ConfigPath string `yaml:"configPath" json:"configPath,omitempty" default:"/etc/selinux/config"`
	// DefaultPolicyType is used when the config file is missing or does not set SELINUXTYPE.
	DefaultPolicyType string `yaml:"defaultPolicyType" json:"defaultPolicyType,omitempty" default:"targeted"`
	// RelabelPaths are relabeled in order at the end of the migration.
	RelabelPaths []string `yaml:"relabelPaths" json:"relabelPaths,omitempty" default:"[\"/boot\",\"/\"]"`
}

func (s *SELinux) IsValid() error {
	err := validateGuestPath(s.ConfigPath)
	if err != nil {
		return fmt.Errorf("invalid configPath:\n%w", err)
	}

	err = ValidatePolicyType(s.DefaultPolicyType)
	if err != nil {
		return fmt.Errorf("invalid defaultPolicyType:\n%w", err)
	}

	for i, relabelPath := range s.RelabelPaths {
		err := validateGuestPath(relabelPath)
		if err != nil {
			return fmt.Errorf("invalid relabelPaths value at index (%d):\n%w", i, err)
		}
	}

	return nil
}

// FileContextsPath returns the file_contexts file of an SELinux policy type.
func FileContextsPath(policyType string) string {
	return path.Join("/etc/selinux", policyType, "contexts/files/file_contexts")
}

// ValidatePolicyType checks that an SELinux policy type can name a directory under /etc/selinux.
func ValidatePolicyType(policyType string) error {
	if policyType == "" || strings.ContainsAny(policyType, "/ \t\n") || policyType == "." || policyType == ".." {
		return fmt.Errorf("policy type (%s) must be a plain directory name", policyType)
	}
	return nil
}
