// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package guestmigratorapi

import (
	"fmt"
	"strings"
)

// SecondaryStorage describes which mounts look like auxiliary data volumes.
// Only such mounts may be dropped when their disk is not part of the migration.
type SecondaryStorage struct {
	// Keywords are matched case-insensitively against the mount point path.
	Keywords []string `yaml:"keywords" json:"keywords,omitempty" default:"[\"backup\",\"data\",\"storage\"]"`
}

func (s *SecondaryStorage) IsValid() error {
	for i, keyword := range s.Keywords {
		if strings.TrimSpace(keyword) == "" {
			return fmt.Errorf("invalid keyword at index (%d): keyword may not be empty", i)
		}

		if keyword == "/" {
			return fmt.Errorf("invalid keyword at index (%d): (/) would match every mount point", i)
		}
	}

	return nil
}

// MatchesMountPoint returns true if the mount point contains one of the keywords.
func (s *SecondaryStorage) MatchesMountPoint(mountPoint string) bool {
	lowerMountPoint := strings.ToLower(mountPoint)
	for _, keyword := range s.Keywords {
		if strings.Contains(lowerMountPoint, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}
