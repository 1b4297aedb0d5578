// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package guestmigratorlib

import (
	"sort"
	"strings"

	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/guestmigratorapi"
)

const (
	decimalDigits = "0123456789"
)

// AvailabilitySet is the set of base disk identities attached to the session. It is built
// once per session and never changes.
type AvailabilitySet struct {
	bases map[string]struct{}
}

func NewAvailabilitySet(devices []string) AvailabilitySet {
	bases := make(map[string]struct{}, len(devices))
	for _, device := range devices {
		bases[DeviceBaseIdentity(device)] = struct{}{}
	}
	return AvailabilitySet{bases: bases}
}

func (s AvailabilitySet) Contains(base string) bool {
	_, found := s.bases[base]
	return found
}

func (s AvailabilitySet) Bases() []string {
	bases := make([]string, 0, len(s.bases))
	for base := range s.bases {
		bases = append(bases, base)
	}
	sort.Strings(bases)
	return bases
}

// DeviceBaseIdentity strips the partition number from a device path, e.g. /dev/sda1 -> /dev/sda.
func DeviceBaseIdentity(device string) string {
	return strings.TrimRight(device, decimalDigits)
}

// mountEntryBase derives the base disk of a device reported by guest inspection from its
// first two path segments. Devices with fewer segments have no base and are treated as present.
func mountEntryBase(device string) (string, bool) {
	segments := strings.Split(device, "/")
	if len(segments) < 3 {
		return "", false
	}

	return DeviceBaseIdentity("/" + strings.Join(segments[1:3], "/")), true
}

// fstabSourceBase derives the base disk of an fstab source. Only /dev/ paths are devices;
// UUID=, LABEL=, pseudo filesystems and network sources have no base.
func fstabSourceBase(source string) (string, bool) {
	if !strings.HasPrefix(source, guestmigratorapi.DevicePathPrefix) {
		return "", false
	}

	return DeviceBaseIdentity(source), true
}

// IsMountEntryUnavailable reports whether an inspected mount belongs to a secondary disk
// that is not part of the session. Both conditions must hold: the base disk is missing and
// the mount point looks like auxiliary storage.
func IsMountEntryUnavailable(entry MountEntry, availability AvailabilitySet,
	secondaryStorage guestmigratorapi.SecondaryStorage,
) bool {
	base, isDevice := mountEntryBase(entry.Device)
	if !isDevice {
		return false
	}

	return !availability.Contains(base) && secondaryStorage.MatchesMountPoint(entry.MountPoint)
}

// IsFstabSourceUnavailable is the fstab counterpart of IsMountEntryUnavailable.
func IsFstabSourceUnavailable(source string, mountPoint string, availability AvailabilitySet,
	secondaryStorage guestmigratorapi.SecondaryStorage,
) bool {
	base, isDevice := fstabSourceBase(source)
	if !isDevice {
		return false
	}

	return !availability.Contains(base) && secondaryStorage.MatchesMountPoint(mountPoint)
}
