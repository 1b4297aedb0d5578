// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package guestmigratorlib

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/guestmigratorapi"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/guestfish"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrListDevices        = NewMigrationError("Topology:ListDevices", "failed to list session devices")
	ErrInspectOS          = NewMigrationError("Topology:InspectOS", "failed to inspect guest operating systems")
	ErrNoRoot             = NewMigrationError("Topology:NoRoot", "no operating system root found in image")
	ErrMultipleRoots      = NewMigrationError("Topology:MultipleRoots", "image contains more than one operating system root")
	ErrInspectMountpoints = NewMigrationError("Topology:InspectMountpoints", "failed to read guest mount table")
)

const (
	rootMountPoint = "/"
)

// MountEntry is one row of the guest's mount table as reported by inspection.
type MountEntry struct {
	MountPoint string
	Device     string
}

// MountResult lists the mount points that were successfully mounted, in mount order.
type MountResult struct {
	MountPoints []string
}

func (r MountResult) Contains(mountPoint string) bool {
	return slices.Contains(r.MountPoints, mountPoint)
}

// ResolveAvailability builds the availability set from the devices attached to the session.
func ResolveAvailability(toolkit guestfish.Toolkit) (AvailabilitySet, error) {
	devices, err := toolkit.ListDevices()
	if err != nil {
		return AvailabilitySet{}, fmt.Errorf("%w:\n%w", ErrListDevices, err)
	}

	availability := NewAvailabilitySet(devices)
	logger.Log.Infof("Available devices: %v", availability.Bases())
	return availability, nil
}

// PlanMounts sorts the mount table so that every mount point comes after its parent.
// A parent path is always a prefix of its children, so lexical order is enough.
func PlanMounts(mountPoints map[string]string) []MountEntry {
	plan := make([]MountEntry, 0, len(mountPoints))
	for mountPoint, device := range mountPoints {
		plan = append(plan, MountEntry{MountPoint: mountPoint, Device: device})
	}

	sort.Slice(plan, func(i, j int) bool {
		return plan[i].MountPoint < plan[j].MountPoint
	})
	return plan
}

// MountGuestFilesystems mounts the guest's filesystems, skipping secondary disks that are
// not part of the session. A failed mount is logged and the remaining mounts still proceed.
func MountGuestFilesystems(ctx context.Context, toolkit guestfish.Toolkit, availability AvailabilitySet,
	secondaryStorage guestmigratorapi.SecondaryStorage,
) (MountResult, error) {
	_, span := otel.GetTracerProvider().Tracer(OtelTracerName).Start(ctx, "mount_filesystems")
	defer span.End()

	roots, err := toolkit.InspectOS()
	if err != nil {
		return MountResult{}, fmt.Errorf("%w:\n%w", ErrInspectOS, err)
	}

	switch len(roots) {
	case 0:
		return MountResult{}, ErrNoRoot

	case 1:

	default:
		return MountResult{}, fmt.Errorf("%w (%v)", ErrMultipleRoots, roots)
	}

	root := roots[0]
	logger.Log.Infof("Found operating system root (%s)", root)

	mountPoints, err := toolkit.InspectGetMountpoints(root)
	if err != nil {
		return MountResult{}, fmt.Errorf("%w (%s):\n%w", ErrInspectMountpoints, root, err)
	}

	result := MountResult{}
	skipped := 0
	for _, entry := range PlanMounts(mountPoints) {
		if IsMountEntryUnavailable(entry, availability, secondaryStorage) {
			logger.Log.Warnf("Skipping mount of (%s) on (%s): disk not available", entry.Device, entry.MountPoint)
			skipped++
			continue
		}

		err := toolkit.Mount(entry.Device, entry.MountPoint)
		if err != nil {
			logger.Log.Warnf("Failed to mount (%s) on (%s): %s", entry.Device, entry.MountPoint, err)
			continue
		}

		logger.Log.Infof("Mounted (%s) on (%s)", entry.Device, entry.MountPoint)
		result.MountPoints = append(result.MountPoints, entry.MountPoint)
	}

	span.SetAttributes(
		attribute.StringSlice("mount_points", result.MountPoints),
		attribute.Int("skipped_mounts", skipped),
	)

	if !result.Contains(rootMountPoint) {
		logger.Log.Warnf("Root filesystem (%s) is not mounted", root)
	}

	return result, nil
}
