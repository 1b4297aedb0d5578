// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package guestmigratorlib

import (
	"context"
	"fmt"
	"strings"

	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/guestmigratorapi"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/guestfish"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrFstabRead   = NewMigrationError("Fstab:Read", "failed to read filesystem table")
	ErrFstabBackup = NewMigrationError("Fstab:Backup", "failed to back up filesystem table")
	ErrFstabWrite  = NewMigrationError("Fstab:Write", "failed to write filesystem table")
)

// RewritePolicy is the part of the config that decides how persisted device references change.
type RewritePolicy struct {
	Renames          []guestmigratorapi.DeviceRename
	SecondaryStorage guestmigratorapi.SecondaryStorage
	CommentMarker    string
}

func NewRewritePolicy(config *guestmigratorapi.Config) RewritePolicy {
	return RewritePolicy{
		Renames:          config.Devices.Renames,
		SecondaryStorage: config.SecondaryStorage,
		CommentMarker:    config.Fstab.CommentMarker,
	}
}

func applyRenames(content string, renames []guestmigratorapi.DeviceRename) string {
	for _, rename := range renames {
		content = strings.ReplaceAll(content, rename.From, rename.To)
	}
	return content
}

// RewriteFstab renames devices and comments out the entries of secondary disks that are not
// part of the session. It returns the new content and whether it differs from the input.
func RewriteFstab(content string, availability AvailabilitySet, policy RewritePolicy) (string, bool) {
	renamed := applyRenames(content, policy.Renames)

	lines := strings.Split(renamed, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		source, mountPoint := fields[0], fields[1]
		if !IsFstabSourceUnavailable(source, mountPoint, availability, policy.SecondaryStorage) {
			continue
		}

		logger.Log.Infof("Commenting out fstab entry for missing device: (%s) -> (%s)", source, mountPoint)
		lines[i] = commentOutFstabLine(line, policy.CommentMarker)
	}

	rewritten := strings.Join(lines, "\n")
	return rewritten, rewritten != content
}

func commentOutFstabLine(line string, marker string) string {
	if marker == "" {
		return "# " + line
	}
	return fmt.Sprintf("# %s # %s", line, marker)
}

// UpdateFstab rewrites the guest's filesystem table in place. The original file is renamed
// to the backup path first and the new content is only written once the backup exists.
// Nothing is touched when the content would not change.
func UpdateFstab(ctx context.Context, toolkit guestfish.Toolkit, availability AvailabilitySet,
	config *guestmigratorapi.Config, dryRun bool,
) (changed bool, err error) {
	_, span := otel.GetTracerProvider().Tracer(OtelTracerName).Start(ctx, "rewrite_fstab")
	defer func() {
		span.SetAttributes(attribute.Bool("changed", changed))
		span.End()
	}()

	fstabPath := config.Fstab.Path
	exists, err := toolkit.Exists(fstabPath)
	if err != nil {
		return false, fmt.Errorf("%w (%s):\nfailed to check whether file exists:\n%w", ErrFstabRead, fstabPath, err)
	}
	if !exists {
		logger.Log.Warnf("Guest has no filesystem table (%s)", fstabPath)
		return false, nil
	}

	content, err := toolkit.Read(fstabPath)
	if err != nil {
		return false, fmt.Errorf("%w (%s):\n%w", ErrFstabRead, fstabPath, err)
	}

	rewritten, changed := RewriteFstab(content, availability, NewRewritePolicy(config))
	if !changed {
		logger.Log.Infof("Filesystem table (%s) needs no changes", fstabPath)
		return false, nil
	}

	if dryRun {
		logger.Log.Infof("Dry run: would update (%s) to:\n%s", fstabPath, rewritten)
		return true, nil
	}

	backupPath := config.Fstab.BackupPath()
	err = toolkit.Move(fstabPath, backupPath)
	if err != nil {
		return false, fmt.Errorf("%w (%s -> %s):\n%w", ErrFstabBackup, fstabPath, backupPath, err)
	}

	err = toolkit.Write(fstabPath, rewritten)
	if err != nil {
		return false, fmt.Errorf("%w (%s):\n%w", ErrFstabWrite, fstabPath, err)
	}

	logger.Log.Infof("Updated (%s), original saved as (%s)", fstabPath, backupPath)
	return true, nil
}
