// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package guestmigratorlib

import (
	"fmt"
	"slices"

	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/guestfish"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/logger"
)

var (
	ErrLaunchToolkit = NewMigrationError("Session:Launch", "failed to open image")
	ErrShutdown      = NewMigrationError("Session:Shutdown", "failed to flush changes to image")
	ErrCloseSession  = NewMigrationError("Session:Close", "failed to close image")
)

// migrationSession owns the toolkit for one image and guarantees a single teardown.
type migrationSession struct {
	toolkit *trackingToolkit
	closed  bool
}

func newMigrationSession(toolkit guestfish.Toolkit) *migrationSession {
	return &migrationSession{
		toolkit: &trackingToolkit{Toolkit: toolkit},
	}
}

// trackingToolkit records which mountpoints are currently mounted, so teardown only unmounts
// what remediation left mounted.
type trackingToolkit struct {
	guestfish.Toolkit
	mounted []string
}

func (t *trackingToolkit) Mount(device string, mountPoint string) error {
	err := t.Toolkit.Mount(device, mountPoint)
	if err != nil {
		return err
	}

	t.mounted = append(t.mounted, mountPoint)
	return nil
}

func (t *trackingToolkit) Umount(path string) error {
	err := t.Toolkit.Umount(path)
	if err != nil {
		return err
	}

	t.mounted = slices.DeleteFunc(t.mounted, func(mountPoint string) bool {
		return mountPoint == path
	})
	return nil
}

// Close tears the session down on the error path. Failures are logged, not returned.
func (s *migrationSession) Close() {
	err := s.close()
	if err != nil {
		logger.Log.Warnf("Failed to cleanly close image: %s", err)
	}
}

// CleanClose tears the session down on the success path, where an unflushed or unclosed
// image means the migration did not complete.
func (s *migrationSession) CleanClose() error {
	return s.close()
}

func (s *migrationSession) close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	s.unmountAll()

	shutdownErr := s.toolkit.Shutdown()
	closeErr := s.toolkit.Close()

	if shutdownErr != nil {
		return fmt.Errorf("%w:\n%w", ErrShutdown, shutdownErr)
	}
	if closeErr != nil {
		return fmt.Errorf("%w:\n%w", ErrCloseSession, closeErr)
	}
	return nil
}

// unmountAll unmounts in reverse mount order so children go before their parents.
func (s *migrationSession) unmountAll() {
	mounted := slices.Clone(s.toolkit.mounted)
	for i := len(mounted) - 1; i >= 0; i-- {
		err := s.toolkit.Umount(mounted[i])
		if err != nil {
			logger.Log.Warnf("Failed to unmount (%s): %s", mounted[i], err)
		}
	}
}
