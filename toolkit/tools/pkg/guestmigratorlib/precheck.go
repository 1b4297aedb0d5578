// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package guestmigratorlib

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/file"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/imageformat"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/logger"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/osinfo"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/processes"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/shell"
)

var (
	ErrImageNotFound    = NewMigrationError("Precheck:ImageNotFound", "image file not found")
	ErrImageDirReadOnly = NewMigrationError("Precheck:ImageDirReadOnly", "image file is on a read-only filesystem")
	ErrImageInUse       = NewMigrationError("Precheck:ImageInUse", "image file is in use by another process")
	ErrCheckImageMount  = NewMigrationError("Precheck:CheckImageMount", "failed to check the filesystem of the image file")
	ErrDetectFormat     = NewMigrationError("Precheck:DetectFormat", "failed to detect the image format")
	ErrFormatMismatch   = NewMigrationError("Precheck:FormatMismatch", "image format does not match the requested format")
)

// Indirections for tests.
var (
	isOnReadOnlyMount      = file.IsOnReadOnlyMount
	getProcessesUsingPath  = processes.GetProcessesUsingPath
	executeVersionCommand  = shell.Execute
	toolDependencyCommands = [][]string{{"guestfish", "--version"}, {"lsof", "-v"}}
)

// CheckHostPrerequisites verifies that the image can be opened for modification: it exists,
// its filesystem is writable and no other process (e.g. a running VM) holds it open.
func CheckHostPrerequisites(imageFile string, readOnly bool) error {
	isFile, err := file.IsFile(imageFile)
	if err != nil || !isFile {
		return fmt.Errorf("%w (%s)", ErrImageNotFound, imageFile)
	}

	absImageFile, err := filepath.Abs(imageFile)
	if err != nil {
		return fmt.Errorf("%w (%s):\n%w", ErrImageNotFound, imageFile, err)
	}

	if !readOnly {
		onReadOnlyMount, err := isOnReadOnlyMount(absImageFile)
		if err != nil {
			return fmt.Errorf("%w (%s):\n%w", ErrCheckImageMount, absImageFile, err)
		}

		if onReadOnlyMount {
			return fmt.Errorf("%w (%s)", ErrImageDirReadOnly, absImageFile)
		}
	}

	users, err := getProcessesUsingPath(absImageFile)
	if err != nil {
		logger.Log.Warnf("Could not check whether the image is in use: %s", err)
		return nil
	}

	if len(users) > 0 {
		descriptions := make([]string, 0, len(users))
		for _, user := range users {
			descriptions = append(descriptions, fmt.Sprintf("%s (pid %d)", user.ProcessName, user.ProcessId))
		}
		return fmt.Errorf("%w (%s): %s", ErrImageInUse, absImageFile, strings.Join(descriptions, ", "))
	}

	return nil
}

// ResolveImageFormat returns the format the image will be attached with. An empty requested
// format takes the detected one. Attaching with the wrong format would corrupt the image when
// written, so a mismatch is an error.
func ResolveImageFormat(imageFile string, requested string) (string, error) {
	detected, err := imageformat.DetectFormat(imageFile)
	if err != nil {
		return "", fmt.Errorf("%w (%s):\n%w", ErrDetectFormat, imageFile, err)
	}

	if requested == "" {
		logger.Log.Debugf("Detected image format (%s)", detected)
		return detected, nil
	}

	if requested != detected {
		return "", fmt.Errorf("%w (%s): requested (%s), detected (%s)", ErrFormatMismatch, imageFile,
			requested, detected)
	}

	return requested, nil
}

// LogHostInfo logs the host distribution and the versions of the external tools used.
func LogHostInfo() {
	distro, version := osinfo.GetDistroAndVersion()
	logger.Log.Infof("Host OS: %s %s", distro, version)

	for _, command := range toolDependencyCommands {
		stdout, stderr, err := executeVersionCommand(command[0], command[1:]...)
		if err != nil {
			logger.Log.Debugf("Failed to get version of (%s): %s", command[0], err)
			continue
		}

		output := strings.TrimSpace(stdout)
		if output == "" {
			output = strings.TrimSpace(stderr)
		}
		firstLine, _, _ := strings.Cut(output, "\n")
		logger.Log.Debugf("%s version: %s", command[0], firstLine)
	}
}
