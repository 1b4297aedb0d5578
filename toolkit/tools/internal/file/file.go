// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/moby/sys/mountinfo"
)

// IsFile returns true if the path exists and is a regular file.
func IsFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}

	return info.Mode().IsRegular(), nil
}

// DirExists returns true if the path exists and is a directory.
func DirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}

	return info.IsDir(), nil
}

func Read(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

func Write(content string, path string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

// GetContainingMount returns the host mount that the path lives on.
func GetContainingMount(path string) (*mountinfo.Info, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path of (%s):\n%w", path, err)
	}

	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path (%s):\n%w", absPath, err)
	}

	mounts, err := mountinfo.GetMounts(mountinfo.ParentsFilter(resolvedPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read host mount table:\n%w", err)
	}

	// The deepest parent mount is the one the path lives on.
	var containing *mountinfo.Info
	for _, mount := range mounts {
		if containing == nil || len(mount.Mountpoint) > len(containing.Mountpoint) {
			containing = mount
		}
	}

	if containing == nil {
		return nil, fmt.Errorf("no host mount contains (%s)", resolvedPath)
	}

	return containing, nil
}

// IsOnReadOnlyMount returns true if the path lives on a host filesystem mounted read-only.
func IsOnReadOnlyMount(path string) (bool, error) {
	mount, err := GetContainingMount(path)
	if err != nil {
		return false, err
	}

	return isReadOnlyOptions(mount.Options) || isReadOnlyOptions(mount.VFSOptions), nil
}

func isReadOnlyOptions(options string) bool {
	for _, option := range strings.Split(options, ",") {
		if option == "ro" {
			return true
		}
	}
	return false
}
