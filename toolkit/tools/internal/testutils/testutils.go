// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package testutils

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/guestfish"
)

// FakeToolkit is an in-memory guestfish.Toolkit. It models the guest as a set of files and
// directories, records every call and can be told to fail specific calls.
type FakeToolkit struct {
	Devices     []string
	Roots       []string
	MountPoints map[string]map[string]string

	Files map[string]string
	Dirs  map[string]bool
	Modes map[string]os.FileMode

	// Mounted maps mount points to devices in mount order.
	Mounted      map[string]string
	MountedOrder []string

	// Calls holds one entry per call, e.g. "mount /dev/sda1 /boot".
	Calls []string

	// Failures maps a call prefix to the error returned by calls that start with it.
	Failures map[string]error

	ShutdownCalled bool
	CloseCount     int
}

var _ guestfish.Toolkit = (*FakeToolkit)(nil)

func NewFakeToolkit() *FakeToolkit {
	return &FakeToolkit{
		MountPoints: map[string]map[string]string{},
		Files:       map[string]string{},
		Dirs:        map[string]bool{"/": true},
		Modes:       map[string]os.FileMode{},
		Mounted:     map[string]string{},
		Failures:    map[string]error{},
	}
}

// AddFile adds a file along with its parent directories.
func (f *FakeToolkit) AddFile(filePath string, content string) {
	f.Files[filePath] = content
	f.AddDir(path.Dir(filePath))
}

func (f *FakeToolkit) AddDir(dirPath string) {
	for dirPath != "/" && dirPath != "." {
		f.Dirs[dirPath] = true
		dirPath = path.Dir(dirPath)
	}
}

// Fail makes every call starting with prefix return err.
func (f *FakeToolkit) Fail(prefix string, err error) {
	f.Failures[prefix] = err
}

// CallsWithPrefix returns the recorded calls whose leading words are prefix, so "sh" matches
// "sh ls" but not "shutdown".
func (f *FakeToolkit) CallsWithPrefix(prefix string) []string {
	calls := []string(nil)
	for _, call := range f.Calls {
		if hasCallPrefix(call, prefix) {
			calls = append(calls, call)
		}
	}
	return calls
}

func hasCallPrefix(call string, prefix string) bool {
	return call == prefix || strings.HasPrefix(call, prefix+" ")
}

func (f *FakeToolkit) record(parts ...string) error {
	call := strings.Join(parts, " ")
	f.Calls = append(f.Calls, call)

	// Longest prefix wins so that a specific failure can override a general one.
	prefixes := make([]string, 0, len(f.Failures))
	for prefix := range f.Failures {
		prefixes = append(prefixes, prefix)
	}
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })

	for _, prefix := range prefixes {
		if hasCallPrefix(call, prefix) {
			return f.Failures[prefix]
		}
	}
	return nil
}

func (f *FakeToolkit) ListDevices() ([]string, error) {
	err := f.record("list-devices")
	if err != nil {
		return nil, err
	}
	return f.Devices, nil
}

func (f *FakeToolkit) InspectOS() ([]string, error) {
	err := f.record("inspect-os")
	if err != nil {
		return nil, err
	}
	return f.Roots, nil
}

func (f *FakeToolkit) InspectGetMountpoints(root string) (map[string]string, error) {
	err := f.record("inspect-get-mountpoints", root)
	if err != nil {
		return nil, err
	}
	return f.MountPoints[root], nil
}

func (f *FakeToolkit) Mount(device string, mountPoint string) error {
	err := f.record("mount", device, mountPoint)
	if err != nil {
		return err
	}
	f.Mounted[mountPoint] = device
	f.MountedOrder = append(f.MountedOrder, mountPoint)
	f.AddDir(mountPoint)
	return nil
}

func (f *FakeToolkit) Umount(mountPoint string) error {
	err := f.record("umount", mountPoint)
	if err != nil {
		return err
	}
	if _, found := f.Mounted[mountPoint]; !found {
		return fmt.Errorf("umount: %s: not mounted", mountPoint)
	}
	delete(f.Mounted, mountPoint)
	return nil
}

func (f *FakeToolkit) Exists(filePath string) (bool, error) {
	err := f.record("exists", filePath)
	if err != nil {
		return false, err
	}
	_, isFile := f.Files[filePath]
	return isFile || f.Dirs[filePath], nil
}

func (f *FakeToolkit) IsDir(filePath string) (bool, error) {
	err := f.record("is-dir", filePath)
	if err != nil {
		return false, err
	}
	return f.Dirs[filePath], nil
}

func (f *FakeToolkit) Read(filePath string) (string, error) {
	err := f.record("read", filePath)
	if err != nil {
		return "", err
	}
	content, found := f.Files[filePath]
	if !found {
		return "", fmt.Errorf("download: %s: No such file or directory", filePath)
	}
	return content, nil
}

func (f *FakeToolkit) Write(filePath string, content string) error {
	err := f.record("write", filePath)
	if err != nil {
		return err
	}
	if !f.Dirs[path.Dir(filePath)] {
		return fmt.Errorf("upload: %s: No such file or directory", filePath)
	}
	f.Files[filePath] = content
	return nil
}

func (f *FakeToolkit) Move(src string, dest string) error {
	err := f.record("mv", src, dest)
	if err != nil {
		return err
	}
	content, found := f.Files[src]
	if !found {
		return fmt.Errorf("mv: %s: No such file or directory", src)
	}
	delete(f.Files, src)
	f.Files[dest] = content
	return nil
}

func (f *FakeToolkit) Sh(command string) (string, error) {
	err := f.record("sh", command)
	if err != nil {
		return "", err
	}
	return "", nil
}

func (f *FakeToolkit) Chmod(mode os.FileMode, filePath string) error {
	err := f.record("chmod", fmt.Sprintf("%#o", uint32(mode)), filePath)
	if err != nil {
		return err
	}
	f.Modes[filePath] = mode
	return nil
}

func (f *FakeToolkit) CpA(src string, dest string) error {
	return f.record("cp-a", src, dest)
}

func (f *FakeToolkit) CopyIn(localDir string, remoteDir string) error {
	err := f.record("copy-in", localDir, remoteDir)
	if err != nil {
		return err
	}
	f.AddDir(path.Join(remoteDir, path.Base(localDir)))
	return nil
}

func (f *FakeToolkit) SELinuxRelabel(specFile string, filePath string) error {
	return f.record("selinux-relabel", specFile, filePath)
}

func (f *FakeToolkit) Shutdown() error {
	err := f.record("shutdown")
	if err != nil {
		return err
	}
	f.ShutdownCalled = true
	return nil
}

func (f *FakeToolkit) Close() error {
	f.CloseCount++
	return f.record("close")
}
