// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package guestfish

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/file"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/logger"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/shell"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/tarutils"
	"github.com/sirupsen/logrus"
)

const (
	guestfishBinary = "guestfish"
	serverLogFile   = "guestfish-server.log"

	DefaultImageFormat = "qcow2"
)

type Options struct {
	ImageFile string
	// Format is the disk image format passed to the appliance, e.g. qcow2 or raw.
	Format string
	// ReadOnly attaches the disk read-only and makes Mount use mount-ro.
	ReadOnly bool
	Network  bool
	// Debug enables libguestfs trace and verbose output.
	Debug bool
}

// runFunc executes guestfish with the given environment and arguments and returns stdout.
type runFunc func(env []string, args ...string) (string, error)

// listenFunc starts the guestfish server and returns stdout once the foreground process exits.
// The server's stderr goes to logFile.
type listenFunc func(env []string, logFile string, args ...string) (string, error)

type processRunner struct {
	listen listenFunc
	run    runFunc
	kill   func(pid int) error
}

var hostRunner = processRunner{
	listen: listenGuestfish,
	run:    runGuestfish,
	kill:   shell.KillProcess,
}

// Guestfish is a Toolkit backed by a guestfish server started with --listen. Every
// operation is a separate 'guestfish --remote' invocation against that server.
type Guestfish struct {
	pid      int
	readOnly bool
	debug    bool
	tempDir  string
	env      []string
	runner   processRunner

	closeOnce sync.Once
	closeErr  error
}

var _ Toolkit = (*Guestfish)(nil)

// Launch starts a guestfish server, attaches the image and boots the appliance.
func Launch(options Options) (*Guestfish, error) {
	return launch(options, hostRunner)
}

func launch(options Options, runner processRunner) (*Guestfish, error) {
	if options.Format == "" {
		options.Format = DefaultImageFormat
	}

	env := []string{"LIBGUESTFS_BACKEND=direct"}
	if options.Debug {
		env = append(env, "LIBGUESTFS_TRACE=1", "LIBGUESTFS_DEBUG=1")
	}

	args := []string{"--listen"}
	if options.ReadOnly {
		args = append(args, "--ro")
	} else {
		args = append(args, "--rw")
	}
	if options.Network {
		args = append(args, "--network")
	}
	args = append(args, "--format="+options.Format, "-a", options.ImageFile)

	tempDir, err := os.MkdirTemp("", "guestfish-")
	if err != nil {
		return nil, fmt.Errorf("failed to create guestfish transfer directory:\n%w", err)
	}

	pid, err := startServer(runner, env, tempDir, args)
	if err != nil {
		removeErr := os.RemoveAll(tempDir)
		if removeErr != nil {
			logger.Log.Warnf("Failed to remove guestfish transfer directory (%s): %s", tempDir, removeErr)
		}
		return nil, fmt.Errorf("failed to start guestfish server for image (%s):\n%w", options.ImageFile, err)
	}

	g := &Guestfish{
		pid:      pid,
		readOnly: options.ReadOnly,
		debug:    options.Debug,
		tempDir:  tempDir,
		env:      env,
		runner:   runner,
	}

	logger.Log.Debugf("Started guestfish server (pid %d)", pid)

	_, err = g.remote("run")
	if err != nil {
		_ = g.Close()
		return nil, fmt.Errorf("failed to launch libguestfs appliance:\n%w", err)
	}

	return g, nil
}

func startServer(runner processRunner, env []string, tempDir string, args []string) (int, error) {
	output, err := runner.listen(env, filepath.Join(tempDir, serverLogFile), args...)
	if err != nil {
		return 0, err
	}

	return parseListenOutput(output)
}

// listenGuestfish runs 'guestfish --listen'. The server it forks keeps stderr open for its
// whole life, so stderr goes to a file rather than a pipe that would never reach EOF. The
// new process group lets Close kill the server and its appliance together.
func listenGuestfish(env []string, logFile string, args ...string) (string, error) {
	stdout, _, err := shell.NewExecBuilder(guestfishBinary, args...).
		EnvironmentVariables(env).
		LogLevel(logrus.TraceLevel, logrus.DebugLevel).
		StderrFile(logFile).
		ErrorStderrLines(1).
		NewProcessGroup().
		ExecuteCaptureOutput()
	return stdout, err
}

func runGuestfish(env []string, args ...string) (string, error) {
	stdout, _, err := shell.NewExecBuilder(guestfishBinary, args...).
		EnvironmentVariables(env).
		LogLevel(logrus.TraceLevel, logrus.DebugLevel).
		ErrorStderrLines(1).
		ExecuteCaptureOutput()
	return stdout, err
}

func (g *Guestfish) remote(command string, args ...string) (string, error) {
	fullArgs := append([]string{"--remote=" + strconv.Itoa(g.pid), "--", command}, args...)
	return g.runner.run(g.env, fullArgs...)
}

func (g *Guestfish) ListDevices() ([]string, error) {
	output, err := g.remote("list-devices")
	if err != nil {
		return nil, err
	}
	return parseLines(output), nil
}

func (g *Guestfish) InspectOS() ([]string, error) {
	output, err := g.remote("inspect-os")
	if err != nil {
		return nil, err
	}
	return parseLines(output), nil
}

func (g *Guestfish) InspectGetMountpoints(root string) (map[string]string, error) {
	output, err := g.remote("inspect-get-mountpoints", root)
	if err != nil {
		return nil, err
	}
	return parseHashtable(output)
}

func (g *Guestfish) Mount(device string, mountPoint string) error {
	command := "mount"
	if g.readOnly {
		command = "mount-ro"
	}
	_, err := g.remote(command, device, mountPoint)
	return err
}

func (g *Guestfish) Umount(path string) error {
	_, err := g.remote("umount", path)
	return err
}

func (g *Guestfish) Exists(path string) (bool, error) {
	output, err := g.remote("exists", path)
	if err != nil {
		return false, err
	}
	return parseBool(output)
}

func (g *Guestfish) IsDir(path string) (bool, error) {
	output, err := g.remote("is-dir", path)
	if err != nil {
		return false, err
	}
	return parseBool(output)
}

func (g *Guestfish) Read(path string) (string, error) {
	localFile, err := g.transferFile()
	if err != nil {
		return "", err
	}
	defer os.Remove(localFile)

	_, err = g.remote("download", path, localFile)
	if err != nil {
		return "", err
	}

	return file.Read(localFile)
}

func (g *Guestfish) Write(path string, content string) error {
	localFile, err := g.transferFile()
	if err != nil {
		return err
	}
	defer os.Remove(localFile)

	err = file.Write(content, localFile)
	if err != nil {
		return fmt.Errorf("failed to stage file for upload:\n%w", err)
	}

	_, err = g.remote("upload", localFile, path)
	return err
}

func (g *Guestfish) Move(src string, dest string) error {
	_, err := g.remote("mv", src, dest)
	return err
}

func (g *Guestfish) Sh(command string) (string, error) {
	return g.remote("sh", command)
}

func (g *Guestfish) Chmod(mode os.FileMode, path string) error {
	_, err := g.remote("chmod", fmt.Sprintf("%#o", uint32(mode)), path)
	return err
}

func (g *Guestfish) CpA(src string, dest string) error {
	_, err := g.remote("cp-a", src, dest)
	return err
}

func (g *Guestfish) CopyIn(localDir string, remoteDir string) error {
	isDir, err := file.DirExists(localDir)
	if err != nil {
		return fmt.Errorf("failed to check copy-in source (%s):\n%w", localDir, err)
	}
	if !isDir {
		return fmt.Errorf("copy-in source (%s) is not a directory", localDir)
	}

	archiveFile := filepath.Join(g.tempDir, "copy-in.tar.gz")
	defer os.Remove(archiveFile)

	err = tarutils.CreateTarGzArchive(localDir, archiveFile)
	if err != nil {
		return fmt.Errorf("failed to archive copy-in source (%s):\n%w", localDir, err)
	}

	_, err = g.remote("tar-in", archiveFile, remoteDir, "compress:gzip")
	return err
}

func (g *Guestfish) SELinuxRelabel(specFile string, path string) error {
	_, err := g.remote("selinux-relabel", specFile, path)
	return err
}

func (g *Guestfish) Shutdown() error {
	_, err := g.remote("shutdown")
	if err != nil {
		return fmt.Errorf("failed to shut down libguestfs appliance:\n%w", err)
	}

	return nil
}

func (g *Guestfish) Close() error {
	g.closeOnce.Do(func() {
		_, exitErr := g.remote("exit")
		if exitErr != nil {
			logger.Log.Debugf("Guestfish server did not exit cleanly, killing it: %s", exitErr)
			g.closeErr = g.runner.kill(g.pid)
		}

		if g.debug {
			g.logServerOutput()
		}

		removeErr := os.RemoveAll(g.tempDir)
		if removeErr != nil && g.closeErr == nil {
			g.closeErr = fmt.Errorf("failed to remove guestfish transfer directory:\n%w", removeErr)
		}
	})
	return g.closeErr
}

func (g *Guestfish) logServerOutput() {
	logPath := filepath.Join(g.tempDir, serverLogFile)
	content, err := file.Read(logPath)
	if err != nil {
		logger.Log.Debugf("Failed to read guestfish server log (%s): %s", logPath, err)
		return
	}

	for _, line := range parseLines(content) {
		logger.Log.Debugf("guestfish server: %s", line)
	}
}

func (g *Guestfish) transferFile() (string, error) {
	tempFile, err := os.CreateTemp(g.tempDir, "transfer-")
	if err != nil {
		return "", fmt.Errorf("failed to create transfer file:\n%w", err)
	}

	err = tempFile.Close()
	if err != nil {
		return "", err
	}

	return tempFile.Name(), nil
}
