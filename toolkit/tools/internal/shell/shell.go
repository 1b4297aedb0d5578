// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package shell

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/logger"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const (
	// LogDisabledLevel suppresses logging of a stream entirely.
	LogDisabledLevel logrus.Level = logrus.PanicLevel

	DefaultWarnLogLines = 1500
)

type ExecBuilder struct {
	command          string
	args             []string
	env              []string
	stdoutLogLevel   logrus.Level
	stderrLogLevel   logrus.Level
	stderrFile       string
	errorStderrLines int
	newProcessGroup  bool
}

func NewExecBuilder(command string, args ...string) ExecBuilder {
	return ExecBuilder{
		command:        command,
		args:           args,
		stdoutLogLevel: logrus.DebugLevel,
		stderrLogLevel: logrus.DebugLevel,
	}
}

// LogLevel sets the levels each output line of stdout and stderr is logged at.
func (b ExecBuilder) LogLevel(stdoutLogLevel logrus.Level, stderrLogLevel logrus.Level) ExecBuilder {
	b.stdoutLogLevel = stdoutLogLevel
	b.stderrLogLevel = stderrLogLevel
	return b
}

func (b ExecBuilder) EnvironmentVariables(env []string) ExecBuilder {
	b.env = env
	return b
}

// StderrFile appends stderr to a file instead of reading it through a pipe. Use it for
// commands that leave a daemon behind holding stderr open, since a pipe would then never
// reach EOF.
func (b ExecBuilder) StderrFile(path string) ExecBuilder {
	b.stderrFile = path
	return b
}

// ErrorStderrLines includes the last N lines of stderr in the returned error.
func (b ExecBuilder) ErrorStderrLines(lines int) ExecBuilder {
	b.errorStderrLines = lines
	return b
}

// NewProcessGroup starts the process in its own process group. Children it leaves behind
// stay in that group and can be torn down with KillProcess.
func (b ExecBuilder) NewProcessGroup() ExecBuilder {
	b.newProcessGroup = true
	return b
}

func (b ExecBuilder) Execute() error {
	_, _, err := b.execute(false)
	return err
}

func (b ExecBuilder) ExecuteCaptureOutput() (string, string, error) {
	return b.execute(true)
}

func (b ExecBuilder) execute(capture bool) (string, string, error) {
	logger.Log.Debugf("Executing: %s %s", b.command, strings.Join(b.args, " "))

	cmd := exec.Command(b.command, b.args...)
	if b.env != nil {
		cmd.Env = append(cmd.Environ(), b.env...)
	}

	if b.newProcessGroup {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return "", "", fmt.Errorf("failed to open stdout pipe for (%s):\n%w", b.command, err)
	}

	var stderrPipe io.ReadCloser
	if b.stderrFile != "" {
		stderrFd, err := os.OpenFile(b.stderrFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
		if err != nil {
			return "", "", fmt.Errorf("failed to open stderr file for (%s):\n%w", b.command, err)
		}
		defer stderrFd.Close()

		cmd.Stderr = stderrFd
	} else {
		stderrPipe, err = cmd.StderrPipe()
		if err != nil {
			return "", "", fmt.Errorf("failed to open stderr pipe for (%s):\n%w", b.command, err)
		}
	}

	err = cmd.Start()
	if err != nil {
		return "", "", fmt.Errorf("failed to start (%s):\n%w", b.command, err)
	}

	stdout := &bytes.Buffer{}
	stderrLines := []string(nil)

	wg := sync.WaitGroup{}
	wg.Add(1)

	go func() {
		defer wg.Done()
		if capture {
			readLines(io.TeeReader(stdoutPipe, stdout), b.stdoutLogLevel, nil)
		} else {
			readLines(stdoutPipe, b.stdoutLogLevel, nil)
		}
	}()

	if stderrPipe != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			readLines(stderrPipe, b.stderrLogLevel, &stderrLines)
		}()
	}

	wg.Wait()
	err = cmd.Wait()

	if b.stderrFile != "" {
		stderrLines = readStderrFile(b.stderrFile)
	}

	stderr := strings.Join(stderrLines, "\n")
	if err != nil {
		if b.errorStderrLines > 0 && len(stderrLines) > 0 {
			first := max(0, len(stderrLines)-b.errorStderrLines)
			err = fmt.Errorf("%w:\n%s", err, strings.Join(stderrLines[first:], "\n"))
		}
		return stdout.String(), stderr, fmt.Errorf("command (%s) failed:\n%w", b.command, err)
	}

	return stdout.String(), stderr, nil
}

func readLines(reader io.Reader, level logrus.Level, lines *[]string) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if level != LogDisabledLevel {
			logger.Log.Log(level, line)
		}

		if lines != nil {
			*lines = append(*lines, line)
		}
	}
}

func readStderrFile(path string) []string {
	content, err := os.ReadFile(path)
	if err != nil {
		logger.Log.Debugf("Failed to read stderr file (%s): %s", path, err)
		return nil
	}

	trimmed := strings.TrimRight(string(content), "\n")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}

// Execute runs a command and returns its stdout and stderr.
func Execute(command string, args ...string) (string, string, error) {
	return NewExecBuilder(command, args...).
		ErrorStderrLines(1).
		ExecuteCaptureOutput()
}

// KillProcess sends SIGKILL to pid. When pid runs in a process group other than this tool's
// own, the whole group is killed so that its children go with it.
func KillProcess(pid int) error {
	pgid, err := unix.Getpgid(pid)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get process group of (%d):\n%w", pid, err)
	}

	target := pid
	if pgid != unix.Getpgrp() {
		target = -pgid
	}

	err = unix.Kill(target, unix.SIGKILL)
	if err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("failed to kill process (%d):\n%w", pid, err)
	}
	return nil
}
