// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package processes

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/shell"
	"github.com/sirupsen/logrus"
)

var (
	// Example:
	//     revision: 4.93.2
	lsofVersionRegexp = regexp.MustCompile(`(?m)^\s*revision:\s+(\d+)\.(\d+)\.\d+\s*$`)
)

type ProcessRecord struct {
	ProcessId   int
	ProcessName string
	FileName    string
}

// GetProcessesUsingPath returns the processes that have the file (or a file under the directory) open.
func GetProcessesUsingPath(path string) ([]ProcessRecord, error) {
	lsofVersionMajor, lsofVersionMinor, err := getLsofVersion()
	if err != nil {
		return nil, err
	}

	qArgAvailable := lsofVersionMajor > 4 || (lsofVersionMajor == 4 && lsofVersionMinor >= 95)

	args := []string(nil)
	if qArgAvailable {
		args = append(args, "-Q")
	}

	args = append(args, "-F", "pcn", "--", path)

	stdout, _, err := shell.NewExecBuilder("lsof", args...).
		LogLevel(logrus.TraceLevel, logrus.DebugLevel).
		ExecuteCaptureOutput()
	if err != nil {
		if !qArgAvailable {
			// Without -Q, lsof exits with an error when nothing matches.
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list processes using path (%s) with lsof:\n%w", path, err)
	}

	return parseLsofOutput(stdout)
}

func parseLsofOutput(stdout string) ([]ProcessRecord, error) {
	records := []ProcessRecord(nil)
	record := ProcessRecord{
		ProcessId: -1,
	}

	scanner := bufio.NewScanner(strings.NewReader(stdout))
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) <= 0 {
			continue
		}

		prefix := line[0]
		value := line[1:]
		switch prefix {
		case 'p':
			if record.ProcessId >= 0 {
				records = append(records, record)
			}

			processId, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("failed to parse process ID string (%s):\n%w", value, err)
			}

			record = ProcessRecord{
				ProcessId: processId,
			}

		case 'c':
			record.ProcessName = value

		case 'n':
			record.FileName = value
		}
	}

	if record.ProcessId >= 0 {
		records = append(records, record)
	}

	return records, nil
}

func getLsofVersion() (int, int, error) {
	_, stderr, err := shell.NewExecBuilder("lsof", "-v").
		LogLevel(logrus.TraceLevel, logrus.TraceLevel).
		ExecuteCaptureOutput()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get lsof's version:\n%w", err)
	}

	return parseLsofVersion(stderr)
}

func parseLsofVersion(output string) (int, int, error) {
	match := lsofVersionRegexp.FindStringSubmatch(output)
	if match == nil {
		return 0, 0, fmt.Errorf("failed to parse lsof version string")
	}

	major, _ := strconv.Atoi(match[1])
	minor, _ := strconv.Atoi(match[2])

	return major, minor, nil
}
