// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package guestfish

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	pidVariableName = "GUESTFISH_PID"
)

// parseListenOutput extracts the server pid from the output of 'guestfish --listen', which
// looks like "GUESTFISH_PID=4513; export GUESTFISH_PID".
func parseListenOutput(output string) (int, error) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		value, found := strings.CutPrefix(line, pidVariableName+"=")
		if !found {
			continue
		}

		value, _, _ = strings.Cut(value, ";")
		pid, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || pid <= 0 {
			return 0, fmt.Errorf("invalid guestfish server pid (%s)", value)
		}

		return pid, nil
	}

	return 0, fmt.Errorf("guestfish server did not report its pid (output: %q)", output)
}

func parseLines(output string) []string {
	lines := []string(nil)
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func parseBool(output string) (bool, error) {
	switch strings.TrimSpace(output) {
	case "true":
		return true, nil

	case "false":
		return false, nil

	default:
		return false, fmt.Errorf("unexpected boolean value (%q)", output)
	}
}

// parseHashtable parses guestfish's rendering of a hashtable, which is one "key: value" pair
// per line.
func parseHashtable(output string) (map[string]string, error) {
	table := make(map[string]string)
	for _, line := range parseLines(output) {
		key, value, found := strings.Cut(line, ": ")
		if !found {
			return nil, fmt.Errorf("unexpected hashtable line (%q)", line)
		}
		table[key] = value
	}
	return table, nil
}
