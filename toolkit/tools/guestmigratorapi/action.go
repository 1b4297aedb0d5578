// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package guestmigratorapi

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type ActionName string

const (
	// copy-in <local-dir> <guest-dir>
	ActionNameCopyIn ActionName = "copy-in"
	// sh <command>
	ActionNameSh ActionName = "sh"
	// cp-a <guest-src> <guest-dest>
	ActionNameCpA ActionName = "cp-a"
	// chmod <octal-mode> <guest-path>
	ActionNameChmod ActionName = "chmod"
	// umount <guest-path>
	ActionNameUmount ActionName = "umount"
	// selinux-relabel <file-contexts> <guest-path>
	ActionNameSELinuxRelabel ActionName = "selinux-relabel"
)

var actionArgCounts = map[ActionName]int{
	ActionNameCopyIn:         2,
	ActionNameSh:             1,
	ActionNameCpA:            2,
	ActionNameChmod:          2,
	ActionNameUmount:         1,
	ActionNameSELinuxRelabel: 2,
}

func (n ActionName) IsValid() error {
	_, found := actionArgCounts[n]
	if !found {
		return fmt.Errorf("unknown action name (%s)", n)
	}
	return nil
}

// Critical reports whether a failure of this kind of action must abort the migration.
// Unmounts and relabels are expected to fail on some guests and only produce a warning.
func (n ActionName) Critical() bool {
	switch n {
	case ActionNameUmount, ActionNameSELinuxRelabel:
		return false

	default:
		return true
	}
}

// Action is a single remediation step applied to the mounted guest.
type Action struct {
	Name ActionName `yaml:"name" json:"name"`
	Args []string   `yaml:"args" json:"args,omitempty"`
}

func NewAction(name ActionName, args ...string) Action {
	return Action{
		Name: name,
		Args: args,
	}
}

func (a *Action) IsValid() error {
	err := a.Name.IsValid()
	if err != nil {
		return err
	}

	expectedArgCount := actionArgCounts[a.Name]
	if len(a.Args) != expectedArgCount {
		return fmt.Errorf("action (%s) takes %d argument(s) but got %d", a.Name, expectedArgCount, len(a.Args))
	}

	switch a.Name {
	case ActionNameChmod:
		_, err := ParseFileMode(a.Args[0])
		if err != nil {
			return err
		}

		err = validateGuestPath(a.Args[1])
		if err != nil {
			return fmt.Errorf("invalid chmod path:\n%w", err)
		}

	case ActionNameSh:
		if strings.TrimSpace(a.Args[0]) == "" {
			return fmt.Errorf("sh command may not be empty")
		}

	case ActionNameCopyIn:
		if a.Args[0] == "" {
			return fmt.Errorf("copy-in source directory may not be empty")
		}

		err := validateGuestPath(a.Args[1])
		if err != nil {
			return fmt.Errorf("invalid copy-in destination:\n%w", err)
		}

	case ActionNameCpA, ActionNameSELinuxRelabel:
		for _, arg := range a.Args {
			err := validateGuestPath(arg)
			if err != nil {
				return fmt.Errorf("invalid %s argument:\n%w", a.Name, err)
			}
		}

	case ActionNameUmount:
		err := validateGuestPath(a.Args[0])
		if err != nil {
			return fmt.Errorf("invalid umount path:\n%w", err)
		}
	}

	return nil
}

func (a Action) Critical() bool {
	return a.Name.Critical()
}

func (a Action) String() string {
	return strings.Join(append([]string{string(a.Name)}, a.Args...), " ")
}

// ParseFileMode parses an octal permission string such as "0755".
func ParseFileMode(value string) (os.FileMode, error) {
	mode, err := strconv.ParseUint(value, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid file mode (%s): must be an octal number", value)
	}

	if mode > 0o7777 {
		return 0, fmt.Errorf("invalid file mode (%s): out of range", value)
	}

	return os.FileMode(mode), nil
}
