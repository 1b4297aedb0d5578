// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package guestmigratorlib

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/guestmigratorapi"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/guestfish"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrMalformedAction      = NewMigrationError("Action:Malformed", "malformed remediation action")
	ErrCriticalActionFailed = NewMigrationError("Action:CriticalFailed", "critical remediation action failed")
)

// remediationStep is an action bound to its typed arguments.
type remediationStep interface {
	run(toolkit guestfish.Toolkit) error
}

type copyInStep struct {
	localDir  string
	remoteDir string
}

func (s copyInStep) run(toolkit guestfish.Toolkit) error {
	return toolkit.CopyIn(s.localDir, s.remoteDir)
}

type shStep struct {
	command string
}

func (s shStep) run(toolkit guestfish.Toolkit) error {
	output, err := toolkit.Sh(s.command)
	if output != "" {
		logger.Log.Debugf("Output of (%s):\n%s", s.command, output)
	}
	return err
}

type cpAStep struct {
	src  string
	dest string
}

func (s cpAStep) run(toolkit guestfish.Toolkit) error {
	return toolkit.CpA(s.src, s.dest)
}

type chmodStep struct {
	mode os.FileMode
	path string
}

func (s chmodStep) run(toolkit guestfish.Toolkit) error {
	return toolkit.Chmod(s.mode, s.path)
}

type umountStep struct {
	path string
}

func (s umountStep) run(toolkit guestfish.Toolkit) error {
	return toolkit.Umount(s.path)
}

type selinuxRelabelStep struct {
	specFile string
	path     string
}

func (s selinuxRelabelStep) run(toolkit guestfish.Toolkit) error {
	return toolkit.SELinuxRelabel(s.specFile, s.path)
}

func newRemediationStep(action guestmigratorapi.Action) (remediationStep, error) {
	err := action.IsValid()
	if err != nil {
		return nil, fmt.Errorf("%w (%s):\n%w", ErrMalformedAction, action, err)
	}

	args := action.Args
	switch action.Name {
	case guestmigratorapi.ActionNameCopyIn:
		return copyInStep{localDir: args[0], remoteDir: args[1]}, nil

	case guestmigratorapi.ActionNameSh:
		return shStep{command: args[0]}, nil

	case guestmigratorapi.ActionNameCpA:
		return cpAStep{src: args[0], dest: args[1]}, nil

	case guestmigratorapi.ActionNameChmod:
		mode, err := guestmigratorapi.ParseFileMode(args[0])
		if err != nil {
			return nil, fmt.Errorf("%w (%s):\n%w", ErrMalformedAction, action, err)
		}
		return chmodStep{mode: mode, path: args[1]}, nil

	case guestmigratorapi.ActionNameUmount:
		return umountStep{path: args[0]}, nil

	case guestmigratorapi.ActionNameSELinuxRelabel:
		return selinuxRelabelStep{specFile: args[0], path: args[1]}, nil

	default:
		return nil, fmt.Errorf("%w: unknown action name (%s)", ErrMalformedAction, action.Name)
	}
}

// ValidateActions checks every action before anything is run, so that a malformed entry
// cannot leave the guest half remediated.
func ValidateActions(actions []guestmigratorapi.Action) error {
	for i, action := range actions {
		_, err := newRemediationStep(action)
		if err != nil {
			return fmt.Errorf("invalid action at index (%d):\n%w", i, err)
		}
	}
	return nil
}

// ResolveCopyInSources makes relative copy-in sources relative to the config's directory.
func ResolveCopyInSources(actions []guestmigratorapi.Action, baseConfigPath string) []guestmigratorapi.Action {
	resolved := make([]guestmigratorapi.Action, len(actions))
	for i, action := range actions {
		resolved[i] = action
		if action.Name != guestmigratorapi.ActionNameCopyIn || len(action.Args) != 2 ||
			filepath.IsAbs(action.Args[0]) {
			continue
		}

		resolved[i] = guestmigratorapi.NewAction(action.Name,
			filepath.Join(baseConfigPath, action.Args[0]), action.Args[1])
	}
	return resolved
}

// BuildActionList appends the boot mode specific steps to the base list: the EFI system
// partition is unmounted when the guest boots with UEFI and the partition was mounted, and
// the relabel of each path always comes last.
func BuildActionList(base []guestmigratorapi.Action, bootMode BootMode, mountResult MountResult,
	efiMountPoint string, fileContextsPath string, relabelPaths []string,
) []guestmigratorapi.Action {
	actions := make([]guestmigratorapi.Action, 0, len(base)+1+len(relabelPaths))
	actions = append(actions, base...)

	if bootMode == BootModeUefi && mountResult.Contains(efiMountPoint) {
		actions = append(actions, guestmigratorapi.NewAction(guestmigratorapi.ActionNameUmount, efiMountPoint))
	}

	for _, relabelPath := range relabelPaths {
		actions = append(actions,
			guestmigratorapi.NewAction(guestmigratorapi.ActionNameSELinuxRelabel, fileContextsPath, relabelPath))
	}

	return actions
}

// RunActions runs the actions in order. The first failing critical action aborts the run;
// a failing non-critical action is logged and skipped.
func RunActions(ctx context.Context, toolkit guestfish.Toolkit, actions []guestmigratorapi.Action) (err error) {
	_, span := otel.GetTracerProvider().Tracer(OtelTracerName).Start(ctx, "run_actions")
	span.SetAttributes(attribute.Int("action_count", len(actions)))
	defer span.End()

	err = ValidateActions(actions)
	if err != nil {
		return err
	}

	for i, action := range actions {
		step, _ := newRemediationStep(action)

		logger.Log.Infof("Running action (%d/%d): %s", i+1, len(actions), action)
		err := step.run(toolkit)
		if err == nil {
			continue
		}

		if action.Critical() {
			return fmt.Errorf("%w (%s):\n%w", ErrCriticalActionFailed, action, err)
		}

		logger.Log.Warnf("Non-critical action (%s) failed: %s", action, err)
	}

	return nil
}
