// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package guestmigratorlib

import (
	"context"
	"fmt"

	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/guestmigratorapi"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/guestfish"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrBootLoaderConfigRead  = NewMigrationError("BootLoader:ReadConfig", "failed to read boot loader config")
	ErrBootLoaderConfigWrite = NewMigrationError("BootLoader:WriteConfig", "failed to write boot loader config")
)

// RewriteBootLoaderConfig applies the device renames to a boot loader config file.
func RewriteBootLoaderConfig(content string, renames []guestmigratorapi.DeviceRename) (string, bool) {
	rewritten := applyRenames(content, renames)
	return rewritten, rewritten != content
}

// UpdateBootLoaderConfigs rewrites the boot loader defaults file and every rendered boot menu
// that exists. Each file is handled on its own: a failure is logged and the next file is still
// processed. It returns the files that were (or in a dry run, would be) changed.
func UpdateBootLoaderConfigs(ctx context.Context, toolkit guestfish.Toolkit, config *guestmigratorapi.Config,
	dryRun bool,
) []string {
	_, span := otel.GetTracerProvider().Tracer(OtelTracerName).Start(ctx, "rewrite_bootloader_config")
	defer span.End()

	configPaths := append([]string{config.BootLoader.DefaultConfigPath}, config.BootLoader.MenuConfigPaths...)

	updated := []string(nil)
	for _, configPath := range configPaths {
		changed, err := updateBootLoaderConfig(toolkit, configPath, config.Devices.Renames, dryRun)
		if err != nil {
			logger.Log.Warnf("Could not update boot loader config (%s): %s", configPath, err)
			continue
		}

		if changed {
			updated = append(updated, configPath)
		}
	}

	span.SetAttributes(attribute.StringSlice("updated_files", updated))
	return updated
}

func updateBootLoaderConfig(toolkit guestfish.Toolkit, configPath string, renames []guestmigratorapi.DeviceRename,
	dryRun bool,
) (bool, error) {
	exists, err := toolkit.Exists(configPath)
	if err != nil {
		return false, fmt.Errorf("%w:\nfailed to check whether file exists:\n%w", ErrBootLoaderConfigRead, err)
	}
	if !exists {
		return false, nil
	}

	content, err := toolkit.Read(configPath)
	if err != nil {
		return false, fmt.Errorf("%w:\n%w", ErrBootLoaderConfigRead, err)
	}

	rewritten, changed := RewriteBootLoaderConfig(content, renames)
	if !changed {
		return false, nil
	}

	if dryRun {
		logger.Log.Infof("Dry run: would rename devices in (%s)", configPath)
		return true, nil
	}

	err = toolkit.Write(configPath, rewritten)
	if err != nil {
		return false, fmt.Errorf("%w:\n%w", ErrBootLoaderConfigWrite, err)
	}

	logger.Log.Infof("Renamed devices in (%s)", configPath)
	return true, nil
}
