// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package guestmigratorlib

import (
	"context"

	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/guestmigratorapi"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/guestfish"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

type BootMode string

const (
	BootModeUefi   BootMode = "uefi"
	BootModeLegacy BootMode = "legacy"
)

// DetectBootMode inspects the mounted guest to decide how it boots. It never fails: a
// toolkit error counts as missing evidence and the fallback is legacy BIOS.
func DetectBootMode(ctx context.Context, toolkit guestfish.Toolkit, bootLoader guestmigratorapi.BootLoader) BootMode {
	_, span := otel.GetTracerProvider().Tracer(OtelTracerName).Start(ctx, "detect_boot_mode")
	defer span.End()

	bootMode := detectBootMode(toolkit, bootLoader)
	span.SetAttributes(attribute.String("boot_mode", string(bootMode)))
	return bootMode
}

func detectBootMode(toolkit guestfish.Toolkit, bootLoader guestmigratorapi.BootLoader) BootMode {
	if guestPathExists(toolkit, bootLoader.EfiMountPoint) &&
		guestPathIsDir(toolkit, bootLoader.EfiMountPoint) &&
		guestPathExists(toolkit, bootLoader.EfiPayloadDir()) {
		logger.Log.Infof("Detected boot mode: UEFI")
		return BootModeUefi
	}

	for _, menuConfigPath := range bootLoader.MenuConfigPaths {
		if guestPathExists(toolkit, menuConfigPath) {
			logger.Log.Infof("Detected boot mode: legacy BIOS")
			return BootModeLegacy
		}
	}

	logger.Log.Warnf("Boot mode undetermined, assuming legacy BIOS")
	return BootModeLegacy
}

func guestPathExists(toolkit guestfish.Toolkit, path string) bool {
	exists, err := toolkit.Exists(path)
	if err != nil {
		logger.Log.Debugf("Failed to check whether (%s) exists: %s", path, err)
		return false
	}
	return exists
}

func guestPathIsDir(toolkit guestfish.Toolkit, path string) bool {
	isDir, err := toolkit.IsDir(path)
	if err != nil {
		logger.Log.Debugf("Failed to check whether (%s) is a directory: %s", path, err)
		return false
	}
	return isDir
}
