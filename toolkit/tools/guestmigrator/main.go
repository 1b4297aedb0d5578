// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Tool to migrate a guest disk image to a new hypervisor platform

package main

import (
	"context"
	"log"
	"maps"

	"github.com/alecthomas/kong"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/exekong"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/guestfish"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/logger"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/telemetry"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/pkg/guestmigratorlib"
)

type GuestMigratorCmd struct {
	Image      string           `arg:"" name:"image" help:"Path of the guest disk image to migrate in place." type:"existingfile"`
	ConfigFile string           `name:"config" help:"Path of the migration config file. The built-in config is used when not set."`
	Format     string           `name:"format" help:"Format of the disk image." default:"${defaultformat}"`
	Debug      bool             `name:"debug" help:"Enable libguestfs trace and verbose output."`
	DryRun     bool             `name:"dry-run" help:"Open the image read-only and report what would change without changing it."`
	Version    kong.VersionFlag `name:"version" help:"Print the version and exit."`
	exekong.LogFlags
	exekong.TelemetryFlags
}

func main() {
	ctx := context.Background()

	cli := &GuestMigratorCmd{}

	vars := kong.Vars{
		"defaultformat": guestfish.DefaultImageFormat,
		"version":       guestmigratorlib.ToolVersion,
	}
	maps.Copy(vars, exekong.KongVars)

	_ = kong.Parse(cli,
		vars,
		kong.HelpOptions{
			Compact:   true,
			FlagsLast: true,
		},
		kong.UsageOnError())

	loggerFlags := cli.LogFlags.AsLoggerFlags()
	logger.InitBestEffort(&loggerFlags)

	err := telemetry.InitTelemetry(cli.DisableTelemetry, guestmigratorlib.ToolVersion)
	if err != nil {
		logger.Log.Warnf("Failed to initialize telemetry: %s", err)
	}

	err = guestmigratorlib.MigrateImageWithConfigFile(ctx, cli.ConfigFile, guestmigratorlib.MigrationOptions{
		ImageFile:   cli.Image,
		ImageFormat: cli.Format,
		Debug:       cli.Debug,
		DryRun:      cli.DryRun,
		Network:     true,
	})

	shutdownErr := telemetry.ShutdownTelemetry(ctx)
	if shutdownErr != nil {
		logger.Log.Warnf("Failed to flush telemetry: %s", shutdownErr)
	}

	if err != nil {
		log.Fatalf("image migration failed:\n%v", err)
	}
}
