// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package guestmigratorlib

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/guestmigratorapi"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/guestfish"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	OtelTracerName = "guestmigratorlib"
)

var (
	ErrInvalidParameters = NewMigrationError("Validation:InvalidParameters", "invalid parameters")
)

// ToolVersion specifies the version of the guest migrator tool.
// The value of this string is inserted during compilation via a linker flag.
var ToolVersion = ""

type toolkitLauncher func(options guestfish.Options) (guestfish.Toolkit, error)

func launchGuestfish(options guestfish.Options) (guestfish.Toolkit, error) {
	return guestfish.Launch(options)
}

// MigrateImageWithConfigFile migrates an image using the config file, or the built-in
// config when configFile is empty.
func MigrateImageWithConfigFile(ctx context.Context, configFile string, options MigrationOptions) error {
	var (
		config         *guestmigratorapi.Config
		baseConfigPath string
		err            error
	)

	if configFile == "" {
		config, baseConfigPath, err = LoadDefaultConfig()
	} else {
		config, baseConfigPath, err = LoadConfigFile(configFile)
	}
	if err != nil {
		return err
	}

	return MigrateImage(ctx, baseConfigPath, config, options)
}

func MigrateImage(ctx context.Context, baseConfigPath string, config *guestmigratorapi.Config,
	options MigrationOptions,
) error {
	return migrateImage(ctx, baseConfigPath, config, options, launchGuestfish)
}

func migrateImage(ctx context.Context, baseConfigPath string, config *guestmigratorapi.Config,
	options MigrationOptions, launch toolkitLauncher,
) (err error) {
	runId := uuid.NewString()

	ctx, span := otel.GetTracerProvider().Tracer(OtelTracerName).Start(ctx, "migrate_image")
	span.SetAttributes(
		attribute.String("run_id", runId),
		attribute.Bool("dry_run", options.DryRun),
	)
	defer func() {
		if err != nil {
			errorNames := []string{"Unset"} // default
			if namedErrors := GetAllMigrationErrors(err); len(namedErrors) > 0 {
				errorNames = make([]string, len(namedErrors))
				for i, namedError := range namedErrors {
					errorNames[i] = namedError.Name()
				}
			}
			span.SetAttributes(
				attribute.StringSlice("errors.name", errorNames),
			)
			span.SetStatus(codes.Error, errorNames[len(errorNames)-1])
		}
		span.End()
	}()

	logger.Log.WithField("runId", runId).Infof("Migrating image (%s)", options.ImageFile)

	err = options.IsValid()
	if err != nil {
		return fmt.Errorf("%w:\n%w", ErrInvalidParameters, err)
	}

	err = ValidateConfig(config)
	if err != nil {
		return err
	}

	LogHostInfo()

	err = CheckHostPrerequisites(options.ImageFile, options.DryRun)
	if err != nil {
		return err
	}

	options.ImageFormat, err = ResolveImageFormat(options.ImageFile, options.ImageFormat)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String("image_format", options.ImageFormat))

	toolkit, err := launch(options.toolkitOptions())
	if err != nil {
		return fmt.Errorf("%w (%s):\n%w", ErrLaunchToolkit, options.ImageFile, err)
	}

	session := newMigrationSession(toolkit)
	defer session.Close()

	err = migrateGuest(ctx, session, baseConfigPath, config, options.DryRun)
	if err != nil {
		return err
	}

	err = session.CleanClose()
	if err != nil {
		return err
	}

	if options.DryRun {
		logger.Log.Infof("Dry run complete, image (%s) was not modified", options.ImageFile)
	} else {
		logger.Log.Infof("Success! Image (%s) migrated", options.ImageFile)
	}
	return nil
}

func migrateGuest(ctx context.Context, session *migrationSession, baseConfigPath string,
	config *guestmigratorapi.Config, dryRun bool,
) error {
	toolkit := session.toolkit

	availability, err := ResolveAvailability(toolkit)
	if err != nil {
		return err
	}

	mountResult, err := MountGuestFilesystems(ctx, toolkit, availability, config.SecondaryStorage)
	if err != nil {
		return err
	}

	targetOs, identified := identifyGuestOS(toolkit)
	if identified {
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("guest_os", string(targetOs)))
	}

	bootMode := DetectBootMode(ctx, toolkit, config.BootLoader)

	// Persisted references are fixed before any remediation action runs.
	_, err = UpdateFstab(ctx, toolkit, availability, config, dryRun)
	if err != nil {
		logger.Log.Warnf("Could not update filesystem table:\n%s", err)
	}

	UpdateBootLoaderConfigs(ctx, toolkit, config, dryRun)

	policyType := GetSELinuxPolicyType(toolkit, config.SELinux)

	actions := BuildActionList(ResolveCopyInSources(config.Actions, baseConfigPath), bootMode, mountResult,
		config.BootLoader.EfiMountPoint, guestmigratorapi.FileContextsPath(policyType), config.SELinux.RelabelPaths)

	if dryRun {
		for i, action := range actions {
			logger.Log.Infof("Dry run: would run action (%d/%d): %s", i+1, len(actions), action)
		}
		return nil
	}

	err = RunActions(ctx, toolkit, actions)
	if err != nil {
		return err
	}

	return nil
}
