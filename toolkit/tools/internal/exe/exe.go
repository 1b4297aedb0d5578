// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package exe defines QoL functions to simplify and unify creating executables
package exe

import (
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/logger"
	"gopkg.in/alecthomas/kingpin.v2"
)

// ToolVersion is inserted during compilation via a linker flag.
var ToolVersion = ""

func SetupLogFlags(k *kingpin.Application) *logger.LogFlags {
	lf := &logger.LogFlags{}
	lf.LogColor = k.Flag(logger.ColorFlag, logger.ColorFlagHelp).PlaceHolder(logger.ColorsPlaceholder).Enum(logger.Colors()...)
	lf.LogFile = k.Flag(logger.FileFlag, logger.FileFlagHelp).String()
	lf.LogLevel = k.Flag(logger.LevelsFlag, logger.LevelsHelp).PlaceHolder(logger.LevelsPlaceholder).Enum(logger.Levels()...)
	return lf
}

// SetupVersionFlag adds --version to the application.
func SetupVersionFlag(k *kingpin.Application) {
	k.Version(ToolVersion)
}
