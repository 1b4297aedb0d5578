// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package guestmigratorlib

import (
	"fmt"
	"slices"

	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/guestfish"
)

var supportedImageFormats = []string{"qcow2", "raw", "vmdk", "vhdx", "vpc", "vdi"}

type MigrationOptions struct {
	ImageFile   string
	ImageFormat string
	// Debug turns on libguestfs trace and verbose output.
	Debug bool
	// DryRun attaches the image read-only and only reports what would change.
	DryRun bool
	// Network gives the appliance network access, which some remediation commands need.
	Network bool
}

func (o *MigrationOptions) IsValid() error {
	if o.ImageFile == "" {
		return fmt.Errorf("image file must be specified")
	}

	if o.ImageFormat != "" && !slices.Contains(supportedImageFormats, o.ImageFormat) {
		return fmt.Errorf("unsupported image format (%s): expected one of %v", o.ImageFormat, supportedImageFormats)
	}

	return nil
}

func (o *MigrationOptions) toolkitOptions() guestfish.Options {
	return guestfish.Options{
		ImageFile: o.ImageFile,
		Format:    o.ImageFormat,
		ReadOnly:  o.DryRun,
		Network:   o.Network,
		Debug:     o.Debug,
	}
}
