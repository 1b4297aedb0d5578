// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package resources

import (
	"embed"
)

const (
	// Assets
	AssetsDefaultConfigFile = "assets/default-config.yaml"
)

//go:embed assets
var ResourcesFS embed.FS
