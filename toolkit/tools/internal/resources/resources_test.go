// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package resources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsEmbedded(t *testing.T) {
	content, err := ResourcesFS.ReadFile(AssetsDefaultConfigFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "name: copy-in")
	assert.Contains(t, string(content), "systemctl set-default multi-user.target")
}
