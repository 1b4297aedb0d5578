// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package guestmigratorlib

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/guestmigratorapi"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/resources"
)

var (
	ErrInvalidConfig         = NewMigrationError("Config:Invalid", "invalid migration config")
	ErrReadConfig            = NewMigrationError("Config:Read", "failed to read migration config")
	ErrGetAbsoluteConfigPath = NewMigrationError("Config:GetAbsoluteConfigPath", "failed to get absolute path of config file directory")
)

// LoadConfigFile reads a config file and returns it along with the directory that relative
// paths in it are resolved against.
func LoadConfigFile(configFile string) (*guestmigratorapi.Config, string, error) {
	yamlData, err := os.ReadFile(configFile)
	if err != nil {
		return nil, "", fmt.Errorf("%w (%s):\n%w", ErrReadConfig, configFile, err)
	}

	config, err := parseConfig(yamlData)
	if err != nil {
		return nil, "", fmt.Errorf("%w (%s)", err, configFile)
	}

	baseConfigPath, err := filepath.Abs(filepath.Dir(configFile))
	if err != nil {
		return nil, "", fmt.Errorf("%w:\n%w", ErrGetAbsoluteConfigPath, err)
	}

	return config, baseConfigPath, nil
}

// LoadDefaultConfig returns the built-in config. Its relative paths are resolved against the
// directory of the running executable.
func LoadDefaultConfig() (*guestmigratorapi.Config, string, error) {
	yamlData, err := resources.ResourcesFS.ReadFile(resources.AssetsDefaultConfigFile)
	if err != nil {
		return nil, "", fmt.Errorf("%w (built-in):\n%w", ErrReadConfig, err)
	}

	config, err := parseConfig(yamlData)
	if err != nil {
		return nil, "", fmt.Errorf("%w (built-in)", err)
	}

	executable, err := os.Executable()
	if err != nil {
		return nil, "", fmt.Errorf("%w:\n%w", ErrGetAbsoluteConfigPath, err)
	}

	return config, filepath.Dir(executable), nil
}

func parseConfig(yamlData []byte) (*guestmigratorapi.Config, error) {
	config := &guestmigratorapi.Config{}
	err := guestmigratorapi.UnmarshalYamlWithDefaults(yamlData, config)
	if err != nil {
		return nil, fmt.Errorf("%w:\n%w", ErrInvalidConfig, err)
	}

	err = ValidateConfig(config)
	if err != nil {
		return nil, err
	}

	return config, nil
}

// ValidateConfig reports malformed actions with ErrMalformedAction and every other problem
// with ErrInvalidConfig.
func ValidateConfig(config *guestmigratorapi.Config) error {
	err := ValidateActions(config.Actions)
	if err != nil {
		return err
	}

	err = config.IsValid()
	if err != nil {
		return fmt.Errorf("%w:\n%w", ErrInvalidConfig, err)
	}

	return nil
}
