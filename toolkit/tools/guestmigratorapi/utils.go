// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package guestmigratorapi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type HasIsValid interface {
	IsValid() error
}

// UnmarshalAndValidateYaml decodes the YAML, fills in the default value of every field that
// was left unset and then validates the result.
func UnmarshalAndValidateYaml[ValueType HasIsValid](yamlData []byte, value ValueType) error {
	err := UnmarshalYamlWithDefaults(yamlData, value)
	if err != nil {
		return err
	}

	err = value.IsValid()
	if err != nil {
		return err
	}

	return nil
}

// UnmarshalYamlWithDefaults decodes the YAML and fills in the default value of every field that
// was left unset, without validating the result.
func UnmarshalYamlWithDefaults[ValueType any](yamlData []byte, value ValueType) error {
	err := UnmarshalYaml(yamlData, value)
	if err != nil {
		return err
	}

	err = defaults.Set(value)
	if err != nil {
		return fmt.Errorf("failed to apply default values:\n%w", err)
	}

	return nil
}

func UnmarshalYaml[ValueType any](yamlData []byte, value ValueType) error {
	reader := bytes.NewReader(yamlData)
	decoder := yaml.NewDecoder(reader)

	// Ensure unknown fields result in an error.
	decoder.KnownFields(true)

	err := decoder.Decode(value)
	if errors.Is(err, io.EOF) {
		// An empty document means "use the defaults".
		return nil
	}
	if err != nil {
		return err
	}

	return nil
}

// validateGuestPath checks that a path names an absolute, normalized location inside the guest.
func validateGuestPath(guestPath string) error {
	if guestPath == "" {
		return fmt.Errorf("path cannot be empty")
	}

	if !strings.HasPrefix(guestPath, "/") {
		return fmt.Errorf("path (%s) must be absolute", guestPath)
	}

	if path.Clean(guestPath) != guestPath {
		return fmt.Errorf("path (%s) must be normalized", guestPath)
	}

	if !govalidator.IsUnixFilePath(guestPath) {
		return fmt.Errorf("path (%s) is not a valid file path", guestPath)
	}

	return nil
}
