// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Parses config files made only of shell-style variable assignments, such as
// /etc/os-release and /etc/selinux/config.

package envfile

import (
	"fmt"

	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/file"
	"gopkg.in/ini.v1"
)

func ParseEnvFile(path string) (map[string]string, error) {
	content, err := file.Read(path)
	if err != nil {
		return nil, err
	}

	return ParseEnv(content)
}

func ParseEnv(content string) (map[string]string, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:        true,
		UnescapeValueDoubleQuotes:  true,
		AllowPythonMultilineValues: false,
		SkipUnrecognizableLines:    false,
	}, []byte(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse env file:\n%w", err)
	}

	if len(cfg.Sections()) > 1 {
		return nil, fmt.Errorf("env file must not contain sections")
	}

	return cfg.Section(ini.DefaultSection).KeysHash(), nil
}
