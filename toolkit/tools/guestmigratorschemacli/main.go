// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/guestmigratorapi"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/exe"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/logger"
	"github.com/invopop/jsonschema"
	"gopkg.in/alecthomas/kingpin.v2"
)

func main() {
	app := kingpin.New("guestmigratorschemacli", "A CLI tool to generate JSON schema for the guest migrator config.")
	outputFile := app.Flag("output", "Path to the output JSON schema file").Short('o').Required().String()
	logFlags := exe.SetupLogFlags(app)
	exe.SetupVersionFlag(app)

	kingpin.MustParse(app.Parse(os.Args[1:]))

	logger.InitBestEffort(logFlags)

	if err := generateJSONSchema(*outputFile); err != nil {
		log.Fatalf("Error: %v", err)
	}

	logger.Log.Infof("JSON schema has been written to %s", *outputFile)
}

func generateJSONSchema(outputFile string) error {
	schemaJSON, err := configSchemaJSON()
	if err != nil {
		return err
	}

	// Write schema to file
	if err := os.WriteFile(outputFile, schemaJSON, 0o644); err != nil {
		return fmt.Errorf("failed to write schema to file: %w", err)
	}

	return nil
}

func configSchemaJSON() ([]byte, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
	}

	schema := reflector.Reflect(&guestmigratorapi.Config{})
	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	return schemaJSON, nil
}
