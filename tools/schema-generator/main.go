// Command schema-generator writes the mirror.yml JSON Schema to
// schema/mirror.schema.json for editor integration.
package main

import (
	"os"
	"path/filepath"

	"github.com/grovetools/mirror/config"
	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.WithField("component", "schema-generator")

	schemaBytes, err := config.GenerateSchema()
	if err != nil {
		log.WithError(err).Fatal("Failed to generate schema")
	}

	outputDir := "schema"
	if len(os.Args) > 1 {
		outputDir = os.Args[1]
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		log.WithError(err).Fatal("Failed to create schema directory")
	}

	outputPath := filepath.Join(outputDir, "mirror.schema.json")
	if err := os.WriteFile(outputPath, append(schemaBytes, '\n'), 0o644); err != nil {
		log.WithError(err).Fatal("Failed to write schema")
	}
	log.WithField("path", outputPath).Info("Schema generated")
}
