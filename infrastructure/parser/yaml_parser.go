// Package parser decodes and validates plugin manifest sidecars.
package parser

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/plughost-dev/plughost/domain/entities"
	"github.com/plughost-dev/plughost/domain/ports"
)

// validate is a package-level singleton for better performance.
// Creating a new validator on each call is expensive; reusing is recommended.
var validate = validator.New()

// YAMLParser parses YAML plugin manifests and validates required fields.
type YAMLParser struct{}

var _ ports.ManifestParser = (*YAMLParser)(nil)

// NewYAMLParser creates a manifest parser.
func NewYAMLParser() *YAMLParser {
	return &YAMLParser{}
}

// Parse decodes manifest bytes, validates struct tags, and rejects unknown
// capability identifiers.
func (p *YAMLParser) Parse(data []byte) (*entities.PluginManifest, error) {
	var manifest entities.PluginManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}

	if err := validate.Struct(&manifest); err != nil {
		return nil, fmt.Errorf("manifest validation failed: %w", err)
	}

	// Capability identifiers are validated eagerly so a typo fails at parse
	// time, not at sandbox construction.
	if _, err := manifest.RequestedCapabilities(); err != nil {
		return nil, err
	}

	return &manifest, nil
}

// ParseFile reads and parses a manifest file from disk.
func (p *YAMLParser) ParseFile(path string) (*entities.PluginManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return p.Parse(data)
}

// ManifestSchema generates the JSON Schema (Draft 2020-12) for manifest
// documents, for editor integration and external validation.
func ManifestSchema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true, // Expand struct definitions inline
	}
	schema := reflector.Reflect(&entities.PluginManifest{})

	jsonBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling schema: %w", err)
	}
	return jsonBytes, nil
}
