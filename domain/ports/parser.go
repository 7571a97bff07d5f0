package ports

import "github.com/plughost-dev/plughost/domain/entities"

// ManifestParser decodes and validates a plugin manifest document.
type ManifestParser interface {
	// Parse decodes manifest bytes and validates required fields.
	Parse(data []byte) (*entities.PluginManifest, error)

	// ParseFile reads and parses a manifest file from disk.
	ParseFile(path string) (*entities.PluginManifest, error)
}
