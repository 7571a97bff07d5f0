// Package truststore persists the trusted author key set as a YAML file.
package truststore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/plughost-dev/plughost/trust"
)

// fileStoreConfig holds configuration for the FileStore.
type fileStoreConfig struct {
	path     string      // Path to the trusted keys file
	dirPerm  os.FileMode // Permission for created directories
	filePerm os.FileMode // Permission for the keys file
}

func defaultFileStoreConfig() fileStoreConfig {
	return fileStoreConfig{
		path:     filepath.Join(os.Getenv("HOME"), ".plughost", "trusted_keys.yaml"),
		dirPerm:  0o755, // User config directory
		filePerm: 0o600, // User-only read/write (secure default)
	}
}

// FileStoreOption configures a FileStore instance.
type FileStoreOption func(*fileStoreConfig)

// WithPath sets the path to the trusted keys file.
func WithPath(path string) FileStoreOption {
	return func(c *fileStoreConfig) {
		c.path = path
	}
}

// WithFilePermissions sets the file permissions for the keys file.
// Default is 0o600 (user-only). Use with caution.
func WithFilePermissions(perm os.FileMode) FileStoreOption {
	return func(c *fileStoreConfig) {
		c.filePerm = perm
	}
}

// storedKey is the wire form of one trusted key: author, the hex-encoded
// Ed25519 public key, and whether the author has been revoked.
type storedKey struct {
	Author  string `yaml:"author"`
	Key     string `yaml:"key"`
	Revoked bool   `yaml:"revoked,omitempty"`
}

// FileStore provides file-based persistence for trusted author keys.
type FileStore struct {
	config fileStoreConfig
}

var _ trust.Store = (*FileStore)(nil)

// NewFileStore creates a new FileStore with the given options.
func NewFileStore(opts ...FileStoreOption) *FileStore {
	cfg := defaultFileStoreConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &FileStore{config: cfg}
}

// Load retrieves all persisted keys. A missing file is an empty key set.
func (s *FileStore) Load() ([]trust.TrustedKey, error) {
	data, err := os.ReadFile(s.config.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read trust store: %w", err)
	}

	var stored []storedKey
	if err := yaml.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to parse trust store: %w", err)
	}

	keys := make([]trust.TrustedKey, 0, len(stored))
	for _, sk := range stored {
		pub, err := trust.ParsePublicKey(sk.Author, sk.Key)
		if err != nil {
			return nil, err
		}
		keys = append(keys, trust.TrustedKey{Author: sk.Author, Key: pub, Revoked: sk.Revoked})
	}
	return keys, nil
}

// Save replaces the persisted key set, sorted by author for stable diffs.
func (s *FileStore) Save(keys []trust.TrustedKey) error {
	stored := make([]storedKey, 0, len(keys))
	for _, k := range keys {
		stored = append(stored, storedKey{Author: k.Author, Key: k.Fingerprint(), Revoked: k.Revoked})
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].Author < stored[j].Author })

	data, err := yaml.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal trust store: %w", err)
	}

	dir := filepath.Dir(s.config.path)
	if err := os.MkdirAll(dir, s.config.dirPerm); err != nil {
		return fmt.Errorf("failed to create trust store directory: %w", err)
	}

	if err := os.WriteFile(s.config.path, data, s.config.filePerm); err != nil {
		return fmt.Errorf("failed to write trust store: %w", err)
	}
	return nil
}

// ConfigPath returns the path to the backing store.
func (s *FileStore) ConfigPath() string {
	return s.config.path
}
