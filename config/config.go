// Package config decodes the TOML configuration of spec.md §6
// "Configuration (enumerated)" and dispatches backend construction
// through nodedb.Manager, the same pattern go-ethereum's node package
// uses BurntSushi/toml for its own config.toml.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/miguelportilla/rippled/nodedb"
)

// Rotating holds the two backend roots the rotating store opens on
// startup.
type Rotating struct {
	Type         string `toml:"type"`
	WritablePath string `toml:"writable_path"`
	ArchivePath  string `toml:"archive_path"`
	CacheSizeMB  int    `toml:"cache_size_mb"`
	CacheHandles int    `toml:"cache_handles"`
}

// Shard holds the sharded store's directory, backend type, and disk
// budget.
type Shard struct {
	Type            string `toml:"type"`
	Path            string `toml:"path"`
	MaxSizeGB       uint64 `toml:"max_size_gb"`
	LedgersPerShard uint32 `toml:"ledgers_per_shard"`
	GenesisSeq      uint32 `toml:"genesis_seq"`
	CacheSizeMB     int    `toml:"cache_size_mb"`
	CacheHandles    int    `toml:"cache_handles"`
}

// Config is the top-level node object store configuration: a rotating
// hot/cold store, a sharded archival store, or both.
type Config struct {
	Rotating *Rotating `toml:"rotating"`
	Shard    *Shard    `toml:"shard"`
}

// ErrConfig is the taxonomy tag for spec.md §7 "ConfigError".
type ErrConfig struct{ Msg string }

func (e *ErrConfig) Error() string { return "config: " + e.Msg }

// Load reads and decodes the TOML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces spec.md §6's required fields and §7's ConfigError
// taxonomy: missing backend type, missing path, invalid max_size_gb. It
// does not check the type against the registered backends; an unknown
// type is reported when the backend is opened through nodedb.Manager.
func (c *Config) Validate() error {
	if c.Rotating == nil && c.Shard == nil {
		return &ErrConfig{Msg: "at least one of [rotating] or [shard] must be configured"}
	}
	if c.Rotating != nil {
		if c.Rotating.Type == "" {
			return &ErrConfig{Msg: "rotating.type is required"}
		}
		if c.Rotating.WritablePath == "" || c.Rotating.ArchivePath == "" {
			return &ErrConfig{Msg: "rotating.writable_path and rotating.archive_path are required"}
		}
	}
	if c.Shard != nil {
		if c.Shard.Type == "" {
			return &ErrConfig{Msg: "shard.type is required"}
		}
		if c.Shard.Path == "" {
			return &ErrConfig{Msg: "shard.path is required"}
		}
		if c.Shard.MaxSizeGB == 0 {
			return &ErrConfig{Msg: "shard.max_size_gb must be non-zero"}
		}
		if c.Shard.LedgersPerShard == 0 {
			return &ErrConfig{Msg: "shard.ledgers_per_shard must be non-zero"}
		}
	}
	return nil
}

// backendConfig converts a cache size in MB and a handle count into the
// nodedb.BackendConfig a Manager.Open call expects.
func backendConfig(cacheSizeMB, handles int) nodedb.BackendConfig {
	return nodedb.BackendConfig{CacheMB: cacheSizeMB, Handles: handles}
}

// OpenRotatingBackends opens the writable and archive backends
// described by r through mgr, resolving the shared "type" against the
// registered Factory.
func OpenRotatingBackends(r *Rotating, mgr *nodedb.Manager) (writable, archive nodedb.Backend, err error) {
	cfg := backendConfig(r.CacheSizeMB, r.CacheHandles)
	writable, err = mgr.Open(r.Type, r.WritablePath, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("config: open rotating writable backend: %w", err)
	}
	archive, err = mgr.Open(r.Type, r.ArchivePath, cfg)
	if err != nil {
		writable.Close()
		return nil, nil, fmt.Errorf("config: open rotating archive backend: %w", err)
	}
	return writable, archive, nil
}

// BackendConfig exposes the shard's backend tunables for shardstore.Open.
func (s *Shard) BackendConfig() nodedb.BackendConfig {
	return backendConfig(s.CacheSizeMB, s.CacheHandles)
}
