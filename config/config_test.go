package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/miguelportilla/rippled/nodedb"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rippled-store.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadRoundTripsRotatingAndShard(t *testing.T) {
	path := writeConfig(t, `
[rotating]
type = "memory"
writable_path = "/tmp/writable"
archive_path = "/tmp/archive"
cache_size_mb = 64
cache_handles = 128

[shard]
type = "memory"
path = "/tmp/shards"
max_size_gb = 100
ledgers_per_shard = 16384
genesis_seq = 32570
cache_size_mb = 32
cache_handles = 64
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Rotating == nil || cfg.Rotating.Type != "memory" || cfg.Rotating.CacheSizeMB != 64 {
		t.Errorf("Rotating = %+v, unexpected", cfg.Rotating)
	}
	if cfg.Shard == nil || cfg.Shard.LedgersPerShard != 16384 || cfg.Shard.GenesisSeq != 32570 {
		t.Errorf("Shard = %+v, unexpected", cfg.Shard)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml")); err == nil {
		t.Error("Load should fail on a missing file")
	}
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := writeConfig(t, "this is not [ valid toml")
	if _, err := Load(path); err == nil {
		t.Error("Load should fail on malformed TOML")
	}
}

func TestValidateRequiresAtLeastOneStore(t *testing.T) {
	cfg := &Config{}
	var cerr *ErrConfig
	if err := cfg.Validate(); err == nil || !errors.As(err, &cerr) {
		t.Errorf("Validate() = %v, want an *ErrConfig requiring rotating or shard", err)
	}
}

func TestValidateRotatingRequiresPaths(t *testing.T) {
	cfg := &Config{Rotating: &Rotating{Type: "memory"}}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should reject a rotating config missing writable/archive paths")
	}
}

func TestValidateRotatingRequiresType(t *testing.T) {
	cfg := &Config{Rotating: &Rotating{WritablePath: "/a", ArchivePath: "/b"}}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should reject a rotating config missing a backend type")
	}
}

func TestValidateShardRequiresPath(t *testing.T) {
	cfg := &Config{Shard: &Shard{Type: "memory", MaxSizeGB: 10, LedgersPerShard: 16384}}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should reject a shard config missing a path")
	}
}

func TestValidateShardRejectsZeroMaxSize(t *testing.T) {
	cfg := &Config{Shard: &Shard{Type: "memory", Path: "/x", MaxSizeGB: 0, LedgersPerShard: 16384}}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should reject shard.max_size_gb == 0")
	}
}

func TestValidateShardRejectsZeroLedgersPerShard(t *testing.T) {
	cfg := &Config{Shard: &Shard{Type: "memory", Path: "/x", MaxSizeGB: 10, LedgersPerShard: 0}}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should reject shard.ledgers_per_shard == 0")
	}
}

func TestValidateAcceptsShardOnlyConfig(t *testing.T) {
	cfg := &Config{Shard: &Shard{Type: "memory", Path: "/x", MaxSizeGB: 10, LedgersPerShard: 16384}}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil for a well-formed shard-only config", err)
	}
}

func TestOpenRotatingBackendsUnknownType(t *testing.T) {
	r := &Rotating{Type: "not-a-real-backend", WritablePath: t.TempDir(), ArchivePath: t.TempDir()}
	if _, _, err := OpenRotatingBackends(r, nodedb.DefaultManager()); err == nil {
		t.Error("OpenRotatingBackends should fail for an unregistered backend type")
	}
}

func TestOpenRotatingBackendsMemory(t *testing.T) {
	r := &Rotating{Type: "memory", WritablePath: t.TempDir(), ArchivePath: t.TempDir(), CacheSizeMB: 8}
	writable, archive, err := OpenRotatingBackends(r, nodedb.DefaultManager())
	if err != nil {
		t.Fatalf("OpenRotatingBackends: %v", err)
	}
	defer writable.Close()
	defer archive.Close()
	if writable == archive {
		t.Error("OpenRotatingBackends should open two distinct backend instances")
	}
}

func TestShardBackendConfigCarriesCacheTunables(t *testing.T) {
	s := &Shard{CacheSizeMB: 32, CacheHandles: 256}
	bc := s.BackendConfig()
	if bc.CacheMB != 32 || bc.Handles != 256 {
		t.Errorf("BackendConfig() = %+v, want CacheMB=32 Handles=256", bc)
	}
}
