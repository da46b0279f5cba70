package bps

import (
	"io/ioutil"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bps.conf")
	body := `
rootdir = "/mnt/target"
cachedir = "/var/cache/custom"
repository = [
  "https://repo.example.org/current",
  "/mnt/local-repo",
]
virtualpkg = ["editor:vim-7.3", "mta:postfix"]
PackagesOnHold = ["kernel"]
FetchCacheConnections = 8
FetchTimeoutConnection = 60
TransactionFrequencyFlush = 10
`
	if err := ioutil.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.RootDir != "/mnt/target" || cfg.CacheDir != "/var/cache/custom" {
		t.Errorf("dirs = %q, %q", cfg.RootDir, cfg.CacheDir)
	}
	wantRepos := []string{"https://repo.example.org/current", "/mnt/local-repo"}
	if !reflect.DeepEqual(cfg.Repositories, wantRepos) {
		t.Errorf("repositories = %v (order must be preserved)", cfg.Repositories)
	}
	if cfg.FetchCacheConnections != 8 || cfg.FetchTimeoutConnection != 60 || cfg.TransactionFrequencyFlush != 10 {
		t.Errorf("tunables = %d, %d, %d", cfg.FetchCacheConnections, cfg.FetchTimeoutConnection, cfg.TransactionFrequencyFlush)
	}
	if !cfg.onHold("kernel") || cfg.onHold("vim") {
		t.Error("PackagesOnHold not honored")
	}

	aliases := cfg.virtualAliases()
	want := map[string]string{"editor": "vim-7.3", "mta": "postfix"}
	if !reflect.DeepEqual(aliases, want) {
		t.Errorf("virtual aliases = %v, want %v", aliases, want)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.conf"))
	if err != nil {
		t.Fatalf("LoadConfig on missing file: %v", err)
	}
	if cfg.RootDir != "/" {
		t.Errorf("default rootdir = %q", cfg.RootDir)
	}
	if cfg.TransactionFrequencyFlush != defaultFlushFrequency {
		t.Errorf("default flush frequency = %d", cfg.TransactionFrequencyFlush)
	}
	if cfg.FetchCacheConnections != defaultFetchConnections {
		t.Errorf("default fetch connections = %d", cfg.FetchCacheConnections)
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bps.conf")
	if err := ioutil.WriteFile(path, []byte("repository = not-a-list"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("malformed config accepted")
	}
}

func TestConfigCacheDirResolution(t *testing.T) {
	cfg := &Config{RootDir: "/mnt/target"}
	cfg.fillDefaults()
	if got := cfg.cacheDir(); got != "/mnt/target/var/cache/bps" {
		t.Errorf("relative cachedir = %q", got)
	}
	cfg.CacheDir = "/srv/cache"
	if got := cfg.cacheDir(); got != "/srv/cache" {
		t.Errorf("absolute cachedir = %q", got)
	}
}

func TestVirtualAliasesMalformedEntries(t *testing.T) {
	cfg := &Config{VirtualPackages: []string{"good:real-1.0", "nocolon", ":novname", "notail:"}}
	aliases := cfg.virtualAliases()
	if len(aliases) != 1 || aliases["good"] != "real-1.0" {
		t.Errorf("aliases = %v, want only the well-formed entry", aliases)
	}
}
