// Copyright 2012 The gobps Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bps

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// Default locations and tunables. The cache directory and the tunables
// are overridable through the configuration file; the configuration and
// metadata paths are fixed relative to the root directory.
const (
	DefaultConfigPath = "etc/bps/bps.conf"
	defaultMetaDir    = "var/db/bps"
	defaultCacheDir   = "var/cache/bps"

	defaultFetchConnections = 4
	defaultFetchTimeout     = 30
	defaultFlushFrequency   = 5
)

// Config carries the static configuration of a handle.
type Config struct {
	// RootDir is the install prefix; every other relative path hangs
	// off it.
	RootDir string `toml:"rootdir"`
	// CacheDir is where downloaded archives are kept. Relative values
	// resolve under RootDir.
	CacheDir string `toml:"cachedir"`
	// Repositories lists repository URLs in consultation order; on
	// ties the earlier repository wins.
	Repositories []string `toml:"repository"`
	// VirtualPackages lists manual virtual-package aliases as
	// "<vname>:<real-pkgver-or-pattern>" entries.
	VirtualPackages []string `toml:"virtualpkg"`
	// PackagesOnHold lists names exempt from UpdateAllPackages.
	PackagesOnHold []string `toml:"PackagesOnHold"`
	// Architecture constrains candidate records; empty accepts any.
	Architecture string `toml:"architecture"`

	// FetchCacheConnections bounds parallel repository downloads.
	FetchCacheConnections int `toml:"FetchCacheConnections"`
	// FetchTimeoutConnection is the per-connection timeout in seconds.
	FetchTimeoutConnection int `toml:"FetchTimeoutConnection"`
	// TransactionFrequencyFlush is how many packages are processed
	// between pkgdb flushes during the run phase.
	TransactionFrequencyFlush int `toml:"TransactionFrequencyFlush"`
}

// LoadConfig reads a TOML configuration file. A missing file yields the
// built-in defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.fillDefaults()
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "reading configuration %s", path)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing configuration %s", path)
	}
	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) fillDefaults() {
	if c.RootDir == "" {
		c.RootDir = "/"
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.FetchCacheConnections <= 0 {
		c.FetchCacheConnections = defaultFetchConnections
	}
	if c.FetchTimeoutConnection <= 0 {
		c.FetchTimeoutConnection = defaultFetchTimeout
	}
	if c.TransactionFrequencyFlush <= 0 {
		c.TransactionFrequencyFlush = defaultFlushFrequency
	}
}

// metaDir is the package database directory under the root.
func (c *Config) metaDir() string {
	return filepath.Join(c.RootDir, defaultMetaDir)
}

// cacheDir resolves the archive cache directory, honoring absolute
// overrides.
func (c *Config) cacheDir() string {
	if filepath.IsAbs(c.CacheDir) {
		return c.CacheDir
	}
	return filepath.Join(c.RootDir, c.CacheDir)
}

// virtualAliases parses the VirtualPackages entries into a lookup table
// from virtual name to the configured real pkgver or pattern. Malformed
// entries are skipped.
func (c *Config) virtualAliases() map[string]string {
	if len(c.VirtualPackages) == 0 {
		return nil
	}
	m := make(map[string]string, len(c.VirtualPackages))
	for _, entry := range c.VirtualPackages {
		i := strings.IndexByte(entry, ':')
		if i <= 0 || i == len(entry)-1 {
			continue
		}
		m[entry[:i]] = entry[i+1:]
	}
	return m
}

// onHold reports whether name is exempt from whole-system updates.
func (c *Config) onHold(name string) bool {
	for _, h := range c.PackagesOnHold {
		if h == name {
			return true
		}
	}
	return false
}
