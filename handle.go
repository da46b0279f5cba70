// Copyright 2012 The gobps Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bps

import (
	"context"
	"io/ioutil"
	"log"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
)

// Flag toggles optional engine behavior.
type Flag uint

const (
	// FlagForceConfigure re-runs the INSTALL script on packages already
	// in the installed state; no state change is recorded.
	FlagForceConfigure Flag = 1 << iota
	// FlagForceRemoveFiles unlinks package files even when their
	// on-disk hash no longer matches the recorded one.
	FlagForceRemoveFiles
)

// Handle owns one repository pool, one package database and at most one
// in-flight transaction. Multiple handles may coexist in a process; the
// pkgdb lock file keeps cross-process writers exclusive.
type Handle struct {
	Conf *Config

	// Out receives informational logging, Dbg debug logging. Both
	// default to discard.
	Out *log.Logger
	Dbg *log.Logger

	// Optional callback surface. Nil members default to no-ops.
	OnState  StateFunc
	OnFetch  FetchFunc
	OnUnpack UnpackFunc

	Flags Flag

	pool    *Pool
	db      *PackageDatabase
	fetcher Fetcher
	arch    string
	td      *TransactionDocument
	baseCtx context.Context
}

// New returns a handle over cfg. The repository pool is loaded lazily via
// LoadPool or SyncRepositories; the pkgdb is opened on first use.
func New(cfg *Config) (*Handle, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.fillDefaults()
	discard := log.New(ioutil.Discard, "", 0)
	h := &Handle{
		Conf:    cfg,
		Out:     discard,
		Dbg:     discard,
		arch:    cfg.Architecture,
		baseCtx: context.Background(),
	}
	if h.arch == "" {
		h.arch = runtime.GOARCH
	}
	h.fetcher = newHTTPFetcher(cfg)
	return h, nil
}

func (h *Handle) debugf(format string, args ...interface{}) {
	if h.Dbg != nil {
		h.Dbg.Printf(format, args...)
	}
}

// Arch returns the target architecture candidate records are matched
// against.
func (h *Handle) Arch() string { return h.arch }

// Pool returns the loaded repository pool, loading it on first use.
func (h *Handle) Pool() (*Pool, error) {
	if h.pool == nil {
		if err := h.LoadPool(); err != nil {
			return nil, err
		}
	}
	return h.pool, nil
}

// Database returns the package database, opening it on first use.
func (h *Handle) Database() (*PackageDatabase, error) {
	if h.db == nil {
		db, err := OpenDatabase(h.Conf.metaDir())
		if err != nil {
			return nil, errors.Wrap(err, "opening package database")
		}
		h.db = db
	}
	return h.db, nil
}

// Transaction returns the document being assembled by the resolver
// operations, or nil when none is in progress.
func (h *Handle) Transaction() *TransactionDocument { return h.td }

// metadataDir returns the per-package metadata directory.
func (h *Handle) metadataDir(pkgname string) string {
	return filepath.Join(h.Conf.metaDir(), "metadata", pkgname)
}

// archivePath returns the cached archive location for a record.
func (h *Handle) archivePath(r *PackageRecord) string {
	return filepath.Join(h.Conf.cacheDir(), r.ArchiveName())
}
