// Copyright 2012 The gobps Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bps

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/gobps/gobps/internal/fs"
)

// removeStep deletes one package from the system: REMOVE script pre
// action, hash-checked file unlinks, symlink and empty-directory
// removal, REMOVE script post action, then the half-removed state is
// recorded before the metadata purge and the final unregister.
func (h *Handle) removeStep(ctx context.Context, step *TransactionStep, db *PackageDatabase) error {
	rec := step.Record
	ip := db.Get(rec.Name)
	if ip == nil {
		return ErrNotInstalled
	}

	if err := h.statef(StateRemove, rec.Name, rec.Version, "Removing `%s'.", rec.Pkgver()); err != nil {
		return err
	}

	script := filepath.Join(h.metadataDir(rec.Name), removeScriptName)
	if _, err := h.runScript(ctx, script, "pre", rec.Name, rec.Version, false); err != nil {
		h.state(StateEvent{Tag: StateRemoveFail, Pkgname: rec.Name, Version: rec.Version, Err: err})
		return &RemoveError{Pkgver: rec.Pkgver(), Err: err}
	}

	for _, f := range ip.Files {
		if err := h.removeFile(ip, f, false); err != nil {
			return err
		}
	}
	// Modified configuration files survive the package.
	for _, cf := range ip.ConfFiles {
		if err := h.removeFile(ip, cf, true); err != nil {
			return err
		}
	}
	for _, l := range ip.Links {
		dest := filepath.Join(h.Conf.RootDir, l.Path)
		if err := h.statef(StateRemoveFile, rec.Name, rec.Version, "Removing link `%s'.", l.Path); err != nil {
			return err
		}
		if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
			return &RemoveError{Pkgver: rec.Pkgver(), Err: err}
		}
	}

	// Now-empty directories go deepest first.
	dirs := make([]string, 0, len(ip.Dirs))
	for _, d := range ip.Dirs {
		dirs = append(dirs, d.Path)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
	for _, d := range dirs {
		os.Remove(filepath.Join(h.Conf.RootDir, d))
	}

	if _, err := h.runScript(ctx, script, "post", rec.Name, rec.Version, false); err != nil {
		h.state(StateEvent{Tag: StateRemoveFail, Pkgname: rec.Name, Version: rec.Version, Err: err})
		return &RemoveError{Pkgver: rec.Pkgver(), Err: err}
	}

	if err := db.SetState(rec.Name, StateHalfRemoved); err != nil {
		return err
	}
	if err := db.Flush(); err != nil {
		return err
	}
	return h.purge(rec.Name, rec.Version, db)
}

// removeFile unlinks one regular file after verifying its recorded hash.
// A mismatch is reported and the file kept, unless conf (the file is a
// user-editable configuration file, silently kept) or the force flag
// overrides.
func (h *Handle) removeFile(ip *InstalledPackage, f FileEntry, conf bool) error {
	dest := filepath.Join(h.Conf.RootDir, f.Path)
	if err := h.statef(StateRemoveFile, ip.Name, ip.Version, "Removing file `%s'.", f.Path); err != nil {
		return err
	}
	if f.SHA256 != "" && h.Flags&FlagForceRemoveFiles == 0 {
		hash, err := fs.HashFile(dest)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return &RemoveError{Pkgver: ip.Pkgver(), Err: err}
		}
		if hash != f.SHA256 {
			if conf {
				h.debugf("%s: keeping modified configuration file %s", ip.Name, f.Path)
				return nil
			}
			return h.state(StateEvent{
				Tag:     StateRemoveFileHashFail,
				Desc:    "file hash mismatch, not removing " + f.Path,
				Pkgname: ip.Name,
				Version: ip.Version,
			})
		}
	}
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return &RemoveError{Pkgver: ip.Pkgver(), Err: err}
	}
	return nil
}

// purge completes a removal: the metadata directory goes away and the
// package is unregistered. Also the entry point for finishing a
// half-removed package found after a crash.
func (h *Handle) purge(name, version string, db *PackageDatabase) error {
	if err := h.statef(StatePurge, name, version, "Purging `%s'.", name); err != nil {
		return err
	}
	if err := os.RemoveAll(h.metadataDir(name)); err != nil {
		return &RemoveError{Pkgver: name + "-" + version, Err: err}
	}
	if err := h.statef(StateUnregister, name, version, "Unregistering `%s'.", name); err != nil {
		return err
	}
	if err := db.Remove(name); err != nil {
		return err
	}
	if err := h.statef(StatePurgeDone, name, version, "Purged `%s'.", name); err != nil {
		return err
	}
	return h.statef(StateRemoveDone, name, version, "Removed `%s' successfully.", name)
}

// PurgePackage completes the removal of a package left half-removed by
// an interrupted transaction.
func (h *Handle) PurgePackage(name string) error {
	db, err := h.Database()
	if err != nil {
		return err
	}
	ip := db.Get(name)
	if ip == nil {
		return ErrNotInstalled
	}
	if ip.State != StateHalfRemoved {
		return &BadStateTransitionError{Pkgname: name, From: ip.State, To: StateNotInstalled}
	}
	if err := h.purge(name, ip.Version, db); err != nil {
		return err
	}
	return db.Flush()
}
