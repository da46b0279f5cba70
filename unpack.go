// Copyright 2012 The gobps Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bps

import (
	"context"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/gobps/gobps/internal/fs"
	"github.com/gobps/gobps/plist"
)

// unpackStep extracts one install/update step's archive into the root.
// The package is registered half-unpacked first, so a crash mid-extract
// is visible in the pkgdb; on success the state advances to unpacked and
// the metadata directory is (re)written. For updates, files present in
// the old record but not the new one are removed after the extract
// succeeds.
func (h *Handle) unpackStep(ctx context.Context, step *TransactionStep, db *PackageDatabase) error {
	rec := step.Record
	old := db.Get(rec.Name)

	tag := StateInstall
	if step.Action == ActionUpdate {
		tag = StateUpdate
	}
	if err := h.statef(tag, rec.Name, rec.Version, "%s `%s'.", tag, rec.Pkgver()); err != nil {
		return err
	}

	ar, err := OpenArchive(h.archivePath(rec))
	if err != nil {
		return &UnpackError{Pkgver: rec.Pkgver(), Err: err}
	}
	defer ar.Close()

	ip := &InstalledPackage{
		PackageRecord: *rec,
		State:         StateHalfUnpacked,
		Automatic:     step.Automatic,
	}
	// The archive's file-list document is authoritative for what lands
	// on disk; the index may carry none of it.
	if fd := ar.Files(); fd != nil {
		if err := applyFilesDoc(&ip.PackageRecord, fd); err != nil {
			return &UnpackError{Pkgver: rec.Pkgver(), Err: err}
		}
	}
	rec = &ip.PackageRecord

	if old != nil {
		if !old.State.canTransition(StateHalfUnpacked) {
			return &BadStateTransitionError{Pkgname: rec.Name, From: old.State, To: StateHalfUnpacked}
		}
		// A replaced package keeps its automatic flag.
		ip.Automatic = old.Automatic
		if err := db.Replace(rec.Name, ip); err != nil {
			return err
		}
	} else {
		if err := db.Insert(ip); err != nil {
			return err
		}
	}

	if err := h.statef(StateUnpack, rec.Name, rec.Version, "Unpacking `%s'.", rec.Pkgver()); err != nil {
		return err
	}

	var done int64
	total := int64(rec.InstalledSize)
	for {
		if err := ctx.Err(); err != nil {
			return ErrCancelled
		}
		entry, body, err := ar.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return &UnpackError{Pkgver: rec.Pkgver(), Err: err}
		}
		if err := h.extractEntry(rec, old, db, entry, body); err != nil {
			h.state(StateEvent{Tag: StateUnpackFail, Pkgname: rec.Name, Version: rec.Version, Err: err})
			return err
		}
		done += entry.Size
		if h.OnUnpack != nil {
			if err := h.OnUnpack(UnpackProgress{Pkgver: rec.Pkgver(), Entry: entry.Name, Done: done, Total: total}); err != nil {
				return ErrCancelled
			}
		}
	}

	if old != nil {
		if err := h.removeObsoleteFiles(rec, old); err != nil {
			return err
		}
	}

	if err := h.writeMetadata(rec, ar); err != nil {
		return err
	}
	if err := h.statef(StateRegister, rec.Name, rec.Version, "Registering `%s'.", rec.Pkgver()); err != nil {
		return err
	}
	return db.SetState(rec.Name, StateUnpacked)
}

// isConfFile returns the matching conf_files entry for an archive member.
func isConfFile(rec *PackageRecord, name string) (FileEntry, bool) {
	for _, cf := range rec.ConfFiles {
		if cf.Path == name {
			return cf, true
		}
	}
	return FileEntry{}, false
}

// extractEntry lands one archive entry on the filesystem. Regular files
// are written to a temp sibling and renamed into place; configuration
// files go through the three-way merge first. A path already owned by a
// different installed package that this transaction does not remove or
// replace is a hard error.
func (h *Handle) extractEntry(rec *PackageRecord, old *InstalledPackage, db *PackageDatabase, entry *ArchiveEntry, body io.Reader) error {
	dest := filepath.Join(h.Conf.RootDir, entry.Name)

	if owner, ok := db.FileOwner(entry.Name); ok && owner != rec.Name {
		if h.td == nil || !h.td.removing(owner) {
			return &UnpackError{
				Pkgver: rec.Pkgver(),
				Entry:  entry.Name,
				Err:    errors.Errorf("file owned by installed package %s", owner),
			}
		}
	}

	switch entry.Type {
	case EntryDir:
		mode := entry.Mode & os.ModePerm
		if mode == 0 {
			mode = 0755
		}
		if err := os.MkdirAll(dest, mode); err != nil {
			return &UnpackError{Pkgver: rec.Pkgver(), Entry: entry.Name, Err: err}
		}
		return nil

	case EntrySymlink:
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return &UnpackError{Pkgver: rec.Pkgver(), Entry: entry.Name, Err: err}
		}
		os.Remove(dest)
		if err := os.Symlink(entry.Linkname, dest); err != nil {
			return &UnpackError{Pkgver: rec.Pkgver(), Entry: entry.Name, Err: err}
		}
		return nil
	}

	target := dest
	if _, ok := isConfFile(rec, entry.Name); ok {
		decision, err := h.mergeConfigFile(rec, old, mustConfEntry(rec, entry.Name))
		if err != nil {
			return err
		}
		if !decision.install {
			// Drain the body so the stream stays positioned.
			io.Copy(ioutil.Discard, body)
			return nil
		}
		target = decision.target
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return &UnpackError{Pkgver: rec.Pkgver(), Entry: entry.Name, Err: err}
	}
	mode := entry.Mode & os.ModePerm
	if mode == 0 {
		mode = 0644
	}
	tmp, err := ioutil.TempFile(filepath.Dir(target), "."+filepath.Base(target)+".")
	if err != nil {
		return &UnpackError{Pkgver: rec.Pkgver(), Entry: entry.Name, Err: err}
	}
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return &UnpackError{Pkgver: rec.Pkgver(), Entry: entry.Name, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return &UnpackError{Pkgver: rec.Pkgver(), Entry: entry.Name, Err: err}
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		os.Remove(tmp.Name())
		return &UnpackError{Pkgver: rec.Pkgver(), Entry: entry.Name, Err: err}
	}
	if err := fs.RenameWithFallback(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return &UnpackError{Pkgver: rec.Pkgver(), Entry: entry.Name, Err: err}
	}
	if !entry.ModTime.IsZero() {
		os.Chtimes(target, entry.ModTime, entry.ModTime)
	}
	return nil
}

func mustConfEntry(rec *PackageRecord, name string) FileEntry {
	cf, _ := isConfFile(rec, name)
	return cf
}

// removeObsoleteFiles deletes files, links and dirs the old version
// owned that the new version no longer ships. Deferred until after a
// successful unpack so an aborted update never loses files.
func (h *Handle) removeObsoleteFiles(rec *PackageRecord, old *InstalledPackage) error {
	inNew := make(map[string]bool, len(rec.Files)+len(rec.Links)+len(rec.ConfFiles))
	for _, f := range rec.Files {
		inNew[f.Path] = true
	}
	for _, l := range rec.Links {
		inNew[l.Path] = true
	}
	for _, cf := range rec.ConfFiles {
		inNew[cf.Path] = true
	}

	obsolete := make([]string, 0)
	for _, f := range old.Files {
		if !inNew[f.Path] {
			obsolete = append(obsolete, f.Path)
		}
	}
	for _, l := range old.Links {
		if !inNew[l.Path] {
			obsolete = append(obsolete, l.Path)
		}
	}
	for _, path := range obsolete {
		if err := h.statef(StateRemoveFileObsolete, rec.Name, rec.Version,
			"Removing obsolete file `%s'.", path); err != nil {
			return err
		}
		if err := os.Remove(filepath.Join(h.Conf.RootDir, path)); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "removing obsolete file %s", path)
		}
	}

	inNewDirs := make(map[string]bool, len(rec.Dirs))
	for _, d := range rec.Dirs {
		inNewDirs[d.Path] = true
	}
	oldDirs := make([]string, 0, len(old.Dirs))
	for _, d := range old.Dirs {
		if !inNewDirs[d.Path] {
			oldDirs = append(oldDirs, d.Path)
		}
	}
	// Deepest first so emptied parents can go too.
	sort.Sort(sort.Reverse(sort.StringSlice(oldDirs)))
	for _, d := range oldDirs {
		os.Remove(filepath.Join(h.Conf.RootDir, d))
	}
	return nil
}

// writeMetadata lands the package's metadata directory: the properties
// and file-list documents plus any hook scripts shipped in the archive.
func (h *Handle) writeMetadata(rec *PackageRecord, ar ArchiveReader) error {
	dir := h.metadataDir(rec.Name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "creating metadata directory for %s", rec.Name)
	}

	props := ar.Props()
	if props == nil {
		props = rec.toDict()
	}
	data, err := plist.Externalize(props)
	if err != nil {
		return err
	}
	if err := fs.WriteFileAtomic(filepath.Join(dir, "props.plist"), data, 0644); err != nil {
		return err
	}

	files := ar.Files()
	if files == nil {
		files = plist.Dict{}
	}
	if data, err = plist.Externalize(files); err != nil {
		return err
	}
	if err := fs.WriteFileAtomic(filepath.Join(dir, "files.plist"), data, 0644); err != nil {
		return err
	}

	for _, script := range []string{installScriptName, removeScriptName} {
		body := ar.Script(script)
		if body == nil {
			continue
		}
		if err := fs.WriteFileAtomic(filepath.Join(dir, script), body, 0755); err != nil {
			return err
		}
	}
	return nil
}
