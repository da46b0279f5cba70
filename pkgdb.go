// Copyright 2012 The gobps Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bps

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/armon/go-radix"
	"github.com/pkg/errors"
	"github.com/theckman/go-flock"

	"github.com/gobps/gobps/internal/fs"
	"github.com/gobps/gobps/plist"
)

const (
	pkgdbFileName = "pkgdb.plist"
	pkgdbLockName = "pkgdb.lock"
)

// PackageDatabase is the persistent registry of installed packages. It is
// kept fully loaded in memory as an ordered array; mutations are buffered
// and written out by Flush as a complete image via temp-file + rename, so
// the on-disk file is always either the pre- or the post-transaction
// contents.
//
// Traversal order is stable across calls: registration order for Foreach,
// and its reverse for ForeachReverse.
type PackageDatabase struct {
	dir  string
	lock *flock.Flock

	pkgs   []*InstalledPackage
	byName map[string]int
	// owners maps installed file paths to the owning package name, used
	// for file-level conflict checks.
	owners *radix.Tree
	dirty  bool
}

// OpenDatabase loads the pkgdb under metaDir, creating an empty one when
// the file does not exist yet.
func OpenDatabase(metaDir string) (*PackageDatabase, error) {
	db := &PackageDatabase{
		dir:    metaDir,
		lock:   flock.NewFlock(filepath.Join(metaDir, pkgdbLockName)),
		byName: make(map[string]int),
		owners: radix.New(),
	}
	data, err := ioutil.ReadFile(db.path())
	if err != nil {
		if os.IsNotExist(err) {
			return db, nil
		}
		return nil, errors.Wrapf(err, "reading %s", db.path())
	}
	doc, err := plist.InternalizeArray(data)
	if err != nil {
		return nil, errors.Wrapf(err, "internalizing %s", db.path())
	}
	for _, v := range doc {
		d, ok := v.(plist.Dict)
		if !ok {
			return nil, errors.Wrapf(plist.ErrMismatch, "%s: non-dictionary entry", db.path())
		}
		ip, err := installedFromDict(d)
		if err != nil {
			return nil, errors.Wrapf(err, "%s", db.path())
		}
		db.append(ip)
	}
	db.dirty = false
	return db, nil
}

func (db *PackageDatabase) path() string {
	return filepath.Join(db.dir, pkgdbFileName)
}

// Lock takes the process-wide advisory lock guarding the database file
// for the lifetime of a transaction. ErrDatabaseLocked is returned when
// another process holds it.
func (db *PackageDatabase) Lock() error {
	if err := os.MkdirAll(db.dir, 0755); err != nil {
		return errors.Wrapf(err, "creating %s", db.dir)
	}
	ok, err := db.lock.TryLock()
	if err != nil {
		return errors.Wrap(err, "acquiring pkgdb lock")
	}
	if !ok {
		return ErrDatabaseLocked
	}
	return nil
}

// Unlock releases the advisory lock.
func (db *PackageDatabase) Unlock() error {
	return errors.Wrap(db.lock.Unlock(), "releasing pkgdb lock")
}

func (db *PackageDatabase) append(ip *InstalledPackage) {
	db.byName[ip.Name] = len(db.pkgs)
	db.pkgs = append(db.pkgs, ip)
	db.indexFiles(ip)
	db.dirty = true
}

func (db *PackageDatabase) indexFiles(ip *InstalledPackage) {
	for _, f := range ip.Files {
		db.owners.Insert(f.Path, ip.Name)
	}
	for _, f := range ip.ConfFiles {
		db.owners.Insert(f.Path, ip.Name)
	}
	for _, l := range ip.Links {
		db.owners.Insert(l.Path, ip.Name)
	}
}

func (db *PackageDatabase) unindexFiles(ip *InstalledPackage) {
	for _, f := range ip.Files {
		db.owners.Delete(f.Path)
	}
	for _, f := range ip.ConfFiles {
		db.owners.Delete(f.Path)
	}
	for _, l := range ip.Links {
		db.owners.Delete(l.Path)
	}
}

func (db *PackageDatabase) reindex() {
	db.byName = make(map[string]int, len(db.pkgs))
	for i, p := range db.pkgs {
		db.byName[p.Name] = i
	}
}

// Len returns the number of registered packages.
func (db *PackageDatabase) Len() int { return len(db.pkgs) }

// Get returns the installed package with the given name.
func (db *PackageDatabase) Get(name string) *InstalledPackage {
	i, ok := db.byName[name]
	if !ok {
		return nil
	}
	return db.pkgs[i]
}

// GetByPkgver returns the installed package with exactly the given
// pkgver.
func (db *PackageDatabase) GetByPkgver(pv string) *InstalledPackage {
	for _, p := range db.pkgs {
		if p.Pkgver() == pv {
			return p
		}
	}
	return nil
}

// Insert registers a package. Registering an already-present name is a
// programming error surfaced as such.
func (db *PackageDatabase) Insert(ip *InstalledPackage) error {
	if _, dup := db.byName[ip.Name]; dup {
		return errors.Errorf("package %s is already registered", ip.Name)
	}
	db.append(ip)
	return nil
}

// Replace swaps the registered package of the same name, keeping its slot
// in the traversal order.
func (db *PackageDatabase) Replace(name string, ip *InstalledPackage) error {
	i, ok := db.byName[name]
	if !ok {
		return ErrNotInstalled
	}
	db.unindexFiles(db.pkgs[i])
	db.pkgs[i] = ip
	delete(db.byName, name)
	db.byName[ip.Name] = i
	db.indexFiles(ip)
	db.dirty = true
	return nil
}

// Remove unregisters the package with the given name.
func (db *PackageDatabase) Remove(name string) error {
	i, ok := db.byName[name]
	if !ok {
		return ErrNotInstalled
	}
	db.unindexFiles(db.pkgs[i])
	db.pkgs = append(db.pkgs[:i], db.pkgs[i+1:]...)
	db.reindex()
	db.dirty = true
	return nil
}

// Foreach visits packages in registration order until fn returns
// done=true or an error.
func (db *PackageDatabase) Foreach(fn func(ip *InstalledPackage) (done bool, err error)) error {
	for _, p := range db.pkgs {
		done, err := fn(p)
		if err != nil || done {
			return err
		}
	}
	return nil
}

// ForeachReverse visits packages in reverse registration order.
func (db *PackageDatabase) ForeachReverse(fn func(ip *InstalledPackage) (done bool, err error)) error {
	for i := len(db.pkgs) - 1; i >= 0; i-- {
		done, err := fn(db.pkgs[i])
		if err != nil || done {
			return err
		}
	}
	return nil
}

// FileOwner returns the name of the installed package owning path.
func (db *PackageDatabase) FileOwner(path string) (string, bool) {
	v, ok := db.owners.Get(path)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// SetState advances a package through the state machine, validating the
// transition.
func (db *PackageDatabase) SetState(name string, to PackageState) error {
	ip := db.Get(name)
	if ip == nil {
		return ErrNotInstalled
	}
	if !ip.State.canTransition(to) {
		return &BadStateTransitionError{Pkgname: name, From: ip.State, To: to}
	}
	ip.State = to
	db.dirty = true
	return nil
}

// Dirty reports whether in-memory state differs from the last flushed
// image.
func (db *PackageDatabase) Dirty() bool { return db.dirty }

// Flush serializes the current image to a sibling temp file and renames
// it over the database file. A no-op when nothing changed.
func (db *PackageDatabase) Flush() error {
	if !db.dirty {
		return nil
	}
	doc := make(plist.Array, len(db.pkgs))
	for i, p := range db.pkgs {
		doc[i] = p.toDict()
	}
	data, err := plist.Externalize(doc)
	if err != nil {
		return errors.Wrap(err, "externalizing pkgdb")
	}
	if err := os.MkdirAll(db.dir, 0755); err != nil {
		return errors.Wrapf(err, "creating %s", db.dir)
	}
	if err := fs.WriteFileAtomic(db.path(), data, 0644); err != nil {
		return errors.Wrap(err, "flushing pkgdb")
	}
	db.dirty = false
	return nil
}
