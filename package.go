// Copyright 2012 The gobps Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bps

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/gobps/gobps/pkgver"
	"github.com/gobps/gobps/plist"
)

// FileEntry describes one filesystem contribution of a package: a regular
// file (with content hash), a directory, a symlink (with target), or a
// configuration file.
type FileEntry struct {
	Path   string
	SHA256 string
	Size   uint64
	Target string
}

// PackageRecord is the in-memory model of one package as published by a
// repository index or recorded in package metadata. Records are created by
// repository or pkgdb load and never mutated in place after resolution
// completes; the Repository field is the one exception, set when the
// resolver picks the record from the pool.
type PackageRecord struct {
	Name    string
	Version string // includes the _revision suffix, if any
	Arch    string

	Dependencies []string // ordered dependency atoms
	Provides     []string // virtual pkgvers this package advertises
	Conflicts    []string // atoms forbidding co-installation
	Replaces     []string

	Files     []FileEntry
	Dirs      []FileEntry
	Links     []FileEntry
	ConfFiles []FileEntry

	InstalledSize  uint64
	FilenameSize   uint64
	FilenameSHA256 string

	Repository string
}

// Pkgver returns the canonical "name-version" rendering.
func (r *PackageRecord) Pkgver() string {
	return r.Name + "-" + r.Version
}

// Revision returns the numeric revision of the record's version, zero when
// absent.
func (r *PackageRecord) Revision() uint64 {
	rev, _ := pkgver.Revision(r.Version)
	return rev
}

// matchesArch reports whether the record is installable on target. Records
// with no arch or arch "noarch" install anywhere.
func (r *PackageRecord) matchesArch(target string) bool {
	return r.Arch == "" || r.Arch == "noarch" || target == "" || r.Arch == target
}

// providesName reports whether any advertised virtual pkgver has the given
// name.
func (r *PackageRecord) providesName(name string) bool {
	for _, p := range r.Provides {
		if n, ok := pkgver.Name(p); ok && n == name {
			return true
		}
	}
	return false
}

// providesPattern reports whether any advertised virtual pkgver matches the
// given pattern.
func (r *PackageRecord) providesPattern(pattern string) bool {
	for _, p := range r.Provides {
		if pkgver.Match(p, pattern) == pkgver.Matches {
			return true
		}
	}
	return false
}

// ArchiveName returns the cached archive filename for the record.
func (r *PackageRecord) ArchiveName() string {
	arch := r.Arch
	if arch == "" {
		arch = "noarch"
	}
	return fmt.Sprintf("%s.%s.bps", r.Pkgver(), arch)
}

// InstalledPackage augments a PackageRecord with its registry state. The
// Automatic flag marks packages pulled in as dependencies, which makes
// them orphan-removal candidates once nothing requires them.
type InstalledPackage struct {
	PackageRecord
	State     PackageState
	Automatic bool
}

func fileEntriesFromDicts(dicts []plist.Dict, pathKey string) ([]FileEntry, error) {
	if len(dicts) == 0 {
		return nil, nil
	}
	out := make([]FileEntry, 0, len(dicts))
	for _, d := range dicts {
		path, err := d.String(pathKey)
		if err != nil {
			return nil, err
		}
		hash, err := d.String("sha256")
		if err != nil {
			return nil, err
		}
		size, err := d.Uint64("size")
		if err != nil {
			return nil, err
		}
		target, err := d.String("target")
		if err != nil {
			return nil, err
		}
		out = append(out, FileEntry{Path: path, SHA256: hash, Size: size, Target: target})
	}
	return out, nil
}

func fileEntriesToArray(entries []FileEntry, pathKey string) plist.Array {
	if len(entries) == 0 {
		return nil
	}
	a := make(plist.Array, 0, len(entries))
	for _, e := range entries {
		d := plist.Dict{pathKey: e.Path}
		if e.SHA256 != "" {
			d["sha256"] = e.SHA256
		}
		if e.Size != 0 {
			d["size"] = e.Size
		}
		if e.Target != "" {
			d["target"] = e.Target
		}
		a = append(a, d)
	}
	return a
}

func stringsToArray(ss []string) plist.Array {
	if len(ss) == 0 {
		return nil
	}
	a := make(plist.Array, len(ss))
	for i, s := range ss {
		a[i] = s
	}
	return a
}

// recordFromDict internalizes one package dictionary. Mandatory keys are
// pkgname and version; everything else defaults to empty.
func recordFromDict(d plist.Dict) (*PackageRecord, error) {
	name, err := d.String("pkgname")
	if err != nil {
		return nil, err
	}
	version, err := d.String("version")
	if err != nil {
		return nil, err
	}
	if name == "" || version == "" {
		return nil, errors.Wrap(plist.ErrMismatch, "package dictionary lacks pkgname or version")
	}
	r := &PackageRecord{Name: name, Version: version}
	if r.Arch, err = d.String("architecture"); err != nil {
		return nil, err
	}
	if r.Repository, err = d.String("repository"); err != nil {
		return nil, err
	}
	if r.Dependencies, err = d.Strings("run_depends"); err != nil {
		return nil, err
	}
	if r.Provides, err = d.Strings("provides"); err != nil {
		return nil, err
	}
	if r.Conflicts, err = d.Strings("conflicts"); err != nil {
		return nil, err
	}
	if r.Replaces, err = d.Strings("replaces"); err != nil {
		return nil, err
	}
	if r.InstalledSize, err = d.Uint64("installed_size"); err != nil {
		return nil, err
	}
	if r.FilenameSize, err = d.Uint64("filename-size"); err != nil {
		return nil, err
	}
	if r.FilenameSHA256, err = d.String("filename-sha256"); err != nil {
		return nil, err
	}

	files, err := d.Dicts("files")
	if err != nil {
		return nil, err
	}
	if r.Files, err = fileEntriesFromDicts(files, "file"); err != nil {
		return nil, err
	}
	dirs, err := d.Dicts("dirs")
	if err != nil {
		return nil, err
	}
	if r.Dirs, err = fileEntriesFromDicts(dirs, "dir"); err != nil {
		return nil, err
	}
	links, err := d.Dicts("links")
	if err != nil {
		return nil, err
	}
	if r.Links, err = fileEntriesFromDicts(links, "file"); err != nil {
		return nil, err
	}
	confs, err := d.Dicts("conf_files")
	if err != nil {
		return nil, err
	}
	if r.ConfFiles, err = fileEntriesFromDicts(confs, "file"); err != nil {
		return nil, err
	}
	return r, nil
}

// toDict externalizes the record into a package dictionary using the same
// schema recordFromDict reads.
func (r *PackageRecord) toDict() plist.Dict {
	d := plist.Dict{
		"pkgname": r.Name,
		"version": r.Version,
		"pkgver":  r.Pkgver(),
	}
	if r.Arch != "" {
		d["architecture"] = r.Arch
	}
	if r.Repository != "" {
		d["repository"] = r.Repository
	}
	if a := stringsToArray(r.Dependencies); a != nil {
		d["run_depends"] = a
	}
	if a := stringsToArray(r.Provides); a != nil {
		d["provides"] = a
	}
	if a := stringsToArray(r.Conflicts); a != nil {
		d["conflicts"] = a
	}
	if a := stringsToArray(r.Replaces); a != nil {
		d["replaces"] = a
	}
	if a := fileEntriesToArray(r.Files, "file"); a != nil {
		d["files"] = a
	}
	if a := fileEntriesToArray(r.Dirs, "dir"); a != nil {
		d["dirs"] = a
	}
	if a := fileEntriesToArray(r.Links, "file"); a != nil {
		d["links"] = a
	}
	if a := fileEntriesToArray(r.ConfFiles, "file"); a != nil {
		d["conf_files"] = a
	}
	if r.InstalledSize != 0 {
		d["installed_size"] = r.InstalledSize
	}
	if r.FilenameSize != 0 {
		d["filename-size"] = r.FilenameSize
	}
	if r.FilenameSHA256 != "" {
		d["filename-sha256"] = r.FilenameSHA256
	}
	return d
}

// applyFilesDoc overlays a package's file-list document (the archive's
// files.plist) onto the record. The document is authoritative for the
// filesystem contribution; index records may omit it entirely.
func applyFilesDoc(r *PackageRecord, d plist.Dict) error {
	files, err := d.Dicts("files")
	if err != nil {
		return err
	}
	if files != nil {
		if r.Files, err = fileEntriesFromDicts(files, "file"); err != nil {
			return err
		}
	}
	dirs, err := d.Dicts("dirs")
	if err != nil {
		return err
	}
	if dirs != nil {
		if r.Dirs, err = fileEntriesFromDicts(dirs, "dir"); err != nil {
			return err
		}
	}
	links, err := d.Dicts("links")
	if err != nil {
		return err
	}
	if links != nil {
		if r.Links, err = fileEntriesFromDicts(links, "file"); err != nil {
			return err
		}
	}
	confs, err := d.Dicts("conf_files")
	if err != nil {
		return err
	}
	if confs != nil {
		if r.ConfFiles, err = fileEntriesFromDicts(confs, "file"); err != nil {
			return err
		}
	}
	return nil
}

func installedFromDict(d plist.Dict) (*InstalledPackage, error) {
	r, err := recordFromDict(d)
	if err != nil {
		return nil, err
	}
	ip := &InstalledPackage{PackageRecord: *r}
	st, err := d.String("state")
	if err != nil {
		return nil, err
	}
	if st != "" {
		s, ok := parseState(st)
		if !ok {
			return nil, errors.Wrapf(plist.ErrMismatch, "unknown package state %q", st)
		}
		ip.State = s
	}
	auto, err := d.Uint64("automatic-install")
	if err != nil {
		return nil, err
	}
	ip.Automatic = auto != 0
	return ip, nil
}

func (ip *InstalledPackage) toDict() plist.Dict {
	d := ip.PackageRecord.toDict()
	d["state"] = ip.State.String()
	if ip.Automatic {
		d["automatic-install"] = uint64(1)
	}
	return d
}
