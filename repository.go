// Copyright 2012 The gobps Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bps

import (
	"github.com/pkg/errors"

	"github.com/gobps/gobps/pkgver"
	"github.com/gobps/gobps/plist"
)

// Repository is one loaded repository index: an immutable set of package
// records plus lookup indexes built once at load time.
type Repository struct {
	URI string

	records  []*PackageRecord
	byName   map[string]*PackageRecord
	provides map[string][]*PackageRecord // virtual name -> providers
}

// newRepository builds a repository over already-internalized records.
func newRepository(uri string, records []*PackageRecord) *Repository {
	r := &Repository{
		URI:      uri,
		records:  records,
		byName:   make(map[string]*PackageRecord, len(records)),
		provides: make(map[string][]*PackageRecord),
	}
	for _, rec := range records {
		if _, dup := r.byName[rec.Name]; !dup {
			r.byName[rec.Name] = rec
		}
		for _, p := range rec.Provides {
			if vname, ok := pkgver.Name(p); ok {
				r.provides[vname] = append(r.provides[vname], rec)
			}
		}
	}
	return r
}

// loadRepository internalizes a serialized index document: an array of
// package dictionaries.
func loadRepository(uri string, data []byte) (*Repository, error) {
	doc, err := plist.InternalizeArray(data)
	if err != nil {
		return nil, errors.Wrapf(err, "loading index of %s", uri)
	}
	records := make([]*PackageRecord, 0, len(doc))
	for _, v := range doc {
		d, ok := v.(plist.Dict)
		if !ok {
			return nil, errors.Wrapf(plist.ErrMismatch, "index of %s: non-dictionary entry", uri)
		}
		rec, err := recordFromDict(d)
		if err != nil {
			return nil, errors.Wrapf(err, "index of %s", uri)
		}
		records = append(records, rec)
	}
	return newRepository(uri, records), nil
}

// Count returns the number of records in the index.
func (r *Repository) Count() int { return len(r.records) }

// FindName returns the record with the given name, honoring the arch
// filter.
func (r *Repository) FindName(name, arch string) *PackageRecord {
	rec := r.byName[name]
	if rec == nil || !rec.matchesArch(arch) {
		return nil
	}
	return rec
}

// FindPattern returns the first record whose pkgver matches pattern.
func (r *Repository) FindPattern(pattern, arch string) *PackageRecord {
	for _, rec := range r.records {
		if !rec.matchesArch(arch) {
			continue
		}
		if pkgver.Match(rec.Pkgver(), pattern) == pkgver.Matches {
			return rec
		}
	}
	return nil
}

// FindPkgver returns the record with exactly the given pkgver.
func (r *Repository) FindPkgver(pv, arch string) *PackageRecord {
	if _, _, ok := pkgver.Split(pv); !ok {
		return nil
	}
	for _, rec := range r.records {
		if rec.Pkgver() == pv && rec.matchesArch(arch) {
			return rec
		}
	}
	return nil
}

// FindVirtualName returns the first record providing the virtual name.
func (r *Repository) FindVirtualName(name, arch string) *PackageRecord {
	for _, rec := range r.provides[name] {
		if rec.matchesArch(arch) {
			return rec
		}
	}
	return nil
}

// FindVirtualPattern returns the first record one of whose provides
// entries matches pattern.
func (r *Repository) FindVirtualPattern(pattern, arch string) *PackageRecord {
	for _, rec := range r.records {
		if rec.matchesArch(arch) && rec.providesPattern(pattern) {
			return rec
		}
	}
	return nil
}

// Foreach visits every record in load order until fn returns done=true or
// an error.
func (r *Repository) Foreach(fn func(rec *PackageRecord) (done bool, err error)) error {
	for _, rec := range r.records {
		done, err := fn(rec)
		if err != nil || done {
			return err
		}
	}
	return nil
}
