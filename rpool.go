// Copyright 2012 The gobps Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bps

import (
	"github.com/gobps/gobps/pkgver"
)

// Pool is the ordered collection of repositories consulted by the
// resolver. Order is significant: on ties the earlier repository wins.
type Pool struct {
	repos []*Repository
	arch  string
}

// NewPool returns a pool over repos in declared order.
func NewPool(arch string, repos ...*Repository) *Pool {
	return &Pool{repos: repos, arch: arch}
}

// Empty reports whether no repository is loaded.
func (p *Pool) Empty() bool { return p == nil || len(p.repos) == 0 }

// Repositories returns the pool members in declared order.
func (p *Pool) Repositories() []*Repository { return p.repos }

// take marks rec as originating from repo and returns it. The repository
// URL is the only record field the pool mutates.
func take(rec *PackageRecord, repo *Repository) *PackageRecord {
	if rec != nil && rec.Repository == "" {
		rec.Repository = repo.URI
	}
	return rec
}

// FindName returns the first record with the given name across the pool.
func (p *Pool) FindName(name string) *PackageRecord {
	for _, repo := range p.repos {
		if rec := repo.FindName(name, p.arch); rec != nil {
			return take(rec, repo)
		}
	}
	return nil
}

// FindPattern returns the first record matching the dependency pattern.
func (p *Pool) FindPattern(pattern string) *PackageRecord {
	for _, repo := range p.repos {
		if rec := repo.FindPattern(pattern, p.arch); rec != nil {
			return take(rec, repo)
		}
	}
	return nil
}

// FindExact returns the record with exactly the given pkgver.
func (p *Pool) FindExact(pv string) *PackageRecord {
	for _, repo := range p.repos {
		if rec := repo.FindPkgver(pv, p.arch); rec != nil {
			return take(rec, repo)
		}
	}
	return nil
}

// FindBest visits every repository and keeps the candidate with the
// highest version. pkgOrPattern may be a plain name or a dependency
// pattern. On version ties the earlier repository wins.
func (p *Pool) FindBest(pkgOrPattern string) *PackageRecord {
	byPattern := pkgver.IsPattern(pkgOrPattern)
	var best *PackageRecord
	for _, repo := range p.repos {
		var rec *PackageRecord
		if byPattern {
			rec = repo.FindPattern(pkgOrPattern, p.arch)
		} else {
			rec = repo.FindName(pkgOrPattern, p.arch)
		}
		if rec == nil {
			continue
		}
		if best == nil || pkgver.Cmp(rec.Version, best.Version) > 0 {
			best = take(rec, repo)
		}
	}
	return best
}

// FindVirtual returns the first record advertising the virtual name, or,
// when byPattern is set, whose provides entry matches the pattern.
func (p *Pool) FindVirtual(nameOrPattern string, byPattern bool) *PackageRecord {
	for _, repo := range p.repos {
		var rec *PackageRecord
		if byPattern {
			rec = repo.FindVirtualPattern(nameOrPattern, p.arch)
		} else {
			rec = repo.FindVirtualName(nameOrPattern, p.arch)
		}
		if rec != nil {
			return take(rec, repo)
		}
	}
	return nil
}

// Foreach visits every repository in declared order until fn returns
// done=true or an error.
func (p *Pool) Foreach(fn func(repo *Repository) (done bool, err error)) error {
	for _, repo := range p.repos {
		done, err := fn(repo)
		if err != nil || done {
			return err
		}
	}
	return nil
}
