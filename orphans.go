// Copyright 2012 The gobps Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bps

import (
	"github.com/gobps/gobps/pkgver"
)

// findOrphans computes the stable orphan set with the named packages
// treated as already gone. An installed package is an orphan iff it was
// installed automatically and no surviving package has it in its
// dependency closure; the iteration repeats until no new orphan appears,
// so chains of automatic dependencies collapse together.
func (h *Handle) findOrphans(db *PackageDatabase, assumeRemoved []string) []*InstalledPackage {
	gone := make(map[string]bool, len(assumeRemoved))
	for _, name := range assumeRemoved {
		gone[name] = true
	}

	required := func(p *InstalledPackage) bool {
		var req bool
		db.Foreach(func(q *InstalledPackage) (bool, error) {
			if q.Name == p.Name || gone[q.Name] {
				return false, nil
			}
			for _, atom := range q.Dependencies {
				if pkgver.Match(p.Pkgver(), atom) == pkgver.Matches {
					req = true
					return true, nil
				}
				if pkgver.IsPattern(atom) {
					if p.providesPattern(atom) {
						req = true
						return true, nil
					}
				} else if p.providesName(atom) {
					req = true
					return true, nil
				}
			}
			return false, nil
		})
		return req
	}

	for changed := true; changed; {
		changed = false
		db.Foreach(func(p *InstalledPackage) (bool, error) {
			if !p.Automatic || gone[p.Name] {
				return false, nil
			}
			if !required(p) {
				gone[p.Name] = true
				changed = true
			}
			return false, nil
		})
	}

	var orphans []*InstalledPackage
	seeds := make(map[string]bool, len(assumeRemoved))
	for _, name := range assumeRemoved {
		seeds[name] = true
	}
	db.Foreach(func(p *InstalledPackage) (bool, error) {
		if gone[p.Name] && !seeds[p.Name] {
			orphans = append(orphans, p)
		}
		return false, nil
	})
	return orphans
}
