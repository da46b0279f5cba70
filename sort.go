// Copyright 2012 The gobps Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bps

import (
	"sort"

	"github.com/gobps/gobps/pkgver"
)

// sortSteps orders the document's step bag for execution. A DAG is built
// where an edge a -> b exists iff some dependency atom of a matches b;
// dependencies already satisfied outside the transaction constrain
// nothing. Kahn's algorithm then emits
// dependencies before their dependants, breaking ties on pkgver
// lexicographic order so the output is deterministic. Remove steps are
// ordered in the reverse of their install order: a package is removed
// before anything it depends on.
//
// A cycle is fatal and reported with the offending set.
func sortSteps(td *TransactionDocument) error {
	if td.sorted {
		return nil
	}
	n := len(td.Steps)
	if n <= 1 {
		td.sorted = true
		return nil
	}

	// matches reports whether atom is satisfied by step j's record.
	matches := func(atom string, j int) bool {
		rec := td.Steps[j].Record
		if pkgver.Match(rec.Pkgver(), atom) == pkgver.Matches {
			return true
		}
		if pkgver.IsPattern(atom) {
			return rec.providesPattern(atom)
		}
		return rec.providesName(atom)
	}

	// deps[i] lists the indexes step i depends on.
	deps := make([][]int, n)
	indegree := make([]int, n)
	dependants := make([][]int, n)
	for i, s := range td.Steps {
		for _, atom := range s.Record.Dependencies {
			for j := range td.Steps {
				if i == j {
					continue
				}
				if matches(atom, j) {
					deps[i] = append(deps[i], j)
				}
			}
		}
	}
	for i, ds := range deps {
		for _, j := range ds {
			// For installs, j must run before i. For a pair of
			// removes, the edge flips: the dependant goes first.
			from, to := j, i
			if td.Steps[i].Action == ActionRemove && td.Steps[j].Action == ActionRemove {
				from, to = i, j
			}
			dependants[from] = append(dependants[from], to)
			indegree[to]++
		}
	}

	ready := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}
	less := func(a, b int) bool {
		return td.Steps[a].Record.Pkgver() < td.Steps[b].Record.Pkgver()
	}

	sorted := make([]*TransactionStep, 0, n)
	for len(ready) > 0 {
		sort.Slice(ready, func(x, y int) bool { return less(ready[x], ready[y]) })
		i := ready[0]
		ready = ready[1:]
		sorted = append(sorted, td.Steps[i])
		for _, d := range dependants[i] {
			indegree[d]--
			if indegree[d] == 0 {
				ready = append(ready, d)
			}
		}
	}

	if len(sorted) != n {
		var cyclic []string
		for i := 0; i < n; i++ {
			if indegree[i] > 0 {
				cyclic = append(cyclic, td.Steps[i].Record.Pkgver())
			}
		}
		sort.Strings(cyclic)
		return &CycleError{Pkgvers: cyclic}
	}

	td.Steps = sorted
	td.sorted = true
	return nil
}
