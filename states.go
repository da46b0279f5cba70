// Copyright 2012 The gobps Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bps

// PackageState is the persistent lifecycle state of an installed package.
// A crash between two states leaves the intermediate state in the pkgdb;
// the next run resumes from it (half-unpacked re-runs unpack, unpacked
// re-runs configure) or reports it (half-removed prompts a purge).
type PackageState int

const (
	// StateNotInstalled is the implicit state of packages absent from
	// the pkgdb.
	StateNotInstalled PackageState = iota
	// StateHalfUnpacked marks a package whose archive extraction began
	// but did not complete.
	StateHalfUnpacked
	// StateUnpacked marks a package fully extracted but not configured.
	StateUnpacked
	// StateInstalled marks a fully configured package.
	StateInstalled
	// StateHalfRemoved marks a package whose files are gone but whose
	// metadata has not been purged.
	StateHalfRemoved
)

var stateNames = map[PackageState]string{
	StateNotInstalled: "not-installed",
	StateHalfUnpacked: "half-unpacked",
	StateUnpacked:     "unpacked",
	StateInstalled:    "installed",
	StateHalfRemoved:  "half-removed",
}

func (s PackageState) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

func parseState(s string) (PackageState, bool) {
	for st, n := range stateNames {
		if n == s {
			return st, true
		}
	}
	return StateNotInstalled, false
}

// stateTransitions enumerates the permitted edges of the state machine.
// Installed -> half-unpacked covers updates and forced reinstalls;
// half-removed -> half-unpacked covers installing over an interrupted
// removal.
var stateTransitions = map[PackageState][]PackageState{
	StateNotInstalled: {StateHalfUnpacked},
	StateHalfUnpacked: {StateHalfUnpacked, StateUnpacked},
	StateUnpacked:     {StateInstalled, StateHalfUnpacked},
	StateInstalled:    {StateHalfRemoved, StateHalfUnpacked, StateInstalled},
	StateHalfRemoved:  {StateNotInstalled, StateHalfUnpacked},
}

func (s PackageState) canTransition(to PackageState) bool {
	for _, t := range stateTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}
