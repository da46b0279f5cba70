// Copyright 2012 The gobps Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bps

import (
	"github.com/pkg/errors"

	"github.com/gobps/gobps/pkgver"
)

// findCandidate walks the lookup ladder for one target: exact pkgver,
// best match across the pool, the configured virtual-package aliases, and
// finally the provides index.
func (h *Handle) findCandidate(pool *Pool, pkg string) *PackageRecord {
	if !pkgver.IsPattern(pkg) {
		if _, _, ok := pkgver.Split(pkg); ok {
			if rec := pool.FindExact(pkg); rec != nil {
				return rec
			}
		}
	}
	if rec := pool.FindBest(pkg); rec != nil {
		return rec
	}
	byPattern := pkgver.IsPattern(pkg)
	if aliases := h.Conf.virtualAliases(); aliases != nil {
		if real, ok := aliases[pkgver.PatternName(pkg)]; ok {
			if rec := pool.FindBest(real); rec != nil {
				return rec
			}
		}
	}
	return pool.FindVirtual(pkg, byPattern)
}

// resolveTarget selects the candidate for one install/update seed, adds
// it to the transaction, and expands its dependency closure.
func (h *Handle) resolveTarget(pkg string, action ActionType, reinstall bool) error {
	pool, err := h.Pool()
	if err != nil {
		return err
	}
	if pool.Empty() {
		return ErrNoRepositories
	}
	db, err := h.Database()
	if err != nil {
		return err
	}

	var installed *InstalledPackage
	if action == ActionUpdate {
		installed = db.Get(pkg)
		if installed == nil {
			return errors.Wrapf(ErrNotInstalled, "%s", pkg)
		}
	}

	var candidate *PackageRecord
	if action == ActionUpdate {
		candidate = pool.FindBest(pkg)
	} else {
		candidate = h.findCandidate(pool, pkg)
	}
	if candidate == nil {
		return errors.Wrapf(ErrNotFound, "%s", pkg)
	}

	if action == ActionUpdate {
		if pkgver.Cmp(candidate.Version, installed.Version) <= 0 {
			h.debugf("[update] skipping %s (installed: %s) from %s",
				candidate.Pkgver(), installed.Pkgver(), candidate.Repository)
			return errors.Wrapf(ErrUpToDate, "%s", pkg)
		}
	}

	td := h.transaction()
	if existing := td.findStep(candidate.Name); existing != nil {
		h.debugf("%s already queued in transaction", candidate.Pkgver())
		return nil
	}

	step := &TransactionStep{
		Record: candidate,
		Action: action,
		Reason: action.String() + " " + pkg,
	}
	// Derive the effective action from the current pkgdb state.
	if ip := db.Get(candidate.Name); ip != nil {
		switch ip.State {
		case StateUnpacked:
			step.Action = ActionConfigure
		case StateInstalled:
			if action != ActionUpdate && !reinstall {
				// Forcing an installed package back through is a
				// no-op unless reinstalling.
				return nil
			}
			if action == ActionInstall {
				step.Action = ActionUpdate
			}
		}
	}
	td.Steps = append(td.Steps, step)
	h.debugf("%s: added into the transaction (%s).", candidate.Pkgver(), candidate.Repository)

	return h.expandClosure(td, pool, db)
}

// depSatisfiedByDB reports whether an installed package that is not being
// removed in this transaction satisfies the atom, directly or via
// provides. Only packages in the installed or unpacked state count.
func depSatisfiedByDB(td *TransactionDocument, db *PackageDatabase, atom string) bool {
	var satisfied bool
	db.Foreach(func(ip *InstalledPackage) (bool, error) {
		if ip.State != StateInstalled && ip.State != StateUnpacked {
			return false, nil
		}
		if td.removing(ip.Name) {
			return false, nil
		}
		if pkgver.Match(ip.Pkgver(), atom) == pkgver.Matches {
			satisfied = true
			return true, nil
		}
		if pkgver.IsPattern(atom) {
			if ip.providesPattern(atom) {
				satisfied = true
				return true, nil
			}
		} else if ip.providesName(atom) {
			satisfied = true
			return true, nil
		}
		return false, nil
	})
	return satisfied
}

// expandClosure grows the step bag to its dependency fixed point:
// every dependency atom of every pending install/update step is either
// satisfied by the pkgdb, already queued, resolved from the pool, or
// recorded as missing.
func (h *Handle) expandClosure(td *TransactionDocument, pool *Pool, db *PackageDatabase) error {
	for changed := true; changed; {
		changed = false
		for _, step := range td.Steps {
			if step.Action == ActionRemove || step.Action == ActionConfigure {
				continue
			}
			for _, atom := range step.Record.Dependencies {
				if depSatisfiedByDB(td, db, atom) {
					continue
				}
				if td.findStepMatching(atom) != nil {
					continue
				}
				if missingRecorded(td, atom) {
					continue
				}
				dep := h.findCandidate(pool, atom)
				if dep == nil {
					td.Missing = append(td.Missing, MissingDep{
						Atom:       atom,
						RequiredBy: step.Record.Pkgver(),
					})
					continue
				}
				depStep := &TransactionStep{
					Record:    dep,
					Action:    ActionInstall,
					Reason:    "required by " + step.Record.Pkgver(),
					Automatic: true,
				}
				if ip := db.Get(dep.Name); ip != nil {
					switch ip.State {
					case StateUnpacked:
						depStep.Action = ActionConfigure
					case StateInstalled:
						// Installed but failing the atom match above
						// means the version is insufficient.
						depStep.Action = ActionUpdate
					}
				}
				td.Steps = append(td.Steps, depStep)
				h.debugf("%s: added into the transaction (%s).", dep.Pkgver(), depStep.Reason)
				changed = true
			}
		}
	}
	return nil
}

func missingRecorded(td *TransactionDocument, atom string) bool {
	for _, m := range td.Missing {
		if m.Atom == atom {
			return true
		}
	}
	return false
}

// detectConflicts checks every non-remove step's conflicts atoms against
// the other steps and against installed packages that are not being
// removed; hits are recorded on the document.
func (h *Handle) detectConflicts(td *TransactionDocument, db *PackageDatabase) {
	record := func(s *TransactionStep, against, atom string) {
		td.Conflicts = append(td.Conflicts, Conflict{
			Pkgver:  s.Record.Pkgver(),
			Against: against,
			Atom:    atom,
		})
	}
	for _, s := range td.Steps {
		if s.Action == ActionRemove {
			continue
		}
		for _, atom := range s.Record.Conflicts {
			for _, other := range td.Steps {
				if other == s || other.Action == ActionRemove {
					continue
				}
				if pkgver.Match(other.Record.Pkgver(), atom) == pkgver.Matches {
					record(s, other.Record.Pkgver(), atom)
				}
			}
			db.Foreach(func(ip *InstalledPackage) (bool, error) {
				if td.removing(ip.Name) || ip.Name == s.Record.Name {
					return false, nil
				}
				if pkgver.Match(ip.Pkgver(), atom) == pkgver.Matches {
					record(s, ip.Pkgver(), atom)
				}
				return false, nil
			})
		}
		// Conflicts declared by installed packages also bind new
		// installations.
		db.Foreach(func(ip *InstalledPackage) (bool, error) {
			if td.removing(ip.Name) || ip.Name == s.Record.Name {
				return false, nil
			}
			for _, atom := range ip.Conflicts {
				if pkgver.Match(s.Record.Pkgver(), atom) == pkgver.Matches {
					record(s, ip.Pkgver(), atom)
				}
			}
			return false, nil
		})
	}
}

// aggregateSizes fills the document's download and installed-size
// totals. Configure steps fetch nothing; updates subtract the size of
// the version being replaced.
func (h *Handle) aggregateSizes(td *TransactionDocument, db *PackageDatabase) {
	var download uint64
	var delta int64
	for _, s := range td.Steps {
		switch s.Action {
		case ActionConfigure:
		case ActionRemove:
			delta -= int64(s.Record.InstalledSize)
		default:
			download += s.Record.FilenameSize
			delta += int64(s.Record.InstalledSize)
			if ip := db.Get(s.Record.Name); ip != nil {
				delta -= int64(ip.InstalledSize)
			}
		}
	}
	td.DownloadSize = download
	td.InstalledSizeDelta = delta
}
