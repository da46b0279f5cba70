// Copyright 2012 The gobps Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bps

import (
	"github.com/pkg/errors"

	"github.com/gobps/gobps/pkgver"
)

// ActionType is what the executor will do with one transaction step.
type ActionType int

const (
	// ActionInstall fetches, unpacks and configures a package absent
	// from the system (or interrupted while unpacking).
	ActionInstall ActionType = iota
	// ActionUpdate replaces an installed version with a newer one.
	ActionUpdate
	// ActionConfigure only re-runs configuration of an unpacked
	// package; no archive is fetched.
	ActionConfigure
	// ActionRemove deletes a package's files and unregisters it.
	ActionRemove
)

func (a ActionType) String() string {
	switch a {
	case ActionInstall:
		return "install"
	case ActionUpdate:
		return "update"
	case ActionConfigure:
		return "configure"
	case ActionRemove:
		return "remove"
	}
	return "unknown"
}

// TransactionStep pairs a package record with the action to carry out and
// the reason it entered the transaction.
type TransactionStep struct {
	Record *PackageRecord
	Action ActionType
	// Reason names what pulled the step in: the literal seed operation
	// or the pkgver of the dependent package.
	Reason string
	// Automatic marks packages entering the system as dependencies;
	// they register as orphan-removal candidates.
	Automatic bool
}

// MissingDep records a dependency atom nothing in the pool satisfies.
type MissingDep struct {
	Atom       string
	RequiredBy string
}

// Conflict records a conflicts-atom hit between a step and another step
// or an installed package.
type Conflict struct {
	Pkgver  string // package declaring the conflict
	Against string // pkgver of the matched package
	Atom    string
}

// TransactionDocument is the resolver's output: the unordered bag of
// steps plus everything the embedder needs to present the transaction.
// Steps are sorted topologically by Prepare just before execution.
type TransactionDocument struct {
	Steps      []*TransactionStep
	Missing    []MissingDep
	Conflicts  []Conflict
	Dependants []string // installed pkgvers depending on a non-recursive remove target

	// DownloadSize totals filename sizes across steps that fetch an
	// archive. InstalledSizeDelta is the net installed-bytes change.
	DownloadSize       uint64
	InstalledSizeDelta int64

	sorted bool
}

// findStep returns the step whose record has the given name.
func (td *TransactionDocument) findStep(name string) *TransactionStep {
	for _, s := range td.Steps {
		if s.Record.Name == name {
			return s
		}
	}
	return nil
}

// findStepMatching returns the first non-remove step whose record
// satisfies the dependency atom, by pkgver or by provides.
func (td *TransactionDocument) findStepMatching(atom string) *TransactionStep {
	for _, s := range td.Steps {
		if s.Action == ActionRemove {
			continue
		}
		if pkgver.Match(s.Record.Pkgver(), atom) == pkgver.Matches {
			return s
		}
		if pkgver.IsPattern(atom) {
			if s.Record.providesPattern(atom) {
				return s
			}
		} else if s.Record.providesName(atom) {
			return s
		}
	}
	return nil
}

// removing reports whether name is scheduled for removal in this
// transaction.
func (td *TransactionDocument) removing(name string) bool {
	for _, s := range td.Steps {
		if s.Action == ActionRemove && s.Record.Name == name {
			return true
		}
	}
	return false
}

// transaction returns the document under assembly, creating it on first
// use.
func (h *Handle) transaction() *TransactionDocument {
	if h.td == nil {
		h.td = &TransactionDocument{}
	}
	return h.td
}

// DiscardTransaction drops the document under assembly.
func (h *Handle) DiscardTransaction() { h.td = nil }

// InstallPackage seeds the transaction with an install of the best
// candidate for pkg, which may be a plain name, a full pkgver, or a
// dependency pattern. With reinstall set an installed package may be
// replaced by the same version; otherwise ErrAlreadyInstalled is
// returned.
func (h *Handle) InstallPackage(pkg string, reinstall bool) error {
	db, err := h.Database()
	if err != nil {
		return err
	}
	var installed *InstalledPackage
	if name, _, ok := pkgver.Split(pkg); ok && !pkgver.IsPattern(pkg) {
		installed = db.Get(name)
	} else if pkgver.IsPattern(pkg) {
		db.Foreach(func(ip *InstalledPackage) (bool, error) {
			if pkgver.Match(ip.Pkgver(), pkg) == pkgver.Matches {
				installed = ip
				return true, nil
			}
			return false, nil
		})
	} else {
		installed = db.Get(pkg)
	}
	if installed != nil && installed.State == StateInstalled && !reinstall {
		return errors.Wrapf(ErrAlreadyInstalled, "%s", installed.Pkgver())
	}
	return h.resolveTarget(pkg, ActionInstall, reinstall)
}

// UpdatePackage seeds the transaction with an update of name to the best
// version across the pool. ErrUpToDate is returned when no repository
// carries a newer version.
func (h *Handle) UpdatePackage(name string) error {
	return h.resolveTarget(name, ActionUpdate, false)
}

// UpdateAllPackages seeds the transaction with updates for every
// installed package not on hold. Per-package ErrNotFound and ErrUpToDate
// are skipped; the call returns ErrUpToDate when nothing at all had a
// newer candidate.
func (h *Handle) UpdateAllPackages() error {
	db, err := h.Database()
	if err != nil {
		return err
	}
	var found bool
	err = db.Foreach(func(ip *InstalledPackage) (bool, error) {
		if h.Conf.onHold(ip.Name) {
			h.debugf("[update] %s on hold, ignoring", ip.Name)
			return false, nil
		}
		switch err := h.UpdatePackage(ip.Name); errors.Cause(err) {
		case nil:
			found = true
		case ErrNotFound, ErrUpToDate, ErrNotInstalled:
			// non-fatal for whole-system updates
		default:
			return true, err
		}
		return false, nil
	})
	if err != nil {
		return err
	}
	if !found {
		return ErrUpToDate
	}
	return nil
}

// RemovePackage seeds the transaction with a removal of name. With
// recursive set, packages that would become orphans are folded into the
// remove set. A non-recursive removal of a package other installed
// packages depend on is recorded on the document's Dependants list.
func (h *Handle) RemovePackage(name string, recursive bool) error {
	db, err := h.Database()
	if err != nil {
		return err
	}
	ip := db.Get(name)
	if ip == nil {
		return errors.Wrapf(ErrNotInstalled, "%s", name)
	}
	td := h.transaction()

	if recursive {
		for _, orphan := range h.findOrphans(db, []string{name}) {
			rec := orphan.PackageRecord
			td.Steps = append(td.Steps, &TransactionStep{
				Record: &rec,
				Action: ActionRemove,
				Reason: "orphaned by " + name,
			})
			h.debugf("%s: added into transaction (remove).", orphan.Pkgver())
		}
	}

	rec := ip.PackageRecord
	td.Steps = append(td.Steps, &TransactionStep{
		Record: &rec,
		Action: ActionRemove,
		Reason: "remove " + name,
	})
	h.debugf("%s: added into transaction (remove).", ip.Pkgver())

	// Surface installed dependants so the front-end can warn.
	db.Foreach(func(other *InstalledPackage) (bool, error) {
		if other.Name == name || td.removing(other.Name) {
			return false, nil
		}
		for _, atom := range other.Dependencies {
			if pkgver.PatternName(atom) == name || ip.providesName(pkgver.PatternName(atom)) {
				if pkgver.Match(ip.Pkgver(), atom) == pkgver.Matches || ip.providesPattern(atom) {
					td.Dependants = append(td.Dependants, other.Pkgver())
					break
				}
			}
		}
		return false, nil
	})
	return nil
}

// Autoremove seeds the transaction with every orphaned package.
// ErrNotFound is returned when the system has none.
func (h *Handle) Autoremove() error {
	db, err := h.Database()
	if err != nil {
		return err
	}
	orphans := h.findOrphans(db, nil)
	if len(orphans) == 0 {
		return ErrNotFound
	}
	td := h.transaction()
	for _, orphan := range orphans {
		rec := orphan.PackageRecord
		td.Steps = append(td.Steps, &TransactionStep{
			Record: &rec,
			Action: ActionRemove,
			Reason: "autoremove",
		})
		h.debugf("%s: added into transaction (remove).", orphan.Pkgver())
	}
	return nil
}

// Prepare finalizes the document under assembly: detects conflicts,
// aggregates sizes, and sorts the steps topologically. ErrMissingDeps or
// ErrHasConflicts are returned when resolution problems were recorded;
// the document keeps the full picture either way.
func (h *Handle) Prepare() (*TransactionDocument, error) {
	td := h.td
	if td == nil || len(td.Steps) == 0 {
		return nil, ErrNoTransaction
	}
	db, err := h.Database()
	if err != nil {
		return nil, err
	}
	h.detectConflicts(td, db)
	h.aggregateSizes(td, db)
	if err := sortSteps(td); err != nil {
		return td, err
	}
	if len(td.Missing) > 0 {
		return td, ErrMissingDeps
	}
	if len(td.Conflicts) > 0 {
		return td, ErrHasConflicts
	}
	return td, nil
}
