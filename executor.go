// Copyright 2012 The gobps Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bps

import (
	"context"
)

// Commit executes the prepared transaction in a single pass over the
// sorted step list, advertising four phases through the state callback:
// download, verify, run, configure.
//
// Failure semantics: download and verify failures abort before any
// filesystem mutation and without a pkgdb flush; an unpack failure
// leaves the package half-unpacked with the pkgdb flushed; a configure
// failure leaves the package unpacked, and a later reconfigure is safe.
// The pkgdb is flushed every TransactionFrequencyFlush packages during
// the run phase to bound crash-replay work.
//
// Interrupted transactions resume naturally: a step whose package is
// already unpacked at the right version skips straight to configure.
func (h *Handle) Commit(ctx context.Context) error {
	td := h.td
	if td == nil || !td.sorted {
		return ErrNoTransaction
	}
	db, err := h.Database()
	if err != nil {
		return err
	}
	if err := db.Lock(); err != nil {
		return err
	}
	defer db.Unlock()

	// Download phase.
	if td.needsFetch() {
		if err := h.statef(StateTransDownload, "", "", "Downloading binary packages."); err != nil {
			return err
		}
		for _, step := range td.Steps {
			if !stepFetches(step) {
				continue
			}
			if err := ctx.Err(); err != nil {
				return ErrCancelled
			}
			if err := h.downloadStep(ctx, step); err != nil {
				return err
			}
		}

		// Verify phase: all archives are proven before the first
		// filesystem mutation.
		if err := h.statef(StateTransVerify, "", "", "Verifying binary package integrity."); err != nil {
			return err
		}
		for _, step := range td.Steps {
			if !stepFetches(step) {
				continue
			}
			if err := h.verifyStep(step); err != nil {
				return err
			}
		}
	}

	// Run phase.
	if err := h.statef(StateTransRun, "", "", "Running transaction operations."); err != nil {
		return err
	}
	flushEvery := h.Conf.TransactionFrequencyFlush
	processed := 0
	for _, step := range td.Steps {
		if err := ctx.Err(); err != nil {
			if ferr := db.Flush(); ferr != nil {
				return ferr
			}
			return ErrCancelled
		}
		switch step.Action {
		case ActionConfigure:
			// handled in the configure phase
			continue
		case ActionRemove:
			if err := h.removeStep(ctx, step, db); err != nil {
				db.Flush()
				return err
			}
		default:
			if ip := db.Get(step.Record.Name); ip != nil &&
				ip.State == StateUnpacked && ip.Version == step.Record.Version {
				// A previous interrupted run already unpacked this
				// version; go straight to configure.
				h.debugf("%s: already unpacked, resuming", step.Record.Pkgver())
				continue
			}
			if err := h.unpackStep(ctx, step, db); err != nil {
				db.Flush()
				return err
			}
		}
		processed++
		if flushEvery > 0 && processed%flushEvery == 0 {
			if err := db.Flush(); err != nil {
				return err
			}
		}
	}
	if err := db.Flush(); err != nil {
		return err
	}

	// Configure phase.
	if err := h.statef(StateTransConfigure, "", "", "Configuring unpacked packages."); err != nil {
		return err
	}
	for _, step := range td.Steps {
		if step.Action == ActionRemove {
			continue
		}
		if err := ctx.Err(); err != nil {
			return ErrCancelled
		}
		update := step.Action == ActionUpdate
		if err := h.ConfigurePackage(ctx, step.Record.Name, update, false); err != nil {
			db.Flush()
			return err
		}
		doneTag := StateInstallDone
		if update {
			doneTag = StateUpdateDone
		}
		if err := h.statef(doneTag, step.Record.Name, step.Record.Version,
			"%s `%s' successfully.", doneTag, step.Record.Pkgver()); err != nil {
			return err
		}
	}
	if err := db.Flush(); err != nil {
		return err
	}

	h.td = nil
	return nil
}

// stepFetches reports whether a step needs its archive in the cache.
func stepFetches(step *TransactionStep) bool {
	return step.Action == ActionInstall || step.Action == ActionUpdate
}

func (td *TransactionDocument) needsFetch() bool {
	for _, s := range td.Steps {
		if stepFetches(s) {
			return true
		}
	}
	return false
}
