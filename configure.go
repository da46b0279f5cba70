// Copyright 2012 The gobps Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bps

import (
	"context"
	"path/filepath"
)

// ConfigurePackage runs a package's INSTALL script post action and
// advances it from unpacked to installed. Packages already installed are
// only re-run under the force-configure flag, with no state change
// recorded. update is passed through to the script.
func (h *Handle) ConfigurePackage(ctx context.Context, name string, update, flush bool) error {
	db, err := h.Database()
	if err != nil {
		return err
	}
	ip := db.Get(name)
	if ip == nil {
		return ErrNotInstalled
	}

	switch ip.State {
	case StateInstalled:
		if h.Flags&FlagForceConfigure == 0 {
			return nil
		}
	case StateUnpacked:
	default:
		return &BadStateTransitionError{Pkgname: name, From: ip.State, To: StateInstalled}
	}

	if err := h.statef(StateConfigure, name, ip.Version, "Configuring `%s'.", ip.Pkgver()); err != nil {
		return err
	}

	script := filepath.Join(h.metadataDir(name), installScriptName)
	code, err := h.runScript(ctx, script, "post", name, ip.Version, update)
	if err != nil {
		cerr := &ConfigureError{Pkgver: ip.Pkgver(), ExitCode: code, Err: err}
		h.state(StateEvent{Tag: StateConfigureFail, Pkgname: name, Version: ip.Version, Err: cerr})
		return cerr
	}

	if ip.State != StateInstalled {
		if err := db.SetState(name, StateInstalled); err != nil {
			return err
		}
	}
	if flush {
		return db.Flush()
	}
	return nil
}

// ConfigureAllPackages configures every unpacked package in pkgdb
// traversal order, or every package when the force-configure flag is
// set. It stops on the first failure, which is safe to retry.
func (h *Handle) ConfigureAllPackages(ctx context.Context) error {
	db, err := h.Database()
	if err != nil {
		return err
	}
	err = db.Foreach(func(ip *InstalledPackage) (bool, error) {
		if ip.State != StateUnpacked && h.Flags&FlagForceConfigure == 0 {
			return false, nil
		}
		if err := h.ConfigurePackage(ctx, ip.Name, false, false); err != nil {
			return true, err
		}
		return false, nil
	})
	if err != nil {
		return err
	}
	return db.Flush()
}
