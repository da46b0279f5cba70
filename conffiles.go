// Copyright 2012 The gobps Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bps

import (
	"os"
	"path/filepath"

	"github.com/gobps/gobps/internal/fs"
)

// confDecision is the outcome of the configuration-file three-way merge
// for one entry.
type confDecision struct {
	install bool   // write the shipped file
	target  string // destination path when install is true
}

// mergeConfigFile decides what to do with a shipped configuration file by
// comparing three hashes: the one recorded by the previously installed
// version (orig), the file currently on disk (cur), and the one the new
// version ships (new):
//
//	orig absent            -> install new
//	cur missing            -> install new
//	orig == cur            -> install new (user had not touched it)
//	orig != cur, new==orig -> keep current (user edit, same file shipped)
//	orig != cur, new==cur  -> keep current (user edit already merged)
//	all three differ       -> install new alongside as <path>.new-<version>
//
// The decision is always announced through the state callback as a
// config-file event.
func (h *Handle) mergeConfigFile(rec *PackageRecord, old *InstalledPackage, entry FileEntry) (confDecision, error) {
	dest := filepath.Join(h.Conf.RootDir, entry.Path)
	newHash := entry.SHA256

	var origHash string
	if old != nil {
		for _, cf := range old.ConfFiles {
			if cf.Path == entry.Path {
				origHash = cf.SHA256
				break
			}
		}
	}

	// File is new to the system.
	if origHash == "" {
		h.debugf("%s: conf_file %s unknown orig hash", rec.Name, entry.Path)
		if err := h.statef(StateConfigFile, rec.Name, rec.Version,
			"Installing new configuration file `%s'.", entry.Path); err != nil {
			return confDecision{}, err
		}
		return confDecision{install: true, target: dest}, nil
	}

	curHash, err := fs.HashFile(dest)
	if err != nil {
		if !os.IsNotExist(err) {
			return confDecision{}, err
		}
		// Recorded but deleted on disk; reinstall it.
		if err := h.statef(StateConfigFile, rec.Name, rec.Version,
			"Installing missing configuration file `%s'.", entry.Path); err != nil {
			return confDecision{}, err
		}
		return confDecision{install: true, target: dest}, nil
	}

	switch {
	case origHash == curHash:
		// The user had not touched the file; whatever the new
		// version ships wins (a no-op when all three match).
		if err := h.statef(StateConfigFile, rec.Name, rec.Version,
			"Updating configuration file `%s' provided by version `%s'.", entry.Path, rec.Version); err != nil {
			return confDecision{}, err
		}
		return confDecision{install: true, target: dest}, nil

	case newHash == origHash || newHash == curHash:
		// User edit, and the new version ships nothing newer than
		// what the system already reflects.
		if err := h.statef(StateConfigFile, rec.Name, rec.Version,
			"Keeping modified configuration file `%s'.", entry.Path); err != nil {
			return confDecision{}, err
		}
		return confDecision{install: false}, nil

	default:
		// All three differ: preserve the user's file, land the new
		// one alongside.
		target := dest + ".new-" + rec.Version
		if err := h.statef(StateConfigFile, rec.Name, rec.Version,
			"Installing new configuration file to `%s.new-%s'.", entry.Path, rec.Version); err != nil {
			return confDecision{}, err
		}
		return confDecision{install: true, target: target}, nil
	}
}
